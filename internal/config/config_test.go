package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helianthus/reflectgen/internal/emit"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "HCLASS", cfg.Annotations.Class)
	assert.Equal(t, emit.DefaultOptOutTag, cfg.OptOutTag)
	assert.Equal(t, 30*time.Second, cfg.LockTimeout)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
workers: 4
lock_timeout: 5s
include_prefix: Source
annotations:
  class: UCLASS
ignore:
  - "ThirdParty/**"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, "UCLASS", cfg.Annotations.Class)
	assert.Equal(t, "HMETHOD", cfg.Annotations.Method, "unset macro names keep their default")
	assert.Equal(t, []string{"ThirdParty/**"}, cfg.Ignore)
	assert.NotEmpty(t, cfg.Extensions.Header)
	assert.Equal(t, "Source", cfg.EmitOptions().IncludePrefix)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"negative workers":  "workers: -1\n",
		"unknown log level": "log_level: loud\n",
		"bad extension":     "extensions:\n  header: [h]\n",
		"bad macro name":    "annotations:\n  method: \"H METHOD\"\n",
		"separator in tag":  "opt_out_tag: \"No|Auto\"\n",
		"malformed yaml":    "workers: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Find(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{}\n"), 0o644))
	assert.Equal(t, filepath.Join(dir, FileName), Find(dir))
}

func TestScannerOptionsExcludesOutput(t *testing.T) {
	cfg := Default()
	cfg.Source = "/src"
	cfg.Output = "/src/Generated"
	cfg.ExcludeDirs = []string{"Intermediate", "/abs/skip"}

	opts := cfg.ScannerOptions()
	assert.Equal(t, []string{
		filepath.Join("/src", "Intermediate"),
		"/abs/skip",
		"/src/Generated",
	}, opts.ExcludeDirs)
}

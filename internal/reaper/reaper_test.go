package reaper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("// x\n"), 0o644))
	}
}

func TestIsFragment(t *testing.T) {
	assert.True(t, IsFragment("Player_registration.cpp"))
	assert.True(t, IsFragment("_Hidden_services.cpp"))
	assert.False(t, IsFragment("Player_registration.h"))
	assert.False(t, IsFragment("my-file_services.cpp"))
	assert.False(t, IsFragment("helpers.cpp"))
	assert.False(t, IsFragment("_services.cpp"))
}

func TestReapDeletesOnlyStaleFragments(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out,
		"classes/Game/Player_registration.cpp",
		"classes/Game/Player_services.cpp",
		"classes/Game/Old_registration.cpp",
		"classes/Gone/Ghost_services.cpp",
		"classes/Game/notes.txt",
		"classes/Game/helpers.cpp",
		"reflection_gen.h",
		"Custom_registration.cpp",
	)
	alive := map[string]bool{
		"classes/Game/Player_registration.cpp": true,
		"classes/Game/Player_services.cpp":     true,
	}

	deleted, err := Reap(context.Background(), out, alive, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"classes/Game/Old_registration.cpp", "classes/Gone/Ghost_services.cpp"}, deleted)

	for _, kept := range []string{
		"classes/Game/Player_registration.cpp",
		"classes/Game/Player_services.cpp",
		"classes/Game/notes.txt",
		"classes/Game/helpers.cpp",
		"reflection_gen.h",
		"Custom_registration.cpp",
	} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(kept)))
	}
	assert.NoDirExists(t, filepath.Join(out, "classes", "Gone"), "empty directory should be pruned")
	assert.DirExists(t, filepath.Join(out, "classes"))
}

func TestReapKeepsPreexistingEmptyDirs(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, "classes/Old/Deep/Gone_services.cpp")
	userDir := filepath.Join(out, "classes", "Scratch")
	require.NoError(t, os.MkdirAll(userDir, 0o755))

	deleted, err := Reap(context.Background(), out, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"classes/Old/Deep/Gone_services.cpp"}, deleted)
	assert.NoDirExists(t, filepath.Join(out, "classes", "Old"), "parents emptied by the reap are pruned")
	assert.DirExists(t, userDir, "an empty directory the reap did not empty is kept")
}

func TestReapDryRun(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, "classes/A/Stale_services.cpp")

	deleted, err := Reap(context.Background(), out, nil, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"classes/A/Stale_services.cpp"}, deleted)
	assert.FileExists(t, filepath.Join(out, "classes", "A", "Stale_services.cpp"))
}

func TestReapMissingClassesDir(t *testing.T) {
	deleted, err := Reap(context.Background(), t.TempDir(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestReapCancelled(t *testing.T) {
	out := t.TempDir()
	writeTree(t, out, "classes/A/Stale_services.cpp")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reap(ctx, out, nil, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.FileExists(t, filepath.Join(out, "classes", "A", "Stale_services.cpp"))
}

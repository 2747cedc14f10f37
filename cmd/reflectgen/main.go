package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helianthus/reflectgen/internal/config"
	"github.com/helianthus/reflectgen/internal/engine"
	"github.com/helianthus/reflectgen/internal/logger"
	"github.com/helianthus/reflectgen/internal/server"
	"github.com/helianthus/reflectgen/internal/watch"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags are shared by the root command and its subcommands.
type flags struct {
	configPath       string
	logLevel         string
	workers          int
	skipAutoRegister bool
	dryRun           bool
	allowDuplicates  bool
}

const argsUsage = "<source_root> <output_dir>"

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "reflectgen " + argsUsage,
		Short:         "Generate C++ reflection and RPC registration sources",
		Long:          "reflectgen scans a C++ source tree for reflection annotations and writes the registration, service and auto-mount sources the runtime registries consume.",
		Version:       version,
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx, eng, err := f.setup(cmd.Context(), args)
			if err != nil {
				return err
			}
			res, err := eng.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to the config file (default <source_root>/"+config.FileName+")")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error or disabled")
	pf.IntVar(&f.workers, "workers", 0, "Parser workers (0 uses GOMAXPROCS)")
	pf.BoolVar(&f.skipAutoRegister, "skip-auto-register", false, "Register every service with a placeholder factory")
	pf.BoolVar(&f.dryRun, "dry-run", false, "Report what would change without writing anything")
	pf.BoolVar(&f.allowDuplicates, "allow-duplicates", false, "Warn on duplicate class names instead of failing")

	root.AddCommand(newWatchCmd(f), newServeCmd(f))
	return root
}

func newWatchCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch " + argsUsage,
		Short: "Regenerate whenever annotated sources change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx, eng, err := f.setup(cmd.Context(), args)
			if err != nil {
				return err
			}
			w, err := watch.New(eng, watch.OptionsFromConfig(eng.Config()))
			if err != nil {
				return err
			}
			return w.Watch(ctx)
		},
	}
}

func newServeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve " + argsUsage,
		Short: "Serve generation and class inspection tools over MCP stdio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx, eng, err := f.setup(cmd.Context(), args)
			if err != nil {
				return err
			}
			// Index the tree up front so queries work before the first
			// generate call.
			if res, err := eng.Run(ctx); err != nil {
				logger.FromContext(ctx).Warn("initial generation failed", "error", err)
			} else {
				logger.FromContext(ctx).Info("initial generation finished", "summary", res.Summary())
			}
			return server.New(eng, version, logger.FromContext(ctx)).Run(ctx)
		},
	}
}

// setup loads the config, applies arguments and flags over it, and returns a
// context carrying the logger plus a ready engine.
func (f *flags) setup(ctx context.Context, args []string) (context.Context, *engine.Engine, error) {
	cfgPath := f.configPath
	if cfgPath == "" {
		cfgPath = config.Find(args[0])
	}
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.Load(cfgPath); err != nil {
			return ctx, nil, err
		}
	}

	cfg.Source, cfg.Output = args[0], args[1]
	if f.logLevel != "" {
		if !logger.LogLevel(f.logLevel).Valid() {
			return ctx, nil, fmt.Errorf("invalid --log-level %q", f.logLevel)
		}
		cfg.LogLevel = strings.ToLower(f.logLevel)
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	cfg.SkipAutoRegister = cfg.SkipAutoRegister || f.skipAutoRegister
	cfg.AllowDuplicateClasses = cfg.AllowDuplicateClasses || f.allowDuplicates
	cfg.DryRun = f.dryRun

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.LogLevel(cfg.LogLevel)
	ctx = logger.ContextWithLogger(ctx, logger.NewLogger(logCfg))
	if cfgPath != "" {
		logger.FromContext(ctx).Debug("loaded config", "path", cfgPath)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, eng, nil
}

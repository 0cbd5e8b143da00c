package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/aluiziolira/hyppado-ingest/parser"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	cfg       *config.Config
	verbose   bool
	envFile   string
	exportDir string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "hyppado",
		Short:         "Serve and export normalized Kalodata exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional .env file with HYPPADO_* variables")
	root.PersistentFlags().StringVar(&a.exportDir, "export-dir", "", "Directory holding <kind>-<range>.xlsx exports")

	root.AddCommand(newServeCmd(a), newExportCmd(a), newListCmd(a))
	return root
}

// setup loads configuration in order: defaults, .env, environment, flags.
func (a *app) setup() error {
	config.LoadDotEnv(a.envFile)

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if a.exportDir != "" {
		cfg.ExportDir = a.exportDir
	}
	if a.verbose {
		cfg.Verbose = true
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return err
	}
	if err := parser.ValidateSchemas(); err != nil {
		slog.Error("invalid column schema", slog.Any("error", err))
		return err
	}
	a.cfg = cfg
	return nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Package cli provides the sheetflow command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetflow/internal/config"
	"github.com/JonMunkholm/sheetflow/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// ErrRejected is returned by run --strict when any file was rejected.
var ErrRejected = errors.New("one or more files were rejected")

type configKey struct{}

type globalOptions struct {
	envFile string
	mode    string
	logFile *os.File
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sheetflow",
		Short: "Classify and normalize tabular files against declared schemas",
		Long: `sheetflow reads spreadsheets and delimited text files, assigns each one to
a record type declared in the schema registry, normalizes its columns, dates
and numbers, and writes one delimited file per type.

Configuration comes from environment variables, optionally loaded from a
.env file. The original Spanish variable names are accepted as well.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.logFile != nil {
				_ = opts.logFile.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&opts.mode, "mode", "m", "", "input mode override: xlsx, csv or text")

	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"xlsx", "csv", "text"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSchemasCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

// load reads the dotenv file, the environment and flag overrides, then sets
// up logging.
func (o *globalOptions) load() (*config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Overload(o.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", o.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.mode != "" {
		cfg.Format.Mode = o.mode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	var extra []io.Writer
	if cfg.Logging.Dir != "" {
		f, err := openLogFile(cfg.Logging.Dir, time.Now())
		if err != nil {
			return nil, err
		}
		o.logFile = f
		extra = append(extra, f)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, extra...)
	slog.Debug("configuration loaded", "config", cfg.String())

	return cfg, nil
}

// openLogFile creates one log file per process start in dir.
func openLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := filepath.Join(dir, "sheetflow_"+now.Format("20060102_150405")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// getConfig returns the configuration loaded by the root command.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	panic("cli: configuration not loaded")
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// It returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

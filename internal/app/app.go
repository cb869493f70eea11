// Package app wires configuration, the conversion service, history and the
// downstream uploader into the run cycle shared by every command.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/sheetflow/internal/config"
	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/history"
	"github.com/JonMunkholm/sheetflow/internal/logging"
	"github.com/JonMunkholm/sheetflow/internal/source"
	"github.com/JonMunkholm/sheetflow/internal/transport"
)

// RunResult is what one cycle produced. Skipped is set when there were no
// inputs and nothing was touched.
type RunResult struct {
	Report      core.RunReport    `json:"report"`
	Upload      *transport.Result `json:"upload,omitempty"`
	UploadError string            `json:"uploadError,omitempty"`
	Skipped     bool              `json:"skipped,omitempty"`
}

// OK reports whether every file converted and every output was sent.
func (r RunResult) OK() bool {
	if !r.Report.OK() || r.UploadError != "" {
		return false
	}
	return r.Upload == nil || r.Upload.OK()
}

// App holds the long-lived pieces of one process.
type App struct {
	cfg      *config.Config
	mode     core.InputMode
	inSep    rune
	service  *core.Service
	output   *source.OutputDir
	history  history.Store
	uploader transport.Uploader
	pool     *pgxpool.Pool
	gate     *runGate
}

// Option overrides a component built from configuration.
type Option func(*App)

// WithHistory replaces the configured history store.
func WithHistory(store history.Store) Option {
	return func(a *App) { a.history = store }
}

// WithUploader replaces the configured uploader.
func WithUploader(u transport.Uploader) Option {
	return func(a *App) { a.uploader = u }
}

// New builds the application from cfg. A schema or replacement file that
// cannot be loaded is logged and the app starts degraded; anything else
// that fails is returned.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:  cfg,
		mode: core.InputMode(cfg.Format.Mode),
		gate: newRunGate(cfg.Server.RunWait),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.inSep, _ = utf8.DecodeRuneInString(cfg.Format.InputSeparator)

	reg, err := core.LoadRegistry(cfg.Paths.SchemaFile)
	if err != nil {
		slog.Warn("schema registry degraded, validation disabled",
			"file", cfg.Paths.SchemaFile,
			"error", err,
		)
	} else if reg.Len() == 0 {
		slog.Warn("schema registry is empty, validation disabled", "file", cfg.Paths.SchemaFile)
	} else {
		slog.Info("schemas loaded", "file", cfg.Paths.SchemaFile, "count", reg.Len())
	}
	for _, p := range reg.Problems() {
		slog.Warn("schema entry ignored", "error", p)
	}

	rules, err := core.LoadReplacements(cfg.Paths.ReplacementsFile)
	if err != nil {
		slog.Warn("replacements not loaded, substitution disabled",
			"file", cfg.Paths.ReplacementsFile,
			"error", err,
		)
	}

	a.output, err = source.NewOutputDir(cfg.Paths.Output)
	if err != nil {
		return nil, err
	}

	a.service, err = core.NewService(core.ServiceConfig{
		Registry:         reg,
		Replacements:     rules,
		InputSeparator:   cfg.Format.InputSeparator,
		OutputSeparator:  cfg.Format.OutputSeparator,
		DecimalSeparator: cfg.Format.DecimalSeparator,
		Sink:             a.output,
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	if a.history == nil {
		if err := a.openHistory(ctx); err != nil {
			return nil, err
		}
	}

	if a.uploader == nil {
		a.uploader, err = newUploader(cfg.Transport)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *App) openHistory(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		slog.Info("no database configured, run history kept in memory")
		a.history = history.NewMemoryStore(history.DefaultMemoryCapacity)
		return nil
	}

	pool, err := history.Connect(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	store := history.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("prepare history schema: %w", err)
	}
	a.pool = pool
	a.history = store
	return nil
}

func newUploader(cfg config.TransportConfig) (transport.Uploader, error) {
	if !cfg.Enabled() {
		slog.Info("downstream upload disabled, running dry", "skip", cfg.Skip)
		return transport.DryRunUploader{}, nil
	}
	u, err := transport.NewS3Uploader(cfg)
	if err != nil {
		return nil, fmt.Errorf("create uploader: %w", err)
	}
	slog.Info("downstream upload enabled", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "prefix", cfg.Prefix)
	return u, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

// Mode returns the configured input mode.
func (a *App) Mode() core.InputMode { return a.mode }

// InputDir returns the directory scanned for inputs.
func (a *App) InputDir() string { return a.cfg.InputDir() }

// Registry returns the loaded schemas.
func (a *App) Registry() *core.Registry { return a.service.Registry() }

// History returns the run history store.
func (a *App) History() history.Store { return a.history }

// Validate checks delimited text against the columns of typeID.
func (a *App) Validate(typeID, content string) error {
	return a.service.Validate(typeID, content)
}

// Running reports whether a run is in progress and when it started.
func (a *App) Running() (time.Time, bool) { return a.gate.Busy() }

// RunOnce performs one cycle: list inputs, clean the output directory,
// convert, drop processed inputs, upload and record the report.
//
// A cycle with no inputs is skipped before the output is cleaned, so a
// timer or an unrelated event never wipes the last good output. Per-file
// failures are in the report; the error is reserved for failures that
// stopped the cycle. Cycles never overlap; a caller that cannot get in
// within RUN_WAIT_TIMEOUT gets ErrRunInProgress.
func (a *App) RunOnce(ctx context.Context) (RunResult, error) {
	if err := a.gate.Acquire(ctx); err != nil {
		return RunResult{}, err
	}
	defer a.gate.Release()

	logger := logging.FromContext(ctx)
	dir := a.cfg.InputDir()

	paths, err := source.List(dir, a.mode)
	if err != nil {
		return RunResult{}, err
	}
	if len(paths) == 0 {
		logger.Info("no input files, run skipped", "dir", dir, "mode", string(a.mode))
		return RunResult{Skipped: true}, nil
	}

	if a.cfg.Format.CleanOutput {
		if err := a.output.Clean(); err != nil {
			return RunResult{}, err
		}
	}

	var report core.RunReport
	var runErr error
	if a.mode == core.ModeText {
		report, runErr = a.service.RunText(ctx, source.TextInputs(paths))
	} else {
		report, runErr = a.service.RunGrids(ctx, a.mode, source.GridInputs(paths, a.mode, a.inSep))
	}
	res := RunResult{Report: report}
	logger = logging.WithFields(ctx, "run_id", report.RunID)

	if !a.cfg.Format.KeepInput {
		if err := source.RemoveProcessed(dir, report); err != nil {
			logger.Warn("processed inputs not removed", "dir", dir, "error", err)
		}
	}

	if runErr == nil && len(report.Succeeded) > 0 {
		up, err := a.uploader.Upload(ctx, a.output.Dir())
		if err != nil {
			logger.Error("upload failed", "error", err)
			res.UploadError = err.Error()
		} else {
			res.Upload = &up
		}
	}

	// The report is recorded even for a cancelled run.
	if err := a.history.SaveRun(context.WithoutCancel(ctx), report); err != nil {
		logger.Warn("run history not saved", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Info("run cancelled", "converted", len(report.Succeeded))
		}
		return res, runErr
	}
	return res, nil
}

package core

import (
	"context"

	"github.com/JonMunkholm/sheetflow/internal/logging"
)

// Reporter receives structured events from a run. Implementations must not
// block; they are called inline while the batch is processed.
type Reporter interface {
	Classified(ctx context.Context, file, typeID string, method MatchMethod)
	Rejected(ctx context.Context, file string, err error)
	Warning(ctx context.Context, file string, err error)
	Converted(ctx context.Context, res FileResult, stats TransformStats)
	RunFinished(ctx context.Context, report RunReport)
}

// LogReporter writes run events through slog.
type LogReporter struct{}

func (LogReporter) Classified(ctx context.Context, file, typeID string, method MatchMethod) {
	logging.FromContext(ctx).Info("file classified",
		"file", file,
		"type", typeID,
		"method", string(method),
	)
}

func (LogReporter) Rejected(ctx context.Context, file string, err error) {
	msg := MapError(err)
	logging.FromContext(ctx).Error("file rejected",
		"file", file,
		"kind", Kind(err),
		"code", msg.Code,
		"error", err,
	)
}

func (LogReporter) Warning(ctx context.Context, file string, err error) {
	logging.FromContext(ctx).Warn("conversion warning",
		"file", file,
		"kind", Kind(err),
		"detail", err.Error(),
	)
}

func (LogReporter) Converted(ctx context.Context, res FileResult, stats TransformStats) {
	logging.FromContext(ctx).Info("file converted",
		"file", res.File,
		"type", res.TypeID,
		"output", res.Output,
		"rows", res.Rows,
		"columns", res.Columns,
		"skipped_rows", stats.SkippedRows,
		"date_columns", stats.DateColumns,
		"date_cells", stats.DateCells,
		"numeric_cells", stats.NumericCells,
		"substitutions", res.Substitutions,
		"separator_replacements", res.SeparatorReplacements,
		"date_fallbacks", res.DateFallbacks,
	)
}

func (LogReporter) RunFinished(ctx context.Context, report RunReport) {
	logger := logging.FromContext(ctx)
	logger.Info("run finished",
		"mode", string(report.Mode),
		"trigger", report.Trigger,
		"total", report.Total(),
		"succeeded", len(report.Succeeded),
		"rejected", len(report.Rejected),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	for _, r := range report.Succeeded {
		logger.Info("run summary: converted", "file", r.File, "output", r.Output, "type", r.TypeID)
	}
	for _, r := range report.Rejected {
		logger.Warn("run summary: rejected", "file", r.File, "code", r.ErrorCode, "error", r.Error)
	}
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) Classified(context.Context, string, string, MatchMethod) {}
func (NopReporter) Rejected(context.Context, string, error) {}
func (NopReporter) Warning(context.Context, string, error) {}
func (NopReporter) Converted(context.Context, FileResult, TransformStats) {}
func (NopReporter) RunFinished(context.Context, RunReport) {}

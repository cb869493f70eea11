package core

import "context"

type contextKey string

const ctxKeyTrigger contextKey = "run_trigger"

// Run triggers recorded on reports.
const (
	TriggerCLI   = "cli"
	TriggerWatch = "watch"
	TriggerHTTP  = "http"
)

// ContextWithTrigger records what started a run.
func ContextWithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// TriggerFromContext extracts the run trigger from context.
func TriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTrigger).(string); ok {
		return v
	}
	return ""
}

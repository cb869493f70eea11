package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetflow/internal/app"
	"github.com/JonMunkholm/sheetflow/internal/config"
	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/source"
	"github.com/JonMunkholm/sheetflow/internal/watch"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run a batch whenever input files appear or change",
		Long: `Watch the input directory and run a batch once it has been quiet for
WATCH_DEBOUNCE. Files already present are converted at startup.
WATCH_POLL_INTERVAL adds a fixed-interval run for mounts that do not deliver
filesystem events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := getConfig(ctx)

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return newWatcher(a, cfg).Watch(ctx)
		},
	}
}

// newWatcher builds the input directory watcher of a.
func newWatcher(a *app.App, cfg *config.Config) *watch.Watcher {
	opts := watch.Options{
		Dir:          a.InputDir(),
		Ext:          source.Extension(a.Mode()),
		Debounce:     cfg.Watch.Debounce,
		PollInterval: cfg.Watch.PollInterval,
	}
	return watch.New(opts, func(ctx context.Context) error {
		_, err := a.RunOnce(core.ContextWithTrigger(ctx, core.TriggerWatch))
		return err
	})
}

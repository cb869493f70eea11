package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetflow/internal/app"
	"github.com/JonMunkholm/sheetflow/internal/web"
)

func newServeCommand() *cobra.Command {
	var withWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API",
		Long: `Serve health, schema and run history endpoints, and POST /api/runs to
start a batch. With --watch the input directory is watched as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := getConfig(ctx)

			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := web.NewServer(a, cfg.Server)

			watchErr := make(chan error, 1)
			if withWatch {
				go func() { watchErr <- newWatcher(a, cfg).Watch(ctx) }()
			}

			serveErr := make(chan error, 1)
			go func() { serveErr <- server.Start() }()

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case err := <-watchErr:
				if err != nil {
					slog.Error("watcher stopped", "error", err)
				}
				<-ctx.Done()
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withWatch, "watch", false, "also run batches on input directory changes")
	return cmd
}

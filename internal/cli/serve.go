package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background sync loop",
		Long: `Runs a sync pass immediately and then on a fixed interval
(SYNC_INTERVAL_SECONDS, default 300) until interrupted. Failed passes
are retried on the next tick; dirty rows are never lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			interval := time.Duration(app.Cfg.SyncIntervalSecond) * time.Second
			app.Logg.WithField("interval", interval.String()).Info("sync loop started")

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			runPass(ctx, app)
			for {
				select {
				case <-ctx.Done():
					app.Logg.Info("sync loop stopped")
					return nil
				case <-ticker.C:
					runPass(ctx, app)
				}
			}
		},
	}
}

func runPass(ctx context.Context, app *App) {
	results := app.Engine.SyncAll(ctx)
	for entity, result := range results {
		if !result.Success {
			app.Logg.WithFields(logrus.Fields{
				"entity":  entity,
				"message": result.Message,
			}).Warn("sync pass incomplete")
		}
	}
}

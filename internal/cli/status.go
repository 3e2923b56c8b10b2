package cli

import (
	"github.com/spf13/cobra"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-table sync progress and connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			status, err := app.Engine.Status(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("%-15s %8s %10s %8s\n", "table", "rows", "unsynced", "synced")
			for _, entity := range domain.SyncOrder {
				ts := status.PerType[entity]
				cmd.Printf("%-15s %8d %10d %7.1f%%\n", entity, ts.Total, ts.Unsynced, ts.SyncedPercent)
			}

			connection := "offline"
			if status.HasConnection {
				connection = "online"
			}
			session := "locked"
			if status.IsAuthenticated {
				session = "unlocked"
			}
			cmd.Printf("\nmirror: %s, session: %s\n", connection, session)
			return nil
		},
	}
}

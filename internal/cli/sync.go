package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
)

func NewSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one full push/pull pass against the mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			results := app.Engine.SyncAll(cmd.Context())
			printResults(cmd, results)
			for _, result := range results {
				if !result.Success {
					return fmt.Errorf("sync finished with failures")
				}
			}
			return nil
		},
	}
}

func NewForceUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "force-upload",
		Short: "Queue every local row for re-upload and sync",
		Long: `Marks every row in every table as unsynced and runs a full sync
pass. Useful after restoring the mirror from a backup. Timestamps are
not touched, so rows that are genuinely older than the mirror's copy
still lose the conflict.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			marked, results, err := app.Engine.ForceUploadAll(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("queued %d rows\n", marked)
			printResults(cmd, results)
			return nil
		},
	}
}

func printResults(cmd *cobra.Command, results map[domain.EntityType]domain.SyncResult) {
	for _, entity := range domain.SyncOrder {
		result, ok := results[entity]
		if !ok {
			continue
		}
		state := "ok"
		if !result.Success {
			state = "failed"
		}
		cmd.Printf("%-15s %-7s %s\n", entity, state, result.Message)
	}
}

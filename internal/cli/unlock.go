package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/auth"
)

func NewUnlockCommand() *cobra.Command {
	var passcode string

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock remote sync with the owner passcode",
		Long: `Verifies the passcode against SYNC_PASSCODE_HASH and starts a sync
session. The session token is stored next to the database file and
picked up by later runs until it expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if app.Cfg.SyncPasscodeHash == "" {
				cmd.Println("no passcode configured, sync is always unlocked")
				return nil
			}

			token, err := app.Unlock(passcode)
			if err != nil {
				return err
			}
			if err := app.SaveSession(token); err != nil {
				return fmt.Errorf("session unlocked but not persisted: %w", err)
			}
			cmd.Println("sync unlocked")
			return nil
		},
	}

	cmd.Flags().StringVar(&passcode, "passcode", "", "owner passcode")
	_ = cmd.MarkFlagRequired("passcode")
	return cmd
}

func NewHashPasscodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passcode <passcode>",
		Short: "Print the bcrypt hash to put in SYNC_PASSCODE_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPasscode(args[0])
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}

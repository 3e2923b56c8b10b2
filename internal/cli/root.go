// Package cli holds the dairyd commands. The daily flow is: record
// bills and payments locally all day, and let sync reconcile with the
// mirror whenever a connection and an unlocked session are available.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dairyd",
		Short: "Local-first back office for a dairy distribution shop",
		Long: `dairyd keeps clients, products, bills, the khata ledger and the
daily demand batch in a local SQLite database, and mirrors them to a
remote Postgres document store when one is configured.

The local database is always authoritative: every operation works
offline, and sync is a background concern.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewClientCommand())
	cmd.AddCommand(NewProductCommand())
	cmd.AddCommand(NewBillCommand())
	cmd.AddCommand(NewPayCommand())
	cmd.AddCommand(NewCreditCommand())
	cmd.AddCommand(NewBalanceCommand())
	cmd.AddCommand(NewStatementCommand())
	cmd.AddCommand(NewDemandCommand())
	cmd.AddCommand(NewSyncCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewForceUploadCommand())
	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewUnlockCommand())
	cmd.AddCommand(NewHashPasscodeCommand())

	return cmd
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
)

func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", value)
	}
	return day, nil
}

func NewDemandCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demand",
		Short: "Manage the daily demand batch",
	}

	var date string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the batch for a day with per-product totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := parseDay(date)
			if err != nil {
				return err
			}
			batch, err := app.Demand.BatchForDate(cmd.Context(), day)
			if err != nil {
				return err
			}

			state := "open"
			if batch.Closed {
				state = "closed"
			}
			cmd.Printf("%s  %s  %s\n", batch.RemoteID, batch.Date.Format("2006-01-02"), state)
			for _, entry := range batch.Entries {
				if entry.Deleted {
					continue
				}
				cmd.Printf("  %s  client %s  product %s  qty %d\n",
					entry.RemoteID, entry.ClientID, entry.ProductID, entry.Quantity)
			}

			totals, err := app.Demand.Totals(cmd.Context(), batch.RemoteID)
			if err != nil {
				return err
			}
			for productID, qty := range totals {
				cmd.Printf("total  %s  %d\n", productID, qty)
			}

			sheet, err := app.Demand.ClientTotals(cmd.Context(), batch.RemoteID)
			if err != nil {
				return err
			}
			for cID, perProduct := range sheet {
				for pID, qty := range perProduct {
					cmd.Printf("sheet  client %s  product %s  qty %d\n", cID, pID, qty)
				}
			}
			return nil
		},
	}
	show.Flags().StringVar(&date, "date", "", "day, YYYY-MM-DD (default today)")

	var clientID, productID string
	var qty int
	var addDate string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a client demand line to the day's batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := parseDay(addDate)
			if err != nil {
				return err
			}
			batch, err := app.Demand.BatchForDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			updated, err := app.Demand.AddEntry(cmd.Context(), domain.DemandEntry{
				BatchID:   batch.RemoteID,
				ClientID:  clientID,
				ProductID: productID,
				Quantity:  qty,
			})
			if err != nil {
				return err
			}
			cmd.Println(updated.Entries[len(updated.Entries)-1].RemoteID)
			return nil
		},
	}
	add.Flags().StringVar(&clientID, "client", "", "client id")
	add.Flags().StringVar(&productID, "product", "", "product id")
	add.Flags().IntVar(&qty, "qty", 0, "quantity in units")
	add.Flags().StringVar(&addDate, "date", "", "day, YYYY-MM-DD (default today)")
	_ = add.MarkFlagRequired("client")
	_ = add.MarkFlagRequired("product")
	_ = add.MarkFlagRequired("qty")

	var updateQty int
	update := &cobra.Command{
		Use:   "set-quantity <entry-id>",
		Short: "Change a demand line's quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			_, err = app.Demand.UpdateEntry(cmd.Context(), args[0], updateQty)
			return err
		},
	}
	update.Flags().IntVar(&updateQty, "qty", 0, "new quantity")
	_ = update.MarkFlagRequired("qty")

	rm := &cobra.Command{
		Use:   "rm <entry-id>",
		Short: "Remove a demand line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			_, err = app.Demand.RemoveEntry(cmd.Context(), args[0])
			return err
		},
	}

	var closeDate string
	var deductStock, nextDay bool
	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close the day's batch",
		Long: `Closes the batch for the day. With --deduct-stock the aggregated
quantities are added to product stock as incoming goods; with
--next-day an open batch for tomorrow is created. Closing an already
closed batch is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			day, err := parseDay(closeDate)
			if err != nil {
				return err
			}
			batch, err := app.Demand.BatchForDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			closed, err := app.Demand.Close(cmd.Context(), batch.RemoteID, domain.CloseBatchOptions{
				DeductStock:   deductStock,
				CreateNextDay: nextDay,
			})
			if err != nil {
				return err
			}
			cmd.Printf("%s closed, %d entries\n", closed.Date.Format("2006-01-02"), len(closed.Entries))
			return nil
		},
	}
	closeCmd.Flags().StringVar(&closeDate, "date", "", "day, YYYY-MM-DD (default today)")
	closeCmd.Flags().BoolVar(&deductStock, "deduct-stock", false, "add aggregated quantities to product stock")
	closeCmd.Flags().BoolVar(&nextDay, "next-day", false, "create an open batch for the following day")

	cmd.AddCommand(show, add, update, rm, closeCmd)
	return cmd
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
)

func NewBillCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Create and manage bills",
	}

	var clientID, paid string
	var items []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a bill for a client",
		Long: `Creates a bill atomically: stock is checked and decremented, the
bill recorded and the khata updated in one transaction. Items are
given as product-id:quantity pairs.`,
		Example: `  dairyd bill create --client C1 --item P1:4 --item P2:2 --paid 100.00`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			bill := domain.Bill{ClientID: clientID}
			for _, raw := range items {
				productID, qtyStr, ok := strings.Cut(raw, ":")
				if !ok {
					return fmt.Errorf("invalid item %q: want product-id:quantity", raw)
				}
				qty, err := strconv.Atoi(qtyStr)
				if err != nil || qty < 1 {
					return fmt.Errorf("invalid quantity in %q", raw)
				}
				bill.Items = append(bill.Items, domain.BillItem{ProductID: productID, Quantity: qty})
			}
			if paid != "" {
				if bill.PaidPaise, err = parseRupees(paid); err != nil {
					return err
				}
			}

			created, err := app.Billing.CreateBill(cmd.Context(), bill)
			if err != nil {
				return err
			}
			cmd.Printf("%s total %s\n", created.RemoteID, formatPaise(created.TotalPaise))
			return nil
		},
	}
	create.Flags().StringVar(&clientID, "client", "", "client id")
	create.Flags().StringArrayVar(&items, "item", nil, "product-id:quantity, repeatable")
	create.Flags().StringVar(&paid, "paid", "", "amount paid now in rupees")
	_ = create.MarkFlagRequired("client")
	_ = create.MarkFlagRequired("item")

	var listClient string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a client's bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			bills, err := app.Billing.ListBillsByClient(cmd.Context(), listClient)
			if err != nil {
				return err
			}
			for _, bill := range bills {
				cmd.Printf("%s  %s  total %8s  paid %8s  items %d\n",
					bill.RemoteID, bill.Date.Format("2006-01-02"),
					formatPaise(bill.TotalPaise), formatPaise(bill.PaidPaise), len(bill.Items))
			}
			return nil
		},
	}
	list.Flags().StringVar(&listClient, "client", "", "client id")
	_ = list.MarkFlagRequired("client")

	cancel := &cobra.Command{
		Use:   "cancel <bill-id>",
		Short: "Reverse a bill, restoring stock and balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Billing.DeleteBill(cmd.Context(), args[0])
		},
	}

	var qty int
	setQty := &cobra.Command{
		Use:   "set-quantity <item-id>",
		Short: "Correct a bill line's quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			bill, err := app.Billing.UpdateItemQuantity(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}
			cmd.Printf("%s total %s\n", bill.RemoteID, formatPaise(bill.TotalPaise))
			return nil
		},
	}
	setQty.Flags().IntVar(&qty, "quantity", 0, "new quantity")
	_ = setQty.MarkFlagRequired("quantity")

	rmItem := &cobra.Command{
		Use:   "rm-item <item-id>",
		Short: "Remove a line from a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			bill, err := app.Billing.DeleteItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s total %s\n", bill.RemoteID, formatPaise(bill.TotalPaise))
			return nil
		},
	}

	cmd.AddCommand(create, list, cancel, setQty, rmItem)
	return cmd
}

func NewPayCommand() *cobra.Command {
	var clientID, amount, method, reference, note string

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Record a client payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			amountPaise, err := parseRupees(amount)
			if err != nil {
				return err
			}
			entry, err := app.Billing.RecordPayment(cmd.Context(), domain.PaymentRequest{
				ClientID:        clientID,
				AmountPaise:     amountPaise,
				PaymentMethod:   method,
				ReferenceNumber: reference,
				Note:            note,
			})
			if err != nil {
				return err
			}
			cmd.Println(entry.RemoteID)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in rupees")
	cmd.Flags().StringVar(&method, "method", "", "cash, upi, bank")
	cmd.Flags().StringVar(&reference, "ref", "", "reference number")
	cmd.Flags().StringVar(&note, "note", "", "note")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func NewCreditCommand() *cobra.Command {
	var clientID, amount, note string

	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Record a goodwill credit against a client's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			amountPaise, err := parseRupees(amount)
			if err != nil {
				return err
			}
			entry, err := app.Billing.RecordCredit(cmd.Context(), clientID, amountPaise, note)
			if err != nil {
				return err
			}
			cmd.Println(entry.RemoteID)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in rupees")
	cmd.Flags().StringVar(&note, "note", "", "reason for the credit")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func NewBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <client-id>",
		Short: "Show what a client currently owes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			balance, err := app.Ledger.CurrentBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(formatPaise(balance))
			return nil
		},
	}
}

func NewStatementCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "statement <client-id>",
		Short: "Show a client's khata with running balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			statement, err := app.Ledger.Statement(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, line := range statement {
				cmd.Printf("%s  %-10s %10s  balance %10s  %s\n",
					line.Entry.Date.Format("2006-01-02"), line.Entry.Type,
					formatPaise(line.Entry.AmountPaise), formatPaise(line.BalancePaise),
					line.Entry.Note)
			}
			return nil
		},
	}
}

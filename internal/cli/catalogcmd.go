package cli

import (
	"github.com/spf13/cobra"

	"github.com/rjniknt7-dev/dairy-manager-sub001/internal/domain"
)

func NewClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}

	var name, phone, address string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			client, err := app.Catalog.SaveClient(cmd.Context(), domain.Client{
				Name: name, Phone: phone, Address: address,
			})
			if err != nil {
				return err
			}
			cmd.Println(client.RemoteID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "client name")
	add.Flags().StringVar(&phone, "phone", "", "phone number")
	add.Flags().StringVar(&address, "address", "", "delivery address")
	_ = add.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			clients, err := app.Catalog.ListClients(cmd.Context())
			if err != nil {
				return err
			}
			for _, client := range clients {
				cmd.Printf("%s  %-20s %s\n", client.RemoteID, client.Name, client.Phone)
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <client-id>",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Catalog.DeleteClient(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, list, rm)
	return cmd
}

func NewProductCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products and stock",
	}

	var name, price, cost string
	var unitGrams, stock int
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			pricePaise, err := parseRupees(price)
			if err != nil {
				return err
			}
			costPaise := int64(0)
			if cost != "" {
				if costPaise, err = parseRupees(cost); err != nil {
					return err
				}
			}

			product, err := app.Catalog.SaveProduct(cmd.Context(), domain.Product{
				Name:       name,
				UnitGrams:  unitGrams,
				PricePaise: pricePaise,
				CostPaise:  costPaise,
				Stock:      stock,
			})
			if err != nil {
				return err
			}
			cmd.Println(product.RemoteID)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "product name")
	add.Flags().StringVar(&price, "price", "", "selling price in rupees, e.g. 27.50")
	add.Flags().StringVar(&cost, "cost", "", "cost price in rupees")
	add.Flags().IntVar(&unitGrams, "unit-grams", 0, "unit weight in grams")
	add.Flags().IntVar(&stock, "stock", 0, "opening stock in units")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("price")

	list := &cobra.Command{
		Use:   "list",
		Short: "List products with stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			products, err := app.Catalog.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			for _, product := range products {
				cmd.Printf("%s  %-20s %8s  stock %d\n",
					product.RemoteID, product.Name, formatPaise(product.PricePaise), product.Stock)
			}
			return nil
		},
	}

	var delta int
	adjust := &cobra.Command{
		Use:   "adjust-stock <product-id>",
		Short: "Apply a manual stock correction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			product, err := app.Catalog.AdjustStock(cmd.Context(), args[0], delta)
			if err != nil {
				return err
			}
			cmd.Printf("%s stock %d\n", product.Name, product.Stock)
			return nil
		},
	}
	adjust.Flags().IntVar(&delta, "delta", 0, "signed unit change, e.g. -3")
	_ = adjust.MarkFlagRequired("delta")

	cmd.AddCommand(add, list, adjust)
	return cmd
}

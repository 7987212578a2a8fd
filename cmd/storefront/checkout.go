package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/nikolayk812/cartsync/internal/storefront"
	"github.com/spf13/cobra"
)

func newCheckoutCmd(flags *globalFlags) *cobra.Command {
	var (
		payment  string
		address  string
		discount string
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}

			if discount != "" {
				cart := storefront.NewCartPage(a.session, a.projection, a.log)
				if err := settle(cmd, cart.Mount(cmd.Context())); err != nil {
					return err
				}
				err := applyDiscount(cmd, cart, discount)
				cart.Unmount()
				if err != nil {
					return err
				}
			}

			page := storefront.NewCheckoutPage(a.session, a.client, a.projection, a.log)
			if err := settle(cmd, page.Mount(cmd.Context())); err != nil {
				return err
			}
			defer page.Unmount()

			printCart(cmd, page.View().Cart)

			page.SetPaymentMethod(payment)
			page.SetShippingAddress(address)
			out := page.PlaceOrder()
			if err := settle(cmd, out); err != nil {
				return err
			}
			if page.OrderID() == "" {
				return errNoOrder(out)
			}

			cmd.Printf("order id:  %s\n", page.OrderID())
			return nil
		},
	}

	cmd.Flags().StringVar(&payment, "payment", "", "payment method")
	cmd.Flags().StringVar(&address, "address", "", "shipping address")
	cmd.Flags().StringVar(&discount, "discount", "", "discount code to apply")

	return cmd
}

// errNoOrder reports a checkout that ended without an order, for example
// missing details or a code the store rejected when charging.
func errNoOrder(out storefront.Outcome) error {
	if out.Message == "" {
		return errors.New("no order was placed")
	}
	return fmt.Errorf("no order was placed: %s", out.Message)
}

func newOrdersCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List placed orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}

			page := storefront.NewProfilePage(a.session, a.client, a.log)
			if err := settle(cmd, page.Mount(cmd.Context())); err != nil {
				return err
			}
			defer page.Unmount()

			view := page.View()
			if len(view.Orders) == 0 {
				cmd.Println("no orders yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ORDER\tSTATUS\tTOTAL\tPLACED")
			for _, o := range view.Orders {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.ID, o.Status, o.Total, o.CreatedAt.Format("2006-01-02 15:04"))
			}
			_ = tw.Flush()

			for _, c := range view.Counts {
				cmd.Printf("%s: %d\n", c.Status, c.Count)
			}
			return nil
		},
	}
}

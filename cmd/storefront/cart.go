package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/projection"
	"github.com/nikolayk812/cartsync/internal/storefront"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/currency"
)

func newCartCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
	}

	cmd.AddCommand(
		newCartShowCmd(flags),
		newCartAddCmd(flags),
		newCartQuantityCmd(flags, "inc", "Add one unit of a line", (*storefront.CartPage).Increment),
		newCartQuantityCmd(flags, "dec", "Remove one unit of a line", (*storefront.CartPage).Decrement),
		newCartQuantityCmd(flags, "remove", "Remove a line", (*storefront.CartPage).Remove),
	)

	return cmd
}

func newCartShowCmd(flags *globalFlags) *cobra.Command {
	var discount string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}

			page := storefront.NewCartPage(a.session, a.projection, a.log)
			if err := settle(cmd, page.Mount(cmd.Context())); err != nil {
				return err
			}
			defer page.Unmount()

			if discount != "" {
				if err := applyDiscount(cmd, page, discount); err != nil {
					return err
				}
			}

			printCart(cmd, page.View().Cart)
			return nil
		},
	}

	cmd.Flags().StringVar(&discount, "discount", "", "discount code to preview")
	return cmd
}

func newCartAddCmd(flags *globalFlags) *cobra.Command {
	var (
		productID string
		name      string
		price     string
		cur       string
		imageRef  string
		quantity  int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			product, err := parseProduct(productID, name, price, cur, imageRef)
			if err != nil {
				return err
			}

			a, err := newApp(flags)
			if err != nil {
				return err
			}

			if err := settle(cmd, storefront.AddToCart(cmd.Context(), a.session, product, quantity)); err != nil {
				return err
			}

			printCart(cmd, projection.Project(a.session.Snapshot().Cart, a.projection))
			return nil
		},
	}

	cmd.Flags().StringVar(&productID, "product-id", "", "product uuid")
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&price, "price", "", "unit price, e.g. 9.99")
	cmd.Flags().StringVar(&cur, "currency", "USD", "ISO 4217 currency of the price")
	cmd.Flags().StringVar(&imageRef, "image", "", "product image reference")
	cmd.Flags().IntVar(&quantity, "qty", 1, "quantity to add")
	_ = cmd.MarkFlagRequired("product-id")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func newCartQuantityCmd(
	flags *globalFlags,
	use, short string,
	action func(*storefront.CartPage, uuid.UUID) storefront.Outcome,
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PRODUCT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("product id[%s] is not a uuid: %w", args[0], err)
			}

			a, err := newApp(flags)
			if err != nil {
				return err
			}

			page := storefront.NewCartPage(a.session, a.projection, a.log)
			if err := settle(cmd, page.Mount(cmd.Context())); err != nil {
				return err
			}
			defer page.Unmount()

			if err := settle(cmd, action(page, productID)); err != nil {
				return err
			}

			printCart(cmd, page.View().Cart)
			return nil
		},
	}
}

// applyDiscount fails unless the code ended up on the cart.
func applyDiscount(cmd *cobra.Command, page *storefront.CartPage, code string) error {
	page.SetCodeInput(code)
	out := page.ApplyCode()
	if err := settle(cmd, out); err != nil {
		return err
	}
	if !page.View().Cart.HasDiscount() {
		return errors.New(out.Message)
	}
	return nil
}

func parseProduct(productID, name, price, cur, imageRef string) (domain.Product, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product id[%s] is not a uuid: %w", productID, err)
	}

	amount, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("price[%s] is not a number: %w", price, err)
	}

	unit, err := currency.ParseISO(cur)
	if err != nil {
		return domain.Product{}, fmt.Errorf("currency[%s] is not valid: %w", cur, err)
	}

	return domain.Product{
		ID:       id,
		Name:     name,
		Price:    domain.Money{Amount: amount, Currency: unit},
		ImageRef: imageRef,
	}, nil
}

func printCart(cmd *cobra.Command, view projection.CartView) {
	if view.Empty() {
		cmd.Println("cart is empty")
		return
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tUNIT\tTOTAL")
	for _, line := range view.Lines {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			line.ProductID, line.Name, line.Quantity,
			projection.Format(line.UnitPrice), projection.Format(line.LineTotal))
	}
	_ = tw.Flush()

	cmd.Printf("items:     %d\n", view.ItemCount)
	cmd.Printf("subtotal:  %s\n", projection.Format(view.Subtotal))
	if view.HasDiscount() {
		cmd.Printf("discount:  -%s (%s, %s%%)\n",
			projection.Format(view.DiscountAmount), view.DiscountCode, view.Percentage.String())
	}
	cmd.Printf("total:     %s\n", projection.Format(view.Total))
}

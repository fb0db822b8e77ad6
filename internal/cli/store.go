package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/KshitijGomber/arrow3-sub001/internal/domain"
	"github.com/KshitijGomber/arrow3-sub001/internal/storefront"
	"github.com/KshitijGomber/arrow3-sub001/pkg/pagination"
)

func (c *CLI) drones(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: arrow3 drones <list|get|featured>")
	}

	switch args[0] {
	case "list":
		return c.dronesList(ctx, args[1:])
	case "get":
		return c.dronesGet(ctx, args[1:])
	case "featured":
		return c.dronesFeatured(ctx)
	default:
		return fmt.Errorf("unknown drones subcommand %q", args[0])
	}
}

func (c *CLI) dronesList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drones list", flag.ContinueOnError)
	fs.SetOutput(c.out)
	category := fs.String("category", "", "filter by category (camera, handheld, power, specialized)")
	inStock := fs.Bool("in-stock", false, "only drones in stock")
	search := fs.String("search", "", "free-text search")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 20, "results per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := c.app.Services().Drones.List(ctx, storefront.ListOptions{
		Category: *category,
		InStock:  *inStock,
		Search:   *search,
		Page:     pagination.Params{Page: *page, PerPage: *perPage},
	})
	if err != nil {
		return err
	}

	for _, d := range result.Items {
		c.renderDroneLine(d)
	}
	fmt.Fprintf(c.out, "page %d/%d, %d drones total\n", result.Page, result.TotalPages, result.TotalCount)
	return nil
}

func (c *CLI) renderDroneLine(d domain.Drone) {
	stock := "in stock"
	if !d.InStock {
		stock = "out of stock"
	}
	fmt.Fprintf(c.out, "%-12s %-24s %-12s %8s  %s\n",
		d.ID, d.Name, d.Category, formatCents(d.PriceCents, d.Currency), stock)
}

func (c *CLI) dronesGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drones get", flag.ContinueOnError)
	fs.SetOutput(c.out)
	bySlug := fs.Bool("slug", false, "look up by URL slug instead of id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: arrow3 drones get <id> [--slug]")
	}

	var (
		drone *domain.Drone
		err   error
	)
	if *bySlug {
		drone, err = c.app.Services().Drones.GetBySlug(ctx, fs.Arg(0))
	} else {
		drone, err = c.app.Services().Drones.Get(ctx, fs.Arg(0))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "%s (%s)\n", drone.Name, drone.Model)
	fmt.Fprintf(c.out, "  category: %s\n", drone.Category)
	fmt.Fprintf(c.out, "  price:    %s\n", formatCents(drone.PriceCents, drone.Currency))
	fmt.Fprintf(c.out, "  stock:    %d\n", drone.StockQuantity)
	fmt.Fprintf(c.out, "  flight:   %d min, %.1f km range, %.0f km/h\n",
		drone.Specs.FlightTimeMinutes, drone.Specs.RangeKM, drone.Specs.MaxSpeedKMH)
	if drone.Specs.CameraResolution != "" {
		fmt.Fprintf(c.out, "  camera:   %s\n", drone.Specs.CameraResolution)
	}
	return nil
}

func (c *CLI) dronesFeatured(ctx context.Context) error {
	drones, err := c.app.Services().Drones.Featured(ctx)
	if err != nil {
		return err
	}
	for _, d := range drones {
		c.renderDroneLine(d)
	}
	return nil
}

func (c *CLI) orders(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: arrow3 orders <list|get|create|cancel>")
	}
	if err := c.requireAuth(); err != nil {
		return err
	}

	switch args[0] {
	case "list":
		return c.ordersList(ctx, args[1:])
	case "get":
		return c.ordersGet(ctx, args[1:])
	case "create":
		return c.ordersCreate(ctx, args[1:])
	case "cancel":
		return c.ordersCancel(ctx, args[1:])
	default:
		return fmt.Errorf("unknown orders subcommand %q", args[0])
	}
}

func (c *CLI) ordersList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders list", flag.ContinueOnError)
	fs.SetOutput(c.out)
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := c.app.Services().Orders.List(ctx, pagination.Params{Page: *page, PerPage: 20})
	if err != nil {
		return err
	}

	for _, o := range result.Items {
		fmt.Fprintf(c.out, "%-12s %-10s %8s  %s\n",
			o.ID, o.Status, formatCents(o.TotalCents, o.Currency), o.CreatedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(c.out, "page %d/%d, %d orders total\n", result.Page, result.TotalPages, result.TotalCount)
	return nil
}

func (c *CLI) ordersGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: arrow3 orders get <id>")
	}

	order, err := c.app.Services().Orders.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "order %s: %s\n", order.ID, order.Status)
	for _, item := range order.Items {
		fmt.Fprintf(c.out, "  %dx %-24s %8s\n",
			item.Quantity, item.DroneName, formatCents(item.UnitPriceCents, order.Currency))
	}
	fmt.Fprintf(c.out, "  subtotal: %s\n", formatCents(order.SubtotalCents, order.Currency))
	fmt.Fprintf(c.out, "  shipping: %s\n", formatCents(order.ShippingCents, order.Currency))
	fmt.Fprintf(c.out, "  total:    %s\n", formatCents(order.TotalCents, order.Currency))
	if order.IsCancelable() {
		fmt.Fprintln(c.out, "  (this order can still be canceled)")
	}
	return nil
}

func (c *CLI) ordersCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders create", flag.ContinueOnError)
	fs.SetOutput(c.out)
	droneID := fs.String("drone", "", "drone id to order")
	quantity := fs.Int("quantity", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *droneID == "" {
		return fmt.Errorf("usage: arrow3 orders create --drone <id> [--quantity n]")
	}

	address, err := c.promptAddress()
	if err != nil {
		return err
	}

	order, err := c.app.Services().Orders.Create(ctx, storefront.CreateOrderInput{
		Items:           []storefront.OrderItemInput{{DroneID: *droneID, Quantity: *quantity}},
		ShippingAddress: address,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "order %s placed, total %s\n", order.ID, formatCents(order.TotalCents, order.Currency))
	fmt.Fprintf(c.out, "run `arrow3 pay --order %s` to complete checkout\n", order.ID)
	return nil
}

func (c *CLI) promptAddress() (storefront.AddressInput, error) {
	var addr storefront.AddressInput
	fields := []struct {
		label string
		dst   *string
	}{
		{"full name", &addr.FullName},
		{"address line", &addr.AddressLine},
		{"city", &addr.City},
		{"state/province (optional)", &addr.State},
		{"postal code", &addr.PostalCode},
		{"country code (e.g. US)", &addr.Country},
		{"phone (optional)", &addr.Phone},
	}
	for _, f := range fields {
		v, err := c.prompt(f.label)
		if err != nil {
			return addr, err
		}
		*f.dst = v
	}
	return addr, nil
}

func (c *CLI) ordersCancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders cancel", flag.ContinueOnError)
	fs.SetOutput(c.out)
	reason := fs.String("reason", "", "cancellation reason")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: arrow3 orders cancel <id> [--reason text]")
	}

	order, err := c.app.Services().Orders.Cancel(ctx, fs.Arg(0), *reason)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "order %s canceled\n", order.ID)
	return nil
}

func (c *CLI) media(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "list" {
		return fmt.Errorf("usage: arrow3 media list --owner-type <drone|user> --owner-id <id>")
	}

	fs := flag.NewFlagSet("media list", flag.ContinueOnError)
	fs.SetOutput(c.out)
	ownerType := fs.String("owner-type", domain.MediaOwnerDrone, "owner type (drone or user)")
	ownerID := fs.String("owner-id", "", "owner id")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *ownerID == "" {
		return fmt.Errorf("usage: arrow3 media list --owner-type <drone|user> --owner-id <id>")
	}

	files, err := c.app.Services().Media.List(ctx, *ownerType, *ownerID)
	if err != nil {
		return err
	}

	for _, f := range files {
		fmt.Fprintf(c.out, "%-12s %-28s %-12s %8d bytes\n", f.ID, f.OriginalName, f.ContentType, f.Size)
	}
	fmt.Fprintf(c.out, "%d files\n", len(files))
	return nil
}

func (c *CLI) pay(ctx context.Context, args []string) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("pay", flag.ContinueOnError)
	fs.SetOutput(c.out)
	orderID := fs.String("order", "", "order id to pay for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orderID == "" {
		return fmt.Errorf("usage: arrow3 pay --order <id>")
	}

	card, err := c.promptCard()
	if err != nil {
		return err
	}

	payments := c.app.Services().Payments
	payment, err := payments.Create(ctx, storefront.CreatePaymentInput{
		OrderID: *orderID,
		Method:  domain.PaymentMethodCreditCard,
		Card:    card,
	})
	if err != nil {
		return err
	}

	if _, err := payments.Confirm(ctx, payment.ID); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "processing payment...")
	payment, err = payments.WaitForOutcome(ctx, payment.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "payment %s: %s\n", payment.ID, payment.Status)
	return nil
}

func (c *CLI) promptCard() (storefront.CardDetails, error) {
	var card storefront.CardDetails

	number, err := c.prompt("card number")
	if err != nil {
		return card, err
	}
	expiry, err := c.prompt("expiry (MM/YYYY)")
	if err != nil {
		return card, err
	}
	cvv, err := c.prompt("cvv")
	if err != nil {
		return card, err
	}
	holder, err := c.prompt("cardholder name")
	if err != nil {
		return card, err
	}

	var month, year int
	if _, err := fmt.Sscanf(expiry, "%d/%d", &month, &year); err != nil {
		return card, fmt.Errorf("expiry must look like 04/2028")
	}

	card.Number = number
	card.ExpMonth = month
	card.ExpYear = year
	card.CVV = cvv
	card.Holder = holder
	return card, nil
}

func (c *CLI) status(ctx context.Context) error {
	state := c.app.Session().State()
	fmt.Fprintf(c.out, "session: %s\n", state.Status())
	if state.IsAuthenticated() {
		fmt.Fprintf(c.out, "user:    %s\n", state.User().Email)
	}

	if err := c.app.Health(ctx); err != nil {
		fmt.Fprintf(c.out, "backend: unreachable (%v)\n", err)
		return nil
	}
	fmt.Fprintln(c.out, "backend: ok")
	return nil
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%.2f %s", float64(cents)/100, currency)
}

// Command storefront is the cake shop client. It drives the whole order
// lifecycle from the terminal: sign in, build a cart, check out, track
// orders, and run admin bulk operations.
//
//	storefront login <username> <password>
//	storefront logout
//	storefront cart
//	storefront cart add <product-id> [variant-id] [quantity]
//	storefront cart qty <item-id> <quantity>
//	storefront cart note <item-id> <note...>
//	storefront cart rm <item-id>
//	storefront checkout <address-id> <delivery RFC3339> [notes...]
//	storefront orders
//	storefront order <order-id>
//	storefront history <order-id>
//	storefront reorder <order-id>
//	storefront wishlist <product-id>
//	storefront admin ship|process|deliver|cancel <order-id>...
//	storefront admin delete <order-id>...
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/bakehouse/storefront-go/internal/admin"
	"github.com/bakehouse/storefront-go/internal/backend"
	"github.com/bakehouse/storefront-go/internal/cart"
	"github.com/bakehouse/storefront-go/internal/checkout"
	"github.com/bakehouse/storefront-go/internal/domain"
	"github.com/bakehouse/storefront-go/internal/gateway"
	gwsqlite "github.com/bakehouse/storefront-go/internal/gateway/sqlite"
	"github.com/bakehouse/storefront-go/internal/pkg/cache"
	"github.com/bakehouse/storefront-go/internal/pkg/config"
	"github.com/bakehouse/storefront-go/internal/pkg/telemetry"
	"github.com/bakehouse/storefront-go/internal/tracking"
	auditsqlite "github.com/bakehouse/storefront-go/internal/tracking/audit/sqlite"
	"github.com/bakehouse/storefront-go/internal/wishlist"
)

func main() {
	telemetry.InitLogger("storefront")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// app bundles the wired services for command dispatch.
type app struct {
	session  *gateway.Session
	client   *backend.Client
	carts    *cart.Service
	checkout *checkout.Service
	tracking *tracking.Service
	admin    *admin.Service
	wishlist *wishlist.Service
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("no command given; see the package doc for usage")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdown, err := telemetry.SetupTracer(ctx, envOr("OTEL_SERVICE_NAME", "storefront"))
	if err != nil {
		return fmt.Errorf("initialise tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	tokenStore, err := gwsqlite.Open(cfg.TokenDBPath)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer tokenStore.Close()

	trail, err := auditsqlite.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	defer trail.Close()

	session, err := gateway.NewSession(ctx, cfg.APIBaseURL, tokenStore, nil)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	var orderCache cache.Cache
	if cfg.RedisAddr != "" {
		orderCache = cache.NewRedisCache(cfg.RedisAddr, "storefront")
	}

	client := backend.New(cfg.APIBaseURL, session, cfg.RequestTimeout)
	views := tracking.NewService(client, orderCache, trail, cfg.CacheTTL)
	carts := cart.NewService(client)
	a := &app{
		session:  session,
		client:   client,
		carts:    carts,
		checkout: checkout.NewService(client, carts),
		tracking: views,
		admin:    admin.NewService(client, views, confirmOnTerminal),
		wishlist: wishlist.NewService(client),
	}

	cmd, rest := args[0], args[1:]
	if cmd != "login" && !session.Authenticated() {
		return domain.ErrSessionExpired
	}

	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := session.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("signed out")
		return nil
	case "cart":
		return a.cart(ctx, rest)
	case "checkout":
		return a.runCheckout(ctx, rest)
	case "orders":
		return a.listOrders(ctx)
	case "order":
		return a.showOrder(ctx, rest)
	case "history":
		return a.showHistory(ctx, rest)
	case "reorder":
		return a.reorder(ctx, rest)
	case "wishlist":
		return a.toggleWishlist(ctx, rest)
	case "admin":
		return a.adminCmd(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: login <username> <password>")
	}
	if err := a.session.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Println("signed in")
	return nil
}

func (a *app) cart(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c, err := a.carts.Active(ctx)
		if err != nil {
			return err
		}
		printOrder(c.Order)
		return nil
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return errors.New("usage: cart add <product-id> [variant-id] [quantity]")
		}
		in := cart.AddItemInput{Quantity: 1}
		var err error
		if in.ProductID, err = strconv.ParseInt(args[1], 10, 64); err != nil {
			return err
		}
		if len(args) > 2 {
			if in.VariantID, err = strconv.ParseInt(args[2], 10, 64); err != nil {
				return err
			}
		}
		if len(args) > 3 {
			if in.Quantity, err = strconv.Atoi(args[3]); err != nil {
				return err
			}
		}
		c, err := a.carts.AddItem(ctx, in)
		if err != nil {
			return err
		}
		printOrder(c.Order)
		return nil
	case "qty":
		if len(args) != 3 {
			return errors.New("usage: cart qty <item-id> <quantity>")
		}
		itemID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		c, err := a.carts.UpdateQuantity(ctx, itemID, qty)
		if err != nil {
			return err
		}
		printOrder(c.Order)
		return nil
	case "note":
		if len(args) < 3 {
			return errors.New("usage: cart note <item-id> <note...>")
		}
		itemID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		c, err := a.carts.SetItemNote(ctx, itemID, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		printOrder(c.Order)
		return nil
	case "rm":
		if len(args) != 2 {
			return errors.New("usage: cart rm <item-id>")
		}
		itemID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		c, err := a.carts.RemoveItem(ctx, itemID)
		if err != nil {
			return err
		}
		printOrder(c.Order)
		return nil
	default:
		return fmt.Errorf("unknown cart subcommand %q", args[0])
	}
}

func (a *app) runCheckout(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: checkout <address-id> <delivery RFC3339> [notes...]")
	}
	addressID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	deliveryAt, err := time.Parse(time.RFC3339, args[1])
	if err != nil {
		return fmt.Errorf("parse delivery time: %w", err)
	}

	c, err := a.carts.Active(ctx)
	if err != nil {
		return err
	}
	res, err := a.checkout.Checkout(ctx, c, checkout.Request{
		AddressID:  addressID,
		DeliveryAt: deliveryAt,
		Notes:      strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Printf("order %s is awaiting payment\ncomplete it at: %s\n", res.Order.Number(), res.PaymentURL)
	return nil
}

func (a *app) listOrders(ctx context.Context) error {
	orders, err := a.tracking.Orders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Printf("%-12s %-16s %10s  items=%d\n", o.Number(), o.Status, o.TotalPrice.StringFixed(2), len(o.Items))
	}
	return nil
}

func (a *app) showOrder(ctx context.Context, args []string) error {
	id, err := singleID(args, "order <order-id>")
	if err != nil {
		return err
	}
	o, err := a.tracking.Order(ctx, id)
	if err != nil {
		return err
	}
	printOrder(o)
	return nil
}

func (a *app) showHistory(ctx context.Context, args []string) error {
	id, err := singleID(args, "history <order-id>")
	if err != nil {
		return err
	}
	log, err := a.tracking.History(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range log {
		fmt.Printf("%s  %-16s by %-16s %s\n", e.Timestamp.Format(time.RFC3339), e.NewStatus, e.Actor, e.Note)
	}
	return nil
}

func (a *app) reorder(ctx context.Context, args []string) error {
	id, err := singleID(args, "reorder <order-id>")
	if err != nil {
		return err
	}
	c, err := a.tracking.Reorder(ctx, id)
	if err != nil {
		return err
	}
	a.carts.Replace(c)
	printOrder(c.Order)
	return nil
}

func (a *app) toggleWishlist(ctx context.Context, args []string) error {
	id, err := singleID(args, "wishlist <product-id>")
	if err != nil {
		return err
	}
	in, err := a.wishlist.Toggle(ctx, id)
	if err != nil {
		return err
	}
	if in {
		fmt.Println("added to wishlist")
	} else {
		fmt.Println("removed from wishlist")
	}
	return nil
}

var adminTargets = map[string]domain.Status{
	"process": domain.StatusProcessing,
	"ship":    domain.StatusShipped,
	"deliver": domain.StatusDelivered,
	"cancel":  domain.StatusCancelled,
}

func (a *app) adminCmd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: admin <process|ship|deliver|cancel|delete> <order-id>...")
	}
	ids := make([]int64, 0, len(args)-1)
	for _, raw := range args[1:] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	var (
		res admin.Result
		err error
	)
	if args[0] == "delete" {
		res, err = a.admin.BulkSoftDelete(ctx, ids)
	} else {
		target, ok := adminTargets[args[0]]
		if !ok {
			return fmt.Errorf("unknown admin subcommand %q", args[0])
		}
		res, err = a.admin.BulkUpdateStatus(ctx, ids, target)
	}

	var partial *domain.PartialFailure
	if err != nil && !errors.As(err, &partial) {
		return err
	}
	fmt.Printf("updated %d order(s)\n", res.UpdatedCount)
	if len(res.FailedIDs) > 0 {
		fmt.Printf("failed ids: %v\n", res.FailedIDs)
	}
	return nil
}

// confirmOnTerminal asks for a y/N answer before a bulk operation runs.
func confirmOnTerminal(ctx context.Context, action string, orderIDs []int64) (bool, error) {
	fmt.Printf("%s for %d order(s) %v — continue? [y/N] ", action, len(orderIDs), orderIDs)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func printOrder(o *domain.Order) {
	fmt.Printf("%s  %s  total %s\n", o.Number(), o.Status, o.TotalPrice.StringFixed(2))
	for _, it := range o.Items {
		fmt.Printf("  [%d] product=%d variant=%d x%d @ %s", it.ID, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice.StringFixed(2))
		if it.Notes != "" {
			fmt.Printf("  (%s)", it.Notes)
		}
		fmt.Println()
	}
	if o.DeliveryAt != nil {
		fmt.Printf("  delivery: %s (address %d)\n", o.DeliveryAt.Format(time.RFC3339), o.AddressID)
	}
}

func singleID(args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	return strconv.ParseInt(args[0], 10, 64)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Command storefront drives the cart views from the command line against a
// remote cart store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nikolayk812/cartsync/internal/cartsync"
	"github.com/nikolayk812/cartsync/internal/config"
	"github.com/nikolayk812/cartsync/internal/domain"
	"github.com/nikolayk812/cartsync/internal/logger"
	"github.com/nikolayk812/cartsync/internal/projection"
	"github.com/nikolayk812/cartsync/internal/remote"
	"github.com/nikolayk812/cartsync/internal/storefront"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	userID     string
	token      string
}

type app struct {
	log        *slog.Logger
	client     *remote.Client
	session    *cartsync.Session
	projection projection.Options
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Work with the current shopper's cart",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&flags.userID, "user", "", "shopper id, overrides identity.user_id")
	root.PersistentFlags().StringVar(&flags.token, "token", "", "bearer token, overrides identity.token")

	root.AddCommand(
		newCartCmd(flags),
		newCheckoutCmd(flags),
		newOrdersCmd(flags),
	)

	return root
}

func newApp(flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	log, err := logger.Init(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger.Init: %w", err)
	}
	log = log.With(slog.String("service", cfg.ServiceName))

	identity := domain.Identity{UserID: cfg.Identity.UserID, Token: cfg.Identity.Token}
	if flags.userID != "" {
		identity.UserID = flags.userID
	}
	if flags.token != "" {
		identity.Token = flags.token
	}

	client := remote.New(cfg.Remote, remote.WithLogger(log))
	session := cartsync.NewSession(client, client, cartsync.WithLogger(log))
	session.SetIdentity(identity)

	return &app{
		log:     log,
		client:  client,
		session: session,
		projection: projection.Options{
			PlaceholderName:  cfg.Projection.PlaceholderName,
			PlaceholderImage: cfg.Projection.PlaceholderImage,
		},
	}, nil
}

// settle turns a view outcome into CLI output and an exit status.
func settle(cmd *cobra.Command, out storefront.Outcome) error {
	switch out.Redirect {
	case "":
	case storefront.RouteLogin:
		return errors.New("not signed in: pass --user or set CARTSYNC_IDENTITY_USER_ID")
	case storefront.RouteCatalog:
		return errors.New("the cart is empty: add something first")
	default:
		cmd.Printf("-> %s\n", out.Redirect)
	}

	if out.CanRetry {
		return errors.New(out.Message)
	}
	if out.Message != "" {
		cmd.Println(out.Message)
	}
	return nil
}

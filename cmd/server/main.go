package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pcinventory/internal/config"
	"pcinventory/internal/db"
	"pcinventory/internal/events"
	"pcinventory/internal/feed"
	"pcinventory/internal/handlers"
	"pcinventory/internal/inventory"
	"pcinventory/internal/logging"
	"pcinventory/internal/middleware"
	"pcinventory/internal/notify"
	"pcinventory/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "pcinventory-server",
		Short: "Collects PC inventory reports from agents",
		Long: `pcinventory-server accepts inventory reports on the configured endpoint,
keeps one row per hardware UUID in SQLite and streams changes to websocket
subscribers. Every setting can be overridden with a PCINV_* variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfgFile)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "configuration file (optional)")
	cmd.AddCommand(newHashTokenCmd(), newVersionCmd())
	return cmd
}

func newHashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash to use as api.token_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pcinventory-server/%s\n", version.Version)
		},
	}
}

func serve(ctx context.Context, cfgFile string) error {
	cfg, err := config.LoadServer(cfgFile)
	if err != nil {
		return err
	}

	base, closer, err := logging.New(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	defer closer.Close()

	log := logging.Component(base, "server")
	log.Info().Str("version", version.Version).Msg("PC inventory server starting")

	conn, err := db.Open(cfg.Database.Path, logging.Component(base, "db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	if err := inventory.Migrate(conn, logging.Component(base, "migrate")); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	bus := events.NewBus(logging.Component(base, "events"))

	dispatcher := notify.NewDispatcher(notify.Config{
		URLs:     cfg.Notify.URLs,
		Events:   cfg.NotifyEvents(),
		Cooldown: cfg.NotifyCooldown(),
	}, bus, nil, logging.Component(base, "notify"))
	dispatcher.Start()
	defer dispatcher.Stop()

	hub := feed.NewHub(bus, logging.Component(base, "feed"))

	var limiter *middleware.RateLimiter
	if cfg.API.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.API.RateLimitPerMinute, time.Minute, logging.Component(base, "ratelimit"))
		defer limiter.Close()
	}

	if cfg.API.TokenHash == "" {
		log.Warn().Msg("api.token_hash is empty; the endpoint accepts unauthenticated requests")
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handlers.Routes(handlers.Deps{
			DB:           conn,
			Bus:          bus,
			Feed:         hub,
			Limiter:      limiter,
			EndpointPath: cfg.EndpointPath(),
			TokenHash:    cfg.API.TokenHash,
			Log:          logging.Component(base, "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("endpoint", cfg.EndpointPath()).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Int("feed_clients", hub.ActiveConnections()).Msg("Shutting down")
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

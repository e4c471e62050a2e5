package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/api"
	"github.com/xraph/stategraph/engine"
	"github.com/xraph/stategraph/provision"
	"github.com/xraph/stategraph/store"
	bunstore "github.com/xraph/stategraph/store/bun"
	"github.com/xraph/stategraph/store/memory"
	redisstore "github.com/xraph/stategraph/store/redis"
)

var serveFlags struct {
	addr         string
	storeBackend string
	redisAddr    string
	postgresDSN  string
	concurrency  int
	pollInterval time.Duration
	ssoLoginURL  string
	devHandlers  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stategraph server",
	Long: `Runs the stepper pool and the HTTP API in one process. The shipped
provisioning graphs are registered at startup; task handlers must be
registered by the embedding deployment, or use --dev-handlers to run
with simulated handlers for local development.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", ":8080", "HTTP listen address")
	f.StringVar(&serveFlags.storeBackend, "store", "memory", "Store backend: memory, redis, or postgres")
	f.StringVar(&serveFlags.redisAddr, "redis-addr", "localhost:6379", "Redis address (store=redis)")
	f.StringVar(&serveFlags.postgresDSN, "postgres-dsn", "", "Postgres DSN (store=postgres)")
	f.IntVar(&serveFlags.concurrency, "concurrency", 10, "Maximum concurrent execution steps")
	f.DurationVar(&serveFlags.pollInterval, "poll-interval", time.Second, "Due execution poll interval")
	f.StringVar(&serveFlags.ssoLoginURL, "sso-login-url", "", "SSO portal URL for completion notifications")
	f.BoolVar(&serveFlags.devHandlers, "dev-handlers", false, "Register simulated task handlers")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(logger)
	if err != nil {
		return err
	}

	rt, err := stategraph.New(
		stategraph.WithStore(st),
		stategraph.WithLogger(logger),
		stategraph.WithConcurrency(serveFlags.concurrency),
		stategraph.WithPollInterval(serveFlags.pollInterval),
	)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	eng, err := engine.Build(rt)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if err := provision.RegisterGraphs(eng.Graphs(), provision.Substitutions{
		SSOLoginURL: serveFlags.ssoLoginURL,
	}); err != nil {
		return fmt.Errorf("register graphs: %w", err)
	}
	if serveFlags.devHandlers {
		if err := registerDevHandlers(eng); err != nil {
			return fmt.Errorf("register dev handlers: %w", err)
		}
		logger.Warn("running with simulated task handlers")
	}

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start runtime: %w", err)
	}

	srv := &http.Server{
		Addr:              serveFlags.addr,
		Handler:           api.New(eng, nil).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("stategraph server listening",
		slog.String("addr", serveFlags.addr),
		slog.String("store", serveFlags.storeBackend),
		slog.Any("graphs", eng.Graphs().Names()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.Config().ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
		return rt.Stop(shutdownCtx)
	})

	return g.Wait()
}

// openStore builds the persistence backend selected by --store.
func openStore(logger *slog.Logger) (store.Store, error) {
	switch serveFlags.storeBackend {
	case "memory":
		return memory.New(), nil

	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: serveFlags.redisAddr})
		return redisstore.New(rdb, redisstore.WithLogger(logger)), nil

	case "postgres":
		if serveFlags.postgresDSN == "" {
			return nil, errors.New("store=postgres requires --postgres-dsn")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(serveFlags.postgresDSN)))
		db := bun.NewDB(sqldb, pgdialect.New())
		return bunstore.New(db, bunstore.WithLogger(logger)), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", serveFlags.storeBackend)
	}
}

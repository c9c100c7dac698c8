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

	"media-access/internal/adapters/auth/remote"
	pg "media-access/internal/adapters/storage/postgres"
	"media-access/internal/adapters/storage/sqlite"
	"media-access/internal/config"
	"media-access/internal/metrics"
	"media-access/internal/platform/logger"
	"media-access/internal/platform/redisconn"
	"media-access/internal/ratelimit"
	"media-access/internal/realtime"
	"media-access/internal/router"
	"media-access/internal/sweeper"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "media-access",
		Short:         "Private media access service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a TOML config file (optional)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Getenv)
	if err != nil {
		return config.Config{}, nil, err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})
	for _, k := range cfg.UnknownKeys {
		log.Warn("config: unknown key ignored", map[string]any{"key": k})
	}
	return cfg, log, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch cfg.DB.Driver {
			case config.DriverPostgres:
				db, err := pg.Open(ctx, cfg.DB.DSN)
				if err != nil {
					return err
				}
				defer db.Close()
				applied, err := pg.ApplyMigrations(ctx, db)
				if err != nil {
					return err
				}
				log.Info("migrations applied", map[string]any{"count": len(applied), "files": applied})
			case config.DriverSQLite:
				// AutoMigrate corre al abrir
				store, err := sqlite.Open(cfg.DB.SQLitePath)
				if err != nil {
					return err
				}
				defer store.Close()
				log.Info("sqlite schema ready", map[string]any{"path": cfg.DB.SQLitePath})
			default:
				log.Info("memory driver: nothing to migrate", nil)
			}
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log logger.Logger) error {
	opts := router.Options{
		Logger:         log,
		PortfolioLimit: cfg.Limits.PortfolioSharesPerDay,
	}

	// Storage
	closeStore, err := openStores(ctx, cfg, log, &opts.Stores)
	if err != nil {
		return err
	}
	defer closeStore()

	// Auth
	if cfg.Auth.VerifyURL != "" {
		v, err := remote.NewVerifier(remote.Config{VerifyURL: cfg.Auth.VerifyURL, APIKey: cfg.Auth.APIKey})
		if err != nil {
			return err
		}
		opts.AuthVerifier = v
	} else {
		log.Warn("auth verifier not configured: running in dev mode (X-Debug-User-ID)", nil)
	}

	// Rate limits
	reqLimiter, err := ratelimit.NewRequestLimiter(ratelimit.RequestConfig{
		PerMinute: cfg.Limits.RequestsPerMinute,
		Burst:     cfg.Limits.RequestBurst,
	})
	if err != nil {
		return err
	}
	if reqLimiter != nil {
		opts.RequestLimiter = reqLimiter
	}

	// Realtime: sin redis el hub local es el notifier; con redis los services
	// publican en el broker y cada instancia reparte a sus sockets.
	hub := realtime.NewHub(log)
	opts.Hub = hub
	if cfg.Redis.URL != "" {
		rdb, err := redisconn.Open(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		opts.ShareLimiter = ratelimit.NewRedisWindow(rdb)

		broker := realtime.NewRedisBroker(rdb, hub, log)
		stopBroker, err := broker.Start(ctx)
		if err != nil {
			return err
		}
		defer stopBroker()
		opts.Notifier = broker
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts.Metrics = metrics.MustNewMetrics(reg)
	opts.Gatherer = reg

	app := router.Build(opts)

	// Sweeper de vencimientos
	notifier := opts.Notifier
	if notifier == nil {
		notifier = hub
	}
	sw, err := sweeper.New(app.Grants, app.Shares, notifier, sweeper.Options{
		Schedule: cfg.Sweep.Schedule,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	if err := sw.Start(ctx); err != nil {
		return err
	}
	defer sw.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// sin WriteTimeout: /realtime mantiene la conexión abierta
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr, "driver": cfg.DB.Driver})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores llena stores según el driver y devuelve cómo cerrarlos.
// Con memory deja todo nil y el router arma los repos en memoria.
func openStores(ctx context.Context, cfg config.Config, log logger.Logger, stores *router.Stores) (func(), error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		db, err := pg.Open(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.DB.MigrateOnStart {
			applied, err := pg.ApplyMigrations(ctx, db)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			log.Info("migrations applied", map[string]any{"count": len(applied)})
		}
		stores.Grants = pg.NewAccessGrantsRepo(db)
		stores.Media = pg.NewMediaRepo(db)
		stores.Shares = pg.NewSharesRepo(db)
		return func() { _ = db.Close() }, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.DB.SQLitePath)
		if err != nil {
			return nil, err
		}
		stores.Grants = store.AccessGrants()
		stores.Media = store.Media()
		stores.Shares = store.Shares()
		return func() { _ = store.Close() }, nil

	default:
		return func() {}, nil
	}
}

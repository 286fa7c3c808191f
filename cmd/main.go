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
	"go.uber.org/zap"

	"foodrankr-web/internal/admin"
	"foodrankr-web/internal/auth"
	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/config"
	"foodrankr-web/internal/events"
	"foodrankr-web/internal/feed"
	"foodrankr-web/internal/ranks"
	"foodrankr-web/internal/session"
	"foodrankr-web/internal/telemetry"
	"foodrankr-web/internal/views"
	"foodrankr-web/internal/web"
	"foodrankr-web/migrations"
	"foodrankr-web/pkg/db"
	"foodrankr-web/pkg/kafka"
	"foodrankr-web/pkg/logging"
	rredis "foodrankr-web/pkg/redis"
	"foodrankr-web/pkg/seal"
)

const serviceName = "foodrankr-web"

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "FoodRankr web frontend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env vars still win)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the web server (default)",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres session store migrations and exit",
		RunE:  runMigrate,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := db.Connect(cmd.Context(), cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer database.Close()
	return database.RunMigrations(cmd.Context(), migrations.FS)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// ── 1. Config + logger ──
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// ── 2. Tracing ──
	shutdownTracing := telemetry.Setup(serviceName, logger)
	defer shutdownTracing(context.Background())

	// ── 3. Token store ──
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 4. Event bus ──
	var bus events.Bus
	if cfg.KafkaEnabled() {
		kafkaClient := kafka.NewClient(cfg.KafkaBrokers, logger.Named("kafka"))
		if err := kafkaClient.EnsureTopics(ctx,
			kafka.TopicRatingSubmitted,
			kafka.TopicCompanyDecided,
			kafka.TopicSessionChanged,
		); err != nil {
			return err
		}
		defer kafkaClient.Close()
		bus = kafkaClient
	} else {
		logger.Info("no kafka brokers configured, using in-process events")
		bus = events.NewLocalBus()
	}

	// ── 5. Backend client + session manager ──
	api := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, logger)
	sessions := session.NewManager(store, api, logger, session.Options{
		TokenTTL:         cfg.SessionTTL,
		IdentityCacheTTL: cfg.IdentityCacheTTL,
		CookieSecure:     cfg.CookieSecure,
		Events:           bus,
	})

	// ── 6. Screens ──
	renderer, err := views.New(logger)
	if err != nil {
		return err
	}
	feedSvc := feed.NewService(api, logger)
	hub := feed.NewHub(feedSvc, renderer, logger)
	handlers := web.Handlers{
		Sessions: sessions,
		Auth: auth.NewHandler(auth.NewService(api, sessions, logger), sessions, renderer,
			auth.NewLimiter(cfg.LoginRatePerMin, cfg.LoginBurst), logger),
		Feed:  feed.NewHandler(feedSvc, renderer),
		Hub:   hub,
		Ranks: ranks.NewHandler(ranks.NewService(api, bus, logger), renderer),
		Admin: admin.NewHandler(admin.NewService(api, bus, logger), renderer),
	}

	// ── 7. Background consumers ──
	hub.Listen(ctx, bus, feedGroupID())

	// ── 8. Start server ──
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           web.Handler(handlers, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.BackendURL),
			zap.String("session_store", cfg.SessionStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ── 9. Graceful shutdown ──
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	cancel() // stop consumers
	return nil
}

// openStore picks the token store named by the config and seals it when a
// secret is configured.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.TokenStore, func(), error) {
	var (
		store     session.TokenStore
		closeFunc = func() {}
	)
	switch cfg.SessionStore {
	case config.StoreRedis:
		client, err := rredis.NewClient(ctx, cfg.RedisAddr, logger)
		if err != nil {
			return nil, nil, err
		}
		store, closeFunc = client, func() { client.Close() }
	case config.StorePostgres:
		database, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(ctx, migrations.FS); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("migrations failed: %w", err)
		}
		go purgeExpired(ctx, database, logger)
		store, closeFunc = database, database.Close
	default:
		store = session.NewMemoryStore()
	}

	if cfg.SessionSecret == "" {
		return store, closeFunc, nil
	}
	box, err := seal.New(cfg.SessionSecret)
	if err != nil {
		closeFunc()
		return nil, nil, err
	}
	return session.NewSealedStore(store, box), closeFunc, nil
}

// purgeExpired deletes expired session rows; redis expires keys by itself.
func purgeExpired(ctx context.Context, database *db.DB, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := database.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", zap.Error(err))
				continue
			}
			logger.Debug("purged expired sessions", zap.Int64("rows", n))
		}
	}
}

// feedGroupID gives each instance its own consumer group so every instance
// sees every rating event.
func feedGroupID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return serviceName + "-feed-" + host
}

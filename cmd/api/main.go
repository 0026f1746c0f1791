package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adeyemi/chopbot/internal/config"
	"github.com/adeyemi/chopbot/internal/handler"
	"github.com/adeyemi/chopbot/internal/hub"
	"github.com/adeyemi/chopbot/internal/model/menu"
	ordermodel "github.com/adeyemi/chopbot/internal/model/order"
	sessmodel "github.com/adeyemi/chopbot/internal/model/session"
	"github.com/adeyemi/chopbot/internal/service/conversation"
	"github.com/adeyemi/chopbot/internal/service/payment"
	"github.com/adeyemi/chopbot/internal/service/reconcile"
	"github.com/adeyemi/chopbot/internal/session"
	"github.com/adeyemi/chopbot/internal/storage/postgres"
	"github.com/adeyemi/chopbot/internal/storage/redissess"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	sessionSecret := cfg.Session.Secret
	if sessionSecret == "" {
		sessionSecret = uuid.NewString()
		logger.Warn("SESSION_SECRET not set, sessions will not survive restarts")
	}

	orderStore, err := newOrderStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("order store init", zap.Error(err))
	}
	sessionStore := newSessionStore(ctx, cfg.Store, cfg.Session.TTL, logger)

	catalog := menu.NewMemoryCatalog(menu.Seed())
	sessions := session.NewManager(sessionStore, logger)
	gateway := payment.NewHTTPClient(payment.Config{
		SecretKey: cfg.Payment.SecretKey,
		BaseURL:   cfg.Payment.BaseURL,
		Timeout:   cfg.Payment.Timeout,
	})

	bus := hub.New(logger)
	convo := conversation.New(catalog, orderStore, sessions, gateway, cfg.Payment.CallbackURL(), logger)
	reconciler := reconcile.New(orderStore, gateway, bus, logger)

	router := handler.NewRouter(handler.Deps{
		Conversation:  convo,
		Reconciler:    reconciler,
		Sessions:      sessions,
		Orders:        orderStore,
		Bus:           bus,
		SessionSecret: sessionSecret,
		Log:           logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// newOrderStore connects PostgreSQL when DATABASE_URL is set, otherwise
// falls back to the in-memory store for local development.
func newOrderStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (ordermodel.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, orders held in memory only")
		return ordermodel.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	store := postgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	logger.Info("order store ready", zap.String("backend", "postgres"))
	return store, nil
}

// newSessionStore connects Redis when REDIS_ADDR is set, otherwise falls
// back to the in-memory store.
func newSessionStore(ctx context.Context, cfg config.StoreConfig, ttl time.Duration, logger *zap.Logger) sessmodel.Store {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, sessions held in memory only")
		return sessmodel.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, sessions held in memory only", zap.Error(err))
		return sessmodel.NewMemoryStore()
	}
	logger.Info("session store ready", zap.String("backend", "redis"))
	return redissess.New(client, ttl)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("chopbot backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

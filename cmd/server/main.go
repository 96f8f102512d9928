package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/templateshop/internal/cart/cache"
	"github.com/fjod/templateshop/internal/cart/repository"
	cartservice "github.com/fjod/templateshop/internal/cart/service"
	"github.com/fjod/templateshop/internal/catalog"
	"github.com/fjod/templateshop/internal/checkout"
	"github.com/fjod/templateshop/internal/config"
	"github.com/fjod/templateshop/internal/download"
	"github.com/fjod/templateshop/internal/entitlement"
	"github.com/fjod/templateshop/internal/httpapi"
	"github.com/fjod/templateshop/internal/logger"
	"github.com/fjod/templateshop/internal/metrics"
	"github.com/fjod/templateshop/internal/order"
	"github.com/fjod/templateshop/internal/payment"
	"github.com/fjod/templateshop/internal/reconcile"
	"github.com/fjod/templateshop/internal/store/sqlstore"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}()

	cartRepo := repository.NewMongoRepository(mongoDB)
	if err := repository.EnsureIndexes(ctx, cartRepo); err != nil {
		log.Error("failed to create cart indexes", "error", err)
		os.Exit(1)
	}
	log.Info("connected to MongoDB", "database", cfg.Mongo.DBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	log.Info("redis ping succeeded", "addr", cfg.Redis.Addr)

	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database ready", "driver", cfg.Database.Driver)

	m := metrics.New()
	catalogSvc := catalog.NewService(store)
	ledger := entitlement.NewLedger(store)
	carts := cartservice.NewCartService(cartRepo, cache.NewRedisCache(redisClient, cfg.Redis.CartTTL), catalogSvc, log)

	processor := payment.NewBreakerProcessor(
		payment.NewStripeProcessor(cfg.Payment.SecretKey, nil),
		payment.BreakerSettings{MaxFailures: cfg.Payment.BreakerFails, Timeout: cfg.Payment.BreakerTimeout},
		log,
	)
	checkoutSvc := checkout.NewService(carts, catalogSvc, processor, checkout.Config{
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
		Currency:   cfg.Payment.Currency,
	}, log, m)

	reconciler := reconcile.New(payment.NewStripeVerifier(cfg.Payment.WebhookSecret), store, catalogSvc, carts, log, m)
	gate := download.NewGate(catalogSvc, ledger, download.NewLimiter(cfg.Download.PerMinute, cfg.Download.Burst), log, m)

	router := httpapi.NewRouter(httpapi.Deps{
		Carts:         carts,
		Checkout:      checkoutSvc,
		Orders:        order.NewService(store, catalogSvc, log),
		Downloads:     gate,
		Entitlements:  ledger,
		Catalog:       catalogSvc,
		Webhooks:      reconciler,
		Ready: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		},
		Authenticator: httpapi.NewAuthenticator(cfg.Auth.JWTSecret),
		Metrics:       m,
		Log:           log,
	}, httpapi.Options{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "templateshop"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("templateshop starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/auth"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cache"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/config"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/events"
	h "github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/http"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/logger"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/notify"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/queries"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/render"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/session"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/storage"
)

const sweepInterval = time.Minute

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Query cache: shared Redis when configured, otherwise per process
	var qc cache.QueryCache = cache.NewMemoryCache(cfg.QueryStaleTime)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			zl.Fatal("Redis connection failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		zl.Info("Redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		qc = cache.NewRedisCache(redisClient, cfg.QueryStaleTime)
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(zl, cfg.KafkaBrokers...)
		zl.Info("Publishing activity events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", events.Topic))
	}
	defer publisher.Close()

	routerCfg := h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}
	deps := session.Deps{
		Publisher:  publisher,
		SubmitPath: cfg.OrderSubmitPath,
		Log:        zl,
	}
	if cfg.StateDBPath != "" {
		store, err := storage.Open(cfg.StateDBPath)
		if err != nil {
			zl.Fatal("Failed to open state database", zap.Error(err))
		}
		defer store.Close()
		if err := store.RunMigrations(); err != nil {
			zl.Fatal("Failed to run migrations", zap.Error(err))
		}
		deps.Persister = store
		routerCfg.TokenStore = store
		zl.Info("Local state enabled", zap.String("path", cfg.StateDBPath))
	}

	tokens := auth.ContextSource{}
	client := apiclient.NewClient(cfg.APIBaseURL, tokens, apiclient.WithLogger(zl.Named("api")))

	qopts := []queries.Option{
		queries.WithLogger(zl.Named("queries")),
		queries.WithNotifier(notify.NewLogged(notify.Discard{}, zl.Named("queries"))),
		queries.WithPublisher(publisher),
	}
	cartQueries := queries.NewCartQueries(client, tokens, qc, qopts...)
	addressQueries := queries.NewAddressQueries(client, tokens, qc, qopts...)

	deps.API = client
	deps.Cart = cartQueries
	registry := session.NewRegistry(deps, cfg.SessionIdleTTL)
	go registry.Run(ctx, sweepInterval)

	format := render.NewFormatter(cfg.Locale, cfg.Currency)
	handler := h.NewHandler(registry, cartQueries, addressQueries, format, cfg.RequestTimeout, zl.Named("http"))
	router := h.NewRouter(handler, routerCfg, zl.Named("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("Storefront starting", zap.String("port", cfg.HTTPPort), zap.String("api", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}

	zl.Info("server exited")
}

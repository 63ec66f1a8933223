package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/linkforty/linkforty/config"
	"github.com/linkforty/linkforty/internal/attribution"
	"github.com/linkforty/linkforty/internal/cache"
	"github.com/linkforty/linkforty/internal/clickrecorder"
	"github.com/linkforty/linkforty/internal/eventbus"
	"github.com/linkforty/linkforty/internal/geo"
	"github.com/linkforty/linkforty/internal/httpapi"
	"github.com/linkforty/linkforty/internal/infra/logger"
	infraNATS "github.com/linkforty/linkforty/internal/infra/nats"
	infraPostgres "github.com/linkforty/linkforty/internal/infra/postgres"
	infraPrometheus "github.com/linkforty/linkforty/internal/infra/prometheus"
	infraRedis "github.com/linkforty/linkforty/internal/infra/redis"
	"github.com/linkforty/linkforty/internal/resolver"
	"github.com/linkforty/linkforty/internal/store"
	"github.com/linkforty/linkforty/internal/webhook"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	log.Info("configuration loaded",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("failed to open gorm connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("failed to access underlying sql db", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, store.GormModels()...); err != nil {
		log.Fatal("failed to migrate webhook/delivery tables", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		log.Fatal("failed to migrate link/click/install tables", zap.Error(err))
	}
	log.Info("connected to postgres")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("connected to redis")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("failed to connect to nats", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("connected to nats", zap.Bool("jetstream_ready", js != nil))

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("starting prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("failed to close prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("skipping prometheus metrics server in development mode")
	}

	linkCache := cache.NewRedisLinkCache(redisClient, log)

	links := store.NewPgxLinkStore(pool, linkCache)
	clicks := store.NewPgxClickStore(pool)
	fingerprints := store.NewPgxFingerprintStore(pool)
	installs := store.NewPgxInstallStore(pool)
	inapps := store.NewPgxInAppEventStore(pool)
	webhooks := store.NewGormWebhookStore(gormDB)
	deliveryLogs := store.NewGormDeliveryLogStore(gormDB)

	geoLookup := geo.NewStatic()
	bloomFilter := cache.NewShortCodeFilter(cfg.Resolver.BloomExpectedCodes)
	if err := warmBloomFilter(ctx, links, bloomFilter); err != nil {
		log.Warn("failed to warm short-code bloom filter, starting with an empty one", zap.Error(err))
	}

	bus := eventbus.New(1024, log)

	dispatcher := webhook.New(js, webhooks, deliveryLogs, log)
	if err := dispatcher.Start(); err != nil {
		log.Fatal("failed to start webhook dispatcher", zap.Error(err))
	}

	resolverEngine := resolver.New(links, linkCache, bloomFilter, geoLookup, log)
	recorder := clickrecorder.New(clicks, fingerprints, webhooks, geoLookup, bus, dispatcher, log)
	attributionEngine := attribution.New(installs, fingerprints, links, webhooks, inapps, dispatcher, log)

	server := httpapi.New(httpapi.Dependencies{
		Logger:      log,
		Redis:       redisClient,
		Resolver:    resolverEngine,
		Recorder:    recorder,
		Attribution: attributionEngine,
		Webhooks:    webhooks,
		Dispatcher:  dispatcher,
		Bus:         bus,
	})

	port := cfg.HTTP.Port
	if port == 0 {
		port = 8080
	}
	if err := server.Listen(":" + strconv.Itoa(port)); err != nil {
		log.Fatal("fiber server exited", zap.Error(err))
	}
}

// warmBloomFilter seeds the negative cache from every page of existing
// links so a freshly started process never produces a false "never
// issued" negative for a code created before this boot.
func warmBloomFilter(ctx context.Context, links store.LinkStore, filter *cache.ShortCodeFilter) error {
	const pageSize = 1000
	offset := 0
	for {
		page, err := links.List(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		for _, l := range page {
			filter.Add(l.ShortCode)
		}
		if len(page) < pageSize {
			return nil
		}
		offset += pageSize
	}
}

// Package main is the entry point for the Decision Service.
// The service scores check-in and payment attempts for fraud, optimizes
// event capacity against historical no-show behavior, and quotes dynamic
// ticket prices.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/attendly/attendly/internal/api"
	"github.com/attendly/attendly/internal/audit"
	"github.com/attendly/attendly/internal/capacity"
	"github.com/attendly/attendly/internal/common/config"
	"github.com/attendly/attendly/internal/common/database"
	"github.com/attendly/attendly/internal/common/logger"
	"github.com/attendly/attendly/internal/fraud"
	"github.com/attendly/attendly/internal/health"
	"github.com/attendly/attendly/internal/metrics"
	"github.com/attendly/attendly/internal/middleware"
	"github.com/attendly/attendly/internal/pricing"
	"github.com/attendly/attendly/internal/server"
	"github.com/attendly/attendly/internal/signalcache"
)

var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	log := logger.New()
	defer log.Sync()

	log.Info("Starting Decision Service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash),
	)

	cfg, err := config.Load("decision-service")
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Elasticsearch powers activity search only. The engine keeps scoring
	// without it.
	es, err := database.NewElasticsearch(cfg.ElasticsearchURL)
	if err != nil {
		log.Warn("Elasticsearch unavailable, activity search disabled", zap.Error(err))
		es = nil
	}

	cache := signalcache.New(redisClient.Client, cfg.Cache.FactoryTimeout, log)

	activityStore := audit.NewStore(db, es, log)
	journalPath := os.Getenv("ACTIVITY_JOURNAL_PATH")
	if journalPath == "" {
		journalPath = "data/activity.journal"
	}
	if journal, err := audit.OpenJournal(journalPath, log); err != nil {
		log.Warn("Activity journal unavailable", zap.Error(err))
	} else {
		activityStore = activityStore.WithJournal(journal)
	}

	fraudStore := fraud.NewPostgresStore(db)
	scorer := fraud.NewScorer(fraud.ScorerParams{
		CheckIns:   fraudStore,
		Payments:   fraudStore.Payments(),
		Events:     fraudStore,
		Rules:      fraudStore,
		Activities: activityStore,
		Alerter:    audit.NewLogAlerter(os.Getenv("ALERT_WEBHOOK_URL"), log),
		Cache:      cache,
		Config:     cfg.Fraud,
		TTLs:       cfg.Cache,
		Logger:     log,
	})

	eventStore := capacity.NewPostgresEventStore(db)
	capacityOptimizer := capacity.NewOptimizer(capacity.OptimizerParams{
		Events:   eventStore,
		Cache:    cache,
		Weather:  capacity.NewGuardedWeatherProvider(capacity.StubWeatherProvider{}, log),
		Accuracy: capacity.StubAccuracyProvider{},
		Config:   cfg.Capacity,
		TTLs:     cfg.Cache,
		Logger:   log,
	})

	pricingOptimizer := pricing.NewOptimizer(pricing.OptimizerParams{
		Events:      eventStore,
		Occupancy:   capacityOptimizer,
		Demand:      capacity.StubDemandProvider{},
		Competitors: capacity.StubCompetitorPriceProvider{},
		Holidays:    capacity.StubHolidayProvider{},
		Cache:       cache,
		Config:      cfg.Pricing,
		TTLs:        cfg.Cache,
		Logger:      log,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.TenantID())
	router.Use(logger.GinMiddleware(log))
	router.Use(metrics.Middleware("decision-service"))
	router.Use(middleware.CORS(middleware.CORSConfigFromEnv()))
	router.Use(middleware.SlidingWindowRateLimit(redisClient.Client, middleware.DefaultRateLimitConfig()))
	router.Use(api.StandardVersionMiddleware())

	svc := api.NewService(scorer, capacityOptimizer, pricingOptimizer, activityStore, log)
	api.RegisterRoutes(router, svc)

	healthService := health.NewHealthService(log)
	healthService.SetVersion(Version)
	healthService.RegisterCheck(health.NewPostgresChecker(db))
	healthService.RegisterCheck(health.NewRedisChecker(redisClient))
	if es != nil {
		healthService.RegisterCheck(health.NewElasticsearchChecker(es))
	}
	healthService.RegisterStandardRoutes(router, "")

	router.GET("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	graceful := server.New(server.Config{
		Server: httpServer,
		Logger: log,
		Shutdownables: []server.Shutdownable{
			server.CloseDB(db),
			server.CloseRedis(redisClient),
		},
	})

	if err := graceful.ListenAndServe(); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}

	log.Info("Server exited")
}

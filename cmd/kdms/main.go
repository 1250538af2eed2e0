package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdms-ke/disaster-pipeline/internal/ai"
	"github.com/kdms-ke/disaster-pipeline/internal/alert"
	"github.com/kdms-ke/disaster-pipeline/internal/analysis"
	"github.com/kdms-ke/disaster-pipeline/internal/api"
	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/config"
	"github.com/kdms-ke/disaster-pipeline/internal/dispatch"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/logging"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
	"github.com/kdms-ke/disaster-pipeline/internal/sms"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Seed(ctx); err != nil {
		logging.Fatalf("Failed to seed reference data: %v", err)
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	aiClient, err := ai.NewGeminiClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		logging.Fatalf("Failed to create AI client: %v", err)
	}
	defer aiClient.Close()

	analysisCache := cache.New(db, cfg.AI.CacheTTL, clock, metrics)

	riskEngine := analysis.NewRiskEngine(aiClient, analysisCache, db, db,
		cfg.Worker.Count, cfg.AI.Timeout, clock, metrics)
	predictEngine := analysis.NewPredictEngine(aiClient, analysisCache, db, db,
		cfg.AI.Timeout, clock, metrics)
	reporter := analysis.NewReporter(aiClient, db, db, db, cfg.AI.Timeout, clock, metrics)

	var adapters []ingestion.SourceAdapter
	if cfg.Sources.WeatherEnabled {
		adapters = append(adapters, ingestion.NewWeatherAdapter(cfg.Sources.WeatherURL, cfg.Collector.AdapterTimeout))
	}
	if cfg.Sources.ForecastEnabled {
		adapters = append(adapters, ingestion.NewForecastAdapter(cfg.Sources.ForecastURL, cfg.Collector.AdapterTimeout))
	}
	if cfg.Sources.USGSEnabled {
		adapters = append(adapters, ingestion.NewSeismicAdapter(cfg.Sources.USGSURL, cfg.Collector.AdapterTimeout))
	}
	if cfg.Sources.FIRMSEnabled && cfg.Sources.FIRMSKey != "" {
		adapters = append(adapters, ingestion.NewFireAdapter(cfg.Sources.FIRMSURL, cfg.Sources.FIRMSKey, cfg.Collector.AdapterTimeout))
	}

	collector := ingestion.NewCollector(cfg.Collector, adapters, db, db, db, clock, metrics)
	collector.OnCycleComplete(riskEngine.ScoreAll)
	collector.OnCycleComplete(func(ctx context.Context) {
		if err := predictEngine.Refresh(ctx); err != nil {
			slog.Warn("predictive refresh failed", "error", err)
		}
	})
	collector.Start(ctx)

	smsSender := sms.NewAfricasTalking(cfg.SMS.Username, cfg.SMS.APIKey,
		cfg.SMS.SenderID, cfg.SMS.BaseURL, cfg.Collector.AdapterTimeout)
	dispatcher := alert.NewDispatcher(aiClient, analysisCache, smsSender, db, db, db,
		cfg.SMS.CharLimit, cfg.SMS.MaxRetries, 2*time.Second, cfg.AI.Timeout, clock, metrics)
	recommender := dispatch.NewRecommender(aiClient, db, db, cfg.AI.Timeout)
	fieldReports := ingestion.NewFieldReporter(db, db, db, clock, metrics)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	handler := api.NewHandler(db, db, db, db, db, reporter, fieldReports, dispatcher, recommender, clock)
	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	collector.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openpulse/pulse-backend-go/internal/api"
	"github.com/openpulse/pulse-backend-go/internal/config"
	"github.com/openpulse/pulse-backend-go/internal/core/funnels"
	"github.com/openpulse/pulse-backend-go/internal/core/goals"
	"github.com/openpulse/pulse-backend-go/internal/core/metrics"
	"github.com/openpulse/pulse-backend-go/internal/core/privacy"
	"github.com/openpulse/pulse-backend-go/internal/core/queue"
	"github.com/openpulse/pulse-backend-go/internal/core/sessions"
	"github.com/openpulse/pulse-backend-go/internal/core/tracking"
	"github.com/openpulse/pulse-backend-go/internal/core/useragent"
	"github.com/openpulse/pulse-backend-go/internal/core/visitors"
	"github.com/openpulse/pulse-backend-go/internal/database"
	"github.com/openpulse/pulse-backend-go/internal/websocket"
	"github.com/openpulse/pulse-backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	repos := database.NewRepositories(db)

	// Create WebSocket hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Metrics
	collector := metrics.NewCollector("pulse")

	// Initialize core services
	classifier := useragent.NewClassifier(cfg.Tracking.Lists.BotSignatures)
	anonymizer := privacy.NewAnonymizer(cfg.Tracking.AnonymizeIP)
	resolver := visitors.NewResolver(repos.Visitor, classifier, anonymizer, log)

	refs := sessions.NewReferrerClassifier(cfg.Tracking.Lists)
	sessionManager := sessions.NewManager(repos.Session, repos.PageView, repos.Visitor, refs, cfg.Tracking.SessionTimeoutDuration(), log)

	engine := goals.NewEngine(repos.Goal, repos.Conversion, cfg.Tracking.AllowMultipleConversions, log)
	engine.Subscribe(wsHub)
	engine.Subscribe(collector)

	// Async task queue and conversion webhooks
	queueService := queue.NewService(repos.Queue, cfg.Queue.MaxRetries, log)
	queueService.Register(queue.TaskTypeWebhook, queue.NewWebhookHandler(cfg.Queue.WebhookTimeoutDuration(), log))
	engine.Subscribe(queue.NewWebhookEnqueuer(queueService, log))

	processor := queue.NewProcessor(queueService, cfg.Queue.Workers, cfg.Queue.PollIntervalDuration(), log)
	processor.Start(context.Background())

	// Background session finalizer
	finalizer := sessions.NewFinalizer(sessionManager, log)
	finalizer.OnFinalized(collector.RecordSessionsFinalized)
	if err := finalizer.Start(); err != nil {
		log.Fatal("Failed to start session finalizer: ", err)
	}

	// Tracking pipeline and funnel analyzer
	trackingService := tracking.NewService(repos, resolver, sessionManager, engine, wsHub, collector, cfg.Tracking.HonorDNT, log)
	funnelAnalyzer := funnels.NewAnalyzer(repos.Event, repos.PageView, cfg.Tracking.OrderedFunnels, log)

	// Initialize router
	router := api.NewRouter(cfg, repos, log, wsHub, trackingService, funnelAnalyzer, collector)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Infof("Starting Pulse backend on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	finalizer.Stop()
	processor.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}

// ==============================================================================
// DRIVER VERIFICATION SERVICE - cmd/server/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"driverid/internal/board"
	"driverid/internal/crossval"
	"driverid/internal/docanalysis"
	"driverid/internal/handler"
	"driverid/internal/identity"
	"driverid/internal/middleware"
	"driverid/internal/notification"
	"driverid/internal/queue"
	"driverid/internal/reconcile"
	"driverid/internal/repository/postgres"
	"driverid/internal/status"
	"driverid/pkg/cache"
	"driverid/pkg/config"
	"driverid/pkg/logger"
	"driverid/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("driver-verification")

	log.Info("Starting Driver Verification Service", map[string]interface{}{
		"port":       cfg.Server.Port,
		"board_mode": string(cfg.Board.Mode),
		"ocr_mode":   string(cfg.DocAnalysis.Mode),
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis cache for board reads
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisCache.Close()

	log.Info("Redis connected", nil)

	// Repositories
	sessionRepo := postgres.NewSessionRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	queueRepo := postgres.NewQueueItemRepository(db)

	// Collaborator clients
	boardClient := board.NewClient(cfg.Board, log)
	cachedBoard := board.NewCachedClient(boardClient, redisCache, cfg.Board.CacheTTL, log)
	analyzer := docanalysis.New(cfg.DocAnalysis, log)

	// Core services
	retryPolicy := queue.DefaultRetryPolicy(cfg.Queue.MaxAttempts, cfg.Queue.InterItemDelay)
	processingQueue := queue.New(queueRepo, analyzer, log, retryPolicy)
	notifier := notification.NewService(log)
	reconciler := reconcile.NewReconciler(
		sessionRepo,
		documentRepo,
		cachedBoard,
		processingQueue,
		identity.NewInterpreter(log),
		crossval.NewEngine(),
		notifier,
		log,
	)
	processingQueue.SetSink(reconciler)

	projector := status.NewProjector()
	decider := status.NewDecider(projector)

	// Handlers
	val := validator.New()
	webhookHandler := handler.NewWebhookHandler(reconciler, cfg.Identity.CallbackSigningKey, log)
	sessionHandler := handler.NewSessionHandler(reconciler, val, cfg.Identity.CorrelationPrefix, log)
	statusHandler := handler.NewStatusHandler(cachedBoard, projector, decider, cfg.Status, log)
	documentHandler := handler.NewDocumentHandler(documentRepo, log)
	queueHandler := handler.NewQueueHandler(processingQueue, log)

	// Router
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)

	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Vendor callback: authenticated by HMAC signature, not JWT.
	api.HandleFunc("/webhooks/identity", webhookHandler.HandleCallback).Methods("POST")

	// Driver-facing flow
	api.HandleFunc("/verifications", sessionHandler.StartSession).Methods("POST")
	api.HandleFunc("/drivers/{email}/jobs/{jobID}/poa/{slot}", documentHandler.UploadPoa).Methods("POST")
	api.HandleFunc("/drivers/{email}/jobs/{jobID}/status", statusHandler.GetStatus).Methods("GET")
	api.HandleFunc("/drivers/{email}/jobs/{jobID}/next-step", statusHandler.GetNextStep).Methods("GET")

	// Operator queue administration
	authMW := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMW.Authenticate)
	admin.Use(authMW.RequireRole("operator"))
	admin.HandleFunc("/queue", queueHandler.ListItems).Methods("GET")
	admin.HandleFunc("/queue/process", queueHandler.ProcessPending).Methods("POST")
	admin.HandleFunc("/queue/retry-failed", queueHandler.RetryFailed).Methods("POST")

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Server exited", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func readyCheck(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}

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

	"prolead/internal/bank"
	"prolead/internal/handler"
	"prolead/internal/ledger"
	"prolead/internal/middleware"
	"prolead/internal/notification"
	"prolead/internal/recon"
	"prolead/internal/repository/postgres"
	"prolead/internal/scheduler"
	"prolead/pkg/cache"
	"prolead/pkg/config"
	"prolead/pkg/logger"
	"prolead/pkg/mailer"
	"prolead/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("recon-service")

	log.Info("Starting Deposit Reconciliation Service", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		log.Fatal("Database ping failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Database connected", nil)

	// Redis backs the dedupe cache. The engine degrades to database-only
	// dedupe when it is absent.
	var dedupe recon.DedupeCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis unavailable, dedupe falls back to database", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer redisCache.Close()
			dedupe = redisCache
			log.Info("Redis connected", nil)
		}
	}

	providerRepo := postgres.NewProviderRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	depositRepo := postgres.NewDepositRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	ledgerService := ledger.NewService(db)

	var feed bank.Feed
	if cfg.Bank.APIURL != "" {
		feed = bank.NewHTTPFeed(cfg.Bank, log)
	} else {
		log.Warn("No bank API configured, using mock feed", nil)
		feed = bank.NewMockFeed(providerRepo, log)
	}

	smtp := mailer.New(mailer.Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
		UseTLS:   cfg.Email.SMTPUseTLS,
	})
	notifier := notification.NewService(smtp, cfg.Admin.Email, log)

	reconService := recon.NewService(
		depositRepo, walletRepo, providerRepo, alertRepo, ledgerService,
		feed, notifier, dedupe, cfg.Recon, log,
	)

	val := validator.New()
	reconHandler := handler.NewReconHandler(reconService, val, log)
	alertHandler := handler.NewAlertHandler(reconService, alertRepo, val, log)
	walletHandler := handler.NewWalletHandler(walletRepo, auditRepo, log)

	r := mux.NewRouter()
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	r.Use(middleware.BodyLimit(1 << 20))

	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/ready", readyCheck(db)).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAPIKeyAuth(cfg.Admin.APIKey).Authenticate)

	api.HandleFunc("/reconciliation/run", reconHandler.Run).Methods("POST")
	api.HandleFunc("/reconciliation/transactions", reconHandler.ProcessTransaction).Methods("POST")
	api.HandleFunc("/alerts", alertHandler.List).Methods("GET")
	api.HandleFunc("/alerts/{id}", alertHandler.Get).Methods("GET")
	api.HandleFunc("/alerts/{id}/decision", alertHandler.Decide).Methods("POST")
	api.HandleFunc("/providers/{provider_id}/wallet", walletHandler.GetByProvider).Methods("GET")
	api.HandleFunc("/wallets/{id}/transactions", walletHandler.Transactions).Methods("GET")

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(reconService, cfg.Scheduler.Interval, cfg.Bank.Timeout+time.Minute, log)
		sched.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", nil)
	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Server stopped", nil)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func readyCheck(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}

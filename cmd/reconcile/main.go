// One-shot reconciliation run for cron or operator use. Prints the run
// summary as JSON on stdout and exits non-zero if the feed itself failed.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"prolead/internal/bank"
	"prolead/internal/ledger"
	"prolead/internal/notification"
	"prolead/internal/recon"
	"prolead/internal/repository/postgres"
	"prolead/pkg/cache"
	"prolead/pkg/config"
	"prolead/pkg/logger"
	"prolead/pkg/mailer"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("recon-batch")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

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
		}
	}

	providerRepo := postgres.NewProviderRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	depositRepo := postgres.NewDepositRepository(db)
	alertRepo := postgres.NewAlertRepository(db)

	var feed bank.Feed
	if cfg.Bank.APIURL != "" {
		feed = bank.NewHTTPFeed(cfg.Bank, log)
	} else {
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

	svc := recon.NewService(
		depositRepo, walletRepo, providerRepo, alertRepo, ledger.NewService(db),
		feed, notifier, dedupe, cfg.Recon, log,
	)

	summary := svc.RunBatch(context.Background())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(summary)

	if summary.Error != "" {
		os.Exit(1)
	}
}

// Seeding tool for local development: creates a handful of provider accounts
// with wallets and pending deposit requests so a reconciliation run against
// the mock feed has something to match.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"prolead/internal/domain"
	"prolead/internal/repository/postgres"
	"prolead/pkg/config"
	"prolead/pkg/logger"
)

type seedProvider struct {
	business     string
	email        string
	subscription bool
	verified     int
	registered   time.Duration // how long ago
	pending      []string      // pending deposit amounts
}

func main() {
	_ = godotenv.Load()

	log := logger.New("seed")
	cfg := config.Load()

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	providerRepo := postgres.NewProviderRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	depositRepo := postgres.NewDepositRepository(db)
	ctx := context.Background()

	seeds := []seedProvider{
		{
			business: "Cape Plumbing Co", email: "owner@capeplumbing.co.za",
			subscription: true, verified: 5, registered: 400 * 24 * time.Hour,
			pending: []string{"250.00", "500.00"},
		},
		{
			business: "Joburg Electrical", email: "accounts@jhbelectrical.co.za",
			subscription: true, verified: 2, registered: 90 * 24 * time.Hour,
			pending: []string{"150.00"},
		},
		{
			business: "Durban Garden Services", email: "info@dbngardens.co.za",
			subscription: false, verified: 0, registered: 5 * 24 * time.Hour,
			pending: nil,
		},
	}

	for _, s := range seeds {
		now := time.Now()
		provider := &domain.ProviderAccount{
			ID:                   uuid.New(),
			CustomerCode:         domain.NewCustomerCode(),
			BusinessName:         s.business,
			Email:                s.email,
			SubscriptionActive:   s.subscription,
			VerifiedDepositCount: s.verified,
			Status:               domain.AccountStatusActive,
			RegisteredAt:         now.Add(-s.registered),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := providerRepo.Create(ctx, provider); err != nil {
			log.Fatal("Failed to seed provider", map[string]interface{}{
				"business": s.business,
				"error":    err.Error(),
			})
		}

		wallet := &domain.Wallet{
			ID:          uuid.New(),
			ProviderID:  provider.ID,
			CashBalance: decimal.Zero,
			Status:      domain.WalletStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := walletRepo.Create(ctx, wallet); err != nil {
			log.Fatal("Failed to seed wallet", map[string]interface{}{"error": err.Error()})
		}

		for _, amount := range s.pending {
			amt := decimal.RequireFromString(amount)
			deposit := &domain.DepositRequest{
				ID:                uuid.New(),
				ProviderID:        provider.ID,
				Amount:            amt,
				CreditsToActivate: domain.CreditsForAmount(amt, cfg.Recon.RatePerCredit),
				Status:            domain.DepositStatusPending,
				ReferenceNumber:   domain.NewDepositReference(),
				CustomerCode:      provider.CustomerCode,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := depositRepo.Create(ctx, deposit); err != nil {
				log.Fatal("Failed to seed deposit", map[string]interface{}{"error": err.Error()})
			}
			fmt.Printf("%s  %-24s %s  R%s\n", provider.CustomerCode, s.business, deposit.ReferenceNumber, amount)
		}

		if len(s.pending) == 0 {
			fmt.Printf("%s  %-24s (no pending deposits)\n", provider.CustomerCode, s.business)
		}
	}

	log.Info("Seed complete", map[string]interface{}{"providers": len(seeds)})
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/config"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	demoAccountID      = "00000000-0000-0000-0000-000000000001"
	exhaustedAccountID = "00000000-0000-0000-0000-000000000002"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.App.IsDev() {
		log.Fatalf("refusing to seed: env must be 'dev' or 'test' (got '%s')", cfg.App.Env)
	}

	policy, err := cfg.Policy()
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	store := storage.NewPostgresStore(pool)

	fmt.Println("Seeding database...")

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}
	fmt.Println("✓ Schema ready")

	now := time.Now()
	if err := seedAccountUsage(ctx, store, policy, now); err != nil {
		log.Fatalf("seed account usage: %v", err)
	}
	fmt.Println("✓ Account usage seeded")

	if os.Getenv("SEED_TESTDATA") == "1" {
		if err := seedTestData(ctx, store, policy, now); err != nil {
			log.Fatalf("seed test data: %v", err)
		}
		fmt.Println("✓ Test data seeded")
	}

	fmt.Println("\n=== Seed Complete ===")
	fmt.Println("\nDemo Accounts:")
	fmt.Printf("  %s: one request used per class\n", demoAccountID)
	fmt.Printf("  %s: %s quota exhausted\n", exhaustedAccountID, limiter.ContentGeneration)
}

// seedAccountUsage gives the demo account one hit per class and exhausts the
// content_generation quota of the second account.
func seedAccountUsage(ctx context.Context, store *storage.PostgresStore, policy limiter.Policy, now time.Time) error {
	for _, class := range limiter.Classes {
		if err := store.Append(ctx, limiter.AccountKey(demoAccountID), string(class), now.Add(-time.Hour)); err != nil {
			return fmt.Errorf("append %s: %w", class, err)
		}
	}

	limit := policy.Limits[limiter.ContentGeneration].Authenticated
	for i := 0; i < limit; i++ {
		ts := now.Add(-time.Duration(limit-i) * time.Minute)
		if err := store.Append(ctx, limiter.AccountKey(exhaustedAccountID), string(limiter.ContentGeneration), ts); err != nil {
			return fmt.Errorf("append hit %d: %w", i, err)
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/fingerprint"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/storage"
)

// staleAccountID only has hits older than the lookback; the first read prunes them.
const staleAccountID = "00000000-0000-0000-0000-000000000003"

func seedTestData(ctx context.Context, store *storage.PostgresStore, policy limiter.Policy, now time.Time) error {
	for i := 0; i < 3; i++ {
		ts := now.Add(-policy.Lookback - time.Duration(i+1)*time.Hour)
		if err := store.Append(ctx, limiter.AccountKey(staleAccountID), string(limiter.Chat), ts); err != nil {
			return fmt.Errorf("append stale hit: %w", err)
		}
	}

	// A curl-like client at a known address with its job_matching quota spent.
	signal := fingerprint.Signal{Address: "203.0.113.50", UserAgent: "curl/8.5.0", Accept: "*/*"}
	limit := policy.Limits[limiter.JobMatching].Anonymous
	for _, id := range fingerprint.Expand(signal) {
		for i := 0; i < limit; i++ {
			ts := now.Add(-time.Duration(i+1) * time.Minute)
			if err := store.Append(ctx, id.Key, string(limiter.JobMatching), ts); err != nil {
				return fmt.Errorf("append %s hit: %w", id.Kind, err)
			}
		}
	}
	return nil
}

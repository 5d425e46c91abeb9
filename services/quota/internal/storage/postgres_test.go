package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/services/testutil"
	"github.com/google/uuid"
)

func TestPostgresStoreWindow(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION") == "" {
		t.Skip("set RUN_DB_INTEGRATION=1 to run")
	}

	pool, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	store := NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	defer func() {
		_ = testutil.CleanupTestData(ctx, pool)
	}()

	key := "fp:" + uuid.NewString()
	lookback := 24 * time.Hour

	hits, err := store.ReadAndPrune(ctx, key, "chat", t0, lookback)
	if err != nil || len(hits) != 0 {
		t.Fatalf("expected unseen record, got %v %v", hits, err)
	}

	for _, ts := range []time.Time{t0.Add(-25 * time.Hour), t0.Add(-time.Hour), t0} {
		if err := store.Append(ctx, key, "chat", ts); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	hits, err = store.ReadAndPrune(ctx, key, "chat", t0, lookback)
	if err != nil {
		t.Fatalf("ReadAndPrune: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %v", hits)
	}

	raw, err := store.Get(ctx, key, "chat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(raw.Hits) != 2 {
		t.Fatalf("expected prune to be persisted, got %v", raw.Hits)
	}

	if _, err := store.Get(ctx, key, "job_matching"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lesson-arcade-service/internal/config"
	"lesson-arcade-service/internal/infra/memory"
	"lesson-arcade-service/internal/infra/sqlite"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("LEADERBOARD_BACKEND", "")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func TestModelTiersFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.EvaluateBaseDelay = "250ms"

	tiers := modelTiers(cfg)
	if tiers.Primary != config.DefaultPrimaryModel || tiers.Fallback != config.DefaultFallbackModel {
		t.Fatalf("unexpected tiers %+v", tiers)
	}
	if tiers.Plan.BaseDelay != 2*time.Second || tiers.Plan.MaxRetries != config.DefaultMaxRetries {
		t.Fatalf("unexpected plan policy %+v", tiers.Plan)
	}
	if tiers.Evaluate.BaseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected evaluate policy %+v", tiers.Evaluate)
	}
	if tiers.Summary.BaseDelay != time.Second {
		t.Fatalf("unexpected summary policy %+v", tiers.Summary)
	}
}

func TestLeaderboardStoreSelection(t *testing.T) {
	cfg := testConfig(t)

	kv, closeKV, err := leaderboardStore(cfg, nil, nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	closeKV()
	if _, ok := kv.(*memory.KVStore); !ok {
		t.Fatalf("expected memory store, got %T", kv)
	}

	cfg.Leaderboard.Backend = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "board.db")
	kv, closeKV, err = leaderboardStore(cfg, nil, nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer closeKV()
	if _, ok := kv.(*sqlite.KVStore); !ok {
		t.Fatalf("expected sqlite store, got %T", kv)
	}
	if err := kv.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("sqlite set: %v", err)
	}

	for _, backend := range []string{"redis", "postgres", "etcd"} {
		cfg.Leaderboard.Backend = backend
		if _, _, err := leaderboardStore(cfg, nil, nil); err == nil {
			t.Fatalf("expected error for backend %s without connection", backend)
		}
	}
}

func TestMigrateNeedsPostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.Postgres.URL = ""
	if err := runMigrationsWithConfig(context.Background(), cfg); err != errNoPostgres {
		t.Fatalf("expected errNoPostgres, got %v", err)
	}
}

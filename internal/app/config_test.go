package app

import (
	"testing"
	"time"

	"github.com/herbtrace/herbtrace-backend/internal/data/repos/testutil"
)

func TestLoadConfigSyncAutoDrain(t *testing.T) {
	log := testutil.Logger(t)

	t.Setenv("SYNC_AUTO_DRAIN", "false")
	if cfg := LoadConfig(log); cfg.SyncAutoDrain {
		t.Fatalf("SYNC_AUTO_DRAIN=false not honored")
	}

	t.Setenv("SYNC_AUTO_DRAIN", "1")
	if cfg := LoadConfig(log); !cfg.SyncAutoDrain {
		t.Fatalf("SYNC_AUTO_DRAIN=1 not honored")
	}

	// Unparsable values fall back to the default of on.
	t.Setenv("SYNC_AUTO_DRAIN", "sometimes")
	if cfg := LoadConfig(log); !cfg.SyncAutoDrain {
		t.Fatalf("unparsable SYNC_AUTO_DRAIN must default to enabled")
	}
}

func TestLoadConfigSyncDurations(t *testing.T) {
	log := testutil.Logger(t)

	t.Setenv("SYNC_BASE_DELAY_SECONDS", "7")
	t.Setenv("SYNC_INTERVAL_SECONDS", "90")
	cfg := LoadConfig(log)
	if cfg.SyncBaseDelay != 7*time.Second {
		t.Fatalf("base delay = %s", cfg.SyncBaseDelay)
	}
	if cfg.SyncInterval != 90*time.Second {
		t.Fatalf("interval = %s", cfg.SyncInterval)
	}
}

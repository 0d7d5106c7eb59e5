package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	orgPath := filepath.Join(dir, "orgs.txt")
	if err := os.WriteFile(orgPath, []byte("EAS\nCIV\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	log := logging.New(int8(logging.Fatal), nil, false)
	w, err := NewWatcher(orgPath, "", log)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(orgPath, []byte("EAS\nCIV\nWXR\n"), 0o644); err != nil {
		t.Fatalf("update file: %v", err)
	}

	select {
	case lists := <-w.Updates():
		if len(lists.AllowedOriginators) != 3 {
			t.Fatalf("got %v, want 3 entries", lists.AllowedOriginators)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

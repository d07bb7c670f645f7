package store

import (
	"context"
	"errors"
	"strings"

	"eventbot/pkg/logx"
)

// Config selects and configures a driver. See package doc for driver values.
type Config struct {
	Driver string
	Path   string
}

// Store is the per-workspace collection persistence API.
//
// Load returns the workspace's full collection; a workspace that was never
// saved yields an empty collection which is persisted on first touch, so a
// subsequent external read observes the same initialized state.
//
// Save replaces the persisted collection atomically from a reader's
// perspective: a concurrent Load sees either the old or the new document,
// never a partial write.
type Store interface {
	Load(ctx context.Context, workspaceID string) (*Collection, error)
	Save(ctx context.Context, workspaceID string, c *Collection) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}

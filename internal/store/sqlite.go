//go:build sqlite

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"eventbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(string(b)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context, workspaceID string) (*Collection, error) {
	if workspaceID == "" {
		return nil, errors.New("workspace id required")
	}
	var doc string
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM collections WHERE workspace_id = ?", workspaceID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		c := &Collection{Items: []Item{}}
		if err := s.Save(ctx, workspaceID, c); err != nil {
			return nil, err
		}
		s.log.Debug("initialized empty collection", logx.String("workspace", workspaceID))
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeCollection([]byte(doc))
}

func (s *sqliteStore) Save(ctx context.Context, workspaceID string, c *Collection) error {
	if workspaceID == "" {
		return errors.New("workspace id required")
	}
	if c == nil {
		return errors.New("nil collection")
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (workspace_id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(workspace_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		workspaceID, string(b), time.Now().UnixMilli())
	return err
}

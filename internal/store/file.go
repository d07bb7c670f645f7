package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"eventbot/pkg/logx"
)

// fileStore keeps one JSON document per workspace:
//
//	<dir>/<workspaceID>.json  ->  {"items": [...]}
//
// Saves go through a temp file + rename so a concurrent Load never observes
// a partial write. The mutex serializes first-touch initialization against
// the trigger loop's cadence.
type fileStore struct {
	log logx.Logger
	dir string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, dir: dir}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) path(workspaceID string) (string, error) {
	if workspaceID == "" || workspaceID != filepath.Base(workspaceID) {
		return "", fmt.Errorf("invalid workspace id %q", workspaceID)
	}
	return filepath.Join(s.dir, workspaceID+".json"), nil
}

func (s *fileStore) Load(ctx context.Context, workspaceID string) (*Collection, error) {
	_ = ctx
	path, err := s.path(workspaceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// First touch: persist the empty collection so external readers see
		// the same initialized state.
		c := &Collection{Items: []Item{}}
		if err := writeAtomic(path, c); err != nil {
			return nil, err
		}
		s.log.Debug("initialized empty collection", logx.String("workspace", workspaceID))
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	c, err := decodeCollection(b)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, err)
	}
	return c, nil
}

func (s *fileStore) Save(ctx context.Context, workspaceID string, c *Collection) error {
	_ = ctx
	if c == nil {
		return errors.New("nil collection")
	}
	path, err := s.path(workspaceID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(path, c)
}

func writeAtomic(path string, c *Collection) error {
	if c.Items == nil {
		c.Items = []Item{}
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// decodeCollection rejects unknown fields and trailing data so externally
// edited documents fail loudly instead of silently dropping state.
func decodeCollection(b []byte) (*Collection, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var c Collection
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.New("trailing data after collection document")
		}
		return nil, err
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"eventbot/internal/platform"
	"eventbot/internal/store"
	"eventbot/pkg/logx"
)

// ErrTickInFlight is returned by CheckAll when a tick is already running.
var ErrTickInFlight = errors.New("scheduler tick already in flight")

const defaultTickInterval = 10 * time.Second

type Config struct {
	Enabled      bool
	TickInterval time.Duration // 0 means defaultTickInterval
}

type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	cfg    Config
	store  store.Store
	client platform.Client

	c *cron.Cron

	// inFlight is the single-flight tick guard shared by the timer path and
	// CheckAll.
	inFlight atomic.Bool

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, st store.Store, log logx.Logger) *Service {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: st, log: log}
}

// SetClient replaces the dispatch target. It does not alter persisted state;
// the next tick simply enumerates workspaces from the new client.
func (s *Service) SetClient(c platform.Client) {
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
}

// Start registers the repeating tick. Safe to call once per Stop().
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	if s.c != nil {
		return errors.New("scheduler already started")
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.TickInterval)
	if _, err := c.AddFunc(spec, s.onTimer); err != nil {
		s.runCancel()
		s.runCtx, s.runCancel = nil, nil
		return fmt.Errorf("register tick: %w", err)
	}
	c.Start()
	s.c = c
	s.log.Info("scheduler started", logx.Duration("interval", s.cfg.TickInterval))
	return nil
}

// Stop cancels the timer and waits for an in-flight tick to finish.
// No new tick starts afterward.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx, s.runCancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
}

// SetEnabled starts or stops the repeating tick at runtime, for config
// reloads. Enabling an already-running scheduler (or disabling a stopped
// one) is a no-op.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	running := s.c != nil
	s.cfg.Enabled = enabled
	s.mu.Unlock()

	switch {
	case enabled && !running:
		return s.Start(ctx)
	case !enabled && running:
		s.Stop(ctx)
	}
	return nil
}

func (s *Service) onTimer() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("tick skipped (previous tick still running)")
		return
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.tick(ctx, time.Now()); err != nil {
		s.log.Error("tick failed", logx.Err(err))
	}
}

// CheckAll forces one synchronous tick. Used by tests and the owner-only
// "run now" command.
func (s *Service) CheckAll(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrTickInFlight
	}
	defer s.inFlight.Store(false)
	return s.tick(ctx, time.Now())
}

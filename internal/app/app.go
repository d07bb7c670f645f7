// Package app wires config, logging, storage, the platform adapter, and the
// trigger engine into one lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventbot/internal/bot"
	"eventbot/internal/config"
	"eventbot/internal/eventsync"
	"eventbot/internal/platform"
	"eventbot/internal/platform/discord"
	"eventbot/internal/scheduler"
	"eventbot/internal/store"
	"eventbot/pkg/logx"
)

const handlerTimeout = 15 * time.Second

type App struct {
	cfgMgr  *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	store   store.Store
	adapter *discord.Adapter
	sched   *scheduler.Service
	syncer  *eventsync.Syncer

	wg       sync.WaitGroup
	stopOnce sync.Once
	cancelBg context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("svc", "config")))

	st, err := store.Open(store.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
	}, log.With(logx.String("svc", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	adapter, err := discord.New(discord.Config{Token: cfg.Discord.Token},
		log.With(logx.String("svc", "discord")))
	if err != nil {
		_ = st.Close()
		_ = logSvc.Close()
		return nil, err
	}

	tick, _ := config.ParseDurationOr(cfg.Scheduler.TickInterval, 0)
	sched := scheduler.New(scheduler.Config{
		Enabled:      cfg.Scheduler.Enabled,
		TickInterval: tick,
	}, st, log.With(logx.String("svc", "scheduler")))

	syncer := eventsync.New(st, adapter, log.With(logx.String("svc", "eventsync")))

	return &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		store:   st,
		adapter: adapter,
		sched:   sched,
		syncer:  syncer,
	}, nil
}

// Scheduler exposes the trigger engine (tests, admin tooling).
func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Start(ctx); err != nil {
		return err
	}

	// Inbound remote-edit notifications. Handlers run on gateway goroutines;
	// each gets its own bounded context.
	a.adapter.OnScheduledEventUpdate(func(ev *platform.RemoteEvent) {
		hctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := a.syncer.HandleRemoteUpdate(hctx, ev); err != nil {
			a.log.Error("remote update handling failed", logx.String("remote", ev.ID), logx.Err(err))
		}
	})
	a.adapter.OnScheduledEventDelete(func(workspaceID, eventID string) {
		hctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := a.syncer.HandleRemoteDelete(hctx, workspaceID, eventID); err != nil {
			a.log.Error("remote delete handling failed", logx.String("remote", eventID), logx.Err(err))
		}
	})

	cfg := a.cfgMgr.Get()
	cmds := bot.New(a.store, a.syncer, a.sched, cfg.Discord.OwnerUserIDs,
		a.log.With(logx.String("svc", "commands")))
	if err := cmds.Register(a.adapter.Session()); err != nil {
		return err
	}

	a.sched.SetClient(a.adapter)
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	// Config hot reload: logging and scheduler enablement apply live.
	bgCtx, cancel := context.WithCancel(context.Background())
	a.cancelBg = cancel
	sub := a.cfgMgr.Subscribe(1)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(bgCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-bgCtx.Done():
				return
			case cfg := <-sub:
				if cfg == nil {
					continue
				}
				a.logSvc.Apply(logx.Config{
					Level:   cfg.Logging.Level,
					Console: cfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: cfg.Logging.File.Enabled,
						Path:    cfg.Logging.File.Path,
					},
				})
				if err := a.sched.SetEnabled(bgCtx, cfg.Scheduler.Enabled); err != nil {
					a.log.Error("scheduler toggle failed", logx.Err(err))
				}
			}
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.cancelBg != nil {
			a.cancelBg()
		}
		a.sched.Stop(ctx)
		if e := a.adapter.Stop(ctx); e != nil {
			err = e
		}
		a.wg.Wait()
		if e := a.store.Close(); e != nil && err == nil {
			err = e
		}
		a.log.Info("app stopped")
		_ = a.logSvc.Close()
	})
	return err
}

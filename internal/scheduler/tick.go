package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventbot/internal/platform"
	"eventbot/internal/store"
	"eventbot/pkg/logx"
)

// tick runs one due-item scan across all workspaces. A failure in one
// workspace never stops evaluation of the others.
func (s *Service) tick(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return errors.New("no platform client set")
	}

	var errs []error
	for _, ws := range client.Workspaces() {
		if ctx.Err() != nil {
			break
		}
		if err := s.tickWorkspace(ctx, client, ws, now); err != nil {
			s.log.Error("workspace tick failed", logx.String("workspace", ws), logx.Err(err))
			errs = append(errs, fmt.Errorf("workspace %s: %w", ws, err))
		}
	}
	return errors.Join(errs...)
}

// tickWorkspace loads the workspace's collection once, fires all due items in
// stored order, and saves at most once after processing.
func (s *Service) tickWorkspace(ctx context.Context, client platform.Client, workspaceID string, now time.Time) error {
	coll, err := s.store.Load(ctx, workspaceID)
	if err != nil {
		return err
	}

	mutated := false
	var goneEvents []string
	for i := range coll.Items {
		it := &coll.Items[i]
		if !it.Active || it.TriggerAt.After(now) {
			continue
		}

		// Dispatch errors are isolated per item: logged, and the firing
		// attempt still advances the item's lifecycle below.
		if err := s.dispatch(ctx, client, coll, it, now); err != nil {
			if it.Type == store.TypeEventReminder && errors.Is(err, platform.ErrNotFound) {
				// The remote event is confirmed gone; the deletion is
				// authoritative and the local pair goes with it.
				s.log.Info("remote event deleted; removing local items",
					logx.String("workspace", workspaceID),
					logx.String("event", it.LinkedEventID))
				goneEvents = append(goneEvents, it.LinkedEventID)
				mutated = true
				continue
			}
			s.log.Error("item dispatch failed",
				logx.String("workspace", workspaceID),
				logx.Int64("item", it.ID),
				logx.String("type", string(it.Type)),
				logx.Err(err))
		} else {
			s.log.Debug("item fired",
				logx.String("workspace", workspaceID),
				logx.Int64("item", it.ID),
				logx.String("type", string(it.Type)))
		}

		fired := now
		it.LastTriggered = &fired
		if it.Recurring == nil {
			it.Active = false
		} else {
			it.TriggerAt = it.Recurring.Next(it.TriggerAt, now)
		}
		mutated = true
	}

	// Removals are deferred so the index loop above stays valid.
	for _, id := range goneEvents {
		coll.RemoveEventPair(id)
	}

	if !mutated {
		return nil
	}
	return s.store.Save(ctx, workspaceID, coll)
}

func (s *Service) dispatch(ctx context.Context, client platform.Client, coll *store.Collection, it *store.Item, now time.Time) error {
	switch it.Type {
	case store.TypeReminder:
		return s.fireReminder(ctx, client, it)
	case store.TypeEventReminder:
		return s.fireEventReminder(ctx, client, coll, it, now)
	case store.TypeEvent:
		// The event's start instant passing is not itself a notification;
		// the post-fire policy retires the mirror item.
		return nil
	default:
		return fmt.Errorf("unknown item type %q", it.Type)
	}
}

// Package eventsync keeps local event items consistent with the remote
// scheduled-event objects a human may edit directly on the platform.
//
// Direction of authority: outbound, the remote object is created before any
// local item references it; inbound, remote edits and deletions are
// authoritative and rewrite or remove local state.
package eventsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventbot/internal/platform"
	"eventbot/internal/store"
	"eventbot/pkg/logx"
)

type Syncer struct {
	log    logx.Logger
	store  store.Store
	client platform.Client
}

func New(st store.Store, client platform.Client, log logx.Logger) *Syncer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Syncer{log: log, store: st, client: client}
}

// CreateEvent creates the remote scheduled event first and, only on success,
// the local event item plus (when remindBefore > 0) a derived event_reminder
// whose trigger is the event start minus the offset.
func (s *Syncer) CreateEvent(ctx context.Context, workspaceID, channelID, creatorID string, p platform.EventParams, remindBefore time.Duration) (*store.Item, *store.Item, error) {
	remote, err := s.client.CreateEvent(ctx, workspaceID, p)
	if err != nil {
		return nil, nil, fmt.Errorf("create remote event: %w", err)
	}

	coll, err := s.store.Load(ctx, workspaceID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	ev := store.Item{
		ID:               store.NextID(coll),
		Type:             store.TypeEvent,
		WorkspaceID:      workspaceID,
		ChannelID:        channelID,
		CreatorID:        creatorID,
		EventName:        p.Name,
		Description:      p.Description,
		ScheduledEventID: remote.ID,
		TriggerAt:        p.StartAt,
		CreatedDate:      now,
		Active:           true,
	}
	coll.Items = append(coll.Items, ev)

	var rem *store.Item
	if remindBefore > 0 {
		r := store.Item{
			ID:             store.NextID(coll),
			Type:           store.TypeEventReminder,
			WorkspaceID:    workspaceID,
			ChannelID:      channelID,
			CreatorID:      creatorID,
			EventName:      p.Name,
			LinkedEventID:  remote.ID,
			RemindBeforeMs: remindBefore.Milliseconds(),
			TriggerAt:      p.StartAt.Add(-remindBefore),
			CreatedDate:    now,
			Active:         true,
		}
		coll.Items = append(coll.Items, r)
		rem = &coll.Items[len(coll.Items)-1]
	}

	if err := s.store.Save(ctx, workspaceID, coll); err != nil {
		return nil, nil, err
	}
	evOut := coll.Find(ev.ID)
	s.log.Info("event created",
		logx.String("workspace", workspaceID),
		logx.Int64("item", ev.ID),
		logx.String("remote", remote.ID),
		logx.Bool("reminder", rem != nil))
	return evOut, rem, nil
}

// Remove deletes the item with the given local id. Removing an event item
// cascades to its linked reminders and deletes the remote object; a remote
// deletion failure (already gone, permission revoked) does not block the
// local removal. Removing an already-removed item is a no-op.
func (s *Syncer) Remove(ctx context.Context, workspaceID string, itemID int64) (bool, error) {
	coll, err := s.store.Load(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	it := coll.Find(itemID)
	if it == nil {
		return false, nil
	}

	switch it.Type {
	case store.TypeEvent:
		remoteID := it.ScheduledEventID
		coll.RemoveWhere(func(x *store.Item) bool {
			return x.ID == itemID ||
				(x.Type == store.TypeEventReminder && x.LinkedEventID == remoteID)
		})
		if err := s.client.DeleteEvent(ctx, workspaceID, remoteID); err != nil && !errors.Is(err, platform.ErrNotFound) {
			s.log.Warn("remote event delete failed; local removal proceeds",
				logx.String("remote", remoteID), logx.Err(err))
		}
	default:
		coll.RemoveWhere(func(x *store.Item) bool { return x.ID == itemID })
	}

	if err := s.store.Save(ctx, workspaceID, coll); err != nil {
		return false, err
	}
	s.log.Info("item removed", logx.String("workspace", workspaceID), logx.Int64("item", itemID))
	return true, nil
}

// HandleRemoteUpdate applies an externally-originated edit: the local event
// item's denormalized fields follow the new remote state, and every linked
// reminder's trigger is recomputed from the new start instant. Events the
// bot does not manage are ignored.
func (s *Syncer) HandleRemoteUpdate(ctx context.Context, ev *platform.RemoteEvent) error {
	if ev == nil || ev.ID == "" {
		return nil
	}
	coll, err := s.store.Load(ctx, ev.WorkspaceID)
	if err != nil {
		return err
	}
	local := coll.FindByRemoteEvent(ev.ID)
	if local == nil {
		return nil
	}

	now := time.Now()
	local.EventName = ev.Name
	local.Description = ev.Description
	local.TriggerAt = ev.StartAt
	if ev.StartAt.After(now) {
		// A rescheduled event becomes live again even if its old start
		// already fired.
		local.Active = true
	}

	for i := range coll.Items {
		r := &coll.Items[i]
		if r.Type != store.TypeEventReminder || r.LinkedEventID != ev.ID {
			continue
		}
		r.EventName = ev.Name
		r.TriggerAt = ev.StartAt.Add(-time.Duration(r.RemindBeforeMs) * time.Millisecond)
		if r.TriggerAt.After(now) {
			r.Active = true
		}
	}

	if err := s.store.Save(ctx, ev.WorkspaceID, coll); err != nil {
		return err
	}
	s.log.Info("remote edit applied",
		logx.String("workspace", ev.WorkspaceID),
		logx.String("remote", ev.ID),
		logx.Time("start", ev.StartAt))
	return nil
}

// HandleRemoteDelete applies an externally-originated deletion (or a
// not-found observed while fetching): the local event item and its linked
// reminders are removed without a further remote delete attempt.
func (s *Syncer) HandleRemoteDelete(ctx context.Context, workspaceID, eventID string) error {
	if eventID == "" {
		return nil
	}
	coll, err := s.store.Load(ctx, workspaceID)
	if err != nil {
		return err
	}
	removed := coll.RemoveEventPair(eventID)
	if removed == 0 {
		return nil
	}
	if err := s.store.Save(ctx, workspaceID, coll); err != nil {
		return err
	}
	s.log.Info("remote deletion applied",
		logx.String("workspace", workspaceID),
		logx.String("remote", eventID),
		logx.Int("removed", removed))
	return nil
}

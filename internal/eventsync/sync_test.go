package eventsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventbot/internal/platform"
	"eventbot/internal/store"
	"eventbot/pkg/logx"
)

type fakeClient struct {
	nextEventID string
	createErr   error
	deleteErr   error
	deleted     []string
}

func (f *fakeClient) Workspaces() []string { return nil }

func (f *fakeClient) SendMessage(ctx context.Context, msg platform.Message) error { return nil }

func (f *fakeClient) CreateEvent(ctx context.Context, workspaceID string, p platform.EventParams) (*platform.RemoteEvent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &platform.RemoteEvent{
		ID:          f.nextEventID,
		WorkspaceID: workspaceID,
		ChannelID:   p.ChannelID,
		Name:        p.Name,
		Description: p.Description,
		StartAt:     p.StartAt,
	}, nil
}

func (f *fakeClient) FetchEvent(ctx context.Context, workspaceID, eventID string) (*platform.RemoteEvent, error) {
	return nil, platform.ErrNotFound
}

func (f *fakeClient) DeleteEvent(ctx context.Context, workspaceID, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return f.deleteErr
}

func (f *fakeClient) InterestedUsers(ctx context.Context, workspaceID, eventID string) ([]string, error) {
	return nil, nil
}

func newTestSyncer(t *testing.T, client *fakeClient) (*Syncer, store.Store) {
	t.Helper()
	st, err := store.Open(store.Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, client, logx.Nop()), st
}

func TestCreateEventWithReminder(t *testing.T) {
	t.Parallel()
	client := &fakeClient{nextEventID: "ev-55"}
	sy, st := newTestSyncer(t, client)

	start := time.Now().Add(2 * time.Hour).Truncate(time.Millisecond)
	const offset = 30 * time.Minute

	ev, rem, err := sy.CreateEvent(context.Background(), "ws", "ch", "u1", platform.EventParams{
		Name:        "Game night",
		Description: "bring dice",
		ChannelID:   "ch",
		StartAt:     start,
	}, offset)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != 1 || rem.ID != 2 {
		t.Fatalf("ids = %d/%d, want 1/2", ev.ID, rem.ID)
	}
	if ev.ScheduledEventID != "ev-55" || rem.LinkedEventID != "ev-55" {
		t.Fatalf("linked ids: event=%q reminder=%q, want ev-55 for both", ev.ScheduledEventID, rem.LinkedEventID)
	}
	if !ev.TriggerAt.Equal(start) {
		t.Fatalf("event triggerAt = %v, want %v", ev.TriggerAt, start)
	}
	if !rem.TriggerAt.Equal(start.Add(-offset)) {
		t.Fatalf("reminder triggerAt = %v, want %v", rem.TriggerAt, start.Add(-offset))
	}
	if rem.RemindBeforeMs != offset.Milliseconds() {
		t.Fatalf("remindBeforeMs = %d, want %d", rem.RemindBeforeMs, offset.Milliseconds())
	}

	// Persisted, not just returned.
	c, err := st.Load(context.Background(), "ws")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Items) != 2 {
		t.Fatalf("persisted %d items, want 2", len(c.Items))
	}
}

func TestCreateEventRemoteFailureLeavesNoLocalState(t *testing.T) {
	t.Parallel()
	client := &fakeClient{createErr: errors.New("permission denied")}
	sy, st := newTestSyncer(t, client)

	_, _, err := sy.CreateEvent(context.Background(), "ws", "ch", "u1", platform.EventParams{
		Name: "X", StartAt: time.Now().Add(time.Hour),
	}, 0)
	if err == nil {
		t.Fatal("expected create error")
	}
	c, err := st.Load(context.Background(), "ws")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("remote failure left %d local items", len(c.Items))
	}
}

func TestRemoveEventCascades(t *testing.T) {
	t.Parallel()
	client := &fakeClient{nextEventID: "ev-1"}
	sy, st := newTestSyncer(t, client)

	ev, _, err := sy.CreateEvent(context.Background(), "ws", "ch", "u1", platform.EventParams{
		Name: "E", StartAt: time.Now().Add(time.Hour),
	}, 10*time.Minute)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	removed, err := sy.Remove(context.Background(), "ws", ev.ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatal("Remove reported nothing removed")
	}
	if len(client.deleted) != 1 || client.deleted[0] != "ev-1" {
		t.Fatalf("remote deletions = %v, want [ev-1]", client.deleted)
	}
	c, _ := st.Load(context.Background(), "ws")
	if len(c.Items) != 0 {
		t.Fatalf("cascade left %d items", len(c.Items))
	}

	// Idempotent: removing the already-removed pair is a no-op, not an error.
	removed, err = sy.Remove(context.Background(), "ws", ev.ID)
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if removed {
		t.Fatal("second Remove reported a removal")
	}
}

func TestRemoveToleratesRemoteDeleteFailure(t *testing.T) {
	t.Parallel()
	client := &fakeClient{nextEventID: "ev-1", deleteErr: errors.New("already deleted")}
	sy, st := newTestSyncer(t, client)

	ev, _, err := sy.CreateEvent(context.Background(), "ws", "ch", "u1", platform.EventParams{
		Name: "E", StartAt: time.Now().Add(time.Hour),
	}, 0)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	removed, err := sy.Remove(context.Background(), "ws", ev.ID)
	if err != nil || !removed {
		t.Fatalf("Remove = (%v, %v), want local removal despite remote failure", removed, err)
	}
	c, _ := st.Load(context.Background(), "ws")
	if len(c.Items) != 0 {
		t.Fatalf("local removal did not proceed: %d items left", len(c.Items))
	}
}

func TestHandleRemoteUpdateRewritesLinkedItems(t *testing.T) {
	t.Parallel()
	client := &fakeClient{nextEventID: "ev-9"}
	sy, st := newTestSyncer(t, client)

	start := time.Now().Add(2 * time.Hour).Truncate(time.Millisecond)
	const offset = 45 * time.Minute
	ev, rem, err := sy.CreateEvent(context.Background(), "ws", "ch", "u1", platform.EventParams{
		Name: "Old name", StartAt: start,
	}, offset)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	newStart := start.Add(3 * time.Hour)
	err = sy.HandleRemoteUpdate(context.Background(), &platform.RemoteEvent{
		ID:          "ev-9",
		WorkspaceID: "ws",
		Name:        "New name",
		Description: "moved",
		StartAt:     newStart,
	})
	if err != nil {
		t.Fatalf("HandleRemoteUpdate: %v", err)
	}

	c, _ := st.Load(context.Background(), "ws")
	gotEv := c.Find(ev.ID)
	gotRem := c.Find(rem.ID)
	if gotEv.EventName != "New name" || gotEv.Description != "moved" {
		t.Fatalf("event not rewritten: %+v", gotEv)
	}
	if !gotEv.TriggerAt.Equal(newStart) {
		t.Fatalf("event triggerAt = %v, want %v", gotEv.TriggerAt, newStart)
	}
	if !gotRem.TriggerAt.Equal(newStart.Add(-offset)) {
		t.Fatalf("reminder triggerAt = %v, want %v", gotRem.TriggerAt, newStart.Add(-offset))
	}
	if gotRem.EventName != "New name" {
		t.Fatalf("reminder name not synced: %q", gotRem.EventName)
	}
}

func TestHandleRemoteUpdateIgnoresUnknownEvent(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	sy, st := newTestSyncer(t, client)

	err := sy.HandleRemoteUpdate(context.Background(), &platform.RemoteEvent{
		ID:          "ev-foreign",
		WorkspaceID: "ws",
		Name:        "Not ours",
		StartAt:     time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("HandleRemoteUpdate: %v", err)
	}
	c, _ := st.Load(context.Background(), "ws")
	if len(c.Items) != 0 {
		t.Fatalf("unmanaged event created %d local items", len(c.Items))
	}
}

func TestHandleRemoteDeleteRemovesPair(t *testing.T) {
	t.Parallel()
	client := &fakeClient{nextEventID: "ev-2"}
	sy, st := newTestSyncer(t, client)

	_, _, err := sy.CreateEvent(context.Background(), "ws", "ch", "u1", platform.EventParams{
		Name: "E", StartAt: time.Now().Add(time.Hour),
	}, 5*time.Minute)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	client.deleted = nil

	if err := sy.HandleRemoteDelete(context.Background(), "ws", "ev-2"); err != nil {
		t.Fatalf("HandleRemoteDelete: %v", err)
	}
	c, _ := st.Load(context.Background(), "ws")
	if len(c.Items) != 0 {
		t.Fatalf("remote deletion left %d items", len(c.Items))
	}
	// Authoritative: no further remote delete attempt.
	if len(client.deleted) != 0 {
		t.Fatalf("remote delete attempted for an already-deleted event: %v", client.deleted)
	}

	// Unknown event id is ignored.
	if err := sy.HandleRemoteDelete(context.Background(), "ws", "ev-unknown"); err != nil {
		t.Fatalf("HandleRemoteDelete unknown: %v", err)
	}
}

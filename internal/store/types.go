package store

import (
	"fmt"
	"strings"
	"time"

	"eventbot/internal/timeparse"
)

// ItemType tags the scheduled-item variant.
type ItemType string

const (
	// TypeEvent mirrors a remote scheduled event. It never fires a
	// notification itself.
	TypeEvent ItemType = "event"
	// TypeEventReminder fires RemindBeforeMs ahead of its linked event.
	TypeEventReminder ItemType = "event_reminder"
	// TypeReminder is a standalone, optionally recurring reminder.
	TypeReminder ItemType = "reminder"
)

// Item is the sole persisted entity.
//
// Field applicability by type:
//   - event: ScheduledEventID set; EventName/Description authoritative.
//   - event_reminder: LinkedEventID (the remote event id, not a local item
//     id), RemindBeforeMs, and a denormalized EventName copy kept in sync.
//   - reminder: Message, optional Recurring.
type Item struct {
	ID          int64    `json:"id"`
	Type        ItemType `json:"type"`
	WorkspaceID string   `json:"workspaceId"`
	ChannelID   string   `json:"channelId"`
	CreatorID   string   `json:"creatorId"`

	EventName   string `json:"eventName,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`

	ScheduledEventID string `json:"scheduledEventId,omitempty"`
	LinkedEventID    string `json:"linkedEventId,omitempty"`
	RemindBeforeMs   int64  `json:"remindBeforeMs,omitempty"`

	TriggerAt time.Time             `json:"triggerAt"`
	Recurring *timeparse.Recurrence `json:"recurring,omitempty"`

	CreatedDate   time.Time  `json:"createdDate"`
	LastTriggered *time.Time `json:"lastTriggered,omitempty"`
	Active        bool       `json:"active"`
}

// Validate checks the per-type required field set.
func (it *Item) Validate() error {
	if it.ID < 1 {
		return fmt.Errorf("item id must be >= 1, got %d", it.ID)
	}
	if strings.TrimSpace(it.WorkspaceID) == "" {
		return fmt.Errorf("item %d: workspaceId required", it.ID)
	}
	if it.TriggerAt.IsZero() {
		return fmt.Errorf("item %d: triggerAt required", it.ID)
	}
	switch it.Type {
	case TypeEvent:
		if it.ScheduledEventID == "" {
			return fmt.Errorf("item %d: event requires scheduledEventId", it.ID)
		}
		if it.EventName == "" {
			return fmt.Errorf("item %d: event requires eventName", it.ID)
		}
	case TypeEventReminder:
		if it.LinkedEventID == "" {
			return fmt.Errorf("item %d: event_reminder requires linkedEventId", it.ID)
		}
		if it.RemindBeforeMs < 0 {
			return fmt.Errorf("item %d: remindBeforeMs must be >= 0", it.ID)
		}
	case TypeReminder:
		if it.ChannelID == "" {
			return fmt.Errorf("item %d: reminder requires channelId", it.ID)
		}
	default:
		return fmt.Errorf("item %d: unknown type %q", it.ID, it.Type)
	}
	return nil
}

// Collection is one workspace's full item set.
type Collection struct {
	Items []Item `json:"items"`
}

func (c *Collection) Validate() error {
	seen := make(map[int64]struct{}, len(c.Items))
	for i := range c.Items {
		if err := c.Items[i].Validate(); err != nil {
			return err
		}
		id := c.Items[i].ID
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate item id %d", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Find returns the item with the given id, or nil.
func (c *Collection) Find(id int64) *Item {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

// FindByRemoteEvent returns the local event item mirroring the given remote
// scheduled-event id, or nil.
func (c *Collection) FindByRemoteEvent(eventID string) *Item {
	for i := range c.Items {
		if c.Items[i].Type == TypeEvent && c.Items[i].ScheduledEventID == eventID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveWhere deletes all items matching pred, returning how many were removed.
func (c *Collection) RemoveWhere(pred func(*Item) bool) int {
	n := 0
	removed := 0
	for i := range c.Items {
		if pred(&c.Items[i]) {
			removed++
			continue
		}
		c.Items[n] = c.Items[i]
		n++
	}
	c.Items = c.Items[:n]
	return removed
}

// RemoveEventPair removes the event item mirroring the given remote event
// together with every reminder linked to it, returning how many items went.
func (c *Collection) RemoveEventPair(eventID string) int {
	return c.RemoveWhere(func(x *Item) bool {
		return (x.Type == TypeEvent && x.ScheduledEventID == eventID) ||
			(x.Type == TypeEventReminder && x.LinkedEventID == eventID)
	})
}

// NextID allocates the next item id: max existing id + 1, or 1 for an empty
// collection. Independent of item ordering; ids are never reused.
func NextID(c *Collection) int64 {
	var max int64
	for i := range c.Items {
		if c.Items[i].ID > max {
			max = c.Items[i].ID
		}
	}
	return max + 1
}

// Package platform defines the neutral chat-platform surface the scheduling
// engine depends on. Adapters (see platform/discord) translate a concrete
// client library into these types so the engine and its tests never import
// one directly.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that a remote scheduled event does not exist (deleted
// out of band, or never created). Callers treat it as an authoritative
// cleanup signal, not a failure.
var ErrNotFound = errors.New("remote scheduled event not found")

// RemoteEvent is the platform's own representation of a scheduled event,
// editable by humans outside this process.
type RemoteEvent struct {
	ID          string
	WorkspaceID string
	ChannelID   string
	CreatorID   string
	Name        string
	Description string
	StartAt     time.Time
	Location    string
	CoverImage  string
}

// EventParams describes a remote scheduled event to create.
type EventParams struct {
	Name        string
	Description string
	ChannelID   string
	Location    string
	StartAt     time.Time
}

// Message is one outbound channel message. MentionUserIDs is the explicit
// allowed-mention list; adapters must pass it through so downstream mention
// suppression cannot silently drop legitimate tags.
type Message struct {
	ChannelID      string
	Text           string
	MentionUserIDs []string
}

// Client is the platform surface consumed by the scheduler and synchronizer.
type Client interface {
	// Workspaces returns the ids of all joined workspaces, from the
	// client's local cache (no network round trip).
	Workspaces() []string

	SendMessage(ctx context.Context, msg Message) error

	CreateEvent(ctx context.Context, workspaceID string, p EventParams) (*RemoteEvent, error)
	FetchEvent(ctx context.Context, workspaceID, eventID string) (*RemoteEvent, error)
	DeleteEvent(ctx context.Context, workspaceID, eventID string) error

	// InterestedUsers returns the ids of users currently subscribed to the
	// remote event. Always fetched live; never cached by callers.
	InterestedUsers(ctx context.Context, workspaceID, eventID string) ([]string, error)
}

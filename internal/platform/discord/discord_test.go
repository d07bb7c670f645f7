package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"eventbot/internal/platform"
)

func TestToRemoteEvent(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   *discordgo.GuildScheduledEvent
		want platform.RemoteEvent
	}{
		{
			name: "voice event without location metadata",
			in: &discordgo.GuildScheduledEvent{
				ID: "ev-1", GuildID: "g1", ChannelID: "ch1", CreatorID: "u1",
				Name: "Standup", Description: "daily",
				ScheduledStartTime: start,
			},
			want: platform.RemoteEvent{
				ID: "ev-1", WorkspaceID: "g1", ChannelID: "ch1", CreatorID: "u1",
				Name: "Standup", Description: "daily", StartAt: start,
			},
		},
		{
			name: "external event carries its location",
			in: &discordgo.GuildScheduledEvent{
				ID: "ev-2", GuildID: "g1", CreatorID: "u2",
				Name:               "Meetup",
				ScheduledStartTime: start,
				EntityMetadata:     discordgo.GuildScheduledEventEntityMetadata{Location: "Town hall"},
				Image:              "abc123",
			},
			want: platform.RemoteEvent{
				ID: "ev-2", WorkspaceID: "g1", CreatorID: "u2",
				Name: "Meetup", StartAt: start,
				Location: "Town hall", CoverImage: "abc123",
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := toRemoteEvent(tc.in)
			if got == nil {
				t.Fatal("nil remote event")
			}
			if *got != tc.want {
				t.Fatalf("toRemoteEvent = %+v, want %+v", *got, tc.want)
			}
		})
	}
}

func TestMapNotFound(t *testing.T) {
	t.Parallel()

	notFound := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	}
	if err := mapNotFound(notFound); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("404 mapped to %v, want ErrNotFound", err)
	}

	denied := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}
	if err := mapNotFound(denied); !errors.Is(err, denied) {
		t.Fatalf("403 mapped to %v, want the original error", err)
	}

	plain := errors.New("dial tcp: timeout")
	if err := mapNotFound(plain); !errors.Is(err, plain) {
		t.Fatalf("plain error mapped to %v, want it unchanged", err)
	}
}

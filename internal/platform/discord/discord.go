// Package discord adapts a discordgo session to the platform.Client surface.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"eventbot/internal/platform"
	"eventbot/pkg/logx"
)

type Config struct {
	Token string

	// SendRatePerSec bounds outbound channel messages. Discord enforces its
	// own limits; this keeps a burst of due reminders from tripping them.
	SendRatePerSec int
}

type Adapter struct {
	cfg     Config
	log     logx.Logger
	session *discordgo.Session
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentGuildScheduledEvents |
		discordgo.IntentsGuildMessages

	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 5
	}
	return &Adapter{
		cfg:     cfg,
		log:     log,
		session: s,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Session exposes the underlying session for command registration glue.
func (a *Adapter) Session() *discordgo.Session { return a.session }

func (a *Adapter) Start(ctx context.Context) error {
	_ = ctx
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	a.log.Info("gateway connected", logx.Int("guilds", len(a.session.State.Guilds)))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	_ = ctx
	return a.session.Close()
}

// OnScheduledEventUpdate registers a callback for externally-originated
// scheduled-event edits.
func (a *Adapter) OnScheduledEventUpdate(fn func(ev *platform.RemoteEvent)) {
	a.session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildScheduledEventUpdate) {
		if e == nil || e.GuildScheduledEvent == nil {
			return
		}
		fn(toRemoteEvent(e.GuildScheduledEvent))
	})
}

// OnScheduledEventDelete registers a callback for externally-originated
// scheduled-event deletions.
func (a *Adapter) OnScheduledEventDelete(fn func(workspaceID, eventID string)) {
	a.session.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildScheduledEventDelete) {
		if e == nil || e.GuildScheduledEvent == nil {
			return
		}
		fn(e.GuildID, e.ID)
	})
}

// ---- platform.Client ----

func (a *Adapter) Workspaces() []string {
	guilds := a.session.State.Guilds
	ids := make([]string, 0, len(guilds))
	for _, g := range guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

func (a *Adapter) SendMessage(ctx context.Context, msg platform.Message) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: msg.Text,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: msg.MentionUserIDs,
		},
	}, discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) CreateEvent(ctx context.Context, workspaceID string, p platform.EventParams) (*platform.RemoteEvent, error) {
	start := p.StartAt
	params := &discordgo.GuildScheduledEventParams{
		Name:               p.Name,
		Description:        p.Description,
		ScheduledStartTime: &start,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
	}
	if p.Location != "" {
		// External events require an end time.
		end := start.Add(time.Hour)
		params.EntityType = discordgo.GuildScheduledEventEntityTypeExternal
		params.EntityMetadata = &discordgo.GuildScheduledEventEntityMetadata{Location: p.Location}
		params.ScheduledEndTime = &end
	} else {
		params.EntityType = discordgo.GuildScheduledEventEntityTypeVoice
		params.ChannelID = p.ChannelID
	}

	ev, err := a.session.GuildScheduledEventCreate(workspaceID, params, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return toRemoteEvent(ev), nil
}

func (a *Adapter) FetchEvent(ctx context.Context, workspaceID, eventID string) (*platform.RemoteEvent, error) {
	ev, err := a.session.GuildScheduledEvent(workspaceID, eventID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toRemoteEvent(ev), nil
}

func (a *Adapter) DeleteEvent(ctx context.Context, workspaceID, eventID string) error {
	if err := a.session.GuildScheduledEventDelete(workspaceID, eventID, discordgo.WithContext(ctx)); err != nil {
		return mapNotFound(err)
	}
	return nil
}

func (a *Adapter) InterestedUsers(ctx context.Context, workspaceID, eventID string) ([]string, error) {
	users, err := a.session.GuildScheduledEventUsers(workspaceID, eventID, 100, false, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapNotFound(err)
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u != nil && u.User != nil {
			ids = append(ids, u.User.ID)
		}
	}
	return ids, nil
}

func toRemoteEvent(ev *discordgo.GuildScheduledEvent) *platform.RemoteEvent {
	return &platform.RemoteEvent{
		ID:          ev.ID,
		WorkspaceID: ev.GuildID,
		ChannelID:   ev.ChannelID,
		CreatorID:   ev.CreatorID,
		Name:        ev.Name,
		Description: ev.Description,
		StartAt:     ev.ScheduledStartTime,
		Location:    ev.EntityMetadata.Location,
		CoverImage:  ev.Image,
	}
}

func mapNotFound(err error) error {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return platform.ErrNotFound
	}
	return err
}

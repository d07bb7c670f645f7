// Package bot wires slash commands to the scheduling engine. Everything here
// is command-parsing glue; the state-machine work lives in scheduler,
// eventsync, and store.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"eventbot/internal/eventsync"
	"eventbot/internal/platform"
	"eventbot/internal/scheduler"
	"eventbot/internal/store"
	"eventbot/internal/timeparse"
	"eventbot/pkg/logx"
)

const cmdTimeout = 15 * time.Second

type Commands struct {
	log    logx.Logger
	store  store.Store
	syncer *eventsync.Syncer
	sched  *scheduler.Service
	owners map[string]struct{}
}

func New(st store.Store, sy *eventsync.Syncer, sched *scheduler.Service, ownerIDs []string, log logx.Logger) *Commands {
	owners := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Commands{log: log, store: st, syncer: sy, sched: sched, owners: owners}
}

var commandDefs = []*discordgo.ApplicationCommand{
	{
		Name:        "event",
		Description: "Manage scheduled events",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a scheduled event",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Event name", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "start", Description: "Starts in, e.g. 2h or 3d", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Event description"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "location", Description: "Location (external events)"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "remind_before", Description: "Reminder offset, e.g. 30m"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a scheduled item by id",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "Item id", Required: true},
				},
			},
		},
	},
	{
		Name:        "remind",
		Description: "Manage reminders",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Set a reminder",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "in", Description: "Fires in, e.g. 10m or 2h", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "message", Description: "Reminder text", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "repeat", Description: "Recurrence, e.g. daily or 2 weekly"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List active scheduled items",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "cancel",
				Description: "Cancel a reminder by id",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "Item id", Required: true},
				},
			},
		},
	},
	{
		Name:        "schedcheck",
		Description: "Force one scheduler pass (owner only)",
	},
}

// Register overwrites the bot's application commands and installs the
// interaction dispatcher. Call after the gateway is open.
func (c *Commands) Register(s *discordgo.Session) error {
	if s.State.User == nil {
		return fmt.Errorf("session has no authenticated user")
	}
	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commandDefs); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	s.AddHandler(c.dispatch)
	return nil
}

func (c *Commands) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	data := i.ApplicationCommandData()
	var reply string
	switch data.Name {
	case "event":
		switch sub(data) {
		case "remove":
			reply = c.HandleRemoveCommand(ctx, i)
		default:
			reply = c.HandleEventCommand(ctx, i)
		}
	case "remind":
		switch sub(data) {
		case "list":
			reply = c.handleList(ctx, i)
		case "cancel":
			reply = c.HandleRemoveCommand(ctx, i)
		default:
			reply = c.handleRemind(ctx, i)
		}
	case "schedcheck":
		reply = c.handleCheck(ctx, i)
	default:
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.log.Warn("interaction respond failed", logx.Err(err))
	}
}

// HandleEventCommand creates the remote scheduled event plus its local items.
func (c *Commands) HandleEventCommand(ctx context.Context, i *discordgo.InteractionCreate) string {
	opts := subOptions(i.ApplicationCommandData())
	name := stringOpt(opts, "name")
	startTok := stringOpt(opts, "start")

	start, ok := timeparse.ParseRelative(startTok)
	if !ok {
		return fmt.Sprintf("Could not parse start time %q. Use forms like 30m, 2h, 3d.", startTok)
	}

	var remindBefore time.Duration
	if tok := stringOpt(opts, "remind_before"); tok != "" {
		d, ok := timeparse.ParseOffset(tok)
		if !ok {
			return fmt.Sprintf("Could not parse reminder offset %q.", tok)
		}
		remindBefore = d
	}

	ev, rem, err := c.syncer.CreateEvent(ctx, i.GuildID, i.ChannelID, actorID(i), platform.EventParams{
		Name:        name,
		Description: stringOpt(opts, "description"),
		ChannelID:   i.ChannelID,
		Location:    stringOpt(opts, "location"),
		StartAt:     start,
	}, remindBefore)
	if err != nil {
		c.log.Error("event create failed", logx.String("workspace", i.GuildID), logx.Err(err))
		return "Creating the event failed. Try again later."
	}
	if rem != nil {
		return fmt.Sprintf("Event **%s** created (id %d) with a reminder %s before start (id %d).",
			ev.EventName, ev.ID, remindBefore, rem.ID)
	}
	return fmt.Sprintf("Event **%s** created (id %d).", ev.EventName, ev.ID)
}

// HandleRemoveCommand removes an item by id, cascading for event items.
func (c *Commands) HandleRemoveCommand(ctx context.Context, i *discordgo.InteractionCreate) string {
	opts := subOptions(i.ApplicationCommandData())
	id := intOpt(opts, "id")
	removed, err := c.syncer.Remove(ctx, i.GuildID, id)
	if err != nil {
		c.log.Error("remove failed", logx.String("workspace", i.GuildID), logx.Int64("item", id), logx.Err(err))
		return "Removing the item failed. Try again later."
	}
	if !removed {
		return fmt.Sprintf("No item with id %d.", id)
	}
	return fmt.Sprintf("Item %d removed.", id)
}

func (c *Commands) handleRemind(ctx context.Context, i *discordgo.InteractionCreate) string {
	opts := subOptions(i.ApplicationCommandData())
	inTok := stringOpt(opts, "in")
	message := stringOpt(opts, "message")

	at, ok := timeparse.ParseRelative(inTok)
	if !ok {
		return fmt.Sprintf("Could not parse %q. Use forms like 10m, 2h, 3d.", inTok)
	}
	var rec *timeparse.Recurrence
	if tok := stringOpt(opts, "repeat"); tok != "" {
		r, ok := timeparse.ParseRecurrence(tok)
		if !ok {
			return fmt.Sprintf("Could not parse recurrence %q. Use daily, weekly, monthly, yearly, or e.g. \"2 weekly\".", tok)
		}
		rec = r
	}

	coll, err := c.store.Load(ctx, i.GuildID)
	if err != nil {
		c.log.Error("reminder load failed", logx.String("workspace", i.GuildID), logx.Err(err))
		return "Saving the reminder failed. Try again later."
	}
	it := store.Item{
		ID:          store.NextID(coll),
		Type:        store.TypeReminder,
		WorkspaceID: i.GuildID,
		ChannelID:   i.ChannelID,
		CreatorID:   actorID(i),
		Message:     message,
		TriggerAt:   at,
		Recurring:   rec,
		CreatedDate: time.Now(),
		Active:      true,
	}
	coll.Items = append(coll.Items, it)
	if err := c.store.Save(ctx, i.GuildID, coll); err != nil {
		c.log.Error("reminder save failed", logx.String("workspace", i.GuildID), logx.Err(err))
		return "Saving the reminder failed. Try again later."
	}
	if rec != nil {
		return fmt.Sprintf("Reminder %d set for <t:%d:f>, repeating %s.", it.ID, at.Unix(), describeRecurrence(rec))
	}
	return fmt.Sprintf("Reminder %d set for <t:%d:f>.", it.ID, at.Unix())
}

func (c *Commands) handleList(ctx context.Context, i *discordgo.InteractionCreate) string {
	coll, err := c.store.Load(ctx, i.GuildID)
	if err != nil {
		c.log.Error("list load failed", logx.String("workspace", i.GuildID), logx.Err(err))
		return "Loading items failed. Try again later."
	}
	var b strings.Builder
	n := 0
	for _, it := range coll.Items {
		if !it.Active {
			continue
		}
		n++
		label := it.Message
		if it.Type != store.TypeReminder {
			label = it.EventName
		}
		fmt.Fprintf(&b, "`%d` %s — %s — <t:%d:f>\n", it.ID, it.Type, label, it.TriggerAt.Unix())
	}
	if n == 0 {
		return "No active scheduled items."
	}
	return b.String()
}

func (c *Commands) handleCheck(ctx context.Context, i *discordgo.InteractionCreate) string {
	if _, ok := c.owners[actorID(i)]; !ok {
		return "Owner only."
	}
	if err := c.sched.CheckAll(ctx); err != nil {
		return "Check finished with errors: " + err.Error()
	}
	return "Check complete."
}

func describeRecurrence(r *timeparse.Recurrence) string {
	if r.Interval <= 1 {
		return string(r.Freq)
	}
	unit := map[timeparse.Frequency]string{
		timeparse.Daily:   "days",
		timeparse.Weekly:  "weeks",
		timeparse.Monthly: "months",
		timeparse.Yearly:  "years",
	}[r.Freq]
	return fmt.Sprintf("every %d %s", r.Interval, unit)
}

// ---- interaction plumbing ----

func actorID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func sub(data discordgo.ApplicationCommandInteractionData) string {
	if len(data.Options) == 0 {
		return ""
	}
	return data.Options[0].Name
}

func subOptions(data discordgo.ApplicationCommandInteractionData) []*discordgo.ApplicationCommandInteractionDataOption {
	if len(data.Options) == 0 {
		return nil
	}
	if data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return data.Options[0].Options
	}
	return data.Options
}

func stringOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o != nil && o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

func intOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	for _, o := range opts {
		if o != nil && o.Name == name {
			return o.IntValue()
		}
	}
	return 0
}

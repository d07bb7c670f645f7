package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventbot/internal/platform"
	"eventbot/internal/store"
	"eventbot/pkg/logx"
)

// fireReminder delivers a standalone reminder to its channel, tagging the
// creator in both the body and the allowed-mention list.
func (s *Service) fireReminder(ctx context.Context, client platform.Client, it *store.Item) error {
	text := fmt.Sprintf("⏰ <@%s> Reminder: %s", it.CreatorID, it.Message)
	return client.SendMessage(ctx, platform.Message{
		ChannelID:      it.ChannelID,
		Text:           text,
		MentionUserIDs: []string{it.CreatorID},
	})
}

// fireEventReminder notifies the event creator plus everyone currently
// interested in the linked remote event. The subscriber set is fetched live
// at fire time; interest can change up to the last second, so a list cached
// at schedule time would be stale.
func (s *Service) fireEventReminder(ctx context.Context, client platform.Client, coll *store.Collection, it *store.Item, now time.Time) error {
	linked := coll.FindByRemoteEvent(it.LinkedEventID)
	if linked == nil {
		// Orphaned reminder: its event is gone. Skip without error; the
		// post-fire policy deactivates it so it cannot re-fire forever.
		s.log.Debug("orphaned event reminder skipped",
			logx.Int64("item", it.ID), logx.String("event", it.LinkedEventID))
		return nil
	}

	interested, err := client.InterestedUsers(ctx, it.WorkspaceID, it.LinkedEventID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			// Confirm before treating this as a deletion; the subscriber
			// endpoint alone could 404 transiently.
			if _, ferr := client.FetchEvent(ctx, it.WorkspaceID, it.LinkedEventID); errors.Is(ferr, platform.ErrNotFound) {
				return fmt.Errorf("remote event %s: %w", it.LinkedEventID, platform.ErrNotFound)
			}
			// The event still exists, so the not-found must not read as a
			// deletion upstream.
			return fmt.Errorf("fetch interested users: %v", err)
		}
		return fmt.Errorf("fetch interested users: %w", err)
	}

	recipients := dedupIDs(linked.CreatorID, interested)

	var b strings.Builder
	b.WriteString("📅 ")
	for i, id := range recipients {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("<@" + id + ">")
	}
	fmt.Fprintf(&b, "\n**%s** starts in %s!", linked.EventName, formatCountdown(linked.TriggerAt.Sub(now)))
	if linked.Description != "" {
		b.WriteString("\n" + linked.Description)
	}

	return client.SendMessage(ctx, platform.Message{
		ChannelID:      it.ChannelID,
		Text:           b.String(),
		MentionUserIDs: recipients,
	})
}

// dedupIDs returns first followed by rest, order-preserving, without
// duplicates or empty ids.
func dedupIDs(first string, rest []string) []string {
	out := make([]string, 0, len(rest)+1)
	seen := make(map[string]struct{}, len(rest)+1)
	for _, id := range append([]string{first}, rest...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// formatCountdown renders a remaining duration as a short human phrase.
func formatCountdown(d time.Duration) string {
	if d <= 0 {
		return "moments"
	}
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute
	secs := (d - mins*time.Minute) / time.Second

	parts := make([]string, 0, 2)
	appendPart := func(n time.Duration, unit string) {
		if n == 0 || len(parts) == 2 {
			return
		}
		label := unit
		if n != 1 {
			label += "s"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	appendPart(days, "day")
	appendPart(hours, "hour")
	appendPart(mins, "minute")
	appendPart(secs, "second")
	if len(parts) == 0 {
		return "moments"
	}
	return strings.Join(parts, " ")
}

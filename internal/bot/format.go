package bot

import (
	"fmt"
	"strings"

	"reportbot/internal/model"
)

const (
	statusActive = "active"
	statusPaused = "paused"
)

// FormatEvent formats one event as a single line.
func FormatEvent(ev model.Event) string {
	id := ev.Base().ID
	switch e := ev.(type) {
	case *model.SimpleEvent:
		return fmt.Sprintf("#%d daily \"%s\" by %s%s", id, e.Keyword, e.Deadline, photos(e.MinPhotos))
	case *model.EphemeralEvent:
		return fmt.Sprintf("#%d on %s \"%s\" by %s%s", id, e.Date, e.Keyword, e.Deadline, photos(e.MinPhotos))
	case *model.CheckoutEvent:
		return fmt.Sprintf("#%d checkout \"%s\" by %s, \"%s\" by %s%s, summary at %s",
			id, e.FirstKeyword, e.FirstDeadline, e.SecondKeyword, e.SecondDeadline, photos(e.MinPhotos), e.PublishTime())
	case *model.WindowEvent:
		return fmt.Sprintf("#%d photo between %s and %s", id, e.Start, e.End)
	case *model.KeywordWindowEvent:
		line := fmt.Sprintf("#%d \"%s\" between %s and %s", id, e.Keyword, e.Start, e.End)
		if e.Description != "" {
			line += " - " + e.Description
		}
		return line
	}
	return fmt.Sprintf("#%d %s", id, ev.Kind())
}

func photos(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return " (1 photo)"
	default:
		return fmt.Sprintf(" (%d photos)", n)
	}
}

// FormatEventList formats the events of a channel for display.
func FormatEventList(ch *model.Channel, events []model.Event) string {
	status := statusActive
	if !ch.IsActive {
		status = statusPaused
	}
	if len(events) == 0 {
		return fmt.Sprintf("No events in \"%s\" [%s]. Use /add_simple to add one.", ch.Title, status)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Events in \"%s\" [%s]:\n", ch.Title, status)
	for _, ev := range events {
		b.WriteString("\n")
		b.WriteString(FormatEvent(ev))
	}
	return b.String()
}

// FormatUserList formats tracked users, marking accounts that share a name.
func FormatUserList(users []model.TrackedUser) string {
	if len(users) == 0 {
		return "No tracked members yet. Reply to a member's message with /track <name>."
	}
	shared := make(map[string]int)
	for _, u := range users {
		shared[u.DisplayName]++
	}

	var b strings.Builder
	b.WriteString("Tracked members:\n")
	for _, u := range users {
		fmt.Fprintf(&b, "\n%s", u.DisplayName)
		if u.Username != "" {
			fmt.Fprintf(&b, " (@%s)", u.Username)
		}
		if u.StoreID != "" {
			fmt.Fprintf(&b, " store %s", u.StoreID)
		}
		if shared[u.DisplayName] > 1 {
			b.WriteString(" [shared]")
		}
	}
	return b.String()
}

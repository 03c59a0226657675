package notify

import (
	"fmt"
	"strings"

	"reportbot/internal/compliance"
	"reportbot/internal/grouping"
	"reportbot/internal/model"
)

// Render builds the text of a warning, reminder or publication for the
// given non-compliant units.
func Render(kind model.NotificationKind, ev model.Event, findings []compliance.Finding) string {
	var b strings.Builder
	title := model.EventTitle(ev)

	switch kind {
	case model.NotifyPreWarning:
		fmt.Fprintf(&b, "Reminder: \"%s\" is due at %s.\n", title, deadlineOf(ev))
		b.WriteString("Not submitted yet:\n")
	case model.NotifyPostReminder:
		fmt.Fprintf(&b, "Deadline %s for \"%s\" has passed.\n", deadlineOf(ev), title)
		b.WriteString("Still missing:\n")
	case model.NotifyPhase1PreWarning, model.NotifyPhase1Reminder:
		co := ev.(*model.CheckoutEvent)
		if kind == model.NotifyPhase1PreWarning {
			fmt.Fprintf(&b, "Reminder: declare your checkout with \"%s\" by %s.\n", co.FirstKeyword, co.FirstDeadline)
		} else {
			fmt.Fprintf(&b, "Declaration deadline %s for \"%s\" has passed.\n", co.FirstDeadline, co.FirstKeyword)
		}
		fmt.Fprintf(&b, "Categories: %s\n", joinCategories(model.Vocabulary))
		b.WriteString("No declaration:\n")
	case model.NotifyPhase2PreWarning, model.NotifyPhase2Reminder:
		co := ev.(*model.CheckoutEvent)
		if kind == model.NotifyPhase2PreWarning {
			fmt.Fprintf(&b, "Reminder: checkout reports \"%s\" are due at %s.\n", co.SecondKeyword, co.SecondDeadline)
		} else {
			fmt.Fprintf(&b, "Checkout deadline %s for \"%s\" has passed.\n", co.SecondDeadline, co.SecondKeyword)
		}
		b.WriteString("Not finished:\n")
	case model.NotifyPublication:
		return renderPublication(ev, findings)
	default:
		fmt.Fprintf(&b, "\"%s\":\n", title)
	}

	for _, f := range findings {
		writeFinding(&b, f)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPublication(ev model.Event, findings []compliance.Finding) string {
	var b strings.Builder
	switch e := ev.(type) {
	case *model.WindowEvent:
		fmt.Fprintf(&b, "Photo reports %s-%s are closed.\n", e.Start, e.End)
	case *model.KeywordWindowEvent:
		fmt.Fprintf(&b, "Reports \"%s\" %s-%s are closed.\n", e.Keyword, e.Start, e.End)
		if e.Description != "" {
			fmt.Fprintf(&b, "%s\n", e.Description)
		}
	default:
		fmt.Fprintf(&b, "\"%s\" is closed.\n", model.EventTitle(ev))
	}
	if len(findings) == 0 {
		b.WriteString("Everyone reported.")
		return b.String()
	}
	b.WriteString("No report:\n")
	for _, f := range findings {
		writeFinding(&b, f)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeFinding(b *strings.Builder, f compliance.Finding) {
	fmt.Fprintf(b, "- %s", unitName(f.Unit))
	switch f.Status {
	case compliance.StatusNotSubmittedSecond:
		b.WriteString(": no reports yet")
	case compliance.StatusPartialSecond:
		fmt.Fprintf(b, ": remaining %s", joinCategories(f.Remaining))
	case compliance.StatusNotSubmittedAnything:
		b.WriteString(": nothing submitted")
	}
	b.WriteString("\n")
}

// unitName renders a unit as its label followed by the representative's
// mention when they differ.
func unitName(u grouping.Unit) string {
	label := u.Label()
	mention := u.Representative().Mention()
	if label == mention {
		return label
	}
	return fmt.Sprintf("%s (%s)", label, mention)
}

func deadlineOf(ev model.Event) model.TimeOfDay {
	switch e := ev.(type) {
	case *model.SimpleEvent:
		return e.Deadline
	case *model.EphemeralEvent:
		return e.Deadline
	case *model.CheckoutEvent:
		return e.SecondDeadline
	case *model.WindowEvent:
		return e.End
	case *model.KeywordWindowEvent:
		return e.End
	}
	return model.TimeOfDay{}
}

func joinCategories(cs []model.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// RenderCheckoutSummary builds the daily breakdown of a checkout event.
func RenderCheckoutSummary(ev *model.CheckoutEvent, date model.Date, s compliance.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checkout summary \"%s\" for %s\n", ev.SecondKeyword, date)

	section := func(name string, rs []compliance.UnitResult) {
		fmt.Fprintf(&b, "\n%s (%d):\n", name, len(rs))
		if len(rs) == 0 {
			b.WriteString("  none\n")
			return
		}
		for _, r := range rs {
			writeFinding(&b, compliance.Finding{
				Unit:      r.Unit,
				Status:    r.Classification.Status,
				Remaining: r.Classification.Remaining,
			})
		}
	}
	section("On time", s.OnTime)
	section("Late", s.Late)
	section("Not submitted", s.Missing)
	return strings.TrimRight(b.String(), "\n")
}

// WeeklyLine is one entry of the weekly reminder summary.
type WeeklyLine struct {
	Name  string
	Count int
}

// RenderWeeklySummary builds the weekly reminder ranking of a channel.
func RenderWeeklySummary(ch model.Channel, from, to model.Date, lines []WeeklyLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Weekly summary for %s, %s - %s\n", ch.Title, from, to)
	if len(lines) == 0 {
		b.WriteString("No reminders were needed this week.")
		return b.String()
	}
	b.WriteString("Reminders received:\n")
	for _, l := range lines {
		fmt.Fprintf(&b, "- %s: %d\n", l.Name, l.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"reportbot/internal/compliance"
	"reportbot/internal/model"
	"reportbot/internal/notify"
	"reportbot/internal/window"
)

// deadline is one firing point of an event occurrence.
type deadline struct {
	at         time.Time
	phase      compliance.Phase
	afterFirst bool
	warning    model.NotificationKind
	reminder   model.NotificationKind
}

// deadlinesOf returns the deadlines of the occurrence of ev on day.
// Windowed events have none; they publish at window end instead.
func (s *Scheduler) deadlinesOf(ev model.Event, day model.Date, now time.Time) []deadline {
	switch e := ev.(type) {
	case *model.SimpleEvent:
		return []deadline{{
			at:       s.window.Localize(e.Deadline, day),
			warning:  model.NotifyPreWarning,
			reminder: model.NotifyPostReminder,
		}}
	case *model.EphemeralEvent:
		if e.Date != day || s.window.EphemeralExpired(e, now) {
			return nil
		}
		return []deadline{{
			at:       s.window.Localize(e.Deadline, day),
			warning:  model.NotifyPreWarning,
			reminder: model.NotifyPostReminder,
		}}
	case *model.CheckoutEvent:
		first := s.window.Localize(e.FirstDeadline, day)
		return []deadline{
			{
				at:         first,
				phase:      compliance.PhaseFirst,
				afterFirst: !now.Before(first),
				warning:    model.NotifyPhase1PreWarning,
				reminder:   model.NotifyPhase1Reminder,
			},
			{
				at:         s.window.Localize(e.SecondDeadline, day),
				phase:      compliance.PhaseSecond,
				afterFirst: true,
				warning:    model.NotifyPhase2PreWarning,
				reminder:   model.NotifyPhase2Reminder,
			},
		}
	}
	return nil
}

// channelScan is the per-event callback of forEachEvent.
type channelScan func(ch model.Channel, users []model.TrackedUser, ev model.Event)

// forEachEvent walks the events of every active channel that tracks at
// least one user. Repository errors skip the affected channel only.
func (s *Scheduler) forEachEvent(ctx context.Context, log *slog.Logger, fn channelScan) {
	channels, err := s.store.ListActiveChannels(ctx)
	if err != nil {
		log.Error("list active channels", "error", err)
		return
	}

	for _, ch := range channels {
		if ctx.Err() != nil {
			return
		}
		users, err := s.store.ListTrackedUsers(ctx, ch.ID)
		if err != nil {
			log.Error("list tracked users", "channel_id", ch.ID, "error", err)
			continue
		}
		if len(users) == 0 {
			continue
		}
		events, err := s.store.ListChannelEvents(ctx, ch.ID)
		if err != nil {
			log.Error("list events", "channel_id", ch.ID, "error", err)
			continue
		}
		for _, ev := range events {
			fn(ch, users, ev)
		}
	}
}

func (s *Scheduler) warningScan(ctx context.Context, log *slog.Logger, now time.Time) {
	s.scanDeadlines(ctx, log, now, false)
}

func (s *Scheduler) reminderScan(ctx context.Context, log *slog.Logger, now time.Time) {
	s.scanDeadlines(ctx, log, now, true)
}

// scanDeadlines evaluates the occurrences whose bands can contain now: a
// warning may belong to tomorrow's occurrence (00:10 warned at 23:40) and
// a reminder to yesterday's (23:58 reminded at 00:03). The dedup key is
// dated with the firing day; compliance and counters use the occurrence.
func (s *Scheduler) scanDeadlines(ctx context.Context, log *slog.Logger, now time.Time, reminders bool) {
	today := s.window.Today(now)
	days := []model.Date{today, today.AddDays(1)}
	if reminders {
		days = []model.Date{today.AddDays(-1), today}
	}

	s.forEachEvent(ctx, log, func(ch model.Channel, users []model.TrackedUser, ev model.Event) {
		for _, day := range days {
			for _, d := range s.deadlinesOf(ev, day, now) {
				kind := d.warning
				fire := window.IsPreDeadlineWarning(d.at, now, s.cfg.WarningLead)
				if reminders {
					kind = d.reminder
					fire = window.IsPostDeadlineReminder(d.at, now, s.cfg.ReminderLag)
				}
				if !fire {
					continue
				}

				findings, err := s.eval.NonCompliant(ctx, ev, users, day, d.phase, d.afterFirst)
				if err != nil {
					log.Error("evaluate event", "channel_id", ch.ID, "event", model.RefOf(ev).String(), "date", day.String(), "error", err)
					continue
				}
				if len(findings) == 0 {
					log.Debug("everyone compliant", "channel_id", ch.ID, "event", model.RefOf(ev).String(), "kind", string(kind))
					continue
				}

				outcome := s.send(ctx, ch, ev, kind, today, notify.Render(kind, ev, findings))
				if reminders && (outcome == notify.Delivered || outcome == notify.Ambiguous) {
					s.countReminders(ctx, log, ch, findings, day)
				}
			}
		}
	})
}

func (s *Scheduler) send(ctx context.Context, ch model.Channel, ev model.Event, kind model.NotificationKind, today model.Date, text string) notify.Outcome {
	key := notify.Key{
		ChannelID:    ch.ID,
		Event:        model.RefOf(ev),
		Date:         today,
		Notification: kind,
	}
	return s.dispatch.Send(ctx, key, today, ch.Destination(), text)
}

// countReminders charges one reminder to the representative of every
// reminded unit.
func (s *Scheduler) countReminders(ctx context.Context, log *slog.Logger, ch model.Channel, findings []compliance.Finding, day model.Date) {
	for _, f := range findings {
		rep := f.Unit.Representative()
		if err := s.store.IncrementReminder(ctx, ch.ID, rep.UserID, day); err != nil {
			log.Error("increment reminder", "channel_id", ch.ID, "user_id", rep.UserID, "error", err)
		}
	}
}

func (s *Scheduler) publicationScan(ctx context.Context, log *slog.Logger, now time.Time) {
	today := s.window.Today(now)
	s.forEachEvent(ctx, log, func(ch model.Channel, users []model.TrackedUser, ev model.Event) {
		switch e := ev.(type) {
		case *model.WindowEvent:
			if s.window.IsPublicationInstant(e.End, now) {
				s.publish(ctx, log, ch, users, ev, today)
			}
		case *model.KeywordWindowEvent:
			if s.window.IsPublicationInstant(e.End, now) {
				s.publish(ctx, log, ch, users, ev, today)
			}
		case *model.CheckoutEvent:
			if e.PublishAt != nil && s.window.IsPublicationInstant(*e.PublishAt, now) {
				s.sendCheckoutSummary(ctx, log, ch, users, e, today)
			}
		}
	})
}

func (s *Scheduler) publish(ctx context.Context, log *slog.Logger, ch model.Channel, users []model.TrackedUser, ev model.Event, today model.Date) {
	findings, err := s.eval.NonCompliant(ctx, ev, users, today, 0, true)
	if err != nil {
		log.Error("evaluate event", "channel_id", ch.ID, "event", model.RefOf(ev).String(), "error", err)
		return
	}
	s.send(ctx, ch, ev, model.NotifyPublication, today, notify.Render(model.NotifyPublication, ev, findings))
}

// checkoutSummary publishes the daily breakdown of checkout events that
// have no publication time of their own.
func (s *Scheduler) checkoutSummary(ctx context.Context, log *slog.Logger, now time.Time) {
	today := s.window.Today(now)
	s.forEachEvent(ctx, log, func(ch model.Channel, users []model.TrackedUser, ev model.Event) {
		if e, ok := ev.(*model.CheckoutEvent); ok && e.PublishAt == nil {
			s.sendCheckoutSummary(ctx, log, ch, users, e, today)
		}
	})
}

func (s *Scheduler) sendCheckoutSummary(ctx context.Context, log *slog.Logger, ch model.Channel, users []model.TrackedUser, ev *model.CheckoutEvent, today model.Date) {
	summary, err := s.eval.Summarize(ctx, ev, users, today)
	if err != nil {
		log.Error("summarize checkout", "channel_id", ch.ID, "event", model.RefOf(ev).String(), "error", err)
		return
	}
	s.send(ctx, ch, ev, model.NotifyDailySummary, today, notify.RenderCheckoutSummary(ev, today, summary))
}

// cleanupEphemeral deletes expired dated events and returns how many were
// removed by this run.
func (s *Scheduler) cleanupEphemeral(ctx context.Context, log *slog.Logger, now time.Time) int {
	events, err := s.store.ListEphemeralEvents(ctx)
	if err != nil {
		log.Error("list ephemeral events", "error", err)
		return 0
	}

	deleted := 0
	for _, ev := range events {
		if !s.window.EphemeralExpired(ev, now) {
			continue
		}
		ok, err := s.store.DeleteEvent(ctx, ev.ID)
		if err != nil {
			log.Error("delete ephemeral event", "event_id", ev.ID, "error", err)
			continue
		}
		if ok {
			deleted++
		}
	}
	if deleted > 0 {
		log.Info("expired events deleted", "count", deleted)
	}
	return deleted
}

// weeklySummary posts the reminder ranking of the trailing seven days,
// today included, to every active channel. Counters are not reset.
func (s *Scheduler) weeklySummary(ctx context.Context, log *slog.Logger, now time.Time) {
	to := s.window.Today(now)
	from := to.AddDays(-6)

	channels, err := s.store.ListActiveChannels(ctx)
	if err != nil {
		log.Error("list active channels", "error", err)
		return
	}
	for _, ch := range channels {
		if ctx.Err() != nil {
			return
		}
		lines, err := s.weeklyLines(ctx, ch, from, to)
		if err != nil {
			log.Error("weekly totals", "channel_id", ch.ID, "error", err)
			continue
		}
		text := notify.RenderWeeklySummary(ch, from, to, lines)
		if err := s.dispatch.Deliver(ctx, ch.Destination(), text); err != nil {
			log.Error("deliver weekly summary", "channel_id", ch.ID, "error", err)
		}
	}
}

func (s *Scheduler) weeklyLines(ctx context.Context, ch model.Channel, from, to model.Date) ([]notify.WeeklyLine, error) {
	totals, err := s.store.ReminderTotals(ctx, ch.ID, from, to)
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListTrackedUsers(ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.TrackedUser, len(users))
	for _, u := range users {
		byID[u.UserID] = u
	}

	lines := make([]notify.WeeklyLine, 0, len(totals))
	for _, t := range totals {
		u, ok := byID[t.UserID]
		if !ok {
			u = model.TrackedUser{UserID: t.UserID}
		}
		lines = append(lines, notify.WeeklyLine{Name: weeklyName(u), Count: t.Count})
	}
	return lines, nil
}

func weeklyName(u model.TrackedUser) string {
	if u.DisplayName != "" && u.Username != "" {
		return u.DisplayName + " (@" + u.Username + ")"
	}
	return u.Mention()
}

// Package window classifies an instant against event schedules: pre-deadline
// warnings, post-deadline reminders and publication instants.
//
// All arithmetic happens in a single configured location. Warning and
// reminder bands are exactly one minute wide so that a one-minute poll
// observes each of them exactly once.
package window

import (
	"time"

	"reportbot/internal/model"
)

// EphemeralCutoff is the local time at which a dated event expires.
var EphemeralCutoff = model.TimeOfDay{Hour: 23, Minute: 59}

const band = time.Minute

// Model evaluates schedules in a fixed location.
type Model struct {
	loc *time.Location
}

// New creates a Model for loc. A nil loc means UTC.
func New(loc *time.Location) *Model {
	if loc == nil {
		loc = time.UTC
	}
	return &Model{loc: loc}
}

// Location returns the configured location.
func (m *Model) Location() *time.Location {
	return m.loc
}

// Today returns the occurrence date of now.
func (m *Model) Today(now time.Time) model.Date {
	return model.DateOf(now.In(m.loc))
}

// Localize combines a time of day and a date into an instant.
func (m *Model) Localize(t model.TimeOfDay, d model.Date) time.Time {
	return d.At(t, m.loc)
}

// IsPreDeadlineWarning reports whether now falls in
// [deadline-lead, deadline-lead+1m).
func IsPreDeadlineWarning(deadline, now time.Time, lead time.Duration) bool {
	return inBand(deadline.Add(-lead), now)
}

// IsPostDeadlineReminder reports whether now falls in
// [deadline+lag, deadline+lag+1m).
func IsPostDeadlineReminder(deadline, now time.Time, lag time.Duration) bool {
	return inBand(deadline.Add(lag), now)
}

func inBand(start, now time.Time) bool {
	return !now.Before(start) && now.Before(start.Add(band))
}

// IsPublicationInstant reports whether the minute of day of now is within
// one minute of end. The band is two minutes wide to absorb scheduler
// jitter; callers deduplicate.
func (m *Model) IsPublicationInstant(end model.TimeOfDay, now time.Time) bool {
	local := now.In(m.loc)
	diff := local.Hour()*60 + local.Minute() - end.Minutes()
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// InWindow reports whether t lies within [start, end] on date d.
func (m *Model) InWindow(start, end model.TimeOfDay, d model.Date, t time.Time) bool {
	return !t.Before(m.Localize(start, d)) && !t.After(m.Localize(end, d))
}

// EphemeralExpired reports whether a dated event is over: its date is in
// the past, or it is today and the daily cutoff has been reached.
func (m *Model) EphemeralExpired(ev *model.EphemeralEvent, now time.Time) bool {
	today := m.Today(now)
	if ev.Date.Before(today) {
		return true
	}
	return ev.Date == today && !now.Before(m.Localize(EphemeralCutoff, today))
}

// EphemeralActive reports whether a dated event takes part in today's
// evaluation.
func (m *Model) EphemeralActive(ev *model.EphemeralEvent, now time.Time) bool {
	return ev.Date == m.Today(now) && !m.EphemeralExpired(ev, now)
}

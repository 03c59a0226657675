// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// Date is a calendar day in the configured timezone. Every submission,
// deadline and notification belongs to exactly one occurrence date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.midnight(time.UTC).Format(dateLayout)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight(time.UTC).AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.midnight(time.UTC).Before(other.midnight(time.UTC))
}

// At combines the date with a time of day in loc.
func (d Date) At(t TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

func (d Date) midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// MustTime is ParseTimeOfDay for literals; it panics on malformed input.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the minute of day.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// Destination addresses a chat and an optional forum thread (0 = none).
type Destination struct {
	ChatID   int64
	ThreadID int
}

// Channel is a chat/topic pair that owns events and tracked users.
type Channel struct {
	ID        int64
	ChatID    int64
	ThreadID  int
	Title     string
	IsActive  bool
	CreatedAt time.Time
}

// Destination returns where notifications for the channel are delivered.
func (c Channel) Destination() Destination {
	return Destination{ChatID: c.ChatID, ThreadID: c.ThreadID}
}

// TrackedUser is an account whose reports are tracked in a channel.
// Accounts sharing a DisplayName form one compliance unit.
type TrackedUser struct {
	ID          int64
	ChannelID   int64
	UserID      int64
	Username    string
	DisplayName string
	StoreID     string
}

// Mention returns the text used to address the user in a notification.
func (u TrackedUser) Mention() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return "id" + strconv.FormatInt(u.UserID, 10)
	}
}

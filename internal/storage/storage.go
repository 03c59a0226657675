// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"reportbot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations. Every query
// that concerns a daily occurrence takes the occurrence date explicitly.
type Storage interface {
	CreateChannel(ctx context.Context, ch *model.Channel) error
	GetChannel(ctx context.Context, id int64) (*model.Channel, error)
	FindChannel(ctx context.Context, dest model.Destination) (*model.Channel, error)
	ListActiveChannels(ctx context.Context) ([]model.Channel, error)
	SetChannelActive(ctx context.Context, id int64, active bool) error

	AddTrackedUser(ctx context.Context, u *model.TrackedUser) error
	FindTrackedUser(ctx context.Context, channelID, userID int64) (*model.TrackedUser, error)
	ListTrackedUsers(ctx context.Context, channelID int64) ([]model.TrackedUser, error)
	RemoveTrackedUser(ctx context.Context, channelID, userID int64) error

	CreateEvent(ctx context.Context, ev model.Event) error
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	ListEvents(ctx context.Context, channelID int64, kind model.EventKind) ([]model.Event, error)
	ListChannelEvents(ctx context.Context, channelID int64) ([]model.Event, error)
	ListEphemeralEvents(ctx context.Context) ([]*model.EphemeralEvent, error)
	DeleteEvent(ctx context.Context, id int64) (bool, error)

	CreateSubmission(ctx context.Context, s *model.Submission) (bool, error)
	HasSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) (bool, error)
	FindSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) (*model.Submission, error)
	ListSubmissions(ctx context.Context, ev model.EventRef, date model.Date) ([]model.Submission, error)
	DeleteSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) error

	AddCheckoutReport(ctx context.Context, r *model.CheckoutReport) error
	ListCheckoutReports(ctx context.Context, eventID, userID int64, date model.Date) ([]model.CheckoutReport, error)

	RecordDayOff(ctx context.Context, d *model.DayOff) (bool, error)
	HasDayOff(ctx context.Context, eventID, userID int64, date model.Date) (bool, error)

	IncrementReminder(ctx context.Context, channelID, userID int64, date model.Date) error
	ReminderTotals(ctx context.Context, channelID int64, from, to model.Date) ([]model.ReminderTotal, error)

	Close() error
}

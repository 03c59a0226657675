// Package intake turns incoming chat messages into submissions, checkout
// reports and day-offs for the events of a channel.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reportbot/internal/filter"
	"reportbot/internal/model"
	"reportbot/internal/storage"
	"reportbot/internal/window"
)

// Store is the subset of storage.Storage the recorder writes through.
type Store interface {
	FindChannel(ctx context.Context, dest model.Destination) (*model.Channel, error)
	FindTrackedUser(ctx context.Context, channelID, userID int64) (*model.TrackedUser, error)
	ListChannelEvents(ctx context.Context, channelID int64) ([]model.Event, error)
	CreateSubmission(ctx context.Context, s *model.Submission) (bool, error)
	AddCheckoutReport(ctx context.Context, r *model.CheckoutReport) error
	RecordDayOff(ctx context.Context, d *model.DayOff) (bool, error)
}

// Message is a chat message reduced to what intake needs. Text holds the
// message text or the photo caption.
type Message struct {
	Dest       model.Destination
	UserID     int64
	MessageID  int
	Text       string
	PhotoCount int
	SentAt     time.Time
}

// Action describes what a message was recorded as.
type Action string

// Recorded actions.
const (
	ActionSubmitted   Action = "submitted"
	ActionDuplicate   Action = "duplicate"
	ActionDeclared    Action = "declared"
	ActionReported    Action = "checkout_report"
	ActionDayOff      Action = "day_off"
	ActionDayOffAgain Action = "day_off_duplicate"
)

// Result is one event a message counted for.
type Result struct {
	Event  model.EventRef
	Action Action
}

// Recorder matches messages against channel events.
type Recorder struct {
	store        Store
	window       *window.Model
	dayOffPhrase string
	log          *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store Store, w *window.Model, dayOffPhrase string, log *slog.Logger) *Recorder {
	return &Recorder{store: store, window: w, dayOffPhrase: dayOffPhrase, log: log}
}

// Record processes msg and returns the events it counted for. Messages
// from unregistered destinations or untracked users are ignored.
func (r *Recorder) Record(ctx context.Context, msg Message) ([]Result, error) {
	ch, err := r.store.FindChannel(ctx, msg.Dest)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find channel: %w", err)
	}
	if !ch.IsActive {
		return nil, nil
	}

	if _, err := r.store.FindTrackedUser(ctx, ch.ID, msg.UserID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tracked user: %w", err)
	}

	events, err := r.store.ListChannelEvents(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	today := r.window.Today(msg.SentAt)
	var results []Result
	for _, ev := range events {
		res, err := r.recordEvent(ctx, ch, ev, msg, today)
		if err != nil {
			r.log.Error("record message", "event", model.RefOf(ev), "user_id", msg.UserID, "error", err)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

func (r *Recorder) recordEvent(ctx context.Context, ch *model.Channel, ev model.Event, msg Message, today model.Date) (*Result, error) {
	switch e := ev.(type) {
	case *model.SimpleEvent:
		return r.recordKeyword(ctx, ch, ev, e.Keyword, e.MinPhotos, e.Deadline, msg, today)
	case *model.EphemeralEvent:
		if !r.window.EphemeralActive(e, msg.SentAt) {
			return nil, nil
		}
		return r.recordKeyword(ctx, ch, ev, e.Keyword, e.MinPhotos, e.Deadline, msg, today)
	case *model.CheckoutEvent:
		return r.recordCheckout(ctx, ch, e, msg, today)
	case *model.WindowEvent:
		return r.recordWindow(ctx, ch, e, msg, today)
	case *model.KeywordWindowEvent:
		if !r.window.InWindow(e.Start, e.End, today, msg.SentAt) {
			return nil, nil
		}
		ok, err := matches(e.Keyword, msg.Text)
		if err != nil || !ok {
			return nil, err
		}
		return r.submit(ctx, ch, ev, msg, today, true)
	}
	return nil, fmt.Errorf("unsupported event type %T", ev)
}

func (r *Recorder) recordKeyword(ctx context.Context, ch *model.Channel, ev model.Event, keyword string, minPhotos int, deadline model.TimeOfDay, msg Message, today model.Date) (*Result, error) {
	ok, err := matches(keyword, msg.Text)
	if err != nil || !ok {
		return nil, err
	}
	if msg.PhotoCount < minPhotos {
		return nil, nil
	}
	onTime := !msg.SentAt.After(r.window.Localize(deadline, today))
	return r.submit(ctx, ch, ev, msg, today, onTime)
}

func (r *Recorder) recordCheckout(ctx context.Context, ch *model.Channel, ev *model.CheckoutEvent, msg Message, today model.Date) (*Result, error) {
	first, err := filter.Compile(ev.FirstKeyword)
	if err != nil {
		return nil, err
	}
	if first.Match(msg.Text) {
		// A declaration must name at least one category; otherwise the
		// message is ignored so the member can declare again.
		categories := first.Categories(msg.Text)
		if len(categories) == 0 {
			return nil, nil
		}
		sub := &model.Submission{
			ChannelID:  ch.ID,
			Event:      model.RefOf(ev),
			UserID:     msg.UserID,
			Date:       today,
			Phase:      model.PhaseDeclaration,
			MessageID:  msg.MessageID,
			Text:       msg.Text,
			PhotoCount: msg.PhotoCount,
			Categories: categories,
			OnTime:     !msg.SentAt.After(r.window.Localize(ev.FirstDeadline, today)),
		}
		created, err := r.store.CreateSubmission(ctx, sub)
		if err != nil {
			return nil, err
		}
		return result(ev, created, ActionDeclared), nil
	}

	second, err := filter.Compile(ev.SecondKeyword)
	if err != nil {
		return nil, err
	}
	if !second.Match(msg.Text) || msg.PhotoCount == 0 || msg.PhotoCount < ev.MinPhotos {
		return nil, nil
	}
	report := &model.CheckoutReport{
		EventID:    ev.ID,
		UserID:     msg.UserID,
		Date:       today,
		MessageID:  msg.MessageID,
		PhotoCount: msg.PhotoCount,
		Categories: second.Categories(msg.Text),
		OnTime:     !msg.SentAt.After(r.window.Localize(ev.SecondDeadline, today)),
	}
	if err := r.store.AddCheckoutReport(ctx, report); err != nil {
		return nil, err
	}
	return &Result{Event: model.RefOf(ev), Action: ActionReported}, nil
}

func (r *Recorder) recordWindow(ctx context.Context, ch *model.Channel, ev *model.WindowEvent, msg Message, today model.Date) (*Result, error) {
	// A day-off counts any time before the window closes.
	if filter.ContainsPhrase(msg.Text, r.dayOffPhrase) {
		if msg.SentAt.After(r.window.Localize(ev.End, today)) {
			return nil, nil
		}
		created, err := r.store.RecordDayOff(ctx, &model.DayOff{
			EventID: ev.ID,
			UserID:  msg.UserID,
			Date:    today,
			Reason:  msg.Text,
		})
		if err != nil {
			return nil, err
		}
		if !created {
			return &Result{Event: model.RefOf(ev), Action: ActionDayOffAgain}, nil
		}
		return &Result{Event: model.RefOf(ev), Action: ActionDayOff}, nil
	}

	if msg.PhotoCount == 0 || !r.window.InWindow(ev.Start, ev.End, today, msg.SentAt) {
		return nil, nil
	}
	return r.submit(ctx, ch, ev, msg, today, true)
}

func (r *Recorder) submit(ctx context.Context, ch *model.Channel, ev model.Event, msg Message, today model.Date, onTime bool) (*Result, error) {
	created, err := r.store.CreateSubmission(ctx, &model.Submission{
		ChannelID:  ch.ID,
		Event:      model.RefOf(ev),
		UserID:     msg.UserID,
		Date:       today,
		Phase:      model.PhaseReport,
		MessageID:  msg.MessageID,
		Text:       msg.Text,
		PhotoCount: msg.PhotoCount,
		OnTime:     onTime,
	})
	if err != nil {
		return nil, err
	}
	return result(ev, created, ActionSubmitted), nil
}

func result(ev model.Event, created bool, action Action) *Result {
	if !created {
		action = ActionDuplicate
	}
	return &Result{Event: model.RefOf(ev), Action: action}
}

func matches(keyword, text string) (bool, error) {
	k, err := filter.Compile(keyword)
	if err != nil {
		return false, err
	}
	return k.Match(text), nil
}

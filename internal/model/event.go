package model

import (
	"fmt"
	"time"
)

// EventKind identifies one of the five event variants.
type EventKind string

// Supported event kinds.
const (
	KindSimple        EventKind = "simple"
	KindEphemeral     EventKind = "ephemeral"
	KindCheckout      EventKind = "checkout"
	KindWindow        EventKind = "window"
	KindKeywordWindow EventKind = "keyword_window"
)

// EventKinds lists every kind in evaluation order.
var EventKinds = []EventKind{KindSimple, KindEphemeral, KindCheckout, KindWindow, KindKeywordWindow}

// ParseEventKind validates a stored kind string.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range EventKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// DefaultCheckoutPublish is used when a checkout event has no explicit
// publication time.
var DefaultCheckoutPublish = TimeOfDay{Hour: 22, Minute: 0}

// Event is one of *SimpleEvent, *EphemeralEvent, *CheckoutEvent,
// *WindowEvent or *KeywordWindowEvent. The set is closed.
type Event interface {
	Kind() EventKind
	Base() *EventBase
	event()
}

// EventBase holds the fields shared by every variant.
type EventBase struct {
	ID        int64
	ChannelID int64
	CreatedAt time.Time
}

// Base returns the shared fields.
func (b *EventBase) Base() *EventBase { return b }

func (*EventBase) event() {}

// SimpleEvent recurs every day: a keyword report is due by Deadline.
type SimpleEvent struct {
	EventBase
	Keyword   string
	Deadline  TimeOfDay
	MinPhotos int
}

// Kind implements Event.
func (*SimpleEvent) Kind() EventKind { return KindSimple }

// EphemeralEvent is a SimpleEvent bound to a single calendar date.
// It is deleted by the cleanup sweep once the date has passed.
type EphemeralEvent struct {
	EventBase
	Keyword   string
	Deadline  TimeOfDay
	MinPhotos int
	Date      Date
}

// Kind implements Event.
func (*EphemeralEvent) Kind() EventKind { return KindEphemeral }

// CheckoutEvent is the two-phase event: a declaration of categories by
// FirstDeadline, then photo reports covering every declared category by
// SecondDeadline.
type CheckoutEvent struct {
	EventBase
	FirstKeyword   string
	SecondKeyword  string
	FirstDeadline  TimeOfDay
	SecondDeadline TimeOfDay
	MinPhotos      int
	PublishAt      *TimeOfDay
}

// Kind implements Event.
func (*CheckoutEvent) Kind() EventKind { return KindCheckout }

// PublishTime returns the daily summary time, falling back to the default.
func (e *CheckoutEvent) PublishTime() TimeOfDay {
	if e.PublishAt != nil {
		return *e.PublishAt
	}
	return DefaultCheckoutPublish
}

// WindowEvent requires a photo between Start and End, or a day-off
// declaration.
type WindowEvent struct {
	EventBase
	Start TimeOfDay
	End   TimeOfDay
}

// Kind implements Event.
func (*WindowEvent) Kind() EventKind { return KindWindow }

// KeywordWindowEvent requires a message or caption matching Keyword
// between Start and End. ReferencePhoto and Description are shown to
// humans only.
type KeywordWindowEvent struct {
	EventBase
	Keyword        string
	Start          TimeOfDay
	End            TimeOfDay
	ReferencePhoto string
	Description    string
}

// Kind implements Event.
func (*KeywordWindowEvent) Kind() EventKind { return KindKeywordWindow }

// EventRef identifies an event across variants.
type EventRef struct {
	Kind EventKind
	ID   int64
}

// RefOf returns the reference of ev.
func RefOf(ev Event) EventRef {
	return EventRef{Kind: ev.Kind(), ID: ev.Base().ID}
}

func (r EventRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// EventTitle is a short human label for an event.
func EventTitle(ev Event) string {
	switch e := ev.(type) {
	case *SimpleEvent:
		return e.Keyword
	case *EphemeralEvent:
		return e.Keyword
	case *CheckoutEvent:
		return e.FirstKeyword + " / " + e.SecondKeyword
	case *WindowEvent:
		return fmt.Sprintf("photo %s-%s", e.Start, e.End)
	case *KeywordWindowEvent:
		return e.Keyword
	default:
		panic(fmt.Sprintf("model: unhandled event type %T", ev))
	}
}

package model

import (
	"slices"
	"time"
)

// Category is an item of the checkout controlled vocabulary.
type Category string

// Checkout categories.
const (
	CategoryCash     Category = "cash"
	CategoryTerminal Category = "terminal"
	CategorySafe     Category = "safe"
	CategoryReceipts Category = "receipts"
	CategoryShelves  Category = "shelves"
)

// Vocabulary is the full controlled vocabulary, in display order.
var Vocabulary = []Category{CategoryCash, CategoryTerminal, CategorySafe, CategoryReceipts, CategoryShelves}

// IsKnown reports whether c belongs to the vocabulary.
func (c Category) IsKnown() bool {
	return slices.Contains(Vocabulary, c)
}

// Categories is a set of categories.
type Categories map[Category]struct{}

// NewCategories builds a set from the given values.
func NewCategories(cs ...Category) Categories {
	set := make(Categories, len(cs))
	for _, c := range cs {
		set[c] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s Categories) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// Add inserts every c into the set.
func (s Categories) Add(cs ...Category) {
	for _, c := range cs {
		s[c] = struct{}{}
	}
}

// Difference returns the members of s not present in other.
func (s Categories) Difference(other Categories) Categories {
	out := make(Categories)
	for c := range s {
		if !other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in vocabulary order; unknown values come last
// in lexical order.
func (s Categories) Sorted() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Category) int {
		ia, ib := slices.Index(Vocabulary, a), slices.Index(Vocabulary, b)
		switch {
		case ia >= 0 && ib >= 0:
			return ia - ib
		case ia >= 0:
			return -1
		case ib >= 0:
			return 1
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	return out
}

// Phase distinguishes checkout declarations from regular submissions.
type Phase int

// Submission phases. PhaseReport is the only phase of non-checkout events.
const (
	PhaseReport      Phase = 0
	PhaseDeclaration Phase = 1
)

// Submission is the single daily record of a user for an event and phase.
type Submission struct {
	ID         int64
	ChannelID  int64
	Event      EventRef
	UserID     int64
	Date       Date
	Phase      Phase
	MessageID  int
	Text       string
	PhotoCount int
	Categories []Category
	OnTime     bool
	CreatedAt  time.Time
}

// CheckoutReport is one photo report of the second checkout phase.
type CheckoutReport struct {
	ID         int64
	EventID    int64
	UserID     int64
	Date       Date
	MessageID  int
	PhotoCount int
	Categories []Category
	OnTime     bool
	CreatedAt  time.Time
}

// DayOff exempts a user from a window event for one date.
type DayOff struct {
	EventID   int64
	UserID    int64
	Date      Date
	Reason    string
	CreatedAt time.Time
}

// ReminderTotal is a per-user sum of dated reminder counters.
type ReminderTotal struct {
	UserID int64
	Count  int
}

// NotificationKind names a notification that fires at most once per
// channel, event and date.
type NotificationKind string

// Notification kinds.
const (
	NotifyPreWarning       NotificationKind = "pre_warning"
	NotifyPostReminder     NotificationKind = "post_reminder"
	NotifyPhase1PreWarning NotificationKind = "phase1_pre_warning"
	NotifyPhase1Reminder   NotificationKind = "phase1_post_reminder"
	NotifyPhase2PreWarning NotificationKind = "phase2_pre_warning"
	NotifyPhase2Reminder   NotificationKind = "phase2_post_reminder"
	NotifyPublication      NotificationKind = "publication"
	NotifyDailySummary     NotificationKind = "daily_summary"
)

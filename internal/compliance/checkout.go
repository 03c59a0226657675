package compliance

import (
	"context"
	"fmt"

	"reportbot/internal/grouping"
	"reportbot/internal/model"
)

// Status is the progress of an account or unit through a checkout event.
type Status string

// Checkout statuses, from least to most advanced.
const (
	StatusNotSubmittedFirst    Status = "not_submitted_first"
	StatusNotSubmittedAnything Status = "not_submitted_anything"
	StatusNotSubmittedSecond   Status = "not_submitted_second"
	StatusPartialSecond        Status = "partial_second"
	StatusComplete             Status = "complete"
)

func (s Status) rank() int {
	switch s {
	case StatusNotSubmittedFirst, StatusNotSubmittedAnything:
		return 0
	case StatusNotSubmittedSecond:
		return 1
	case StatusPartialSecond:
		return 2
	case StatusComplete:
		return 3
	}
	return -1
}

// Declared reports whether the first phase has been submitted.
func (s Status) Declared() bool {
	return s.rank() >= 1
}

// Satisfies reports whether the status meets the requirement of phase.
func (s Status) Satisfies(p Phase) bool {
	if p == PhaseFirst {
		return s.Declared()
	}
	return s == StatusComplete
}

// Classification is the checkout state of one account.
type Classification struct {
	Status    Status
	Remaining []model.Category
	// OnTime is true when the declaration and every report were on time.
	OnTime bool
}

// Classify computes the checkout state of one account on date. Declared
// categories outside the vocabulary are ignored, and reported categories
// never declared have no effect.
func (e *Evaluator) Classify(ctx context.Context, ev *model.CheckoutEvent, userID int64, date model.Date, afterFirst bool) (Classification, error) {
	decl, err := e.facts.FindSubmission(ctx, model.RefOf(ev), userID, date, model.PhaseDeclaration)
	if err != nil {
		return Classification{}, fmt.Errorf("find declaration: %w", err)
	}
	if decl == nil {
		if afterFirst {
			return Classification{Status: StatusNotSubmittedAnything}, nil
		}
		return Classification{Status: StatusNotSubmittedFirst}, nil
	}

	declared := model.NewCategories()
	for _, c := range decl.Categories {
		if c.IsKnown() {
			declared.Add(c)
		}
	}

	reports, err := e.facts.ListCheckoutReports(ctx, ev.ID, userID, date)
	if err != nil {
		return Classification{}, fmt.Errorf("list checkout reports: %w", err)
	}

	reported := model.NewCategories()
	onTime := decl.OnTime
	for _, r := range reports {
		reported.Add(r.Categories...)
		onTime = onTime && r.OnTime
	}

	remaining := declared.Difference(reported).Sorted()
	c := Classification{Remaining: remaining, OnTime: onTime}
	switch {
	case len(reports) == 0:
		// A declaration alone never completes the event, even an empty one.
		c.Status = StatusNotSubmittedSecond
	case len(remaining) == 0:
		c.Status = StatusComplete
		c.Remaining = nil
	default:
		c.Status = StatusPartialSecond
	}
	return c, nil
}

// UnitResult is one line of the checkout daily summary.
type UnitResult struct {
	Unit           grouping.Unit
	Classification Classification
}

// Summary is the daily breakdown of a checkout event.
type Summary struct {
	OnTime  []UnitResult
	Late    []UnitResult
	Missing []UnitResult
}

// Summarize classifies every unit for the checkout daily summary.
func (e *Evaluator) Summarize(ctx context.Context, ev *model.CheckoutEvent, users []model.TrackedUser, date model.Date) (Summary, error) {
	var s Summary
	for _, unit := range grouping.Group(users) {
		c, err := e.classifyUnit(ctx, ev, unit, date, true)
		if err != nil {
			return Summary{}, fmt.Errorf("classify %q: %w", unit.Key, err)
		}
		r := UnitResult{Unit: unit, Classification: c}
		switch {
		case c.Status != StatusComplete:
			s.Missing = append(s.Missing, r)
		case c.OnTime:
			s.OnTime = append(s.OnTime, r)
		default:
			s.Late = append(s.Late, r)
		}
	}
	return s, nil
}

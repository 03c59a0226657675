// Package compliance partitions compliance units into compliant and
// non-compliant for one event occurrence.
package compliance

import (
	"context"
	"fmt"

	"reportbot/internal/grouping"
	"reportbot/internal/model"
)

// Facts is the read access the evaluator needs. FindSubmission returns
// (nil, nil) when no record exists.
type Facts interface {
	HasSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) (bool, error)
	FindSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) (*model.Submission, error)
	HasDayOff(ctx context.Context, eventID, userID int64, date model.Date) (bool, error)
	ListCheckoutReports(ctx context.Context, eventID, userID int64, date model.Date) ([]model.CheckoutReport, error)
}

// Phase selects which checkout phase is evaluated. Other event kinds
// ignore it.
type Phase int

// Checkout phases.
const (
	PhaseFirst Phase = iota + 1
	PhaseSecond
)

// Finding is a non-compliant unit. Status and Remaining are set for
// checkout events only.
type Finding struct {
	Unit      grouping.Unit
	Status    Status
	Remaining []model.Category
}

// Evaluator applies per-kind predicates to grouped users.
type Evaluator struct {
	facts Facts
}

// NewEvaluator creates an Evaluator reading from facts.
func NewEvaluator(facts Facts) *Evaluator {
	return &Evaluator{facts: facts}
}

// NonCompliant returns the units that have not satisfied ev on date, in
// first-seen order. afterFirst tells checkout classification whether the
// first deadline has already passed.
func (e *Evaluator) NonCompliant(ctx context.Context, ev model.Event, users []model.TrackedUser, date model.Date, phase Phase, afterFirst bool) ([]Finding, error) {
	if co, ok := ev.(*model.CheckoutEvent); ok {
		return e.checkoutFindings(ctx, co, users, date, phase, afterFirst)
	}

	pred, err := e.predicate(ctx, ev, date)
	if err != nil {
		return nil, err
	}

	var out []Finding
	for _, unit := range grouping.Group(users) {
		ok, err := unit.Compliant(pred)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s for %q: %w", model.RefOf(ev), unit.Key, err)
		}
		if !ok {
			out = append(out, Finding{Unit: unit})
		}
	}
	return out, nil
}

// predicate returns the account-level check for non-checkout events.
func (e *Evaluator) predicate(ctx context.Context, ev model.Event, date model.Date) (func(model.TrackedUser) (bool, error), error) {
	ref := model.RefOf(ev)
	submitted := func(u model.TrackedUser) (bool, error) {
		return e.facts.HasSubmission(ctx, ref, u.UserID, date, model.PhaseReport)
	}

	switch ev.(type) {
	case *model.SimpleEvent, *model.EphemeralEvent, *model.KeywordWindowEvent:
		return submitted, nil
	case *model.WindowEvent:
		return func(u model.TrackedUser) (bool, error) {
			off, err := e.facts.HasDayOff(ctx, ref.ID, u.UserID, date)
			if err != nil {
				return false, err
			}
			if off {
				return true, nil
			}
			return submitted(u)
		}, nil
	case *model.CheckoutEvent:
		return nil, fmt.Errorf("checkout event %d has no single predicate", ref.ID)
	default:
		return nil, fmt.Errorf("unsupported event type %T", ev)
	}
}

func (e *Evaluator) checkoutFindings(ctx context.Context, ev *model.CheckoutEvent, users []model.TrackedUser, date model.Date, phase Phase, afterFirst bool) ([]Finding, error) {
	var out []Finding
	for _, unit := range grouping.Group(users) {
		best, err := e.classifyUnit(ctx, ev, unit, date, afterFirst)
		if err != nil {
			return nil, fmt.Errorf("classify %q: %w", unit.Key, err)
		}
		if !best.Status.Satisfies(phase) {
			out = append(out, Finding{Unit: unit, Status: best.Status, Remaining: best.Remaining})
		}
	}
	return out, nil
}

// classifyUnit returns the most advanced classification among the unit's
// members, which reflects the OR-across-accounts rule.
func (e *Evaluator) classifyUnit(ctx context.Context, ev *model.CheckoutEvent, unit grouping.Unit, date model.Date, afterFirst bool) (Classification, error) {
	var best Classification
	for i, m := range unit.Members {
		c, err := e.Classify(ctx, ev, m.UserID, date, afterFirst)
		if err != nil {
			return Classification{}, err
		}
		if i == 0 || c.Status.rank() > best.Status.rank() {
			best = c
		}
		if best.Status == StatusComplete {
			break
		}
	}
	return best, nil
}

// Package grouping collapses tracked accounts into compliance units.
//
// Accounts that share a display name (typically several employees of the
// same store) are one unit: a single report from any of them satisfies the
// whole unit.
package grouping

import (
	"strconv"

	"reportbot/internal/model"
)

// Unit is a group of accounts treated as one compliance entity.
type Unit struct {
	Key     string
	Members []model.TrackedUser
}

// Representative returns the account that stands in for the unit in
// mentions: the first member in input order.
func (u Unit) Representative() model.TrackedUser {
	return u.Members[0]
}

// Label is the human name of the unit.
func (u Unit) Label() string {
	if name := u.Members[0].DisplayName; name != "" {
		return name
	}
	return u.Representative().Mention()
}

// Compliant reports whether any member satisfies pred. Evaluation stops at
// the first compliant member or the first error.
func (u Unit) Compliant(pred func(model.TrackedUser) (bool, error)) (bool, error) {
	for _, m := range u.Members {
		ok, err := pred(m)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Key returns the grouping key of a user: the display name, or a synthetic
// per-account key when the name is empty so unnamed users never merge.
func Key(u model.TrackedUser) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return "user:" + strconv.FormatInt(u.UserID, 10)
}

// Group partitions users into units. Units appear in first-seen order and
// members keep their input order.
func Group(users []model.TrackedUser) []Unit {
	index := make(map[string]int)
	var units []Unit
	for _, u := range users {
		k := Key(u)
		i, ok := index[k]
		if !ok {
			index[k] = len(units)
			units = append(units, Unit{Key: k, Members: []model.TrackedUser{u}})
			continue
		}
		units[i].Members = append(units[i].Members, u)
	}
	return units
}

package storage

import (
	"context"
	"fmt"
	"time"

	"reportbot/internal/model"
)

const submissionColumns = `id, channel_id, event_kind, event_id, user_id, occurrence_date, phase,
	message_id, text, photo_count, categories, on_time, created_at`

// CreateSubmission records a submission. At most one submission exists per
// event, user, date and phase; it reports false when one already existed.
func (s *SQLite) CreateSubmission(ctx context.Context, sub *model.Submission) (bool, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO submissions (channel_id, event_kind, event_id, user_id, occurrence_date, phase,
		   message_id, text, photo_count, categories, on_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ChannelID, string(sub.Event.Kind), sub.Event.ID, sub.UserID, sub.Date.String(), int(sub.Phase),
		sub.MessageID, sub.Text, sub.PhotoCount, joinCategories(sub.Categories), boolToInt(sub.OnTime), now,
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return true, nil
}

// HasSubmission reports whether a submission exists.
func (s *SQLite) HasSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions
		 WHERE event_kind = ? AND event_id = ? AND user_id = ? AND occurrence_date = ? AND phase = ?`,
		string(ev.Kind), ev.ID, userID, date.String(), int(phase),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check submission: %w", err)
	}
	return count > 0, nil
}

// FindSubmission returns the submission, or nil when there is none.
func (s *SQLite) FindSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) (*model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE event_kind = ? AND event_id = ? AND user_id = ? AND occurrence_date = ? AND phase = ?`,
		string(ev.Kind), ev.ID, userID, date.String(), int(phase),
	)
	if err != nil {
		return nil, fmt.Errorf("query submission: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, rows.Err()
	}
	sub, err := scanSubmission(rows)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListSubmissions returns every submission of an event occurrence.
func (s *SQLite) ListSubmissions(ctx context.Context, ev model.EventRef, date model.Date) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE event_kind = ? AND event_id = ? AND occurrence_date = ? ORDER BY id`,
		string(ev.Kind), ev.ID, date.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteSubmission removes one submission if it exists.
func (s *SQLite) DeleteSubmission(ctx context.Context, ev model.EventRef, userID int64, date model.Date, phase model.Phase) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM submissions
		 WHERE event_kind = ? AND event_id = ? AND user_id = ? AND occurrence_date = ? AND phase = ?`,
		string(ev.Kind), ev.ID, userID, date.String(), int(phase),
	)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return nil
}

func scanSubmission(row scannable) (model.Submission, error) {
	var sub model.Submission
	var kind, date, cats, created string
	var phase, onTime int
	err := row.Scan(&sub.ID, &sub.ChannelID, &kind, &sub.Event.ID, &sub.UserID, &date, &phase,
		&sub.MessageID, &sub.Text, &sub.PhotoCount, &cats, &onTime, &created)
	if err != nil {
		return sub, fmt.Errorf("scan submission: %w", err)
	}
	sub.Event.Kind = model.EventKind(kind)
	sub.Date, err = model.ParseDate(date)
	if err != nil {
		return sub, err
	}
	sub.Phase = model.Phase(phase)
	sub.Categories = splitCategories(cats)
	sub.OnTime = onTime == 1
	sub.CreatedAt, _ = time.Parse(timeLayout, created)
	return sub, nil
}

// AddCheckoutReport appends a second-phase checkout report.
func (s *SQLite) AddCheckoutReport(ctx context.Context, r *model.CheckoutReport) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO checkout_reports (event_id, user_id, occurrence_date, message_id, photo_count, categories, on_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EventID, r.UserID, r.Date.String(), r.MessageID, r.PhotoCount, joinCategories(r.Categories), boolToInt(r.OnTime), now,
	)
	if err != nil {
		return fmt.Errorf("insert checkout report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// ListCheckoutReports returns a user's checkout reports for one date.
func (s *SQLite) ListCheckoutReports(ctx context.Context, eventID, userID int64, date model.Date) ([]model.CheckoutReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, user_id, occurrence_date, message_id, photo_count, categories, on_time, created_at
		 FROM checkout_reports WHERE event_id = ? AND user_id = ? AND occurrence_date = ? ORDER BY id`,
		eventID, userID, date.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query checkout reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []model.CheckoutReport
	for rows.Next() {
		var r model.CheckoutReport
		var d, cats, created string
		var onTime int
		if err := rows.Scan(&r.ID, &r.EventID, &r.UserID, &d, &r.MessageID, &r.PhotoCount, &cats, &onTime, &created); err != nil {
			return nil, fmt.Errorf("scan checkout report: %w", err)
		}
		r.Date, err = model.ParseDate(d)
		if err != nil {
			return nil, err
		}
		r.Categories = splitCategories(cats)
		r.OnTime = onTime == 1
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// RecordDayOff stores a day-off; it reports false if one already existed.
func (s *SQLite) RecordDayOff(ctx context.Context, d *model.DayOff) (bool, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO day_offs (event_id, user_id, occurrence_date, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.EventID, d.UserID, d.Date.String(), d.Reason, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert day off: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		d.CreatedAt, _ = time.Parse(timeLayout, now)
	}
	return n > 0, nil
}

// HasDayOff reports whether a user declared a day off for an event date.
func (s *SQLite) HasDayOff(ctx context.Context, eventID, userID int64, date model.Date) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM day_offs WHERE event_id = ? AND user_id = ? AND occurrence_date = ?`,
		eventID, userID, date.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check day off: %w", err)
	}
	return count > 0, nil
}

// IncrementReminder adds one to the user's reminder counter for date.
func (s *SQLite) IncrementReminder(ctx context.Context, channelID, userID int64, date model.Date) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_counts (channel_id, user_id, occurrence_date, count) VALUES (?, ?, ?, 1)
		 ON CONFLICT (channel_id, user_id, occurrence_date) DO UPDATE SET count = count + 1`,
		channelID, userID, date.String(),
	)
	if err != nil {
		return fmt.Errorf("increment reminder: %w", err)
	}
	return nil
}

// ReminderTotals sums reminder counters per user over [from, to], largest
// first. Counters are never reset; the range selects the period.
func (s *SQLite) ReminderTotals(ctx context.Context, channelID int64, from, to model.Date) ([]model.ReminderTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, SUM(count) AS total FROM reminder_counts
		 WHERE channel_id = ? AND occurrence_date >= ? AND occurrence_date <= ?
		 GROUP BY user_id
		 ORDER BY total DESC, user_id`,
		channelID, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("query reminder totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totals []model.ReminderTotal
	for rows.Next() {
		var t model.ReminderTotal
		if err := rows.Scan(&t.UserID, &t.Count); err != nil {
			return nil, fmt.Errorf("scan reminder total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

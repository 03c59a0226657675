package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reportbot/internal/model"
)

// eventRow is the flat table representation shared by all event kinds.
type eventRow struct {
	id             int64
	channelID      int64
	kind           string
	keyword        string
	secondKeyword  string
	deadline       sql.NullString
	secondDeadline sql.NullString
	start          sql.NullString
	end            sql.NullString
	date           sql.NullString
	minPhotos      int
	publishAt      sql.NullString
	referencePhoto string
	description    string
	createdAt      string
}

const eventColumns = `id, channel_id, kind, keyword, second_keyword, deadline, second_deadline,
	start_time, end_time, event_date, min_photos, publish_at, reference_photo, description, created_at`

func timeValue(t model.TimeOfDay) sql.NullString {
	return sql.NullString{String: t.String(), Valid: true}
}

func rowFromEvent(ev model.Event) (eventRow, error) {
	r := eventRow{channelID: ev.Base().ChannelID, kind: string(ev.Kind())}
	switch e := ev.(type) {
	case *model.SimpleEvent:
		r.keyword = e.Keyword
		r.deadline = timeValue(e.Deadline)
		r.minPhotos = e.MinPhotos
	case *model.EphemeralEvent:
		r.keyword = e.Keyword
		r.deadline = timeValue(e.Deadline)
		r.minPhotos = e.MinPhotos
		r.date = sql.NullString{String: e.Date.String(), Valid: true}
	case *model.CheckoutEvent:
		if !e.FirstDeadline.Before(e.SecondDeadline) {
			return r, fmt.Errorf("first deadline %s must be before second deadline %s", e.FirstDeadline, e.SecondDeadline)
		}
		r.keyword = e.FirstKeyword
		r.secondKeyword = e.SecondKeyword
		r.deadline = timeValue(e.FirstDeadline)
		r.secondDeadline = timeValue(e.SecondDeadline)
		r.minPhotos = e.MinPhotos
		if e.PublishAt != nil {
			r.publishAt = timeValue(*e.PublishAt)
		}
	case *model.WindowEvent:
		r.start = timeValue(e.Start)
		r.end = timeValue(e.End)
	case *model.KeywordWindowEvent:
		r.keyword = e.Keyword
		r.start = timeValue(e.Start)
		r.end = timeValue(e.End)
		r.referencePhoto = e.ReferencePhoto
		r.description = e.Description
	default:
		return r, fmt.Errorf("unsupported event type %T", ev)
	}
	return r, nil
}

func parseTime(ns sql.NullString, field string) (model.TimeOfDay, error) {
	if !ns.Valid {
		return model.TimeOfDay{}, fmt.Errorf("missing %s", field)
	}
	t, err := model.ParseTimeOfDay(ns.String)
	if err != nil {
		return t, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func (r eventRow) toEvent() (model.Event, error) {
	kind, err := model.ParseEventKind(r.kind)
	if err != nil {
		return nil, err
	}
	base := model.EventBase{ID: r.id, ChannelID: r.channelID}
	base.CreatedAt, _ = time.Parse(timeLayout, r.createdAt)

	switch kind {
	case model.KindSimple:
		deadline, err := parseTime(r.deadline, "deadline")
		if err != nil {
			return nil, err
		}
		return &model.SimpleEvent{EventBase: base, Keyword: r.keyword, Deadline: deadline, MinPhotos: r.minPhotos}, nil
	case model.KindEphemeral:
		deadline, err := parseTime(r.deadline, "deadline")
		if err != nil {
			return nil, err
		}
		date, err := model.ParseDate(r.date.String)
		if err != nil {
			return nil, err
		}
		return &model.EphemeralEvent{EventBase: base, Keyword: r.keyword, Deadline: deadline, MinPhotos: r.minPhotos, Date: date}, nil
	case model.KindCheckout:
		first, err := parseTime(r.deadline, "deadline")
		if err != nil {
			return nil, err
		}
		second, err := parseTime(r.secondDeadline, "second_deadline")
		if err != nil {
			return nil, err
		}
		ev := &model.CheckoutEvent{
			EventBase:      base,
			FirstKeyword:   r.keyword,
			SecondKeyword:  r.secondKeyword,
			FirstDeadline:  first,
			SecondDeadline: second,
			MinPhotos:      r.minPhotos,
		}
		if r.publishAt.Valid {
			p, err := parseTime(r.publishAt, "publish_at")
			if err != nil {
				return nil, err
			}
			ev.PublishAt = &p
		}
		return ev, nil
	case model.KindWindow, model.KindKeywordWindow:
		start, err := parseTime(r.start, "start_time")
		if err != nil {
			return nil, err
		}
		end, err := parseTime(r.end, "end_time")
		if err != nil {
			return nil, err
		}
		if kind == model.KindWindow {
			return &model.WindowEvent{EventBase: base, Start: start, End: end}, nil
		}
		return &model.KeywordWindowEvent{
			EventBase:      base,
			Keyword:        r.keyword,
			Start:          start,
			End:            end,
			ReferencePhoto: r.referencePhoto,
			Description:    r.description,
		}, nil
	}
	return nil, fmt.Errorf("unhandled event kind %q", kind)
}

func scanEvent(row scannable) (model.Event, error) {
	var r eventRow
	err := row.Scan(&r.id, &r.channelID, &r.kind, &r.keyword, &r.secondKeyword, &r.deadline, &r.secondDeadline,
		&r.start, &r.end, &r.date, &r.minPhotos, &r.publishAt, &r.referencePhoto, &r.description, &r.createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", notFound(err))
	}
	ev, err := r.toEvent()
	if err != nil {
		return nil, fmt.Errorf("decode event %d: %w", r.id, err)
	}
	return ev, nil
}

// CreateEvent inserts an event of any kind and populates its ID and
// CreatedAt.
func (s *SQLite) CreateEvent(ctx context.Context, ev model.Event) error {
	r, err := rowFromEvent(ev)
	if err != nil {
		return err
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (channel_id, kind, keyword, second_keyword, deadline, second_deadline,
		   start_time, end_time, event_date, min_photos, publish_at, reference_photo, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.channelID, r.kind, r.keyword, r.secondKeyword, r.deadline, r.secondDeadline,
		r.start, r.end, r.date, r.minPhotos, r.publishAt, r.referencePhoto, r.description, now,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	base := ev.Base()
	base.ID = id
	base.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetEvent returns an event by its ID.
func (s *SQLite) GetEvent(ctx context.Context, id int64) (model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListEvents returns the channel's events of one kind ordered by ID.
func (s *SQLite) ListEvents(ctx context.Context, channelID int64, kind model.EventKind) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE channel_id = ? AND kind = ? ORDER BY id`,
		channelID, string(kind),
	)
}

// ListChannelEvents returns every event of a channel ordered by ID.
func (s *SQLite) ListChannelEvents(ctx context.Context, channelID int64) ([]model.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE channel_id = ? ORDER BY id`, channelID)
}

// ListEphemeralEvents returns dated events across all channels.
func (s *SQLite) ListEphemeralEvents(ctx context.Context) ([]*model.EphemeralEvent, error) {
	events, err := s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE kind = ? ORDER BY id`, string(model.KindEphemeral),
	)
	if err != nil {
		return nil, err
	}
	out := make([]*model.EphemeralEvent, 0, len(events))
	for _, ev := range events {
		if e, ok := ev.(*model.EphemeralEvent); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *SQLite) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteEvent removes an event together with its submissions, checkout
// reports and day-offs. It reports whether the event existed; deleting a
// missing event is not an error.
func (s *SQLite) DeleteEvent(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE event_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete submissions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkout_reports WHERE event_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete checkout reports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM day_offs WHERE event_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete day offs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

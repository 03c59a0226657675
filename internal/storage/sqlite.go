package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"reportbot/internal/model"
	"reportbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:"
	// databases on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

// CreateChannel inserts a channel and populates its ID and CreatedAt.
func (s *SQLite) CreateChannel(ctx context.Context, ch *model.Channel) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (chat_id, thread_id, title, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		ch.ChatID, ch.ThreadID, ch.Title, boolToInt(ch.IsActive), now,
	)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	ch.ID = id
	ch.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

const channelColumns = `id, chat_id, thread_id, title, is_active, created_at`

// GetChannel returns a channel by its ID.
func (s *SQLite) GetChannel(ctx context.Context, id int64) (*model.Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

// FindChannel returns the channel bound to a chat and thread.
func (s *SQLite) FindChannel(ctx context.Context, dest model.Destination) (*model.Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE chat_id = ? AND thread_id = ?`,
		dest.ChatID, dest.ThreadID,
	)
	return scanChannel(row)
}

// ListActiveChannels returns every active channel ordered by ID.
func (s *SQLite) ListActiveChannels(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var channels []model.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// SetChannelActive pauses or resumes evaluation of a channel.
func (s *SQLite) SetChannelActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE channels SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}

// AddTrackedUser starts tracking a user in a channel. Adding an already
// tracked user updates its names and store.
func (s *SQLite) AddTrackedUser(ctx context.Context, u *model.TrackedUser) error {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO tracked_users (channel_id, user_id, username, display_name, store_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (channel_id, user_id) DO UPDATE SET
		   username = excluded.username,
		   display_name = excluded.display_name,
		   store_id = excluded.store_id
		 RETURNING id`,
		u.ChannelID, u.UserID, u.Username, u.DisplayName, u.StoreID,
	)
	if err := row.Scan(&u.ID); err != nil {
		return fmt.Errorf("upsert tracked user: %w", err)
	}
	return nil
}

const userColumns = `id, channel_id, user_id, username, display_name, store_id`

// FindTrackedUser returns the tracked account of userID in a channel.
func (s *SQLite) FindTrackedUser(ctx context.Context, channelID, userID int64) (*model.TrackedUser, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM tracked_users WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListTrackedUsers returns the channel's tracked users in insertion order.
func (s *SQLite) ListTrackedUsers(ctx context.Context, channelID int64) ([]model.TrackedUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM tracked_users WHERE channel_id = ? ORDER BY id`, channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tracked users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.TrackedUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// RemoveTrackedUser stops tracking a user in a channel.
func (s *SQLite) RemoveTrackedUser(ctx context.Context, channelID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tracked_users WHERE channel_id = ? AND user_id = ?`, channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete tracked user: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanChannel(row scannable) (*model.Channel, error) {
	var ch model.Channel
	var isActive int
	var created string
	err := row.Scan(&ch.ID, &ch.ChatID, &ch.ThreadID, &ch.Title, &isActive, &created)
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", notFound(err))
	}
	ch.IsActive = isActive == 1
	ch.CreatedAt, _ = time.Parse(timeLayout, created)
	return &ch, nil
}

func scanUser(row scannable) (model.TrackedUser, error) {
	var u model.TrackedUser
	err := row.Scan(&u.ID, &u.ChannelID, &u.UserID, &u.Username, &u.DisplayName, &u.StoreID)
	if err != nil {
		return u, fmt.Errorf("scan tracked user: %w", notFound(err))
	}
	return u, nil
}

func joinCategories(cs []model.Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitCategories(s string) []model.Category {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]model.Category, len(parts))
	for i, p := range parts {
		out[i] = model.Category(p)
	}
	return out
}

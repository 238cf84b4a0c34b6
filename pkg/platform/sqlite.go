package platform

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/assistify/chatpal-search/pkg/db"
)

// SQLiteStore implements Store on a local SQLite database. It is the
// write-through copy of the platform data maintained by the inbound event
// hooks; all reads the gateway performs go through the Store interfaces.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the platform database at
// dbPath and applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if err := db.InitializeDatabase(sqlDB); err != nil {
		return nil, fmt.Errorf("initializing platform database: %w", err)
	}

	return &SQLiteStore{db: sqlDB}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) MessagesBetween(ctx context.Context, start, end time.Time, limit, offset int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, user_id, text, created_at, updated_at
		FROM messages
		WHERE created_at > ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ? OFFSET ?`,
		start, end, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Text, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

func (s *SQLiteStore) HasMessagesBefore(ctx context.Context, t time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM messages WHERE created_at <= ? LIMIT 1", t).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probing messages before %s: %w", t.Format(time.RFC3339), err)
	}
	return true, nil
}

func (s *SQLiteStore) Users(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, name, emails, created_at
		FROM users
		ORDER BY id
		LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var users []User
	for rows.Next() {
		var u User
		var emailsJSON string
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &emailsJSON, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		if emailsJSON != "" {
			if err := json.Unmarshal([]byte(emailsJSON), &u.Emails); err != nil {
				return nil, fmt.Errorf("unmarshaling emails for user %s: %w", u.ID, err)
			}
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (s *SQLiteStore) UserInfo(ctx context.Context, id string) (*UserInfo, error) {
	var info UserInfo
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, name FROM users WHERE id = ?", id).
		Scan(&info.ID, &info.Username, &info.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	return &info, nil
}

func (s *SQLiteStore) SubscribedRoomIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT room_id FROM subscriptions WHERE user_id = ? ORDER BY room_id", userID)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions for user %s: %w", userID, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var roomIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		roomIDs = append(roomIDs, id)
	}

	return roomIDs, rows.Err()
}

func (s *SQLiteStore) Subscription(ctx context.Context, userID, roomID string) (*Subscription, error) {
	var sub Subscription
	err := s.db.QueryRowContext(ctx, `
		SELECT s.room_id, s.user_id, r.name, r.type
		FROM subscriptions s
		JOIN rooms r ON r.id = s.room_id
		WHERE s.user_id = ? AND s.room_id = ?`,
		userID, roomID).
		Scan(&sub.RoomID, &sub.UserID, &sub.RoomName, &sub.RoomType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription %s/%s: %w", userID, roomID, err)
	}
	return &sub, nil
}

func (s *SQLiteStore) Room(ctx context.Context, id string) (*Room, error) {
	var r Room
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, type FROM rooms WHERE id = ?", id).
		Scan(&r.ID, &r.Name, &r.Type)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying room %s: %w", id, err)
	}
	return &r, nil
}

// SaveMessage upserts a message (write side, fed by the event hooks).
func (s *SQLiteStore) SaveMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages (id, room_id, user_id, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.UserID, m.Text, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving message %s: %w", m.ID, err)
	}
	return nil
}

// DeleteMessage removes a message from the platform copy.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return nil
}

// SaveUser upserts a user record.
func (s *SQLiteStore) SaveUser(ctx context.Context, u User) error {
	emailsJSON, err := json.Marshal(u.Emails)
	if err != nil {
		return fmt.Errorf("marshaling emails for user %s: %w", u.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (id, username, name, emails, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Name, string(emailsJSON), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving user %s: %w", u.ID, err)
	}
	return nil
}

// SaveRoom upserts a room record.
func (s *SQLiteStore) SaveRoom(ctx context.Context, r Room) error {
	if r.Type == "" {
		r.Type = "c"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rooms (id, name, type)
		VALUES (?, ?, ?)`,
		r.ID, r.Name, r.Type)
	if err != nil {
		return fmt.Errorf("saving room %s: %w", r.ID, err)
	}
	return nil
}

// SaveSubscription records a user's membership in a room.
func (s *SQLiteStore) SaveSubscription(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subscriptions (room_id, user_id)
		VALUES (?, ?)`,
		roomID, userID)
	if err != nil {
		return fmt.Errorf("saving subscription %s/%s: %w", userID, roomID, err)
	}
	return nil
}

package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gitlab.com/yelinaung/tgbot/ext"

	_ "modernc.org/sqlite" // SQLite driver registration
)

var _ ext.Persistence = (*SQLite)(nil)

const sqliteBusyTimeoutMS = 5000

// SQLite stores data in a SQLite database in WAL mode. Every update is
// written immediately.
type SQLite struct {
	base
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and migrates its schema.
// Close releases the database.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// SQLite serialises writes.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", sqliteBusyTimeoutMS),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{base: newBase("persistence.sqlite", opts), db: db}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS user_data (
			user_id INTEGER PRIMARY KEY,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_data (
			chat_id INTEGER PRIMARY KEY,
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bot_data (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS callback_data (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			name TEXT NOT NULL,
			key TEXT NOT NULL,
			state TEXT NOT NULL,
			PRIMARY KEY (name, key)
		)`,
	}
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("sqlite: migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) loadByID(ctx context.Context, query string) (map[int64]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query data: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]any)
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: scan data: %w", err)
		}
		data, err := decodeObject([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("sqlite: id %d: %w", id, err)
		}
		out[id] = data
	}
	return out, rows.Err()
}

func (s *SQLite) loadSingle(ctx context.Context, query string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, query).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: query data: %w", err)
	}
	return []byte(raw), nil
}

func (s *SQLite) GetUserData(ctx context.Context) (map[int64]map[string]any, error) {
	return s.loadByID(ctx, `SELECT user_id, data FROM user_data`)
}

func (s *SQLite) GetChatData(ctx context.Context) (map[int64]map[string]any, error) {
	return s.loadByID(ctx, `SELECT chat_id, data FROM chat_data`)
}

func (s *SQLite) GetBotData(ctx context.Context) (map[string]any, error) {
	raw, err := s.loadSingle(ctx, `SELECT data FROM bot_data WHERE id = 1`)
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

func (s *SQLite) GetCallbackData(ctx context.Context) (*ext.CallbackDataSnapshot, error) {
	raw, err := s.loadSingle(ctx, `SELECT data FROM callback_data WHERE id = 1`)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (s *SQLite) GetConversations(ctx context.Context, name string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, state FROM conversations WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query conversations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, state string
		if err := rows.Scan(&key, &state); err != nil {
			return nil, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		out[key] = state
	}
	return out, rows.Err()
}

func (s *SQLite) upsertJSON(ctx context.Context, query string, id int64, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: encode data: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, id, string(raw)); err != nil {
		return fmt.Errorf("sqlite: write data: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateUserData(ctx context.Context, userID int64, data map[string]any) error {
	return s.upsertJSON(ctx, `INSERT INTO user_data (user_id, data) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET data = excluded.data`, userID, data)
}

func (s *SQLite) UpdateChatData(ctx context.Context, chatID int64, data map[string]any) error {
	return s.upsertJSON(ctx, `INSERT INTO chat_data (chat_id, data) VALUES (?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET data = excluded.data`, chatID, data)
}

func (s *SQLite) UpdateBotData(ctx context.Context, data map[string]any) error {
	return s.upsertJSON(ctx, `INSERT INTO bot_data (id, data) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`, 1, data)
}

func (s *SQLite) UpdateCallbackData(ctx context.Context, data *ext.CallbackDataSnapshot) error {
	if data == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM callback_data`)
		return err
	}
	return s.upsertJSON(ctx, `INSERT INTO callback_data (id, data) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`, 1, data)
}

func (s *SQLite) UpdateConversation(ctx context.Context, name, key, state string) error {
	var err error
	if state == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM conversations WHERE name = ? AND key = ?`, name, key)
	} else {
		_, err = s.db.ExecContext(ctx, `INSERT INTO conversations (name, key, state) VALUES (?, ?, ?)
			ON CONFLICT (name, key) DO UPDATE SET state = excluded.state`, name, key, state)
	}
	if err != nil {
		return fmt.Errorf("sqlite: write conversation: %w", err)
	}
	return nil
}

func (s *SQLite) DropUserData(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_data WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("sqlite: drop user data: %w", err)
	}
	return nil
}

func (s *SQLite) DropChatData(ctx context.Context, chatID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_data WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("sqlite: drop chat data: %w", err)
	}
	return nil
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *SQLite) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("sqlite: checkpoint: %w", err)
	}
	return nil
}

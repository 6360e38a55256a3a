package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/internal/database"
)

var _ ext.Persistence = (*Postgres)(nil)

// Postgres stores data in PostgreSQL as JSONB rows. Every update is written
// immediately, so Flush has nothing left to do.
type Postgres struct {
	base
	db database.PGXDB
}

// NewPostgres creates the schema if needed and returns a Postgres
// persistence. db is usually a *pgxpool.Pool from database.Connect.
func NewPostgres(ctx context.Context, db database.PGXDB, opts ...Option) (*Postgres, error) {
	if err := database.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate persistence schema: %w", err)
	}
	return &Postgres{base: newBase("persistence.postgres", opts), db: db}, nil
}

func (p *Postgres) loadByID(ctx context.Context, query string) (map[int64]map[string]any, error) {
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]any)
	for rows.Next() {
		var (
			id  int64
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan data: %w", err)
		}
		data, err := decodeObject(raw)
		if err != nil {
			return nil, fmt.Errorf("id %d: %w", id, err)
		}
		out[id] = data
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return out, nil
}

func (p *Postgres) loadSingle(ctx context.Context, query string) ([]byte, error) {
	var raw []byte
	err := p.db.QueryRow(ctx, query).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query data: %w", err)
	}
	return raw, nil
}

func (p *Postgres) GetUserData(ctx context.Context) (map[int64]map[string]any, error) {
	return p.loadByID(ctx, `SELECT user_id, data FROM tgbot_user_data`)
}

func (p *Postgres) GetChatData(ctx context.Context) (map[int64]map[string]any, error) {
	return p.loadByID(ctx, `SELECT chat_id, data FROM tgbot_chat_data`)
}

func (p *Postgres) GetBotData(ctx context.Context) (map[string]any, error) {
	raw, err := p.loadSingle(ctx, `SELECT data FROM tgbot_bot_data WHERE id = 1`)
	if err != nil {
		return nil, err
	}
	return decodeObject(raw)
}

func (p *Postgres) GetCallbackData(ctx context.Context) (*ext.CallbackDataSnapshot, error) {
	raw, err := p.loadSingle(ctx, `SELECT data FROM tgbot_callback_data WHERE id = 1`)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

func (p *Postgres) GetConversations(ctx context.Context, name string) (map[string]string, error) {
	rows, err := p.db.Query(ctx, `SELECT key, state FROM tgbot_conversations WHERE name = $1`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, state string
		if err := rows.Scan(&key, &state); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out[key] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return out, nil
}

func (p *Postgres) exec(ctx context.Context, what, query string, args ...any) error {
	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

func (p *Postgres) UpdateUserData(ctx context.Context, userID int64, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode user data: %w", err)
	}
	return p.exec(ctx, "update user data", `
		INSERT INTO tgbot_user_data (user_id, data) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, userID, raw)
}

func (p *Postgres) UpdateChatData(ctx context.Context, chatID int64, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode chat data: %w", err)
	}
	return p.exec(ctx, "update chat data", `
		INSERT INTO tgbot_chat_data (chat_id, data) VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, chatID, raw)
}

func (p *Postgres) UpdateBotData(ctx context.Context, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode bot data: %w", err)
	}
	return p.exec(ctx, "update bot data", `
		INSERT INTO tgbot_bot_data (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, raw)
}

func (p *Postgres) UpdateCallbackData(ctx context.Context, data *ext.CallbackDataSnapshot) error {
	if data == nil {
		return p.exec(ctx, "clear callback data", `DELETE FROM tgbot_callback_data`)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode callback data: %w", err)
	}
	return p.exec(ctx, "update callback data", `
		INSERT INTO tgbot_callback_data (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, raw)
}

func (p *Postgres) UpdateConversation(ctx context.Context, name, key, state string) error {
	if state == "" {
		return p.exec(ctx, "delete conversation",
			`DELETE FROM tgbot_conversations WHERE name = $1 AND key = $2`, name, key)
	}
	return p.exec(ctx, "update conversation", `
		INSERT INTO tgbot_conversations (name, key, state) VALUES ($1, $2, $3)
		ON CONFLICT (name, key) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, name, key, state)
}

func (p *Postgres) DropUserData(ctx context.Context, userID int64) error {
	return p.exec(ctx, "drop user data", `DELETE FROM tgbot_user_data WHERE user_id = $1`, userID)
}

func (p *Postgres) DropChatData(ctx context.Context, chatID int64) error {
	return p.exec(ctx, "drop chat data", `DELETE FROM tgbot_chat_data WHERE chat_id = $1`, chatID)
}

// Flush does nothing; updates are written as they happen.
func (p *Postgres) Flush(context.Context) error { return nil }

package database

import (
	"context"
	"fmt"
)

// Tables created by RunMigrations.
const (
	TableUserData      = "tgbot_user_data"
	TableChatData      = "tgbot_chat_data"
	TableBotData       = "tgbot_bot_data"
	TableCallbackData  = "tgbot_callback_data"
	TableConversations = "tgbot_conversations"
)

// Tables lists every table of the schema.
var Tables = []string{TableUserData, TableChatData, TableBotData, TableCallbackData, TableConversations}

// RunMigrations creates the persistence schema. It is safe to run on every start.
func RunMigrations(ctx context.Context, db PGXDB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tgbot_user_data (
			user_id BIGINT PRIMARY KEY,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS tgbot_chat_data (
			chat_id BIGINT PRIMARY KEY,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS tgbot_bot_data (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS tgbot_callback_data (
			id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS tgbot_conversations (
			name TEXT NOT NULL,
			key TEXT NOT NULL,
			state TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (name, key)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tgbot_conversations_name ON tgbot_conversations(name)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

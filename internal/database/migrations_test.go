package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	pool := TestPool(t)
	ctx := context.Background()

	for range 2 {
		require.NoError(t, RunMigrations(ctx, pool))
	}

	for _, table := range Tables {
		t.Run(table, func(t *testing.T) {
			var exists bool
			err := pool.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_name = $1
				)
			`, table).Scan(&exists)
			require.NoError(t, err)
			require.True(t, exists)
		})
	}
}

func TestMigrations_DataColumnsAreJSONB(t *testing.T) {
	pool := TestPool(t)
	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, pool))

	for _, table := range []string{TableUserData, TableChatData, TableBotData, TableCallbackData} {
		var dataType string
		err := pool.QueryRow(ctx, `
			SELECT data_type FROM information_schema.columns
			WHERE table_name = $1 AND column_name = 'data'
		`, table).Scan(&dataType)
		require.NoError(t, err)
		require.Equal(t, "jsonb", dataType, table)
	}
}

func TestMigrations_SingleBotDataRow(t *testing.T) {
	tx := TestTx(t)
	ctx := context.Background()

	_, err := tx.Exec(ctx, `INSERT INTO tgbot_bot_data (id, data) VALUES (1, '{}')`)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, `INSERT INTO tgbot_bot_data (id, data) VALUES (2, '{}')`)
	require.Error(t, err)
}

func TestCleanupTables(t *testing.T) {
	pool := TestPool(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO tgbot_conversations (name, key, state) VALUES ('cleanup', '1:2', 'ASK')
		ON CONFLICT (name, key) DO NOTHING`)
	require.NoError(t, err)

	CleanupTables(t, pool)

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM tgbot_conversations").Scan(&count))
	require.Zero(t, count)
}

func TestTestTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	t.Run("insert", func(t *testing.T) {
		tx := TestTx(t)
		_, err := tx.Exec(ctx, `INSERT INTO tgbot_conversations (name, key, state) VALUES ('rollback', '9', 'X')
			ON CONFLICT (name, key) DO NOTHING`)
		require.NoError(t, err)
	})

	var count int
	err := TestPool(t).QueryRow(ctx, `SELECT COUNT(*) FROM tgbot_conversations WHERE name = 'rollback'`).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/internal/database"
)

// exercise runs the behaviour every persistence must share.
func exercise(t *testing.T, p ext.Persistence) {
	t.Helper()
	ctx := context.Background()

	users, err := p.GetUserData(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
	bot, err := p.GetBotData(ctx)
	require.NoError(t, err)
	require.Empty(t, bot)
	snap, err := p.GetCallbackData(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)

	require.NoError(t, p.UpdateUserData(ctx, 7, map[string]any{"lang": "en", "count": 3}))
	require.NoError(t, p.UpdateUserData(ctx, 8, map[string]any{"lang": "my"}))
	require.NoError(t, p.UpdateChatData(ctx, -100, map[string]any{"poll": "lunch"}))
	require.NoError(t, p.UpdateBotData(ctx, map[string]any{"started": true}))

	access := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, p.UpdateCallbackData(ctx, &ext.CallbackDataSnapshot{
		Keyboards: []ext.KeyboardData{{ID: "kb", AccessTime: access, Buttons: map[string]any{"b": "yes"}}},
		Queries:   map[string]string{"q1": "kb"},
	}))

	require.NoError(t, p.UpdateConversation(ctx, "order", "1:7", "ASK_SIZE"))
	require.NoError(t, p.UpdateConversation(ctx, "order", "1:8", "ASK_NAME"))
	require.NoError(t, p.UpdateConversation(ctx, "order", "1:8", ""))
	require.NoError(t, p.UpdateConversation(ctx, "other", "1:7", "X"))

	require.NoError(t, p.DropUserData(ctx, 8))
	require.NoError(t, p.Flush(ctx))

	users, err = p.GetUserData(ctx)
	require.NoError(t, err)
	require.Equal(t, map[int64]map[string]any{7: {"lang": "en", "count": float64(3)}}, users)

	chats, err := p.GetChatData(ctx)
	require.NoError(t, err)
	require.Equal(t, map[int64]map[string]any{-100: {"poll": "lunch"}}, chats)

	bot, err = p.GetBotData(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"started": true}, bot)

	snap, err = p.GetCallbackData(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Keyboards, 1)
	require.Equal(t, "kb", snap.Keyboards[0].ID)
	require.True(t, access.Equal(snap.Keyboards[0].AccessTime))
	require.Equal(t, map[string]any{"b": "yes"}, snap.Keyboards[0].Buttons)
	require.Equal(t, map[string]string{"q1": "kb"}, snap.Queries)

	states, err := p.GetConversations(ctx, "order")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"1:7": "ASK_SIZE"}, states)

	require.NoError(t, p.DropChatData(ctx, -100))
	chats, err = p.GetChatData(ctx)
	require.NoError(t, err)
	require.Empty(t, chats)
}

func TestDict(t *testing.T) {
	t.Parallel()
	exercise(t, NewDict())
}

func TestDictJSON(t *testing.T) {
	t.Parallel()

	d, err := NewDictFromJSON(DictJSON{
		UserData:      `{"7":{"lang":"en"}}`,
		BotData:       `{"version":2}`,
		Conversations: `{"order":{"1:7":"ASK"}}`,
	})
	require.NoError(t, err)

	users, err := d.GetUserData(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[int64]map[string]any{7: {"lang": "en"}}, users)
	require.JSONEq(t, `{"version":2}`, d.BotDataJSON())
	require.JSONEq(t, `{}`, d.ChatDataJSON())
	require.Equal(t, "null", d.CallbackDataJSON())
	require.JSONEq(t, `{"order":{"1:7":"ASK"}}`, d.ConversationsJSON())

	data := map[string]any{"n": 1}
	require.NoError(t, d.UpdateChatData(context.Background(), 5, data))
	data["n"] = 2
	require.JSONEq(t, `{"5":{"n":1}}`, d.ChatDataJSON(), "stored data must not alias the caller's map")

	_, err = NewDictFromJSON(DictJSON{ChatData: `[1,2]`})
	require.Error(t, err)
}

func TestDictOptions(t *testing.T) {
	t.Parallel()

	d := NewDict(WithStore(ext.StoreData{BotData: true}), WithUpdateInterval(5*time.Second))
	require.Equal(t, ext.StoreData{BotData: true}, d.Store())
	require.Equal(t, 5*time.Second, d.UpdateInterval())
	require.Equal(t, DefaultUpdateInterval, NewDict(WithUpdateInterval(0)).UpdateInterval())
}

func TestFile(t *testing.T) {
	t.Parallel()

	for _, perKind := range []bool{false, true} {
		name := "single file"
		if perKind {
			name = "per kind"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "bot")
			f, err := NewFile(FileConfig{Path: path, PerKind: perKind})
			require.NoError(t, err)
			exercise(t, f)

			reopened, err := NewFile(FileConfig{Path: path, PerKind: perKind})
			require.NoError(t, err)
			users, err := reopened.GetUserData(context.Background())
			require.NoError(t, err)
			require.Contains(t, users, int64(7))
			states, err := reopened.GetConversations(context.Background(), "order")
			require.NoError(t, err)
			require.Equal(t, map[string]string{"1:7": "ASK_SIZE"}, states)
		})
	}
}

func TestFileOnFlush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "data.json")
	f, err := NewFile(FileConfig{Path: path, OnFlush: true})
	require.NoError(t, err)

	require.NoError(t, f.UpdateBotData(ctx, map[string]any{"k": "v"}))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "nothing is written before Flush")

	require.NoError(t, f.Flush(ctx))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"k": "v"`)
}

func TestFileErrors(t *testing.T) {
	t.Parallel()

	_, err := NewFile(FileConfig{})
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	f, err := NewFile(FileConfig{Path: path})
	require.NoError(t, err)
	_, err = f.GetBotData(context.Background())
	require.Error(t, err)
}

func TestSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "db", "bot.sqlite")
	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exercise(t, s)

	require.NoError(t, s.UpdateCallbackData(ctx, nil))
	snap, err := s.GetCallbackData(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestPostgres(t *testing.T) {
	tx := database.TestTx(t)
	p, err := NewPostgres(context.Background(), tx)
	require.NoError(t, err)
	database.CleanupTables(t, tx)
	exercise(t, p)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "tgbot-test:" + t.Name() + ":" + time.Now().Format("150405.000000") + ":"
	t.Cleanup(func() {
		keys, err := client.Keys(prefix + "*").Result()
		if err == nil && len(keys) > 0 {
			client.Del(keys...)
		}
	})
	exercise(t, NewRedis(client, prefix))
}

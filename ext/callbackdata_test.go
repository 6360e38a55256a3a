package ext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/yelinaung/tgbot/telegram"
)

type pageRequest struct {
	Page int
	Tag  string
}

func sendKeyboard(t *testing.T, c *CallbackDataCache, buttons ...telegram.InlineKeyboardButton) *telegram.InlineKeyboardMarkup {
	t.Helper()
	out, err := c.ProcessKeyboard(telegram.InlineKeyboardFromRow(buttons...))
	require.NoError(t, err)
	return out
}

func TestCallbackDataCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewCallbackDataCache(0)
	require.Equal(t, DefaultCallbackDataCacheSize, c.MaxSize())

	in := telegram.InlineKeyboardFromRow(
		telegram.CallbackValueButton("next", pageRequest{Page: 2, Tag: "food"}),
		telegram.CallbackButton("plain", "raw"),
		telegram.InlineKeyboardButton{Text: "site", URL: "https://example.com"},
	)
	out, err := c.ProcessKeyboard(in)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	row := out.InlineKeyboard[0]
	require.Len(t, row[0].CallbackData, 64)
	require.Nil(t, row[0].CallbackValue)
	require.Len(t, row[1].CallbackData, 64)
	require.Equal(t, row[0].CallbackData[:32], row[1].CallbackData[:32])
	require.Empty(t, row[2].CallbackData)
	require.Equal(t, "raw", in.InlineKeyboard[0][1].CallbackData, "input keyboard is not modified")

	q := &telegram.CallbackQuery{ID: "q1", Data: row[0].CallbackData}
	c.ProcessCallbackQuery(q)
	require.Equal(t, pageRequest{Page: 2, Tag: "food"}, q.Value)

	q2 := &telegram.CallbackQuery{ID: "q2", Data: row[1].CallbackData}
	c.ProcessCallbackQuery(q2)
	require.Equal(t, "raw", q2.Value)
}

func TestCallbackDataCacheUnknownData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"short", "abc"},
		{"unknown keyboard", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCallbackDataCache(4)
			q := &telegram.CallbackQuery{ID: "q", Data: tt.data}
			c.ProcessCallbackQuery(q)
			err, ok := q.Value.(error)
			require.True(t, ok)
			require.ErrorIs(t, err, ErrInvalidCallbackData)
		})
	}
}

func TestCallbackDataCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c := NewCallbackDataCache(2)
	first := sendKeyboard(t, c, telegram.CallbackValueButton("a", 1))
	second := sendKeyboard(t, c, telegram.CallbackValueButton("b", 2))

	// touching the first keyboard makes the second the oldest
	q := &telegram.CallbackQuery{ID: "q1", Data: first.InlineKeyboard[0][0].CallbackData}
	c.ProcessCallbackQuery(q)
	require.Equal(t, 1, q.Value)

	sendKeyboard(t, c, telegram.CallbackValueButton("c", 3))
	require.Equal(t, 2, c.Len())

	q = &telegram.CallbackQuery{ID: "q2", Data: second.InlineKeyboard[0][0].CallbackData}
	c.ProcessCallbackQuery(q)
	require.IsType(t, &InvalidCallbackData{}, q.Value)

	q = &telegram.CallbackQuery{ID: "q3", Data: first.InlineKeyboard[0][0].CallbackData}
	c.ProcessCallbackQuery(q)
	require.Equal(t, 1, q.Value)
}

func TestCallbackDataCacheDropData(t *testing.T) {
	t.Parallel()

	c := NewCallbackDataCache(4)
	kb := sendKeyboard(t, c, telegram.CallbackValueButton("a", "x"))
	q := &telegram.CallbackQuery{ID: "q", Data: kb.InlineKeyboard[0][0].CallbackData}

	require.Error(t, c.DropData(q), "query was never processed")
	c.ProcessCallbackQuery(q)
	require.NoError(t, c.DropData(q))
	require.Zero(t, c.Len())
	require.Error(t, c.DropData(nil))
}

func TestCallbackDataCacheClear(t *testing.T) {
	t.Parallel()

	c := NewCallbackDataCache(8)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	sendKeyboard(t, c, telegram.CallbackValueButton("old", 1))
	now = base.Add(time.Hour)
	sendKeyboard(t, c, telegram.CallbackValueButton("new", 2))

	c.ClearCallbackData(base.Add(30 * time.Minute))
	require.Equal(t, 1, c.Len())

	c.ClearCallbackData(time.Time{})
	require.Zero(t, c.Len())
}

func TestCallbackDataCacheProcessMessage(t *testing.T) {
	t.Parallel()

	c := NewCallbackDataCache(4)
	c.botID = 42
	kb := sendKeyboard(t, c, telegram.CallbackValueButton("a", 7))
	data := kb.InlineKeyboard[0][0].CallbackData

	t.Run("bot message", func(t *testing.T) {
		msg := &telegram.Message{
			From:        &telegram.User{ID: 42, IsBot: true},
			ReplyMarkup: &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{{Text: "a", CallbackData: data}}}},
		}
		c.ProcessMessage(msg)
		require.Equal(t, 7, msg.ReplyMarkup.InlineKeyboard[0][0].CallbackValue)
	})

	t.Run("message of another bot", func(t *testing.T) {
		msg := &telegram.Message{
			From:        &telegram.User{ID: 99, IsBot: true},
			ReplyMarkup: &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{{Text: "a", CallbackData: data}}}},
		}
		c.ProcessMessage(msg)
		require.Nil(t, msg.ReplyMarkup.InlineKeyboard[0][0].CallbackValue)
	})

	t.Run("reply to bot message", func(t *testing.T) {
		msg := &telegram.Message{
			From: &telegram.User{ID: 5},
			ReplyToMessage: &telegram.Message{
				From:        &telegram.User{ID: 42, IsBot: true},
				ReplyMarkup: &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{{Text: "a", CallbackData: "gone"}}}},
			},
		}
		c.ProcessMessage(msg)
		require.IsType(t, &InvalidCallbackData{}, msg.ReplyToMessage.ReplyMarkup.InlineKeyboard[0][0].CallbackValue)
	})
}

func TestCallbackDataCacheSnapshotLoad(t *testing.T) {
	t.Parallel()

	c := NewCallbackDataCache(4)
	kb1 := sendKeyboard(t, c, telegram.CallbackValueButton("a", "one"))
	kb2 := sendKeyboard(t, c, telegram.CallbackValueButton("b", "two"))
	q := &telegram.CallbackQuery{ID: "q", Data: kb1.InlineKeyboard[0][0].CallbackData}
	c.ProcessCallbackQuery(q)

	snap := c.Snapshot()
	require.Len(t, snap.Keyboards, 2)
	require.Equal(t, kb2.InlineKeyboard[0][0].CallbackData[:32], snap.Keyboards[0].ID, "least recently used first")
	require.Equal(t, kb1.InlineKeyboard[0][0].CallbackData[:32], snap.Queries["q"])

	restored := NewCallbackDataCache(4)
	restored.Load(snap)
	require.Equal(t, snap, restored.Snapshot())

	q = &telegram.CallbackQuery{ID: "q9", Data: kb2.InlineKeyboard[0][0].CallbackData}
	restored.ProcessCallbackQuery(q)
	require.Equal(t, "two", q.Value)

	restored.Load(nil)
	require.Zero(t, restored.Len())
}

func TestCallbackDataCacheRoundTripProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(1, 8).Draw(t, "size")
		c := NewCallbackDataCache(size)
		values := rapid.SliceOfN(rapid.String(), 1, 6).Draw(t, "values")

		var buttons []telegram.InlineKeyboardButton
		for _, v := range values {
			buttons = append(buttons, telegram.CallbackValueButton("b", v))
		}
		out, err := c.ProcessKeyboard(telegram.InlineKeyboardFromRow(buttons...))
		if err != nil {
			t.Fatal(err)
		}
		for i, b := range out.InlineKeyboard[0] {
			q := &telegram.CallbackQuery{ID: "q", Data: b.CallbackData}
			c.ProcessCallbackQuery(q)
			if q.Value != values[i] {
				t.Fatalf("button %d: got %v, want %q", i, q.Value, values[i])
			}
		}
		if c.Len() > size {
			t.Fatalf("cache holds %d keyboards, max %d", c.Len(), size)
		}
	})
}

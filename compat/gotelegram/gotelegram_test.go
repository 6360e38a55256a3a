package gotelegram

import (
	"context"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/telegram"
	"gitlab.com/yelinaung/tgbot/telegram/telegramtest"
)

func messageUpdate(chatID, userID int64, text string) *models.Update {
	return &models.Update{
		ID: 42,
		Message: &models.Message{
			ID:   7,
			Date: 1700000000,
			Chat: models.Chat{ID: chatID, Type: "private"},
			From: &models.User{
				ID:        userID,
				FirstName: "Test",
				LastName:  "User",
				Username:  "testuser",
			},
			Text: text,
		},
	}
}

func TestConvertUpdate(t *testing.T) {
	t.Parallel()

	t.Run("converts a message update", func(t *testing.T) {
		t.Parallel()
		u, err := ConvertUpdate(messageUpdate(100, 200, "/poll"))
		require.NoError(t, err)
		require.Equal(t, int64(42), u.UpdateID)
		require.Equal(t, telegram.UpdateMessage, u.Type())
		require.Equal(t, "/poll", u.Message.Text)
		require.Equal(t, int64(100), u.EffectiveChat().ID)
		require.Equal(t, int64(200), u.EffectiveUser().ID)
		require.Equal(t, "testuser", u.EffectiveUser().Username)
	})

	t.Run("rejects nil", func(t *testing.T) {
		t.Parallel()
		_, err := ConvertUpdate(nil)
		require.Error(t, err)
		_, err = ToModels(nil)
		require.Error(t, err)
	})

	t.Run("converts back", func(t *testing.T) {
		t.Parallel()
		m, err := ToModels(telegramtest.MessageUpdate(5, 6, "hello"))
		require.NoError(t, err)
		require.NotNil(t, m.Message)
		require.Equal(t, "hello", m.Message.Text)
		require.Equal(t, int64(5), m.Message.Chat.ID)
		require.Equal(t, int64(6), m.Message.From.ID)
	})
}

func newRunningApp(t *testing.T) (*ext.Application, <-chan string) {
	t.Helper()
	tg, _ := telegramtest.NewBot(t)
	app, err := ext.NewApplication(tg)
	require.NoError(t, err)

	texts := make(chan string, 4)
	require.NoError(t, app.AddHandler(ext.NewMessageHandler(nil, func(_ context.Context, u *telegram.Update, _ *ext.CallbackContext) error {
		texts <- u.Message.Text
		return nil
	}), 0))

	ctx := context.Background()
	require.NoError(t, app.Initialize(ctx))
	require.NoError(t, app.Start(ctx))
	t.Cleanup(func() { assert.NoError(t, app.Stop(context.Background())) })
	return app, texts
}

func awaitText(t *testing.T, texts <-chan string) string {
	t.Helper()
	select {
	case s := <-texts:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("update was not handled")
		return ""
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	app, texts := newRunningApp(t)

	Handler(app)(context.Background(), nil, messageUpdate(1, 2, "from go-telegram"))
	require.Equal(t, "from go-telegram", awaitText(t, texts))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	app, texts := newRunningApp(t)

	var nextCalled bool
	next := func(context.Context, *bot.Bot, *models.Update) { nextCalled = true }
	Middleware(app)(next)(context.Background(), nil, messageUpdate(1, 2, "mirrored"))

	require.True(t, nextCalled)
	require.Equal(t, "mirrored", awaitText(t, texts))
}

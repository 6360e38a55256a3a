package telegram_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/telegram"
	"gitlab.com/yelinaung/tgbot/telegram/telegramtest"
)

func TestNewBotValidatesToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", "123456:ABC-def_ghi", false},
		{"empty", "", true},
		{"missing id", ":abc", true},
		{"missing hash", "123456:", true},
		{"spaces", "123456:abc def", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := telegram.NewBot(tt.token)
			if tt.wantErr {
				require.ErrorIs(t, err, telegram.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			require.Equal(t, int64(123456), b.ID())
		})
	}
}

func TestGetMeCachesBotUser(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t)
	require.Nil(t, b.Me())

	me, err := b.GetMe(context.Background())
	require.NoError(t, err)
	require.Equal(t, telegramtest.BotID, me.ID)
	require.Equal(t, "test_bot", b.Username())
	require.Equal(t, 1, srv.CallCount("getMe"))
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	t.Run("sends text and returns message", func(t *testing.T) {
		t.Parallel()
		b, srv := telegramtest.NewBot(t)

		msg, err := b.SendText(context.Background(), 42, "hello")
		require.NoError(t, err)
		require.Equal(t, 1000, msg.MessageID)
		require.Equal(t, int64(42), msg.Chat.ID)
		require.Equal(t, []string{"hello"}, srv.SentTexts())
	})

	t.Run("serializes reply markup", func(t *testing.T) {
		t.Parallel()
		b, srv := telegramtest.NewBot(t)

		kb := telegram.InlineKeyboardFromRow(telegram.CallbackButton("Yes", "yes"))
		_, err := b.SendMessage(context.Background(), &telegram.SendMessageRequest{
			ChatID:      telegram.ChatIDFromUsername("channel"),
			Text:        "confirm?",
			SendOptions: telegram.SendOptions{ReplyMarkup: kb},
		})
		require.NoError(t, err)

		call := srv.LastCall("sendMessage")
		require.NotNil(t, call)
		require.Equal(t, "@channel", call.String("chat_id"))

		var got telegram.InlineKeyboardMarkup
		require.NoError(t, call.Decode("reply_markup", &got))
		require.Equal(t, "yes", got.InlineKeyboard[0][0].CallbackData)
	})
}

func TestDefaultsAreInjected(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t, telegram.WithDefaults(telegram.Defaults{
		ParseMode:                telegram.ParseModeHTML,
		ProtectContent:           true,
		AllowSendingWithoutReply: true,
	}))
	ctx := context.Background()

	t.Run("unset values take the default", func(t *testing.T) {
		_, err := b.SendMessage(ctx, &telegram.SendMessageRequest{
			ChatID:      telegram.ChatIDFromInt(1),
			Text:        "<b>x</b>",
			SendOptions: telegram.ReplyTo(5),
		})
		require.NoError(t, err)

		call := srv.LastCall("sendMessage")
		require.Equal(t, telegram.ParseModeHTML, call.String("parse_mode"))
		require.Equal(t, "true", call.String("protect_content"))

		var rp map[string]any
		require.NoError(t, call.Decode("reply_parameters", &rp))
		require.Equal(t, true, rp["allow_sending_without_reply"])
	})

	t.Run("explicit values win", func(t *testing.T) {
		_, err := b.SendMessage(ctx, &telegram.SendMessageRequest{
			ChatID:    telegram.ChatIDFromInt(1),
			Text:      "*x*",
			ParseMode: telegram.ParseModeMarkdownV2,
		})
		require.NoError(t, err)
		require.Equal(t, telegram.ParseModeMarkdownV2, srv.LastCall("sendMessage").String("parse_mode"))
	})

	t.Run("methods without the parameter are untouched", func(t *testing.T) {
		require.NoError(t, b.DeleteMessage(ctx, telegram.ChatIDFromInt(1), 2))
		_, ok := srv.LastCall("deleteMessage").Params["parse_mode"]
		require.False(t, ok)
	})
}

func TestAPIErrorsAreMapped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code int
		want error
	}{
		{"forbidden", 403, telegram.ErrForbidden},
		{"bad request", 400, telegram.ErrBadRequest},
		{"unauthorized", 401, telegram.ErrInvalidToken},
		{"conflict", 409, telegram.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, srv := telegramtest.NewBot(t)
			srv.Fail("sendMessage", tt.code, "nope")

			_, err := b.SendText(context.Background(), 1, "x")
			require.ErrorIs(t, err, tt.want)
			require.NotContains(t, err.Error(), telegramtest.Token)
		})
	}

	t.Run("chat migration", func(t *testing.T) {
		t.Parallel()
		b, srv := telegramtest.NewBot(t)
		srv.FailWith("sendMessage", &telegram.APIError{Code: 400, Description: "migrated", MigrateToChatID: -100777})

		_, err := b.SendText(context.Background(), 1, "x")
		require.ErrorIs(t, err, telegram.ErrChatMigrated)

		var apiErr *telegram.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, int64(-100777), apiErr.MigrateToChatID)
	})
}

func TestFloodControlIsRetried(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t, telegram.WithMaxRetries(2))
	srv.FailWith("sendMessage", &telegram.APIError{Code: 429, Description: "Too Many Requests", RetryAfter: 1})

	start := time.Now()
	msg, err := b.SendText(context.Background(), 1, "eventually")
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.GreaterOrEqual(t, time.Since(start), time.Second)
	require.Equal(t, 2, srv.CallCount("sendMessage"))
}

func TestFloodControlGivesUp(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t)
	srv.FailWith("sendMessage", &telegram.APIError{Code: 429, RetryAfter: 30})

	_, err := b.SendText(context.Background(), 1, "x")
	require.ErrorIs(t, err, telegram.ErrRetryAfter)
	require.Equal(t, 1, srv.CallCount("sendMessage"))
}

func TestUploadUsesMultipart(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t)
	content := []byte("\x89PNG fake image")

	_, err := b.SendPhoto(context.Background(), &telegram.SendPhotoRequest{
		ChatID:  telegram.ChatIDFromInt(9),
		Photo:   telegram.FileFromReader("chart.png", bytes.NewReader(content)),
		Caption: "chart",
	})
	require.NoError(t, err)

	call := srv.LastCall("sendPhoto")
	require.Equal(t, content, call.Files["photo"])
	require.Equal(t, "chart", call.String("caption"))
	require.Equal(t, int64(9), call.Int("chat_id"))
}

func TestGetUpdatesAndDownload(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t)
	ctx := context.Background()

	first := telegramtest.MessageUpdate(1, 2, "one")
	second := telegramtest.MessageUpdate(1, 2, "two")
	srv.QueueUpdates(*first, *second)

	updates, err := b.GetUpdates(ctx, &telegram.GetUpdatesRequest{Limit: 1})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, "one", updates[0].Message.Text)

	updates, err = b.GetUpdates(ctx, &telegram.GetUpdatesRequest{Offset: updates[0].UpdateID + 1})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, "two", updates[0].Message.Text)

	srv.AddFile("files/doc1", []byte("report"))
	f, err := b.GetFile(ctx, "doc1")
	require.NoError(t, err)

	var buf strings.Builder
	n, err := b.DownloadFile(ctx, f, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
	require.Equal(t, "report", buf.String())
}

func TestAnswerValidation(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t)
	ctx := context.Background()

	err := b.AnswerShippingQuery(ctx, &telegram.AnswerShippingQueryRequest{ShippingQueryID: "s", OK: true})
	require.ErrorIs(t, err, telegram.ErrBadRequest)

	err = b.AnswerPreCheckoutQuery(ctx, "p", false, "")
	require.ErrorIs(t, err, telegram.ErrBadRequest)

	results := make([]telegram.InlineQueryResult, telegram.MaxInlineQueryResults+1)
	err = b.AnswerInlineQuery(ctx, &telegram.AnswerInlineQueryRequest{InlineQueryID: "i", Results: results})
	require.ErrorIs(t, err, telegram.ErrBadRequest)

	require.Empty(t, srv.Calls())

	require.NoError(t, b.AnswerPreCheckoutQuery(ctx, "p", true, ""))
	require.Equal(t, "p", srv.LastCall("answerPreCheckoutQuery").String("pre_checkout_query_id"))
}

type prefixProcessor struct{}

func (prefixProcessor) ProcessKeyboard(kb *telegram.InlineKeyboardMarkup) (*telegram.InlineKeyboardMarkup, error) {
	out := &telegram.InlineKeyboardMarkup{}
	for _, row := range kb.InlineKeyboard {
		var newRow []telegram.InlineKeyboardButton
		for _, btn := range row {
			btn.CallbackData = "id:" + btn.CallbackData
			newRow = append(newRow, btn)
		}
		out.InlineKeyboard = append(out.InlineKeyboard, newRow)
	}
	return out, nil
}

func (prefixProcessor) ProcessMessage(m *telegram.Message) {
	if m.ReplyMarkup == nil {
		return
	}
	for _, row := range m.ReplyMarkup.InlineKeyboard {
		for i := range row {
			row[i].CallbackValue = strings.TrimPrefix(row[i].CallbackData, "id:")
		}
	}
}

func (prefixProcessor) ProcessUpdate(u *telegram.Update) {
	if u.CallbackQuery != nil {
		u.CallbackQuery.Value = strings.TrimPrefix(u.CallbackQuery.Data, "id:")
	}
}

func TestCallbackDataProcessor(t *testing.T) {
	t.Parallel()

	b, srv := telegramtest.NewBot(t)
	b.SetCallbackDataProcessor(prefixProcessor{})
	ctx := context.Background()

	kb := telegram.InlineKeyboardFromRow(telegram.CallbackButton("A", "a"))
	msg, err := b.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID:      telegram.ChatIDFromInt(1),
		Text:        "pick",
		SendOptions: telegram.SendOptions{ReplyMarkup: kb},
	})
	require.NoError(t, err)

	var sent telegram.InlineKeyboardMarkup
	require.NoError(t, srv.LastCall("sendMessage").Decode("reply_markup", &sent))
	require.Equal(t, "id:a", sent.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "a", kb.InlineKeyboard[0][0].CallbackData, "caller's keyboard must not change")
	require.Equal(t, "a", msg.ReplyMarkup.InlineKeyboard[0][0].CallbackValue)

	srv.QueueUpdates(*telegramtest.CallbackQueryUpdate(1, 2, msg.MessageID, "id:a"))
	updates, err := b.GetUpdates(ctx, nil)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, "a", updates[0].CallbackQuery.Value)
}

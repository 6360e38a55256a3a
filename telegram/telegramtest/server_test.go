package telegramtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/telegram"
)

func TestServerRecordsCalls(t *testing.T) {
	t.Parallel()

	b, srv := NewBot(t)
	ctx := context.Background()

	t.Run("message ids increment", func(t *testing.T) {
		m1, err := b.SendText(ctx, 5, "first")
		require.NoError(t, err)
		m2, err := b.SendText(ctx, 5, "second")
		require.NoError(t, err)

		require.Equal(t, m1.MessageID+1, m2.MessageID)
		require.Equal(t, []string{"first", "second"}, srv.SentTexts())
	})

	t.Run("reset forgets calls", func(t *testing.T) {
		srv.Reset()
		require.Empty(t, srv.Calls())
		require.Nil(t, srv.LastCall("sendMessage"))
	})

	t.Run("custom responder", func(t *testing.T) {
		srv.Handle("getChatMemberCount", func(Call) (any, *telegram.APIError) {
			return 42, nil
		})
		n, err := b.GetChatMemberCount(ctx, telegram.ChatIDFromInt(-1))
		require.NoError(t, err)
		require.Equal(t, 42, n)
	})

	t.Run("responder errors", func(t *testing.T) {
		srv.Handle("leaveChat", func(Call) (any, *telegram.APIError) {
			return nil, &telegram.APIError{Code: 403, Description: "Forbidden"}
		})
		err := b.LeaveChat(ctx, telegram.ChatIDFromInt(-1))
		require.ErrorIs(t, err, telegram.ErrForbidden)
	})

	t.Run("queued failures are consumed once", func(t *testing.T) {
		srv.Fail("deleteMessage", 400, "Bad Request: message to delete not found")
		require.Error(t, b.DeleteMessage(ctx, telegram.ChatIDFromInt(1), 1))
		require.NoError(t, b.DeleteMessage(ctx, telegram.ChatIDFromInt(1), 1))
	})

	t.Run("inline edits return true", func(t *testing.T) {
		msg, err := b.EditMessageReplyMarkup(ctx, telegram.InlineMessage("abc"), nil)
		require.NoError(t, err)
		require.Nil(t, msg)
	})
}

func TestGetUpdatesAcknowledgesOffset(t *testing.T) {
	t.Parallel()

	b, srv := NewBot(t)
	ctx := context.Background()

	u1 := NewUpdateBuilder().WithMessage(1, 1, "a").Build()
	u2 := NewUpdateBuilder().WithMessage(1, 1, "b").Build()
	srv.QueueUpdates(*u1, *u2)

	updates, err := b.GetUpdates(ctx, &telegram.GetUpdatesRequest{})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	require.Equal(t, 2, srv.PendingUpdates())

	_, err = b.GetUpdates(ctx, &telegram.GetUpdatesRequest{Offset: u2.UpdateID + 1})
	require.NoError(t, err)
	require.Zero(t, srv.PendingUpdates())
}

func TestUpdateBuilder(t *testing.T) {
	t.Parallel()

	t.Run("command gets bot_command entity", func(t *testing.T) {
		t.Parallel()
		u := CommandUpdate(10, 20, "start payload")
		cmd, _, args, ok := u.Message.Command()
		require.True(t, ok)
		require.Equal(t, "start", cmd)
		require.Equal(t, []string{"payload"}, args)
		require.Equal(t, int64(20), u.EffectiveUser().ID)
	})

	t.Run("update ids are unique", func(t *testing.T) {
		t.Parallel()
		a := MessageUpdate(1, 1, "x")
		b := MessageUpdate(1, 1, "x")
		require.NotEqual(t, a.UpdateID, b.UpdateID)
	})

	t.Run("callback query with custom sender", func(t *testing.T) {
		t.Parallel()
		u := NewUpdateBuilder().
			WithCallbackQuery("cb", 5, 6, 7, "data").
			WithFrom(99, "other", "Other", "").
			Build()
		require.Equal(t, int64(99), u.EffectiveUser().ID)
		require.Equal(t, 7, u.EffectiveMessage().MessageID)
		require.Equal(t, telegram.UpdateCallbackQuery, u.Type())
	})

	t.Run("group message", func(t *testing.T) {
		t.Parallel()
		u := NewUpdateBuilder().WithMessage(-100, 1, "hi").WithChatType(telegram.ChatTypeSupergroup).Build()
		require.True(t, u.EffectiveChat().IsGroup())
		require.Equal(t, "Test Chat", u.EffectiveChat().Title)
	})

	t.Run("photo with caption", func(t *testing.T) {
		t.Parallel()
		u := PhotoUpdate(1, 2, "file", "lunch")
		require.Len(t, u.Message.Photo, 2)
		require.Equal(t, "lunch", u.Message.Caption)
		require.Equal(t, telegram.MessageTypePhoto, telegram.EffectiveMessageTypeOf(u))
	})

	t.Run("chat member", func(t *testing.T) {
		t.Parallel()
		u := NewUpdateBuilder().
			WithChatMember(-100, 3, telegram.ChatMemberLeft, telegram.ChatMemberMember).
			Build()
		require.Equal(t, telegram.UpdateChatMember, u.Type())
		require.Contains(t, u.ChatMember.Difference(), "status")
	})
}

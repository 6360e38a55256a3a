package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUpdateEffectiveFields(t *testing.T) {
	t.Parallel()

	user := &User{ID: 7, FirstName: "Ann"}
	chat := Chat{ID: -100, Type: ChatTypeSupergroup}

	tests := []struct {
		name     string
		update   Update
		kind     string
		userID   int64
		chatID   int64
		hasMsg   bool
		senderID int64
	}{
		{
			name:     "message",
			update:   Update{Message: &Message{MessageID: 1, Date: 1, From: user, Chat: chat}},
			kind:     UpdateMessage,
			userID:   7,
			chatID:   -100,
			hasMsg:   true,
			senderID: 7,
		},
		{
			name:     "channel post has no user",
			update:   Update{ChannelPost: &Message{MessageID: 1, Date: 1, Chat: chat, SenderChat: &chat}},
			kind:     UpdateChannelPost,
			chatID:   -100,
			hasMsg:   true,
			senderID: -100,
		},
		{
			name: "callback query with accessible message",
			update: Update{CallbackQuery: &CallbackQuery{
				ID: "q", From: *user, Message: &Message{MessageID: 3, Date: 5, Chat: chat},
			}},
			kind:     UpdateCallbackQuery,
			userID:   7,
			chatID:   -100,
			hasMsg:   true,
			senderID: 7,
		},
		{
			name: "callback query with inaccessible message",
			update: Update{CallbackQuery: &CallbackQuery{
				ID: "q", From: *user, Message: &Message{MessageID: 3, Chat: chat},
			}},
			kind:     UpdateCallbackQuery,
			userID:   7,
			chatID:   -100,
			senderID: 7,
		},
		{
			name:     "inline query has no chat",
			update:   Update{InlineQuery: &InlineQuery{ID: "i", From: *user}},
			kind:     UpdateInlineQuery,
			userID:   7,
			senderID: 7,
		},
		{
			name:   "poll has neither",
			update: Update{Poll: &Poll{ID: "p"}},
			kind:   UpdatePoll,
		},
		{
			name:     "poll answer from user",
			update:   Update{PollAnswer: &PollAnswer{PollID: "p", User: user}},
			kind:     UpdatePollAnswer,
			userID:   7,
			senderID: 7,
		},
		{
			name:     "anonymous poll answer from chat",
			update:   Update{PollAnswer: &PollAnswer{PollID: "p", VoterChat: &chat}},
			kind:     UpdatePollAnswer,
			senderID: -100,
		},
		{
			name:   "reaction count has chat only",
			update: Update{MessageReactionCount: &MessageReactionCountUpdated{Chat: chat}},
			kind:   UpdateMessageReactionCount,
			chatID: -100,
		},
		{
			name:   "empty update",
			update: Update{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u := tt.update
			require.Equal(t, tt.kind, u.Type())

			if tt.userID == 0 {
				require.Nil(t, u.EffectiveUser())
			} else {
				require.Equal(t, tt.userID, u.EffectiveUser().ID)
			}
			if tt.chatID == 0 {
				require.Nil(t, u.EffectiveChat())
			} else {
				require.Equal(t, tt.chatID, u.EffectiveChat().ID)
			}
			require.Equal(t, tt.hasMsg, u.EffectiveMessage() != nil)

			sender := u.EffectiveSender()
			require.Equal(t, tt.senderID == 0, sender.IsZero())
			require.Equal(t, tt.senderID, sender.ID())
		})
	}
}

func TestChatIDJSON(t *testing.T) {
	t.Parallel()

	t.Run("numeric", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(ChatIDFromInt(-1001))
		require.NoError(t, err)
		require.JSONEq(t, `-1001`, string(data))
	})

	t.Run("username", func(t *testing.T) {
		t.Parallel()
		id := ChatIDFromUsername("gophers")
		require.Equal(t, "@gophers", id.String())
		data, err := json.Marshal(id)
		require.NoError(t, err)
		require.JSONEq(t, `"@gophers"`, string(data))
	})

	t.Run("numeric string decodes to id", func(t *testing.T) {
		t.Parallel()
		var id ChatID
		require.NoError(t, json.Unmarshal([]byte(`"-42"`), &id))
		require.Equal(t, ChatIDFromInt(-42), id)
	})

	t.Run("rejects objects", func(t *testing.T) {
		t.Parallel()
		var id ChatID
		require.Error(t, json.Unmarshal([]byte(`{"id":1}`), &id))
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		rapid.Check(t, func(t *rapid.T) {
			var want ChatID
			if rapid.Bool().Draw(t, "byName") {
				want = ChatIDFromUsername(rapid.StringMatching(`[a-z][a-z0-9_]{3,20}`).Draw(t, "name"))
			} else {
				want = ChatIDFromInt(rapid.Int64().Draw(t, "id"))
			}
			data, err := json.Marshal(want)
			if err != nil {
				t.Fatal(err)
			}
			var got ChatID
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Fatalf("round trip of %v gave %v", want, got)
			}
		})
	})
}

func TestChatMemberUpdatedDifference(t *testing.T) {
	t.Parallel()

	u := User{ID: 1, FirstName: "Bob"}
	cmu := ChatMemberUpdated{
		OldChatMember: ChatMember{Status: ChatMemberMember, User: u},
		NewChatMember: ChatMember{Status: ChatMemberAdministrator, User: u, CanDeleteMessages: true},
	}

	diff := cmu.Difference()
	require.Equal(t, [2]any{ChatMemberMember, ChatMemberAdministrator}, diff["status"])
	require.Equal(t, [2]any{nil, true}, diff["can_delete_messages"])
	require.NotContains(t, diff, "user")
}

func TestUserNamesAndMentions(t *testing.T) {
	t.Parallel()

	u := &User{ID: 99, FirstName: "Jane", LastName: "Doe"}
	require.Equal(t, "Jane Doe", u.FullName())
	require.Equal(t, "Jane Doe", u.Name())
	require.Empty(t, u.Link())
	require.Equal(t, `<a href="tg://user?id=99">Jane Doe</a>`, u.MentionHTML(""))
	require.Equal(t, `<a href="tg://user?id=99">&lt;b&gt;</a>`, u.MentionHTML("<b>"))
	require.Equal(t, `[J\.D](tg://user?id=99)`, u.MentionMarkdownV2("J.D"))
	require.Equal(t, `[J.D](tg://user?id=99)`, MentionMarkdown(99, "J.D", 1))

	u.Username = "jane"
	require.Equal(t, "@jane", u.Name())
	require.Equal(t, "https://t.me/jane", u.Link())
}

func TestEscapeMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		text       string
		version    int
		entityType string
		want       string
	}{
		{"v1", "*bold* _it_ `code` [link]", 1, "", "\\*bold\\* \\_it\\_ \\`code\\` \\[link]"},
		{"v2", "1.5 + (x) = !", 2, "", `1\.5 \+ \(x\) \= \!`},
		{"v2 pre", "a\\b `c` *d*", 2, EntityPre, "a\\\\b \\`c\\` *d*"},
		{"v2 text link", "https://x.y/(a)", 2, EntityTextLink, `https://x.y/(a\)`},
		{"nothing to escape", "plain", 2, "", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, EscapeMarkdown(tt.text, tt.version, tt.entityType))
		})
	}
}

func TestCreateDeepLinkedURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		payload  string
		group    bool
		want     string
		wantErr  bool
	}{
		{name: "bot only", username: "@my_bot", want: "https://t.me/my_bot"},
		{name: "start", username: "my_bot", payload: "ref-42", want: "https://t.me/my_bot?start=ref-42"},
		{name: "group", username: "my_bot", payload: "abc", group: true, want: "https://t.me/my_bot?startgroup=abc"},
		{name: "short username", username: "bot", wantErr: true},
		{name: "bad characters", username: "my_bot", payload: "a b", wantErr: true},
		{name: "too long", username: "my_bot", payload: fmt.Sprintf("%065d", 0), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CreateDeepLinkedURL(tt.username, tt.payload, tt.group)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDeepLink)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCurrencyAmounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		currency string
		amount   int64
		decimal  string
		display  string
	}{
		{"SGD", 1250, "12.5", "S$12.50"},
		{"JPY", 500, "500", "¥500"},
		{"KWD", 12345, "12.345", "12.345 KWD"},
		{"CHF", 99, "0.99", "0.99 CHF"},
		{"XTR", 10, "10", "⭐10"},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			t.Parallel()
			d := AmountToDecimal(tt.amount, tt.currency)
			require.True(t, d.Equal(decimal.RequireFromString(tt.decimal)), "got %s", d)
			require.Equal(t, tt.display, FormatAmount(tt.amount, tt.currency))

			back, err := DecimalToAmount(d, tt.currency)
			require.NoError(t, err)
			require.Equal(t, tt.amount, back)
		})
	}

	t.Run("too many decimals", func(t *testing.T) {
		t.Parallel()
		_, err := DecimalToAmount(decimal.RequireFromString("1.5"), "JPY")
		require.Error(t, err)
	})

	t.Run("invoice price", func(t *testing.T) {
		t.Parallel()
		inv := Invoice{Currency: "USD", TotalAmount: 1999}
		require.Equal(t, "19.99", inv.Price().StringFixed(2))
	})
}

func TestAPIErrorUnwrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *APIError
		want error
	}{
		{"unauthorized", &APIError{Code: 401}, ErrInvalidToken},
		{"not found", &APIError{Code: 404}, ErrInvalidToken},
		{"forbidden", &APIError{Code: 403, Description: "Forbidden: bot was blocked by the user"}, ErrForbidden},
		{"bad request", &APIError{Code: 400}, ErrBadRequest},
		{"conflict", &APIError{Code: 409}, ErrConflict},
		{"flood", &APIError{Code: 429, RetryAfter: 3}, ErrRetryAfter},
		{"migrated", &APIError{Code: 400, MigrateToChatID: -1002}, ErrChatMigrated},
		{"server error", &APIError{Code: 502}, ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var err error = fmt.Errorf("wrapped: %w", tt.err)
			require.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.err.Code, apiErr.Code)
		})
	}
}

func TestTransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	token := "123:secret"
	uerr := &url.Error{Op: "Post", URL: "https://api.telegram.org/bot" + token + "/getMe", Err: errors.New("connection refused")}
	err := transportError("getMe", token, uerr)

	require.ErrorIs(t, err, ErrNetwork)
	require.NotContains(t, err.Error(), "secret")
}

func TestInlineQueryResultType(t *testing.T) {
	t.Parallel()

	results := []InlineQueryResult{
		InlineQueryResultArticle{
			ID:                  "1",
			Title:               "Hello",
			InputMessageContent: InputTextMessageContent{MessageText: "hi"},
		},
	}
	data, err := json.Marshal(results)
	require.NoError(t, err)
	require.JSONEq(t, `[{
		"type": "article",
		"id": "1",
		"title": "Hello",
		"input_message_content": {"message_text": "hi"}
	}]`, string(data))
}

func TestInputFileJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		file *InputFile
		want string
	}{
		{"file id", FileByID("AgAD"), `"AgAD"`},
		{"url", FileByURL("https://example.com/a.png"), `"https://example.com/a.png"`},
		{"upload", FileFromReader("a.png", nil), `"attach://a.png"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := json.Marshal(tt.file)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))
		})
	}
}

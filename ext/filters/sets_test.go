package filters

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/telegram"
)

func TestUserFilter(t *testing.T) {
	t.Parallel()

	from := func(id int64, username string) *telegram.Update {
		return msgUpdate(telegram.Message{Text: "x", From: &telegram.User{ID: id, Username: username}})
	}

	t.Run("ids", func(t *testing.T) {
		t.Parallel()
		f := User(false, 1, 2)
		ok, _ := f.Check(from(2, ""))
		require.True(t, ok)
		ok, _ = f.Check(from(3, ""))
		require.False(t, ok)
	})

	t.Run("usernames ignore case and at sign", func(t *testing.T) {
		t.Parallel()
		f := User(false)
		f.AddUsernames("@Alice")
		ok, _ := f.Check(from(9, "alice"))
		require.True(t, ok)
		require.Equal(t, []string{"alice"}, f.Usernames())
	})

	t.Run("empty set", func(t *testing.T) {
		t.Parallel()
		ok, _ := User(false).Check(from(1, ""))
		require.False(t, ok)
		ok, _ = User(true).Check(from(1, ""))
		require.True(t, ok)
		ok, _ = User(true).Check(msgUpdate(telegram.Message{Text: "anonymous"}))
		require.False(t, ok)
	})

	t.Run("mutations", func(t *testing.T) {
		t.Parallel()
		f := User(false, 1)
		f.AddIDs(5, 7)
		f.RemoveIDs(1)
		require.Equal(t, []int64{5, 7}, f.IDs())
		ok, _ := f.Check(from(1, ""))
		require.False(t, ok)
		require.Equal(t, "filters.User(5, 7)", f.Name())
	})

	t.Run("concurrent use", func(t *testing.T) {
		t.Parallel()
		f := User(false)
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				f.AddIDs(int64(i))
			}()
			go func() {
				defer wg.Done()
				f.Check(from(int64(i), ""))
			}()
		}
		wg.Wait()
		require.Len(t, f.IDs(), 20)
	})
}

func TestChatLikeFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		msg    telegram.Message
		want   bool
	}{
		{"chat", Chat(false, -100), telegram.Message{Chat: telegram.Chat{ID: -100, Type: telegram.ChatTypeGroup}}, true},
		{"other chat", Chat(false, -100), telegram.Message{Chat: telegram.Chat{ID: -200, Type: telegram.ChatTypeGroup}}, false},
		{"via bot", ViaBot(false, 42), telegram.Message{ViaBot: &telegram.User{ID: 42}}, true},
		{"via bot missing", ViaBot(true), telegram.Message{}, false},
		{"sender chat", SenderChat(false, -5), telegram.Message{SenderChat: &telegram.Chat{ID: -5}}, true},
		{"sender channel", SenderChatChannel, telegram.Message{SenderChat: &telegram.Chat{ID: -5, Type: telegram.ChatTypeChannel}}, true},
		{
			"forwarded from user",
			ForwardedFrom(false, 8),
			telegram.Message{ForwardOrigin: &telegram.MessageOrigin{Type: telegram.OriginUser, SenderUser: &telegram.User{ID: 8}}},
			true,
		},
		{
			"forwarded from channel",
			ForwardedFrom(false, -9),
			telegram.Message{ForwardOrigin: &telegram.MessageOrigin{Type: telegram.OriginChannel, Chat: &telegram.Chat{ID: -9}}},
			true,
		},
		{
			"hidden user never matches",
			ForwardedFrom(true),
			telegram.Message{ForwardOrigin: &telegram.MessageOrigin{Type: telegram.OriginHiddenUser, SenderUserName: "x"}},
			false,
		},
		{
			"text mention",
			Mention(false, 77),
			telegram.Message{Text: "hey bob", Entities: []telegram.MessageEntity{{Type: telegram.EntityTextMention, Offset: 4, Length: 3, User: &telegram.User{ID: 77}}}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := tt.filter.Check(msgUpdate(tt.msg))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMentionByUsername(t *testing.T) {
	t.Parallel()

	f := Mention(false)
	f.AddUsernames("Gopher")

	u := msgUpdate(telegram.Message{
		Text:     "ping @gopher",
		Entities: []telegram.MessageEntity{{Type: telegram.EntityMention, Offset: 5, Length: 7}},
	})
	ok, _ := f.Check(u)
	require.True(t, ok)

	f.RemoveUsernames("@GOPHER")
	ok, _ = f.Check(u)
	require.False(t, ok)
}

package filters

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/yelinaung/tgbot/telegram"
	"gitlab.com/yelinaung/tgbot/telegram/telegramtest"
)

func msgUpdate(m telegram.Message) *telegram.Update {
	if m.Chat.ID == 0 {
		m.Chat = telegram.Chat{ID: 1, Type: telegram.ChatTypePrivate}
	}
	if m.Date == 0 {
		m.Date = 1
	}
	return &telegram.Update{UpdateID: 1, Message: &m}
}

func TestFiltersRequireMessage(t *testing.T) {
	t.Parallel()

	callback := telegramtest.CallbackQueryUpdate(1, 2, 3, "data")
	poll := telegramtest.PollAnswerUpdate("p", 1, 0)

	for _, f := range []Filter{All, Text(), Not(Text()), Or(All, Photo), And(All), Xor(All, Photo), User(true), StatusUpdate} {
		t.Run(f.Name(), func(t *testing.T) {
			t.Parallel()
			ok, _ := f.Check(callback)
			require.False(t, ok)
			ok, _ = f.Check(poll)
			require.False(t, ok)
			ok, _ = f.Check(nil)
			require.False(t, ok)
		})
	}
}

func TestContentFilters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter Filter
		msg    telegram.Message
		want   bool
	}{
		{"text any", Text(), telegram.Message{Text: "hi"}, true},
		{"text missing", Text(), telegram.Message{Caption: "hi"}, false},
		{"text exact", Text("yes", "no"), telegram.Message{Text: "no"}, true},
		{"text exact mismatch", Text("yes"), telegram.Message{Text: "yes!"}, false},
		{"caption", Caption(), telegram.Message{Caption: "c"}, true},
		{"photo", Photo, telegram.Message{Photo: []telegram.PhotoSize{{FileID: "f"}}}, true},
		{"photo missing", Photo, telegram.Message{Text: "x"}, false},
		{"voice", Voice, telegram.Message{Voice: &telegram.Voice{}}, true},
		{"reply", Reply, telegram.Message{ReplyToMessage: &telegram.Message{}}, true},
		{"forwarded", Forwarded, telegram.Message{ForwardOrigin: &telegram.MessageOrigin{Type: telegram.OriginHiddenUser}}, true},
		{"premium", Premium, telegram.Message{From: &telegram.User{IsPremium: true}}, true},
		{"premium no sender", Premium, telegram.Message{}, false},
		{"static sticker", StickerStatic, telegram.Message{Sticker: &telegram.Sticker{}}, true},
		{"animated is not static", StickerStatic, telegram.Message{Sticker: &telegram.Sticker{IsAnimated: true}}, false},
		{"video sticker", StickerVideo, telegram.Message{Sticker: &telegram.Sticker{IsVideo: true}}, true},
		{"dice any", Dice(), telegram.Message{Dice: &telegram.Dice{Emoji: telegram.DiceDarts, Value: 3}}, true},
		{"dice values", Dice(5, 6), telegram.Message{Dice: &telegram.Dice{Emoji: telegram.DiceDice, Value: 3}}, false},
		{"dice emoji", DiceEmoji(telegram.DiceDarts, 6), telegram.Message{Dice: &telegram.Dice{Emoji: telegram.DiceDarts, Value: 6}}, true},
		{"dice wrong emoji", DiceEmoji(telegram.DiceBowling), telegram.Message{Dice: &telegram.Dice{Emoji: telegram.DiceDarts}}, false},
		{"language prefix", Language("en"), telegram.Message{From: &telegram.User{LanguageCode: "en_US"}}, true},
		{"language other", Language("en", "de"), telegram.Message{From: &telegram.User{LanguageCode: "fr"}}, false},
		{"private chat", ChatTypePrivate, telegram.Message{Chat: telegram.Chat{ID: 1, Type: telegram.ChatTypePrivate}}, true},
		{"groups", ChatTypeGroups, telegram.Message{Chat: telegram.Chat{ID: -1, Type: telegram.ChatTypeSupergroup}}, true},
		{"channel is not group", ChatTypeGroups, telegram.Message{Chat: telegram.Chat{ID: -1, Type: telegram.ChatTypeChannel}}, false},
		{"mention entity", Entity(telegram.EntityMention), telegram.Message{Text: "@a", Entities: []telegram.MessageEntity{{Type: telegram.EntityMention, Length: 2}}}, true},
		{"caption entity", CaptionEntity(telegram.EntityURL), telegram.Message{Caption: "x", CaptionEntities: []telegram.MessageEntity{{Type: telegram.EntityURL, Length: 1}}}, true},
		{"command at start", Command(true), telegram.Message{Text: "/go", Entities: []telegram.MessageEntity{{Type: telegram.EntityBotCommand, Length: 3}}}, true},
		{"command later only start", Command(true), telegram.Message{Text: "a /go", Entities: []telegram.MessageEntity{{Type: telegram.EntityBotCommand, Offset: 2, Length: 3}}}, false},
		{"command anywhere", Command(false), telegram.Message{Text: "a /go", Entities: []telegram.MessageEntity{{Type: telegram.EntityBotCommand, Offset: 2, Length: 3}}}, true},
		{"status new members", StatusNewChatMembers, telegram.Message{NewChatMembers: []telegram.User{{ID: 1}}}, true},
		{"status any", StatusUpdate, telegram.Message{PinnedMessage: &telegram.Message{}}, true},
		{"status plain text", StatusUpdate, telegram.Message{Text: "x"}, false},
		{"status chat created", StatusChatCreated, telegram.Message{SupergroupChatCreated: true}, true},
		{"status migrate", StatusMigrate, telegram.Message{MigrateFromChatID: -5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := tt.filter.Check(msgUpdate(tt.msg))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentFilters(t *testing.T) {
	t.Parallel()

	doc := func(name, mime string) *telegram.Update {
		return msgUpdate(telegram.Message{Document: &telegram.Document{FileName: name, MimeType: mime}})
	}

	tests := []struct {
		name   string
		filter Filter
		update *telegram.Update
		want   bool
	}{
		{"any document", Document, doc("a.pdf", "application/pdf"), true},
		{"category", DocumentImage, doc("a.png", "image/png"), true},
		{"category mismatch", DocumentAudio, doc("a.png", "image/png"), false},
		{"mime type", DocumentPDF, doc("a.pdf", "application/pdf"), true},
		{"extension", FileExtension("pdf", false), doc("Report.PDF", ""), true},
		{"extension case sensitive", FileExtension("pdf", true), doc("Report.PDF", ""), false},
		{"double extension", FileExtension(".tar.gz", false), doc("src.tar.gz", ""), true},
		{"no extension", FileExtension("", false), doc("Makefile", ""), true},
		{"no extension but has one", FileExtension("", false), doc("a.txt", ""), false},
		{"extension is not a suffix match", FileExtension("df", false), doc("a.pdf", ""), false},
		{"no document", Document, msgUpdate(telegram.Message{Text: "x"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := tt.filter.Check(tt.update)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRegexReturnsMatches(t *testing.T) {
	t.Parallel()

	f := Regex(`(\d+)\s+(\w+)`)

	ok, data := f.Check(msgUpdate(telegram.Message{Text: "spent 12 coffee"}))
	require.True(t, ok)
	require.Equal(t, [][]string{{"12 coffee", "12", "coffee"}}, data.Matches())

	ok, data = f.Check(msgUpdate(telegram.Message{Text: "nothing here"}))
	require.False(t, ok)
	require.Nil(t, data)

	ok, _ = CaptionRegex(`^lunch`).Check(msgUpdate(telegram.Message{Caption: "lunch at noon"}))
	require.True(t, ok)
}

func TestCombinatorData(t *testing.T) {
	t.Parallel()

	u := msgUpdate(telegram.Message{Text: "abc 123"})
	letters := Regex(`[a-z]+`)
	digits := Regex(`\d+`)

	t.Run("and merges", func(t *testing.T) {
		t.Parallel()
		ok, data := And(letters, digits).Check(u)
		require.True(t, ok)
		require.Equal(t, [][]string{{"abc"}, {"123"}}, data.Matches())
	})

	t.Run("or returns first match", func(t *testing.T) {
		t.Parallel()
		ok, data := Or(Regex(`x+`), digits, letters).Check(u)
		require.True(t, ok)
		require.Equal(t, [][]string{{"123"}}, data.Matches())
	})

	t.Run("xor needs exactly one", func(t *testing.T) {
		t.Parallel()
		ok, _ := Xor(letters, digits).Check(u)
		require.False(t, ok)
		ok, data := Xor(Regex(`x+`), digits).Check(u)
		require.True(t, ok)
		require.Equal(t, [][]string{{"123"}}, data.Matches())
	})

	t.Run("names", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "<filters.Text and <inverted filters.Photo>>", And(Text(), Not(Photo)).Name())
		require.Equal(t, "<filters.Voice or filters.Audio>", Or(Voice, Audio).Name())
	})
}

func TestFilterAlgebra(t *testing.T) {
	t.Parallel()

	base := []Filter{All, Text(), Photo, Caption(), Reply, ChatTypePrivate, Not(All)}
	messages := []telegram.Message{
		{Text: "hi"},
		{Caption: "c", Photo: []telegram.PhotoSize{{FileID: "p"}}},
		{Text: "re", ReplyToMessage: &telegram.Message{}, Chat: telegram.Chat{ID: -3, Type: telegram.ChatTypeGroup}},
		{Voice: &telegram.Voice{}},
	}

	check := func(f Filter, u *telegram.Update) bool {
		ok, _ := f.Check(u)
		return ok
	}

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.SampledFrom(base).Draw(t, "a")
		b := rapid.SampledFrom(base).Draw(t, "b")
		u := msgUpdate(rapid.SampledFrom(messages).Draw(t, "message"))

		ra, rb := check(a, u), check(b, u)
		if got := check(And(a, b), u); got != (ra && rb) {
			t.Fatalf("And(%s, %s) = %v", a.Name(), b.Name(), got)
		}
		if got := check(Or(a, b), u); got != (ra || rb) {
			t.Fatalf("Or(%s, %s) = %v", a.Name(), b.Name(), got)
		}
		if got := check(Xor(a, b), u); got != (ra != rb) {
			t.Fatalf("Xor(%s, %s) = %v", a.Name(), b.Name(), got)
		}
		if check(Not(Not(a)), u) != ra {
			t.Fatalf("double negation of %s changed the result", a.Name())
		}
		// De Morgan
		if check(Not(And(a, b)), u) != check(Or(Not(a), Not(b)), u) {
			t.Fatalf("De Morgan failed for %s, %s", a.Name(), b.Name())
		}
	})
}

func TestUpdateTypeFilters(t *testing.T) {
	t.Parallel()

	edited := telegramtest.NewUpdateBuilder().WithEditedMessage(1, 2, "x").Build()
	post := telegramtest.NewUpdateBuilder().WithChannelPost(-100, "news").Build()
	plain := telegramtest.MessageUpdate(1, 2, "x")

	tests := []struct {
		name   string
		filter Filter
		update *telegram.Update
		want   bool
	}{
		{"message", UpdateTypeMessage, plain, true},
		{"message rejects edit", UpdateTypeMessage, edited, false},
		{"messages includes edit", UpdateTypeMessages, edited, true},
		{"edited", UpdateTypeEdited, edited, true},
		{"channel posts", UpdateTypeChannelPosts, post, true},
		{"channel post is not a message", UpdateTypeMessages, post, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := tt.filter.Check(tt.update)
			require.Equal(t, tt.want, got)
		})
	}
}

package pollbot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/internal/config"
	"gitlab.com/yelinaung/tgbot/telegram"
	"gitlab.com/yelinaung/tgbot/telegram/telegramtest"
)

// sentPollID returns the id of the only poll the bot remembers.
func sentPollID(t *testing.T, app *ext.Application) string {
	t.Helper()
	keys := app.BotData().Keys()
	require.Len(t, keys, 1)
	id, ok := strings.CutPrefix(keys[0], "poll:")
	require.True(t, ok)
	return id
}

func TestHandleStartAndHelp(t *testing.T) {
	t.Parallel()
	app, _, srv := setupTestBot(t, nil)

	process(t, app, telegramtest.CommandUpdate(1, 1, "/start"))
	process(t, app, telegramtest.CommandUpdate(1, 1, "/help"))
	require.Equal(t, []string{startText, helpText}, srv.SentTexts())
}

func TestPollFlow(t *testing.T) {
	t.Parallel()
	app, _, srv := setupTestBot(t, nil)
	const chatID = -42

	process(t, app, telegramtest.CommandUpdate(chatID, 1, "/poll"))
	send := srv.LastCall("sendPoll")
	require.NotNil(t, send)
	require.Equal(t, pollQuestion, send.String("question"))
	require.Equal(t, "false", send.String("is_anonymous"))
	require.Equal(t, "true", send.String("allows_multiple_answers"))
	var options []telegram.InputPollOption
	require.NoError(t, send.Decode("options", &options))
	require.Len(t, options, len(pollOptions))

	pollID := sentPollID(t, app)

	for voter := int64(1); voter <= TotalVoterCount; voter++ {
		process(t, app, telegramtest.PollAnswerUpdate(pollID, voter, 0, 2))
	}

	texts := srv.SentTexts()
	require.Len(t, texts, TotalVoterCount)
	require.Equal(t, `<a href="tg://user?id=1">Test User</a> feels Good and Fantastic!`, texts[0])
	for _, call := range srv.CallsTo("sendMessage") {
		require.Equal(t, int64(chatID), call.Int("chat_id"))
	}

	stop := srv.LastCall("stopPoll")
	require.NotNil(t, stop)
	require.Equal(t, int64(chatID), stop.Int("chat_id"))
	require.Equal(t, send.Int("chat_id"), stop.Int("chat_id"))
	require.Empty(t, app.BotData().Keys(), "closed polls are forgotten")

	process(t, app, telegramtest.PollAnswerUpdate(pollID, 99, 1))
	require.Len(t, srv.SentTexts(), TotalVoterCount, "answers to closed polls are ignored")
}

func TestReceivePollAnswer_Ignored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update *telegram.Update
	}{
		{"unknown poll", telegramtest.PollAnswerUpdate("unknown", 1, 0)},
		{"retracted vote", telegramtest.PollAnswerUpdate("p1", 1)},
		{"quiz record", telegramtest.PollAnswerUpdate("q1", 1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app, _, srv := setupTestBot(t, nil)
			app.BotData().Set(pollKey("p1"), pollRecord{Options: pollOptions, ChatID: 1, MessageID: 2})
			app.BotData().Set(pollKey("q1"), pollRecord{ChatID: 1, MessageID: 3})

			process(t, app, tt.update)
			require.Zero(t, srv.CallCount("sendMessage"))
			require.Zero(t, srv.CallCount("stopPoll"))
		})
	}
}

func TestReceivePollAnswer_AfterRestart(t *testing.T) {
	t.Parallel()
	app, _, srv := setupTestBot(t, nil)
	// what a JSON persistence hands back
	app.BotData().Set(pollKey("p1"), map[string]any{
		"options":    []any{"Good", "Bad"},
		"chat_id":    float64(5),
		"message_id": float64(6),
		"answers":    float64(TotalVoterCount - 1),
	})

	process(t, app, telegramtest.PollAnswerUpdate("p1", 1, 1))
	require.Equal(t, []string{`<a href="tg://user?id=1">Test User</a> feels Bad!`}, srv.SentTexts())
	stop := srv.LastCall("stopPoll")
	require.NotNil(t, stop)
	require.Equal(t, int64(6), stop.Int("message_id"))
}

func TestQuizFlow(t *testing.T) {
	t.Parallel()
	app, _, srv := setupTestBot(t, nil)

	cmd := telegramtest.CommandUpdate(7, 7, "/quiz")
	process(t, app, cmd)
	send := srv.LastCall("sendPoll")
	require.NotNil(t, send)
	require.Equal(t, quizQuestion, send.String("question"))
	require.Equal(t, telegram.PollQuiz, send.String("type"))
	require.Equal(t, int64(quizCorrectOption), send.Int("correct_option_id"))

	var params telegram.ReplyParameters
	require.NoError(t, send.Decode("reply_parameters", &params))
	require.Equal(t, cmd.Message.MessageID, params.MessageID)

	quizID := sentPollID(t, app)
	pollUpdate := func(voters int, closed bool, pollType string) *telegram.Update {
		return telegramtest.NewUpdateBuilder().WithPoll(telegram.Poll{
			ID:              quizID,
			Type:            pollType,
			TotalVoterCount: voters,
			IsClosed:        closed,
		}).Build()
	}

	process(t, app, pollUpdate(TotalVoterCount-1, false, telegram.PollQuiz))
	process(t, app, pollUpdate(TotalVoterCount, true, telegram.PollQuiz))
	process(t, app, pollUpdate(TotalVoterCount, false, telegram.PollRegular))
	require.Zero(t, srv.CallCount("stopPoll"))

	process(t, app, pollUpdate(TotalVoterCount, false, telegram.PollQuiz))
	require.Equal(t, 1, srv.CallCount("stopPoll"))
	require.Equal(t, int64(7), srv.LastCall("stopPoll").Int("chat_id"))
}

func TestPreviewFlow(t *testing.T) {
	t.Parallel()
	app, _, srv := setupTestBot(t, nil)

	process(t, app, telegramtest.CommandUpdate(3, 3, "/preview"))
	call := srv.LastCall("sendMessage")
	require.NotNil(t, call)
	require.Equal(t, previewText, call.String("text"))
	var kb telegram.ReplyKeyboardMarkup
	require.NoError(t, call.Decode("reply_markup", &kb))
	require.Len(t, kb.Keyboard, 1)
	require.NotNil(t, kb.Keyboard[0][0].RequestPoll)

	u := telegramtest.MessageUpdate(3, 3, "")
	u.Message.Poll = &telegram.Poll{
		ID:       "user-poll",
		Question: "Lunch?",
		Options:  []telegram.PollOption{{Text: "Noodles"}, {Text: "Rice"}},
		Type:     telegram.PollRegular,
	}
	process(t, app, u)

	echo := srv.LastCall("sendPoll")
	require.NotNil(t, echo)
	require.Equal(t, "Lunch?", echo.String("question"))
	require.Equal(t, "true", echo.String("is_closed"))
	var options []telegram.InputPollOption
	require.NoError(t, echo.Decode("options", &options))
	require.Equal(t, telegram.PollOptions("Noodles", "Rice"), options)
	var remove telegram.ReplyKeyboardRemove
	require.NoError(t, echo.Decode("reply_markup", &remove))
	require.True(t, remove.RemoveKeyboard)
}

func TestPollLifetime(t *testing.T) {
	t.Parallel()
	tg, srv := telegramtest.NewBot(t)
	jq := ext.NewJobQueue()
	app, err := ext.NewApplication(tg, ext.WithJobQueue(jq))
	require.NoError(t, err)
	b, err := New(&config.Config{}, WithPollLifetime(time.Hour))
	require.NoError(t, err)
	require.NoError(t, b.Register(app))
	require.NoError(t, app.Initialize(context.Background()))

	process(t, app, telegramtest.CommandUpdate(4, 4, "/poll"))
	pollID := sentPollID(t, app)

	jobs := jq.JobsByName("close-poll")
	require.Len(t, jobs, 1)
	require.Equal(t, pollID, jobs[0].Data)
	require.Equal(t, int64(4), jobs[0].ChatID)

	require.NoError(t, jobs[0].Run(context.Background()))
	require.Equal(t, 1, srv.CallCount("stopPoll"))
	require.Empty(t, app.BotData().Keys())

	require.NoError(t, jobs[0].Run(context.Background()), "closing twice is a no-op")
	require.Equal(t, 1, srv.CallCount("stopPoll"))
}

func TestFormatAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ids  []int
		want string
	}{
		{"single", []int{1}, "Really good"},
		{"several", []int{0, 2, 3}, "Good and Fantastic and Great"},
		{"skips unknown ids", []int{-1, 3, 9}, "Great"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, formatAnswer(pollOptions, tt.ids))
		})
	}
}

func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	rec := pollRecord{Options: []string{"a"}, ChatID: 1, MessageID: 2, Answers: 3}
	tests := []struct {
		name   string
		in     any
		want   pollRecord
		wantOK bool
	}{
		{"record", rec, rec, true},
		{"persisted map", map[string]any{"options": []any{"a"}, "chat_id": 1.0, "message_id": 2.0, "answers": 3.0}, rec, true},
		{"nil", nil, pollRecord{}, false},
		{"no chat", map[string]any{"message_id": 2.0}, pollRecord{MessageID: 2}, false},
		{"wrong shape", "poll", pollRecord{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := decodeRecord(tt.in)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRecordAnswer_Concurrent(t *testing.T) {
	t.Parallel()
	store := ext.NewStore(nil)
	store.Set(pollKey("p"), pollRecord{ChatID: 1})

	const voters = 50
	done := make(chan int, voters)
	for range voters {
		go func() {
			rec, _ := recordAnswer(store, "p")
			done <- rec.Answers
		}()
	}
	seen := make(map[int]bool)
	for range voters {
		seen[<-done] = true
	}
	require.Len(t, seen, voters, "every voter sees a distinct count")

	rec, ok := lookupRecord(store, "p")
	require.True(t, ok)
	require.Equal(t, voters, rec.Answers)

	_, ok = recordAnswer(store, "missing")
	require.False(t, ok)
	require.Equal(t, []string{pollKey("p")}, store.Keys(), "missing polls are not created")
}

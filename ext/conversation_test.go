package ext_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/ext/filters"
	"gitlab.com/yelinaung/tgbot/ext/persistence"
	"gitlab.com/yelinaung/tgbot/telegram"
	"gitlab.com/yelinaung/tgbot/telegram/telegramtest"
)

const (
	stateSize = "SIZE"
	stateName = "NAME"
)

func goTo(state string) ext.HandlerFunc {
	return func(context.Context, *telegram.Update, *ext.CallbackContext) error {
		return ext.NextState(state)
	}
}

func endConversation(context.Context, *telegram.Update, *ext.CallbackContext) error {
	return ext.EndConversation()
}

// orderConversation is /order, then a size, then a name. /cancel ends it
// from any state.
func orderConversation(rec *recorder) *ext.ConversationHandler {
	return &ext.ConversationHandler{
		Name: "order",
		EntryPoints: []ext.Handler{ext.NewCommandHandler(func(context.Context, *telegram.Update, *ext.CallbackContext) error {
			rec.add("order")
			return ext.NextState(stateSize)
		}, "order")},
		States: map[string][]ext.Handler{
			stateSize: {ext.NewMessageHandler(filters.Regex(`^(S|M|L)$`), func(_ context.Context, u *telegram.Update, _ *ext.CallbackContext) error {
				rec.add("size " + u.Message.Text)
				return ext.NextState(stateName)
			})},
			stateName: {ext.NewMessageHandler(filters.Text(), func(_ context.Context, u *telegram.Update, _ *ext.CallbackContext) error {
				rec.add("name " + u.Message.Text)
				return ext.EndConversation()
			})},
		},
		Fallbacks: []ext.Handler{ext.NewCommandHandler(func(context.Context, *telegram.Update, *ext.CallbackContext) error {
			rec.add("cancel")
			return ext.EndConversation()
		}, "cancel")},
	}
}

func TestConversationFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	app, _ := newApp(t)
	rec := &recorder{}
	conv := orderConversation(rec)
	require.NoError(t, app.AddHandler(conv, 0))
	require.NoError(t, app.AddHandler(ext.NewMessageHandler(nil, rec.handler("outside", nil)), 1))

	process := func(u *telegram.Update) {
		t.Helper()
		require.NoError(t, app.ProcessUpdate(ctx, u))
	}

	process(telegramtest.MessageUpdate(1, 1, "S"))
	_, active := conv.State("1:1")
	require.False(t, active, "messages outside a conversation are not handled by it")

	process(telegramtest.CommandUpdate(1, 1, "order"))
	state, _ := conv.State("1:1")
	require.Equal(t, stateSize, state)

	process(telegramtest.MessageUpdate(1, 1, "XL"))
	state, _ = conv.State("1:1")
	require.Equal(t, stateSize, state, "unmatched updates keep the state")

	process(telegramtest.MessageUpdate(1, 1, "M"))
	state, _ = conv.State("1:1")
	require.Equal(t, stateName, state)

	process(telegramtest.MessageUpdate(1, 1, "Aung"))
	_, active = conv.State("1:1")
	require.False(t, active)

	process(telegramtest.CommandUpdate(1, 1, "order"))
	process(telegramtest.CommandUpdate(1, 1, "cancel"))
	require.Empty(t, conv.Conversations())

	require.Equal(t, []string{
		"outside", "order", "outside", "outside", "size M", "outside", "name Aung", "outside",
		"order", "outside", "cancel", "outside",
	}, rec.get())
}

func TestConversationKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     ext.ConversationKey
		update  *telegram.Update
		wantKey string
	}{
		{"chat and user", 0, telegramtest.CommandUpdate(-10, 3, "go"), "-10:3"},
		{"chat only", ext.KeyChat, telegramtest.CommandUpdate(-10, 3, "go"), "-10"},
		{"user only", ext.KeyUser, telegramtest.CommandUpdate(-10, 3, "go"), "3"},
		{
			"per message",
			ext.KeyChat | ext.KeyMessage,
			telegramtest.CallbackQueryUpdate(-10, 3, 42, "go"),
			"-10:42",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := newApp(t)
			conv := &ext.ConversationHandler{
				Key: tt.key,
				EntryPoints: []ext.Handler{
					ext.NewCommandHandler(goTo("ON"), "go"),
					&ext.CallbackQueryHandler{Callback: goTo("ON")},
				},
			}
			require.NoError(t, app.AddHandler(conv, 0))
			require.NoError(t, app.ProcessUpdate(context.Background(), tt.update))
			require.Equal(t, map[string]string{tt.wantKey: "ON"}, conv.Conversations())
		})
	}
}

func TestConversationPerMessageIgnoresMessages(t *testing.T) {
	t.Parallel()

	app, _ := newApp(t)
	conv := &ext.ConversationHandler{
		Key:         ext.KeyMessage,
		EntryPoints: []ext.Handler{ext.NewMessageHandler(nil, goTo("ON"))},
	}
	require.NoError(t, app.AddHandler(conv, 0))
	require.NoError(t, app.ProcessUpdate(context.Background(), telegramtest.MessageUpdate(1, 1, "hi")))
	require.Empty(t, conv.Conversations())
}

func TestConversationReentry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, reentry := range []bool{false, true} {
		app, _ := newApp(t)
		conv := &ext.ConversationHandler{
			AllowReentry: reentry,
			EntryPoints:  []ext.Handler{ext.NewCommandHandler(goTo("FIRST"), "start")},
			States: map[string][]ext.Handler{
				"FIRST": {ext.NewMessageHandler(filters.Text(), goTo("SECOND"))},
			},
		}
		require.NoError(t, app.AddHandler(conv, 0))

		require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "start")))
		require.NoError(t, app.ProcessUpdate(ctx, telegramtest.MessageUpdate(1, 1, "next")))
		require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "start")))

		state, _ := conv.State("1:1")
		if reentry {
			require.Equal(t, "FIRST", state)
		} else {
			require.Equal(t, "SECOND", state)
		}
	}
}

func TestConversationStopWithState(t *testing.T) {
	t.Parallel()

	app, _ := newApp(t)
	rec := &recorder{}
	conv := &ext.ConversationHandler{
		EntryPoints: []ext.Handler{ext.NewCommandHandler(func(context.Context, *telegram.Update, *ext.CallbackContext) error {
			return ext.StopWithState("ON")
		}, "start")},
	}
	require.NoError(t, app.AddHandler(conv, 0))
	require.NoError(t, app.AddHandler(ext.NewMessageHandler(nil, rec.handler("later group", nil)), 1))

	require.NoError(t, app.ProcessUpdate(context.Background(), telegramtest.CommandUpdate(1, 1, "start")))
	state, _ := conv.State("1:1")
	require.Equal(t, "ON", state)
	require.Empty(t, rec.get())
}

func TestConversationErrorKeepsState(t *testing.T) {
	t.Parallel()

	app, _ := newApp(t)
	boom := errors.New("boom")
	var got error
	app.AddErrorHandler(func(_ context.Context, _ any, c *ext.CallbackContext) error {
		got = c.Error
		return nil
	}, true)
	conv := &ext.ConversationHandler{
		EntryPoints: []ext.Handler{ext.NewCommandHandler(goTo("ON"), "start")},
		States: map[string][]ext.Handler{
			"ON": {ext.NewMessageHandler(nil, func(context.Context, *telegram.Update, *ext.CallbackContext) error { return boom })},
		},
	}
	require.NoError(t, app.AddHandler(conv, 0))

	ctx := context.Background()
	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "start")))
	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.MessageUpdate(1, 1, "x")))
	require.ErrorIs(t, got, boom)
	state, _ := conv.State("1:1")
	require.Equal(t, "ON", state)
}

func TestConversationNested(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	app, _ := newApp(t)
	child := &ext.ConversationHandler{
		Name:        "address",
		EntryPoints: []ext.Handler{ext.NewCommandHandler(goTo("STREET"), "address")},
		States: map[string][]ext.Handler{
			"STREET": {ext.NewMessageHandler(filters.Text(), goTo("DONE"))},
		},
		MapToParent: map[string]string{"DONE": "CONFIRM"},
	}
	parent := &ext.ConversationHandler{
		Name:        "checkout",
		EntryPoints: []ext.Handler{ext.NewCommandHandler(goTo("DETAILS"), "checkout")},
		States: map[string][]ext.Handler{
			"DETAILS": {child},
			"CONFIRM": {ext.NewCommandHandler(endConversation, "confirm")},
		},
	}
	require.NoError(t, app.AddHandler(parent, 0))

	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "checkout")))
	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "address")))
	state, _ := child.State("1:1")
	require.Equal(t, "STREET", state)
	state, _ = parent.State("1:1")
	require.Equal(t, "DETAILS", state)

	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.MessageUpdate(1, 1, "Main Road 1")))
	_, active := child.State("1:1")
	require.False(t, active, "a mapped state ends the nested conversation")
	state, _ = parent.State("1:1")
	require.Equal(t, "CONFIRM", state)

	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "confirm")))
	require.Empty(t, parent.Conversations())
}

func TestConversationPersistence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := persistence.NewDict()
	app, _ := newApp(t, ext.WithPersistence(store))
	conv := orderConversation(&recorder{})
	conv.Persistent = true
	require.NoError(t, app.AddHandler(conv, 0))

	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "order")))
	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(2, 2, "order")))
	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.MessageUpdate(2, 2, "L")))
	require.JSONEq(t, `{"order":{"1:1":"SIZE","2:2":"NAME"}}`, store.ConversationsJSON())

	restored := orderConversation(&recorder{})
	restored.Persistent = true
	bot, _ := telegramtest.NewBot(t)
	next, err := ext.NewApplication(bot, ext.WithPersistence(store))
	require.NoError(t, err)
	require.NoError(t, next.AddHandler(restored, 0))
	require.NoError(t, next.Initialize(ctx))
	require.Equal(t, map[string]string{"1:1": stateSize, "2:2": stateName}, restored.Conversations())

	require.NoError(t, next.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "cancel")))
	require.JSONEq(t, `{"order":{"2:2":"NAME"}}`, store.ConversationsJSON())
}

func TestConversationTimeout(t *testing.T) {
	t.Parallel()

	app, _ := newApp(t, ext.WithJobQueue(ext.NewJobQueue()))
	startApp(t, app)

	timedOut := make(chan string, 1)
	conv := &ext.ConversationHandler{
		Name:        "quiz",
		Timeout:     50 * time.Millisecond,
		EntryPoints: []ext.Handler{ext.NewCommandHandler(goTo("ASK"), "quiz")},
		States: map[string][]ext.Handler{
			ext.StateTimeout: {ext.NewMessageHandler(nil, func(_ context.Context, u *telegram.Update, c *ext.CallbackContext) error {
				if c.Job == nil {
					return errors.New("timeout handler without job")
				}
				timedOut <- u.Message.Text
				return nil
			})},
		},
	}
	require.NoError(t, app.AddHandler(conv, 0))
	require.NoError(t, app.ProcessUpdate(context.Background(), telegramtest.CommandUpdate(1, 1, "quiz")))

	select {
	case text := <-timedOut:
		require.Equal(t, "/quiz", text)
	case <-time.After(waitFor):
		t.Fatal("conversation did not time out")
	}
	require.Eventually(t, func() bool {
		_, active := conv.State("1:1")
		return !active
	}, waitFor, 10*time.Millisecond)
}

func TestConversationNonBlocking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	app, _ := newApp(t)
	startApp(t, app)

	release := make(chan struct{})
	done := make(chan struct{})
	waiting := make(chan string, 1)
	conv := &ext.ConversationHandler{
		NonBlocking: true,
		EntryPoints: []ext.Handler{ext.NewCommandHandler(func(context.Context, *telegram.Update, *ext.CallbackContext) error {
			defer close(done)
			<-release
			return ext.NextState("READY")
		}, "slow")},
		States: map[string][]ext.Handler{
			ext.StateWaiting: {ext.NewMessageHandler(filters.Text(), func(_ context.Context, u *telegram.Update, _ *ext.CallbackContext) error {
				waiting <- u.Message.Text
				return nil
			})},
		},
	}
	require.NoError(t, app.AddHandler(conv, 0))

	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.CommandUpdate(1, 1, "slow")))
	state, _ := conv.State("1:1")
	require.Equal(t, ext.StateWaiting, state)

	require.NoError(t, app.ProcessUpdate(ctx, telegramtest.MessageUpdate(1, 1, "still there?")))
	select {
	case text := <-waiting:
		require.Equal(t, "still there?", text)
	case <-time.After(waitFor):
		t.Fatal("waiting handler did not run")
	}

	close(release)
	<-done
	require.Eventually(t, func() bool {
		state, _ := conv.State("1:1")
		return state == "READY"
	}, waitFor, 10*time.Millisecond)
}

func TestConversationValidate(t *testing.T) {
	t.Parallel()

	entry := []ext.Handler{ext.NewCommandHandler(goTo("ON"), "start")}
	tests := []struct {
		name string
		conv *ext.ConversationHandler
	}{
		{"no entry points", &ext.ConversationHandler{}},
		{"persistent without name", &ext.ConversationHandler{EntryPoints: entry, Persistent: true}},
		{"invalid key", &ext.ConversationHandler{EntryPoints: entry, Key: 1 << 6}},
		{"negative timeout", &ext.ConversationHandler{EntryPoints: entry, Timeout: -time.Second}},
		{"invalid child", &ext.ConversationHandler{EntryPoints: []ext.Handler{&ext.CommandHandler{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, tt.conv.Validate())
		})
	}
}

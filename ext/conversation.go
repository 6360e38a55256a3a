package ext

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// ConversationKey selects what identifies a conversation.
type ConversationKey uint8

const (
	// KeyChat keys conversations by the effective chat.
	KeyChat ConversationKey = 1 << iota
	// KeyUser keys conversations by the effective user.
	KeyUser
	// KeyMessage keys conversations by the message a callback query
	// belongs to. Such conversations only see callback queries.
	KeyMessage

	keyAll = KeyChat | KeyUser | KeyMessage
)

// ConversationHandler is a state machine over the updates of one chat, user
// or message. Handlers move it to another state by returning NextState,
// EndConversation or StopWithState; returning nil keeps the state.
//
// Without an active state only EntryPoints are checked. In a state, its
// handlers are checked, then Fallbacks. States[StateTimeout] handlers run
// when Timeout passes without an update; States[StateWaiting] handlers see
// updates while a non-blocking callback is still running.
type ConversationHandler struct {
	EntryPoints []Handler
	States      map[string][]Handler
	Fallbacks   []Handler
	// AllowReentry lets entry points restart an active conversation.
	AllowReentry bool
	// Key defaults to KeyChat | KeyUser.
	Key ConversationKey
	// Timeout ends idle conversations. It needs a JobQueue.
	Timeout time.Duration
	Name    string
	// Persistent conversations keep their states in the application's
	// persistence. They need a Name.
	Persistent bool
	// MapToParent translates states of a nested conversation into states
	// of the conversation containing it. A mapped state ends the nested one.
	MapToParent map[string]string
	// NonBlocking runs all child callbacks in the background.
	NonBlocking bool

	mu            sync.Mutex
	conversations map[string]string
	timeouts      map[string]*Job
}

type conversationCheck struct {
	key     string
	state   string
	active  bool
	handler Handler
	check   any
}

func (ch *ConversationHandler) keyParts() ConversationKey {
	if ch.Key == 0 {
		return KeyChat | KeyUser
	}
	return ch.Key
}

func (ch *ConversationHandler) children() []Handler {
	var hs []Handler
	hs = append(hs, ch.EntryPoints...)
	for _, state := range ch.States {
		hs = append(hs, state...)
	}
	return append(hs, ch.Fallbacks...)
}

func (ch *ConversationHandler) Validate() error {
	if len(ch.EntryPoints) == 0 {
		return errors.New("ext: conversation needs at least one entry point")
	}
	if ch.Key&^keyAll != 0 {
		return fmt.Errorf("ext: invalid conversation key %d", ch.Key)
	}
	if ch.Persistent && ch.Name == "" {
		return errors.New("ext: persistent conversations need a name")
	}
	if ch.Timeout < 0 {
		return fmt.Errorf("ext: negative conversation timeout %s", ch.Timeout)
	}
	for _, h := range ch.children() {
		if v, ok := h.(validator); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ch *ConversationHandler) bindApplication(app *Application) {
	for _, h := range ch.children() {
		if b, ok := h.(appBinder); ok {
			b.bindApplication(app)
		}
		if _, isQuery := h.(*CallbackQueryHandler); ch.keyParts()&KeyMessage != 0 && !isQuery {
			app.log.Warn().Str("conversation", ch.Name).Msgf("Per-message conversation contains %T, which never sees callback queries", h)
		}
	}
	if ch.Timeout > 0 && app.JobQueue() == nil {
		app.log.Warn().Str("conversation", ch.Name).Msg("Conversation timeout needs a job queue and is ignored")
	}
}

// Block always returns true; NonBlocking applies to the child callbacks.
func (ch *ConversationHandler) Block() bool { return true }

// conversationKey returns the key of update, or false when the update lacks
// a part the key needs.
func (ch *ConversationHandler) conversationKey(u *telegram.Update) (string, bool) {
	parts := ch.keyParts()
	var key []string
	if parts&KeyChat != 0 {
		chat := u.EffectiveChat()
		if chat == nil {
			return "", false
		}
		key = append(key, strconv.FormatInt(chat.ID, 10))
	}
	if parts&KeyUser != 0 {
		user := u.EffectiveUser()
		if user == nil {
			return "", false
		}
		key = append(key, strconv.FormatInt(user.ID, 10))
	}
	if parts&KeyMessage != 0 {
		q := u.CallbackQuery
		switch {
		case q == nil:
			return "", false
		case q.InlineMessageID != "":
			key = append(key, q.InlineMessageID)
		case q.Message != nil:
			key = append(key, strconv.Itoa(q.Message.MessageID))
		default:
			return "", false
		}
	}
	return strings.Join(key, ":"), true
}

func firstMatch(handlers []Handler, update any) (Handler, any, bool) {
	for _, h := range handlers {
		if check, ok := h.CheckUpdate(update); ok {
			return h, check, true
		}
	}
	return nil, nil, false
}

func (ch *ConversationHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok || u.ChannelPost != nil || u.EditedChannelPost != nil {
		return nil, false
	}
	key, ok := ch.conversationKey(u)
	if !ok {
		return nil, false
	}

	ch.mu.Lock()
	state, active := ch.conversations[key]
	ch.mu.Unlock()

	if active && state == StateWaiting {
		h, check, ok := firstMatch(ch.States[StateWaiting], update)
		if !ok {
			return nil, false
		}
		return &conversationCheck{key: key, state: state, active: true, handler: h, check: check}, true
	}

	if !active || ch.AllowReentry {
		if h, check, ok := firstMatch(ch.EntryPoints, update); ok {
			return &conversationCheck{key: key, state: state, active: active, handler: h, check: check}, true
		}
		if !active {
			return nil, false
		}
	}

	h, check, ok := firstMatch(ch.States[state], update)
	if !ok {
		h, check, ok = firstMatch(ch.Fallbacks, update)
	}
	if !ok {
		return nil, false
	}
	return &conversationCheck{key: key, state: state, active: true, handler: h, check: check}, true
}

func (ch *ConversationHandler) HandleUpdate(ctx context.Context, app *Application, update any, check any, c *CallbackContext) error {
	cc := check.(*conversationCheck)
	ch.cancelTimeout(cc.key)

	if !cc.handler.Block() || ch.NonBlocking {
		ch.handleInBackground(ctx, app, update, cc, c)
		return nil
	}

	err := cc.handler.HandleUpdate(ctx, app, update, cc.check, c)
	newState, hasState := stateOf(err)
	stop := errors.Is(err, ErrHandlerStop)
	if err != nil && !hasState && !stop {
		return err
	}

	if mapped, ok := ch.MapToParent[newState]; hasState && ok {
		ch.setState(ctx, app, cc.key, StateEnd)
		if stop {
			return StopWithState(mapped)
		}
		return NextState(mapped)
	}
	if cc.state != StateWaiting && hasState {
		ch.setState(ctx, app, cc.key, newState)
	}
	ch.scheduleTimeout(app, cc.key, update)
	if stop {
		return ErrHandlerStop
	}
	return nil
}

// handleInBackground marks the conversation as waiting and resolves its
// state once the callback returns. Errors restore the previous state.
func (ch *ConversationHandler) handleInBackground(ctx context.Context, app *Application, update any, cc *conversationCheck, c *CallbackContext) {
	if cc.state == StateWaiting {
		app.CreateTask(ctx, func(ctx context.Context) error {
			return cc.handler.HandleUpdate(ctx, app, update, cc.check, c)
		}, update)
		return
	}
	ch.setWaiting(cc.key)
	app.CreateTask(ctx, func(ctx context.Context) error {
		err := cc.handler.HandleUpdate(ctx, app, update, cc.check, c)
		next, ok := stateOf(err)
		if !ok {
			next = cc.state
			if !cc.active {
				next = StateEnd
			}
		}
		ch.setState(ctx, app, cc.key, next)
		ch.scheduleTimeout(app, cc.key, update)
		return err
	}, update)
}

func (ch *ConversationHandler) setWaiting(key string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.conversations == nil {
		ch.conversations = make(map[string]string)
	}
	ch.conversations[key] = StateWaiting
}

// setState stores state for key, or removes the key for StateEnd, and
// writes the change through to the persistence.
func (ch *ConversationHandler) setState(ctx context.Context, app *Application, key, state string) {
	ch.mu.Lock()
	if ch.conversations == nil {
		ch.conversations = make(map[string]string)
	}
	old, had := ch.conversations[key]
	if state == StateEnd {
		delete(ch.conversations, key)
	} else {
		ch.conversations[key] = state
	}
	ch.mu.Unlock()

	if !ch.Persistent || app == nil || app.Persistence() == nil {
		return
	}
	if (state == StateEnd && !had) || (had && state == old) {
		return
	}
	stored := state
	if state == StateEnd {
		stored = ""
	}
	if err := app.Persistence().UpdateConversation(ctx, ch.Name, key, stored); err != nil {
		app.log.Error().Err(err).Str("conversation", ch.Name).Msg("Failed to persist conversation state")
	}
}

func (ch *ConversationHandler) cancelTimeout(key string) {
	ch.mu.Lock()
	job := ch.timeouts[key]
	delete(ch.timeouts, key)
	ch.mu.Unlock()
	if job != nil {
		job.ScheduleRemoval()
	}
}

func (ch *ConversationHandler) scheduleTimeout(app *Application, key string, update any) {
	if ch.Timeout <= 0 || app == nil || app.JobQueue() == nil {
		return
	}
	ch.mu.Lock()
	if _, active := ch.conversations[key]; !active {
		ch.mu.Unlock()
		return
	}
	// the job is registered before the lock is released so a short timeout
	// cannot fire for an unknown job
	job, err := app.JobQueue().RunOnce(func(ctx context.Context, c *CallbackContext) error {
		return ch.triggerTimeout(ctx, app, c.Job, key, update)
	}, ch.Timeout, JobName("conversation_timeout:"+ch.Name), JobData(key))
	if err != nil {
		ch.mu.Unlock()
		app.log.Error().Err(err).Str("conversation", ch.Name).Msg("Failed to schedule conversation timeout")
		return
	}
	if ch.timeouts == nil {
		ch.timeouts = make(map[string]*Job)
	}
	old := ch.timeouts[key]
	ch.timeouts[key] = job
	ch.mu.Unlock()
	if old != nil {
		old.ScheduleRemoval()
	}
}

// triggerTimeout runs every matching StateTimeout handler with the last
// update of the conversation and ends it.
func (ch *ConversationHandler) triggerTimeout(ctx context.Context, app *Application, job *Job, key string, update any) error {
	ch.mu.Lock()
	if ch.timeouts[key] != job {
		ch.mu.Unlock()
		return nil
	}
	delete(ch.timeouts, key)
	ch.mu.Unlock()

	var errs []error
	for _, h := range ch.States[StateTimeout] {
		check, ok := h.CheckUpdate(update)
		if !ok {
			continue
		}
		c := NewContextFromUpdate(update, app)
		c.Job = job
		err := h.HandleUpdate(ctx, app, update, check, c)
		switch {
		case errors.Is(err, ErrHandlerStop):
			app.log.Warn().Str("conversation", ch.Name).Msg("Stopping handlers is not supported in the timeout state")
		case err != nil && !isControlError(err):
			errs = append(errs, err)
		}
	}
	ch.setState(ctx, app, key, StateEnd)
	app.log.Debug().Str("conversation", ch.Name).Msg("Conversation timed out")
	return errors.Join(errs...)
}

// State returns the state of the conversation with the given key.
func (ch *ConversationHandler) State(key string) (string, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	state, ok := ch.conversations[key]
	return state, ok
}

// Conversations returns a copy of all active conversations by key.
func (ch *ConversationHandler) Conversations() map[string]string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return maps.Clone(ch.conversations)
}

// loadPersistence restores the states of this conversation and of
// persistent conversations nested in it.
func (ch *ConversationHandler) loadPersistence(ctx context.Context, app *Application) error {
	p := app.Persistence()
	if p == nil {
		return fmt.Errorf("ext: conversation %q is persistent but the application has no persistence", ch.Name)
	}
	states, err := p.GetConversations(ctx, ch.Name)
	if err != nil {
		return fmt.Errorf("failed to load conversation %q: %w", ch.Name, err)
	}
	ch.mu.Lock()
	ch.conversations = make(map[string]string, len(states))
	for key, state := range states {
		if state != "" && state != StateWaiting {
			ch.conversations[key] = state
		}
	}
	ch.mu.Unlock()

	for _, h := range ch.children() {
		if nested, ok := h.(*ConversationHandler); ok && nested.Persistent {
			if err := nested.loadPersistence(ctx, app); err != nil {
				return err
			}
		}
	}
	return nil
}

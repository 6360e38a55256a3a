// Package ext dispatches Telegram updates to handlers.
//
// An Application pulls updates from its queue, which an Updater fills by
// long polling or from a webhook, and hands each update to the registered
// handlers group by group. It also owns the user, chat and bot data stores,
// the job queue, the callback data cache and the persistence.
package ext

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/tgbot/internal/logger"
	"gitlab.com/yelinaung/tgbot/telegram"
)

const (
	tracerName             = "gitlab.com/yelinaung/tgbot/ext"
	defaultUpdateQueueSize = 100
	defaultUpdateInterval  = time.Minute
	shutdownTimeout        = 30 * time.Second
)

// ErrorHandlerFunc handles errors returned by handlers and jobs. The error
// is in c.Error; update is nil for errors raised by jobs.
type ErrorHandlerFunc func(ctx context.Context, update any, c *CallbackContext) error

// LifecycleHook runs at a stage of RunPolling and RunWebhook.
type LifecycleHook func(ctx context.Context, app *Application) error

type errorHandler struct {
	id    int
	fn    ErrorHandlerFunc
	block bool
}

// Application dispatches updates to handlers.
type Application struct {
	bot          *telegram.Bot
	log          zerolog.Logger
	updates      chan any
	queueSize    int
	processor    UpdateProcessor
	persistence  Persistence
	jobQueue     *JobQueue
	callbackData *CallbackDataCache
	metrics      *Metrics
	tracer       trace.Tracer
	updater      *Updater

	postInit     LifecycleHook
	postStop     LifecycleHook
	postShutdown LifecycleHook

	handlersMu sync.RWMutex
	handlers   map[int][]Handler

	errorsMu      sync.RWMutex
	errorHandlers []errorHandler
	nextErrorID   int

	userData *storeMap
	chatData *storeMap
	botData  *Store

	dirtyMu    sync.Mutex
	dirtyUsers map[int64]struct{}
	dirtyChats map[int64]struct{}

	tasks      sync.WaitGroup
	processing sync.WaitGroup

	stateMu     sync.Mutex
	initialized bool
	running     bool
	stopFetch   chan struct{}
	fetchDone   chan struct{}
	persistDone chan struct{}
	cancelRun   context.CancelFunc
}

// Option configures an Application.
type Option func(*Application) error

// WithConcurrentUpdates processes up to n updates at the same time. With
// n == 1, the default, updates are processed strictly in order.
func WithConcurrentUpdates(n int) Option {
	return func(app *Application) error {
		p, err := NewSimpleUpdateProcessor(n)
		if err != nil {
			return err
		}
		app.processor = p
		return nil
	}
}

// WithUpdateProcessor sets a custom update processor.
func WithUpdateProcessor(p UpdateProcessor) Option {
	return func(app *Application) error {
		app.processor = p
		return nil
	}
}

// WithPersistence stores data through p.
func WithPersistence(p Persistence) Option {
	return func(app *Application) error {
		app.persistence = p
		return nil
	}
}

// WithJobQueue attaches a job queue.
func WithJobQueue(jq *JobQueue) Option {
	return func(app *Application) error {
		app.jobQueue = jq
		return nil
	}
}

// WithArbitraryCallbackData lets inline buttons carry any value as callback
// data. Up to maxSize keyboards are remembered; 0 uses the default size.
func WithArbitraryCallbackData(maxSize int) Option {
	return func(app *Application) error {
		app.callbackData = NewCallbackDataCache(maxSize)
		return nil
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(app *Application) error {
		app.metrics = m
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(app *Application) error {
		app.log = l
		return nil
	}
}

// WithTracerProvider sets the provider of the tracer used for update spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(app *Application) error {
		app.tracer = tp.Tracer(tracerName)
		return nil
	}
}

// WithUpdateQueueSize sets the capacity of the update queue.
func WithUpdateQueueSize(n int) Option {
	return func(app *Application) error {
		if n < 1 {
			return fmt.Errorf("ext: update queue size must be positive, got %d", n)
		}
		app.queueSize = n
		return nil
	}
}

// WithPostInit runs hook after Initialize.
func WithPostInit(hook LifecycleHook) Option {
	return func(app *Application) error {
		app.postInit = hook
		return nil
	}
}

// WithPostStop runs hook after Stop.
func WithPostStop(hook LifecycleHook) Option {
	return func(app *Application) error {
		app.postStop = hook
		return nil
	}
}

// WithPostShutdown runs hook after Shutdown.
func WithPostShutdown(hook LifecycleHook) Option {
	return func(app *Application) error {
		app.postShutdown = hook
		return nil
	}
}

// NewApplication creates an application for bot.
func NewApplication(bot *telegram.Bot, opts ...Option) (*Application, error) {
	if bot == nil {
		return nil, errors.New("ext: bot is required")
	}
	processor, _ := NewSimpleUpdateProcessor(1)
	app := &Application{
		bot:        bot,
		log:        logger.Component("ext.application"),
		queueSize:  defaultUpdateQueueSize,
		processor:  processor,
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		handlers:   make(map[int][]Handler),
		userData:   newStoreMap(),
		chatData:   newStoreMap(),
		botData:    NewStore(nil),
		dirtyUsers: make(map[int64]struct{}),
		dirtyChats: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	app.updates = make(chan any, app.queueSize)
	app.updater = NewUpdater(bot, app.updates, WithUpdaterLogger(app.log), WithUpdaterMetrics(app.metrics))
	if app.jobQueue != nil {
		app.jobQueue.setApplication(app)
	}
	if app.callbackData != nil {
		app.callbackData.botID = bot.ID()
		bot.SetCallbackDataProcessor(app.callbackData)
	}
	return app, nil
}

// Bot returns the bot.
func (app *Application) Bot() *telegram.Bot { return app.bot }

// Updater returns the updater feeding the update queue.
func (app *Application) Updater() *Updater { return app.updater }

// JobQueue returns the job queue, or nil.
func (app *Application) JobQueue() *JobQueue { return app.jobQueue }

// CallbackDataCache returns the callback data cache, or nil when arbitrary
// callback data is disabled.
func (app *Application) CallbackDataCache() *CallbackDataCache { return app.callbackData }

// Persistence returns the persistence, or nil.
func (app *Application) Persistence() Persistence { return app.persistence }

// Metrics returns the metrics, or nil.
func (app *Application) Metrics() *Metrics { return app.metrics }

// Logger returns the logger.
func (app *Application) Logger() zerolog.Logger { return app.log }

// UpdateQueue returns the queue updates are read from. Custom values may be
// put on it for TypeHandler and the string handlers.
func (app *Application) UpdateQueue() chan<- any { return app.updates }

// Enqueue puts update on the update queue.
func (app *Application) Enqueue(ctx context.Context, update any) error {
	select {
	case app.updates <- update:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the application is started.
func (app *Application) Running() bool {
	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	return app.running
}

// AddHandler registers h in group. Groups run in ascending order.
func (app *Application) AddHandler(h Handler, group int) error {
	if v, ok := h.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	conv, isConv := h.(*ConversationHandler)
	if isConv && conv.Persistent && app.persistence == nil {
		return fmt.Errorf("ext: conversation %q is persistent but the application has no persistence", conv.Name)
	}
	if b, ok := h.(appBinder); ok {
		b.bindApplication(app)
	}

	app.handlersMu.Lock()
	app.handlers[group] = append(app.handlers[group], h)
	app.handlersMu.Unlock()

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	if isConv && conv.Persistent && initialized {
		app.log.Warn().Str("conversation", conv.Name).Msg("Persistent conversation added after initialization")
		return conv.loadPersistence(context.Background(), app)
	}
	return nil
}

// AddHandlers registers handlers for several groups.
func (app *Application) AddHandlers(handlers map[int][]Handler) error {
	for _, group := range slices.Sorted(maps.Keys(handlers)) {
		for _, h := range handlers[group] {
			if err := app.AddHandler(h, group); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveHandler unregisters h from group and reports whether it was found.
func (app *Application) RemoveHandler(h Handler, group int) bool {
	app.handlersMu.Lock()
	defer app.handlersMu.Unlock()
	hs := app.handlers[group]
	i := slices.Index(hs, h)
	if i < 0 {
		return false
	}
	hs = slices.Delete(hs, i, i+1)
	if len(hs) == 0 {
		delete(app.handlers, group)
	} else {
		app.handlers[group] = hs
	}
	return true
}

// Handlers returns the handlers of group.
func (app *Application) Handlers(group int) []Handler {
	app.handlersMu.RLock()
	defer app.handlersMu.RUnlock()
	return slices.Clone(app.handlers[group])
}

func (app *Application) handlerGroups() [][]Handler {
	app.handlersMu.RLock()
	defer app.handlersMu.RUnlock()
	groups := make([][]Handler, 0, len(app.handlers))
	for _, g := range slices.Sorted(maps.Keys(app.handlers)) {
		groups = append(groups, slices.Clone(app.handlers[g]))
	}
	return groups
}

// AddErrorHandler registers fn and returns an id for RemoveErrorHandler.
// Non-blocking error handlers run in their own goroutine.
func (app *Application) AddErrorHandler(fn ErrorHandlerFunc, block bool) int {
	app.errorsMu.Lock()
	defer app.errorsMu.Unlock()
	app.nextErrorID++
	app.errorHandlers = append(app.errorHandlers, errorHandler{id: app.nextErrorID, fn: fn, block: block})
	return app.nextErrorID
}

// RemoveErrorHandler unregisters the error handler with the given id.
func (app *Application) RemoveErrorHandler(id int) bool {
	app.errorsMu.Lock()
	defer app.errorsMu.Unlock()
	i := slices.IndexFunc(app.errorHandlers, func(e errorHandler) bool { return e.id == id })
	if i < 0 {
		return false
	}
	app.errorHandlers = slices.Delete(app.errorHandlers, i, i+1)
	return true
}

// ProcessError passes err to the error handlers and reports whether one of
// them stopped processing of the update. Without error handlers the error
// is logged.
func (app *Application) ProcessError(ctx context.Context, update any, err error, job *Job) bool {
	app.errorsMu.RLock()
	handlers := slices.Clone(app.errorHandlers)
	app.errorsMu.RUnlock()

	if len(handlers) == 0 {
		app.log.Error().Err(err).Str("update_type", updateTypeOf(update)).Msg("No error handlers are registered, logging error")
		return false
	}

	for _, eh := range handlers {
		c := NewContextFromError(update, err, app, job)
		if !eh.block {
			app.tasks.Add(1)
			go func() {
				defer app.tasks.Done()
				if herr := eh.fn(ctx, update, c); herr != nil && !isControlError(herr) {
					app.log.Error().Err(herr).Msg("Error handler failed")
				}
			}()
			continue
		}
		herr := eh.fn(ctx, update, c)
		if errors.Is(herr, ErrHandlerStop) {
			return true
		}
		if herr != nil && !isControlError(herr) {
			app.log.Error().Err(herr).Msg("Error handler failed")
		}
	}
	return false
}

// CreateTask runs fn in a goroutine the application waits for on Stop.
// Errors returned by fn are passed to the error handlers. The returned
// channel receives fn's result.
func (app *Application) CreateTask(ctx context.Context, fn func(ctx context.Context) error, update any) <-chan error {
	result := make(chan error, 1)
	app.tasks.Add(1)
	go func() {
		defer app.tasks.Done()
		defer close(result)
		err := fn(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrHandlerStop):
			app.log.Warn().Msg("Stopping further handlers is not supported from non-blocking handlers")
		case isControlError(err):
		default:
			app.metrics.handlerError()
			app.ProcessError(ctx, update, err, nil)
		}
		result <- err
	}()
	return result
}

// ProcessUpdate runs the handlers for update, group by group. In each group
// the first handler whose check passes handles the update.
func (app *Application) ProcessUpdate(ctx context.Context, update any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	updateType := updateTypeOf(update)
	ctx, span := app.tracer.Start(ctx, "ext.ProcessUpdate", trace.WithAttributes(
		attribute.String("tgbot.update.type", updateType),
	))
	defer span.End()
	defer app.metrics.begin(updateType)()

	if u, ok := asTelegram(update); ok {
		span.SetAttributes(attribute.Int64("tgbot.update.id", u.UpdateID))
		event := app.log.Debug().Int64("update_id", u.UpdateID).Str("update_type", updateType)
		if user := u.EffectiveUser(); user != nil {
			event = event.Str("user", logger.HashUserID(user.ID))
		}
		event.Msg("Processing update")
	}
	app.refreshData(ctx, update)

groups:
	for _, group := range app.handlerGroups() {
		for _, h := range group {
			check, ok := h.CheckUpdate(update)
			if !ok {
				continue
			}
			c := NewContextFromUpdate(update, app)
			if !h.Block() {
				app.CreateTask(ctx, func(ctx context.Context) error {
					return h.HandleUpdate(ctx, app, update, check, c)
				}, update)
				break
			}
			if err := h.HandleUpdate(ctx, app, update, check, c); err != nil && app.handleError(ctx, update, err) {
				break groups
			}
			break
		}
	}

	app.markTouched(update)
	return nil
}

// handleError reports whether processing of the update must stop.
func (app *Application) handleError(ctx context.Context, update any, err error) bool {
	if errors.Is(err, ErrHandlerStop) {
		app.log.Debug().Msg("Stopping further handlers due to ErrHandlerStop")
		return true
	}
	if isControlError(err) {
		return false
	}
	app.metrics.handlerError()
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, "handler failed")
	return app.ProcessError(ctx, update, err, nil)
}

func updateTypeOf(update any) string {
	switch u := update.(type) {
	case nil:
		return "none"
	case *telegram.Update:
		if t := u.Type(); t != "" {
			return t
		}
		return "unknown"
	case string:
		return "string"
	default:
		return fmt.Sprintf("%T", update)
	}
}

// UserData returns the data of the user with the given id.
func (app *Application) UserData(userID int64) *Store { return app.userData.get(userID) }

// ChatData returns the data of the chat with the given id.
func (app *Application) ChatData(chatID int64) *Store { return app.chatData.get(chatID) }

// BotData returns the data shared by all updates.
func (app *Application) BotData() *Store { return app.botData }

// UserIDs returns the ids of users with data.
func (app *Application) UserIDs() []int64 { return app.userData.ids() }

// ChatIDs returns the ids of chats with data.
func (app *Application) ChatIDs() []int64 { return app.chatData.ids() }

// DropUserData deletes the data of a user, including from the persistence.
func (app *Application) DropUserData(ctx context.Context, userID int64) error {
	app.userData.drop(userID)
	app.dirtyMu.Lock()
	delete(app.dirtyUsers, userID)
	app.dirtyMu.Unlock()
	if app.persistence != nil && app.persistence.Store().UserData {
		return app.persistence.DropUserData(ctx, userID)
	}
	return nil
}

// DropChatData deletes the data of a chat, including from the persistence.
func (app *Application) DropChatData(ctx context.Context, chatID int64) error {
	app.chatData.drop(chatID)
	app.dirtyMu.Lock()
	delete(app.dirtyChats, chatID)
	app.dirtyMu.Unlock()
	if app.persistence != nil && app.persistence.Store().ChatData {
		return app.persistence.DropChatData(ctx, chatID)
	}
	return nil
}

// MigrateChatData moves the data of a group to the supergroup it was
// upgraded to. The chat id of scheduled jobs is left as is; jobs that must
// follow the chat are rescheduled by the caller.
func (app *Application) MigrateChatData(ctx context.Context, oldChatID, newChatID int64) error {
	s, ok := app.chatData.drop(oldChatID)
	if !ok {
		return nil
	}
	app.chatData.set(newChatID, s)

	app.dirtyMu.Lock()
	delete(app.dirtyChats, oldChatID)
	app.dirtyChats[newChatID] = struct{}{}
	app.dirtyMu.Unlock()

	app.log.Info().
		Str("old_chat", logger.HashChatID(oldChatID)).
		Str("new_chat", logger.HashChatID(newChatID)).
		Msg("Migrated chat data")
	if app.persistence != nil && app.persistence.Store().ChatData {
		return app.persistence.DropChatData(ctx, oldChatID)
	}
	return nil
}

func (app *Application) refreshData(ctx context.Context, update any) {
	p := app.persistence
	u, ok := asTelegram(update)
	if p == nil || !ok {
		return
	}
	store := p.Store()
	if store.BotData {
		app.botData.Update(func(data map[string]any) {
			if err := p.RefreshBotData(ctx, data); err != nil {
				app.log.Error().Err(err).Msg("Failed to refresh bot data")
			}
		})
	}
	if user := u.EffectiveUser(); user != nil && store.UserData {
		app.UserData(user.ID).Update(func(data map[string]any) {
			if err := p.RefreshUserData(ctx, user.ID, data); err != nil {
				app.log.Error().Err(err).Str("user", logger.HashUserID(user.ID)).Msg("Failed to refresh user data")
			}
		})
	}
	if chat := u.EffectiveChat(); chat != nil && store.ChatData {
		app.ChatData(chat.ID).Update(func(data map[string]any) {
			if err := p.RefreshChatData(ctx, chat.ID, data); err != nil {
				app.log.Error().Err(err).Str("chat", logger.HashChatID(chat.ID)).Msg("Failed to refresh chat data")
			}
		})
	}
}

func (app *Application) markTouched(update any) {
	u, ok := asTelegram(update)
	if !ok {
		return
	}
	var userID, chatID int64
	if user := u.EffectiveUser(); user != nil {
		userID = user.ID
	}
	if chat := u.EffectiveChat(); chat != nil {
		chatID = chat.ID
	}
	app.markDirty(userID, chatID)
}

func (app *Application) markDirty(userID, chatID int64) {
	if app.persistence == nil {
		return
	}
	app.dirtyMu.Lock()
	defer app.dirtyMu.Unlock()
	if userID != 0 {
		app.dirtyUsers[userID] = struct{}{}
	}
	if chatID != 0 {
		app.dirtyChats[chatID] = struct{}{}
	}
}

// MarkDataForUpdatePersistence queues the data of the given chats and users
// for the next persistence update. The effective chat and user of an update
// and the chat and user of a job are queued without it; handlers that write
// to other chats' or users' data call it themselves.
func (app *Application) MarkDataForUpdatePersistence(chatIDs, userIDs []int64) {
	if app.persistence == nil {
		return
	}
	app.dirtyMu.Lock()
	defer app.dirtyMu.Unlock()
	for _, id := range chatIDs {
		app.dirtyChats[id] = struct{}{}
	}
	for _, id := range userIDs {
		app.dirtyUsers[id] = struct{}{}
	}
}

func (app *Application) takeDirty() (users, chats []int64) {
	app.dirtyMu.Lock()
	defer app.dirtyMu.Unlock()
	users = slices.Sorted(maps.Keys(app.dirtyUsers))
	chats = slices.Sorted(maps.Keys(app.dirtyChats))
	clear(app.dirtyUsers)
	clear(app.dirtyChats)
	return users, chats
}

// UpdatePersistence writes the data touched since the last call, the bot
// data and the callback data cache to the persistence.
func (app *Application) UpdatePersistence(ctx context.Context) error {
	p := app.persistence
	if p == nil {
		return nil
	}
	store := p.Store()
	var errs []error
	if store.CallbackData && app.callbackData != nil {
		errs = append(errs, p.UpdateCallbackData(ctx, app.callbackData.Snapshot()))
	}
	if store.BotData {
		errs = append(errs, p.UpdateBotData(ctx, app.botData.Snapshot()))
	}
	users, chats := app.takeDirty()
	if store.UserData {
		for _, id := range users {
			if s, ok := app.userData.lookup(id); ok {
				errs = append(errs, p.UpdateUserData(ctx, id, s.Snapshot()))
			}
		}
	}
	if store.ChatData {
		for _, id := range chats {
			if s, ok := app.chatData.lookup(id); ok {
				errs = append(errs, p.UpdateChatData(ctx, id, s.Snapshot()))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to update persistence: %w", err)
	}
	return nil
}

// Initialize fetches the bot user and loads persisted data. It is a no-op
// for an initialized application.
func (app *Application) Initialize(ctx context.Context) error {
	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	if app.initialized {
		return nil
	}
	if _, err := app.bot.GetMe(ctx); err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}
	if err := app.processor.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize update processor: %w", err)
	}
	if err := app.loadPersistence(ctx); err != nil {
		return err
	}
	app.initialized = true
	app.log.Info().Str("bot", app.bot.Username()).Msg("Application initialized")
	return nil
}

func (app *Application) loadPersistence(ctx context.Context) error {
	p := app.persistence
	if p == nil {
		return nil
	}
	store := p.Store()
	if store.UserData {
		data, err := p.GetUserData(ctx)
		if err != nil {
			return fmt.Errorf("failed to load user data: %w", err)
		}
		for id, d := range data {
			app.userData.set(id, NewStore(d))
		}
	}
	if store.ChatData {
		data, err := p.GetChatData(ctx)
		if err != nil {
			return fmt.Errorf("failed to load chat data: %w", err)
		}
		for id, d := range data {
			app.chatData.set(id, NewStore(d))
		}
	}
	if store.BotData {
		data, err := p.GetBotData(ctx)
		if err != nil {
			return fmt.Errorf("failed to load bot data: %w", err)
		}
		app.botData.replace(data)
	}
	if store.CallbackData && app.callbackData != nil {
		snap, err := p.GetCallbackData(ctx)
		if err != nil {
			return fmt.Errorf("failed to load callback data: %w", err)
		}
		app.callbackData.Load(snap)
	}
	for _, group := range app.handlerGroups() {
		for _, h := range group {
			if conv, ok := h.(*ConversationHandler); ok && conv.Persistent {
				if err := conv.loadPersistence(ctx, app); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Start begins fetching updates from the queue, starts the job queue and
// the periodic persistence updates.
func (app *Application) Start(ctx context.Context) error {
	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	if !app.initialized {
		return errors.New("ext: application must be initialized before it is started")
	}
	if app.running {
		return errors.New("ext: application is already running")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	app.cancelRun = cancel
	app.stopFetch = make(chan struct{})
	app.fetchDone = make(chan struct{})
	app.running = true

	if app.jobQueue != nil {
		app.jobQueue.Start(runCtx)
	}
	if app.persistence != nil {
		app.persistDone = make(chan struct{})
		go app.persistenceLoop(runCtx)
	}
	go app.fetchUpdates(runCtx)

	app.log.Info().Int("concurrent_updates", app.processor.MaxConcurrentUpdates()).Msg("Application started")
	return nil
}

func (app *Application) persistenceLoop(ctx context.Context) {
	defer close(app.persistDone)
	interval := app.persistence.UpdateInterval()
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.UpdatePersistence(ctx); err != nil {
				app.log.Error().Err(err).Msg("Periodic persistence update failed")
			}
		}
	}
}

func (app *Application) fetchUpdates(ctx context.Context) {
	defer close(app.fetchDone)
	for {
		select {
		case u := <-app.updates:
			app.dispatch(ctx, u)
		case <-app.stopFetch:
			// drain what is already queued
			for {
				select {
				case u := <-app.updates:
					app.dispatch(ctx, u)
				default:
					return
				}
			}
		}
	}
}

func (app *Application) dispatch(ctx context.Context, update any) {
	fn := func(ctx context.Context) error { return app.ProcessUpdate(ctx, update) }
	if app.processor.MaxConcurrentUpdates() > 1 {
		app.processing.Add(1)
		go func() {
			defer app.processing.Done()
			if err := app.processor.ProcessUpdate(ctx, update, fn); err != nil {
				app.log.Error().Err(err).Msg("Failed to process update")
			}
		}()
		return
	}
	if err := app.processor.ProcessUpdate(ctx, update, fn); err != nil {
		app.log.Error().Err(err).Msg("Failed to process update")
	}
}

// Stop processes the updates still queued, waits for running handlers,
// tasks and jobs, and writes the persistence. When ctx expires first, the
// job queue and the persistence loop are stopped anyway and the error is
// returned; Shutdown then waits for the remaining handlers.
func (app *Application) Stop(ctx context.Context) error {
	app.stateMu.Lock()
	if !app.running {
		app.stateMu.Unlock()
		return errors.New("ext: application is not running")
	}
	app.running = false
	app.stateMu.Unlock()

	defer app.cancelRun()
	close(app.stopFetch)
	if err := app.drain(ctx); err != nil {
		if app.jobQueue != nil {
			_ = app.jobQueue.Stop(ctx)
		}
		return err
	}
	if app.jobQueue != nil {
		if err := app.jobQueue.Stop(ctx); err != nil {
			return err
		}
	}
	app.cancelRun()
	if app.persistDone != nil {
		<-app.persistDone
	}
	if err := app.UpdatePersistence(ctx); err != nil {
		return err
	}
	app.log.Info().Msg("Application stopped")
	return nil
}

// drain waits for the fetch loop, the updates being processed and the
// tasks created by handlers.
func (app *Application) drain(ctx context.Context) error {
	if app.fetchDone != nil {
		select {
		case <-app.fetchDone:
		case <-ctx.Done():
			return fmt.Errorf("failed to stop fetching updates: %w", ctx.Err())
		}
	}
	if err := waitGroup(ctx, &app.processing); err != nil {
		return fmt.Errorf("failed to wait for updates: %w", err)
	}
	if err := waitGroup(ctx, &app.tasks); err != nil {
		return fmt.Errorf("failed to wait for tasks: %w", err)
	}
	return nil
}

// Shutdown releases the update processor and flushes the persistence. The
// application must be stopped first. Handlers left running by a Stop that
// timed out are waited for until ctx expires.
func (app *Application) Shutdown(ctx context.Context) error {
	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	if app.running {
		return errors.New("ext: application is still running")
	}
	if !app.initialized {
		return nil
	}
	if err := app.drain(ctx); err != nil {
		return fmt.Errorf("ext: handlers are still running: %w", err)
	}
	if err := app.processor.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down update processor: %w", err)
	}
	if app.persistence != nil {
		if err := app.UpdatePersistence(ctx); err != nil {
			return err
		}
		if err := app.persistence.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush persistence: %w", err)
		}
	}
	app.initialized = false
	return nil
}

// RunPolling runs the application with long polling until ctx is cancelled
// or polling fails permanently.
func (app *Application) RunPolling(ctx context.Context, opts PollingOptions) error {
	return app.run(ctx, func(ctx context.Context) error { return app.updater.StartPolling(ctx, opts) })
}

// RunWebhook runs the application with a webhook server until ctx is
// cancelled or the server fails.
func (app *Application) RunWebhook(ctx context.Context, opts WebhookOptions) error {
	return app.run(ctx, func(ctx context.Context) error { return app.updater.StartWebhook(ctx, opts) })
}

func (app *Application) run(ctx context.Context, startUpdater func(context.Context) error) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	stopCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	}
	if app.postInit != nil {
		if err := app.postInit(ctx, app); err != nil {
			sctx, cancel := stopCtx()
			defer cancel()
			return errors.Join(fmt.Errorf("post init: %w", err), app.Shutdown(sctx))
		}
	}
	if err := startUpdater(ctx); err != nil {
		sctx, cancel := stopCtx()
		defer cancel()
		return errors.Join(err, app.Shutdown(sctx))
	}
	if err := app.Start(ctx); err != nil {
		sctx, cancel := stopCtx()
		defer cancel()
		return errors.Join(err, app.updater.Stop(sctx), app.Shutdown(sctx))
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-app.updater.Done():
		runErr = app.updater.Err()
	}

	sctx, cancel := stopCtx()
	defer cancel()
	errs := []error{runErr}
	if app.updater.Running() {
		errs = append(errs, app.updater.Stop(sctx))
	}
	errs = append(errs, app.Stop(sctx))
	if app.postStop != nil {
		errs = append(errs, app.postStop(sctx, app))
	}
	errs = append(errs, app.Shutdown(sctx))
	if app.postShutdown != nil {
		errs = append(errs, app.postShutdown(sctx, app))
	}
	return errors.Join(errs...)
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

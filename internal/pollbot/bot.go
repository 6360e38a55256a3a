// Package pollbot provides a bot that sends polls and quizzes, reports the
// answers and closes polls once enough users voted.
package pollbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/ext/filters"
	"gitlab.com/yelinaung/tgbot/internal/config"
	"gitlab.com/yelinaung/tgbot/internal/logger"
	"gitlab.com/yelinaung/tgbot/telegram"
)

const (
	// gateGroup runs before the handlers of group 0.
	gateGroup = -1
	// maxErrorRunes caps the error text in error reports.
	maxErrorRunes = 1024
)

// Commands are published to Telegram clients on startup.
var Commands = []telegram.BotCommand{
	{Command: "start", Description: "What this bot can do"},
	{Command: "poll", Description: "Send a poll"},
	{Command: "quiz", Description: "Send a quiz"},
	{Command: "preview", Description: "Preview a poll you create"},
	{Command: "help", Description: "Show help"},
}

// Bot wires the poll handlers into an ext.Application.
type Bot struct {
	cfg          *config.Config
	log          zerolog.Logger
	pollLifetime time.Duration
	meter        metric.MeterProvider

	pollsSent metric.Int64Counter
	answers   metric.Int64Counter
}

// Option configures a Bot.
type Option func(*Bot)

// WithPollLifetime closes polls that are still open after d. Zero keeps them
// open until enough users voted.
func WithPollLifetime(d time.Duration) Option {
	return func(b *Bot) { b.pollLifetime = d }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *Bot) { b.meter = mp }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// New creates a new Bot.
func New(cfg *config.Config, opts ...Option) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("pollbot: nil config")
	}
	b := &Bot{cfg: cfg, log: logger.Component("pollbot")}
	for _, opt := range opts {
		opt(b)
	}
	if b.meter == nil {
		b.meter = otel.GetMeterProvider()
	}

	meter := b.meter.Meter("gitlab.com/yelinaung/tgbot/internal/pollbot")
	var err error
	b.pollsSent, err = meter.Int64Counter("pollbot.polls.sent",
		metric.WithDescription("Polls and quizzes sent by the bot"))
	if err != nil {
		return nil, fmt.Errorf("failed to create polls counter: %w", err)
	}
	b.answers, err = meter.Int64Counter("pollbot.poll.answers",
		metric.WithDescription("Poll answers received"))
	if err != nil {
		return nil, fmt.Errorf("failed to create answers counter: %w", err)
	}
	return b, nil
}

// PostInit publishes the command list. Pass it to ext.WithPostInit.
func (b *Bot) PostInit(ctx context.Context, app *ext.Application) error {
	if err := app.Bot().SetMyCommands(ctx, Commands, nil, ""); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	b.log.Info().Str("username", app.Bot().Username()).Msg("Bot initialized")
	return nil
}

// Register adds the whitelist gate, the poll handlers and the error handler
// to app.
func (b *Bot) Register(app *ext.Application) error {
	if err := app.AddHandler(ext.NewTypeHandler(b.gate), gateGroup); err != nil {
		return fmt.Errorf("failed to register whitelist gate: %w", err)
	}
	err := app.AddHandlers(map[int][]ext.Handler{
		0: {
			ext.NewCommandHandler(b.handleStart, "start"),
			ext.NewCommandHandler(b.handlePoll, "poll"),
			ext.NewCommandHandler(b.handleQuiz, "quiz"),
			ext.NewCommandHandler(b.handlePreview, "preview"),
			ext.NewCommandHandler(b.handleHelp, "help"),
			ext.NewMessageHandler(filters.Poll, b.receivePoll),
			&ext.PollAnswerHandler{Callback: b.receivePollAnswer},
			&ext.PollHandler{Callback: b.receiveQuizAnswer},
			ext.ChatMigrationHandler(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	app.AddErrorHandler(b.handleError, true)
	return nil
}

// gate logs every user action and stops handling of updates from users
// outside the whitelist. Updates without a user, such as poll state
// changes, pass.
func (b *Bot) gate(ctx context.Context, u *telegram.Update, c *ext.CallbackContext) error {
	user := u.EffectiveUser()
	if user == nil {
		return nil
	}
	b.logUserAction(u, user)

	if !b.cfg.Restricted() || b.cfg.IsUserWhitelisted(user.ID, user.Username) {
		return nil
	}

	b.log.Warn().
		Str("user", logger.HashUserID(user.ID)).
		Msg("Blocked non-whitelisted user")
	if u.Message != nil {
		_, err := c.Bot.SendMessage(ctx, &telegram.SendMessageRequest{
			ChatID: telegram.ChatIDFromInt(u.Message.Chat.ID),
			Text:   "⛔ Sorry, you are not authorized to use this bot.",
		})
		if err != nil {
			b.log.Error().Err(err).Msg("Failed to send unauthorized message")
		}
	}
	return ext.StopHandling()
}

// logUserAction logs the user's input with hashed identifiers.
func (b *Bot) logUserAction(u *telegram.Update, user *telegram.User) {
	event := b.log.Info().
		Str("user", logger.HashUserID(user.ID)).
		Str("update_type", u.Type())
	if chat := u.EffectiveChat(); chat != nil {
		event = event.Str("chat", logger.HashChatID(chat.ID))
	}

	switch {
	case u.Message != nil && u.Message.Text != "":
		event = event.Str("text", logger.SanitizeText(u.Message.Text))
	case u.Message != nil && u.Message.Poll != nil:
		event = event.Str("options", logger.SanitizeOptions(optionTexts(u.Message.Poll)))
	case u.PollAnswer != nil:
		event = event.Ints("option_ids", u.PollAnswer.OptionIDs)
	}
	event.Msg("User input")
}

// handleError logs the error and reports it to the developer chat if one
// is configured.
func (b *Bot) handleError(ctx context.Context, update any, c *ext.CallbackContext) error {
	event := b.log.Error().Err(c.Error)
	if c.Job != nil {
		event = event.Str("job", c.Job.Name)
	}
	event.Msg("Exception while handling an update")

	if b.cfg.DeveloperChatID == 0 || c.Bot == nil {
		return nil
	}
	_, err := c.Bot.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID:    telegram.ChatIDFromInt(b.cfg.DeveloperChatID),
		Text:      errorReport(update, c.Error),
		ParseMode: telegram.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to report error to developer chat: %w", err)
	}
	return nil
}

// errorReport formats err and the update it was raised for as HTML that
// fits in one message.
func errorReport(update any, err error) string {
	var updateStr string
	switch u := update.(type) {
	case nil:
		updateStr = "none"
	case *telegram.Update:
		data, jerr := json.MarshalIndent(u, "", "  ")
		if jerr != nil {
			updateStr = fmt.Sprintf("%+v", u)
		} else {
			updateStr = string(data)
		}
	default:
		updateStr = fmt.Sprintf("%v", u)
	}

	const header = "An exception was raised while handling an update\n"
	errStr := "<pre>" + truncateRunes(html.EscapeString(fmt.Sprint(err)), maxErrorRunes) + "</pre>"
	budget := telegram.MaxMessageLength - len([]rune(header)) - len([]rune(errStr)) - len("<pre>update = </pre>\n\n")
	updateStr = truncateRunes(html.EscapeString(updateStr), budget)
	return header + "<pre>update = " + updateStr + "</pre>\n\n" + errStr
}

// truncateRunes cuts s to at most n runes without splitting an HTML
// entity.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	cut := string(r[:n-1])
	if amp := strings.LastIndexByte(cut, '&'); amp >= 0 && !strings.Contains(cut[amp:], ";") {
		cut = cut[:amp]
	}
	return cut + "…"
}

package ext

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gitlab.com/yelinaung/tgbot/ext/filters"
	"gitlab.com/yelinaung/tgbot/telegram"
)

var commandRegex = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// ArgsValidator restricts the number of arguments a command accepts.
type ArgsValidator func(args []string) bool

// NoArgs accepts commands without arguments.
func NoArgs(args []string) bool { return len(args) == 0 }

// RequiredArgs accepts commands with at least one argument.
func RequiredArgs(args []string) bool { return len(args) > 0 }

// ExactArgs accepts commands with exactly n arguments.
func ExactArgs(n int) ArgsValidator {
	return func(args []string) bool { return len(args) == n }
}

type commandCheck struct {
	args []string
	data filters.Data
}

// CommandHandler handles bot commands such as "/start" or "/start@my_bot".
// Commands compare case-insensitively; a command addressed to another bot
// is ignored. Filter defaults to new and edited messages.
type CommandHandler struct {
	Commands    []string
	Callback    HandlerFunc
	Filter      filters.Filter
	Args        ArgsValidator
	NonBlocking bool

	app *Application
}

// NewCommandHandler returns a blocking CommandHandler for the given commands.
func NewCommandHandler(callback HandlerFunc, commands ...string) *CommandHandler {
	return &CommandHandler{Commands: commands, Callback: callback}
}

func (h *CommandHandler) bindApplication(app *Application) { h.app = app }

func (h *CommandHandler) Validate() error {
	if len(h.Commands) == 0 {
		return fmt.Errorf("ext: CommandHandler needs at least one command")
	}
	for _, cmd := range h.Commands {
		if !commandRegex.MatchString(strings.ToLower(cmd)) {
			return fmt.Errorf("ext: command %q is not a valid bot command", cmd)
		}
	}
	if h.Callback == nil {
		return errNoCallback
	}
	return nil
}

func (h *CommandHandler) filter() filters.Filter {
	if h.Filter == nil {
		return filters.UpdateTypeMessages
	}
	return h.Filter
}

func (h *CommandHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok {
		return nil, false
	}
	m := u.EffectiveMessage()
	if m == nil {
		return nil, false
	}
	command, botName, args, ok := m.Command()
	if !ok || !containsFold(h.Commands, command) {
		return nil, false
	}
	if botName != "" && h.app != nil && !strings.EqualFold(botName, h.app.Bot().Username()) {
		return nil, false
	}
	if h.Args != nil && !h.Args(args) {
		return nil, false
	}
	matched, data := h.filter().Check(u)
	if !matched {
		return nil, false
	}
	return commandCheck{args: args, data: data}, true
}

func (h *CommandHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if cc, ok := check.(commandCheck); ok {
		c.Args = cc.args
		c.addData(cc.data)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *CommandHandler) Block() bool { return !h.NonBlocking }

// PrefixHandler handles messages whose first word is one of the prefixes
// followed by one of the commands, e.g. "!help" or "#help". The comparison
// ignores case.
type PrefixHandler struct {
	Prefixes    []string
	Commands    []string
	Callback    HandlerFunc
	Filter      filters.Filter
	NonBlocking bool
}

func (h *PrefixHandler) Validate() error {
	if len(h.Prefixes) == 0 || len(h.Commands) == 0 {
		return fmt.Errorf("ext: PrefixHandler needs prefixes and commands")
	}
	if h.Callback == nil {
		return errNoCallback
	}
	return nil
}

func (h *PrefixHandler) matches(word string) bool {
	for _, p := range h.Prefixes {
		rest, ok := cutPrefixFold(word, p)
		if ok && containsFold(h.Commands, rest) {
			return true
		}
	}
	return false
}

func (h *PrefixHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok {
		return nil, false
	}
	m := u.EffectiveMessage()
	if m == nil || m.Text == "" {
		return nil, false
	}
	words := strings.Fields(m.Text)
	if len(words) == 0 || !h.matches(words[0]) {
		return nil, false
	}
	f := h.Filter
	if f == nil {
		f = filters.UpdateTypeMessages
	}
	matched, data := f.Check(u)
	if !matched {
		return nil, false
	}
	return commandCheck{args: words[1:], data: data}, true
}

func (h *PrefixHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if cc, ok := check.(commandCheck); ok {
		c.Args = cc.args
		c.addData(cc.data)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *PrefixHandler) Block() bool { return !h.NonBlocking }

// MessageHandler handles message-like updates accepted by Filter, which
// defaults to filters.All.
type MessageHandler struct {
	Filter      filters.Filter
	Callback    HandlerFunc
	NonBlocking bool
}

// NewMessageHandler returns a blocking MessageHandler.
func NewMessageHandler(f filters.Filter, callback HandlerFunc) *MessageHandler {
	return &MessageHandler{Filter: f, Callback: callback}
}

func (h *MessageHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok {
		return nil, false
	}
	f := h.Filter
	if f == nil {
		f = filters.All
	}
	matched, data := f.Check(u)
	if !matched {
		return nil, false
	}
	return data, true
}

func (h *MessageHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if data, ok := check.(filters.Data); ok {
		c.addData(data)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *MessageHandler) Block() bool { return !h.NonBlocking }

// ChatMigrationHandler moves chat data to the new chat id when a group is
// upgraded to a supergroup. Add it to a group of its own to opt in.
func ChatMigrationHandler() *MessageHandler {
	return &MessageHandler{
		Filter: filters.StatusMigrate,
		Callback: func(ctx context.Context, u *telegram.Update, c *CallbackContext) error {
			m := u.EffectiveMessage()
			switch {
			case m.MigrateToChatID != 0:
				return c.Application.MigrateChatData(ctx, m.Chat.ID, m.MigrateToChatID)
			case m.MigrateFromChatID != 0:
				return c.Application.MigrateChatData(ctx, m.MigrateFromChatID, m.Chat.ID)
			}
			return nil
		},
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

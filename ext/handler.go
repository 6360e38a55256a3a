package ext

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// Handler decides whether it wants an update and handles it.
//
// CheckUpdate is called for every update of the handler's group. The value
// it returns is passed to HandleUpdate unchanged. update is a
// *telegram.Update for Telegram traffic, or any custom value put on the
// application's update queue.
type Handler interface {
	CheckUpdate(update any) (check any, ok bool)
	HandleUpdate(ctx context.Context, app *Application, update any, check any, c *CallbackContext) error
	// Block reports whether the application waits for HandleUpdate before
	// looking at the next handler group.
	Block() bool
}

// HandlerFunc is the callback of handlers that only see Telegram updates.
type HandlerFunc func(ctx context.Context, update *telegram.Update, c *CallbackContext) error

// UpdateFunc is the callback of handlers accepting any update value.
type UpdateFunc func(ctx context.Context, update any, c *CallbackContext) error

// validator is implemented by handlers whose configuration can be invalid.
type validator interface {
	Validate() error
}

// appBinder is implemented by handlers that need the application they were
// added to, e.g. to compare against the bot username.
type appBinder interface {
	bindApplication(app *Application)
}

var errNoCallback = errors.New("ext: handler has no callback")

func asTelegram(update any) (*telegram.Update, bool) {
	u, ok := update.(*telegram.Update)
	return u, ok && u != nil
}

// matchStart returns the submatches of re when the leftmost match starts at
// the beginning of s.
func matchStart(re *regexp.Regexp, s string) ([]string, bool) {
	idx := re.FindStringSubmatchIndex(s)
	if idx == nil || idx[0] != 0 {
		return nil, false
	}
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = s[idx[2*i]:idx[2*i+1]]
		}
	}
	return out, true
}

// parseChatOrUsername splits ids and usernames. A leading "@" is stripped
// and all-digit values (optionally negative) become ids.
func parseChatOrUsername(values []string) (ids []int64, usernames []string) {
	for _, v := range values {
		v = strings.TrimPrefix(strings.TrimSpace(v), "@")
		if v == "" {
			continue
		}
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		usernames = append(usernames, strings.ToLower(v))
	}
	return ids, usernames
}

// idFilter matches a chat or user against configured ids and usernames.
// An empty filter matches everything.
type idFilter struct {
	ids       map[int64]struct{}
	usernames map[string]struct{}
}

func newIDFilter(ids []int64, names []string) idFilter {
	f := idFilter{ids: make(map[int64]struct{}), usernames: make(map[string]struct{})}
	extraIDs, usernames := parseChatOrUsername(names)
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	for _, id := range extraIDs {
		f.ids[id] = struct{}{}
	}
	for _, u := range usernames {
		f.usernames[u] = struct{}{}
	}
	return f
}

func (f idFilter) empty() bool { return len(f.ids) == 0 && len(f.usernames) == 0 }

func (f idFilter) match(id int64, username string) bool {
	if _, ok := f.ids[id]; ok {
		return true
	}
	if username == "" {
		return false
	}
	_, ok := f.usernames[strings.ToLower(username)]
	return ok
}

// idFilters holds the chat and user restrictions of a handler, parsed on
// first use. Later changes to the handler's fields are not seen.
type idFilters struct {
	once  sync.Once
	chats idFilter
	users idFilter
}

func (f *idFilters) get(chatIDs []int64, chats []string, userIDs []int64, users []string) (idFilter, idFilter) {
	f.once.Do(func() {
		f.chats = newIDFilter(chatIDs, chats)
		f.users = newIDFilter(userIDs, users)
	})
	return f.chats, f.users
}

// TypeHandler handles updates of a Go type, e.g. custom values put on the
// update queue. Unless Strict is set, values assignable to Type also match.
type TypeHandler struct {
	Type        reflect.Type
	Strict      bool
	Callback    UpdateFunc
	NonBlocking bool
}

// NewTypeHandler returns a TypeHandler for values of type T.
func NewTypeHandler[T any](callback func(ctx context.Context, update T, c *CallbackContext) error) *TypeHandler {
	return &TypeHandler{
		Type: reflect.TypeFor[T](),
		Callback: func(ctx context.Context, update any, c *CallbackContext) error {
			return callback(ctx, update.(T), c)
		},
	}
}

func (h *TypeHandler) Validate() error {
	if h.Type == nil {
		return errors.New("ext: TypeHandler needs a type")
	}
	if h.Callback == nil {
		return errNoCallback
	}
	return nil
}

func (h *TypeHandler) CheckUpdate(update any) (any, bool) {
	if update == nil || h.Type == nil {
		return nil, false
	}
	t := reflect.TypeOf(update)
	if h.Strict {
		return nil, t == h.Type
	}
	return nil, t.AssignableTo(h.Type)
}

func (h *TypeHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update, c)
}

func (h *TypeHandler) Block() bool { return !h.NonBlocking }

// StringCommandHandler handles string updates of the form "/command args",
// e.g. commands typed on a console and put on the update queue.
type StringCommandHandler struct {
	Command     string
	Callback    UpdateFunc
	NonBlocking bool
}

func (h *StringCommandHandler) CheckUpdate(update any) (any, bool) {
	s, ok := update.(string)
	if !ok || !strings.HasPrefix(s, "/") {
		return nil, false
	}
	fields := strings.Fields(s[1:])
	if len(fields) == 0 || fields[0] != h.Command {
		return nil, false
	}
	return fields[1:], true
}

func (h *StringCommandHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	c.Args, _ = check.([]string)
	return h.Callback(ctx, update, c)
}

func (h *StringCommandHandler) Block() bool { return !h.NonBlocking }

// StringRegexHandler handles string updates matching Pattern at their start.
type StringRegexHandler struct {
	Pattern     *regexp.Regexp
	Callback    UpdateFunc
	NonBlocking bool
}

func (h *StringRegexHandler) CheckUpdate(update any) (any, bool) {
	s, ok := update.(string)
	if !ok {
		return nil, false
	}
	m, ok := matchStart(h.Pattern, s)
	if !ok {
		return nil, false
	}
	return m, true
}

func (h *StringRegexHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if m, ok := check.([]string); ok {
		c.Matches = append(c.Matches, m)
	}
	return h.Callback(ctx, update, c)
}

func (h *StringRegexHandler) Block() bool { return !h.NonBlocking }

func (h *StringRegexHandler) Validate() error {
	if h.Pattern == nil {
		return fmt.Errorf("ext: StringRegexHandler needs a pattern")
	}
	return nil
}

package filters

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// IDSet is a filter matching a user or chat taken from the message against
// a mutable set of ids and usernames. It is safe to modify while the
// application is running.
type IDSet struct {
	name       string
	extract    func(m *telegram.Message) []target
	allowEmpty bool

	mu        sync.RWMutex
	ids       map[int64]struct{}
	usernames map[string]struct{}
}

type target struct {
	id       int64
	username string
}

func newIDSet(name string, allowEmpty bool, extract func(m *telegram.Message) []target) *IDSet {
	return &IDSet{
		name:       name,
		extract:    extract,
		allowEmpty: allowEmpty,
		ids:        make(map[int64]struct{}),
		usernames:  make(map[string]struct{}),
	}
}

// AddIDs adds ids to the set.
func (s *IDSet) AddIDs(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// RemoveIDs removes ids from the set.
func (s *IDSet) RemoveIDs(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// AddUsernames adds usernames to the set. A leading "@" is ignored and
// usernames compare case-insensitively.
func (s *IDSet) AddUsernames(usernames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range usernames {
		s.usernames[normalizeUsername(u)] = struct{}{}
	}
}

// RemoveUsernames removes usernames from the set.
func (s *IDSet) RemoveUsernames(usernames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range usernames {
		delete(s.usernames, normalizeUsername(u))
	}
}

// IDs returns the ids in the set, sorted.
func (s *IDSet) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.ids))
}

// Usernames returns the usernames in the set, sorted.
func (s *IDSet) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.usernames))
}

// Check implements Filter. An empty set matches only if the filter was
// created with allowEmpty and the message has a matching subject at all.
func (s *IDSet) Check(u *telegram.Update) (bool, Data) {
	m := message(u)
	if m == nil {
		return false, nil
	}
	targets := s.extract(m)
	if len(targets) == 0 {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ids) == 0 && len(s.usernames) == 0 {
		return s.allowEmpty, nil
	}
	for _, t := range targets {
		if _, ok := s.ids[t.id]; ok && t.id != 0 {
			return true, nil
		}
		if t.username == "" {
			continue
		}
		if _, ok := s.usernames[normalizeUsername(t.username)]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Name implements Filter.
func (s *IDSet) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]string, 0, len(s.ids)+len(s.usernames))
	for _, id := range slices.Sorted(maps.Keys(s.ids)) {
		parts = append(parts, fmt.Sprint(id))
	}
	parts = append(parts, slices.Sorted(maps.Keys(s.usernames))...)
	return s.name + "(" + strings.Join(parts, ", ") + ")"
}

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimPrefix(u, "@"))
}

func userTarget(u *telegram.User) []target {
	if u == nil {
		return nil
	}
	return []target{{id: u.ID, username: u.Username}}
}

func chatTarget(c *telegram.Chat) []target {
	if c == nil {
		return nil
	}
	return []target{{id: c.ID, username: c.Username}}
}

// User matches messages sent by one of the given user ids.
func User(allowEmpty bool, ids ...int64) *IDSet {
	s := newIDSet("filters.User", allowEmpty, func(m *telegram.Message) []target { return userTarget(m.From) })
	s.AddIDs(ids...)
	return s
}

// Chat matches messages in one of the given chats.
func Chat(allowEmpty bool, ids ...int64) *IDSet {
	s := newIDSet("filters.Chat", allowEmpty, func(m *telegram.Message) []target { return chatTarget(&m.Chat) })
	s.AddIDs(ids...)
	return s
}

// ViaBot matches messages sent via one of the given inline bots.
func ViaBot(allowEmpty bool, ids ...int64) *IDSet {
	s := newIDSet("filters.ViaBot", allowEmpty, func(m *telegram.Message) []target { return userTarget(m.ViaBot) })
	s.AddIDs(ids...)
	return s
}

// SenderChat matches messages sent on behalf of one of the given chats.
func SenderChat(allowEmpty bool, ids ...int64) *IDSet {
	s := newIDSet("filters.SenderChat", allowEmpty, func(m *telegram.Message) []target { return chatTarget(m.SenderChat) })
	s.AddIDs(ids...)
	return s
}

// ForwardedFrom matches messages forwarded from one of the given users or chats.
func ForwardedFrom(allowEmpty bool, ids ...int64) *IDSet {
	s := newIDSet("filters.ForwardedFrom", allowEmpty, func(m *telegram.Message) []target {
		o := m.ForwardOrigin
		if o == nil {
			return nil
		}
		switch o.Type {
		case telegram.OriginUser:
			return userTarget(o.SenderUser)
		case telegram.OriginChat:
			return chatTarget(o.SenderChat)
		case telegram.OriginChannel:
			return chatTarget(o.Chat)
		}
		return nil
	})
	s.AddIDs(ids...)
	return s
}

// Mention matches messages mentioning one of the given users, either by a
// mention entity carrying the username or a text_mention carrying the user.
func Mention(allowEmpty bool, ids ...int64) *IDSet {
	s := newIDSet("filters.Mention", allowEmpty, func(m *telegram.Message) []target {
		var out []target
		for _, e := range m.Entities {
			switch e.Type {
			case telegram.EntityMention:
				out = append(out, target{username: m.ParseEntity(e)})
			case telegram.EntityTextMention:
				out = append(out, userTarget(e.User)...)
			}
		}
		return out
	})
	s.AddIDs(ids...)
	return s
}

// Sender chat kinds.
var (
	SenderChatChannel = NewMessageFilter("filters.SenderChat.Channel", func(m *telegram.Message) bool {
		return m.SenderChat != nil && m.SenderChat.Type == telegram.ChatTypeChannel
	})
	SenderChatSupergroup = NewMessageFilter("filters.SenderChat.Supergroup", func(m *telegram.Message) bool {
		return m.SenderChat != nil && m.SenderChat.Type == telegram.ChatTypeSupergroup
	})
)

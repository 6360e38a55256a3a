// Package persistence provides ext.Persistence implementations: in-memory
// JSON (Dict), JSON files (File), PostgreSQL, SQLite and Redis.
//
// All of them store user, chat and bot data as JSON objects, so values
// read back after a restart are whatever encoding/json decodes: numbers
// become float64, structs become map[string]any.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/internal/logger"
)

// DefaultUpdateInterval is how often the application writes data by default.
const DefaultUpdateInterval = time.Minute

// Option configures any persistence of this package.
type Option func(*base)

// WithStore selects which kinds of data are kept. All kinds are kept by default.
func WithStore(store ext.StoreData) Option {
	return func(b *base) { b.store = store }
}

// WithUpdateInterval sets how often the application writes data.
func WithUpdateInterval(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithLogger sets the logger. The global logger is used by default.
func WithLogger(l zerolog.Logger) Option {
	return func(b *base) { b.log = l }
}

// base holds the configuration shared by every persistence. Refresh methods
// are no-ops: data is only read once at startup.
type base struct {
	store    ext.StoreData
	interval time.Duration
	log      zerolog.Logger
}

func newBase(component string, opts []Option) base {
	b := base{
		store:    ext.StoreData{UserData: true, ChatData: true, BotData: true, CallbackData: true},
		interval: DefaultUpdateInterval,
		log:      logger.Log,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With().Str("component", component).Logger()
	return b
}

func (b *base) Store() ext.StoreData { return b.store }

func (b *base) UpdateInterval() time.Duration { return b.interval }

func (b *base) RefreshUserData(context.Context, int64, map[string]any) error { return nil }

func (b *base) RefreshChatData(context.Context, int64, map[string]any) error { return nil }

func (b *base) RefreshBotData(context.Context, map[string]any) error { return nil }

// cloneJSON returns a deep copy of v made by a JSON round trip, so that
// stored data never aliases the application's maps.
func cloneJSON[T any](v T) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("failed to encode data: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode data: %w", err)
	}
	return out, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	data := make(map[string]any)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return data, nil
}

func decodeSnapshot(raw []byte) (*ext.CallbackDataSnapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var snap ext.CallbackDataSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode callback data: %w", err)
	}
	return &snap, nil
}

// memory is the in-memory state shared by Dict and File.
type memory struct {
	UserData      map[int64]map[string]any     `json:"user_data"`
	ChatData      map[int64]map[string]any     `json:"chat_data"`
	BotData       map[string]any               `json:"bot_data"`
	CallbackData  *ext.CallbackDataSnapshot    `json:"callback_data,omitempty"`
	Conversations map[string]map[string]string `json:"conversations"`
}

func newMemory() *memory {
	return &memory{
		UserData:      make(map[int64]map[string]any),
		ChatData:      make(map[int64]map[string]any),
		BotData:       make(map[string]any),
		Conversations: make(map[string]map[string]string),
	}
}

// normalize replaces nil maps left by decoding partial JSON.
func (m *memory) normalize() {
	if m.UserData == nil {
		m.UserData = make(map[int64]map[string]any)
	}
	if m.ChatData == nil {
		m.ChatData = make(map[int64]map[string]any)
	}
	if m.BotData == nil {
		m.BotData = make(map[string]any)
	}
	if m.Conversations == nil {
		m.Conversations = make(map[string]map[string]string)
	}
}

func (m *memory) conversations(name string) map[string]string {
	return maps.Clone(m.Conversations[name])
}

// setConversation stores state under name and key and reports whether
// anything changed. An empty state deletes the key.
func (m *memory) setConversation(name, key, state string) bool {
	states := m.Conversations[name]
	if state == "" {
		if _, ok := states[key]; !ok {
			return false
		}
		delete(states, key)
		return true
	}
	if states == nil {
		states = make(map[string]string)
		m.Conversations[name] = states
	}
	if states[key] == state {
		return false
	}
	states[key] = state
	return true
}

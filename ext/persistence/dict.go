package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gitlab.com/yelinaung/tgbot/ext"
)

var _ ext.Persistence = (*Dict)(nil)

// DictJSON is the initial content of a Dict, one JSON document per kind.
// Empty strings start empty.
type DictJSON struct {
	UserData      string
	ChatData      string
	BotData       string
	CallbackData  string
	Conversations string
}

// Dict keeps all data in memory and exposes it as JSON strings. It is
// useful for tests and for bots that save their data elsewhere.
type Dict struct {
	base

	mu  sync.Mutex
	mem *memory
}

// NewDict returns an empty Dict.
func NewDict(opts ...Option) *Dict {
	return &Dict{base: newBase("persistence.dict", opts), mem: newMemory()}
}

// NewDictFromJSON returns a Dict preloaded from JSON.
func NewDictFromJSON(data DictJSON, opts ...Option) (*Dict, error) {
	d := NewDict(opts...)
	fields := []struct {
		name string
		raw  string
		dst  any
	}{
		{"user data", data.UserData, &d.mem.UserData},
		{"chat data", data.ChatData, &d.mem.ChatData},
		{"bot data", data.BotData, &d.mem.BotData},
		{"callback data", data.CallbackData, &d.mem.CallbackData},
		{"conversations", data.Conversations, &d.mem.Conversations},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("invalid %s JSON: %w", f.name, err)
		}
	}
	d.mem.normalize()
	return d, nil
}

func (d *Dict) encode(field func(m *memory) any) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, err := json.Marshal(field(d.mem))
	if err != nil {
		d.log.Error().Err(err).Msg("Failed to encode data")
		return ""
	}
	return string(raw)
}

// UserDataJSON returns the user data as a JSON object keyed by user id.
func (d *Dict) UserDataJSON() string { return d.encode(func(m *memory) any { return m.UserData }) }

// ChatDataJSON returns the chat data as a JSON object keyed by chat id.
func (d *Dict) ChatDataJSON() string { return d.encode(func(m *memory) any { return m.ChatData }) }

// BotDataJSON returns the bot data as a JSON object.
func (d *Dict) BotDataJSON() string { return d.encode(func(m *memory) any { return m.BotData }) }

// CallbackDataJSON returns the callback data cache, or "null" if none was stored.
func (d *Dict) CallbackDataJSON() string { return d.encode(func(m *memory) any { return m.CallbackData }) }

// ConversationsJSON returns the conversation states keyed by conversation name.
func (d *Dict) ConversationsJSON() string { return d.encode(func(m *memory) any { return m.Conversations }) }

func (d *Dict) GetUserData(context.Context) (map[int64]map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneJSON(d.mem.UserData)
}

func (d *Dict) GetChatData(context.Context) (map[int64]map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneJSON(d.mem.ChatData)
}

func (d *Dict) GetBotData(context.Context) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneJSON(d.mem.BotData)
}

func (d *Dict) GetCallbackData(context.Context) (*ext.CallbackDataSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mem.CallbackData == nil {
		return nil, nil
	}
	return cloneJSON(d.mem.CallbackData)
}

func (d *Dict) GetConversations(_ context.Context, name string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.conversations(name), nil
}

func (d *Dict) UpdateUserData(_ context.Context, userID int64, data map[string]any) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem.UserData[userID] = clone
	return nil
}

func (d *Dict) UpdateChatData(_ context.Context, chatID int64, data map[string]any) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem.ChatData[chatID] = clone
	return nil
}

func (d *Dict) UpdateBotData(_ context.Context, data map[string]any) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem.BotData = clone
	return nil
}

func (d *Dict) UpdateCallbackData(_ context.Context, data *ext.CallbackDataSnapshot) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem.CallbackData = clone
	return nil
}

func (d *Dict) UpdateConversation(_ context.Context, name, key, state string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem.setConversation(name, key, state)
	return nil
}

func (d *Dict) DropUserData(_ context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mem.UserData, userID)
	return nil
}

func (d *Dict) DropChatData(_ context.Context, chatID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mem.ChatData, chatID)
	return nil
}

// Flush does nothing; a Dict has nowhere to write to.
func (d *Dict) Flush(context.Context) error { return nil }

package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gitlab.com/yelinaung/tgbot/ext"
)

var _ ext.Persistence = (*File)(nil)

// FileConfig configures a File persistence.
type FileConfig struct {
	// Path is the JSON file. With PerKind set it is a prefix and each kind
	// of data goes to Path+"_user_data.json", Path+"_chat_data.json" and so on.
	Path    string
	PerKind bool
	// OnFlush defers all writes to Flush, i.e. to application shutdown.
	OnFlush bool
}

type fileKind string

const (
	kindUserData      fileKind = "user_data"
	kindChatData      fileKind = "chat_data"
	kindBotData       fileKind = "bot_data"
	kindCallbackData  fileKind = "callback_data"
	kindConversations fileKind = "conversations"
)

var allKinds = []fileKind{kindUserData, kindChatData, kindBotData, kindCallbackData, kindConversations}

// File keeps data in memory and writes it to JSON files. Files are read on
// first access and rewritten atomically.
type File struct {
	base
	cfg FileConfig

	mu     sync.Mutex
	mem    *memory
	loaded bool
	dirty  map[fileKind]bool
}

// NewFile returns a File persistence. Nothing is read until the
// application asks for data.
func NewFile(cfg FileConfig, opts ...Option) (*File, error) {
	if cfg.Path == "" {
		return nil, errors.New("persistence: file path is required")
	}
	return &File{
		base:  newBase("persistence.file", opts),
		cfg:   cfg,
		mem:   newMemory(),
		dirty: make(map[fileKind]bool),
	}, nil
}

func (f *File) kindPath(kind fileKind) string {
	return f.cfg.Path + "_" + string(kind) + ".json"
}

func (f *File) field(kind fileKind) any {
	switch kind {
	case kindUserData:
		return &f.mem.UserData
	case kindChatData:
		return &f.mem.ChatData
	case kindBotData:
		return &f.mem.BotData
	case kindCallbackData:
		return &f.mem.CallbackData
	default:
		return &f.mem.Conversations
	}
}

// load reads the files once. Missing files mean no data yet.
func (f *File) load() error {
	if f.loaded {
		return nil
	}
	if f.cfg.PerKind {
		for _, kind := range allKinds {
			if err := readJSON(f.kindPath(kind), f.field(kind)); err != nil {
				return err
			}
		}
	} else if err := readJSON(f.cfg.Path, f.mem); err != nil {
		return err
	}
	f.mem.normalize()
	f.loaded = true
	return nil
}

func readJSON(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// changed marks kind as modified and writes it unless writes wait for Flush.
func (f *File) changed(kind fileKind) error {
	f.dirty[kind] = true
	if f.cfg.OnFlush {
		return nil
	}
	return f.write()
}

func (f *File) write() error {
	if len(f.dirty) == 0 {
		return nil
	}
	if !f.cfg.PerKind {
		if err := writeJSON(f.cfg.Path, f.mem); err != nil {
			return err
		}
		clear(f.dirty)
		return nil
	}
	for kind := range f.dirty {
		if err := writeJSON(f.kindPath(kind), f.field(kind)); err != nil {
			return err
		}
		delete(f.dirty, kind)
	}
	return nil
}

func (f *File) GetUserData(context.Context) (map[int64]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return nil, err
	}
	return cloneJSON(f.mem.UserData)
}

func (f *File) GetChatData(context.Context) (map[int64]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return nil, err
	}
	return cloneJSON(f.mem.ChatData)
}

func (f *File) GetBotData(context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return nil, err
	}
	return cloneJSON(f.mem.BotData)
}

func (f *File) GetCallbackData(context.Context) (*ext.CallbackDataSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return nil, err
	}
	if f.mem.CallbackData == nil {
		return nil, nil
	}
	return cloneJSON(f.mem.CallbackData)
}

func (f *File) GetConversations(_ context.Context, name string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return nil, err
	}
	return f.mem.conversations(name), nil
}

// update applies fn to the loaded data and records kind as changed.
func (f *File) update(kind fileKind, fn func(m *memory) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	if !fn(f.mem) {
		return nil
	}
	return f.changed(kind)
}

func (f *File) UpdateUserData(_ context.Context, userID int64, data map[string]any) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	return f.update(kindUserData, func(m *memory) bool {
		m.UserData[userID] = clone
		return true
	})
}

func (f *File) UpdateChatData(_ context.Context, chatID int64, data map[string]any) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	return f.update(kindChatData, func(m *memory) bool {
		m.ChatData[chatID] = clone
		return true
	})
}

func (f *File) UpdateBotData(_ context.Context, data map[string]any) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	return f.update(kindBotData, func(m *memory) bool {
		m.BotData = clone
		return true
	})
}

func (f *File) UpdateCallbackData(_ context.Context, data *ext.CallbackDataSnapshot) error {
	clone, err := cloneJSON(data)
	if err != nil {
		return err
	}
	return f.update(kindCallbackData, func(m *memory) bool {
		m.CallbackData = clone
		return true
	})
}

func (f *File) UpdateConversation(_ context.Context, name, key, state string) error {
	return f.update(kindConversations, func(m *memory) bool {
		return m.setConversation(name, key, state)
	})
}

func (f *File) DropUserData(_ context.Context, userID int64) error {
	return f.update(kindUserData, func(m *memory) bool {
		_, ok := m.UserData[userID]
		delete(m.UserData, userID)
		return ok
	})
}

func (f *File) DropChatData(_ context.Context, chatID int64) error {
	return f.update(kindChatData, func(m *memory) bool {
		_, ok := m.ChatData[chatID]
		delete(m.ChatData, chatID)
		return ok
	})
}

// Flush writes every kind changed since the last write.
func (f *File) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(); err != nil {
		return err
	}
	f.log.Debug().Str("path", f.cfg.Path).Msg("Persistence flushed")
	return nil
}

package ext

import (
	"context"
	"time"
)

// StoreData selects which kinds of data a persistence keeps.
type StoreData struct {
	UserData     bool
	ChatData     bool
	BotData      bool
	CallbackData bool
}

// KeyboardData is one keyboard of the callback data cache.
type KeyboardData struct {
	ID         string         `json:"id"`
	AccessTime time.Time      `json:"access_time"`
	Buttons    map[string]any `json:"buttons"`
}

// CallbackDataSnapshot is the persisted state of a CallbackDataCache.
type CallbackDataSnapshot struct {
	Keyboards []KeyboardData    `json:"keyboards"`
	Queries   map[string]string `json:"queries"`
}

// Persistence stores application data across restarts. Implementations live
// in the ext/persistence package.
//
// Get methods are called once by Application.Initialize. Update methods are
// called every UpdateInterval and on Stop with the data touched since the
// last run. Conversation states are written as soon as they change; an empty
// state deletes the key.
type Persistence interface {
	Store() StoreData
	UpdateInterval() time.Duration

	GetUserData(ctx context.Context) (map[int64]map[string]any, error)
	GetChatData(ctx context.Context) (map[int64]map[string]any, error)
	GetBotData(ctx context.Context) (map[string]any, error)
	GetCallbackData(ctx context.Context) (*CallbackDataSnapshot, error)
	GetConversations(ctx context.Context, name string) (map[string]string, error)

	UpdateUserData(ctx context.Context, userID int64, data map[string]any) error
	UpdateChatData(ctx context.Context, chatID int64, data map[string]any) error
	UpdateBotData(ctx context.Context, data map[string]any) error
	UpdateCallbackData(ctx context.Context, data *CallbackDataSnapshot) error
	UpdateConversation(ctx context.Context, name, key, state string) error

	DropUserData(ctx context.Context, userID int64) error
	DropChatData(ctx context.Context, chatID int64) error

	// Refresh methods run before an update is handled and may modify data
	// in place, e.g. to pick up changes made by another process.
	RefreshUserData(ctx context.Context, userID int64, data map[string]any) error
	RefreshChatData(ctx context.Context, chatID int64, data map[string]any) error
	RefreshBotData(ctx context.Context, data map[string]any) error

	Flush(ctx context.Context) error
}

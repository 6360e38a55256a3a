package telegram

// BotCommand is a bot command shown in the command menu.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Bot command scope kinds.
const (
	ScopeDefault               = "default"
	ScopeAllPrivateChats       = "all_private_chats"
	ScopeAllGroupChats         = "all_group_chats"
	ScopeAllChatAdministrators = "all_chat_administrators"
	ScopeChat                  = "chat"
	ScopeChatAdministrators    = "chat_administrators"
	ScopeChatMember            = "chat_member"
)

// BotCommandScope is the set of users for which a command list applies.
// ChatID is used by the chat, chat_administrators and chat_member scopes;
// UserID only by chat_member.
type BotCommandScope struct {
	Type   string  `json:"type"`
	ChatID *ChatID `json:"chat_id,omitempty"`
	UserID int64   `json:"user_id,omitempty"`
}

// ScopeForChat returns the command scope of one chat.
func ScopeForChat(chatID ChatID) *BotCommandScope {
	return &BotCommandScope{Type: ScopeChat, ChatID: &chatID}
}

// ScopeForChatMember returns the command scope of one member of a chat.
func ScopeForChatMember(chatID ChatID, userID int64) *BotCommandScope {
	return &BotCommandScope{Type: ScopeChatMember, ChatID: &chatID, UserID: userID}
}

// WebhookInfo describes the current webhook status.
type WebhookInfo struct {
	URL                          string   `json:"url"`
	HasCustomCertificate         bool     `json:"has_custom_certificate"`
	PendingUpdateCount           int      `json:"pending_update_count"`
	IPAddress                    string   `json:"ip_address,omitempty"`
	LastErrorDate                int64    `json:"last_error_date,omitempty"`
	LastErrorMessage             string   `json:"last_error_message,omitempty"`
	LastSynchronizationErrorDate int64    `json:"last_synchronization_error_date,omitempty"`
	MaxConnections               int      `json:"max_connections,omitempty"`
	AllowedUpdates               []string `json:"allowed_updates,omitempty"`
}

// ResponseParameters describes why a request was unsuccessful.
type ResponseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

// APIResponse is the envelope of every Bot API response.
type APIResponse[T any] struct {
	OK          bool                `json:"ok"`
	Result      T                   `json:"result"`
	Description string              `json:"description,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Parameters  *ResponseParameters `json:"parameters,omitempty"`
}

package telegram

// ReplyMarkup is implemented by every keyboard type that can be attached to
// an outgoing message.
type ReplyMarkup interface {
	replyMarkup()
}

// InlineKeyboardMarkup is an inline keyboard that appears right next to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

func (*InlineKeyboardMarkup) replyMarkup() {}

// NewInlineKeyboard builds a markup from rows of buttons.
func NewInlineKeyboard(rows ...[]InlineKeyboardButton) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// InlineKeyboardFromButton builds a markup holding a single button.
func InlineKeyboardFromButton(b InlineKeyboardButton) *InlineKeyboardMarkup {
	return NewInlineKeyboard([]InlineKeyboardButton{b})
}

// InlineKeyboardFromRow builds a markup holding one row of buttons.
func InlineKeyboardFromRow(buttons ...InlineKeyboardButton) *InlineKeyboardMarkup {
	return NewInlineKeyboard(buttons)
}

// InlineKeyboardFromColumn builds a markup holding one button per row.
func InlineKeyboardFromColumn(buttons ...InlineKeyboardButton) *InlineKeyboardMarkup {
	rows := make([][]InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineKeyboardButton{b})
	}
	return NewInlineKeyboard(rows...)
}

// InlineKeyboardButton is one button of an inline keyboard. Exactly one of
// the optional fields must be set.
//
// CallbackData is the raw string sent to Telegram. CallbackValue holds
// arbitrary callback data that an ext.CallbackDataCache replaces with an
// opaque string before the markup is sent; after an incoming callback query
// is resolved, the original value is available as CallbackQuery.Value.
type InlineKeyboardButton struct {
	Text                         string                       `json:"text"`
	URL                          string                       `json:"url,omitempty"`
	CallbackData                 string                       `json:"callback_data,omitempty"`
	WebApp                       *WebAppInfo                  `json:"web_app,omitempty"`
	LoginURL                     *LoginURL                    `json:"login_url,omitempty"`
	SwitchInlineQuery            *string                      `json:"switch_inline_query,omitempty"`
	SwitchInlineQueryCurrentChat *string                      `json:"switch_inline_query_current_chat,omitempty"`
	SwitchInlineQueryChosenChat  *SwitchInlineQueryChosenChat `json:"switch_inline_query_chosen_chat,omitempty"`
	CallbackGame                 *CallbackGame                `json:"callback_game,omitempty"`
	Pay                          bool                         `json:"pay,omitempty"`

	CallbackValue any `json:"-"`
}

// CallbackButton returns a button that sends data in a callback query.
func CallbackButton(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}

// CallbackValueButton returns a button carrying arbitrary callback data.
func CallbackValueButton(text string, value any) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackValue: value}
}

// URLButton returns a button that opens url.
func URLButton(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}

// CallbackGame is a placeholder; it holds no information.
type CallbackGame struct{}

// WebAppInfo describes a Web App.
type WebAppInfo struct {
	URL string `json:"url"`
}

// LoginURL is a parameter of an inline keyboard button used to log users in.
type LoginURL struct {
	URL                string `json:"url"`
	ForwardText        string `json:"forward_text,omitempty"`
	BotUsername        string `json:"bot_username,omitempty"`
	RequestWriteAccess bool   `json:"request_write_access,omitempty"`
}

// SwitchInlineQueryChosenChat opens the inline mode in a chosen chat.
type SwitchInlineQueryChosenChat struct {
	Query             string `json:"query,omitempty"`
	AllowUserChats    bool   `json:"allow_user_chats,omitempty"`
	AllowBotChats     bool   `json:"allow_bot_chats,omitempty"`
	AllowGroupChats   bool   `json:"allow_group_chats,omitempty"`
	AllowChannelChats bool   `json:"allow_channel_chats,omitempty"`
}

// ReplyKeyboardMarkup is a custom keyboard with reply options.
type ReplyKeyboardMarkup struct {
	Keyboard              [][]KeyboardButton `json:"keyboard"`
	IsPersistent          bool               `json:"is_persistent,omitempty"`
	ResizeKeyboard        bool               `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard       bool               `json:"one_time_keyboard,omitempty"`
	InputFieldPlaceholder string             `json:"input_field_placeholder,omitempty"`
	Selective             bool               `json:"selective,omitempty"`
}

func (*ReplyKeyboardMarkup) replyMarkup() {}

// KeyboardButton is one button of a reply keyboard.
type KeyboardButton struct {
	Text            string                      `json:"text"`
	RequestUsers    *KeyboardButtonRequestUsers `json:"request_users,omitempty"`
	RequestChat     *KeyboardButtonRequestChat  `json:"request_chat,omitempty"`
	RequestContact  bool                        `json:"request_contact,omitempty"`
	RequestLocation bool                        `json:"request_location,omitempty"`
	RequestPoll     *KeyboardButtonPollType     `json:"request_poll,omitempty"`
	WebApp          *WebAppInfo                 `json:"web_app,omitempty"`
}

// KeyboardButtonPollType restricts the poll type a button may create.
// An empty Type allows any poll.
type KeyboardButtonPollType struct {
	Type string `json:"type,omitempty"`
}

// KeyboardButtonRequestUsers asks the user to share users with the bot.
type KeyboardButtonRequestUsers struct {
	RequestID       int   `json:"request_id"`
	UserIsBot       *bool `json:"user_is_bot,omitempty"`
	UserIsPremium   *bool `json:"user_is_premium,omitempty"`
	MaxQuantity     int   `json:"max_quantity,omitempty"`
	RequestName     bool  `json:"request_name,omitempty"`
	RequestUsername bool  `json:"request_username,omitempty"`
	RequestPhoto    bool  `json:"request_photo,omitempty"`
}

// KeyboardButtonRequestChat asks the user to share a chat with the bot.
type KeyboardButtonRequestChat struct {
	RequestID               int              `json:"request_id"`
	ChatIsChannel           bool             `json:"chat_is_channel"`
	ChatIsForum             *bool            `json:"chat_is_forum,omitempty"`
	ChatHasUsername         *bool            `json:"chat_has_username,omitempty"`
	ChatIsCreated           *bool            `json:"chat_is_created,omitempty"`
	UserAdministratorRights *ChatAdminRights `json:"user_administrator_rights,omitempty"`
	BotAdministratorRights  *ChatAdminRights `json:"bot_administrator_rights,omitempty"`
	BotIsMember             bool             `json:"bot_is_member,omitempty"`
}

// ChatAdminRights describes the rights of an administrator.
type ChatAdminRights struct {
	IsAnonymous         bool `json:"is_anonymous"`
	CanManageChat       bool `json:"can_manage_chat"`
	CanDeleteMessages   bool `json:"can_delete_messages"`
	CanManageVideoChats bool `json:"can_manage_video_chats"`
	CanRestrictMembers  bool `json:"can_restrict_members"`
	CanPromoteMembers   bool `json:"can_promote_members"`
	CanChangeInfo       bool `json:"can_change_info"`
	CanInviteUsers      bool `json:"can_invite_users"`
	CanPostStories      bool `json:"can_post_stories"`
	CanEditStories      bool `json:"can_edit_stories"`
	CanDeleteStories    bool `json:"can_delete_stories"`
	CanPostMessages     bool `json:"can_post_messages,omitempty"`
	CanEditMessages     bool `json:"can_edit_messages,omitempty"`
	CanPinMessages      bool `json:"can_pin_messages,omitempty"`
	CanManageTopics     bool `json:"can_manage_topics,omitempty"`
}

// ReplyKeyboardRemove removes the current custom keyboard.
type ReplyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
	Selective      bool `json:"selective,omitempty"`
}

func (*ReplyKeyboardRemove) replyMarkup() {}

// RemoveKeyboard returns a ReplyKeyboardRemove with RemoveKeyboard set.
func RemoveKeyboard() *ReplyKeyboardRemove { return &ReplyKeyboardRemove{RemoveKeyboard: true} }

// ForceReply shows a reply interface to the user.
type ForceReply struct {
	ForceReply            bool   `json:"force_reply"`
	InputFieldPlaceholder string `json:"input_field_placeholder,omitempty"`
	Selective             bool   `json:"selective,omitempty"`
}

func (*ForceReply) replyMarkup() {}

package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// MessageID identifies a message within a chat.
type MessageID struct {
	MessageID int `json:"message_id"`
}

// Message represents a message. A message with Date == 0 is an
// inaccessible message: only Chat and MessageID are meaningful.
type Message struct {
	MessageID           int                   `json:"message_id"`
	MessageThreadID     int                   `json:"message_thread_id,omitempty"`
	From                *User                 `json:"from,omitempty"`
	SenderChat          *Chat                 `json:"sender_chat,omitempty"`
	SenderBoostCount    int                   `json:"sender_boost_count,omitempty"`
	Date                int64                 `json:"date"`
	Chat                Chat                  `json:"chat"`
	ForwardOrigin       *MessageOrigin        `json:"forward_origin,omitempty"`
	IsTopicMessage      bool                  `json:"is_topic_message,omitempty"`
	IsAutomaticForward  bool                  `json:"is_automatic_forward,omitempty"`
	ReplyToMessage      *Message              `json:"reply_to_message,omitempty"`
	ExternalReply       *ExternalReplyInfo    `json:"external_reply,omitempty"`
	Quote               *TextQuote            `json:"quote,omitempty"`
	ReplyToStory        *Story                `json:"reply_to_story,omitempty"`
	ViaBot              *User                 `json:"via_bot,omitempty"`
	EditDate            int64                 `json:"edit_date,omitempty"`
	HasProtectedContent bool                  `json:"has_protected_content,omitempty"`
	MediaGroupID        string                `json:"media_group_id,omitempty"`
	AuthorSignature     string                `json:"author_signature,omitempty"`
	Text                string                `json:"text,omitempty"`
	Entities            []MessageEntity       `json:"entities,omitempty"`
	LinkPreviewOptions  *LinkPreviewOptions   `json:"link_preview_options,omitempty"`
	Animation           *Animation            `json:"animation,omitempty"`
	Audio               *Audio                `json:"audio,omitempty"`
	Document            *Document             `json:"document,omitempty"`
	Photo               []PhotoSize           `json:"photo,omitempty"`
	Sticker             *Sticker              `json:"sticker,omitempty"`
	Story               *Story                `json:"story,omitempty"`
	Video               *Video                `json:"video,omitempty"`
	VideoNote           *VideoNote            `json:"video_note,omitempty"`
	Voice               *Voice                `json:"voice,omitempty"`
	Caption             string                `json:"caption,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	HasMediaSpoiler     bool                  `json:"has_media_spoiler,omitempty"`
	Contact             *Contact              `json:"contact,omitempty"`
	Dice                *Dice                 `json:"dice,omitempty"`
	Game                *Game                 `json:"game,omitempty"`
	Poll                *Poll                 `json:"poll,omitempty"`
	Venue               *Venue                `json:"venue,omitempty"`
	Location            *Location             `json:"location,omitempty"`
	Invoice             *Invoice              `json:"invoice,omitempty"`
	SuccessfulPayment   *SuccessfulPayment    `json:"successful_payment,omitempty"`
	PassportData        *PassportData         `json:"passport_data,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`

	NewChatMembers                []User                         `json:"new_chat_members,omitempty"`
	LeftChatMember                *User                          `json:"left_chat_member,omitempty"`
	NewChatTitle                  string                         `json:"new_chat_title,omitempty"`
	NewChatPhoto                  []PhotoSize                    `json:"new_chat_photo,omitempty"`
	DeleteChatPhoto               bool                           `json:"delete_chat_photo,omitempty"`
	GroupChatCreated              bool                           `json:"group_chat_created,omitempty"`
	SupergroupChatCreated         bool                           `json:"supergroup_chat_created,omitempty"`
	ChannelChatCreated            bool                           `json:"channel_chat_created,omitempty"`
	MessageAutoDeleteTimerChanged *MessageAutoDeleteTimerChanged `json:"message_auto_delete_timer_changed,omitempty"`
	MigrateToChatID               int64                          `json:"migrate_to_chat_id,omitempty"`
	MigrateFromChatID             int64                          `json:"migrate_from_chat_id,omitempty"`
	PinnedMessage                 *Message                       `json:"pinned_message,omitempty"`
	UsersShared                   *UsersShared                   `json:"users_shared,omitempty"`
	ChatShared                    *ChatShared                    `json:"chat_shared,omitempty"`
	ConnectedWebsite              string                         `json:"connected_website,omitempty"`
	WriteAccessAllowed            *WriteAccessAllowed            `json:"write_access_allowed,omitempty"`
	ProximityAlertTriggered       *ProximityAlertTriggered       `json:"proximity_alert_triggered,omitempty"`
	BoostAdded                    *ChatBoostAdded                `json:"boost_added,omitempty"`
	ForumTopicCreated             *ForumTopicCreated             `json:"forum_topic_created,omitempty"`
	ForumTopicEdited              *ForumTopicEdited              `json:"forum_topic_edited,omitempty"`
	ForumTopicClosed              *ForumTopicClosed              `json:"forum_topic_closed,omitempty"`
	ForumTopicReopened            *ForumTopicReopened            `json:"forum_topic_reopened,omitempty"`
	GeneralForumTopicHidden       *GeneralForumTopicHidden       `json:"general_forum_topic_hidden,omitempty"`
	GeneralForumTopicUnhidden     *GeneralForumTopicUnhidden     `json:"general_forum_topic_unhidden,omitempty"`
	GiveawayCreated               *GiveawayCreated               `json:"giveaway_created,omitempty"`
	Giveaway                      *Giveaway                      `json:"giveaway,omitempty"`
	GiveawayWinners               *GiveawayWinners               `json:"giveaway_winners,omitempty"`
	GiveawayCompleted             *GiveawayCompleted             `json:"giveaway_completed,omitempty"`
	VideoChatScheduled            *VideoChatScheduled            `json:"video_chat_scheduled,omitempty"`
	VideoChatStarted              *VideoChatStarted              `json:"video_chat_started,omitempty"`
	VideoChatEnded                *VideoChatEnded                `json:"video_chat_ended,omitempty"`
	VideoChatParticipantsInvited  *VideoChatParticipantsInvited  `json:"video_chat_participants_invited,omitempty"`
	WebAppData                    *WebAppData                    `json:"web_app_data,omitempty"`
}

// IsAccessible reports whether the message content is available to the bot.
func (m *Message) IsAccessible() bool { return m.Date != 0 }

// Time returns the message date.
func (m *Message) Time() time.Time { return time.Unix(m.Date, 0) }

// ChatID returns the id of the chat the message belongs to.
func (m *Message) ChatID() int64 { return m.Chat.ID }

// Equal reports whether both messages are the same message in the same chat.
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.MessageID == other.MessageID && m.Chat.ID == other.Chat.ID
}

// Link returns a t.me link to the message. Only supergroups and channels
// have message links; "" is returned otherwise.
func (m *Message) Link() string {
	if m.Chat.Type != ChatTypeSupergroup && m.Chat.Type != ChatTypeChannel {
		return ""
	}
	var prefix string
	if m.Chat.Username != "" {
		prefix = m.Chat.Username
	} else {
		// private supergroups and channels use the id without the -100 prefix
		prefix = "c/" + strings.TrimPrefix(strconv.FormatInt(m.Chat.ID, 10), "-100")
	}
	if m.IsTopicMessage && m.MessageThreadID != 0 {
		return fmt.Sprintf("https://t.me/%s/%d/%d", prefix, m.MessageThreadID, m.MessageID)
	}
	return fmt.Sprintf("https://t.me/%s/%d", prefix, m.MessageID)
}

// ParseEntity returns the text covered by an entity of the message text.
func (m *Message) ParseEntity(e MessageEntity) string {
	return e.Slice(m.Text)
}

// ParseCaptionEntity returns the text covered by an entity of the caption.
func (m *Message) ParseCaptionEntity(e MessageEntity) string {
	return e.Slice(m.Caption)
}

// ParseEntities maps the text entities whose type is in types (all when empty)
// to the text they cover.
func (m *Message) ParseEntities(types ...string) map[MessageEntity]string {
	return parseEntities(m.Text, m.Entities, types)
}

// ParseCaptionEntities is ParseEntities for the caption.
func (m *Message) ParseCaptionEntities(types ...string) map[MessageEntity]string {
	return parseEntities(m.Caption, m.CaptionEntities, types)
}

func parseEntities(text string, entities []MessageEntity, types []string) map[MessageEntity]string {
	out := make(map[MessageEntity]string)
	for _, e := range entities {
		if len(types) > 0 && !containsString(types, e.Type) {
			continue
		}
		out[e] = e.Slice(text)
	}
	return out
}

// Command returns the bot command at the start of the text without the
// leading slash and the "@botname" suffix, the bot name, and the words of
// the text after the first one. ok is false when the text does not start
// with a bot_command entity.
func (m *Message) Command() (command, botName string, args []string, ok bool) {
	if len(m.Entities) == 0 || m.Entities[0].Type != EntityBotCommand || m.Entities[0].Offset != 0 {
		return "", "", nil, false
	}
	raw := m.ParseEntity(m.Entities[0])
	command = strings.TrimPrefix(raw, "/")
	if i := strings.IndexByte(command, '@'); i >= 0 {
		botName = command[i+1:]
		command = command[:i]
	}
	if fields := strings.Fields(m.Text); len(fields) > 1 {
		args = fields[1:]
	}
	return command, botName, args, true
}

// Message entity types.
const (
	EntityMention              = "mention"
	EntityHashtag              = "hashtag"
	EntityCashtag              = "cashtag"
	EntityBotCommand           = "bot_command"
	EntityURL                  = "url"
	EntityEmail                = "email"
	EntityPhoneNumber          = "phone_number"
	EntityBold                 = "bold"
	EntityItalic               = "italic"
	EntityUnderline            = "underline"
	EntityStrikethrough        = "strikethrough"
	EntitySpoiler              = "spoiler"
	EntityBlockquote           = "blockquote"
	EntityExpandableBlockquote = "expandable_blockquote"
	EntityCode                 = "code"
	EntityPre                  = "pre"
	EntityTextLink             = "text_link"
	EntityTextMention          = "text_mention"
	EntityCustomEmoji          = "custom_emoji"
)

// MessageEntity is a special entity in a text message. Offset and Length are
// measured in UTF-16 code units.
type MessageEntity struct {
	Type          string `json:"type"`
	Offset        int    `json:"offset"`
	Length        int    `json:"length"`
	URL           string `json:"url,omitempty"`
	User          *User  `json:"user,omitempty"`
	Language      string `json:"language,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

// Slice returns the part of text covered by the entity. Out-of-range
// entities are clamped to the text.
func (e MessageEntity) Slice(text string) string {
	units := utf16.Encode([]rune(text))
	start := clamp(e.Offset, 0, len(units))
	end := clamp(e.Offset+e.Length, start, len(units))
	return string(utf16.Decode(units[start:end]))
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Message origin kinds.
const (
	OriginUser       = "user"
	OriginHiddenUser = "hidden_user"
	OriginChat       = "chat"
	OriginChannel    = "channel"
)

// MessageOrigin describes the origin of a forwarded message. Type selects
// which of SenderUser, SenderUserName, SenderChat or Chat is set.
type MessageOrigin struct {
	Type            string `json:"type"`
	Date            int64  `json:"date"`
	SenderUser      *User  `json:"sender_user,omitempty"`
	SenderUserName  string `json:"sender_user_name,omitempty"`
	SenderChat      *Chat  `json:"sender_chat,omitempty"`
	Chat            *Chat  `json:"chat,omitempty"`
	MessageID       int    `json:"message_id,omitempty"`
	AuthorSignature string `json:"author_signature,omitempty"`
}

// ExternalReplyInfo describes a message that is replied to from another chat or thread.
type ExternalReplyInfo struct {
	Origin             MessageOrigin       `json:"origin"`
	Chat               *Chat               `json:"chat,omitempty"`
	MessageID          int                 `json:"message_id,omitempty"`
	LinkPreviewOptions *LinkPreviewOptions `json:"link_preview_options,omitempty"`
	Animation          *Animation          `json:"animation,omitempty"`
	Audio              *Audio              `json:"audio,omitempty"`
	Document           *Document           `json:"document,omitempty"`
	Photo              []PhotoSize         `json:"photo,omitempty"`
	Sticker            *Sticker            `json:"sticker,omitempty"`
	Story              *Story              `json:"story,omitempty"`
	Video              *Video              `json:"video,omitempty"`
	VideoNote          *VideoNote          `json:"video_note,omitempty"`
	Voice              *Voice              `json:"voice,omitempty"`
	HasMediaSpoiler    bool                `json:"has_media_spoiler,omitempty"`
	Contact            *Contact            `json:"contact,omitempty"`
	Dice               *Dice               `json:"dice,omitempty"`
	Game               *Game               `json:"game,omitempty"`
	Giveaway           *Giveaway           `json:"giveaway,omitempty"`
	GiveawayWinners    *GiveawayWinners    `json:"giveaway_winners,omitempty"`
	Invoice            *Invoice            `json:"invoice,omitempty"`
	Location           *Location           `json:"location,omitempty"`
	Poll               *Poll               `json:"poll,omitempty"`
	Venue              *Venue              `json:"venue,omitempty"`
}

// TextQuote is the quoted part of a replied-to message.
type TextQuote struct {
	Text     string          `json:"text"`
	Entities []MessageEntity `json:"entities,omitempty"`
	Position int             `json:"position"`
	IsManual bool            `json:"is_manual,omitempty"`
}

// ReplyParameters describes the message being replied to by an outgoing message.
type ReplyParameters struct {
	MessageID                int             `json:"message_id"`
	ChatID                   *ChatID         `json:"chat_id,omitempty"`
	AllowSendingWithoutReply bool            `json:"allow_sending_without_reply,omitempty"`
	Quote                    string          `json:"quote,omitempty"`
	QuoteParseMode           string          `json:"quote_parse_mode,omitempty"`
	QuoteEntities            []MessageEntity `json:"quote_entities,omitempty"`
	QuotePosition            int             `json:"quote_position,omitempty"`
}

// LinkPreviewOptions controls link preview generation.
type LinkPreviewOptions struct {
	IsDisabled       bool   `json:"is_disabled,omitempty"`
	URL              string `json:"url,omitempty"`
	PreferSmallMedia bool   `json:"prefer_small_media,omitempty"`
	PreferLargeMedia bool   `json:"prefer_large_media,omitempty"`
	ShowAboveText    bool   `json:"show_above_text,omitempty"`
}

// Story is a forwarded story.
type Story struct {
	Chat Chat `json:"chat"`
	ID   int  `json:"id"`
}

// Dice emoji.
const (
	DiceDice        = "🎲"
	DiceDarts       = "🎯"
	DiceBasketball  = "🏀"
	DiceFootball    = "⚽"
	DiceSlotMachine = "🎰"
	DiceBowling     = "🎳"
)

// Dice is an animated emoji with a random value.
type Dice struct {
	Emoji string `json:"emoji"`
	Value int    `json:"value"`
}

// Contact is a phone contact.
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	UserID      int64  `json:"user_id,omitempty"`
	VCard       string `json:"vcard,omitempty"`
}

// Location is a point on the map.
type Location struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	HorizontalAccuracy   float64 `json:"horizontal_accuracy,omitempty"`
	LivePeriod           int     `json:"live_period,omitempty"`
	Heading              int     `json:"heading,omitempty"`
	ProximityAlertRadius int     `json:"proximity_alert_radius,omitempty"`
}

// Venue is a venue.
type Venue struct {
	Location        Location `json:"location"`
	Title           string   `json:"title"`
	Address         string   `json:"address"`
	FoursquareID    string   `json:"foursquare_id,omitempty"`
	FoursquareType  string   `json:"foursquare_type,omitempty"`
	GooglePlaceID   string   `json:"google_place_id,omitempty"`
	GooglePlaceType string   `json:"google_place_type,omitempty"`
}

// Game is a game message.
type Game struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Photo        []PhotoSize     `json:"photo"`
	Text         string          `json:"text,omitempty"`
	TextEntities []MessageEntity `json:"text_entities,omitempty"`
	Animation    *Animation      `json:"animation,omitempty"`
}

// ProximityAlertTriggered is sent when a user in the chat triggers a proximity alert.
type ProximityAlertTriggered struct {
	Traveler User `json:"traveler"`
	Watcher  User `json:"watcher"`
	Distance int  `json:"distance"`
}

// MessageAutoDeleteTimerChanged is a service message about a changed auto-delete timer.
type MessageAutoDeleteTimerChanged struct {
	MessageAutoDeleteTime int `json:"message_auto_delete_time"`
}

// ChatBoostAdded is a service message about a user boosting the chat.
type ChatBoostAdded struct {
	BoostCount int `json:"boost_count"`
}

// WebAppData is data sent from a Web App to the bot.
type WebAppData struct {
	Data       string `json:"data"`
	ButtonText string `json:"button_text"`
}

// WriteAccessAllowed is a service message about a user allowing the bot to write messages.
type WriteAccessAllowed struct {
	FromRequest        bool   `json:"from_request,omitempty"`
	WebAppName         string `json:"web_app_name,omitempty"`
	FromAttachmentMenu bool   `json:"from_attachment_menu,omitempty"`
}

// UsersShared is a service message about users shared through a request button.
type UsersShared struct {
	RequestID int          `json:"request_id"`
	Users     []SharedUser `json:"users"`
}

// SharedUser is a user shared with the bot.
type SharedUser struct {
	UserID    int64       `json:"user_id"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	Username  string      `json:"username,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// ChatShared is a service message about a chat shared through a request button.
type ChatShared struct {
	RequestID int         `json:"request_id"`
	ChatID    int64       `json:"chat_id"`
	Title     string      `json:"title,omitempty"`
	Username  string      `json:"username,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// ForumTopic is a forum topic.
type ForumTopic struct {
	MessageThreadID   int    `json:"message_thread_id"`
	Name              string `json:"name"`
	IconColor         int    `json:"icon_color"`
	IconCustomEmojiID string `json:"icon_custom_emoji_id,omitempty"`
}

// ForumTopicCreated is a service message about a new forum topic.
type ForumTopicCreated struct {
	Name              string `json:"name"`
	IconColor         int    `json:"icon_color"`
	IconCustomEmojiID string `json:"icon_custom_emoji_id,omitempty"`
}

// ForumTopicEdited is a service message about an edited forum topic.
type ForumTopicEdited struct {
	Name              string `json:"name,omitempty"`
	IconCustomEmojiID string `json:"icon_custom_emoji_id,omitempty"`
}

// ForumTopicClosed is a service message about a closed forum topic.
type ForumTopicClosed struct{}

// ForumTopicReopened is a service message about a reopened forum topic.
type ForumTopicReopened struct{}

// GeneralForumTopicHidden is a service message about the General topic being hidden.
type GeneralForumTopicHidden struct{}

// GeneralForumTopicUnhidden is a service message about the General topic being unhidden.
type GeneralForumTopicUnhidden struct{}

// GiveawayCreated is a service message about a scheduled giveaway.
type GiveawayCreated struct{}

// Giveaway is a message about a scheduled giveaway.
type Giveaway struct {
	Chats                         []Chat   `json:"chats"`
	WinnersSelectionDate          int64    `json:"winners_selection_date"`
	WinnerCount                   int      `json:"winner_count"`
	OnlyNewMembers                bool     `json:"only_new_members,omitempty"`
	HasPublicWinners              bool     `json:"has_public_winners,omitempty"`
	PrizeDescription              string   `json:"prize_description,omitempty"`
	CountryCodes                  []string `json:"country_codes,omitempty"`
	PremiumSubscriptionMonthCount int      `json:"premium_subscription_month_count,omitempty"`
}

// GiveawayWinners is a message about the completion of a giveaway with public winners.
type GiveawayWinners struct {
	Chat                          Chat   `json:"chat"`
	GiveawayMessageID             int    `json:"giveaway_message_id"`
	WinnersSelectionDate          int64  `json:"winners_selection_date"`
	WinnerCount                   int    `json:"winner_count"`
	Winners                       []User `json:"winners"`
	AdditionalChatCount           int    `json:"additional_chat_count,omitempty"`
	PremiumSubscriptionMonthCount int    `json:"premium_subscription_month_count,omitempty"`
	UnclaimedPrizeCount           int    `json:"unclaimed_prize_count,omitempty"`
	OnlyNewMembers                bool   `json:"only_new_members,omitempty"`
	WasRefunded                   bool   `json:"was_refunded,omitempty"`
	PrizeDescription              string `json:"prize_description,omitempty"`
}

// GiveawayCompleted is a service message about the completion of a giveaway without public winners.
type GiveawayCompleted struct {
	WinnerCount         int      `json:"winner_count"`
	UnclaimedPrizeCount int      `json:"unclaimed_prize_count,omitempty"`
	GiveawayMessage     *Message `json:"giveaway_message,omitempty"`
}

// VideoChatScheduled is a service message about a scheduled video chat.
type VideoChatScheduled struct {
	StartDate int64 `json:"start_date"`
}

// VideoChatStarted is a service message about a started video chat.
type VideoChatStarted struct{}

// VideoChatEnded is a service message about an ended video chat.
type VideoChatEnded struct {
	Duration int `json:"duration"`
}

// VideoChatParticipantsInvited is a service message about new video chat participants.
type VideoChatParticipantsInvited struct {
	Users []User `json:"users"`
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

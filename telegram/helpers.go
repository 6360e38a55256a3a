package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Parse modes.
const (
	ParseModeMarkdown   = "Markdown"
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

// Message limits.
const (
	MaxMessageLength        = 4096
	MaxCaptionLength        = 1024
	MaxCallbackDataLength   = 64
	MaxDeepLinkPayload      = 64
	MaxCommandLength        = 32
	MaxPollQuestionLength   = 300
	MaxPollOptionLength     = 100
	MaxPollOptionCount      = 10
	MaxBotCommandsPerScope  = 100
	MaxWebhookSecretLength  = 256
	MaxFileSizeDownload     = 20 << 20
	MaxFileSizeUpload       = 50 << 20
	MaxPhotoSizeUpload      = 10 << 20
	MinBotUsernameLength    = 4
	MaxInlineQueryOffsetLen = 64
)

var (
	markdownV1Escaper   = escaperFor(`_*` + "`" + `[`)
	markdownV2Escaper   = escaperFor(`\_*[]()~` + "`" + `>#+-=|{}.!`)
	markdownCodeEscaper = escaperFor(`\` + "`")
	markdownLinkEscaper = escaperFor(`\)`)

	deepLinkPayloadRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func escaperFor(chars string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(chars))
	for _, c := range chars {
		pairs = append(pairs, string(c), `\`+string(c))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes Telegram markup symbols. version 2 selects
// MarkdownV2, any other value legacy Markdown. For MarkdownV2, entityType
// narrows the escaped set inside pre/code entities and text_link/custom_emoji URLs.
func EscapeMarkdown(text string, version int, entityType string) string {
	if version != 2 {
		return markdownV1Escaper.Replace(text)
	}
	switch entityType {
	case EntityPre, EntityCode:
		return markdownCodeEscaper.Replace(text)
	case EntityTextLink, EntityCustomEmoji:
		return markdownLinkEscaper.Replace(text)
	}
	return markdownV2Escaper.Replace(text)
}

// ErrInvalidDeepLink is returned by CreateDeepLinkedURL for bad arguments.
var ErrInvalidDeepLink = errors.New("telegram: invalid deep link")

// CreateDeepLinkedURL builds a t.me deep link that starts the bot with the
// given payload, in a group when group is true. An empty payload links to
// the bot itself.
func CreateDeepLinkedURL(botUsername, payload string, group bool) (string, error) {
	botUsername = strings.TrimPrefix(botUsername, "@")
	if len(botUsername) < MinBotUsernameLength {
		return "", fmt.Errorf("%w: you must provide a valid bot_username", ErrInvalidDeepLink)
	}
	base := "https://t.me/" + botUsername
	if payload == "" {
		return base, nil
	}
	if len(payload) > MaxDeepLinkPayload {
		return "", fmt.Errorf("%w: the deep-linking payload must not exceed %d characters", ErrInvalidDeepLink, MaxDeepLinkPayload)
	}
	if !deepLinkPayloadRegex.MatchString(payload) {
		return "", fmt.Errorf("%w: only the following characters are allowed for deep-linked URLs: A-Z, a-z, 0-9, _ and -", ErrInvalidDeepLink)
	}
	key := "start"
	if group {
		key = "startgroup"
	}
	return fmt.Sprintf("%s?%s=%s", base, key, payload), nil
}

// Message types reported by EffectiveMessageType.
const (
	MessageTypeText                          = "text"
	MessageTypeAnimation                     = "animation"
	MessageTypeAudio                         = "audio"
	MessageTypeContact                       = "contact"
	MessageTypeDice                          = "dice"
	MessageTypeDocument                      = "document"
	MessageTypeGame                          = "game"
	MessageTypeInvoice                       = "invoice"
	MessageTypeLocation                      = "location"
	MessageTypePassportData                  = "passport_data"
	MessageTypePhoto                         = "photo"
	MessageTypePoll                          = "poll"
	MessageTypeSticker                       = "sticker"
	MessageTypeStory                         = "story"
	MessageTypeSuccessfulPayment             = "successful_payment"
	MessageTypeVideo                         = "video"
	MessageTypeVideoNote                     = "video_note"
	MessageTypeVoice                         = "voice"
	MessageTypeVenue                         = "venue"
	MessageTypeNewChatMembers                = "new_chat_members"
	MessageTypeLeftChatMember                = "left_chat_member"
	MessageTypeNewChatTitle                  = "new_chat_title"
	MessageTypeNewChatPhoto                  = "new_chat_photo"
	MessageTypeDeleteChatPhoto               = "delete_chat_photo"
	MessageTypeGroupChatCreated              = "group_chat_created"
	MessageTypeSupergroupChatCreated         = "supergroup_chat_created"
	MessageTypeChannelChatCreated            = "channel_chat_created"
	MessageTypeMessageAutoDeleteTimerChanged = "message_auto_delete_timer_changed"
	MessageTypeMigrateToChatID               = "migrate_to_chat_id"
	MessageTypeMigrateFromChatID             = "migrate_from_chat_id"
	MessageTypePinnedMessage                 = "pinned_message"
	MessageTypeUsersShared                   = "users_shared"
	MessageTypeChatShared                    = "chat_shared"
	MessageTypeConnectedWebsite              = "connected_website"
	MessageTypeWriteAccessAllowed            = "write_access_allowed"
	MessageTypeProximityAlertTriggered       = "proximity_alert_triggered"
	MessageTypeBoostAdded                    = "boost_added"
	MessageTypeForumTopicCreated             = "forum_topic_created"
	MessageTypeForumTopicEdited              = "forum_topic_edited"
	MessageTypeForumTopicClosed              = "forum_topic_closed"
	MessageTypeForumTopicReopened            = "forum_topic_reopened"
	MessageTypeGeneralForumTopicHidden       = "general_forum_topic_hidden"
	MessageTypeGeneralForumTopicUnhidden     = "general_forum_topic_unhidden"
	MessageTypeGiveawayCreated               = "giveaway_created"
	MessageTypeGiveaway                      = "giveaway"
	MessageTypeGiveawayWinners               = "giveaway_winners"
	MessageTypeGiveawayCompleted             = "giveaway_completed"
	MessageTypeVideoChatScheduled            = "video_chat_scheduled"
	MessageTypeVideoChatStarted              = "video_chat_started"
	MessageTypeVideoChatEnded                = "video_chat_ended"
	MessageTypeVideoChatParticipantsInvited  = "video_chat_participants_invited"
	MessageTypeWebAppData                    = "web_app_data"
)

type messageTypeCheck struct {
	kind string
	set  func(m *Message) bool
}

var messageTypeChecks = []messageTypeCheck{
	{MessageTypeText, func(m *Message) bool { return m.Text != "" }},
	{MessageTypeAnimation, func(m *Message) bool { return m.Animation != nil }},
	{MessageTypeAudio, func(m *Message) bool { return m.Audio != nil }},
	{MessageTypeContact, func(m *Message) bool { return m.Contact != nil }},
	{MessageTypeDice, func(m *Message) bool { return m.Dice != nil }},
	{MessageTypeDocument, func(m *Message) bool { return m.Document != nil }},
	{MessageTypeGame, func(m *Message) bool { return m.Game != nil }},
	{MessageTypeInvoice, func(m *Message) bool { return m.Invoice != nil }},
	{MessageTypeLocation, func(m *Message) bool { return m.Location != nil && m.Venue == nil }},
	{MessageTypePassportData, func(m *Message) bool { return m.PassportData != nil }},
	{MessageTypePhoto, func(m *Message) bool { return len(m.Photo) > 0 }},
	{MessageTypePoll, func(m *Message) bool { return m.Poll != nil }},
	{MessageTypeSticker, func(m *Message) bool { return m.Sticker != nil }},
	{MessageTypeStory, func(m *Message) bool { return m.Story != nil }},
	{MessageTypeSuccessfulPayment, func(m *Message) bool { return m.SuccessfulPayment != nil }},
	{MessageTypeVideo, func(m *Message) bool { return m.Video != nil }},
	{MessageTypeVideoNote, func(m *Message) bool { return m.VideoNote != nil }},
	{MessageTypeVoice, func(m *Message) bool { return m.Voice != nil }},
	{MessageTypeVenue, func(m *Message) bool { return m.Venue != nil }},
	{MessageTypeNewChatMembers, func(m *Message) bool { return len(m.NewChatMembers) > 0 }},
	{MessageTypeLeftChatMember, func(m *Message) bool { return m.LeftChatMember != nil }},
	{MessageTypeNewChatTitle, func(m *Message) bool { return m.NewChatTitle != "" }},
	{MessageTypeNewChatPhoto, func(m *Message) bool { return len(m.NewChatPhoto) > 0 }},
	{MessageTypeDeleteChatPhoto, func(m *Message) bool { return m.DeleteChatPhoto }},
	{MessageTypeGroupChatCreated, func(m *Message) bool { return m.GroupChatCreated }},
	{MessageTypeSupergroupChatCreated, func(m *Message) bool { return m.SupergroupChatCreated }},
	{MessageTypeChannelChatCreated, func(m *Message) bool { return m.ChannelChatCreated }},
	{MessageTypeMessageAutoDeleteTimerChanged, func(m *Message) bool { return m.MessageAutoDeleteTimerChanged != nil }},
	{MessageTypeMigrateToChatID, func(m *Message) bool { return m.MigrateToChatID != 0 }},
	{MessageTypeMigrateFromChatID, func(m *Message) bool { return m.MigrateFromChatID != 0 }},
	{MessageTypePinnedMessage, func(m *Message) bool { return m.PinnedMessage != nil }},
	{MessageTypeUsersShared, func(m *Message) bool { return m.UsersShared != nil }},
	{MessageTypeChatShared, func(m *Message) bool { return m.ChatShared != nil }},
	{MessageTypeConnectedWebsite, func(m *Message) bool { return m.ConnectedWebsite != "" }},
	{MessageTypeWriteAccessAllowed, func(m *Message) bool { return m.WriteAccessAllowed != nil }},
	{MessageTypeProximityAlertTriggered, func(m *Message) bool { return m.ProximityAlertTriggered != nil }},
	{MessageTypeBoostAdded, func(m *Message) bool { return m.BoostAdded != nil }},
	{MessageTypeForumTopicCreated, func(m *Message) bool { return m.ForumTopicCreated != nil }},
	{MessageTypeForumTopicEdited, func(m *Message) bool { return m.ForumTopicEdited != nil }},
	{MessageTypeForumTopicClosed, func(m *Message) bool { return m.ForumTopicClosed != nil }},
	{MessageTypeForumTopicReopened, func(m *Message) bool { return m.ForumTopicReopened != nil }},
	{MessageTypeGeneralForumTopicHidden, func(m *Message) bool { return m.GeneralForumTopicHidden != nil }},
	{MessageTypeGeneralForumTopicUnhidden, func(m *Message) bool { return m.GeneralForumTopicUnhidden != nil }},
	{MessageTypeGiveawayCreated, func(m *Message) bool { return m.GiveawayCreated != nil }},
	{MessageTypeGiveaway, func(m *Message) bool { return m.Giveaway != nil }},
	{MessageTypeGiveawayWinners, func(m *Message) bool { return m.GiveawayWinners != nil }},
	{MessageTypeGiveawayCompleted, func(m *Message) bool { return m.GiveawayCompleted != nil }},
	{MessageTypeVideoChatScheduled, func(m *Message) bool { return m.VideoChatScheduled != nil }},
	{MessageTypeVideoChatStarted, func(m *Message) bool { return m.VideoChatStarted != nil }},
	{MessageTypeVideoChatEnded, func(m *Message) bool { return m.VideoChatEnded != nil }},
	{MessageTypeVideoChatParticipantsInvited, func(m *Message) bool { return m.VideoChatParticipantsInvited != nil }},
	{MessageTypeWebAppData, func(m *Message) bool { return m.WebAppData != nil }},
}

// EffectiveMessageType returns the type of content of the message, or "" when
// nothing known is set.
func EffectiveMessageType(m *Message) string {
	if m == nil {
		return ""
	}
	for _, c := range messageTypeChecks {
		if c.set(m) {
			return c.kind
		}
	}
	return ""
}

// EffectiveMessageTypeOf is EffectiveMessageType for the effective message of an update.
func EffectiveMessageTypeOf(u *Update) string {
	return EffectiveMessageType(u.EffectiveMessage())
}

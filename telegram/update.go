package telegram

// Update kinds as they appear in allowed_updates and as the JSON field names of Update.
const (
	UpdateMessage              = "message"
	UpdateEditedMessage        = "edited_message"
	UpdateChannelPost          = "channel_post"
	UpdateEditedChannelPost    = "edited_channel_post"
	UpdateMessageReaction      = "message_reaction"
	UpdateMessageReactionCount = "message_reaction_count"
	UpdateInlineQuery          = "inline_query"
	UpdateChosenInlineResult   = "chosen_inline_result"
	UpdateCallbackQuery        = "callback_query"
	UpdateShippingQuery        = "shipping_query"
	UpdatePreCheckoutQuery     = "pre_checkout_query"
	UpdatePoll                 = "poll"
	UpdatePollAnswer           = "poll_answer"
	UpdateMyChatMember         = "my_chat_member"
	UpdateChatMember           = "chat_member"
	UpdateChatJoinRequest      = "chat_join_request"
	UpdateChatBoost            = "chat_boost"
	UpdateRemovedChatBoost     = "removed_chat_boost"
)

// AllUpdateTypes lists every update kind. Passing it as allowed_updates also
// subscribes to the kinds Telegram does not send by default.
var AllUpdateTypes = []string{
	UpdateMessage,
	UpdateEditedMessage,
	UpdateChannelPost,
	UpdateEditedChannelPost,
	UpdateMessageReaction,
	UpdateMessageReactionCount,
	UpdateInlineQuery,
	UpdateChosenInlineResult,
	UpdateCallbackQuery,
	UpdateShippingQuery,
	UpdatePreCheckoutQuery,
	UpdatePoll,
	UpdatePollAnswer,
	UpdateMyChatMember,
	UpdateChatMember,
	UpdateChatJoinRequest,
	UpdateChatBoost,
	UpdateRemovedChatBoost,
}

// Update represents an incoming update. At most one of the optional fields is set.
type Update struct {
	UpdateID             int64                        `json:"update_id"`
	Message              *Message                     `json:"message,omitempty"`
	EditedMessage        *Message                     `json:"edited_message,omitempty"`
	ChannelPost          *Message                     `json:"channel_post,omitempty"`
	EditedChannelPost    *Message                     `json:"edited_channel_post,omitempty"`
	MessageReaction      *MessageReactionUpdated      `json:"message_reaction,omitempty"`
	MessageReactionCount *MessageReactionCountUpdated `json:"message_reaction_count,omitempty"`
	InlineQuery          *InlineQuery                 `json:"inline_query,omitempty"`
	ChosenInlineResult   *ChosenInlineResult          `json:"chosen_inline_result,omitempty"`
	CallbackQuery        *CallbackQuery               `json:"callback_query,omitempty"`
	ShippingQuery        *ShippingQuery               `json:"shipping_query,omitempty"`
	PreCheckoutQuery     *PreCheckoutQuery            `json:"pre_checkout_query,omitempty"`
	Poll                 *Poll                        `json:"poll,omitempty"`
	PollAnswer           *PollAnswer                  `json:"poll_answer,omitempty"`
	MyChatMember         *ChatMemberUpdated           `json:"my_chat_member,omitempty"`
	ChatMember           *ChatMemberUpdated           `json:"chat_member,omitempty"`
	ChatJoinRequest      *ChatJoinRequest             `json:"chat_join_request,omitempty"`
	ChatBoost            *ChatBoostUpdated            `json:"chat_boost,omitempty"`
	RemovedChatBoost     *ChatBoostRemoved            `json:"removed_chat_boost,omitempty"`
}

// Type returns the update kind, or "" for an empty update.
func (u *Update) Type() string {
	switch {
	case u.Message != nil:
		return UpdateMessage
	case u.EditedMessage != nil:
		return UpdateEditedMessage
	case u.ChannelPost != nil:
		return UpdateChannelPost
	case u.EditedChannelPost != nil:
		return UpdateEditedChannelPost
	case u.MessageReaction != nil:
		return UpdateMessageReaction
	case u.MessageReactionCount != nil:
		return UpdateMessageReactionCount
	case u.InlineQuery != nil:
		return UpdateInlineQuery
	case u.ChosenInlineResult != nil:
		return UpdateChosenInlineResult
	case u.CallbackQuery != nil:
		return UpdateCallbackQuery
	case u.ShippingQuery != nil:
		return UpdateShippingQuery
	case u.PreCheckoutQuery != nil:
		return UpdatePreCheckoutQuery
	case u.Poll != nil:
		return UpdatePoll
	case u.PollAnswer != nil:
		return UpdatePollAnswer
	case u.MyChatMember != nil:
		return UpdateMyChatMember
	case u.ChatMember != nil:
		return UpdateChatMember
	case u.ChatJoinRequest != nil:
		return UpdateChatJoinRequest
	case u.ChatBoost != nil:
		return UpdateChatBoost
	case u.RemovedChatBoost != nil:
		return UpdateRemovedChatBoost
	}
	return ""
}

// EffectiveUser returns the user that sent the update, if any.
// Channel posts, polls and anonymous reaction counts have no effective user.
func (u *Update) EffectiveUser() *User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.EditedMessage != nil:
		return u.EditedMessage.From
	case u.InlineQuery != nil:
		return &u.InlineQuery.From
	case u.ChosenInlineResult != nil:
		return &u.ChosenInlineResult.From
	case u.CallbackQuery != nil:
		return &u.CallbackQuery.From
	case u.ShippingQuery != nil:
		return &u.ShippingQuery.From
	case u.PreCheckoutQuery != nil:
		return &u.PreCheckoutQuery.From
	case u.PollAnswer != nil:
		return u.PollAnswer.User
	case u.MyChatMember != nil:
		return &u.MyChatMember.From
	case u.ChatMember != nil:
		return &u.ChatMember.From
	case u.ChatJoinRequest != nil:
		return &u.ChatJoinRequest.From
	case u.MessageReaction != nil:
		return u.MessageReaction.User
	case u.ChatBoost != nil:
		return u.ChatBoost.Boost.Source.User
	case u.RemovedChatBoost != nil:
		return u.RemovedChatBoost.Source.User
	}
	return nil
}

// EffectiveChat returns the chat the update belongs to, if any.
// Inline queries, chosen inline results, shipping and pre-checkout queries,
// polls and poll answers have no effective chat.
func (u *Update) EffectiveChat() *Chat {
	switch {
	case u.Message != nil:
		return &u.Message.Chat
	case u.EditedMessage != nil:
		return &u.EditedMessage.Chat
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return &u.CallbackQuery.Message.Chat
	case u.ChannelPost != nil:
		return &u.ChannelPost.Chat
	case u.EditedChannelPost != nil:
		return &u.EditedChannelPost.Chat
	case u.MyChatMember != nil:
		return &u.MyChatMember.Chat
	case u.ChatMember != nil:
		return &u.ChatMember.Chat
	case u.ChatJoinRequest != nil:
		return &u.ChatJoinRequest.Chat
	case u.ChatBoost != nil:
		return &u.ChatBoost.Chat
	case u.RemovedChatBoost != nil:
		return &u.RemovedChatBoost.Chat
	case u.MessageReaction != nil:
		return &u.MessageReaction.Chat
	case u.MessageReactionCount != nil:
		return &u.MessageReactionCount.Chat
	}
	return nil
}

// EffectiveMessage returns the message contained in the update, if any.
// For callback queries the message is only returned when it is accessible.
func (u *Update) EffectiveMessage() *Message {
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.CallbackQuery != nil:
		if m := u.CallbackQuery.Message; m != nil && m.IsAccessible() {
			return m
		}
		return nil
	case u.ChannelPost != nil:
		return u.ChannelPost
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost
	}
	return nil
}

// Sender is either a user or a chat acting on behalf of a user.
type Sender struct {
	User *User
	Chat *Chat
}

// ID returns the sender's user or chat id.
func (s Sender) ID() int64 {
	if s.Chat != nil {
		return s.Chat.ID
	}
	if s.User != nil {
		return s.User.ID
	}
	return 0
}

// IsZero reports whether neither a user nor a chat is set.
func (s Sender) IsZero() bool { return s.User == nil && s.Chat == nil }

// EffectiveSender returns the sender of the update. A sender chat takes
// precedence over the user, e.g. for anonymous admins or channel posts.
func (u *Update) EffectiveSender() Sender {
	if m := u.EffectiveMessage(); m != nil && u.CallbackQuery == nil {
		if m.SenderChat != nil {
			return Sender{Chat: m.SenderChat}
		}
		return Sender{User: m.From}
	}
	switch {
	case u.PollAnswer != nil:
		if u.PollAnswer.VoterChat != nil {
			return Sender{Chat: u.PollAnswer.VoterChat}
		}
		return Sender{User: u.PollAnswer.User}
	case u.MessageReaction != nil:
		if u.MessageReaction.ActorChat != nil {
			return Sender{Chat: u.MessageReaction.ActorChat}
		}
		return Sender{User: u.MessageReaction.User}
	}
	return Sender{User: u.EffectiveUser()}
}

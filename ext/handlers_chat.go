package ext

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// ChatMemberUpdates selects which chat member updates a ChatMemberHandler handles.
type ChatMemberUpdates int

const (
	// MyChatMember selects changes of the bot's own membership.
	MyChatMember ChatMemberUpdates = iota
	// OtherChatMember selects changes of other members.
	OtherChatMember
	// AnyChatMember selects both.
	AnyChatMember
)

// ChatMemberHandler handles chat member updates, by default only those about
// the bot itself. ChatIDs restricts the chats.
type ChatMemberHandler struct {
	Updates     ChatMemberUpdates
	ChatIDs     []int64
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *ChatMemberHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok {
		return nil, false
	}
	var cm *telegram.ChatMemberUpdated
	switch h.Updates {
	case MyChatMember:
		cm = u.MyChatMember
	case OtherChatMember:
		cm = u.ChatMember
	default:
		cm = u.MyChatMember
		if cm == nil {
			cm = u.ChatMember
		}
	}
	if cm == nil {
		return nil, false
	}
	if len(h.ChatIDs) > 0 && !containsID(h.ChatIDs, cm.Chat.ID) {
		return nil, false
	}
	return nil, true
}

func (h *ChatMemberHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *ChatMemberHandler) Block() bool { return !h.NonBlocking }

// ChatJoinRequestHandler handles join requests. Without restrictions every
// request matches; otherwise the chat id or the requesting user's username
// must be listed. The restrictions are read on the first check.
type ChatJoinRequestHandler struct {
	ChatIDs     []int64
	Usernames   []string
	Callback    HandlerFunc
	NonBlocking bool

	filters idFilters
}

func (h *ChatJoinRequestHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok || u.ChatJoinRequest == nil {
		return nil, false
	}
	chats, users := h.filters.get(h.ChatIDs, nil, nil, h.Usernames)
	if chats.empty() && users.empty() {
		return nil, true
	}
	r := u.ChatJoinRequest
	if chats.match(r.Chat.ID, "") {
		return nil, true
	}
	return nil, users.match(0, r.From.Username)
}

func (h *ChatJoinRequestHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *ChatJoinRequestHandler) Block() bool { return !h.NonBlocking }

// ChatBoostUpdates selects which boost updates a ChatBoostHandler handles.
type ChatBoostUpdates int

const (
	// ChatBoostAdded selects added or changed boosts.
	ChatBoostAdded ChatBoostUpdates = iota
	// ChatBoostRemoved selects removed boosts.
	ChatBoostRemoved
	// AnyChatBoost selects both.
	AnyChatBoost
)

// ChatBoostHandler handles chat boost updates, optionally restricted to
// chats given by id or "@username". The restrictions are read on the first
// check.
type ChatBoostHandler struct {
	Updates     ChatBoostUpdates
	Chats       []string
	ChatIDs     []int64
	Callback    HandlerFunc
	NonBlocking bool

	filters idFilters
}

func (h *ChatBoostHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok {
		return nil, false
	}
	var chat *telegram.Chat
	switch {
	case u.ChatBoost != nil && h.Updates != ChatBoostRemoved:
		chat = &u.ChatBoost.Chat
	case u.RemovedChatBoost != nil && h.Updates != ChatBoostAdded:
		chat = &u.RemovedChatBoost.Chat
	default:
		return nil, false
	}
	f, _ := h.filters.get(h.ChatIDs, h.Chats, nil, nil)
	return nil, f.empty() || f.match(chat.ID, chat.Username)
}

func (h *ChatBoostHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *ChatBoostHandler) Block() bool { return !h.NonBlocking }

// MessageReactionUpdates selects which reaction updates a MessageReactionHandler accepts.
type MessageReactionUpdates int

const (
	// AnyMessageReaction selects both reaction kinds.
	AnyMessageReaction MessageReactionUpdates = iota
	// MessageReactionUpdated selects reactions of known users.
	MessageReactionUpdated
	// MessageReactionCountUpdated selects anonymous reaction counts.
	MessageReactionCountUpdated
)

// MessageReactionHandler handles reaction changes, optionally restricted to
// chats and users given by id or "@username". Anonymous count updates have
// no user, so user restrictions require Updates == MessageReactionUpdated.
// The restrictions are read on the first check.
type MessageReactionHandler struct {
	Updates     MessageReactionUpdates
	Chats       []string
	ChatIDs     []int64
	Users       []string
	UserIDs     []int64
	Callback    HandlerFunc
	NonBlocking bool

	filters idFilters
}

func (h *MessageReactionHandler) Validate() error {
	hasUsers := len(h.Users) > 0 || len(h.UserIDs) > 0
	if hasUsers && h.Updates != MessageReactionUpdated {
		return fmt.Errorf("ext: MessageReactionHandler user restrictions need Updates == MessageReactionUpdated")
	}
	if h.Callback == nil {
		return errNoCallback
	}
	return nil
}

func (h *MessageReactionHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok {
		return nil, false
	}
	var (
		chat *telegram.Chat
		user *telegram.User
	)
	switch {
	case u.MessageReaction != nil && h.Updates != MessageReactionCountUpdated:
		chat, user = &u.MessageReaction.Chat, u.MessageReaction.User
	case u.MessageReactionCount != nil && h.Updates != MessageReactionUpdated:
		chat = &u.MessageReactionCount.Chat
	default:
		return nil, false
	}

	chats, users := h.filters.get(h.ChatIDs, h.Chats, h.UserIDs, h.Users)
	if chats.empty() && users.empty() {
		return nil, true
	}
	if chats.match(chat.ID, chat.Username) {
		return nil, true
	}
	return nil, user != nil && users.match(user.ID, user.Username)
}

func (h *MessageReactionHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *MessageReactionHandler) Block() bool { return !h.NonBlocking }

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

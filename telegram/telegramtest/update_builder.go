package telegramtest

import (
	"strings"
	"sync/atomic"
	"time"

	"gitlab.com/yelinaung/tgbot/telegram"
)

var lastUpdateID atomic.Int64

// NextUpdateID returns a process-wide increasing update id.
func NextUpdateID() int64 {
	return lastUpdateID.Add(1)
}

// TestUser returns the default user sending test updates.
func TestUser(userID int64) telegram.User {
	return telegram.User{
		ID:        userID,
		FirstName: "Test",
		LastName:  "User",
		Username:  "testuser",
	}
}

// TestChat returns a chat of the given type. Negative ids make sense for groups.
func TestChat(chatID int64, chatType string) telegram.Chat {
	c := telegram.Chat{ID: chatID, Type: chatType}
	if chatType == telegram.ChatTypePrivate {
		c.FirstName = "Test"
		c.LastName = "User"
		c.Username = "testuser"
	} else {
		c.Title = "Test Chat"
	}
	return c
}

// UpdateBuilder helps construct test Update objects.
type UpdateBuilder struct {
	update *telegram.Update
}

// NewUpdateBuilder creates a new UpdateBuilder with a fresh update id.
func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{
		update: &telegram.Update{UpdateID: NextUpdateID()},
	}
}

// WithUpdateID overrides the update id.
func (b *UpdateBuilder) WithUpdateID(id int64) *UpdateBuilder {
	b.update.UpdateID = id
	return b
}

func newMessage(chatID, userID int64, text string) *telegram.Message {
	user := TestUser(userID)
	msg := &telegram.Message{
		MessageID: 1,
		Date:      time.Now().Unix(),
		Chat:      TestChat(chatID, telegram.ChatTypePrivate),
		From:      &user,
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []telegram.MessageEntity{
			{Type: telegram.EntityBotCommand, Offset: 0, Length: telegram.UTF16Len(cmd)},
		}
	}
	return msg
}

// WithMessage sets a message on the update. Text starting with "/" gets a
// bot_command entity like real clients send.
func (b *UpdateBuilder) WithMessage(chatID, userID int64, text string) *UpdateBuilder {
	b.update.Message = newMessage(chatID, userID, text)
	return b
}

// WithEditedMessage sets an edited message on the update.
func (b *UpdateBuilder) WithEditedMessage(chatID, userID int64, text string) *UpdateBuilder {
	msg := newMessage(chatID, userID, text)
	msg.EditDate = msg.Date
	b.update.EditedMessage = msg
	return b
}

// WithChannelPost sets a channel post on the update. Channel posts have no sender.
func (b *UpdateBuilder) WithChannelPost(chatID int64, text string) *UpdateBuilder {
	msg := newMessage(chatID, 0, text)
	msg.From = nil
	msg.Chat = TestChat(chatID, telegram.ChatTypeChannel)
	msg.SenderChat = &msg.Chat
	b.update.ChannelPost = msg
	return b
}

// message returns the message-like payload being built, creating a message if none.
func (b *UpdateBuilder) message() *telegram.Message {
	switch {
	case b.update.Message != nil:
		return b.update.Message
	case b.update.EditedMessage != nil:
		return b.update.EditedMessage
	case b.update.ChannelPost != nil:
		return b.update.ChannelPost
	case b.update.CallbackQuery != nil && b.update.CallbackQuery.Message != nil:
		return b.update.CallbackQuery.Message
	}
	b.WithMessage(0, 0, "")
	return b.update.Message
}

// WithMessageID sets a custom message ID.
func (b *UpdateBuilder) WithMessageID(messageID int) *UpdateBuilder {
	b.message().MessageID = messageID
	return b
}

// WithChatType changes the type of the message chat.
func (b *UpdateBuilder) WithChatType(chatType string) *UpdateBuilder {
	msg := b.message()
	msg.Chat = TestChat(msg.Chat.ID, chatType)
	return b
}

// WithFrom sets custom user details on the message or callback query.
func (b *UpdateBuilder) WithFrom(userID int64, username, firstName, lastName string) *UpdateBuilder {
	user := telegram.User{
		ID:        userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}
	if b.update.Message != nil {
		b.update.Message.From = &user
	}
	if b.update.CallbackQuery != nil {
		b.update.CallbackQuery.From = user
	}
	return b
}

// WithCaption sets a caption on the message.
func (b *UpdateBuilder) WithCaption(caption string) *UpdateBuilder {
	b.message().Caption = caption
	return b
}

// WithEntities replaces the entities of the message text.
func (b *UpdateBuilder) WithEntities(entities ...telegram.MessageEntity) *UpdateBuilder {
	b.message().Entities = entities
	return b
}

// WithCallbackQuery sets a callback query on the update.
func (b *UpdateBuilder) WithCallbackQuery(
	callbackID string,
	chatID, userID int64,
	messageID int,
	data string,
) *UpdateBuilder {
	b.update.CallbackQuery = &telegram.CallbackQuery{
		ID:           callbackID,
		From:         TestUser(userID),
		ChatInstance: "instance",
		Message: &telegram.Message{
			MessageID: messageID,
			Date:      time.Now().Unix(),
			Chat:      TestChat(chatID, telegram.ChatTypePrivate),
		},
		Data: data,
	}
	return b
}

// WithInlineCallbackQuery sets a callback query from a button of an inline message.
func (b *UpdateBuilder) WithInlineCallbackQuery(callbackID string, userID int64, inlineMessageID, data string) *UpdateBuilder {
	b.update.CallbackQuery = &telegram.CallbackQuery{
		ID:              callbackID,
		From:            TestUser(userID),
		ChatInstance:    "instance",
		InlineMessageID: inlineMessageID,
		Data:            data,
	}
	return b
}

// WithReplyMarkup attaches an inline keyboard to the message.
func (b *UpdateBuilder) WithReplyMarkup(kb *telegram.InlineKeyboardMarkup) *UpdateBuilder {
	b.message().ReplyMarkup = kb
	return b
}

// WithPhoto adds a photo to the message.
func (b *UpdateBuilder) WithPhoto(fileID string) *UpdateBuilder {
	b.message().Photo = []telegram.PhotoSize{
		{
			FileID:       fileID + "_small",
			FileUniqueID: fileID + "_small_unique",
			Width:        320,
			Height:       240,
		},
		{
			FileID:       fileID,
			FileUniqueID: fileID + "_unique",
			Width:        1280,
			Height:       960,
		},
	}
	return b
}

// WithDocument adds a document to the message.
func (b *UpdateBuilder) WithDocument(fileID, fileName, mimeType string) *UpdateBuilder {
	b.message().Document = &telegram.Document{
		FileID:       fileID,
		FileUniqueID: fileID + "_unique",
		FileName:     fileName,
		MimeType:     mimeType,
	}
	return b
}

// WithVoice adds a voice message to the update.
func (b *UpdateBuilder) WithVoice(fileID string, duration int) *UpdateBuilder {
	b.message().Voice = &telegram.Voice{
		FileID:       fileID,
		FileUniqueID: fileID + "_unique",
		Duration:     duration,
		MimeType:     "audio/ogg",
	}
	return b
}

// WithReplyToMessage sets a reply-to message.
func (b *UpdateBuilder) WithReplyToMessage(messageID int, text string) *UpdateBuilder {
	msg := b.message()
	msg.ReplyToMessage = &telegram.Message{
		MessageID: messageID,
		Date:      msg.Date,
		Chat:      msg.Chat,
		Text:      text,
	}
	return b
}

// WithMigrateTo turns the message into a group-to-supergroup migration notice.
func (b *UpdateBuilder) WithMigrateTo(newChatID int64) *UpdateBuilder {
	b.message().MigrateToChatID = newChatID
	return b
}

// WithInlineQuery sets an inline query on the update.
func (b *UpdateBuilder) WithInlineQuery(queryID string, userID int64, query string) *UpdateBuilder {
	b.update.InlineQuery = &telegram.InlineQuery{
		ID:       queryID,
		From:     TestUser(userID),
		Query:    query,
		ChatType: telegram.ChatTypePrivate,
	}
	return b
}

// WithChosenInlineResult sets a chosen inline result on the update.
func (b *UpdateBuilder) WithChosenInlineResult(resultID string, userID int64, query string) *UpdateBuilder {
	b.update.ChosenInlineResult = &telegram.ChosenInlineResult{
		ResultID: resultID,
		From:     TestUser(userID),
		Query:    query,
	}
	return b
}

// WithPoll sets a poll state update.
func (b *UpdateBuilder) WithPoll(poll telegram.Poll) *UpdateBuilder {
	b.update.Poll = &poll
	return b
}

// WithPollAnswer sets a non-anonymous poll answer.
func (b *UpdateBuilder) WithPollAnswer(pollID string, userID int64, optionIDs ...int) *UpdateBuilder {
	user := TestUser(userID)
	b.update.PollAnswer = &telegram.PollAnswer{
		PollID:    pollID,
		User:      &user,
		OptionIDs: optionIDs,
	}
	return b
}

func chatMemberUpdated(chatID, userID int64, oldStatus, newStatus string) *telegram.ChatMemberUpdated {
	user := TestUser(userID)
	return &telegram.ChatMemberUpdated{
		Chat:          TestChat(chatID, telegram.ChatTypeSupergroup),
		From:          user,
		Date:          time.Now().Unix(),
		OldChatMember: telegram.ChatMember{Status: oldStatus, User: user},
		NewChatMember: telegram.ChatMember{Status: newStatus, User: user},
	}
}

// WithChatMember sets a chat_member update for the user.
func (b *UpdateBuilder) WithChatMember(chatID, userID int64, oldStatus, newStatus string) *UpdateBuilder {
	b.update.ChatMember = chatMemberUpdated(chatID, userID, oldStatus, newStatus)
	return b
}

// WithMyChatMember sets a my_chat_member update.
func (b *UpdateBuilder) WithMyChatMember(chatID, userID int64, oldStatus, newStatus string) *UpdateBuilder {
	b.update.MyChatMember = chatMemberUpdated(chatID, userID, oldStatus, newStatus)
	return b
}

// WithChatJoinRequest sets a join request update.
func (b *UpdateBuilder) WithChatJoinRequest(chatID, userID int64) *UpdateBuilder {
	b.update.ChatJoinRequest = &telegram.ChatJoinRequest{
		Chat:       TestChat(chatID, telegram.ChatTypeSupergroup),
		From:       TestUser(userID),
		UserChatID: userID,
		Date:       time.Now().Unix(),
	}
	return b
}

// WithChatBoost sets a chat_boost update from a premium subscriber.
func (b *UpdateBuilder) WithChatBoost(chatID, userID int64, boostID string) *UpdateBuilder {
	user := TestUser(userID)
	now := time.Now()
	b.update.ChatBoost = &telegram.ChatBoostUpdated{
		Chat: TestChat(chatID, telegram.ChatTypeChannel),
		Boost: telegram.ChatBoost{
			BoostID:        boostID,
			AddDate:        now.Unix(),
			ExpirationDate: now.AddDate(0, 1, 0).Unix(),
			Source:         telegram.ChatBoostSource{Source: telegram.BoostSourcePremium, User: &user},
		},
	}
	return b
}

// WithRemovedChatBoost sets a removed_chat_boost update.
func (b *UpdateBuilder) WithRemovedChatBoost(chatID, userID int64, boostID string) *UpdateBuilder {
	user := TestUser(userID)
	b.update.RemovedChatBoost = &telegram.ChatBoostRemoved{
		Chat:       TestChat(chatID, telegram.ChatTypeChannel),
		BoostID:    boostID,
		RemoveDate: time.Now().Unix(),
		Source:     telegram.ChatBoostSource{Source: telegram.BoostSourcePremium, User: &user},
	}
	return b
}

// WithMessageReaction sets a message_reaction update by a user.
func (b *UpdateBuilder) WithMessageReaction(chatID, userID int64, messageID int, emoji string) *UpdateBuilder {
	user := TestUser(userID)
	b.update.MessageReaction = &telegram.MessageReactionUpdated{
		Chat:        TestChat(chatID, telegram.ChatTypeSupergroup),
		MessageID:   messageID,
		User:        &user,
		Date:        time.Now().Unix(),
		OldReaction: []telegram.ReactionType{},
		NewReaction: []telegram.ReactionType{telegram.EmojiReaction(emoji)},
	}
	return b
}

// WithMessageReactionCount sets an anonymous message_reaction_count update.
func (b *UpdateBuilder) WithMessageReactionCount(chatID int64, messageID int, emoji string, count int) *UpdateBuilder {
	b.update.MessageReactionCount = &telegram.MessageReactionCountUpdated{
		Chat:      TestChat(chatID, telegram.ChatTypeChannel),
		MessageID: messageID,
		Date:      time.Now().Unix(),
		Reactions: []telegram.ReactionCount{{Type: telegram.EmojiReaction(emoji), TotalCount: count}},
	}
	return b
}

// WithShippingQuery sets a shipping query.
func (b *UpdateBuilder) WithShippingQuery(queryID string, userID int64, payload string) *UpdateBuilder {
	b.update.ShippingQuery = &telegram.ShippingQuery{
		ID:             queryID,
		From:           TestUser(userID),
		InvoicePayload: payload,
		ShippingAddress: telegram.ShippingAddress{
			CountryCode: "SG",
			City:        "Singapore",
			StreetLine1: "1 Test Road",
			PostCode:    "123456",
		},
	}
	return b
}

// WithPreCheckoutQuery sets a pre-checkout query.
func (b *UpdateBuilder) WithPreCheckoutQuery(queryID string, userID int64, payload, currency string, amount int64) *UpdateBuilder {
	b.update.PreCheckoutQuery = &telegram.PreCheckoutQuery{
		ID:             queryID,
		From:           TestUser(userID),
		Currency:       currency,
		TotalAmount:    amount,
		InvoicePayload: payload,
	}
	return b
}

// Build returns the constructed Update.
func (b *UpdateBuilder) Build() *telegram.Update {
	return b.update
}

// MessageUpdate creates a simple text message update.
func MessageUpdate(chatID, userID int64, text string) *telegram.Update {
	return NewUpdateBuilder().WithMessage(chatID, userID, text).Build()
}

// CommandUpdate creates a command message update.
func CommandUpdate(chatID, userID int64, command string) *telegram.Update {
	if !strings.HasPrefix(command, "/") {
		command = "/" + command
	}
	return MessageUpdate(chatID, userID, command)
}

// CallbackQueryUpdate creates a callback query update.
func CallbackQueryUpdate(chatID, userID int64, messageID int, data string) *telegram.Update {
	return NewUpdateBuilder().
		WithCallbackQuery("callback123", chatID, userID, messageID, data).
		Build()
}

// PhotoUpdate creates a photo message update.
func PhotoUpdate(chatID, userID int64, fileID, caption string) *telegram.Update {
	return NewUpdateBuilder().
		WithMessage(chatID, userID, "").
		WithPhoto(fileID).
		WithCaption(caption).
		Build()
}

// VoiceUpdate creates a voice message update.
func VoiceUpdate(chatID, userID int64, fileID string, duration int) *telegram.Update {
	return NewUpdateBuilder().
		WithMessage(chatID, userID, "").
		WithVoice(fileID, duration).
		Build()
}

// PollAnswerUpdate creates a poll answer update.
func PollAnswerUpdate(pollID string, userID int64, optionIDs ...int) *telegram.Update {
	return NewUpdateBuilder().WithPollAnswer(pollID, userID, optionIDs...).Build()
}

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SendOptions are the parameters shared by the send* methods.
type SendOptions struct {
	MessageThreadID     int              `json:"message_thread_id,omitempty"`
	DisableNotification bool             `json:"disable_notification,omitempty"`
	ProtectContent      bool             `json:"protect_content,omitempty"`
	ReplyParameters     *ReplyParameters `json:"reply_parameters,omitempty"`
	ReplyMarkup         ReplyMarkup      `json:"reply_markup,omitempty"`
}

func (o *SendOptions) markup() ReplyMarkup     { return o.ReplyMarkup }
func (o *SendOptions) setMarkup(m ReplyMarkup) { o.ReplyMarkup = m }

// ReplyTo returns options replying to the given message id.
func ReplyTo(messageID int) SendOptions {
	return SendOptions{ReplyParameters: &ReplyParameters{MessageID: messageID}}
}

// GetMe returns the bot user and caches it for Me and Username.
func (b *Bot) GetMe(ctx context.Context) (*User, error) {
	me, err := do[User](ctx, b, "getMe", nil, 0)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.me = me
	b.mu.Unlock()
	return me, nil
}

// LogOut logs the bot out from the cloud Bot API server.
func (b *Bot) LogOut(ctx context.Context) error {
	return b.Call(ctx, "logOut", nil, nil)
}

// Close closes the bot instance before moving it to another local server.
func (b *Bot) Close(ctx context.Context) error {
	return b.Call(ctx, "close", nil, nil)
}

// GetUpdatesRequest is the request body for getUpdates.
type GetUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Timeout        int      `json:"timeout,omitempty"`
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

// GetUpdates receives incoming updates using long polling. Arbitrary callback
// data of the returned updates is resolved when a processor is installed.
func (b *Bot) GetUpdates(ctx context.Context, r *GetUpdatesRequest) ([]Update, error) {
	var extra time.Duration
	if r != nil {
		extra = time.Duration(r.Timeout) * time.Second
	}
	updates, err := do[[]Update](ctx, b, "getUpdates", r, extra)
	if err != nil {
		return nil, err
	}
	for i := range *updates {
		b.ResolveCallbackData(&(*updates)[i])
	}
	return *updates, nil
}

// ResolveCallbackData restores arbitrary callback data on an incoming update.
func (b *Bot) ResolveCallbackData(u *Update) {
	if p := b.callbackDataProcessor(); p != nil {
		p.ProcessUpdate(u)
	}
}

// SetWebhookRequest is the request body for setWebhook.
type SetWebhookRequest struct {
	URL                string     `json:"url"`
	Certificate        *InputFile `json:"certificate,omitempty"`
	IPAddress          string     `json:"ip_address,omitempty"`
	MaxConnections     int        `json:"max_connections,omitempty"`
	AllowedUpdates     []string   `json:"allowed_updates,omitempty"`
	DropPendingUpdates bool       `json:"drop_pending_updates,omitempty"`
	SecretToken        string     `json:"secret_token,omitempty"`
}

func (r *SetWebhookRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"certificate": r.Certificate}
}

// SetWebhook registers an outgoing webhook.
func (b *Bot) SetWebhook(ctx context.Context, r *SetWebhookRequest) error {
	return b.Call(ctx, "setWebhook", r, nil)
}

// DeleteWebhook removes the webhook, optionally dropping pending updates.
func (b *Bot) DeleteWebhook(ctx context.Context, dropPendingUpdates bool) error {
	params := map[string]any{}
	if dropPendingUpdates {
		params["drop_pending_updates"] = true
	}
	return b.Call(ctx, "deleteWebhook", params, nil)
}

// GetWebhookInfo returns the current webhook status.
func (b *Bot) GetWebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	return do[WebhookInfo](ctx, b, "getWebhookInfo", nil, 0)
}

func (b *Bot) sendMessageLike(ctx context.Context, method string, r any) (*Message, error) {
	msg, err := do[Message](ctx, b, method, r, 0)
	if err != nil {
		return nil, err
	}
	b.restoreCallbackData(msg)
	return msg, nil
}

// SendMessageRequest is the request body for sendMessage.
type SendMessageRequest struct {
	ChatID             ChatID              `json:"chat_id"`
	Text               string              `json:"text"`
	ParseMode          string              `json:"parse_mode,omitempty"`
	Entities           []MessageEntity     `json:"entities,omitempty"`
	LinkPreviewOptions *LinkPreviewOptions `json:"link_preview_options,omitempty"`
	SendOptions
}

// SendMessage sends a text message.
func (b *Bot) SendMessage(ctx context.Context, r *SendMessageRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendMessage", r)
}

// SendText is a shortcut for SendMessage with a numeric chat id.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) (*Message, error) {
	return b.SendMessage(ctx, &SendMessageRequest{ChatID: ChatIDFromInt(chatID), Text: text})
}

// ForwardMessageRequest is the request body for forwardMessage.
type ForwardMessageRequest struct {
	ChatID              ChatID `json:"chat_id"`
	FromChatID          ChatID `json:"from_chat_id"`
	MessageID           int    `json:"message_id"`
	MessageThreadID     int    `json:"message_thread_id,omitempty"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
	ProtectContent      bool   `json:"protect_content,omitempty"`
}

// ForwardMessage forwards a message.
func (b *Bot) ForwardMessage(ctx context.Context, r *ForwardMessageRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "forwardMessage", r)
}

// CopyMessageRequest is the request body for copyMessage.
type CopyMessageRequest struct {
	ChatID          ChatID          `json:"chat_id"`
	FromChatID      ChatID          `json:"from_chat_id"`
	MessageID       int             `json:"message_id"`
	Caption         *string         `json:"caption,omitempty"`
	ParseMode       string          `json:"parse_mode,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`
	SendOptions
}

// CopyMessage copies a message without a link to the original. It returns the id of the copy.
func (b *Bot) CopyMessage(ctx context.Context, r *CopyMessageRequest) (*MessageID, error) {
	return do[MessageID](ctx, b, "copyMessage", r, 0)
}

// SendPhotoRequest is the request body for sendPhoto.
type SendPhotoRequest struct {
	ChatID          ChatID          `json:"chat_id"`
	Photo           *InputFile      `json:"photo"`
	Caption         string          `json:"caption,omitempty"`
	ParseMode       string          `json:"parse_mode,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`
	HasSpoiler      bool            `json:"has_spoiler,omitempty"`
	SendOptions
}

func (r *SendPhotoRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"photo": r.Photo}
}

// SendPhoto sends a photo.
func (b *Bot) SendPhoto(ctx context.Context, r *SendPhotoRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendPhoto", r)
}

// SendAudioRequest is the request body for sendAudio.
type SendAudioRequest struct {
	ChatID          ChatID          `json:"chat_id"`
	Audio           *InputFile      `json:"audio"`
	Caption         string          `json:"caption,omitempty"`
	ParseMode       string          `json:"parse_mode,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`
	Duration        int             `json:"duration,omitempty"`
	Performer       string          `json:"performer,omitempty"`
	Title           string          `json:"title,omitempty"`
	Thumbnail       *InputFile      `json:"thumbnail,omitempty"`
	SendOptions
}

func (r *SendAudioRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"audio": r.Audio, "thumbnail": r.Thumbnail}
}

// SendAudio sends an audio file to be displayed in the music player.
func (b *Bot) SendAudio(ctx context.Context, r *SendAudioRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendAudio", r)
}

// SendDocumentRequest is the request body for sendDocument.
type SendDocumentRequest struct {
	ChatID                      ChatID          `json:"chat_id"`
	Document                    *InputFile      `json:"document"`
	Thumbnail                   *InputFile      `json:"thumbnail,omitempty"`
	Caption                     string          `json:"caption,omitempty"`
	ParseMode                   string          `json:"parse_mode,omitempty"`
	CaptionEntities             []MessageEntity `json:"caption_entities,omitempty"`
	DisableContentTypeDetection bool            `json:"disable_content_type_detection,omitempty"`
	SendOptions
}

func (r *SendDocumentRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"document": r.Document, "thumbnail": r.Thumbnail}
}

// SendDocument sends a general file.
func (b *Bot) SendDocument(ctx context.Context, r *SendDocumentRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendDocument", r)
}

// SendVideoRequest is the request body for sendVideo.
type SendVideoRequest struct {
	ChatID            ChatID          `json:"chat_id"`
	Video             *InputFile      `json:"video"`
	Duration          int             `json:"duration,omitempty"`
	Width             int             `json:"width,omitempty"`
	Height            int             `json:"height,omitempty"`
	Thumbnail         *InputFile      `json:"thumbnail,omitempty"`
	Caption           string          `json:"caption,omitempty"`
	ParseMode         string          `json:"parse_mode,omitempty"`
	CaptionEntities   []MessageEntity `json:"caption_entities,omitempty"`
	HasSpoiler        bool            `json:"has_spoiler,omitempty"`
	SupportsStreaming bool            `json:"supports_streaming,omitempty"`
	SendOptions
}

func (r *SendVideoRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"video": r.Video, "thumbnail": r.Thumbnail}
}

// SendVideo sends a video.
func (b *Bot) SendVideo(ctx context.Context, r *SendVideoRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendVideo", r)
}

// SendVoiceRequest is the request body for sendVoice.
type SendVoiceRequest struct {
	ChatID          ChatID          `json:"chat_id"`
	Voice           *InputFile      `json:"voice"`
	Caption         string          `json:"caption,omitempty"`
	ParseMode       string          `json:"parse_mode,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`
	Duration        int             `json:"duration,omitempty"`
	SendOptions
}

func (r *SendVoiceRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"voice": r.Voice}
}

// SendVoice sends a voice note.
func (b *Bot) SendVoice(ctx context.Context, r *SendVoiceRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendVoice", r)
}

// SendAnimationRequest is the request body for sendAnimation.
type SendAnimationRequest struct {
	ChatID          ChatID          `json:"chat_id"`
	Animation       *InputFile      `json:"animation"`
	Duration        int             `json:"duration,omitempty"`
	Width           int             `json:"width,omitempty"`
	Height          int             `json:"height,omitempty"`
	Thumbnail       *InputFile      `json:"thumbnail,omitempty"`
	Caption         string          `json:"caption,omitempty"`
	ParseMode       string          `json:"parse_mode,omitempty"`
	CaptionEntities []MessageEntity `json:"caption_entities,omitempty"`
	HasSpoiler      bool            `json:"has_spoiler,omitempty"`
	SendOptions
}

func (r *SendAnimationRequest) files() map[string]*InputFile {
	return map[string]*InputFile{"animation": r.Animation, "thumbnail": r.Thumbnail}
}

// SendAnimation sends an animation.
func (b *Bot) SendAnimation(ctx context.Context, r *SendAnimationRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendAnimation", r)
}

// SendLocationRequest is the request body for sendLocation.
type SendLocationRequest struct {
	ChatID               ChatID  `json:"chat_id"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	HorizontalAccuracy   float64 `json:"horizontal_accuracy,omitempty"`
	LivePeriod           int     `json:"live_period,omitempty"`
	Heading              int     `json:"heading,omitempty"`
	ProximityAlertRadius int     `json:"proximity_alert_radius,omitempty"`
	SendOptions
}

// SendLocation sends a point on the map.
func (b *Bot) SendLocation(ctx context.Context, r *SendLocationRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendLocation", r)
}

// SendVenueRequest is the request body for sendVenue.
type SendVenueRequest struct {
	ChatID          ChatID  `json:"chat_id"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Title           string  `json:"title"`
	Address         string  `json:"address"`
	FoursquareID    string  `json:"foursquare_id,omitempty"`
	FoursquareType  string  `json:"foursquare_type,omitempty"`
	GooglePlaceID   string  `json:"google_place_id,omitempty"`
	GooglePlaceType string  `json:"google_place_type,omitempty"`
	SendOptions
}

// SendVenue sends information about a venue.
func (b *Bot) SendVenue(ctx context.Context, r *SendVenueRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendVenue", r)
}

// SendContactRequest is the request body for sendContact.
type SendContactRequest struct {
	ChatID      ChatID `json:"chat_id"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	VCard       string `json:"vcard,omitempty"`
	SendOptions
}

// SendContact sends a phone contact.
func (b *Bot) SendContact(ctx context.Context, r *SendContactRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendContact", r)
}

// SendPollRequest is the request body for sendPoll.
type SendPollRequest struct {
	ChatID                ChatID            `json:"chat_id"`
	Question              string            `json:"question"`
	Options               []InputPollOption `json:"options"`
	IsAnonymous           *bool             `json:"is_anonymous,omitempty"`
	Type                  string            `json:"type,omitempty"`
	AllowsMultipleAnswers bool              `json:"allows_multiple_answers,omitempty"`
	CorrectOptionID       *int              `json:"correct_option_id,omitempty"`
	Explanation           string            `json:"explanation,omitempty"`
	ExplanationParseMode  string            `json:"explanation_parse_mode,omitempty"`
	OpenPeriod            int               `json:"open_period,omitempty"`
	CloseDate             int64             `json:"close_date,omitempty"`
	IsClosed              bool              `json:"is_closed,omitempty"`
	SendOptions
}

// PollOptions converts plain strings to poll options.
func PollOptions(texts ...string) []InputPollOption {
	out := make([]InputPollOption, 0, len(texts))
	for _, t := range texts {
		out = append(out, InputPollOption{Text: t})
	}
	return out
}

// SendPoll sends a native poll.
func (b *Bot) SendPoll(ctx context.Context, r *SendPollRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendPoll", r)
}

// StopPoll stops a poll sent by the bot and returns the final results.
func (b *Bot) StopPoll(ctx context.Context, chatID ChatID, messageID int, markup *InlineKeyboardMarkup) (*Poll, error) {
	r := &editMarkupRequest{ChatID: &chatID, MessageID: messageID, ReplyMarkup: markup}
	return do[Poll](ctx, b, "stopPoll", r, 0)
}

// SendDiceRequest is the request body for sendDice.
type SendDiceRequest struct {
	ChatID ChatID `json:"chat_id"`
	Emoji  string `json:"emoji,omitempty"`
	SendOptions
}

// SendDice sends an animated emoji with a random value.
func (b *Bot) SendDice(ctx context.Context, r *SendDiceRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendDice", r)
}

// Chat actions.
const (
	ActionTyping          = "typing"
	ActionUploadPhoto     = "upload_photo"
	ActionRecordVideo     = "record_video"
	ActionUploadVideo     = "upload_video"
	ActionRecordVoice     = "record_voice"
	ActionUploadVoice     = "upload_voice"
	ActionUploadDocument  = "upload_document"
	ActionChooseSticker   = "choose_sticker"
	ActionFindLocation    = "find_location"
	ActionRecordVideoNote = "record_video_note"
	ActionUploadVideoNote = "upload_video_note"
)

// SendChatAction tells the user that something is happening on the bot's side.
func (b *Bot) SendChatAction(ctx context.Context, chatID ChatID, action string) error {
	return b.Call(ctx, "sendChatAction", map[string]any{"chat_id": chatID, "action": action}, nil)
}

// SetMessageReaction changes the bot's reactions on a message.
func (b *Bot) SetMessageReaction(ctx context.Context, chatID ChatID, messageID int, reactions []ReactionType, isBig bool) error {
	params := map[string]any{"chat_id": chatID, "message_id": messageID, "reaction": reactions}
	if isBig {
		params["is_big"] = true
	}
	return b.Call(ctx, "setMessageReaction", params, nil)
}

// EditTarget addresses the message to edit: either a chat message or an inline message.
type EditTarget struct {
	ChatID          *ChatID `json:"chat_id,omitempty"`
	MessageID       int     `json:"message_id,omitempty"`
	InlineMessageID string  `json:"inline_message_id,omitempty"`
}

// ChatMessage targets a message in a chat.
func ChatMessage(chatID int64, messageID int) EditTarget {
	id := ChatIDFromInt(chatID)
	return EditTarget{ChatID: &id, MessageID: messageID}
}

// InlineMessage targets a message sent via inline mode.
func InlineMessage(inlineMessageID string) EditTarget {
	return EditTarget{InlineMessageID: inlineMessageID}
}

// EditMessageTextRequest is the request body for editMessageText.
type EditMessageTextRequest struct {
	EditTarget
	Text               string                `json:"text"`
	ParseMode          string                `json:"parse_mode,omitempty"`
	Entities           []MessageEntity       `json:"entities,omitempty"`
	LinkPreviewOptions *LinkPreviewOptions   `json:"link_preview_options,omitempty"`
	ReplyMarkup        *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (r *EditMessageTextRequest) markup() ReplyMarkup { return inlineMarkup(r.ReplyMarkup) }
func (r *EditMessageTextRequest) setMarkup(m ReplyMarkup) {
	r.ReplyMarkup, _ = m.(*InlineKeyboardMarkup)
}

// EditMessageText edits a text message. Editing an inline message returns a nil message.
func (b *Bot) EditMessageText(ctx context.Context, r *EditMessageTextRequest) (*Message, error) {
	return b.editMessage(ctx, "editMessageText", r)
}

// EditMessageCaptionRequest is the request body for editMessageCaption.
type EditMessageCaptionRequest struct {
	EditTarget
	Caption         string                `json:"caption,omitempty"`
	ParseMode       string                `json:"parse_mode,omitempty"`
	CaptionEntities []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup     *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (r *EditMessageCaptionRequest) markup() ReplyMarkup { return inlineMarkup(r.ReplyMarkup) }
func (r *EditMessageCaptionRequest) setMarkup(m ReplyMarkup) {
	r.ReplyMarkup, _ = m.(*InlineKeyboardMarkup)
}

// EditMessageCaption edits the caption of a message.
func (b *Bot) EditMessageCaption(ctx context.Context, r *EditMessageCaptionRequest) (*Message, error) {
	return b.editMessage(ctx, "editMessageCaption", r)
}

type editMarkupRequest struct {
	ChatID          *ChatID               `json:"chat_id,omitempty"`
	MessageID       int                   `json:"message_id,omitempty"`
	InlineMessageID string                `json:"inline_message_id,omitempty"`
	ReplyMarkup     *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (r *editMarkupRequest) markup() ReplyMarkup { return inlineMarkup(r.ReplyMarkup) }
func (r *editMarkupRequest) setMarkup(m ReplyMarkup) {
	r.ReplyMarkup, _ = m.(*InlineKeyboardMarkup)
}

// EditMessageReplyMarkup replaces the inline keyboard of a message; nil removes it.
func (b *Bot) EditMessageReplyMarkup(ctx context.Context, target EditTarget, markup *InlineKeyboardMarkup) (*Message, error) {
	r := &editMarkupRequest{
		ChatID:          target.ChatID,
		MessageID:       target.MessageID,
		InlineMessageID: target.InlineMessageID,
		ReplyMarkup:     markup,
	}
	return b.editMessage(ctx, "editMessageReplyMarkup", r)
}

func inlineMarkup(m *InlineKeyboardMarkup) ReplyMarkup {
	if m == nil {
		return nil
	}
	return m
}

func (b *Bot) editMessage(ctx context.Context, method string, r any) (*Message, error) {
	raw, err := do[json.RawMessage](ctx, b, method, r, 0)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(bytes.TrimSpace(*raw), []byte("true")) {
		return nil, nil
	}
	var msg Message
	if err := json.Unmarshal(*raw, &msg); err != nil {
		return nil, fmt.Errorf("telegram: decode %s result: %w", method, err)
	}
	b.restoreCallbackData(&msg)
	return &msg, nil
}

// DeleteMessage deletes a message.
func (b *Bot) DeleteMessage(ctx context.Context, chatID ChatID, messageID int) error {
	return b.Call(ctx, "deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID}, nil)
}

// AnswerCallbackQueryRequest is the request body for answerCallbackQuery.
type AnswerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
	URL             string `json:"url,omitempty"`
	CacheTime       int    `json:"cache_time,omitempty"`
}

// AnswerCallbackQuery answers a callback query.
func (b *Bot) AnswerCallbackQuery(ctx context.Context, r *AnswerCallbackQueryRequest) error {
	return b.Call(ctx, "answerCallbackQuery", r, nil)
}

// AnswerInlineQueryRequest is the request body for answerInlineQuery.
type AnswerInlineQueryRequest struct {
	InlineQueryID string                    `json:"inline_query_id"`
	Results       []InlineQueryResult       `json:"results"`
	CacheTime     *int                      `json:"cache_time,omitempty"`
	IsPersonal    bool                      `json:"is_personal,omitempty"`
	NextOffset    string                    `json:"next_offset,omitempty"`
	Button        *InlineQueryResultsButton `json:"button,omitempty"`
}

// MaxInlineQueryResults is the number of results Telegram accepts per answer.
const MaxInlineQueryResults = 50

// AnswerInlineQuery sends answers to an inline query.
func (b *Bot) AnswerInlineQuery(ctx context.Context, r *AnswerInlineQueryRequest) error {
	if len(r.Results) > MaxInlineQueryResults {
		return fmt.Errorf("%w: at most %d inline query results are allowed, got %d",
			ErrBadRequest, MaxInlineQueryResults, len(r.Results))
	}
	return b.Call(ctx, "answerInlineQuery", r, nil)
}

// AnswerShippingQueryRequest is the request body for answerShippingQuery.
type AnswerShippingQueryRequest struct {
	ShippingQueryID string           `json:"shipping_query_id"`
	OK              bool             `json:"ok"`
	ShippingOptions []ShippingOption `json:"shipping_options,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
}

// AnswerShippingQuery replies to a shipping query.
func (b *Bot) AnswerShippingQuery(ctx context.Context, r *AnswerShippingQueryRequest) error {
	if r.OK && len(r.ShippingOptions) == 0 {
		return fmt.Errorf("%w: shipping options are required when ok is true", ErrBadRequest)
	}
	if !r.OK && r.ErrorMessage == "" {
		return fmt.Errorf("%w: an error message is required when ok is false", ErrBadRequest)
	}
	return b.Call(ctx, "answerShippingQuery", r, nil)
}

// AnswerPreCheckoutQuery confirms or rejects a pre-checkout query. errorMessage
// is required when ok is false.
func (b *Bot) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if !ok && errorMessage == "" {
		return fmt.Errorf("%w: an error message is required when ok is false", ErrBadRequest)
	}
	params := map[string]any{"pre_checkout_query_id": queryID, "ok": ok}
	if errorMessage != "" {
		params["error_message"] = errorMessage
	}
	return b.Call(ctx, "answerPreCheckoutQuery", params, nil)
}

// SendInvoiceRequest is the request body for sendInvoice.
type SendInvoiceRequest struct {
	ChatID                    ChatID         `json:"chat_id"`
	Title                     string         `json:"title"`
	Description               string         `json:"description"`
	Payload                   string         `json:"payload"`
	ProviderToken             string         `json:"provider_token,omitempty"`
	Currency                  string         `json:"currency"`
	Prices                    []LabeledPrice `json:"prices"`
	MaxTipAmount              int64          `json:"max_tip_amount,omitempty"`
	SuggestedTipAmounts       []int64        `json:"suggested_tip_amounts,omitempty"`
	StartParameter            string         `json:"start_parameter,omitempty"`
	ProviderData              string         `json:"provider_data,omitempty"`
	PhotoURL                  string         `json:"photo_url,omitempty"`
	NeedName                  bool           `json:"need_name,omitempty"`
	NeedPhoneNumber           bool           `json:"need_phone_number,omitempty"`
	NeedEmail                 bool           `json:"need_email,omitempty"`
	NeedShippingAddress       bool           `json:"need_shipping_address,omitempty"`
	SendPhoneNumberToProvider bool           `json:"send_phone_number_to_provider,omitempty"`
	SendEmailToProvider       bool           `json:"send_email_to_provider,omitempty"`
	IsFlexible                bool           `json:"is_flexible,omitempty"`
	SendOptions
}

// SendInvoice sends an invoice.
func (b *Bot) SendInvoice(ctx context.Context, r *SendInvoiceRequest) (*Message, error) {
	return b.sendMessageLike(ctx, "sendInvoice", r)
}

// GetChat returns up-to-date information about a chat.
func (b *Bot) GetChat(ctx context.Context, chatID ChatID) (*ChatFullInfo, error) {
	return do[ChatFullInfo](ctx, b, "getChat", map[string]any{"chat_id": chatID}, 0)
}

// GetChatMember returns information about a member of a chat.
func (b *Bot) GetChatMember(ctx context.Context, chatID ChatID, userID int64) (*ChatMember, error) {
	return do[ChatMember](ctx, b, "getChatMember", map[string]any{"chat_id": chatID, "user_id": userID}, 0)
}

// GetChatMemberCount returns the number of members in a chat.
func (b *Bot) GetChatMemberCount(ctx context.Context, chatID ChatID) (int, error) {
	n, err := do[int](ctx, b, "getChatMemberCount", map[string]any{"chat_id": chatID}, 0)
	if err != nil {
		return 0, err
	}
	return *n, nil
}

// BanChatMember bans a user. A zero untilDate bans forever.
func (b *Bot) BanChatMember(ctx context.Context, chatID ChatID, userID int64, untilDate time.Time, revokeMessages bool) error {
	params := map[string]any{"chat_id": chatID, "user_id": userID}
	if !untilDate.IsZero() {
		params["until_date"] = untilDate.Unix()
	}
	if revokeMessages {
		params["revoke_messages"] = true
	}
	return b.Call(ctx, "banChatMember", params, nil)
}

// UnbanChatMember unbans a previously banned user.
func (b *Bot) UnbanChatMember(ctx context.Context, chatID ChatID, userID int64, onlyIfBanned bool) error {
	params := map[string]any{"chat_id": chatID, "user_id": userID}
	if onlyIfBanned {
		params["only_if_banned"] = true
	}
	return b.Call(ctx, "unbanChatMember", params, nil)
}

// LeaveChat makes the bot leave a group, supergroup or channel.
func (b *Bot) LeaveChat(ctx context.Context, chatID ChatID) error {
	return b.Call(ctx, "leaveChat", map[string]any{"chat_id": chatID}, nil)
}

// GetUserProfilePhotos returns a list of profile pictures of a user.
func (b *Bot) GetUserProfilePhotos(ctx context.Context, userID int64, offset, limit int) (*UserProfilePhotos, error) {
	params := map[string]any{"user_id": userID}
	if offset > 0 {
		params["offset"] = offset
	}
	if limit > 0 {
		params["limit"] = limit
	}
	return do[UserProfilePhotos](ctx, b, "getUserProfilePhotos", params, 0)
}

// GetFile returns basic information about a file and prepares it for downloading.
func (b *Bot) GetFile(ctx context.Context, fileID string) (*File, error) {
	return do[File](ctx, b, "getFile", map[string]any{"file_id": fileID}, 0)
}

// DownloadFile streams the content of a file returned by GetFile into w.
func (b *Bot) DownloadFile(ctx context.Context, f *File, w io.Writer) (int64, error) {
	if f.FilePath == "" {
		return 0, fmt.Errorf("%w: file %s has no file path", ErrBadRequest, f.FileID)
	}
	url := fmt.Sprintf("%s/file/bot%s/%s", b.baseFileURL, b.token, f.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, transportError("downloadFile", b.token, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, transportError("downloadFile", b.token, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, &APIError{Method: "downloadFile", Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, transportError("downloadFile", b.token, err)
	}
	return n, nil
}

// SetMyCommands changes the list of the bot's commands for a scope and language.
func (b *Bot) SetMyCommands(ctx context.Context, commands []BotCommand, scope *BotCommandScope, languageCode string) error {
	params := commandParams(scope, languageCode)
	params["commands"] = commands
	return b.Call(ctx, "setMyCommands", params, nil)
}

// GetMyCommands returns the bot's commands for a scope and language.
func (b *Bot) GetMyCommands(ctx context.Context, scope *BotCommandScope, languageCode string) ([]BotCommand, error) {
	cmds, err := do[[]BotCommand](ctx, b, "getMyCommands", commandParams(scope, languageCode), 0)
	if err != nil {
		return nil, err
	}
	return *cmds, nil
}

// DeleteMyCommands deletes the bot's commands for a scope and language.
func (b *Bot) DeleteMyCommands(ctx context.Context, scope *BotCommandScope, languageCode string) error {
	return b.Call(ctx, "deleteMyCommands", commandParams(scope, languageCode), nil)
}

func commandParams(scope *BotCommandScope, languageCode string) map[string]any {
	params := map[string]any{}
	if scope != nil {
		params["scope"] = scope
	}
	if languageCode != "" {
		params["language_code"] = languageCode
	}
	return params
}

// SetPassportDataErrors reports errors in Telegram Passport elements to the user.
func (b *Bot) SetPassportDataErrors(ctx context.Context, userID int64, errs []PassportElementError) error {
	return b.Call(ctx, "setPassportDataErrors", map[string]any{"user_id": userID, "errors": errs}, nil)
}

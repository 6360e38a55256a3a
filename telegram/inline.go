package telegram

import "encoding/json"

// InlineQuery is an incoming inline query.
type InlineQuery struct {
	ID       string    `json:"id"`
	From     User      `json:"from"`
	Query    string    `json:"query"`
	Offset   string    `json:"offset"`
	ChatType string    `json:"chat_type,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// ChosenInlineResult is a result of an inline query that was chosen by the user.
type ChosenInlineResult struct {
	ResultID        string    `json:"result_id"`
	From            User      `json:"from"`
	Location        *Location `json:"location,omitempty"`
	InlineMessageID string    `json:"inline_message_id,omitempty"`
	Query           string    `json:"query"`
}

// CallbackQuery is an incoming callback query from an inline keyboard button.
// Value holds the resolved arbitrary callback data when an
// ext.CallbackDataCache is in use; it is never sent over the wire.
type CallbackQuery struct {
	ID              string   `json:"id"`
	From            User     `json:"from"`
	Message         *Message `json:"message,omitempty"`
	InlineMessageID string   `json:"inline_message_id,omitempty"`
	ChatInstance    string   `json:"chat_instance"`
	Data            string   `json:"data,omitempty"`
	GameShortName   string   `json:"game_short_name,omitempty"`

	Value any `json:"-"`
}

// InlineQueryResult is one result of an inline query. The concrete types
// add their "type" discriminator when marshalled.
type InlineQueryResult interface {
	ResultType() string
}

// InputMessageContent is the content of a message sent as the result of an inline query.
type InputMessageContent interface {
	inputMessageContent()
}

func marshalTyped(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(kind)
	fields["type"] = typ
	return json.Marshal(fields)
}

// InlineQueryResultArticle is a link to an article or web page.
type InlineQueryResultArticle struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	InputMessageContent InputMessageContent   `json:"input_message_content"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	URL                 string                `json:"url,omitempty"`
	HideURL             bool                  `json:"hide_url,omitempty"`
	Description         string                `json:"description,omitempty"`
	ThumbnailURL        string                `json:"thumbnail_url,omitempty"`
	ThumbnailWidth      int                   `json:"thumbnail_width,omitempty"`
	ThumbnailHeight     int                   `json:"thumbnail_height,omitempty"`
}

func (InlineQueryResultArticle) ResultType() string { return "article" }

func (r InlineQueryResultArticle) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultArticle
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultPhoto is a link to a photo.
type InlineQueryResultPhoto struct {
	ID                  string                `json:"id"`
	PhotoURL            string                `json:"photo_url"`
	ThumbnailURL        string                `json:"thumbnail_url"`
	PhotoWidth          int                   `json:"photo_width,omitempty"`
	PhotoHeight         int                   `json:"photo_height,omitempty"`
	Title               string                `json:"title,omitempty"`
	Description         string                `json:"description,omitempty"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultPhoto) ResultType() string { return "photo" }

func (r InlineQueryResultPhoto) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultPhoto
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultGif is a link to an animated GIF file.
type InlineQueryResultGif struct {
	ID                  string                `json:"id"`
	GifURL              string                `json:"gif_url"`
	GifWidth            int                   `json:"gif_width,omitempty"`
	GifHeight           int                   `json:"gif_height,omitempty"`
	GifDuration         int                   `json:"gif_duration,omitempty"`
	ThumbnailURL        string                `json:"thumbnail_url"`
	ThumbnailMimeType   string                `json:"thumbnail_mime_type,omitempty"`
	Title               string                `json:"title,omitempty"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultGif) ResultType() string { return "gif" }

func (r InlineQueryResultGif) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultGif
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultMpeg4Gif is a link to a video animation without sound.
type InlineQueryResultMpeg4Gif struct {
	ID                  string                `json:"id"`
	Mpeg4URL            string                `json:"mpeg4_url"`
	Mpeg4Width          int                   `json:"mpeg4_width,omitempty"`
	Mpeg4Height         int                   `json:"mpeg4_height,omitempty"`
	Mpeg4Duration       int                   `json:"mpeg4_duration,omitempty"`
	ThumbnailURL        string                `json:"thumbnail_url"`
	ThumbnailMimeType   string                `json:"thumbnail_mime_type,omitempty"`
	Title               string                `json:"title,omitempty"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultMpeg4Gif) ResultType() string { return "mpeg4_gif" }

func (r InlineQueryResultMpeg4Gif) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultMpeg4Gif
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultVideo is a link to a page with an embedded video player or a video file.
type InlineQueryResultVideo struct {
	ID                  string                `json:"id"`
	VideoURL            string                `json:"video_url"`
	MimeType            string                `json:"mime_type"`
	ThumbnailURL        string                `json:"thumbnail_url"`
	Title               string                `json:"title"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	VideoWidth          int                   `json:"video_width,omitempty"`
	VideoHeight         int                   `json:"video_height,omitempty"`
	VideoDuration       int                   `json:"video_duration,omitempty"`
	Description         string                `json:"description,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultVideo) ResultType() string { return "video" }

func (r InlineQueryResultVideo) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultVideo
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultAudio is a link to an MP3 audio file.
type InlineQueryResultAudio struct {
	ID                  string                `json:"id"`
	AudioURL            string                `json:"audio_url"`
	Title               string                `json:"title"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	Performer           string                `json:"performer,omitempty"`
	AudioDuration       int                   `json:"audio_duration,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultAudio) ResultType() string { return "audio" }

func (r InlineQueryResultAudio) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultAudio
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultVoice is a link to a voice recording in an OGG container.
type InlineQueryResultVoice struct {
	ID                  string                `json:"id"`
	VoiceURL            string                `json:"voice_url"`
	Title               string                `json:"title"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	VoiceDuration       int                   `json:"voice_duration,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultVoice) ResultType() string { return "voice" }

func (r InlineQueryResultVoice) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultVoice
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultDocument is a link to a PDF or ZIP file.
type InlineQueryResultDocument struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	DocumentURL         string                `json:"document_url"`
	MimeType            string                `json:"mime_type"`
	Description         string                `json:"description,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
	ThumbnailURL        string                `json:"thumbnail_url,omitempty"`
	ThumbnailWidth      int                   `json:"thumbnail_width,omitempty"`
	ThumbnailHeight     int                   `json:"thumbnail_height,omitempty"`
}

func (InlineQueryResultDocument) ResultType() string { return "document" }

func (r InlineQueryResultDocument) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultDocument
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultLocation is a location on a map.
type InlineQueryResultLocation struct {
	ID                   string                `json:"id"`
	Latitude             float64               `json:"latitude"`
	Longitude            float64               `json:"longitude"`
	Title                string                `json:"title"`
	HorizontalAccuracy   float64               `json:"horizontal_accuracy,omitempty"`
	LivePeriod           int                   `json:"live_period,omitempty"`
	Heading              int                   `json:"heading,omitempty"`
	ProximityAlertRadius int                   `json:"proximity_alert_radius,omitempty"`
	ReplyMarkup          *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent  InputMessageContent   `json:"input_message_content,omitempty"`
	ThumbnailURL         string                `json:"thumbnail_url,omitempty"`
}

func (InlineQueryResultLocation) ResultType() string { return "location" }

func (r InlineQueryResultLocation) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultLocation
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultVenue is a venue.
type InlineQueryResultVenue struct {
	ID                  string                `json:"id"`
	Latitude            float64               `json:"latitude"`
	Longitude           float64               `json:"longitude"`
	Title               string                `json:"title"`
	Address             string                `json:"address"`
	FoursquareID        string                `json:"foursquare_id,omitempty"`
	FoursquareType      string                `json:"foursquare_type,omitempty"`
	GooglePlaceID       string                `json:"google_place_id,omitempty"`
	GooglePlaceType     string                `json:"google_place_type,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
	ThumbnailURL        string                `json:"thumbnail_url,omitempty"`
}

func (InlineQueryResultVenue) ResultType() string { return "venue" }

func (r InlineQueryResultVenue) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultVenue
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultContact is a contact with a phone number.
type InlineQueryResultContact struct {
	ID                  string                `json:"id"`
	PhoneNumber         string                `json:"phone_number"`
	FirstName           string                `json:"first_name"`
	LastName            string                `json:"last_name,omitempty"`
	VCard               string                `json:"vcard,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
	ThumbnailURL        string                `json:"thumbnail_url,omitempty"`
}

func (InlineQueryResultContact) ResultType() string { return "contact" }

func (r InlineQueryResultContact) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultContact
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultCachedPhoto is a photo stored on the Telegram servers.
type InlineQueryResultCachedPhoto struct {
	ID                  string                `json:"id"`
	PhotoFileID         string                `json:"photo_file_id"`
	Title               string                `json:"title,omitempty"`
	Description         string                `json:"description,omitempty"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultCachedPhoto) ResultType() string { return "photo" }

func (r InlineQueryResultCachedPhoto) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultCachedPhoto
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultCachedAudio is an MP3 audio file stored on the Telegram servers.
type InlineQueryResultCachedAudio struct {
	ID                  string                `json:"id"`
	AudioFileID         string                `json:"audio_file_id"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultCachedAudio) ResultType() string { return "audio" }

func (r InlineQueryResultCachedAudio) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultCachedAudio
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultCachedDocument is a file stored on the Telegram servers.
type InlineQueryResultCachedDocument struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	DocumentFileID      string                `json:"document_file_id"`
	Description         string                `json:"description,omitempty"`
	Caption             string                `json:"caption,omitempty"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	CaptionEntities     []MessageEntity       `json:"caption_entities,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultCachedDocument) ResultType() string { return "document" }

func (r InlineQueryResultCachedDocument) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultCachedDocument
	return marshalTyped(r.ResultType(), plain(r))
}

// InlineQueryResultCachedSticker is a sticker stored on the Telegram servers.
type InlineQueryResultCachedSticker struct {
	ID                  string                `json:"id"`
	StickerFileID       string                `json:"sticker_file_id"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	InputMessageContent InputMessageContent   `json:"input_message_content,omitempty"`
}

func (InlineQueryResultCachedSticker) ResultType() string { return "sticker" }

func (r InlineQueryResultCachedSticker) MarshalJSON() ([]byte, error) {
	type plain InlineQueryResultCachedSticker
	return marshalTyped(r.ResultType(), plain(r))
}

// InputTextMessageContent is the content of a text message.
type InputTextMessageContent struct {
	MessageText        string              `json:"message_text"`
	ParseMode          string              `json:"parse_mode,omitempty"`
	Entities           []MessageEntity     `json:"entities,omitempty"`
	LinkPreviewOptions *LinkPreviewOptions `json:"link_preview_options,omitempty"`
}

func (InputTextMessageContent) inputMessageContent() {}

// InputLocationMessageContent is the content of a location message.
type InputLocationMessageContent struct {
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	HorizontalAccuracy   float64 `json:"horizontal_accuracy,omitempty"`
	LivePeriod           int     `json:"live_period,omitempty"`
	Heading              int     `json:"heading,omitempty"`
	ProximityAlertRadius int     `json:"proximity_alert_radius,omitempty"`
}

func (InputLocationMessageContent) inputMessageContent() {}

// InputVenueMessageContent is the content of a venue message.
type InputVenueMessageContent struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Title           string  `json:"title"`
	Address         string  `json:"address"`
	FoursquareID    string  `json:"foursquare_id,omitempty"`
	FoursquareType  string  `json:"foursquare_type,omitempty"`
	GooglePlaceID   string  `json:"google_place_id,omitempty"`
	GooglePlaceType string  `json:"google_place_type,omitempty"`
}

func (InputVenueMessageContent) inputMessageContent() {}

// InputContactMessageContent is the content of a contact message.
type InputContactMessageContent struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	VCard       string `json:"vcard,omitempty"`
}

func (InputContactMessageContent) inputMessageContent() {}

// InlineQueryResultsButton is shown above the inline query results.
type InlineQueryResultsButton struct {
	Text           string      `json:"text"`
	WebApp         *WebAppInfo `json:"web_app,omitempty"`
	StartParameter string      `json:"start_parameter,omitempty"`
}

// SentWebAppMessage describes an inline message sent by a Web App on behalf of a user.
type SentWebAppMessage struct {
	InlineMessageID string `json:"inline_message_id,omitempty"`
}

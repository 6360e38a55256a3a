// Package telegram is a typed client for the Telegram Bot HTTP API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gitlab.com/yelinaung/tgbot/internal/logger"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	defaultMaxRetries     = 3
	initialBackoff        = time.Second
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 10 << 20
)

var tokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Defaults are values injected into outgoing requests when the caller left
// the parameter unset. Boolean defaults cannot be switched off per request.
type Defaults struct {
	ParseMode                string
	DisableNotification      bool
	ProtectContent           bool
	AllowSendingWithoutReply bool
	LinkPreviewOptions       *LinkPreviewOptions

	// Timezone is used by job schedulers; it is never sent to Telegram.
	Timezone *time.Location
}

// CallbackDataProcessor replaces arbitrary callback data of outgoing inline
// keyboards and restores it on messages and updates received from Telegram.
type CallbackDataProcessor interface {
	ProcessKeyboard(markup *InlineKeyboardMarkup) (*InlineKeyboardMarkup, error)
	ProcessMessage(msg *Message)
	ProcessUpdate(update *Update)
}

// Bot is a Bot API client. It is safe for concurrent use.
type Bot struct {
	token          string
	baseURL        string
	baseFileURL    string
	client         *http.Client
	log            zerolog.Logger
	defaults       *Defaults
	requestTimeout time.Duration
	maxRetries     int

	mu           sync.RWMutex
	me           *User
	callbackData CallbackDataProcessor
}

// Option configures a Bot.
type Option func(*Bot)

// WithBaseURL points the client at another Bot API server, e.g. a local one.
func WithBaseURL(url string) Option {
	return func(b *Bot) { b.baseURL = strings.TrimRight(url, "/") }
}

// WithBaseFileURL sets the base URL used by DownloadFile.
func WithBaseFileURL(url string) Option {
	return func(b *Bot) { b.baseFileURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) { b.client = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// WithDefaults sets the default request parameters.
func WithDefaults(d Defaults) Option {
	return func(b *Bot) { b.defaults = &d }
}

// WithRequestTimeout bounds every request. Long polling requests get their
// polling timeout added on top.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bot) { b.requestTimeout = d }
}

// WithMaxRetries sets how many attempts are made when Telegram answers with
// flood control.
func WithMaxRetries(n int) Option {
	return func(b *Bot) { b.maxRetries = n }
}

// NewBot creates a client for the bot with the given token.
func NewBot(token string, opts ...Option) (*Bot, error) {
	if !tokenRegex.MatchString(token) {
		return nil, fmt.Errorf("%w: token must look like <bot id>:<hash>", ErrInvalidToken)
	}
	b := &Bot{
		token:          token,
		baseURL:        DefaultBaseURL,
		client:         &http.Client{},
		log:            logger.Component("telegram.bot"),
		requestTimeout: defaultRequestTimeout,
		maxRetries:     defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.baseFileURL == "" {
		b.baseFileURL = b.baseURL
	}
	if b.maxRetries < 1 {
		b.maxRetries = 1
	}
	return b, nil
}

// Token returns the bot token.
func (b *Bot) Token() string { return b.token }

// ID returns the bot's user id, taken from the token.
func (b *Bot) ID() int64 {
	var id int64
	_, _ = fmt.Sscanf(b.token, "%d:", &id)
	return id
}

// Defaults returns the configured defaults, or nil.
func (b *Bot) Defaults() *Defaults { return b.defaults }

// Logger returns the bot's logger.
func (b *Bot) Logger() zerolog.Logger { return b.log }

// SetCallbackDataProcessor installs p for outgoing keyboards and incoming updates.
func (b *Bot) SetCallbackDataProcessor(p CallbackDataProcessor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbackData = p
}

func (b *Bot) callbackDataProcessor() CallbackDataProcessor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.callbackData
}

// Me returns the bot user fetched by GetMe, or nil before the first call.
func (b *Bot) Me() *User {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.me
}

// Username returns the bot's username without "@", or "" before GetMe.
func (b *Bot) Username() string {
	if me := b.Me(); me != nil {
		return me.Username
	}
	return ""
}

// Call invokes any Bot API method. params is a request struct or a map and
// may be nil; result, when non-nil, receives the decoded "result" field.
func (b *Bot) Call(ctx context.Context, method string, params, result any) error {
	raw, err := do[json.RawMessage](ctx, b, method, params, 0)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(*raw, result); err != nil {
		return fmt.Errorf("telegram: decode %s result: %w", method, err)
	}
	return nil
}

// fileCarrier is implemented by requests that may upload files.
type fileCarrier interface {
	files() map[string]*InputFile
}

// markupCarrier is implemented by requests that carry a reply markup.
type markupCarrier interface {
	markup() ReplyMarkup
	setMarkup(ReplyMarkup)
}

type encodedRequest struct {
	body        []byte
	contentType string
}

// do sends a request to the given Bot API method and decodes the result.
// Flood control answers are retried after the advertised retry_after with
// exponential backoff.
func do[T any](ctx context.Context, b *Bot, method string, params any, extraTimeout time.Duration) (*T, error) {
	req, err := b.encode(method, params)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
	backoff := initialBackoff

	for attempt := range b.maxRetries {
		respBody, status, err := b.post(ctx, method, url, req, extraTimeout)
		if err != nil {
			return nil, err
		}

		var apiResp APIResponse[T]
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			if status >= http.StatusBadRequest {
				return nil, &APIError{Method: method, Code: status, Description: http.StatusText(status)}
			}
			return nil, fmt.Errorf("telegram: decode %s response: %w", method, err)
		}
		if apiResp.OK {
			return &apiResp.Result, nil
		}

		apiErr := &APIError{Method: method, Code: apiResp.ErrorCode, Description: apiResp.Description}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
			apiErr.MigrateToChatID = apiResp.Parameters.MigrateToChatID
		}
		if apiErr.RetryAfter <= 0 || attempt == b.maxRetries-1 {
			return nil, apiErr
		}

		wait := max(apiErr.RetryAfterDuration(), backoff)
		b.log.Warn().
			Str("method", method).
			Dur("retry_in", wait).
			Int("attempt", attempt+1).
			Msg("Flood control exceeded, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, transportError(method, b.token, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("telegram: %s: max retries exceeded", method)
}

func (b *Bot) post(ctx context.Context, method, url string, req *encodedRequest, extraTimeout time.Duration) ([]byte, int, error) {
	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout+extraTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.body))
	if err != nil {
		return nil, 0, transportError(method, b.token, err)
	}
	httpReq.Header.Set("Content-Type", req.contentType)

	b.log.Debug().Str("method", method).Msg("Calling Bot API")
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, 0, transportError(method, b.token, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, transportError(method, b.token, err)
	}
	return body, resp.StatusCode, nil
}

// encode serializes params as JSON, or as multipart/form-data when a file has
// to be uploaded. Defaults and callback data replacement are applied first.
func (b *Bot) encode(method string, params any) (*encodedRequest, error) {
	if mc, ok := params.(markupCarrier); ok {
		orig := mc.markup()
		if err := b.replaceCallbackData(mc); err != nil {
			return nil, fmt.Errorf("telegram: %s: %w", method, err)
		}
		defer mc.setMarkup(orig)
	}

	fields := map[string]json.RawMessage{}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("telegram: %s request must be an object: %w", method, err)
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	if err := b.applyDefaults(method, fields); err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}

	uploads := collectUploads(params)
	if len(uploads) == 0 {
		body, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
		}
		return &encodedRequest{body: body, contentType: "application/json"}, nil
	}
	return encodeMultipart(method, fields, uploads)
}

func collectUploads(params any) map[string]*InputFile {
	uploads := map[string]*InputFile{}
	switch p := params.(type) {
	case fileCarrier:
		for k, f := range p.files() {
			if f.NeedsUpload() {
				uploads[k] = f
			}
		}
	case map[string]any:
		for k, v := range p {
			if f, ok := v.(*InputFile); ok && f.NeedsUpload() {
				uploads[k] = f
			}
		}
	}
	return uploads
}

func encodeMultipart(method string, fields map[string]json.RawMessage, uploads map[string]*InputFile) (*encodedRequest, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if _, ok := uploads[k]; ok {
			continue
		}
		value := string(v)
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			value = s
		}
		if err := w.WriteField(k, value); err != nil {
			return nil, fmt.Errorf("telegram: write %s field %s: %w", method, k, err)
		}
	}
	for k, f := range uploads {
		name := f.FileName
		if name == "" {
			name = k
		}
		part, err := w.CreateFormFile(k, name)
		if err != nil {
			return nil, fmt.Errorf("telegram: create %s file part: %w", method, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("telegram: read upload %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("telegram: finish %s multipart body: %w", method, err)
	}
	return &encodedRequest{body: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

func (b *Bot) replaceCallbackData(mc markupCarrier) error {
	p := b.callbackDataProcessor()
	if p == nil {
		return nil
	}
	kb, ok := mc.markup().(*InlineKeyboardMarkup)
	if !ok || kb == nil {
		return nil
	}
	processed, err := p.ProcessKeyboard(kb)
	if err != nil {
		return err
	}
	mc.setMarkup(processed)
	return nil
}

func (b *Bot) restoreCallbackData(msg *Message) {
	if msg == nil {
		return
	}
	if p := b.callbackDataProcessor(); p != nil {
		p.ProcessMessage(msg)
	}
}

const (
	defParseMode       = "parse_mode"
	defNotification    = "disable_notification"
	defProtect         = "protect_content"
	defLinkPreview     = "link_preview_options"
	defReplyParameters = "reply_parameters"
)

// defaultParams lists which defaults each method accepts.
var defaultParams = map[string][]string{
	"sendMessage":        {defParseMode, defNotification, defProtect, defLinkPreview, defReplyParameters},
	"sendPhoto":          {defParseMode, defNotification, defProtect, defReplyParameters},
	"sendAudio":          {defParseMode, defNotification, defProtect, defReplyParameters},
	"sendDocument":       {defParseMode, defNotification, defProtect, defReplyParameters},
	"sendVideo":          {defParseMode, defNotification, defProtect, defReplyParameters},
	"sendVoice":          {defParseMode, defNotification, defProtect, defReplyParameters},
	"sendAnimation":      {defParseMode, defNotification, defProtect, defReplyParameters},
	"copyMessage":        {defParseMode, defNotification, defProtect, defReplyParameters},
	"forwardMessage":     {defNotification, defProtect},
	"sendLocation":       {defNotification, defProtect, defReplyParameters},
	"sendVenue":          {defNotification, defProtect, defReplyParameters},
	"sendContact":        {defNotification, defProtect, defReplyParameters},
	"sendPoll":           {defNotification, defProtect, defReplyParameters},
	"sendDice":           {defNotification, defProtect, defReplyParameters},
	"sendInvoice":        {defNotification, defProtect, defReplyParameters},
	"editMessageText":    {defParseMode, defLinkPreview},
	"editMessageCaption": {defParseMode},
}

func (b *Bot) applyDefaults(method string, fields map[string]json.RawMessage) error {
	if b.defaults == nil {
		return nil
	}
	d := b.defaults
	for _, key := range defaultParams[method] {
		var value any
		switch key {
		case defParseMode:
			if d.ParseMode != "" {
				value = d.ParseMode
			}
		case defNotification:
			if d.DisableNotification {
				value = true
			}
		case defProtect:
			if d.ProtectContent {
				value = true
			}
		case defLinkPreview:
			if d.LinkPreviewOptions != nil {
				value = d.LinkPreviewOptions
			}
		case defReplyParameters:
			if err := applyReplyDefault(fields, d.AllowSendingWithoutReply); err != nil {
				return err
			}
			continue
		}
		if _, set := fields[key]; set || value == nil {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal default %s: %w", key, err)
		}
		fields[key] = data
	}
	return nil
}

func applyReplyDefault(fields map[string]json.RawMessage, allow bool) error {
	raw, ok := fields[defReplyParameters]
	if !ok || !allow {
		return nil
	}
	var rp map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rp); err != nil {
		return fmt.Errorf("decode reply_parameters: %w", err)
	}
	if _, set := rp["allow_sending_without_reply"]; set {
		return nil
	}
	rp["allow_sending_without_reply"] = json.RawMessage("true")
	data, err := json.Marshal(rp)
	if err != nil {
		return fmt.Errorf("encode reply_parameters: %w", err)
	}
	fields[defReplyParameters] = data
	return nil
}

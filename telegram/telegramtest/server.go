// Package telegramtest provides a fake Bot API server and update builders
// for testing bots without talking to Telegram.
package telegramtest

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// Token is the bot token accepted by the fake server.
const Token = "123456:TEST-token_abc"

// BotID is the user id of the fake bot.
const BotID int64 = 123456

// Call captures one request received by the Server.
type Call struct {
	Method string
	Params map[string]any
	Files  map[string][]byte
}

// String returns a parameter as a string, or "" when absent.
func (c Call) String(key string) string {
	switch v := c.Params[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// Int returns a numeric parameter, or 0 when absent.
func (c Call) Int(key string) int64 {
	return toInt64(c.Params[key])
}

// Decode re-encodes a parameter into v, e.g. reply_markup into an InlineKeyboardMarkup.
func (c Call) Decode(key string, v any) error {
	raw := c.Params[key]
	var data []byte
	if s, ok := raw.(string); ok && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		data = []byte(s)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, v)
}

// Responder builds the result of a method. A non-nil *telegram.APIError is
// sent as an unsuccessful response.
type Responder func(call Call) (any, *telegram.APIError)

// Server simulates the Bot API for a single bot.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	calls      []Call
	responders map[string]Responder
	failures   map[string][]*telegram.APIError
	updates    []telegram.Update
	files      map[string][]byte

	// Me is returned by getMe.
	Me telegram.User
	// NextMessageID is auto-incremented for each sent message.
	NextMessageID int
}

// NewServer starts a fake Bot API server. Close it when done.
func NewServer() *Server {
	s := &Server{
		responders: make(map[string]Responder),
		failures:   make(map[string][]*telegram.APIError),
		files:      make(map[string][]byte),
		Me: telegram.User{
			ID:                    BotID,
			IsBot:                 true,
			FirstName:             "Test Bot",
			Username:              "test_bot",
			CanJoinGroups:         true,
			SupportsInlineQueries: true,
		},
		NextMessageID: 1000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// NewBot starts a Server and returns a Bot talking to it. Both are closed
// when the test ends.
func NewBot(t testing.TB, opts ...telegram.Option) (*telegram.Bot, *Server) {
	t.Helper()
	s := NewServer()
	t.Cleanup(s.Close)
	opts = append([]telegram.Option{telegram.WithBaseURL(s.URL), telegram.WithMaxRetries(1)}, opts...)
	b, err := telegram.NewBot(Token, opts...)
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}
	return b, s
}

// Handle overrides the response of a method.
func (s *Server) Handle(method string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method] = r
}

// Fail makes the next call of method fail with the given code and description.
func (s *Server) Fail(method string, code int, description string) {
	s.FailWith(method, &telegram.APIError{Code: code, Description: description})
}

// FailWith queues an arbitrary error for the next call of method.
func (s *Server) FailWith(method string, apiErr *telegram.APIError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], apiErr)
}

// QueueUpdates makes updates available to getUpdates.
func (s *Server) QueueUpdates(updates ...telegram.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, updates...)
}

// PendingUpdates returns the number of updates not yet acknowledged by an offset.
func (s *Server) PendingUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// AddFile registers downloadable content under a file path.
func (s *Server) AddFile(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

// Calls returns all recorded calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsTo returns the recorded calls of one method.
func (s *Server) CallsTo(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns how often method was called.
func (s *Server) CallCount(method string) int {
	return len(s.CallsTo(method))
}

// LastCall returns the most recent call of method, or nil.
func (s *Server) LastCall(method string) *Call {
	calls := s.CallsTo(method)
	if len(calls) == 0 {
		return nil
	}
	return &calls[len(calls)-1]
}

// SentTexts returns the text of every sendMessage call in order.
func (s *Server) SentTexts() []string {
	var out []string
	for _, c := range s.CallsTo("sendMessage") {
		out = append(out, c.String("text"))
	}
	return out
}

// Reset forgets recorded calls, queued failures and updates.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.failures = make(map[string][]*telegram.APIError)
	s.updates = nil
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+Token+"/") {
		s.serveFile(w, strings.TrimPrefix(r.URL.Path, "/file/bot"+Token+"/"))
		return
	}
	method, ok := strings.CutPrefix(r.URL.Path, "/bot"+Token+"/")
	if !ok {
		writeJSON(w, http.StatusUnauthorized, telegram.APIResponse[any]{ErrorCode: 401, Description: "Unauthorized"})
		return
	}

	call, err := parseCall(method, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, telegram.APIResponse[any]{ErrorCode: 400, Description: "Bad Request: " + err.Error()})
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var apiErr *telegram.APIError
	if queued := s.failures[method]; len(queued) > 0 {
		apiErr = queued[0]
		s.failures[method] = queued[1:]
	}
	responder := s.responders[method]
	s.mu.Unlock()

	if apiErr == nil && method == "getUpdates" && responder == nil {
		s.waitForUpdates(r, call)
	}

	var result any
	if apiErr == nil {
		if responder != nil {
			result, apiErr = responder(call)
		} else {
			result = s.defaultResult(call)
		}
	}
	if apiErr != nil {
		resp := telegram.APIResponse[any]{ErrorCode: apiErr.Code, Description: apiErr.Description}
		if apiErr.RetryAfter > 0 || apiErr.MigrateToChatID != 0 {
			resp.Parameters = &telegram.ResponseParameters{
				RetryAfter:      apiErr.RetryAfter,
				MigrateToChatID: apiErr.MigrateToChatID,
			}
		}
		status := apiErr.Code
		if status == 0 {
			status = http.StatusBadRequest
			resp.ErrorCode = status
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, telegram.APIResponse[any]{OK: true, Result: result})
}

// waitForUpdates emulates long polling briefly so pollers do not spin.
func (s *Server) waitForUpdates(r *http.Request, call Call) {
	deadline := time.Now().Add(min(time.Duration(call.Int("timeout"))*time.Second, 50*time.Millisecond))
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.updates)
		s.mu.Unlock()
		if n > 0 {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *Server) serveFile(w http.ResponseWriter, path string) {
	s.mu.Lock()
	content, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, nil)
		return
	}
	_, _ = w.Write(content)
}

func (s *Server) defaultResult(call Call) any {
	switch call.Method {
	case "getMe":
		return s.Me
	case "getUpdates":
		return s.takeUpdates(call)
	case "copyMessage":
		return telegram.MessageID{MessageID: s.nextMessageID()}
	case "editMessageText", "editMessageCaption", "editMessageReplyMarkup":
		if call.String("inline_message_id") != "" {
			return true
		}
		msg := s.message(call)
		msg.MessageID = int(call.Int("message_id"))
		return msg
	case "stopPoll":
		return telegram.Poll{ID: "poll-" + call.String("message_id"), IsClosed: true, Type: telegram.PollRegular}
	case "getChat":
		return telegram.ChatFullInfo{Chat: telegram.Chat{ID: call.Int("chat_id"), Type: telegram.ChatTypePrivate}}
	case "getChatMember":
		return telegram.ChatMember{Status: telegram.ChatMemberMember, User: telegram.User{ID: call.Int("user_id")}}
	case "getChatMemberCount":
		return 1
	case "getFile":
		id := call.String("file_id")
		return telegram.File{FileID: id, FileUniqueID: id + "_unique", FilePath: "files/" + id}
	case "getWebhookInfo":
		return telegram.WebhookInfo{}
	case "getMyCommands":
		return []telegram.BotCommand{}
	case "getUserProfilePhotos":
		return telegram.UserProfilePhotos{}
	}
	if strings.HasPrefix(call.Method, "send") && call.Method != "sendChatAction" || call.Method == "forwardMessage" {
		return s.message(call)
	}
	return true
}

func (s *Server) nextMessageID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.NextMessageID
	s.NextMessageID++
	return id
}

func (s *Server) message(call Call) telegram.Message {
	me := s.Me
	msg := telegram.Message{
		MessageID: s.nextMessageID(),
		From:      &me,
		Date:      time.Now().Unix(),
		Chat:      telegram.Chat{ID: call.Int("chat_id"), Type: telegram.ChatTypePrivate},
		Text:      call.String("text"),
		Caption:   call.String("caption"),
	}
	if _, ok := call.Params["reply_markup"]; ok {
		var kb telegram.InlineKeyboardMarkup
		if err := call.Decode("reply_markup", &kb); err == nil && kb.InlineKeyboard != nil {
			msg.ReplyMarkup = &kb
		}
	}
	if call.Method == "sendPoll" {
		msg.Poll = &telegram.Poll{
			ID:       "poll-" + strconv.Itoa(msg.MessageID),
			Question: call.String("question"),
			Type:     call.String("type"),
		}
	}
	return msg
}

func (s *Server) takeUpdates(call Call) []telegram.Update {
	offset := call.Int("offset")
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.updates[:0]
	for _, u := range s.updates {
		if u.UpdateID >= offset {
			kept = append(kept, u)
		}
	}
	s.updates = kept
	out := make([]telegram.Update, len(kept))
	copy(out, kept)
	if limit := int(call.Int("limit")); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func parseCall(method string, r *http.Request) (Call, error) {
	call := Call{Method: method, Params: map[string]any{}, Files: map[string][]byte{}}
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return call, nil
			}
			if err != nil {
				return call, err
			}
			data, err := io.ReadAll(part)
			if err != nil {
				return call, err
			}
			if part.FileName() != "" {
				call.Files[part.FormName()] = data
				continue
			}
			call.Params[part.FormName()] = parseFormValue(string(data))
		}
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return call, err
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &call.Params); err != nil {
				return call, err
			}
		}
		return call, nil
	}
}

func parseFormValue(v string) any {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package ext

import (
	"container/list"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// DefaultCallbackDataCacheSize is the number of keyboards remembered by default.
const DefaultCallbackDataCacheSize = 1024

const uuidHexLen = 32

type keyboardEntry struct {
	id         string
	accessTime time.Time
	buttons    map[string]any
}

// CallbackDataCache lets inline keyboard buttons carry arbitrary values.
// Outgoing buttons get callback data made of a keyboard id and a button id,
// each 32 hex characters; the values stay in a least recently used cache.
// Incoming callback queries get their value restored in CallbackQuery.Value,
// or an *InvalidCallbackData if the keyboard is no longer known.
type CallbackDataCache struct {
	maxSize int
	botID   int64

	mu        sync.Mutex
	order     *list.List
	keyboards map[string]*list.Element
	queries   map[string]string
	now       func() time.Time
}

var _ telegram.CallbackDataProcessor = (*CallbackDataCache)(nil)

// NewCallbackDataCache returns a cache holding up to maxSize keyboards.
// maxSize < 1 uses DefaultCallbackDataCacheSize.
func NewCallbackDataCache(maxSize int) *CallbackDataCache {
	if maxSize < 1 {
		maxSize = DefaultCallbackDataCacheSize
	}
	return &CallbackDataCache{
		maxSize:   maxSize,
		order:     list.New(),
		keyboards: make(map[string]*list.Element),
		queries:   make(map[string]string),
		now:       time.Now,
	}
}

// MaxSize returns the capacity of the cache.
func (c *CallbackDataCache) MaxSize() int { return c.maxSize }

// Len returns the number of cached keyboards.
func (c *CallbackDataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ProcessKeyboard returns a copy of markup whose callback buttons carry
// cache ids. Buttons without callback data are copied unchanged. A button's
// value is its CallbackValue, or its CallbackData string when no value is set.
func (c *CallbackDataCache) ProcessKeyboard(markup *telegram.InlineKeyboardMarkup) (*telegram.InlineKeyboardMarkup, error) {
	if markup == nil {
		return nil, nil
	}
	keyboardID := newHexID()
	buttons := make(map[string]any)
	out := &telegram.InlineKeyboardMarkup{InlineKeyboard: make([][]telegram.InlineKeyboardButton, len(markup.InlineKeyboard))}
	for i, row := range markup.InlineKeyboard {
		out.InlineKeyboard[i] = make([]telegram.InlineKeyboardButton, len(row))
		for j, b := range row {
			value := b.CallbackValue
			if value == nil && b.CallbackData != "" {
				value = b.CallbackData
			}
			if value != nil {
				buttonID := newHexID()
				buttons[buttonID] = value
				b.CallbackData = keyboardID + buttonID
				b.CallbackValue = nil
			}
			out.InlineKeyboard[i][j] = b
		}
	}
	if len(buttons) == 0 {
		return out, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(&keyboardEntry{id: keyboardID, accessTime: c.now(), buttons: buttons})
	return out, nil
}

func (c *CallbackDataCache) put(e *keyboardEntry) {
	if el, ok := c.keyboards[e.id]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.keyboards[e.id] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.keyboards, oldest.Value.(*keyboardEntry).id)
	}
}

func splitCallbackData(data string) (keyboardID, buttonID string, ok bool) {
	if len(data) != 2*uuidHexLen {
		return "", "", false
	}
	return data[:uuidHexLen], data[uuidHexLen:], true
}

// lookup resolves data and refreshes the keyboard's position in the cache.
func (c *CallbackDataCache) lookup(data string) (keyboardID string, value any, ok bool) {
	keyboardID, buttonID, ok := splitCallbackData(data)
	if !ok {
		return "", nil, false
	}
	el, found := c.keyboards[keyboardID]
	if !found {
		return "", nil, false
	}
	e := el.Value.(*keyboardEntry)
	value, found = e.buttons[buttonID]
	if !found {
		return "", nil, false
	}
	e.accessTime = c.now()
	c.order.MoveToFront(el)
	return keyboardID, value, true
}

// ProcessCallbackQuery restores the value of q and remembers which keyboard
// the query belongs to for DropData. The message of the query is processed too.
func (c *CallbackDataCache) ProcessCallbackQuery(q *telegram.CallbackQuery) {
	if q == nil {
		return
	}
	if q.Data != "" {
		c.mu.Lock()
		keyboardID, value, ok := c.lookup(q.Data)
		if ok {
			c.queries[q.ID] = keyboardID
			q.Value = value
		} else {
			q.Value = &InvalidCallbackData{Data: q.Data}
		}
		c.mu.Unlock()
	}
	c.ProcessMessage(q.Message)
}

// ProcessMessage restores the button values of the message's inline
// keyboard, and of the messages it replies to or pins. Unknown buttons get
// an *InvalidCallbackData value.
func (c *CallbackDataCache) ProcessMessage(msg *telegram.Message) {
	if msg == nil {
		return
	}
	c.ProcessMessage(msg.ReplyToMessage)
	c.ProcessMessage(msg.PinnedMessage)

	if msg.ReplyMarkup == nil || !c.sentByBot(msg) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range msg.ReplyMarkup.InlineKeyboard {
		for j := range row {
			b := &row[j]
			if b.CallbackData == "" {
				continue
			}
			if _, value, ok := c.lookup(b.CallbackData); ok {
				b.CallbackValue = value
			} else {
				b.CallbackValue = &InvalidCallbackData{Data: b.CallbackData}
			}
		}
	}
}

// sentByBot reports whether msg was sent by the bot, directly or via inline
// mode. Only such keyboards can carry cache ids.
func (c *CallbackDataCache) sentByBot(msg *telegram.Message) bool {
	sender := msg.From
	if msg.ViaBot != nil {
		sender = msg.ViaBot
	}
	if sender == nil || c.botID == 0 {
		return true
	}
	return sender.ID == c.botID
}

// ProcessUpdate restores callback data in every message and callback query
// of u.
func (c *CallbackDataCache) ProcessUpdate(u *telegram.Update) {
	if u == nil {
		return
	}
	c.ProcessCallbackQuery(u.CallbackQuery)
	for _, m := range []*telegram.Message{u.Message, u.EditedMessage, u.ChannelPost, u.EditedChannelPost} {
		c.ProcessMessage(m)
	}
}

// DropData removes the keyboard q was sent from.
func (c *CallbackDataCache) DropData(q *telegram.CallbackQuery) error {
	if q == nil {
		return errors.New("ext: no callback query")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	keyboardID, ok := c.queries[q.ID]
	if !ok {
		return fmt.Errorf("ext: callback query %s is not known to the cache", q.ID)
	}
	delete(c.queries, q.ID)
	if el, found := c.keyboards[keyboardID]; found {
		c.order.Remove(el)
		delete(c.keyboards, keyboardID)
	}
	return nil
}

// ClearCallbackData removes keyboards last accessed before t. A zero t
// removes all keyboards.
func (c *CallbackDataCache) ClearCallbackData(before time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*keyboardEntry)
		if before.IsZero() || e.accessTime.Before(before) {
			c.order.Remove(el)
			delete(c.keyboards, e.id)
		}
		el = prev
	}
}

// ClearCallbackQueries forgets which keyboards callback queries belong to.
func (c *CallbackDataCache) ClearCallbackQueries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.queries)
}

// Snapshot exports the cache for persistence, least recently used first.
func (c *CallbackDataCache) Snapshot() *CallbackDataSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := &CallbackDataSnapshot{
		Keyboards: make([]KeyboardData, 0, c.order.Len()),
		Queries:   maps.Clone(c.queries),
	}
	for el := c.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*keyboardEntry)
		snap.Keyboards = append(snap.Keyboards, KeyboardData{
			ID:         e.id,
			AccessTime: e.accessTime,
			Buttons:    maps.Clone(e.buttons),
		})
	}
	return snap
}

// Load replaces the cache contents with snap.
func (c *CallbackDataCache) Load(snap *CallbackDataSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.keyboards)
	clear(c.queries)
	if snap == nil {
		return
	}
	for _, kb := range snap.Keyboards {
		c.put(&keyboardEntry{id: kb.ID, accessTime: kb.AccessTime, buttons: maps.Clone(kb.Buttons)})
	}
	maps.Copy(c.queries, snap.Queries)
}

package ext

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// CallbackQueryHandler handles callback queries. Without any pattern every
// callback query matches. Queries carrying data are matched by Pattern
// (string data, anchored at the start), Match or DataType; queries of games
// are matched by GamePattern.
type CallbackQueryHandler struct {
	Pattern *regexp.Regexp
	// Match is called with the callback data: the resolved value when
	// arbitrary callback data is enabled, the raw string otherwise.
	Match func(data any) bool
	// DataType matches the Go type of resolved arbitrary callback data.
	DataType    reflect.Type
	GamePattern *regexp.Regexp
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *CallbackQueryHandler) Validate() error {
	n := 0
	for _, set := range []bool{h.Pattern != nil, h.Match != nil, h.DataType != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("ext: CallbackQueryHandler takes only one of Pattern, Match and DataType")
	}
	if h.Callback == nil {
		return errNoCallback
	}
	return nil
}

func (h *CallbackQueryHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok || u.CallbackQuery == nil {
		return nil, false
	}
	q := u.CallbackQuery
	dataPattern := h.Pattern != nil || h.Match != nil || h.DataType != nil
	if !dataPattern && h.GamePattern == nil {
		return nil, true
	}

	var data any = q.Data
	if q.Value != nil {
		data = q.Value
	}
	switch {
	case q.Value != nil || q.Data != "":
		if !dataPattern {
			return nil, false
		}
		if h.DataType != nil {
			return nil, reflect.TypeOf(data) == h.DataType
		}
		if h.Match != nil {
			return nil, h.Match(data)
		}
		s, isString := data.(string)
		if !isString {
			return nil, false
		}
		m, ok := matchStart(h.Pattern, s)
		return m, ok
	case q.GameShortName != "":
		if h.GamePattern == nil {
			return nil, false
		}
		m, ok := matchStart(h.GamePattern, q.GameShortName)
		return m, ok
	}
	return nil, true
}

func (h *CallbackQueryHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if m, ok := check.([]string); ok {
		c.Matches = append(c.Matches, m)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *CallbackQueryHandler) Block() bool { return !h.NonBlocking }

// InlineQueryHandler handles inline queries, optionally restricted to a
// query Pattern and to the types of chat the query was sent from.
type InlineQueryHandler struct {
	Pattern     *regexp.Regexp
	ChatTypes   []string
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *InlineQueryHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok || u.InlineQuery == nil {
		return nil, false
	}
	q := u.InlineQuery
	if len(h.ChatTypes) > 0 && !slices.Contains(h.ChatTypes, q.ChatType) {
		return nil, false
	}
	if h.Pattern == nil {
		return nil, true
	}
	if q.Query == "" {
		return nil, false
	}
	m, ok := matchStart(h.Pattern, q.Query)
	return m, ok
}

func (h *InlineQueryHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if m, ok := check.([]string); ok {
		c.Matches = append(c.Matches, m)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *InlineQueryHandler) Block() bool { return !h.NonBlocking }

// ChosenInlineResultHandler handles chosen inline results, optionally
// matching Pattern against the result id.
type ChosenInlineResultHandler struct {
	Pattern     *regexp.Regexp
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *ChosenInlineResultHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok || u.ChosenInlineResult == nil {
		return nil, false
	}
	if h.Pattern == nil {
		return nil, true
	}
	m, ok := matchStart(h.Pattern, u.ChosenInlineResult.ResultID)
	return m, ok
}

func (h *ChosenInlineResultHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if m, ok := check.([]string); ok {
		c.Matches = append(c.Matches, m)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *ChosenInlineResultHandler) Block() bool { return !h.NonBlocking }

// PollHandler handles poll state updates.
type PollHandler struct {
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *PollHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	return nil, ok && u.Poll != nil
}

func (h *PollHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *PollHandler) Block() bool { return !h.NonBlocking }

// PollAnswerHandler handles answers of non-anonymous polls.
type PollAnswerHandler struct {
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *PollAnswerHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	return nil, ok && u.PollAnswer != nil
}

func (h *PollAnswerHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *PollAnswerHandler) Block() bool { return !h.NonBlocking }

// PreCheckoutQueryHandler handles pre-checkout queries, optionally matching
// Pattern against the invoice payload.
type PreCheckoutQueryHandler struct {
	Pattern     *regexp.Regexp
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *PreCheckoutQueryHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	if !ok || u.PreCheckoutQuery == nil {
		return nil, false
	}
	if h.Pattern == nil {
		return nil, true
	}
	m, ok := matchStart(h.Pattern, u.PreCheckoutQuery.InvoicePayload)
	return m, ok
}

func (h *PreCheckoutQueryHandler) HandleUpdate(ctx context.Context, _ *Application, update any, check any, c *CallbackContext) error {
	if m, ok := check.([]string); ok {
		c.Matches = append(c.Matches, m)
	}
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *PreCheckoutQueryHandler) Block() bool { return !h.NonBlocking }

// ShippingQueryHandler handles shipping queries.
type ShippingQueryHandler struct {
	Callback    HandlerFunc
	NonBlocking bool
}

func (h *ShippingQueryHandler) CheckUpdate(update any) (any, bool) {
	u, ok := asTelegram(update)
	return nil, ok && u.ShippingQuery != nil
}

func (h *ShippingQueryHandler) HandleUpdate(ctx context.Context, _ *Application, update any, _ any, c *CallbackContext) error {
	return h.Callback(ctx, update.(*telegram.Update), c)
}

func (h *ShippingQueryHandler) Block() bool { return !h.NonBlocking }

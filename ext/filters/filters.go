// Package filters selects which message updates an ext handler reacts to.
//
// Filters only ever match updates carrying a message, edited message,
// channel post or edited channel post. Combine them with And, Or, Xor and Not.
package filters

import (
	"strings"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// Data is extra information produced by data filters, e.g. regex matches
// under the "matches" key. Data of combined filters is merged.
type Data map[string][]any

// MatchesKey is the Data key under which regex filters store submatches.
const MatchesKey = "matches"

func (d Data) merge(other Data) Data {
	if len(other) == 0 {
		return d
	}
	if d == nil {
		d = make(Data, len(other))
	}
	for k, v := range other {
		d[k] = append(d[k], v...)
	}
	return d
}

// Matches returns the regex submatches collected under MatchesKey.
func (d Data) Matches() [][]string {
	var out [][]string
	for _, v := range d[MatchesKey] {
		if m, ok := v.([]string); ok {
			out = append(out, m)
		}
	}
	return out
}

// Filter decides whether an update should be handled.
type Filter interface {
	Check(u *telegram.Update) (bool, Data)
	Name() string
}

// message returns the message-like payload filters operate on.
func message(u *telegram.Update) *telegram.Message {
	if u == nil {
		return nil
	}
	switch {
	case u.Message != nil:
		return u.Message
	case u.EditedMessage != nil:
		return u.EditedMessage
	case u.ChannelPost != nil:
		return u.ChannelPost
	case u.EditedChannelPost != nil:
		return u.EditedChannelPost
	}
	return nil
}

type messageFilter struct {
	name string
	fn   func(m *telegram.Message) bool
}

// NewMessageFilter builds a filter from a predicate on the update's message.
func NewMessageFilter(name string, fn func(m *telegram.Message) bool) Filter {
	return messageFilter{name: name, fn: fn}
}

func (f messageFilter) Check(u *telegram.Update) (bool, Data) {
	m := message(u)
	if m == nil {
		return false, nil
	}
	return f.fn(m), nil
}

func (f messageFilter) Name() string { return f.name }

type updateFilter struct {
	name string
	fn   func(u *telegram.Update) bool
}

// NewUpdateFilter builds a filter from a predicate on the whole update.
// Updates without a message never match.
func NewUpdateFilter(name string, fn func(u *telegram.Update) bool) Filter {
	return updateFilter{name: name, fn: fn}
}

func (f updateFilter) Check(u *telegram.Update) (bool, Data) {
	if message(u) == nil {
		return false, nil
	}
	return f.fn(u), nil
}

func (f updateFilter) Name() string { return f.name }

type dataFilter struct {
	name string
	fn   func(m *telegram.Message) (bool, Data)
}

// NewDataFilter builds a filter that also returns Data when it matches.
func NewDataFilter(name string, fn func(m *telegram.Message) (bool, Data)) Filter {
	return dataFilter{name: name, fn: fn}
}

func (f dataFilter) Check(u *telegram.Update) (bool, Data) {
	m := message(u)
	if m == nil {
		return false, nil
	}
	ok, data := f.fn(m)
	if !ok {
		return false, nil
	}
	return true, data
}

func (f dataFilter) Name() string { return f.name }

type andFilter struct{ filters []Filter }

// And matches when every filter matches. Evaluation stops at the first
// filter that does not match; Data of all filters is merged.
func And(filters ...Filter) Filter { return andFilter{filters: filters} }

func (f andFilter) Check(u *telegram.Update) (bool, Data) {
	if message(u) == nil {
		return false, nil
	}
	var data Data
	for _, sub := range f.filters {
		ok, d := sub.Check(u)
		if !ok {
			return false, nil
		}
		data = data.merge(d)
	}
	return true, data
}

func (f andFilter) Name() string { return joinNames(f.filters, " and ") }

type orFilter struct{ filters []Filter }

// Or matches when any filter matches and returns the Data of the first
// matching one. Later filters are not evaluated.
func Or(filters ...Filter) Filter { return orFilter{filters: filters} }

func (f orFilter) Check(u *telegram.Update) (bool, Data) {
	if message(u) == nil {
		return false, nil
	}
	for _, sub := range f.filters {
		if ok, d := sub.Check(u); ok {
			return true, d
		}
	}
	return false, nil
}

func (f orFilter) Name() string { return joinNames(f.filters, " or ") }

type xorFilter struct{ a, b Filter }

// Xor matches when exactly one of the two filters matches.
func Xor(a, b Filter) Filter { return xorFilter{a: a, b: b} }

func (f xorFilter) Check(u *telegram.Update) (bool, Data) {
	if message(u) == nil {
		return false, nil
	}
	okA, dataA := f.a.Check(u)
	okB, dataB := f.b.Check(u)
	switch {
	case okA && !okB:
		return true, dataA
	case okB && !okA:
		return true, dataB
	}
	return false, nil
}

func (f xorFilter) Name() string { return "<" + f.a.Name() + " xor " + f.b.Name() + ">" }

type notFilter struct{ f Filter }

// Not inverts a filter. It still never matches updates without a message.
func Not(f Filter) Filter { return notFilter{f: f} }

func (f notFilter) Check(u *telegram.Update) (bool, Data) {
	if message(u) == nil {
		return false, nil
	}
	ok, _ := f.f.Check(u)
	return !ok, nil
}

func (f notFilter) Name() string { return "<inverted " + f.f.Name() + ">" }

func joinNames(filters []Filter, sep string) string {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name()
	}
	return "<" + strings.Join(names, sep) + ">"
}

package pollbot

import (
	"encoding/json"
	"strings"

	"gitlab.com/yelinaung/tgbot/ext"
	"gitlab.com/yelinaung/tgbot/telegram"
)

// TotalVoterCount is the number of voters after which a poll is closed.
const TotalVoterCount = 3

// pollRecord is kept in bot data under pollKey(poll id). Poll answers carry
// no chat, so the chat and message are looked up here.
type pollRecord struct {
	// Options is empty for quizzes.
	Options   []string `json:"options,omitempty"`
	ChatID    int64    `json:"chat_id"`
	MessageID int      `json:"message_id"`
	Answers   int      `json:"answers"`
}

func pollKey(pollID string) string { return "poll:" + pollID }

// decodeRecord accepts a pollRecord as well as the generic map a persistence
// hands back after a restart.
func decodeRecord(v any) (pollRecord, bool) {
	switch r := v.(type) {
	case nil:
		return pollRecord{}, false
	case pollRecord:
		return r, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return pollRecord{}, false
	}
	var rec pollRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return pollRecord{}, false
	}
	return rec, rec.ChatID != 0
}

func lookupRecord(s *ext.Store, pollID string) (pollRecord, bool) {
	v, _ := s.Get(pollKey(pollID))
	return decodeRecord(v)
}

// recordAnswer counts one answer for the poll and returns the updated
// record.
func recordAnswer(s *ext.Store, pollID string) (rec pollRecord, ok bool) {
	s.Update(func(data map[string]any) {
		rec, ok = decodeRecord(data[pollKey(pollID)])
		if !ok {
			return
		}
		rec.Answers++
		data[pollKey(pollID)] = rec
	})
	return rec, ok
}

// formatAnswer joins the chosen options with "and". Unknown option ids are
// skipped.
func formatAnswer(options []string, optionIDs []int) string {
	chosen := make([]string, 0, len(optionIDs))
	for _, id := range optionIDs {
		if id >= 0 && id < len(options) {
			chosen = append(chosen, options[id])
		}
	}
	return strings.Join(chosen, " and ")
}

func optionTexts(p *telegram.Poll) []string {
	out := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		out = append(out, o.Text)
	}
	return out
}

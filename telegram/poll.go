package telegram

// Poll types.
const (
	PollRegular = "regular"
	PollQuiz    = "quiz"
)

// PollOption is one answer option of a poll.
type PollOption struct {
	Text         string          `json:"text"`
	TextEntities []MessageEntity `json:"text_entities,omitempty"`
	VoterCount   int             `json:"voter_count"`
}

// InputPollOption is an answer option of a poll being sent.
type InputPollOption struct {
	Text          string          `json:"text"`
	TextParseMode string          `json:"text_parse_mode,omitempty"`
	TextEntities  []MessageEntity `json:"text_entities,omitempty"`
}

// Poll contains information about a poll.
type Poll struct {
	ID                    string          `json:"id"`
	Question              string          `json:"question"`
	QuestionEntities      []MessageEntity `json:"question_entities,omitempty"`
	Options               []PollOption    `json:"options"`
	TotalVoterCount       int             `json:"total_voter_count"`
	IsClosed              bool            `json:"is_closed"`
	IsAnonymous           bool            `json:"is_anonymous"`
	Type                  string          `json:"type"`
	AllowsMultipleAnswers bool            `json:"allows_multiple_answers"`
	CorrectOptionID       *int            `json:"correct_option_id,omitempty"`
	Explanation           string          `json:"explanation,omitempty"`
	ExplanationEntities   []MessageEntity `json:"explanation_entities,omitempty"`
	OpenPeriod            int             `json:"open_period,omitempty"`
	CloseDate             int64           `json:"close_date,omitempty"`
}

// ParseExplanationEntity returns the explanation text covered by the entity.
func (p *Poll) ParseExplanationEntity(e MessageEntity) string {
	return e.Slice(p.Explanation)
}

// ParseQuestionEntity returns the question text covered by the entity.
func (p *Poll) ParseQuestionEntity(e MessageEntity) string {
	return e.Slice(p.Question)
}

// PollAnswer is an answer of a user in a non-anonymous poll. VoterChat is
// set when the vote was cast by an anonymous chat admin.
type PollAnswer struct {
	PollID    string `json:"poll_id"`
	VoterChat *Chat  `json:"voter_chat,omitempty"`
	User      *User  `json:"user,omitempty"`
	OptionIDs []int  `json:"option_ids"`
}

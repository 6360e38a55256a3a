package telegram

// Reaction kinds.
const (
	ReactionEmoji       = "emoji"
	ReactionCustomEmoji = "custom_emoji"
)

// ReactionType is a reaction, either a standard emoji or a custom emoji.
type ReactionType struct {
	Type          string `json:"type"`
	Emoji         string `json:"emoji,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

// EmojiReaction returns a standard emoji reaction.
func EmojiReaction(emoji string) ReactionType {
	return ReactionType{Type: ReactionEmoji, Emoji: emoji}
}

// CustomEmojiReaction returns a custom emoji reaction.
func CustomEmojiReaction(id string) ReactionType {
	return ReactionType{Type: ReactionCustomEmoji, CustomEmojiID: id}
}

// ReactionCount is a reaction added to a message along with the number of times it was added.
type ReactionCount struct {
	Type       ReactionType `json:"type"`
	TotalCount int          `json:"total_count"`
}

// MessageReactionUpdated is a change of a reaction on a message performed by a user.
type MessageReactionUpdated struct {
	Chat        Chat           `json:"chat"`
	MessageID   int            `json:"message_id"`
	User        *User          `json:"user,omitempty"`
	ActorChat   *Chat          `json:"actor_chat,omitempty"`
	Date        int64          `json:"date"`
	OldReaction []ReactionType `json:"old_reaction"`
	NewReaction []ReactionType `json:"new_reaction"`
}

// MessageReactionCountUpdated is a change of anonymous reactions on a message.
type MessageReactionCountUpdated struct {
	Chat      Chat            `json:"chat"`
	MessageID int             `json:"message_id"`
	Date      int64           `json:"date"`
	Reactions []ReactionCount `json:"reactions"`
}

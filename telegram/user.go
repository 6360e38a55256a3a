package telegram

import (
	"fmt"
	"html"
)

// User represents a Telegram user or bot.
type User struct {
	ID                      int64  `json:"id"`
	IsBot                   bool   `json:"is_bot"`
	FirstName               string `json:"first_name"`
	LastName                string `json:"last_name,omitempty"`
	Username                string `json:"username,omitempty"`
	LanguageCode            string `json:"language_code,omitempty"`
	IsPremium               bool   `json:"is_premium,omitempty"`
	AddedToAttachmentMenu   bool   `json:"added_to_attachment_menu,omitempty"`
	CanJoinGroups           bool   `json:"can_join_groups,omitempty"`
	CanReadAllGroupMessages bool   `json:"can_read_all_group_messages,omitempty"`
	SupportsInlineQueries   bool   `json:"supports_inline_queries,omitempty"`
	CanConnectToBusiness    bool   `json:"can_connect_to_business,omitempty"`
}

// FullName returns the first name followed by the last name, if present.
func (u *User) FullName() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// Name returns "@username" when the user has a username and the full name otherwise.
func (u *User) Name() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FullName()
}

// Link returns the public t.me link of the user, or "" without a username.
func (u *User) Link() string {
	if u.Username == "" {
		return ""
	}
	return "https://t.me/" + u.Username
}

// MentionHTML returns an HTML inline mention of the user. An empty name
// falls back to the full name.
func (u *User) MentionHTML(name string) string {
	if name == "" {
		name = u.FullName()
	}
	return MentionHTML(u.ID, name)
}

// MentionMarkdownV2 returns a MarkdownV2 inline mention of the user.
func (u *User) MentionMarkdownV2(name string) string {
	if name == "" {
		name = u.FullName()
	}
	return MentionMarkdown(u.ID, name, 2)
}

// Equal reports whether both users have the same id.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.ID == other.ID
}

// UserProfilePhotos holds a user's profile pictures, each in several sizes.
type UserProfilePhotos struct {
	TotalCount int           `json:"total_count"`
	Photos     [][]PhotoSize `json:"photos"`
}

// MentionHTML builds an HTML inline mention for the given user id.
func MentionHTML(userID int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// MentionMarkdown builds a Markdown inline mention for the given user id.
// Version 1 uses legacy Markdown, version 2 escapes the name for MarkdownV2.
func MentionMarkdown(userID int64, name string, version int) string {
	tgLink := fmt.Sprintf("tg://user?id=%d", userID)
	if version == 1 {
		return fmt.Sprintf("[%s](%s)", name, tgLink)
	}
	return fmt.Sprintf("[%s](%s)", EscapeMarkdown(name, 2, ""), tgLink)
}

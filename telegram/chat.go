package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Chat types.
const (
	ChatTypeSender     = "sender"
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
	ChatTypeChannel    = "channel"
)

// Chat represents a chat.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsForum   bool   `json:"is_forum,omitempty"`
}

// EffectiveName returns the title for groups and channels and the full name
// for private chats.
func (c *Chat) EffectiveName() string {
	if c.Title != "" {
		return c.Title
	}
	if c.FirstName != "" && c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	if c.FirstName != "" {
		return c.FirstName
	}
	return c.LastName
}

// Link returns the public t.me link of the chat, or "" without a username.
func (c *Chat) Link() string {
	if c.Username == "" {
		return ""
	}
	return "https://t.me/" + c.Username
}

// IsGroup reports whether the chat is a group or a supergroup.
func (c *Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup || c.Type == ChatTypeSupergroup
}

// Equal reports whether both chats have the same id.
func (c *Chat) Equal(other *Chat) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.ID == other.ID
}

// ChatFullInfo is returned by getChat and carries the full chat description.
type ChatFullInfo struct {
	Chat
	AccentColorID                      int              `json:"accent_color_id"`
	MaxReactionCount                   int              `json:"max_reaction_count"`
	Photo                              *ChatPhoto       `json:"photo,omitempty"`
	ActiveUsernames                    []string         `json:"active_usernames,omitempty"`
	Bio                                string           `json:"bio,omitempty"`
	HasPrivateForwards                 bool             `json:"has_private_forwards,omitempty"`
	HasRestrictedVoiceAndVideoMessages bool             `json:"has_restricted_voice_and_video_messages,omitempty"`
	JoinToSendMessages                 bool             `json:"join_to_send_messages,omitempty"`
	JoinByRequest                      bool             `json:"join_by_request,omitempty"`
	Description                        string           `json:"description,omitempty"`
	InviteLink                         string           `json:"invite_link,omitempty"`
	PinnedMessage                      *Message         `json:"pinned_message,omitempty"`
	Permissions                        *ChatPermissions `json:"permissions,omitempty"`
	SlowModeDelay                      int              `json:"slow_mode_delay,omitempty"`
	MessageAutoDeleteTime              int              `json:"message_auto_delete_time,omitempty"`
	HasProtectedContent                bool             `json:"has_protected_content,omitempty"`
	StickerSetName                     string           `json:"sticker_set_name,omitempty"`
	LinkedChatID                       int64            `json:"linked_chat_id,omitempty"`
	Location                           *ChatLocation    `json:"location,omitempty"`
}

// ChatPhoto holds the file ids of a chat photo.
type ChatPhoto struct {
	SmallFileID       string `json:"small_file_id"`
	SmallFileUniqueID string `json:"small_file_unique_id"`
	BigFileID         string `json:"big_file_id"`
	BigFileUniqueID   string `json:"big_file_unique_id"`
}

// ChatLocation is the location to which a supergroup is connected.
type ChatLocation struct {
	Location Location `json:"location"`
	Address  string   `json:"address"`
}

// ChatPermissions describes actions that a non-administrator user is allowed to take in a chat.
type ChatPermissions struct {
	CanSendMessages       *bool `json:"can_send_messages,omitempty"`
	CanSendAudios         *bool `json:"can_send_audios,omitempty"`
	CanSendDocuments      *bool `json:"can_send_documents,omitempty"`
	CanSendPhotos         *bool `json:"can_send_photos,omitempty"`
	CanSendVideos         *bool `json:"can_send_videos,omitempty"`
	CanSendVideoNotes     *bool `json:"can_send_video_notes,omitempty"`
	CanSendVoiceNotes     *bool `json:"can_send_voice_notes,omitempty"`
	CanSendPolls          *bool `json:"can_send_polls,omitempty"`
	CanSendOtherMessages  *bool `json:"can_send_other_messages,omitempty"`
	CanAddWebPagePreviews *bool `json:"can_add_web_page_previews,omitempty"`
	CanChangeInfo         *bool `json:"can_change_info,omitempty"`
	CanInviteUsers        *bool `json:"can_invite_users,omitempty"`
	CanPinMessages        *bool `json:"can_pin_messages,omitempty"`
	CanManageTopics       *bool `json:"can_manage_topics,omitempty"`
}

// AllPermissions returns permissions with every flag set to true.
func AllPermissions() ChatPermissions { return uniformPermissions(true) }

// NoPermissions returns permissions with every flag set to false.
func NoPermissions() ChatPermissions { return uniformPermissions(false) }

func uniformPermissions(v bool) ChatPermissions {
	b := func() *bool { x := v; return &x }
	return ChatPermissions{
		CanSendMessages:       b(),
		CanSendAudios:         b(),
		CanSendDocuments:      b(),
		CanSendPhotos:         b(),
		CanSendVideos:         b(),
		CanSendVideoNotes:     b(),
		CanSendVoiceNotes:     b(),
		CanSendPolls:          b(),
		CanSendOtherMessages:  b(),
		CanAddWebPagePreviews: b(),
		CanChangeInfo:         b(),
		CanInviteUsers:        b(),
		CanPinMessages:        b(),
		CanManageTopics:       b(),
	}
}

// ChatInviteLink represents an invite link for a chat.
type ChatInviteLink struct {
	InviteLink              string `json:"invite_link"`
	Creator                 User   `json:"creator"`
	CreatesJoinRequest      bool   `json:"creates_join_request"`
	IsPrimary               bool   `json:"is_primary"`
	IsRevoked               bool   `json:"is_revoked"`
	Name                    string `json:"name,omitempty"`
	ExpireDate              int64  `json:"expire_date,omitempty"`
	MemberLimit             int    `json:"member_limit,omitempty"`
	PendingJoinRequestCount int    `json:"pending_join_request_count,omitempty"`
}

// Chat member statuses.
const (
	ChatMemberOwner         = "creator"
	ChatMemberAdministrator = "administrator"
	ChatMemberMember        = "member"
	ChatMemberRestricted    = "restricted"
	ChatMemberLeft          = "left"
	ChatMemberBanned        = "kicked"
)

// ChatMember holds information about one member of a chat. Status selects
// which of the optional fields are meaningful.
type ChatMember struct {
	Status      string `json:"status"`
	User        User   `json:"user"`
	IsAnonymous bool   `json:"is_anonymous,omitempty"`
	CustomTitle string `json:"custom_title,omitempty"`
	UntilDate   int64  `json:"until_date,omitempty"`
	IsMember    bool   `json:"is_member,omitempty"`

	CanBeEdited         bool `json:"can_be_edited,omitempty"`
	CanManageChat       bool `json:"can_manage_chat,omitempty"`
	CanDeleteMessages   bool `json:"can_delete_messages,omitempty"`
	CanManageVideoChats bool `json:"can_manage_video_chats,omitempty"`
	CanRestrictMembers  bool `json:"can_restrict_members,omitempty"`
	CanPromoteMembers   bool `json:"can_promote_members,omitempty"`
	CanPostStories      bool `json:"can_post_stories,omitempty"`
	CanEditStories      bool `json:"can_edit_stories,omitempty"`
	CanDeleteStories    bool `json:"can_delete_stories,omitempty"`
	CanPostMessages     bool `json:"can_post_messages,omitempty"`
	CanEditMessages     bool `json:"can_edit_messages,omitempty"`

	ChatPermissions
}

// InChat reports whether the member is currently part of the chat.
func (m *ChatMember) InChat() bool {
	switch m.Status {
	case ChatMemberOwner, ChatMemberAdministrator, ChatMemberMember:
		return true
	case ChatMemberRestricted:
		return m.IsMember
	}
	return false
}

// ChatMemberUpdated represents changes in the status of a chat member.
type ChatMemberUpdated struct {
	Chat                    Chat            `json:"chat"`
	From                    User            `json:"from"`
	Date                    int64           `json:"date"`
	OldChatMember           ChatMember      `json:"old_chat_member"`
	NewChatMember           ChatMember      `json:"new_chat_member"`
	InviteLink              *ChatInviteLink `json:"invite_link,omitempty"`
	ViaChatFolderInviteLink bool            `json:"via_chat_folder_invite_link,omitempty"`
}

// Difference returns the attributes that changed between the old and the new
// member as name → [old, new] pairs of JSON values.
func (c *ChatMemberUpdated) Difference() map[string][2]any {
	oldFields := toFieldMap(c.OldChatMember)
	newFields := toFieldMap(c.NewChatMember)
	diff := make(map[string][2]any)
	for k, ov := range oldFields {
		nv, ok := newFields[k]
		if !ok || fmt.Sprint(ov) != fmt.Sprint(nv) {
			diff[k] = [2]any{ov, nv}
		}
	}
	for k, nv := range newFields {
		if _, ok := oldFields[k]; !ok {
			diff[k] = [2]any{nil, nv}
		}
	}
	return diff
}

func toFieldMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	_ = json.Unmarshal(data, &out)
	return out
}

// ChatJoinRequest represents a join request sent to a chat.
type ChatJoinRequest struct {
	Chat       Chat            `json:"chat"`
	From       User            `json:"from"`
	UserChatID int64           `json:"user_chat_id"`
	Date       int64           `json:"date"`
	Bio        string          `json:"bio,omitempty"`
	InviteLink *ChatInviteLink `json:"invite_link,omitempty"`
}

// Chat boost source kinds.
const (
	BoostSourcePremium  = "premium"
	BoostSourceGiftCode = "gift_code"
	BoostSourceGiveaway = "giveaway"
)

// ChatBoostSource describes where a boost came from.
type ChatBoostSource struct {
	Source            string `json:"source"`
	User              *User  `json:"user,omitempty"`
	GiveawayMessageID int    `json:"giveaway_message_id,omitempty"`
	IsUnclaimed       bool   `json:"is_unclaimed,omitempty"`
}

// ChatBoost contains information about a chat boost.
type ChatBoost struct {
	BoostID        string          `json:"boost_id"`
	AddDate        int64           `json:"add_date"`
	ExpirationDate int64           `json:"expiration_date"`
	Source         ChatBoostSource `json:"source"`
}

// ChatBoostUpdated represents a boost added to a chat or changed.
type ChatBoostUpdated struct {
	Chat  Chat      `json:"chat"`
	Boost ChatBoost `json:"boost"`
}

// ChatBoostRemoved represents a boost removed from a chat.
type ChatBoostRemoved struct {
	Chat       Chat            `json:"chat"`
	BoostID    string          `json:"boost_id"`
	RemoveDate int64           `json:"remove_date"`
	Source     ChatBoostSource `json:"source"`
}

// UserChatBoosts is the list of boosts a user added to a chat.
type UserChatBoosts struct {
	Boosts []ChatBoost `json:"boosts"`
}

// ChatID addresses a chat either by numeric id or by "@channelusername".
type ChatID struct {
	ID       int64
	Username string
}

// ChatIDFromInt addresses a chat by id.
func ChatIDFromInt(id int64) ChatID { return ChatID{ID: id} }

// ChatIDFromUsername addresses a public chat by username; a missing "@" is added.
func ChatIDFromUsername(username string) ChatID {
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	return ChatID{Username: username}
}

// IsZero reports whether the chat id is unset.
func (c ChatID) IsZero() bool { return c.ID == 0 && c.Username == "" }

// String returns the id or the username.
func (c ChatID) String() string {
	if c.Username != "" {
		return c.Username
	}
	return strconv.FormatInt(c.ID, 10)
}

// MarshalJSON encodes the id as a number or the username as a string.
func (c ChatID) MarshalJSON() ([]byte, error) {
	if c.Username != "" {
		return json.Marshal(c.Username)
	}
	return json.Marshal(c.ID)
}

// UnmarshalJSON accepts either a number or a string.
func (c *ChatID) UnmarshalJSON(data []byte) error {
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*c = ChatID{ID: id}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("chat id must be a number or a string: %w", err)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = ChatID{ID: n}
		return nil
	}
	*c = ChatID{Username: s}
	return nil
}

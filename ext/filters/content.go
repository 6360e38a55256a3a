package filters

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"gitlab.com/yelinaung/tgbot/telegram"
)

// All matches every message-like update.
var All = NewMessageFilter("filters.All", func(*telegram.Message) bool { return true })

// Text matches text messages. With strings given, the text must equal one of them.
func Text(texts ...string) Filter {
	if len(texts) == 0 {
		return NewMessageFilter("filters.Text", func(m *telegram.Message) bool { return m.Text != "" })
	}
	return NewMessageFilter(fmt.Sprintf("filters.Text(%q)", texts), func(m *telegram.Message) bool {
		return m.Text != "" && slices.Contains(texts, m.Text)
	})
}

// Caption matches messages with a caption. With strings given, the caption
// must equal one of them.
func Caption(captions ...string) Filter {
	if len(captions) == 0 {
		return NewMessageFilter("filters.Caption", func(m *telegram.Message) bool { return m.Caption != "" })
	}
	return NewMessageFilter(fmt.Sprintf("filters.Caption(%q)", captions), func(m *telegram.Message) bool {
		return m.Caption != "" && slices.Contains(captions, m.Caption)
	})
}

// Command matches messages containing a bot command. With onlyStart the
// command must be the first entity at offset 0.
func Command(onlyStart bool) Filter {
	if onlyStart {
		return NewMessageFilter("filters.Command", func(m *telegram.Message) bool {
			return len(m.Entities) > 0 && m.Entities[0].Type == telegram.EntityBotCommand && m.Entities[0].Offset == 0
		})
	}
	return NewMessageFilter("filters.Command(false)", func(m *telegram.Message) bool {
		return hasEntity(m.Entities, telegram.EntityBotCommand)
	})
}

// Regex matches when pattern is found anywhere in the text. Submatches are
// returned under MatchesKey. The pattern panics if it does not compile.
func Regex(pattern string) Filter {
	return RegexCompiled(regexp.MustCompile(pattern))
}

// RegexCompiled is Regex with a precompiled expression.
func RegexCompiled(re *regexp.Regexp) Filter {
	return regexFilter("filters.Regex", re, func(m *telegram.Message) string { return m.Text })
}

// CaptionRegex is Regex applied to the caption.
func CaptionRegex(pattern string) Filter {
	return regexFilter("filters.CaptionRegex", regexp.MustCompile(pattern), func(m *telegram.Message) string { return m.Caption })
}

func regexFilter(name string, re *regexp.Regexp, field func(*telegram.Message) string) Filter {
	return NewDataFilter(fmt.Sprintf("%s(%q)", name, re.String()), func(m *telegram.Message) (bool, Data) {
		text := field(m)
		if text == "" {
			return false, nil
		}
		match := re.FindStringSubmatch(text)
		if match == nil {
			return false, nil
		}
		return true, Data{MatchesKey: {match}}
	})
}

// Entity matches messages whose text has an entity of the given type.
func Entity(entityType string) Filter {
	return NewMessageFilter("filters.Entity("+entityType+")", func(m *telegram.Message) bool {
		return hasEntity(m.Entities, entityType)
	})
}

// CaptionEntity matches messages whose caption has an entity of the given type.
func CaptionEntity(entityType string) Filter {
	return NewMessageFilter("filters.CaptionEntity("+entityType+")", func(m *telegram.Message) bool {
		return hasEntity(m.CaptionEntities, entityType)
	})
}

func hasEntity(entities []telegram.MessageEntity, entityType string) bool {
	return slices.ContainsFunc(entities, func(e telegram.MessageEntity) bool { return e.Type == entityType })
}

// Content filters.
var (
	Photo     = NewMessageFilter("filters.Photo", func(m *telegram.Message) bool { return len(m.Photo) > 0 })
	Audio     = NewMessageFilter("filters.Audio", func(m *telegram.Message) bool { return m.Audio != nil })
	Video     = NewMessageFilter("filters.Video", func(m *telegram.Message) bool { return m.Video != nil })
	Voice     = NewMessageFilter("filters.Voice", func(m *telegram.Message) bool { return m.Voice != nil })
	VideoNote = NewMessageFilter("filters.VideoNote", func(m *telegram.Message) bool { return m.VideoNote != nil })
	Animation = NewMessageFilter("filters.Animation", func(m *telegram.Message) bool { return m.Animation != nil })
	Contact   = NewMessageFilter("filters.Contact", func(m *telegram.Message) bool { return m.Contact != nil })
	Location  = NewMessageFilter("filters.Location", func(m *telegram.Message) bool { return m.Location != nil })
	Venue     = NewMessageFilter("filters.Venue", func(m *telegram.Message) bool { return m.Venue != nil })
	Poll      = NewMessageFilter("filters.Poll", func(m *telegram.Message) bool { return m.Poll != nil })
	Game      = NewMessageFilter("filters.Game", func(m *telegram.Message) bool { return m.Game != nil })
	Invoice   = NewMessageFilter("filters.Invoice", func(m *telegram.Message) bool { return m.Invoice != nil })
	Story     = NewMessageFilter("filters.Story", func(m *telegram.Message) bool { return m.Story != nil })

	SuccessfulPayment = NewMessageFilter("filters.SuccessfulPayment", func(m *telegram.Message) bool { return m.SuccessfulPayment != nil })
	PassportData      = NewMessageFilter("filters.PassportData", func(m *telegram.Message) bool { return m.PassportData != nil })

	Reply               = NewMessageFilter("filters.Reply", func(m *telegram.Message) bool { return m.ReplyToMessage != nil })
	Quote               = NewMessageFilter("filters.Quote", func(m *telegram.Message) bool { return m.Quote != nil })
	Forwarded           = NewMessageFilter("filters.Forwarded", func(m *telegram.Message) bool { return m.ForwardOrigin != nil })
	IsAutomaticForward  = NewMessageFilter("filters.IsAutomaticForward", func(m *telegram.Message) bool { return m.IsAutomaticForward })
	IsTopicMessage      = NewMessageFilter("filters.IsTopicMessage", func(m *telegram.Message) bool { return m.IsTopicMessage })
	HasProtectedContent = NewMessageFilter("filters.HasProtectedContent", func(m *telegram.Message) bool { return m.HasProtectedContent })
	HasMediaSpoiler     = NewMessageFilter("filters.HasMediaSpoiler", func(m *telegram.Message) bool { return m.HasMediaSpoiler })

	Premium        = NewMessageFilter("filters.Premium", func(m *telegram.Message) bool { return m.From != nil && m.From.IsPremium })
	UserAttachment = NewMessageFilter("filters.UserAttachment", func(m *telegram.Message) bool {
		return m.From != nil && m.From.AddedToAttachmentMenu
	})
)

// Sticker filters.
var (
	Sticker         = NewMessageFilter("filters.Sticker", func(m *telegram.Message) bool { return m.Sticker != nil })
	StickerStatic   = NewMessageFilter("filters.Sticker.Static", func(m *telegram.Message) bool { return m.Sticker != nil && !m.Sticker.IsAnimated && !m.Sticker.IsVideo })
	StickerAnimated = NewMessageFilter("filters.Sticker.Animated", func(m *telegram.Message) bool { return m.Sticker != nil && m.Sticker.IsAnimated })
	StickerVideo    = NewMessageFilter("filters.Sticker.Video", func(m *telegram.Message) bool { return m.Sticker != nil && m.Sticker.IsVideo })
	StickerPremium  = NewMessageFilter("filters.Sticker.Premium", func(m *telegram.Message) bool {
		return m.Sticker != nil && m.Sticker.PremiumAnimation != nil
	})
)

// Document matches any document.
var Document = NewMessageFilter("filters.Document", func(m *telegram.Message) bool { return m.Document != nil })

// Document categories, matched on the mime type prefix.
var (
	DocumentApplication = DocumentCategory("application/")
	DocumentAudio       = DocumentCategory("audio/")
	DocumentImage       = DocumentCategory("image/")
	DocumentVideo       = DocumentCategory("video/")
	DocumentText        = DocumentCategory("text/")
)

// Common document mime types.
var (
	DocumentPDF  = DocumentMimeType("application/pdf")
	DocumentZIP  = DocumentMimeType("application/zip")
	DocumentJPG  = DocumentMimeType("image/jpeg")
	DocumentPNG  = DocumentMimeType("image/png")
	DocumentGIF  = DocumentMimeType("image/gif")
	DocumentMP3  = DocumentMimeType("audio/mpeg")
	DocumentMP4  = DocumentMimeType("video/mp4")
	DocumentTXT  = DocumentMimeType("text/plain")
	DocumentDOCX = DocumentMimeType("application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	DocumentXLSX = DocumentMimeType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
)

// DocumentCategory matches documents whose mime type starts with category.
func DocumentCategory(category string) Filter {
	return NewMessageFilter("filters.Document.Category("+category+")", func(m *telegram.Message) bool {
		return m.Document != nil && strings.HasPrefix(m.Document.MimeType, category)
	})
}

// DocumentMimeType matches documents with exactly the given mime type.
func DocumentMimeType(mimeType string) Filter {
	return NewMessageFilter("filters.Document.MimeType("+mimeType+")", func(m *telegram.Message) bool {
		return m.Document != nil && m.Document.MimeType == mimeType
	})
}

// FileExtension matches documents by file name extension, given without the
// leading dot ("pdf", "tar.gz"). An empty extension matches files without
// any extension. Unless caseSensitive is set the comparison ignores case.
func FileExtension(ext string, caseSensitive bool) Filter {
	name := fmt.Sprintf("filters.Document.FileExtension(%q)", ext)
	ext = strings.TrimPrefix(ext, ".")
	return NewMessageFilter(name, func(m *telegram.Message) bool {
		if m.Document == nil || m.Document.FileName == "" {
			return false
		}
		fileName := m.Document.FileName
		if ext == "" {
			return path.Ext(fileName) == ""
		}
		suffix := "." + ext
		if !caseSensitive {
			fileName, suffix = strings.ToLower(fileName), strings.ToLower(suffix)
		}
		return strings.HasSuffix(fileName, suffix)
	})
}

// Dice matches dice messages of any emoji. With values given, the dice
// value must be one of them.
func Dice(values ...int) Filter {
	return DiceEmoji("", values...)
}

// DiceEmoji matches dice messages with the given emoji, e.g. telegram.DiceDarts.
// An empty emoji matches all dice.
func DiceEmoji(emoji string, values ...int) Filter {
	name := "filters.Dice"
	if emoji != "" {
		name += "(" + emoji + ")"
	}
	if len(values) > 0 {
		name += fmt.Sprint(values)
	}
	return NewMessageFilter(name, func(m *telegram.Message) bool {
		if m.Dice == nil {
			return false
		}
		if emoji != "" && m.Dice.Emoji != emoji {
			return false
		}
		return len(values) == 0 || slices.Contains(values, m.Dice.Value)
	})
}

// Language matches messages from users whose language code starts with one
// of the given codes, e.g. "en" matches "en_US" and "en_GB".
func Language(codes ...string) Filter {
	return NewMessageFilter(fmt.Sprintf("filters.Language(%s)", strings.Join(codes, ", ")), func(m *telegram.Message) bool {
		if m.From == nil || m.From.LanguageCode == "" {
			return false
		}
		return slices.ContainsFunc(codes, func(c string) bool { return strings.HasPrefix(m.From.LanguageCode, c) })
	})
}

// Chat type filters.
var (
	ChatTypePrivate    = chatType("filters.ChatType.Private", telegram.ChatTypePrivate)
	ChatTypeGroup      = chatType("filters.ChatType.Group", telegram.ChatTypeGroup)
	ChatTypeSupergroup = chatType("filters.ChatType.Supergroup", telegram.ChatTypeSupergroup)
	ChatTypeGroups     = chatType("filters.ChatType.Groups", telegram.ChatTypeGroup, telegram.ChatTypeSupergroup)
	ChatTypeChannel    = chatType("filters.ChatType.Channel", telegram.ChatTypeChannel)
)

func chatType(name string, types ...string) Filter {
	return NewMessageFilter(name, func(m *telegram.Message) bool { return slices.Contains(types, m.Chat.Type) })
}

// Update type filters. They look at which field of the update is set rather
// than at the message itself.
var (
	UpdateTypeMessage           = NewUpdateFilter("filters.UpdateType.Message", func(u *telegram.Update) bool { return u.Message != nil })
	UpdateTypeEditedMessage     = NewUpdateFilter("filters.UpdateType.EditedMessage", func(u *telegram.Update) bool { return u.EditedMessage != nil })
	UpdateTypeChannelPost       = NewUpdateFilter("filters.UpdateType.ChannelPost", func(u *telegram.Update) bool { return u.ChannelPost != nil })
	UpdateTypeEditedChannelPost = NewUpdateFilter("filters.UpdateType.EditedChannelPost", func(u *telegram.Update) bool { return u.EditedChannelPost != nil })
	UpdateTypeMessages          = NewUpdateFilter("filters.UpdateType.Messages", func(u *telegram.Update) bool {
		return u.Message != nil || u.EditedMessage != nil
	})
	UpdateTypeChannelPosts = NewUpdateFilter("filters.UpdateType.ChannelPosts", func(u *telegram.Update) bool {
		return u.ChannelPost != nil || u.EditedChannelPost != nil
	})
	UpdateTypeEdited = NewUpdateFilter("filters.UpdateType.Edited", func(u *telegram.Update) bool {
		return u.EditedMessage != nil || u.EditedChannelPost != nil
	})
)

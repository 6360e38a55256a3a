package telegram

import (
	"encoding/json"
	"io"
)

// PhotoSize is one size of a photo or a file thumbnail.
type PhotoSize struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Animation is an animation file (GIF or H.264/MPEG-4 AVC video without sound).
type Animation struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Duration     int        `json:"duration"`
	Thumbnail    *PhotoSize `json:"thumbnail,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
}

// Audio is an audio file treated as music.
type Audio struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id"`
	Duration     int        `json:"duration"`
	Performer    string     `json:"performer,omitempty"`
	Title        string     `json:"title,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
	Thumbnail    *PhotoSize `json:"thumbnail,omitempty"`
}

// Document is a general file.
type Document struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id"`
	Thumbnail    *PhotoSize `json:"thumbnail,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
}

// Video is a video file.
type Video struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Duration     int        `json:"duration"`
	Thumbnail    *PhotoSize `json:"thumbnail,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
}

// VideoNote is a round video message.
type VideoNote struct {
	FileID       string     `json:"file_id"`
	FileUniqueID string     `json:"file_unique_id"`
	Length       int        `json:"length"`
	Duration     int        `json:"duration"`
	Thumbnail    *PhotoSize `json:"thumbnail,omitempty"`
	FileSize     int64      `json:"file_size,omitempty"`
}

// Voice is a voice note.
type Voice struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	Duration     int    `json:"duration"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// Sticker types.
const (
	StickerRegular     = "regular"
	StickerMask        = "mask"
	StickerCustomEmoji = "custom_emoji"
)

// Sticker is a sticker.
type Sticker struct {
	FileID           string     `json:"file_id"`
	FileUniqueID     string     `json:"file_unique_id"`
	Type             string     `json:"type"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	IsAnimated       bool       `json:"is_animated"`
	IsVideo          bool       `json:"is_video"`
	Thumbnail        *PhotoSize `json:"thumbnail,omitempty"`
	Emoji            string     `json:"emoji,omitempty"`
	SetName          string     `json:"set_name,omitempty"`
	PremiumAnimation *File      `json:"premium_animation,omitempty"`
	CustomEmojiID    string     `json:"custom_emoji_id,omitempty"`
	NeedsRepainting  bool       `json:"needs_repainting,omitempty"`
	FileSize         int64      `json:"file_size,omitempty"`
}

// File is a file ready to be downloaded with Bot.DownloadFile.
type File struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// InputFile is a file to send. Exactly one of FileID, URL or Reader is set.
// Files with a Reader are uploaded as multipart/form-data.
type InputFile struct {
	FileID   string
	URL      string
	Reader   io.Reader
	FileName string
}

// FileByID refers to a file already stored on the Telegram servers.
func FileByID(id string) *InputFile { return &InputFile{FileID: id} }

// FileByURL lets Telegram download the file from url.
func FileByURL(url string) *InputFile { return &InputFile{URL: url} }

// FileFromReader uploads the content of r under the given file name.
func FileFromReader(name string, r io.Reader) *InputFile {
	return &InputFile{FileName: name, Reader: r}
}

// NeedsUpload reports whether the file content must be sent in the request body.
func (f *InputFile) NeedsUpload() bool { return f != nil && f.Reader != nil }

// MarshalJSON encodes the file as its id, its URL or an attach:// reference
// to the multipart part carrying its content.
func (f *InputFile) MarshalJSON() ([]byte, error) {
	switch {
	case f.FileID != "":
		return json.Marshal(f.FileID)
	case f.URL != "":
		return json.Marshal(f.URL)
	}
	return json.Marshal("attach://" + f.FileName)
}

package logger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

const minSaltLength = 32

var hashSalt string

func init() {
	// Hashes are stable within one process until InitHashSalt is called.
	hashSalt = rand.Text()
}

// InitHashSalt loads the salt for user and chat hashes from LOG_HASH_SALT.
// When the variable is unset the random per-process salt is kept, so hashes
// cannot be correlated across restarts.
func InitHashSalt() error {
	salt := os.Getenv("LOG_HASH_SALT")
	if salt == "" {
		return nil
	}
	if len(salt) < minSaltLength {
		return fmt.Errorf("LOG_HASH_SALT must be at least %d characters", minSaltLength)
	}
	hashSalt = salt
	return nil
}

// InitHashSaltForTesting sets the salt directly.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

func hashID(id int64) string {
	data := fmt.Sprintf("%d:%s", id, hashSalt)
	hash := sha256.Sum256([]byte(data))
	// first 8 characters for readability
	return hex.EncodeToString(hash[:])[:8]
}

// HashUserID creates a privacy-preserving hash of a user ID.
func HashUserID(userID int64) string { return hashID(userID) }

// HashChatID creates a privacy-preserving hash of a chat ID.
func HashChatID(chatID int64) string { return hashID(chatID) }

// SanitizeText is a general-purpose sanitizer for any user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}
	n := utf8.RuneCountInString(text)
	if n <= 10 {
		return fmt.Sprintf("<%d chars>", n)
	}
	return fmt.Sprintf("%s...<%d chars>", string([]rune(text)[:3]), n)
}

// SanitizeOptions redacts poll options, keeping their number and sizes.
func SanitizeOptions(options []string) string {
	if len(options) == 0 {
		return "<no options>"
	}
	sizes := make([]string, len(options))
	for i, o := range options {
		sizes[i] = fmt.Sprint(utf8.RuneCountInString(o))
	}
	return fmt.Sprintf("<%d options: %s chars>", len(options), strings.Join(sizes, "/"))
}

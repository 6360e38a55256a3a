package logger

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Initialize hash salt for all tests in this package.
	InitHashSaltForTesting("test-salt-for-unit-tests-minimum-32-chars")
	os.Exit(m.Run())
}

func TestHashUserID(t *testing.T) {
	t.Run("produces consistent hash for same user ID", func(t *testing.T) {
		hash1 := HashUserID(12345)
		hash2 := HashUserID(12345)
		require.Equal(t, hash1, hash2)
	})

	t.Run("produces different hashes for different user IDs", func(t *testing.T) {
		hash1 := HashUserID(12345)
		hash2 := HashUserID(67890)
		require.NotEqual(t, hash1, hash2)
	})

	t.Run("produces 8 character hash", func(t *testing.T) {
		hash := HashUserID(12345)
		require.Len(t, hash, 8)
	})

	t.Run("changes hash when salt changes", func(t *testing.T) {
		originalSalt := hashSalt
		defer func() { hashSalt = originalSalt }()

		hash1 := HashUserID(12345)

		hashSalt = "different-salt"
		hash2 := HashUserID(12345)

		require.NotEqual(t, hash1, hash2)
	})
}

func TestHashChatID(t *testing.T) {
	t.Run("produces consistent hash for same chat ID", func(t *testing.T) {
		hash1 := HashChatID(12345)
		hash2 := HashChatID(12345)
		require.Equal(t, hash1, hash2)
	})

	t.Run("produces different hashes for different chat IDs", func(t *testing.T) {
		hash1 := HashChatID(12345)
		hash2 := HashChatID(67890)
		require.NotEqual(t, hash1, hash2)
	})
}

func TestSanitizeOptions(t *testing.T) {
	t.Run("handles no options", func(t *testing.T) {
		require.Equal(t, "<no options>", SanitizeOptions(nil))
	})

	t.Run("keeps count and sizes only", func(t *testing.T) {
		result := SanitizeOptions([]string{"Pizza", "Mohinga", "ခေါက်ဆွဲ"})
		require.Equal(t, "<3 options: 5/7/8 chars>", result)
		require.NotContains(t, result, "Pizza")
	})
}

func TestSanitizeText(t *testing.T) {
	t.Run("redacts empty text", func(t *testing.T) {
		result := SanitizeText("")
		require.Equal(t, "<empty>", result)
	})

	t.Run("shows length for short text", func(t *testing.T) {
		result := SanitizeText("short")
		require.Equal(t, "<5 chars>", result)
	})

	t.Run("shows prefix for longer text", func(t *testing.T) {
		result := SanitizeText("this is a long text")
		require.Contains(t, result, "thi...")
		require.Contains(t, result, "19 chars")
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		result := SanitizeText("မင်္ဂလာပါ ခင်ဗျာ")
		require.Equal(t, "မင်...<16 chars>", result)
	})
}

func TestInitHashSalt(t *testing.T) {
	const valid = "this-is-a-valid-salt-with-at-least-32-characters"

	tests := []struct {
		name     string
		env      string
		wantErr  bool
		wantSalt func(before string) string
	}{
		{"keeps the process salt when unset", "", false, func(before string) string { return before }},
		{"rejects a short salt", "short", true, func(before string) string { return before }},
		{"uses a long enough salt", valid, false, func(string) string { return valid }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := hashSalt
			t.Cleanup(func() { hashSalt = before })
			t.Setenv("LOG_HASH_SALT", tt.env)

			err := InitHashSalt()
			if tt.wantErr {
				require.ErrorContains(t, err, "at least 32 characters")
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantSalt(before), hashSalt)
		})
	}
}

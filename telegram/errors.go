package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors. Errors returned by Bot wrap one of them so callers can use errors.Is.
var (
	ErrForbidden          = errors.New("telegram: forbidden")
	ErrInvalidToken       = errors.New("telegram: invalid token")
	ErrBadRequest         = errors.New("telegram: bad request")
	ErrNetwork            = errors.New("telegram: network error")
	ErrTimedOut           = errors.New("telegram: timed out")
	ErrConflict           = errors.New("telegram: conflict")
	ErrChatMigrated       = errors.New("telegram: chat migrated")
	ErrRetryAfter         = errors.New("telegram: flood control exceeded")
	ErrEndOfFile          = errors.New("telegram: end of file")
	ErrPassportDecryption = errors.New("telegram: passport decryption failed")
)

// APIError is an unsuccessful Bot API response.
type APIError struct {
	Method          string
	Code            int
	Description     string
	RetryAfter      int
	MigrateToChatID int64
}

func (e *APIError) Error() string {
	switch {
	case e.MigrateToChatID != 0:
		return fmt.Sprintf("telegram: %s: group migrated to supergroup %d", e.Method, e.MigrateToChatID)
	case e.RetryAfter > 0:
		return fmt.Sprintf("telegram: %s: flood control exceeded, retry in %ds", e.Method, e.RetryAfter)
	}
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

// Unwrap maps the response to one of the sentinel errors.
func (e *APIError) Unwrap() error {
	switch {
	case e.MigrateToChatID != 0:
		return ErrChatMigrated
	case e.RetryAfter > 0:
		return ErrRetryAfter
	}
	switch e.Code {
	case 401, 404:
		return ErrInvalidToken
	case 403:
		return ErrForbidden
	case 400:
		return ErrBadRequest
	case 409:
		return ErrConflict
	}
	return ErrNetwork
}

// RetryAfterDuration returns how long to wait before repeating the request.
func (e *APIError) RetryAfterDuration() time.Duration {
	return time.Duration(e.RetryAfter) * time.Second
}

// transportError classifies a failed HTTP round trip and strips the token
// from the request URL carried by the error.
func transportError(method, token string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && token != "" {
		uerr.URL = strings.ReplaceAll(uerr.URL, token, "<token>")
	}
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("telegram: %s request failed: %w: %w", method, ErrTimedOut, err)
	}
	return fmt.Errorf("telegram: %s request failed: %w: %w", method, ErrNetwork, err)
}

package ext

import (
	"errors"
	"fmt"
)

// ErrHandlerStop stops processing of the current update in later handler groups.
var ErrHandlerStop = errors.New("ext: handler stopped update processing")

// ErrInvalidCallbackData is matched by *InvalidCallbackData.
var ErrInvalidCallbackData = errors.New("ext: invalid callback data")

// Special conversation states.
const (
	// StateEnd ends a conversation.
	StateEnd = "__end__"
	// StateTimeout holds the handlers run when a conversation times out.
	StateTimeout = "__timeout__"
	// StateWaiting marks a conversation whose non-blocking callback is still running.
	StateWaiting = "__waiting__"
)

// StateError is returned by handler callbacks to move a conversation to
// the next state. With Stop set it also stops processing in later groups.
type StateError struct {
	State string
	Stop  bool
}

func (e *StateError) Error() string {
	if e.Stop {
		return fmt.Sprintf("ext: next state %q, stop handling", e.State)
	}
	return fmt.Sprintf("ext: next state %q", e.State)
}

// Is reports whether a stopping StateError matches ErrHandlerStop.
func (e *StateError) Is(target error) bool {
	return e.Stop && target == ErrHandlerStop
}

// NextState moves the conversation to state.
func NextState(state string) error { return &StateError{State: state} }

// EndConversation ends the conversation.
func EndConversation() error { return &StateError{State: StateEnd} }

// StopHandling stops processing the update in later groups.
func StopHandling() error { return ErrHandlerStop }

// StopWithState moves the conversation to state and stops processing the
// update in later groups.
func StopWithState(state string) error { return &StateError{State: state, Stop: true} }

// stateOf extracts the state carried by err. ok is false when err does not
// name a state; a nil err keeps the current state.
func stateOf(err error) (state string, ok bool) {
	var se *StateError
	if errors.As(err, &se) {
		return se.State, true
	}
	return "", false
}

// isControlError reports whether err only steers dispatching and must not
// reach error handlers.
func isControlError(err error) bool {
	var se *StateError
	return errors.Is(err, ErrHandlerStop) || errors.As(err, &se)
}

// InvalidCallbackData is set as the callback query value when the data of
// a button cannot be resolved, e.g. after the cache dropped the keyboard.
type InvalidCallbackData struct {
	Data string
}

func (e *InvalidCallbackData) Error() string {
	return fmt.Sprintf("ext: callback data %q could not be resolved", e.Data)
}

func (e *InvalidCallbackData) Unwrap() error { return ErrInvalidCallbackData }

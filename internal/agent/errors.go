// internal/agent/errors.go
package agent

import "errors"

// ErrorKind is a string type used for structured error reporting from node
// handlers and collaborators. Using a custom type ensures only the predefined
// constants can be used where an ErrorKind is expected.
type ErrorKind string

const (
	// -- Structural errors (the screen is not what we need it to be) --
	ErrKindElementNotFound   ErrorKind = "ELEMENT_NOT_FOUND"
	ErrKindPopupBlocking     ErrorKind = "POPUP_BLOCKING"
	ErrKindAuthFieldNotFound ErrorKind = "AUTH_FIELD_NOT_FOUND"

	// -- Transient errors (a collaborator call failed or timed out) --
	ErrKindDeviceCommandFailed ErrorKind = "DEVICE_COMMAND_FAILED"
	ErrKindProviderUnavailable ErrorKind = "PROVIDER_UNAVAILABLE"

	// -- Terminal errors (never retried) --
	ErrKindIterationLimit ErrorKind = "ITERATION_LIMIT"
	ErrKindCancelled      ErrorKind = "CANCELLED"
)

// ErrAgentBusy is returned when a task start request arrives while another
// task is still running. The running task's state is never touched.
var ErrAgentBusy = errors.New("agent is busy with another task")

// Error is a classified failure raised by a node handler or collaborator
// adapter. Recoverable errors are candidates for the recovery policy; the
// rest terminate the task.
type Error struct {
	Kind        ErrorKind
	Message     string
	Recoverable bool
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// NewError builds a classified agent error.
func NewError(kind ErrorKind, msg string, recoverable bool) *Error {
	return &Error{Kind: kind, Message: msg, Recoverable: recoverable}
}

// KindOf extracts the ErrorKind from err, walking the wrap chain. Unclassified
// errors (including bare context deadline/cancellation from a provider call)
// are reported as PROVIDER_UNAVAILABLE, which the policy treats as transient.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ErrKindProviderUnavailable
}

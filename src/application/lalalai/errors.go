package lalalai

import "fmt"

var (
	_ error = RemoteError{}
	_ error = TransportError{}
	_ error = MalformedResponseError{}
)

// RemoteError is an explicit failure reported by the service. It is never
// retried automatically.
type RemoteError struct {
	Operation string
	Message   string
}

func (r RemoteError) Error() string {
	return fmt.Sprintf("%s rejected by service: %s", r.Operation, r.Message)
}

// TransportError is a network or HTTP level failure. Callers may retry.
type TransportError struct {
	Operation  string
	StatusCode int
	Cause      error
}

func (t TransportError) Unwrap() error {
	return t.Cause
}

func (t TransportError) Error() string {
	switch {
	case t.Cause != nil && t.StatusCode != 0:
		return fmt.Sprintf("%s failed with HTTP status %d: %s", t.Operation, t.StatusCode, t.Cause.Error())
	case t.Cause != nil:
		return fmt.Sprintf("%s failed: %s", t.Operation, t.Cause.Error())
	default:
		return fmt.Sprintf("%s failed with HTTP status %d", t.Operation, t.StatusCode)
	}
}

// MalformedResponseError means the service answered with something that
// doesn't have the expected shape.
type MalformedResponseError struct {
	Operation string
	Reason    string
	Cause     error
}

func (m MalformedResponseError) Unwrap() error {
	return m.Cause
}

func (m MalformedResponseError) Error() string {
	if m.Cause == nil {
		return fmt.Sprintf("%s returned a malformed response: %s", m.Operation, m.Reason)
	}

	return fmt.Sprintf("%s returned a malformed response: %s: %s", m.Operation, m.Reason, m.Cause.Error())
}

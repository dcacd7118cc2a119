// Package transport defines the boundary between the chat core and the
// assistant backend: the outbound send/retry contract, the inbound stream
// callbacks, and the transport error taxonomy.
package transport

import (
	"context"
	"fmt"
)

// Receiver is implemented by the chat core. The transport drives it with
// discrete, non-blocking callbacks as the assistant stream progresses.
type Receiver interface {
	OnTokenArrived(messageID, text string)
	OnStreamFinished(messageID string)
	OnError(messageID string, err *Error)
	OnTypingStateChanged(typing bool)
}

// Request is an outbound user message.
type Request struct {
	Content  string
	HasImage bool
	FileName string
}

// Transport sends user messages to the assistant backend. The caller
// allocates messageID for the assistant message the response will stream
// into, so it can register that message with the Receiver before delivery
// starts; tokens arrive through the Receiver under that id. Retry
// re-issues the request behind an errored assistant message, cancelling
// any prior in-flight request for the same id.
type Transport interface {
	Send(ctx context.Context, messageID string, req Request) error
	Retry(ctx context.Context, messageID string) error
	Close() error
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrorKind classifies transport failures.
type ErrorKind int

const (
	ErrNoConnection ErrorKind = iota
	ErrTimeout
	ErrServer
)

// String returns the display name for each kind.
func (k ErrorKind) String() string {
	names := []string{"no_connection", "timeout", "server_error"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Error is a classified transport failure.
type Error struct {
	Kind ErrorKind
	Code int // HTTP status, ErrServer only
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNoConnection:
		return "no connection to assistant service"
	case ErrTimeout:
		return "request timed out"
	case ErrServer:
		return fmt.Sprintf("assistant service error (status %d)", e.Code)
	}
	return "transport error"
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a retry affordance should be offered. Server
// errors are retryable only for 5xx and 429 (rate limited).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrNoConnection, ErrTimeout:
		return true
	case ErrServer:
		return e.Code >= 500 || e.Code == 429
	}
	return false
}

// NoConnection wraps err as a connection failure.
func NoConnection(err error) *Error {
	return &Error{Kind: ErrNoConnection, Err: err}
}

// Timeout wraps err as a timeout.
func Timeout(err error) *Error {
	return &Error{Kind: ErrTimeout, Err: err}
}

// ServerError wraps an HTTP status as a server failure.
func ServerError(code int) *Error {
	return &Error{Kind: ErrServer, Code: code}
}

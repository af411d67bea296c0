package common

import (
	"errors"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Sentinel errors
// --------------------------------------------------------------------------

var (
	// ErrProtocol marks malformed or truncated frames. It is always fatal to the connection.
	ErrProtocol = errors.New("protocol error")

	// ErrConnection marks every failure of the underlying stream (refused, reset, timeout, ...)
	ErrConnection = errors.New("connection error")

	// ErrConnectionClosed is returned for pending replies of a connection that was torn down
	ErrConnectionClosed = errors.New("connection closed")

	// ErrInitCommandsFrozen is returned when init commands are added after the first connect
	ErrInitCommandsFrozen = errors.New("init commands can only be added before the first connect")

	// ErrNoPendingReply is returned by reads when no reply is owed and no pushes can arrive
	ErrNoPendingReply = errors.New("no pending reply to read")

	// ErrNoSlot is returned when a command cannot be routed to a slot
	ErrNoSlot = errors.New("command cannot be mapped to a slot")

	// ErrCrossSlot is returned when the keys of a command hash to different slots. It is also an ErrNoSlot.
	ErrCrossSlot = errors.New("keys hash to different slots")
)

// --------------------------------------------------------------------------
// Error types
// --------------------------------------------------------------------------

// ProtocolError describes a frame that could not be decoded
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Msg, e.Err)
	}
	return "protocol error: " + e.Msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// NewProtocolError creates a protocol error with a formatted message
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// ConnectionError is raised when the stream to a node fails. The connection is left disconnected.
type ConnectionError struct {
	Endpoint string
	Msg      string
	Err      error
}

func (e *ConnectionError) Error() string {
	var sb strings.Builder
	sb.WriteString("connection error")
	if e.Endpoint != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Endpoint)
		sb.WriteString("]")
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// TimeoutOp distinguishes where a timeout fired
type TimeoutOp string

const (
	OpConnect TimeoutOp = "connect"
	OpRead    TimeoutOp = "read"
	OpWrite   TimeoutOp = "write"
)

// TimeoutError is a connection error subtype. Connect timeouts and read/write timeouts
// carry a different Op so callers can tell them apart.
type TimeoutError struct {
	Endpoint string
	Op       TimeoutOp
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout [%s]: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrConnection }

// Timeout reports true so TimeoutError satisfies net.Error style checks
func (e *TimeoutError) Timeout() bool { return true }

// ServerError is an error reply of the server turned into a Go error
// (only done by the client layer, the transport delivers error frames as replies)
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + " " + e.Message
}

// NewServerError splits a raw error payload ("WRONGTYPE Operation against ...") into code and message
func NewServerError(payload string) *ServerError {
	code, msg, found := strings.Cut(payload, " ")
	if !found || code == "" || strings.ToUpper(code) != code {
		return &ServerError{Message: payload}
	}
	return &ServerError{Code: code, Message: msg}
}

// NotSupportedError is returned by operations a component deliberately does not provide
type NotSupportedError struct {
	Component string
	Feature   string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s does not provide %s", e.Component, e.Feature)
}

// CrossSlotError is returned when the keys of a command hash to different slots
type CrossSlotError struct {
	Command string
}

func (e *CrossSlotError) Error() string {
	return fmt.Sprintf("keys of command %s hash to different slots", e.Command)
}

func (e *CrossSlotError) Is(target error) bool { return target == ErrNoSlot || target == ErrCrossSlot }

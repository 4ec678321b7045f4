package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies translation failures.
type ErrorKind string

const (
	ErrorKindConnection ErrorKind = "connection"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindServer     ErrorKind = "server"
	ErrorKindCancelled  ErrorKind = "cancelled"
	ErrorKindTimeout    ErrorKind = "timeout"
)

// ErrIdleTimeout is the cancellation cause used when the stream stays silent too long.
var ErrIdleTimeout = errors.New("no data received within the idle timeout")

// Error is a classified translation failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns err as a classified *Error, defaulting to a connection error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if errors.Is(err, ErrIdleTimeout) {
		return NewError(ErrorKindTimeout, "translation stream timed out", err)
	}
	return NewError(ErrorKindConnection, "translation stream failed", err)
}

// KindOf returns the classification of err.
func KindOf(err error) ErrorKind {
	if classified := AsError(err); classified != nil {
		return classified.Kind
	}
	return ""
}

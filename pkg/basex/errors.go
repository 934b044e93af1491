package basex

import (
	"errors"
	"fmt"
)

// Kind classifies a failure reported by the client.
type Kind int

const (
	// KindConnection means the endpoint could not be reached.
	KindConnection Kind = iota + 1
	// KindConnectionClosed means an operation ran without an open session.
	KindConnectionClosed
	// KindConfiguration means no database was given and no default is configured.
	KindConfiguration
	// KindInvalidURL means the endpoint does not speak the BaseX REST protocol.
	KindInvalidURL
	// KindUnknownDatabase means the named database does not exist.
	KindUnknownDatabase
	// KindOverwrite means a database or document id is already taken.
	KindOverwrite
	// KindQuery means the server rejected a query expression.
	KindQuery
	// KindAuthentication means credentials are missing or were rejected.
	KindAuthentication
	// KindRequest means the server rejected a non-query request or answered
	// with a status the protocol does not define.
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "Connection"
	case KindConnectionClosed:
		return "ConnectionClosed"
	case KindConfiguration:
		return "Configuration"
	case KindInvalidURL:
		return "InvalidURL"
	case KindUnknownDatabase:
		return "UnknownDatabase"
	case KindOverwrite:
		return "Overwrite"
	case KindQuery:
		return "Query"
	case KindAuthentication:
		return "Authentication"
	case KindRequest:
		return "Request"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrConnection       = &Error{Kind: KindConnection}
	ErrConnectionClosed = &Error{Kind: KindConnectionClosed}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrInvalidURL       = &Error{Kind: KindInvalidURL}
	ErrUnknownDatabase  = &Error{Kind: KindUnknownDatabase}
	ErrOverwrite        = &Error{Kind: KindOverwrite}
	ErrQuery            = &Error{Kind: KindQuery}
	ErrAuthentication   = &Error{Kind: KindAuthentication}
	ErrRequest          = &Error{Kind: KindRequest}
)

// Error is the error type returned by every Client operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "basex: " + e.Kind.String()
	if e.Op != "" {
		msg += " in " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or zero when
// err did not originate from the client.
func KindOf(err error) Kind {
	var bErr *Error
	if errors.As(err, &bErr) {
		return bErr.Kind
	}
	return 0
}

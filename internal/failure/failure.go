// Package failure defines the error taxonomy shared by the completion client,
// the capability registry and the orchestration loop.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why an orchestration run was aborted.
type Kind int

const (
	// Configuration covers missing required agent fields and tool loops
	// requested without a registry.
	Configuration Kind = iota + 1
	// Transport covers network failures and non-success HTTP statuses.
	Transport
	// Protocol covers response bodies that do not match the wire shape.
	Protocol
	// Capability covers unknown capability names and malformed arguments.
	Capability
	// IterationLimit is returned when the tool loop exceeds its bound.
	IterationLimit
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case Capability:
		return "capability"
	case IterationLimit:
		return "iteration limit"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the operation that failed and Status
// carries the HTTP status for Transport errors caused by a response.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrConfiguration  = &Error{Kind: Configuration}
	ErrTransport      = &Error{Kind: Transport}
	ErrProtocol       = &Error{Kind: Protocol}
	ErrCapability     = &Error{Kind: Capability}
	ErrIterationLimit = &Error{Kind: IterationLimit}
)

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

package backend

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a backend failure for the retry layer.
type Kind int

const (
	// KindTransient marks failures worth retrying: connection resets,
	// timeouts, 5xx-class remote errors, transient load.
	KindTransient Kind = iota

	// KindFatal marks failures retrying cannot fix: authentication
	// rejections, malformed requests, exhausted retry budgets.
	KindFatal

	// KindNotFound marks an absent remote object. Not an error for query
	// and delete; fatal for get.
	KindNotFound

	// KindConfig marks construction-time problems: missing credentials,
	// unreadable certificate files, invalid target names. Never retried.
	KindConfig

	// KindProtocol marks a server contract violation: unexpected status,
	// malformed response, a listing that points at a different host.
	// Retrying would re-read the same wrong answer.
	KindProtocol
)

// String returns the classification name.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindNotFound:
		return "not found"
	case KindConfig:
		return "config"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified backend failure. Transports return *Error for
// anything they can classify; the retry layer attaches the operation name
// and target as it propagates.
type Error struct {
	// Op is the logical operation: "put", "get", "list", "delete",
	// "query", "reset", "open".
	Op string

	// Target identifies the remote object or location involved, when known.
	Target string

	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	msg := "backend " + e.Op
	if e.Target != "" {
		msg += " " + e.Target
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a classified error with a formatted message.
func Errf(kind Kind, op, target, format string, args ...any) *Error {
	return &Error{Op: op, Target: target, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies an existing error. A nil cause returns nil. If the
// cause is already classified its inner error is preserved and only the
// missing fields are filled in.
func Wrap(kind Kind, op, target string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		out := *be
		if out.Op == "" {
			out.Op = op
		}
		if out.Target == "" {
			out.Target = target
		}
		return &out
	}
	return &Error{Op: op, Target: target, Kind: kind, Err: err}
}

// KindOf reports how the retry layer should treat an error. Classified
// errors carry their own kind; context cancellation is fatal because the
// caller asked to stop; everything else is assumed transient, matching
// the original tool's "retry anything that is not declared fatal" rule.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	return KindTransient
}

// IsNotFound reports whether err is classified as a missing object.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

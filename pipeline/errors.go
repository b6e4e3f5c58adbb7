package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an error for the engine's retry and skip policy.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfig is a setup problem (bad worker assignment, missing
	// processor). Fatal at startup, never retried.
	KindConfig
	// KindTransient covers network timeouts, 5xx responses and connection
	// resets. Retried with backoff.
	KindTransient
	// KindValidation is a malformed item or missing required field.
	// Skipped immediately and counted against the skip limit.
	KindValidation
	// KindNotFound means the upstream record is gone. The item is treated
	// as complete; the processor has already recorded NOT_FOUND.
	KindNotFound
	// KindResource is pool or queue exhaustion. Retried with backoff and
	// surfaced rather than skipped.
	KindResource
	// KindFatal terminates the engine with FAILED.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindResource:
		return "resource"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Convenience constructors used by readers, processors and clients.
func ConfigErr(format string, args ...any) error {
	return NewError(KindConfig, fmt.Errorf(format, args...))
}

func TransientErr(err error) error  { return NewError(KindTransient, err) }
func ValidationErr(err error) error { return NewError(KindValidation, err) }
func NotFoundErr(err error) error   { return NewError(KindNotFound, err) }
func ResourceErr(err error) error   { return NewError(KindResource, err) }
func FatalErr(err error) error      { return NewError(KindFatal, err) }

// ErrDropItem is returned by a processor to request that the item be
// silently dropped. The drop is not counted against the skip limit.
var ErrDropItem = errors.New("drop item")

// Classify maps an arbitrary error onto the taxonomy. Typed *Error values
// keep their declared kind; otherwise common transport failures are
// recognized as transient.
func Classify(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTransient
	}
	return KindUnknown
}

// retryable reports whether the engine should retry an error of this kind.
// Unknown errors get retried a bounded number of times and then skipped.
func retryable(k Kind) bool {
	return k == KindTransient || k == KindResource || k == KindUnknown
}

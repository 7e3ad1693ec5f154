package querycache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned when the client was closed.
	ErrClosed = errors.New("querycache: client is closed")
	// ErrUnsubscribed is returned by Wait on a subscription that was released.
	ErrUnsubscribed = errors.New("querycache: subscription released")
	// ErrNoData is returned by Query when a fetch settled without data or error.
	ErrNoData = errors.New("querycache: no data")
	// ErrInvalidDefinition is returned for definitions missing a name or a function.
	ErrInvalidDefinition = errors.New("querycache: invalid definition")
)

// ErrInvalidKeepUnusedFor returns an error for an invalid retention window.
func ErrInvalidKeepUnusedFor(d time.Duration) error {
	return fmt.Errorf("querycache: invalid keep unused for: %v (must be > 0)", d)
}

// ErrInvalidFetchTimeout returns an error for an invalid fetch timeout.
func ErrInvalidFetchTimeout(d time.Duration) error {
	return fmt.Errorf("querycache: invalid fetch timeout: %v (must be > 0)", d)
}

// ErrArgs wraps a failure to serialize query arguments into a cache key.
func ErrArgs(endpoint string, err error) error {
	return fmt.Errorf("querycache: serialize args for %s: %w", endpoint, err)
}

// ErrPatch reports an optimistic recipe that panicked.
func ErrPatch(endpoint string, rec any) error {
	return fmt.Errorf("querycache: patch on %s panicked: %v", endpoint, rec)
}

// ErrFetchPanic reports a fetch function that panicked.
func ErrFetchPanic(key Key, rec any) error {
	return fmt.Errorf("querycache: fetch %s panicked: %v", key, rec)
}

// ErrType reports an entry holding a value of an unexpected type, which
// happens when two definitions share an endpoint name.
func ErrType(key Key, v any) error {
	return fmt.Errorf("querycache: entry %s holds unexpected type %T", key, v)
}

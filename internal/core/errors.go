package core

import (
	"errors"
	"fmt"
)

// ErrReauthRequired signals that the provider rejected the item's credential
// and the user must re-link the account. Retrying without user action will
// not succeed, so callers must surface this distinctly.
var ErrReauthRequired = errors.New("linked item requires re-authentication")

// TransportError wraps a network-level failure (connection, timeout, 5xx).
// The cursor is never advanced past a transport failure, so retrying the
// sync from the same state is safe.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError wraps an unexpected response shape from the provider or the
// store. It is fatal for the current sync attempt; the item stays at its
// last good cursor.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// StoreError wraps a failed reconciliation write. Reconciliation is
// idempotent, so these are retryable with the same at-least-once guarantee
// as transport failures.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed sync may be retried as-is. Transport
// and store failures are retryable; re-auth and schema failures are not.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrReauthRequired) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StoreError
	return errors.As(err, &se)
}

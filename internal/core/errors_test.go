package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &TransportError{Op: "sync page", Err: base}, true},
		{"store", &StoreError{Op: "upsert", Err: base}, true},
		{"schema", &SchemaError{Op: "decode page", Err: base}, false},
		{"reauth", ErrReauthRequired, false},
		{"wrapped reauth", fmt.Errorf("sync item-1: %w", ErrReauthRequired), false},
		{"wrapped transport", fmt.Errorf("sync item-1: %w", &TransportError{Op: "sync page", Err: base}), true},
		{"plain error", base, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("connection refused")

	for _, err := range []error{
		&TransportError{Op: "sync page", Err: base},
		&SchemaError{Op: "decode page", Err: base},
		&StoreError{Op: "upsert", Err: base},
	} {
		if !errors.Is(err, base) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}

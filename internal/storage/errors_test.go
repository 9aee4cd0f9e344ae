package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTransientWrapsBothErrors(t *testing.T) {
	base := errors.New("503 backend unavailable")
	err := &ObjectError{Op: "Delete", Key: "k", Err: Transient(base)}

	if !errors.Is(err, ErrTransient) || !errors.Is(err, base) {
		t.Fatalf("expected error to match ErrTransient and the wrapped error: %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("expected IsTransient")
	}
	if got := err.Error(); got != `storage: Delete "k": 503 backend unavailable` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"":              nil,
		"not-found":     &ObjectError{Op: "Delete", Key: "k", Err: ErrNotFound},
		"access-denied": fmt.Errorf("wrap: %w", ErrAccessDenied),
		"transient":     context.DeadlineExceeded,
		"canceled":      fmt.Errorf("stop: %w", context.Canceled),
		"unknown":       errors.New("mystery"),
	}
	for want, err := range cases {
		if got := Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
	if IsTransient(context.Canceled) {
		t.Fatalf("cancellation must not be retried")
	}
}

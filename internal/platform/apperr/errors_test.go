package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsKind(t *testing.T) {
	err := NotFound(ReasonInvite)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(NotFound, ErrNotFound) = false")
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatalf("NotFound must not match ErrForbidden")
	}
	wrapped := fmt.Errorf("accept: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("wrapped NotFound lost its kind")
	}
	if got := ReasonOf(wrapped); got != ReasonInvite {
		t.Errorf("ReasonOf = %q, want %q", got, ReasonInvite)
	}
}

func TestStorage(t *testing.T) {
	if Storage(nil) != nil {
		t.Fatal("Storage(nil) should be nil")
	}
	cause := errors.New("connection reset")
	err := Storage(cause)
	if !errors.Is(err, ErrStorage) {
		t.Fatal("Storage should classify as ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Fatal("Storage should keep the cause in the chain")
	}
	dup := New(ErrDuplicateMembership, "")
	if got := Storage(dup); got != error(dup) {
		t.Errorf("Storage reclassified an already classified error: %v", got)
	}
}

func TestError_Message(t *testing.T) {
	err := Forbidden(ReasonInsufficientPrivileges)
	if err.Error() != "forbidden: insufficient_privileges" {
		t.Errorf("Error() = %q", err.Error())
	}
}

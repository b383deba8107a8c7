// Package apperr defines the error kinds shared by the stores, the resolver,
// the services and the transport. Callers test kinds with errors.Is and read
// the reason through AsError.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error wraps exactly one of these.
var (
	ErrToken               = errors.New("invalid or expired token")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrDuplicateMembership = errors.New("membership already exists")
	ErrDuplicateInvite     = errors.New("invite already accepted")
	ErrConflict            = errors.New("already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStorage             = errors.New("storage failure")
)

// Reasons attached to NotFound and Forbidden.
const (
	ReasonInsufficientPrivileges = "insufficient_privileges"
	ReasonWebsiteOrOrganization  = "website_or_organization"
	ReasonInvite                 = "invite"
	ReasonUserMustSignupFirst    = "user_must_signup_first"
	ReasonUserNotVerified        = "user_not_verified"
	ReasonUserDeleted            = "user_deleted"
)

// Error is a classified failure. Kind is one of the Err* sentinels; Reason is
// a short machine-readable detail; Err is the optional underlying cause.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error of the given kind and reason.
func New(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap returns an *Error of the given kind wrapping err.
func Wrap(kind error, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func NotFound(reason string) error  { return New(ErrNotFound, reason) }
func Forbidden(reason string) error { return New(ErrForbidden, reason) }
func Conflict(reason string) error  { return New(ErrConflict, reason) }
func Token(err error) error         { return Wrap(ErrToken, err) }

// InvalidArgument returns an ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return New(ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Storage wraps a persistence failure. A nil err yields nil; an err that is
// already classified is returned unchanged.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(ErrStorage, err)
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ReasonOf returns the reason of the first *Error in err's chain, or "".
func ReasonOf(err error) string {
	if ae, ok := AsError(err); ok {
		return ae.Reason
	}
	return ""
}

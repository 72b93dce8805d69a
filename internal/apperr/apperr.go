// Package apperr defines the typed failure taxonomy shared by all services.
// Every business failure carries a kind (mapped to an HTTP status by the
// handlers) and a snake_case code suitable for rendering a user-facing
// message. Side-effect failures (notifications) are never reported through
// this package; they are logged and dropped.
package apperr

import "errors"

// Kind classifies a business failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindConflictOfInterest
	KindInvalidState
	KindQuotaExceeded
	KindValidation
)

// Error is a typed business failure.
type Error struct {
	Kind   Kind
	Code   string            // snake_case, ex: "memoire_introuvable"
	Fields map[string]string // détail par champ (validation)
}

func (e *Error) Error() string { return e.Code }

// Constructors, one per kind.

func NotFound(code string) error  { return &Error{Kind: KindNotFound, Code: code} }
func Forbidden(code string) error { return &Error{Kind: KindForbidden, Code: code} }
func Conflict(code string) error  { return &Error{Kind: KindConflict, Code: code} }
func ConflictOfInterest(code string) error {
	return &Error{Kind: KindConflictOfInterest, Code: code}
}
func InvalidState(code string) error  { return &Error{Kind: KindInvalidState, Code: code} }
func QuotaExceeded(code string) error { return &Error{Kind: KindQuotaExceeded, Code: code} }
func Validation(code string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Code: code, Fields: fields}
}

// KindOf extracts the kind of err, or KindUnknown for non-business errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is a business failure of the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

package apperr

import "errors"

type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthenticated"
	KindDependency      Kind = "dependency"
	KindInternal        Kind = "internal"
)

// Error is a classified domain error. Domain packages declare their sentinels
// with New and the HTTP layer maps them to a status by Kind.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// ErrDependency marks a failure of an outside collaborator (database, cache,
// mailer, broker).
var ErrDependency = New(KindDependency, "dependency_failed", "a downstream dependency failed")

// As returns the classified error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

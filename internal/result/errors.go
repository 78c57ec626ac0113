package result

import (
	"github.com/pkg/errors"
)

// Kind classifies a failure so callers can branch without parsing messages.
type Kind int

const (
	KindInternal Kind = iota
	KindNetwork
	KindNotFound
	KindValidation
	KindPermission
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	default:
		return "internal"
	}
}

// Error is the typed failure carried across package boundaries.
// Message is user-facing and Code is the HTTP status where one applies.
type Error struct {
	Kind    Kind
	Message string
	Code    int
}

func (e *Error) Error() string {
	return e.Message
}

func Network(message string, code int) *Error {
	return &Error{Kind: KindNetwork, Message: message, Code: code}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Permission(message string) *Error {
	return &Error{Kind: KindPermission, Message: message}
}

// KindOf reports the Kind of err, looking through wrapping.
// Untyped errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

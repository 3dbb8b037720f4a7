package param

import "errors"

var (
	// ErrUnknownKind is returned for an unrecognised declaration keyword.
	ErrUnknownKind = errors.New("unknown parameter kind")
	// ErrInvalidDeclaration is returned when a declaration's arguments are malformed.
	ErrInvalidDeclaration = errors.New("invalid parameter declaration")
	// ErrInvalidValue is returned when a value does not satisfy its spec.
	ErrInvalidValue = errors.New("invalid parameter value")
	// ErrKindMismatch is returned when a value is bound to a spec of another kind.
	ErrKindMismatch = errors.New("parameter kind mismatch")
	// ErrCountMismatch is returned when a set and a spec list differ in length.
	ErrCountMismatch = errors.New("parameter count mismatch")
	// ErrSyntax is returned for malformed argument text.
	ErrSyntax = errors.New("argument syntax error")
)

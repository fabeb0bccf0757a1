// Package errkind defines the error kinds shared by the block packages.
//
// Errors returned by this module wrap exactly one of these sentinels, so
// callers can branch with errors.Is.
package errkind

import "errors"

var (
	// ErrInvalidArgument reports a missing image or parent, an invalid
	// rectangle or an empty name.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports a missing tree, child or attribute.
	ErrNotFound = errors.New("not found")
	// ErrDomain reports an index or ratio out of range, an empty clip
	// result, an unknown sort direction or identical merge indices.
	ErrDomain = errors.New("out of domain")
	// ErrDimension reports a buffer or box whose size does not fit.
	ErrDimension = errors.New("dimension mismatch")
	// ErrIO reports a file that cannot be opened, read or written.
	ErrIO = errors.New("i/o failure")
	// ErrRuntime reports malformed persisted data or an unsupported image.
	ErrRuntime = errors.New("runtime failure")
	// ErrLogic reports an operation that is never legal on the receiver,
	// such as resizing a topmost block.
	ErrLogic = errors.New("logic error")
)

package dictionary

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by open errors for missing files.
	ErrNotFound = errors.New("dictionary: file not found")
	// ErrPermissionDenied is matched by open errors for unreadable files.
	ErrPermissionDenied = errors.New("dictionary: permission denied")
	// ErrCorrupt is returned when an index fails validation, at open time or
	// when a damaged state is reached during a traversal.
	ErrCorrupt = errors.New("dictionary: corrupt index")
	// ErrVersionMismatch is matched by open errors for unsupported format versions.
	ErrVersionMismatch = errors.New("dictionary: format version mismatch")
	// ErrInvalidArgument is returned for malformed query arguments.
	ErrInvalidArgument = errors.New("dictionary: invalid argument")
	// ErrIO is returned when reading the mapped index fails mid-traversal.
	ErrIO = errors.New("dictionary: i/o error")
	// ErrClosed is returned when querying a closed dictionary.
	ErrClosed = errors.New("dictionary: closed")
	// ErrValueType is returned when a value does not fit the dictionary value type.
	ErrValueType = errors.New("dictionary: value does not match value type")
)

// OpenErrorKind classifies why Open failed.
type OpenErrorKind int

const (
	NotFound OpenErrorKind = iota
	PermissionDenied
	CorruptFormat
	VersionMismatch
	// Unreadable covers any other I/O failure while opening.
	Unreadable
)

func (k OpenErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case PermissionDenied:
		return "permission denied"
	case CorruptFormat:
		return "corrupt format"
	case VersionMismatch:
		return "version mismatch"
	default:
		return "unreadable"
	}
}

func (k OpenErrorKind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case PermissionDenied:
		return ErrPermissionDenied
	case CorruptFormat:
		return ErrCorrupt
	case VersionMismatch:
		return ErrVersionMismatch
	default:
		return ErrIO
	}
}

// OpenError is returned by Open. errors.Is matches it against the sentinel
// of its Kind as well as the underlying cause.
type OpenError struct {
	Kind OpenErrorKind
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open dictionary %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

func (e *OpenError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func openError(kind OpenErrorKind, path string, err error) *OpenError {
	return &OpenError{Kind: kind, Path: path, Err: err}
}

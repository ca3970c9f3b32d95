package mmap

import "errors"

// AccessPattern is a paging hint for a mapped range.
type AccessPattern int

const (
	// AccessDefault leaves the kernel defaults untouched.
	AccessDefault AccessPattern = iota
	// AccessNormal asks for on-demand paging with the usual read-ahead.
	AccessNormal
	// AccessRandom disables read-ahead.
	AccessRandom
	// AccessSequential asks for aggressive read-ahead.
	AccessSequential
	// AccessWillNeed asks the kernel to start reading the range in the background.
	AccessWillNeed
)

func (p AccessPattern) String() string {
	switch p {
	case AccessNormal:
		return "normal"
	case AccessRandom:
		return "random"
	case AccessSequential:
		return "sequential"
	case AccessWillNeed:
		return "willneed"
	default:
		return "default"
	}
}

// Policy describes how a region is paged in.
type Policy struct {
	Access AccessPattern
	// Populate faults every page of the region in before Apply returns.
	Populate bool
}

var (
	// ErrClosed is returned when a closed mapping is accessed.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrOutOfBounds is returned for regions outside the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidSize is returned for files whose size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
)

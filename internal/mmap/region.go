package mmap

import "os"

// Region is a window into a Mapping. It does not own the memory.
type Region struct {
	parent *Mapping
	offset int
	size   int
}

// Region returns the window [offset, offset+size).
func (m *Mapping) Region(offset, size int) (*Region, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || size < 0 || offset > len(m.data)-size {
		return nil, ErrOutOfBounds
	}
	return &Region{parent: m, offset: offset, size: size}, nil
}

// Bytes returns the region contents, or nil once the parent is closed.
func (r *Region) Bytes() []byte {
	if r.parent.closed.Load() {
		return nil
	}
	return r.parent.data[r.offset : r.offset+r.size]
}

// Size returns the region length.
func (r *Region) Size() int {
	return r.size
}

// Apply hints the kernel and, for populating policies, blocks until every
// page of the region has been faulted in.
func (r *Region) Apply(p Policy) error {
	if r.parent.closed.Load() {
		return ErrClosed
	}
	data := r.parent.data[r.offset : r.offset+r.size]
	if len(data) == 0 || !r.parent.mapped {
		return nil
	}
	access := p.Access
	if p.Populate && access == AccessDefault {
		access = AccessWillNeed
	}
	// madvise wants a page-aligned start; the mapping itself begins on a page.
	aligned := r.offset - r.offset%os.Getpagesize()
	if err := osAdvise(r.parent.data[aligned:r.offset+r.size], access); err != nil {
		return err
	}
	if p.Populate {
		touch(data)
	}
	return nil
}

var sink byte

// touch reads one byte per page so the whole range is resident.
func touch(data []byte) {
	step := os.Getpagesize()
	var acc byte
	for i := 0; i < len(data); i += step {
		acc ^= data[i]
	}
	acc ^= data[len(data)-1]
	sink = acc
}

package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
	// mapped is false when data was read into the heap.
	mapped bool
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	populate bool
}

// WithPopulate asks for the whole file to be read before Open returns.
func WithPopulate() Option {
	return func(o *openOptions) { o.populate = true }
}

// Open maps the file at path.
func Open(path string, opts ...Option) (*Mapping, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmap, mapped, err := osMap(f, int(size), o.populate)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap, mapped: mapped}, nil
}

// Bytes returns the mapped file contents, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the mapped length in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Mapped reports whether the data is backed by a real memory mapping.
func (m *Mapping) Mapped() bool {
	return m.mapped
}

// Close releases the mapping. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

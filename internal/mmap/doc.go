// Package mmap maps index files read-only into memory and applies paging
// policies to sub-regions of the mapping.
//
// A Mapping is opened once per dictionary file. Callers carve it into
// Regions (key structure, values) and apply a Policy to each one: an
// access hint passed to madvise(2), optionally followed by an eager,
// synchronous fault-in of every page in the region.
//
// On platforms without mmap the file is read into memory instead, and every
// policy behaves as an eager load.
package mmap

// Package dictionary reads and writes keyserve index files: immutable,
// memory-mapped finite state transducers mapping string keys to values.
//
// A Compiler stages entries and writes an index file. Open maps the file
// with a LoadingStrategy and returns a Dictionary that answers exact
// lookups, prefix completions, fuzzy matches and multi-word completions.
// Queries return lazy iterators that keep the mapping alive until they
// are exhausted or closed.
package dictionary

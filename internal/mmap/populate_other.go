//go:build unix && !linux

package mmap

// MAP_POPULATE is linux only; other systems fault pages in by hand.
const populateFlag = 0

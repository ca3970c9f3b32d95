// Package fst implements the finite-state transducer behind keyserve
// dictionaries: its on-disk layout, an incremental builder for sorted keys,
// and read-only traversals that decode states in place from a byte slice.
//
// # Layout
//
// A file starts with a fixed 96 byte Header followed by three regions:
//
//	[header][key region: state table][value region][stats block]
//
// The key region holds states in post-order, so every transition target
// points backwards. A state is encoded as
//
//	flags:u8 [value:uvarint] [weight:uvarint] [inner:uvarint] n:uvarint labels:[n]u8 targets:[n]u32le
//
// value and weight are present only for final states, weight and inner only
// in weighted automata. inner is the highest entry weight reachable from the
// state and drives best-first enumeration. Labels are sorted ascending so a
// transition is found with a binary search.
//
// The value and stats regions are opaque to this package.
package fst

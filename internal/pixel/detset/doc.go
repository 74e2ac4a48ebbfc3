// Package detset provides the range-keyed store used for both the digi
// input and the cluster output of an event.
//
// A Collection keeps every value in one contiguous backing slice and an
// index from key to a half-open [begin, end) offset range, so a sparse set
// of detector units costs one allocation for the values rather than one
// per unit. Collections are append-only: a key is written once, and views
// returned by Get stay valid for the collection's lifetime.
package detset

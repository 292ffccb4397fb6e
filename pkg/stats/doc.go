// Package stats maintains running statistics per vehicle parameter.
//
// Each parameter gets a Statistics record on its first measurement and is
// updated in place for every later arrival: latest value, running min/max,
// and sample count. Records are never destroyed implicitly; Reset collapses
// the min/max window around the latest reading, Clear wipes everything on a
// full disconnect.
//
// Min/max/count are order-insensitive: any permutation of the same
// measurements yields the same min, max, and count.
package stats

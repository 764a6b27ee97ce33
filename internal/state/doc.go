// Package state owns the single shared GameState and every atomic operation
// over it.
//
// # Concurrency
//
// Ticks, UI calls and persistence all run on real goroutines, so Store
// serializes every read-modify-write behind one mutex. Multi-step mutations
// go through Transact, which runs the caller's function against a private
// working copy and swaps it in only when the function returns nil. A failed
// transaction therefore leaves no trace: no partial field updates and no
// events.
//
// # Events
//
// Events emitted inside a transaction are stamped, appended to the bounded
// activity log and delivered to subscribers after the commit, outside the
// store lock. Subscribers may call back into the store.
//
// # Failure policy
//
// Store operations never panic on bad input. Invalid patch fields (NaN,
// infinities, negatives) are logged and skipped, leaving the field
// unchanged.
package state

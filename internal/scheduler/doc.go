// Package scheduler runs game callbacks on one logical thread.
//
// Periodic ticks, one-shot timers and ad-hoc submissions are all queued as
// jobs and executed in FIFO order by a single Run loop, so a callback never
// preempts another mid-execution. Timers only enqueue; they never run game
// code on their own goroutines.
//
// Thread-safety model:
//   - Submit(), Every(), After(), Do(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// A panicking job is recovered and logged; the loop keeps running.
package scheduler

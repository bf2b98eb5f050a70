// Package scheduler is a single-threaded cooperative task scheduler.
//
// A Scheduler owns a fixed pool of task slots. Callers register one-shot
// (After) or repeating (Every, EveryWarmup) callbacks and then call Run from
// their own main loop. Each Run executes at most one callback: among all due
// tasks it picks the one that has been waiting longest since it was last
// (re)armed, and falls back to a short idle pause when nothing is due.
//
// Time comes from a Clock returning a wrapping 32-bit millisecond counter.
// Due checks use modular subtraction, so a counter rollover never makes a
// task look "never due".
//
// A Scheduler is not safe for concurrent use. All calls, including the
// callbacks it runs, happen on the goroutine that calls Run.
package scheduler

package scheduler

import (
	"fmt"
	"time"
)

// slot is one entry of the scheduler's fixed task pool.
// Fields other than occupied are stale while the slot is free.
type slot struct {
	occupied  bool
	repeating bool
	// first is set until the task fires once; while set, warmup is the
	// effective delay.
	first       bool
	warmup      uint32
	interval    uint32
	scheduledAt uint32

	// seq orders (re)arms; equal waits go to the lower seq.
	seq  uint64
	id   uint64
	name string
	fn   func()
}

func (t *slot) delay() uint32 {
	if t.first {
		return t.warmup
	}
	return t.interval
}

// elapsed is the time since the last (re)arm. Unsigned subtraction keeps it
// correct across a clock rollover.
func (t *slot) elapsed(now uint32) uint32 {
	return now - t.scheduledAt
}

func (t *slot) isDue(now uint32) bool {
	return t.elapsed(now) >= t.delay()
}

func (t *slot) handle() Handle { return Handle{id: t.id} }

func (t *slot) label() string {
	if t.name != "" {
		return t.name
	}
	return t.handle().String()
}

// Handle identifies one registration. Handles are never reused, so a stale
// handle cannot cancel a task that later took over the same slot.
type Handle struct {
	id uint64
}

// IsZero reports whether h is the zero Handle returned on failed registration.
func (h Handle) IsZero() bool { return h.id == 0 }

func (h Handle) ID() uint64 { return h.id }

func (h Handle) String() string { return fmt.Sprintf("task#%d", h.id) }

// TaskInfo is a read-only view of an occupied slot.
type TaskInfo struct {
	Handle      Handle
	Name        string
	Repeating   bool
	Interval    time.Duration
	Warmup      time.Duration // zero once the first firing happened
	ScheduledAt uint32
	DueIn       time.Duration // zero when already due
}

func millisToDuration(ms uint32) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

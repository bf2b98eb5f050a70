package scheduler

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	logx "cosched/pkg/logx"
)

// Stats counts scheduler activity since construction.
type Stats struct {
	Runs          uint64 // registered tasks executed
	Idles         uint64 // steps that ran the idle handler
	Rejected      uint64 // registrations refused with ErrPoolExhausted
	DroppedRearms uint64 // repeats lost under RearmReregister
	Panics        uint64 // recovered callback panics
}

// inflight tracks the task whose callback is executing, so a cancel from
// inside that callback is honoured even when its slot is already released.
type inflight struct {
	active    bool
	id        uint64
	name      string
	cancelled bool
}

type Scheduler struct {
	opts  Options
	clock Clock
	log   logx.Logger

	slots []slot
	free  []int // stack of free slot indices

	nextID  uint64
	nextSeq uint64

	current inflight
	stats   Stats

	// Full-pool warnings are throttled; a host retrying every step would
	// otherwise flood the log.
	rejectWarn *rate.Limiter
}

func New(opts ...Option) *Scheduler {
	o := NewOptions(opts...)
	s := &Scheduler{
		opts:       o,
		clock:      o.Clock,
		log:        o.Logger,
		slots:      make([]slot, o.Capacity),
		free:       make([]int, 0, o.Capacity),
		rejectWarn: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	// Push in reverse so the lowest index is handed out first.
	for i := o.Capacity - 1; i >= 0; i-- {
		s.free = append(s.free, i)
	}
	return s
}

// After registers fn to run once, d after now.
func (s *Scheduler) After(d time.Duration, fn func(), opts ...TaskOption) (Handle, error) {
	return s.register(d, d, fn, false, opts)
}

// Every registers fn to run every d; the first firing is d after now.
func (s *Scheduler) Every(d time.Duration, fn func(), opts ...TaskOption) (Handle, error) {
	return s.register(d, d, fn, true, opts)
}

// EveryWarmup registers fn to run first after warmup and then every d,
// measured from the previous firing.
func (s *Scheduler) EveryWarmup(d time.Duration, fn func(), warmup time.Duration, opts ...TaskOption) (Handle, error) {
	return s.register(d, warmup, fn, true, opts)
}

func (s *Scheduler) register(interval, warmup time.Duration, fn func(), repeat bool, opts []TaskOption) (Handle, error) {
	var to taskOptions
	for _, opt := range opts {
		opt(&to)
	}
	if fn == nil {
		return Handle{}, ErrNilCallback
	}
	iv, err := toMillis(interval)
	if err != nil {
		return Handle{}, fmt.Errorf("interval: %w", err)
	}
	wu, err := toMillis(warmup)
	if err != nil {
		return Handle{}, fmt.Errorf("warmup: %w", err)
	}

	s.nextID++
	t, ok := s.arm(s.nextID, to.name, iv, wu, fn, repeat)
	if !ok {
		s.stats.Rejected++
		if s.rejectWarn.Allow() {
			s.log.Warn("task rejected", logx.String("name", to.name), logx.Int("capacity", len(s.slots)), logx.Uint64("rejected_total", s.stats.Rejected))
		}
		return Handle{}, fmt.Errorf("register %s: %w (capacity %d)", labelOf(to.name), ErrPoolExhausted, len(s.slots))
	}

	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("task registered",
			logx.String("task", t.label()),
			logx.Bool("repeat", repeat),
			logx.Duration("interval", millisToDuration(iv)),
			logx.Duration("warmup", millisToDuration(wu)),
			logx.Int("used", s.Len()),
		)
	}
	return t.handle(), nil
}

// arm takes a free slot and fills it. It reports false when the pool is full;
// nothing is modified in that case.
func (s *Scheduler) arm(id uint64, name string, interval, warmup uint32, fn func(), repeat bool) (*slot, bool) {
	n := len(s.free)
	if n == 0 {
		return nil, false
	}
	idx := s.free[n-1]
	s.free = s.free[:n-1]

	s.nextSeq++
	s.slots[idx] = slot{
		occupied:    true,
		repeating:   repeat,
		first:       true,
		warmup:      warmup,
		interval:    interval,
		scheduledAt: s.clock.Millis(),
		seq:         s.nextSeq,
		id:          id,
		name:        name,
		fn:          fn,
	}
	return &s.slots[idx], true
}

func (s *Scheduler) release(idx int) {
	t := &s.slots[idx]
	if !t.occupied {
		return
	}
	// Drop the closure so it can be collected.
	*t = slot{}
	s.free = append(s.free, idx)
}

// Cancel frees the task registered under h. It returns false when h is
// unknown, already fired (one-shot) or already cancelled.
func (s *Scheduler) Cancel(h Handle) bool {
	if h.IsZero() {
		return false
	}
	if s.current.active && s.current.id == h.id && !s.current.cancelled {
		s.current.cancelled = true
		s.releaseID(h.id)
		s.log.Debug("task cancelled", logx.String("task", h.String()), logx.Bool("in_flight", true))
		return true
	}
	if s.releaseID(h.id) {
		s.log.Debug("task cancelled", logx.String("task", h.String()))
		return true
	}
	return false
}

func (s *Scheduler) releaseID(id uint64) bool {
	for i := range s.slots {
		if s.slots[i].occupied && s.slots[i].id == id {
			s.release(i)
			return true
		}
	}
	return false
}

// CancelName frees every task registered with WithName(name) and returns how
// many were removed. Registration does not deduplicate, so this may remove
// several tasks.
func (s *Scheduler) CancelName(name string) int {
	if name == "" {
		return 0
	}
	n := 0
	if s.current.active && s.current.name == name && !s.current.cancelled {
		s.current.cancelled = true
		n++
	}
	for i := range s.slots {
		t := &s.slots[i]
		if !t.occupied || t.name != name {
			continue
		}
		if s.current.active && t.id == s.current.id {
			// Counted above.
			s.release(i)
			continue
		}
		s.release(i)
		n++
	}
	if n > 0 {
		s.log.Debug("tasks cancelled", logx.String("name", name), logx.Int("count", n))
	}
	return n
}

// Run performs one cooperative step: it executes the longest-waiting due
// task, or the idle handler if nothing is due, and then re-arms or frees the
// task. It reports whether a registered task ran.
//
// The callback runs synchronously on the caller's goroutine and is not
// interrupted. A panicking callback is recovered and counts as fired.
func (s *Scheduler) Run() bool {
	now := s.clock.Millis()
	idx := s.nextToRun(now)
	if idx < 0 {
		s.stats.Idles++
		s.opts.Idle()
		return false
	}

	task := s.slots[idx]
	reregister := task.repeating && s.opts.Rearm == RearmReregister
	if reregister {
		s.release(idx)
	}

	s.current = inflight{active: true, id: task.id, name: task.name}
	start := time.Now()
	panicked := s.invoke(&task)
	took := time.Since(start)
	cancelled := s.current.cancelled
	s.current = inflight{}
	s.stats.Runs++

	rearmed := false
	switch {
	case cancelled:
	case !task.repeating:
		s.releaseOwned(idx, task.id)
	case reregister:
		rearmed = s.reregister(&task)
	default:
		t := &s.slots[idx]
		// The callback may have cancelled itself and a new task may own
		// the slot now.
		if t.occupied && t.id == task.id {
			t.scheduledAt = s.clock.Millis()
			t.first = false
			s.nextSeq++
			t.seq = s.nextSeq
			rearmed = true
		}
	}

	if s.opts.Observer != nil {
		s.opts.Observer(Firing{
			Handle:      task.handle(),
			Name:        task.name,
			Repeating:   task.repeating,
			ScheduledAt: task.scheduledAt,
			StartedAt:   now,
			Took:        took,
			Panicked:    panicked,
			Rearmed:     rearmed,
		})
	}
	return true
}

func (s *Scheduler) releaseOwned(idx int, id uint64) {
	if t := &s.slots[idx]; t.occupied && t.id == id {
		s.release(idx)
	}
}

// reregister puts a repeating task back through the normal registration
// path, keeping its handle. A full pool drops the repeat.
func (s *Scheduler) reregister(task *slot) bool {
	if t, ok := s.arm(task.id, task.name, task.interval, task.interval, task.fn, true); ok {
		t.first = false
		return true
	}
	s.stats.DroppedRearms++
	s.log.Warn("repeat dropped: pool full at re-register",
		logx.String("task", task.label()),
		logx.Int("capacity", len(s.slots)),
	)
	return false
}

func (s *Scheduler) invoke(t *slot) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.stats.Panics++
			s.log.Error("task panicked",
				logx.String("task", t.label()),
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(4, 12)),
			)
		}
	}()
	t.fn()
	return false
}

// nextToRun returns the index of the due task that waited longest since its
// last (re)arm, or -1. Comparing waits instead of raw arm times keeps the
// order right across a clock rollover.
func (s *Scheduler) nextToRun(now uint32) int {
	next := -1
	var bestWait uint32
	var bestSeq uint64
	for i := range s.slots {
		t := &s.slots[i]
		if !t.occupied || !t.isDue(now) {
			continue
		}
		wait := t.elapsed(now)
		if next < 0 || wait > bestWait || (wait == bestWait && t.seq < bestSeq) {
			next, bestWait, bestSeq = i, wait, t.seq
		}
	}
	return next
}

// Len returns the number of occupied slots.
func (s *Scheduler) Len() int { return len(s.slots) - len(s.free) }

// Cap returns the fixed pool size.
func (s *Scheduler) Cap() int { return len(s.slots) }

func (s *Scheduler) Rearm() Rearm { return s.opts.Rearm }

func (s *Scheduler) Stats() Stats { return s.stats }

// Tasks returns the occupied slots in slot order.
func (s *Scheduler) Tasks() []TaskInfo {
	now := s.clock.Millis()
	out := make([]TaskInfo, 0, s.Len())
	for i := range s.slots {
		t := &s.slots[i]
		if !t.occupied {
			continue
		}
		info := TaskInfo{
			Handle:      t.handle(),
			Name:        t.name,
			Repeating:   t.repeating,
			Interval:    millisToDuration(t.interval),
			ScheduledAt: t.scheduledAt,
		}
		if t.first {
			info.Warmup = millisToDuration(t.warmup)
		}
		if el, d := t.elapsed(now), t.delay(); el < d {
			info.DueIn = millisToDuration(d - el)
		}
		out = append(out, info)
	}
	return out
}

func toMillis(d time.Duration) (uint32, error) {
	if d < 0 || d > MaxDelay {
		return 0, fmt.Errorf("%w: %s (must be between 0 and %s)", ErrInvalidDelay, d, MaxDelay)
	}
	return uint32(d / time.Millisecond), nil
}

func labelOf(name string) string {
	if name == "" {
		return "task"
	}
	return fmt.Sprintf("%q", name)
}

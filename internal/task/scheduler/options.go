package scheduler

import (
	"fmt"
	"strings"
	"time"

	logx "cosched/pkg/logx"
)

const (
	DefaultCapacity  = 10
	DefaultIdlePause = 10 * time.Millisecond

	// MaxDelay is the longest delay a 32-bit millisecond clock can measure.
	MaxDelay = time.Duration(1<<32-1) * time.Millisecond
)

// Rearm selects how a repeating task gets back into the pool after it fires.
type Rearm int

const (
	// RearmInPlace keeps the task in its own slot and only resets its arm
	// time. A repeat can never be lost.
	RearmInPlace Rearm = iota
	// RearmReregister releases the slot before the callback runs and
	// registers the task again afterwards. If the pool filled up in between
	// (for example because the callback registered something), the repeat is
	// dropped and the task stops.
	RearmReregister
)

func (r Rearm) String() string {
	switch r {
	case RearmInPlace:
		return "in_place"
	case RearmReregister:
		return "reregister"
	default:
		return fmt.Sprintf("rearm(%d)", int(r))
	}
}

// ParseRearm accepts the names printed by Rearm.String. Empty means in_place.
func ParseRearm(s string) (Rearm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "in_place", "inplace":
		return RearmInPlace, nil
	case "reregister", "re_register":
		return RearmReregister, nil
	default:
		return RearmInPlace, fmt.Errorf("unknown rearm mode %q (use in_place or reregister)", s)
	}
}

// Firing describes one executed task. It is passed to the observer after the
// task was re-armed or released.
type Firing struct {
	Handle      Handle
	Name        string
	Repeating   bool
	ScheduledAt uint32 // arm time the firing was due against
	StartedAt   uint32
	Took        time.Duration
	Panicked    bool
	// Rearmed is false for one-shots, cancelled tasks and dropped repeats.
	Rearmed bool
}

// Options configures a Scheduler.
type Options struct {
	Capacity  int
	Clock     Clock
	Idle      func()
	IdlePause time.Duration
	Rearm     Rearm
	Logger    logx.Logger
	Observer  func(Firing)
}

// NewOptions creates options with defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Capacity:  DefaultCapacity,
		IdlePause: DefaultIdlePause,
		Rearm:     RearmInPlace,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Clock == nil {
		o.Clock = NewSystemClock()
	}
	if o.Logger.IsZero() {
		o.Logger = logx.Nop()
	}
	if o.Idle == nil {
		pause := o.IdlePause
		o.Idle = func() { time.Sleep(pause) }
	}
	return o
}

// Option is for setting options.
type Option func(*Options)

// WithCapacity sets the pool size, must be greater than 0.
// If not, it will be ignored.
func WithCapacity(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Capacity = n
		}
	}
}

func WithClock(c Clock) Option {
	return func(o *Options) {
		if c != nil {
			o.Clock = c
		}
	}
}

// WithIdle replaces the idle handler run when nothing is due. It should
// pause briefly without spinning; while it runs, no task can make progress.
func WithIdle(fn func()) Option {
	return func(o *Options) {
		o.Idle = fn
	}
}

// WithIdlePause sets the sleep of the default idle handler. Ignored when
// negative or when WithIdle is used.
func WithIdlePause(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.IdlePause = d
		}
	}
}

func WithRearm(r Rearm) Option {
	return func(o *Options) {
		o.Rearm = r
	}
}

func WithLogger(log logx.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

// WithObserver installs a hook called after every task firing, on the
// goroutine that called Run.
func WithObserver(fn func(Firing)) Option {
	return func(o *Options) {
		o.Observer = fn
	}
}

// TaskOption configures a single registration.
type TaskOption func(*taskOptions)

type taskOptions struct {
	name string
}

// WithName attaches a name to the task. Names are not unique; CancelName
// removes every task registered under the same name.
func WithName(name string) TaskOption {
	return func(o *taskOptions) {
		o.name = strings.TrimSpace(name)
	}
}

package host

import (
	"time"

	"cosched/internal/journal"
	"cosched/internal/task/scheduler"
	logx "cosched/pkg/logx"
)

// Notifier sends sd_notify style state strings ("READY=1", "WATCHDOG=1").
type Notifier interface {
	Notify(state string) (bool, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(state string) (bool, error)

func (f NotifierFunc) Notify(state string) (bool, error) { return f(state) }

type Options struct {
	Logs     *logx.Service
	LogLevel string
	Journal  journal.Store
	Notifier Notifier
	// WatchdogInterval reports the service manager's watchdog timeout.
	// Zero means no watchdog is expected.
	WatchdogInterval func() (time.Duration, error)
	Reloads          <-chan *Config
	Scheduler        []scheduler.Option
}

// Option is for setting options.
type Option func(*Options)

// WithLogService lets Apply swap log sinks and levels on reload.
func WithLogService(s *logx.Service) Option {
	return func(o *Options) { o.Logs = s }
}

// WithLogLevel overrides logging.level whenever Apply reapplies logging.
func WithLogLevel(level string) Option {
	return func(o *Options) { o.LogLevel = level }
}

// WithJournal records firings to st. The host does not close it.
func WithJournal(st journal.Store) Option {
	return func(o *Options) { o.Journal = st }
}

func WithNotifier(n Notifier) Option {
	return func(o *Options) {
		if n != nil {
			o.Notifier = n
		}
	}
}

func WithWatchdogInterval(fn func() (time.Duration, error)) Option {
	return func(o *Options) {
		if fn != nil {
			o.WatchdogInterval = fn
		}
	}
}

// WithReloads makes Loop apply configs received on ch between steps.
func WithReloads(ch <-chan *Config) Option {
	return func(o *Options) { o.Reloads = ch }
}

// WithSchedulerOptions appends scheduler options after the ones derived from
// the config, so they take precedence.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(o *Options) { o.Scheduler = append(o.Scheduler, opts...) }
}

package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cosched/internal/config"
	"cosched/internal/journal"
	"cosched/internal/task/scheduler"
	logx "cosched/pkg/logx"
)

type Config = config.Config

const journalTimeout = 250 * time.Millisecond

type Host struct {
	log      logx.Logger
	taskLog  logx.Logger
	logs     *logx.Service
	sched    *scheduler.Scheduler
	store    journal.Store
	notifier Notifier
	wdFn     func() (time.Duration, error)
	reloads  <-chan *Config
	logLevel string

	bootID   string
	applied  *Config
	watchdog time.Duration

	journalWarn *rate.Limiter
}

// New builds the scheduler from cfg, registers the configured tasks and, when
// enabled, the watchdog ping. cfg must have passed config.Validate.
func New(cfg *Config, log logx.Logger, opts ...Option) (*Host, error) {
	if cfg == nil {
		return nil, errors.New("host: nil config")
	}
	o := Options{
		Notifier:         sdNotifier{},
		WatchdogInterval: sdWatchdogInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	h := &Host{
		log:         log.With(logx.String("comp", "host")),
		taskLog:     log.With(logx.String("comp", "task")),
		logs:        o.Logs,
		store:       o.Journal,
		notifier:    o.Notifier,
		wdFn:        o.WatchdogInterval,
		reloads:     o.Reloads,
		logLevel:    strings.TrimSpace(o.LogLevel),
		bootID:      uuid.NewString(),
		journalWarn: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}

	sopts := append(cfg.SchedulerOptions(),
		scheduler.WithLogger(log.With(logx.String("comp", "scheduler"))),
		scheduler.WithObserver(h.observe),
	)
	h.sched = scheduler.New(append(sopts, o.Scheduler...)...)

	var errs []error
	for _, tc := range cfg.Tasks {
		if err := h.register(tc); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if cfg.Watchdog.Enabled {
		if err := h.startWatchdog(); err != nil {
			return nil, err
		}
	}
	h.applied = cfg

	h.log.Info("host ready",
		logx.String("boot_id", h.bootID),
		logx.Int("tasks", h.sched.Len()),
		logx.Int("capacity", h.sched.Cap()),
		logx.String("rearm", h.sched.Rearm().String()),
		logx.Bool("journal", h.store != nil),
	)
	return h, nil
}

func (h *Host) Scheduler() *scheduler.Scheduler { return h.sched }

func (h *Host) BootID() string { return h.bootID }

// WatchdogInterval returns the armed watchdog timeout, or 0.
func (h *Host) WatchdogInterval() time.Duration { return h.watchdog }

// Loop steps the scheduler until ctx is done. A pending config reload is
// applied before each step; the loop never blocks waiting for one.
func (h *Host) Loop(ctx context.Context) error {
	h.notify(daemon.SdNotifyReady)
	defer h.notify(daemon.SdNotifyStopping)

	for ctx.Err() == nil {
		h.Step()
	}
	return nil
}

// Step applies the newest pending reload, if any, and runs one scheduler
// step. It reports whether a task ran.
func (h *Host) Step() bool {
	if cfg := h.pendingReload(); cfg != nil {
		if err := h.Apply(cfg); err != nil {
			h.log.Warn("config apply incomplete", logx.Err(err))
		}
	}
	return h.sched.Run()
}

// pendingReload drains the reload channel without blocking and keeps only
// the newest config.
func (h *Host) pendingReload() *Config {
	if h.reloads == nil {
		return nil
	}
	var latest *Config
	for {
		select {
		case cfg, ok := <-h.reloads:
			if !ok {
				h.reloads = nil
				return latest
			}
			if cfg != nil {
				latest = cfg
			}
		default:
			return latest
		}
	}
}

// Apply moves the running host to cfg. Logging and the task table change in
// place; capacity, rearm mode and the journal need a restart.
//
// Changed tasks are cancelled by name and registered again, so their timing
// restarts from now. Unchanged tasks keep their schedule.
func (h *Host) Apply(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	sections, attrs, tasks := config.SummarizeConfigChange(h.applied, cfg)
	if len(sections) == 0 {
		h.log.Debug("config reload received, but no effective changes detected")
		return nil
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	h.log.Info("applying config change", fields...)

	watchdogChanged := false
	for _, s := range sections {
		switch s {
		case "logging":
			if h.logs != nil {
				h.logs.Apply(h.logConfig(cfg))
			}
		case "scheduler", "journal":
			h.log.Warn(s + " config changed; restart required for changes to take effect")
		case "watchdog":
			watchdogChanged = true
		}
	}

	// Free every slot that is going away before registering anything, so a
	// config that fits the pool always applies.
	cancelled := make(map[string]int, len(tasks))
	for _, name := range tasks {
		cancelled[name] = h.sched.CancelName(name)
	}
	if watchdogChanged {
		h.sched.CancelName(watchdogTask)
		h.watchdog = 0
	}

	byName := make(map[string]config.TaskConfig, len(cfg.Tasks))
	for _, tc := range cfg.Tasks {
		byName[strings.TrimSpace(tc.Name)] = tc
	}
	var errs []error
	for _, name := range tasks {
		tc, ok := byName[name]
		if !ok {
			h.log.Info("task removed", logx.String("task", name), logx.Int("cancelled", cancelled[name]))
			continue
		}
		if err := h.register(tc); err != nil {
			errs = append(errs, err)
			continue
		}
		h.log.Info("task updated", logx.String("task", name), logx.Int("cancelled", cancelled[name]))
	}
	if watchdogChanged && cfg.Watchdog.Enabled {
		if err := h.startWatchdog(); err != nil {
			errs = append(errs, err)
		}
	}

	h.applied = cfg
	return errors.Join(errs...)
}

// Close logs the final counters. A journal passed with WithJournal stays
// open; its owner closes it.
func (h *Host) Close() error {
	st := h.sched.Stats()
	h.log.Info("host stopped",
		logx.Uint64("runs", st.Runs),
		logx.Uint64("rejected", st.Rejected),
		logx.Uint64("dropped_rearms", st.DroppedRearms),
		logx.Uint64("panics", st.Panics),
	)
	return nil
}

// logConfig maps the logging section, keeping a level override from the
// command line across reloads.
func (h *Host) logConfig(cfg *Config) logx.Config {
	lc := cfg.LogConfig()
	if h.logLevel != "" {
		lc.Level = h.logLevel
	}
	return lc
}

func (h *Host) observe(f scheduler.Firing) {
	if f.Name == watchdogTask {
		return
	}
	if h.taskLog.Enabled(logx.LevelTrace) {
		h.taskLog.Trace("task fired",
			logx.String("task", f.Name),
			logx.String("handle", f.Handle.String()),
			logx.Duration("took", f.Took),
			logx.Bool("rearmed", f.Rearmed),
		)
	}
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	err := h.store.Append(ctx, journal.Entry{
		At:        time.Now(),
		BootID:    h.bootID,
		Task:      f.Name,
		HandleID:  f.Handle.ID(),
		Repeating: f.Repeating,
		TookMS:    f.Took.Milliseconds(),
		Panicked:  f.Panicked,
		Rearmed:   f.Rearmed,
	})
	if err != nil && h.journalWarn.Allow() {
		h.log.Warn("journal append failed", logx.Err(err))
	}
}

// startWatchdog registers the ping task when the service manager expects
// one. A missing interval is not an error; a full pool is.
func (h *Host) startWatchdog() error {
	d, err := h.wdFn()
	if err != nil {
		h.log.Warn("watchdog interval unavailable", logx.Err(err))
		return nil
	}
	if d <= 0 {
		h.log.Debug("watchdog enabled but not requested by the service manager")
		return nil
	}
	if _, err := h.sched.Every(d/2, h.pingWatchdog, scheduler.WithName(watchdogTask)); err != nil {
		return fmt.Errorf("watchdog: %w", err)
	}
	h.watchdog = d
	h.log.Info("watchdog armed", logx.Duration("timeout", d), logx.Duration("ping", d/2))
	return nil
}

func (h *Host) pingWatchdog() {
	h.notify(daemon.SdNotifyWatchdog)
}

func (h *Host) notify(state string) {
	if h.notifier == nil {
		return
	}
	sent, err := h.notifier.Notify(state)
	if err != nil {
		h.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		h.log.Trace("sd_notify sent", logx.String("state", state))
	}
}

func (h *Host) register(tc config.TaskConfig) error {
	if tc.Disabled {
		return nil
	}
	fn, d, warmup, err := h.buildTask(tc)
	if err != nil {
		return err
	}
	name := scheduler.WithName(tc.Name)
	switch tc.Kind {
	case config.KindAfter:
		_, err = h.sched.After(d, fn, name)
	case config.KindEvery:
		if warmup > 0 {
			_, err = h.sched.EveryWarmup(d, fn, warmup, name)
		} else {
			_, err = h.sched.Every(d, fn, name)
		}
	default:
		err = fmt.Errorf("unknown kind %q", tc.Kind)
	}
	if err != nil {
		return fmt.Errorf("task %q: %w", tc.Name, err)
	}
	return nil
}

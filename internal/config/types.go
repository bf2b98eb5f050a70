package config

import (
	"time"

	"cosched/internal/task/scheduler"
	logx "cosched/pkg/logx"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Journal records task firings for diagnostics. Nil means disabled.
	Journal *JournalConfig `json:"journal,omitempty"`

	Watchdog WatchdogConfig `json:"watchdog"`
	Tasks    []TaskConfig   `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the task pool.
//
// Capacity and rearm are fixed for the life of the process; changing them in
// a running config only takes effect after a restart.
//
// Defaults (when fields are omitted/zero):
//   - capacity: 10
//   - idle_pause: "10ms"
//   - rearm: "in_place"
type SchedulerConfig struct {
	Capacity int `json:"capacity,omitempty"`
	// IdlePause is a Go duration string (e.g. "10ms").
	IdlePause string `json:"idle_pause,omitempty"`
	// Rearm is "in_place" or "reregister".
	Rearm string `json:"rearm,omitempty"`
}

// JournalConfig controls the optional firing journal.
//
// Example:
//
//	"journal": { "driver": "file", "path": "./cosched.journal" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// WatchdogConfig enables systemd readiness and watchdog notifications.
// The watchdog interval comes from WATCHDOG_USEC set by systemd.
type WatchdogConfig struct {
	Enabled bool `json:"enabled"`
}

// TaskConfig declares a task registered by the host at startup and on reload.
type TaskConfig struct {
	Name string `json:"name"`
	// Kind is "after" (one-shot) or "every" (repeating).
	Kind string `json:"kind"`
	// Schedule is parsed by internal/task/schedule ("@every 5s", "500ms", "00:30").
	Schedule string `json:"schedule"`
	// Warmup is an optional Go duration for the first firing of "every" tasks.
	Warmup string `json:"warmup,omitempty"`
	// Action is "log" or "stats".
	Action   string `json:"action"`
	Message  string `json:"message,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

const (
	KindAfter = "after"
	KindEvery = "every"

	ActionLog   = "log"
	ActionStats = "stats"

	// ReservedPrefix marks task names used by the host itself.
	ReservedPrefix = "_"
)

// LogConfig maps the logging section to logx.Config.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

// SchedulerOptions maps the scheduler section to scheduler options.
// Call Validate first; invalid values fall back to defaults here.
func (c *Config) SchedulerOptions() []scheduler.Option {
	opts := []scheduler.Option{scheduler.WithCapacity(c.Scheduler.Capacity)}
	if d, err := ParseDurationOrDefault("scheduler.idle_pause", c.Scheduler.IdlePause, scheduler.DefaultIdlePause); err == nil {
		opts = append(opts, scheduler.WithIdlePause(d))
	}
	if r, err := scheduler.ParseRearm(c.Scheduler.Rearm); err == nil {
		opts = append(opts, scheduler.WithRearm(r))
	}
	return opts
}

// Capacity returns the effective pool size.
func (c *Config) Capacity() int {
	if c.Scheduler.Capacity > 0 {
		return c.Scheduler.Capacity
	}
	return scheduler.DefaultCapacity
}

// Timeout returns the parsed sqlite busy timeout (0 when unset).
func (j *JournalConfig) Timeout() time.Duration {
	if j == nil {
		return 0
	}
	d, _ := ParseDurationField("journal.busy_timeout", j.BusyTimeout)
	return d
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"cosched/internal/task/schedule"
	"cosched/internal/task/scheduler"
)

// Validate checks the config for values the host cannot apply.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if cfg.Scheduler.Capacity < 0 {
		errs = append(errs, fmt.Errorf("scheduler.capacity: must be >= 0"))
	}
	if _, err := ParseDurationField("scheduler.idle_pause", cfg.Scheduler.IdlePause); err != nil {
		errs = append(errs, err)
	}
	if _, err := scheduler.ParseRearm(cfg.Scheduler.Rearm); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.rearm: %w", err))
	}

	if j := cfg.Journal; j != nil {
		switch strings.ToLower(strings.TrimSpace(j.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(j.Path) == "" {
				errs = append(errs, fmt.Errorf("journal.path: required for driver %q", j.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("journal.driver: unknown driver %q", j.Driver))
		}
		if _, err := ParseDurationField("journal.busy_timeout", j.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	seen := map[string]bool{}
	active := 0
	for i, t := range cfg.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(t.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", path))
		} else if strings.HasPrefix(name, ReservedPrefix) {
			errs = append(errs, fmt.Errorf("%s.name: %q is reserved (prefix %q)", path, name, ReservedPrefix))
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("%s.name: duplicate %q", path, name))
		}
		seen[name] = true

		switch t.Kind {
		case KindAfter, KindEvery:
		default:
			errs = append(errs, fmt.Errorf("%s.kind: must be %q or %q, got %q", path, KindAfter, KindEvery, t.Kind))
		}
		if _, err := schedule.Parse(t.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s.schedule: %w", path, err))
		}
		if strings.TrimSpace(t.Warmup) != "" && t.Kind != KindEvery {
			errs = append(errs, fmt.Errorf("%s.warmup: only valid for kind %q", path, KindEvery))
		}
		if _, err := ParseDurationField(path+".warmup", t.Warmup); err != nil {
			errs = append(errs, err)
		}
		switch t.Action {
		case ActionLog, ActionStats:
		default:
			errs = append(errs, fmt.Errorf("%s.action: must be %q or %q, got %q", path, ActionLog, ActionStats, t.Action))
		}
		if !t.Disabled {
			active++
		}
	}
	// One slot stays free for the watchdog task.
	reserved := 0
	if cfg.Watchdog.Enabled {
		reserved = 1
	}
	if active+reserved > cfg.Capacity() {
		errs = append(errs, fmt.Errorf("tasks: %d enabled tasks (+%d reserved) exceed scheduler capacity %d", active, reserved, cfg.Capacity()))
	}

	return errors.Join(errs...)
}

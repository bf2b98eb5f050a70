package config

import (
	"reflect"
	"sort"
	"strings"

	logx "cosched/pkg/logx"
)

// SummarizeConfigChange returns the changed sections, safe attrs for logging,
// and the names of tasks whose definition changed (added, removed or edited).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Int("scheduler.capacity", newCfg.Capacity()),
			logx.String("scheduler.idle_pause", strings.TrimSpace(newCfg.Scheduler.IdlePause)),
			logx.String("scheduler.rearm", strings.TrimSpace(newCfg.Scheduler.Rearm)),
		)
	}

	var oJ, nJ JournalConfig
	if oldCfg.Journal != nil {
		oJ = *oldCfg.Journal
	}
	if newCfg.Journal != nil {
		nJ = *newCfg.Journal
	}
	if oJ != nJ {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", strings.TrimSpace(nJ.Driver)),
			logx.Bool("journal.path_set", strings.TrimSpace(nJ.Path) != ""),
		)
	}

	if oldCfg.Watchdog != newCfg.Watchdog {
		changed = append(changed, "watchdog")
		attrs = append(attrs, logx.Bool("watchdog.enabled", newCfg.Watchdog.Enabled))
	}

	tasks := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if len(tasks) > 0 {
		changed = append(changed, "tasks")
		attrs = append(attrs,
			logx.Int("tasks.changed_count", len(tasks)),
			logx.Int("tasks.total", len(newCfg.Tasks)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, tasks
}

func diffTasks(oldT, newT []TaskConfig) []string {
	index := func(ts []TaskConfig) map[string]TaskConfig {
		m := make(map[string]TaskConfig, len(ts))
		for _, t := range ts {
			m[strings.TrimSpace(t.Name)] = t
		}
		return m
	}
	oldM, newM := index(oldT), index(newT)

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, inOld := oldM[name]
		n, inNew := newM[name]
		if inOld != inNew || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

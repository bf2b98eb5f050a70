package host

import (
	"fmt"
	"strings"
	"time"

	"cosched/internal/config"
	"cosched/internal/task/schedule"
	logx "cosched/pkg/logx"
)

// buildTask turns a task definition into a callback and its delays.
func (h *Host) buildTask(tc config.TaskConfig) (fn func(), every, warmup time.Duration, err error) {
	spec, err := schedule.Parse(tc.Schedule)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("task %q: schedule: %w", tc.Name, err)
	}
	warmup, err = config.ParseDurationField("warmup", tc.Warmup)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("task %q: %w", tc.Name, err)
	}

	name := strings.TrimSpace(tc.Name)
	switch tc.Action {
	case config.ActionLog:
		msg := strings.TrimSpace(tc.Message)
		if msg == "" {
			msg = "task fired"
		}
		log := h.taskLog.With(logx.String("task", name))
		fn = func() { log.Info(msg) }
	case config.ActionStats:
		log := h.taskLog.With(logx.String("task", name))
		fn = func() { h.logStats(log) }
	default:
		return nil, 0, 0, fmt.Errorf("task %q: unknown action %q", tc.Name, tc.Action)
	}
	return fn, spec.Every, warmup, nil
}

func (h *Host) logStats(log logx.Logger) {
	st := h.sched.Stats()
	log.Info("scheduler stats",
		logx.Int("used", h.sched.Len()),
		logx.Int("capacity", h.sched.Cap()),
		logx.Uint64("runs", st.Runs),
		logx.Uint64("idles", st.Idles),
		logx.Uint64("rejected", st.Rejected),
		logx.Uint64("dropped_rearms", st.DroppedRearms),
		logx.Uint64("panics", st.Panics),
	)
}

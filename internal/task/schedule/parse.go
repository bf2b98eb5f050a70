// Package schedule turns human-written schedule strings into the fixed
// delays the cooperative scheduler works with.
package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec is a parsed schedule string.
//
// Supported forms:
//   - cron constant delay: "@every 5s", "@every 1m30s"
//   - Go duration: "500ms", "2h30m", "0s"
//   - HH:MM interval: "00:50" (50 minutes), "02:30" (2 hours 30 minutes)
//
// Optional prefixes "every:" and "interval:" force interval parsing.
// Calendar cron expressions ("*/5 * * * *", "@daily") are rejected: tasks
// re-arm relative to their last firing, not to wall-clock time.
type Spec struct {
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

var (
	reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

	parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Parse parses raw into a fixed delay. Zero is allowed and means "due on the
// next scheduler step".
func Parse(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	for _, prefix := range []string{"every:", "interval:"} {
		if strings.HasPrefix(low, prefix) {
			return parseInterval(strings.TrimSpace(s[len(prefix):]))
		}
	}

	if strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t\n\r") {
		return parseCron(s)
	}
	return parseInterval(s)
}

func parseCron(s string) (Spec, error) {
	sched, err := parser.Parse(s)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q: %w", s, err)
	}
	cd, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return Spec{}, fmt.Errorf("calendar schedule %q not supported (use \"@every <duration>\" or a duration like '55m')", s)
	}
	// cron.Every rounds to whole seconds; refuse to silently change the delay.
	if want, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(s, "@every"))); err == nil && want != cd.Delay {
		return Spec{}, fmt.Errorf("schedule %q: @every has 1s granularity (got %s); use a plain duration like %q", s, cd.Delay, want.String())
	}
	return Spec{Every: cd.Delay, Source: "cron"}, nil
}

func parseInterval(v string) (Spec, error) {
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	if reHHMM.MatchString(v) {
		d, err := parseHHMMDuration(v)
		if err != nil {
			return Spec{}, err
		}
		return Spec{Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid schedule %q (use \"@every 5s\", HH:MM like '02:30', or a duration like '500ms')", v)
	}
	if d < 0 {
		return Spec{}, fmt.Errorf("interval must be >= 0")
	}
	return Spec{Every: d, Source: "duration"}, nil
}

func parseHHMMDuration(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	// hours up to 999, minutes 0..59
	var hh int
	for i := 0; i < len(m[1]); i++ {
		hh = hh*10 + int(m[1][i]-'0')
	}
	mm := int(m[2][0]-'0')*10 + int(m[2][1]-'0')
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

package schedule

import (
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		source string
		every  time.Duration
	}{
		{name: "cron every", raw: "@every 5s", source: "cron", every: 5 * time.Second},
		{name: "cron every compound", raw: "@every 1m30s", source: "cron", every: 90 * time.Second},
		{name: "duration", raw: "250ms", source: "duration", every: 250 * time.Millisecond},
		{name: "zero", raw: "0s", source: "duration", every: 0},
		{name: "prefixed interval", raw: "interval:45s", source: "duration", every: 45 * time.Second},
		{name: "prefixed every hhmm", raw: "every: 00:05", source: "hhmm", every: 5 * time.Minute},
		{name: "hhmm", raw: "01:30", source: "hhmm", every: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if got.Every != tt.every {
				t.Fatalf("Every = %v, want %v", got.Every, tt.every)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"not-a-schedule",
		"*/5 * * * *",  // calendar
		"@daily",       // calendar descriptor
		"@every 500ms", // below cron granularity
		"-5s",
		"01:75",
	} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("Parse(%q): expected error", raw)
		}
	}
}

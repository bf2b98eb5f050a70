package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosched/internal/task/scheduler"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  capacity: 4
  idle_pause: 5ms
  rearm: reregister
journal:
  driver: file
  path: ./journal
watchdog:
  enabled: true
tasks:
  - name: heartbeat
    kind: every
    schedule: "@every 5s"
    warmup: 1s
    action: log
    message: alive
  - name: boot
    kind: after
    schedule: "2s"
    action: stats
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "cosched.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit the config")
	}
	if cfg.Capacity() != 4 || cfg.Scheduler.Rearm != "reregister" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Journal == nil || cfg.Journal.Driver != "file" {
		t.Fatalf("journal = %+v", cfg.Journal)
	}
	if len(cfg.Tasks) != 2 || cfg.Tasks[0].Schedule != "@every 5s" || cfg.Tasks[0].Warmup != "1s" {
		t.Fatalf("tasks = %+v", cfg.Tasks)
	}

	s := scheduler.New(cfg.SchedulerOptions()...)
	if s.Cap() != 4 || s.Rearm() != scheduler.RearmReregister {
		t.Fatalf("scheduler built with cap %d rearm %v", s.Cap(), s.Rearm())
	}
	if lc := cfg.LogConfig(); lc.Level != "debug" || !lc.Console {
		t.Fatalf("log config = %+v", lc)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		data string
	}{
		{"unknown json field", "c.json", `{"scheduler":{"capacity":2,"workers":3}}`},
		{"trailing json", "c.json", `{"tasks":[]} {"tasks":[]}`},
		{"unknown yaml field", "c.yml", "logging:\n  colour: true\n"},
		{"bad yaml", "c.yaml", "tasks: [\n"},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.path, []byte(tt.data)); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
	if _, err := Decode("c.json", []byte(`{"watchdog":{"enabled":false}}`)); err != nil {
		t.Fatalf("valid json rejected: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	valid := func() *Config {
		return &Config{
			Scheduler: SchedulerConfig{Capacity: 2},
			Tasks: []TaskConfig{
				{Name: "a", Kind: KindEvery, Schedule: "1s", Warmup: "10ms", Action: ActionLog},
			},
		}
	}
	if err := Validate(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad rearm", func(c *Config) { c.Scheduler.Rearm = "later" }, "scheduler.rearm"},
		{"bad idle", func(c *Config) { c.Scheduler.IdlePause = "soon" }, "scheduler.idle_pause"},
		{"bad driver", func(c *Config) { c.Journal = &JournalConfig{Driver: "redis"} }, "journal.driver"},
		{"missing journal path", func(c *Config) { c.Journal = &JournalConfig{Driver: "file"} }, "journal.path"},
		{"duplicate name", func(c *Config) { c.Tasks = append(c.Tasks, c.Tasks[0]) }, "duplicate"},
		{"reserved name", func(c *Config) { c.Tasks[0].Name = "_watchdog" }, "reserved"},
		{"bad kind", func(c *Config) { c.Tasks[0].Kind = "cron" }, "tasks[0].kind"},
		{"bad schedule", func(c *Config) { c.Tasks[0].Schedule = "*/5 * * * *" }, "tasks[0].schedule"},
		{"warmup on after", func(c *Config) { c.Tasks[0].Kind = KindAfter }, "tasks[0].warmup"},
		{"bad action", func(c *Config) { c.Tasks[0].Action = "reboot" }, "tasks[0].action"},
		{"over capacity", func(c *Config) {
			c.Watchdog.Enabled = true
			c.Tasks = append(c.Tasks, TaskConfig{Name: "b", Kind: KindAfter, Schedule: "1s", Action: ActionStats})
		}, "exceed scheduler capacity"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := Validate(c)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestDisabledTasksDoNotCountAgainstCapacity(t *testing.T) {
	t.Parallel()
	c := &Config{Scheduler: SchedulerConfig{Capacity: 1}}
	for _, name := range []string{"a", "b", "c"} {
		c.Tasks = append(c.Tasks, TaskConfig{Name: name, Kind: KindAfter, Schedule: "1s", Action: ActionLog, Disabled: name != "a"})
	}
	if err := Validate(c); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Logging: LoggingConfig{Level: "info"},
		Tasks: []TaskConfig{
			{Name: "keep", Kind: KindEvery, Schedule: "1s", Action: ActionLog},
			{Name: "edit", Kind: KindEvery, Schedule: "1s", Action: ActionLog},
			{Name: "drop", Kind: KindAfter, Schedule: "1s", Action: ActionLog},
		},
	}
	newCfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Journal: &JournalConfig{Driver: "file", Path: "x"},
		Tasks: []TaskConfig{
			{Name: "keep", Kind: KindEvery, Schedule: "1s", Action: ActionLog},
			{Name: "edit", Kind: KindEvery, Schedule: "2s", Action: ActionLog},
			{Name: "new", Kind: KindAfter, Schedule: "1s", Action: ActionStats},
		},
	}
	sections, attrs, tasks := SummarizeConfigChange(oldCfg, newCfg)
	if strings.Join(sections, ",") != "journal,logging,tasks" {
		t.Fatalf("sections = %v", sections)
	}
	if len(attrs) == 0 {
		t.Fatal("expected log attrs")
	}
	if strings.Join(tasks, ",") != "drop,edit,new" {
		t.Fatalf("tasks = %v", tasks)
	}
}

func TestWatchPublishesReload(t *testing.T) {
	path := writeFile(t, "cosched.json", `{"logging":{"level":"info"}}`)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("reloaded level = %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "c.json", `{"scheduler":{"rearm":"never"}}`))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected validation error")
	}
	if m.Get() != nil {
		t.Fatal("invalid config was committed")
	}

	m = NewConfigManager(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := m.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

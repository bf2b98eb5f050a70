package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cosched/internal/journal"
	logx "cosched/pkg/logx"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cosched.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckListsTasks(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  capacity: 3
tasks:
  - name: heartbeat
    kind: every
    schedule: "@every 5s"
    warmup: 1s
    action: log
  - name: report
    kind: after
    schedule: "00:30"
    action: stats
    disabled: true
`)
	out, err := execute(t, "check", "--config", path)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, want := range []string{"Capacity: 3", "heartbeat", "5s", "report", "30m0s", "disabled", "OK"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckRejectsInvalid(t *testing.T) {
	path := writeConfig(t, `
tasks:
  - name: cal
    kind: every
    schedule: "*/5 * * * *"
    action: log
`)
	if _, err := execute(t, "check", "-c", path); err == nil || !strings.Contains(err.Error(), "tasks[0].schedule") {
		t.Fatalf("err = %v, want schedule error", err)
	}
}

func TestJournalShowsRecent(t *testing.T) {
	dir := t.TempDir()
	jpath := filepath.Join(dir, "cosched.journal")
	st, err := journal.Open(journal.Config{Driver: "file", Path: jpath}, logx.Nop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	for _, name := range []string{"first", "second"} {
		e := journal.Entry{At: at, BootID: "0123456789abcdef", Task: name, HandleID: 3, Repeating: true, Rearmed: true}
		if err := st.Append(context.Background(), e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = st.Close()

	cfgPath := filepath.Join(dir, "cosched.json")
	body := `{"journal":{"driver":"file","path":` + quote(jpath) + `}}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "journal", "--config", cfgPath, "-n", "1")
	if err != nil {
		t.Fatalf("journal: %v\n%s", err, out)
	}
	if strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Fatalf("want only the newest entry:\n%s", out)
	}
	if !strings.Contains(out, "task#3") || !strings.Contains(out, "RA") || !strings.Contains(out, "01234567") {
		t.Fatalf("entry columns missing:\n%s", out)
	}
}

func TestJournalDisabled(t *testing.T) {
	path := writeConfig(t, "watchdog:\n  enabled: false\n")
	if _, err := execute(t, "journal", "--config", path); !errors.Is(err, journal.ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `\`, `\\`) + `"`
}

func TestRunStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cosched.json")
	body := `{"logging":{"level":"error","file":{"enabled":true,"path":` + quote(filepath.Join(dir, "run.log")) + `}},` +
		`"tasks":[{"name":"tick","kind":"every","schedule":"10ms","action":"log"}]}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := NewRootCmd()
	root.SetArgs([]string{"run", "--config", cfgPath})
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

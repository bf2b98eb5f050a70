package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "cosched/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestFileAppendRecent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "cosched.journal")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := Entry{
			At:        base.Add(time.Duration(i) * time.Second),
			BootID:    "boot",
			Task:      fmt.Sprintf("t%d", i),
			HandleID:  uint64(i + 1),
			Repeating: i%2 == 0,
			TookMS:    int64(i),
			Panicked:  i == 3,
		}
		if err := st.Append(ctx, e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := st.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"t2", "t3", "t4"} {
		if got[i].Task != want {
			t.Fatalf("got[%d].Task = %q, want %q", i, got[i].Task, want)
		}
	}
	if !got[1].Panicked || got[1].HandleID != 4 || !got[1].At.Equal(base.Add(3*time.Second)) {
		t.Fatalf("entry = %+v", got[1])
	}

	all, err := st.Recent(ctx, 100)
	if err != nil || len(all) != 5 || all[0].Task != "t0" {
		t.Fatalf("Recent(100) = %d entries, err %v", len(all), err)
	}
	if none, _ := st.Recent(ctx, 0); none != nil {
		t.Fatalf("Recent(0) = %v", none)
	}
}

func TestFileSkipsCorruptLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "j.jsonl")
	lines := []string{
		`{"task":"a","handle_id":1}`,
		`{not json`,
		`{"task":"b","handle_id":2}`,
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	got, err := st.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Task != "a" || got[1].Task != "b" {
		t.Fatalf("got %+v", got)
	}
}

func TestFileAppendAfterClose(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "j")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Append(context.Background(), Entry{Task: "x"}); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestFileAppendHonoursContext(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "j")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.Append(ctx, Entry{Task: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Append err = %v, want context.Canceled", err)
	}
	got, err := st.Recent(context.Background(), 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("Recent = %v, %v; want nothing written", got, err)
	}
}

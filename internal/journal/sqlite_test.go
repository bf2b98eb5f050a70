//go:build sqlite
// +build sqlite

package journal

import (
	"context"
	"path/filepath"
	"testing"

	logx "cosched/pkg/logx"
)

func TestSQLiteAppendRecent(t *testing.T) {
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "j.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if err := st.Append(ctx, Entry{Task: name, BootID: "boot", HandleID: 7, Rearmed: true}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	got, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Task != "b" || got[1].Task != "c" {
		t.Fatalf("got %+v", got)
	}
	if got[1].HandleID != 7 || !got[1].Rearmed || got[1].At.IsZero() {
		t.Fatalf("entry = %+v", got[1])
	}
}

package journal

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("journal disabled")

// Config configures the journal.
//
// Driver values:
//   - "file": JSON Lines file, append-only
//   - "sqlite": SQLite database file (build tag sqlite)
//
// If Driver is empty or "none", the journal is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry records one task firing.
type Entry struct {
	At        time.Time `json:"at"`
	BootID    string    `json:"boot_id"`
	Task      string    `json:"task"`
	HandleID  uint64    `json:"handle_id"`
	Repeating bool      `json:"repeating"`
	TookMS    int64     `json:"took_ms"`
	Panicked  bool      `json:"panicked,omitempty"`
	Rearmed   bool      `json:"rearmed,omitempty"`
}

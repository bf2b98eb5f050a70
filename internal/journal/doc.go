// Package journal records task firings for diagnostics.
//
// Entries are only written, and read back by the CLI; the scheduler never
// restores state from the journal.
package journal

// Package host owns a cooperative scheduler and drives it from a single
// loop: it registers the configured tasks, applies config reloads between
// steps, records firings to the journal and keeps systemd informed.
package host

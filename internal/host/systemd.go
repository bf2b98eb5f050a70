package host

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

const watchdogTask = "_watchdog"

// sdNotifier talks to systemd through NOTIFY_SOCKET. Without the socket every
// call is a silent no-op.
type sdNotifier struct{}

func (sdNotifier) Notify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

func sdWatchdogInterval() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

// Package systemd reports service readiness and liveness to the service
// manager through the sd_notify protocol. Every call is a no-op when the
// process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/camrelay/internal/logging"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger logging.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready tells systemd the service finished starting.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd the service is shutting down.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(line string) {
	n.send("STATUS=" + line)
}

func (n *Notifier) send(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}

// RunWatchdog pings the systemd watchdog at half the configured interval
// while healthy reports true, so a capture loop that stops making progress
// gets the unit restarted. It returns immediately when no watchdog is
// configured.
func (n *Notifier) RunWatchdog(ctx context.Context, healthy func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return nil
	}
	if interval == 0 {
		return nil
	}
	n.logger.Info("Systemd watchdog enabled", "interval", interval)

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if healthy() {
				n.send(daemon.SdNotifyWatchdog)
			} else {
				n.logger.Warn("Skipping watchdog ping, service unhealthy")
			}
		}
	}
}

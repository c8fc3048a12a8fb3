package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "tickmux/pkg/logx"
)

const (
	sdReady     = daemon.SdNotifyReady
	sdReloading = daemon.SdNotifyReloading
	sdStopping  = daemon.SdNotifyStopping
)

// Notifier reports service state to the init system.
type Notifier interface {
	Notify(state string) (sent bool, err error)
}

// systemdNotifier talks to $NOTIFY_SOCKET. Outside systemd it is a no-op.
type systemdNotifier struct{}

func (systemdNotifier) Notify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

func (a *App) sdNotify(state string) {
	if a.notify == nil {
		return
	}
	sent, err := a.notify.Notify(state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify", logx.String("state", state))
	}
}

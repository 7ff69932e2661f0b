//go:build windows

package shutdownsignal

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"
)

var kernel32 = windows.NewLazySystemDLL("kernel32.dll")
var procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")

// Watch installs a console control handler so CTRL_C_EVENT,
// CTRL_BREAK_EVENT and CTRL_CLOSE_EVENT fire trigger exactly once.
func Watch(trigger interface{ Fire() }, log logrus.FieldLogger) func() {
	handler := func(ctrlType uint32) uintptr {
		switch ctrlType {
		case windows.CTRL_C_EVENT, windows.CTRL_BREAK_EVENT, windows.CTRL_CLOSE_EVENT,
			windows.CTRL_LOGOFF_EVENT, windows.CTRL_SHUTDOWN_EVENT:
			log.WithField("ctrlType", ctrlType).Info("received console control event")
			trigger.Fire()
			return 1
		}
		return 0
	}

	callback := windows.NewCallback(handler)
	procSetConsoleCtrlHandler.Call(callback, 1)

	return func() {
		procSetConsoleCtrlHandler.Call(callback, 0)
	}
}

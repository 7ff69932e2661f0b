//go:build !windows

// Package shutdownsignal wires the process's own SIGINT/SIGTERM (or,
// on Windows, console control events) into a group's ExitTrigger, the
// same signal.Notify-on-a-channel idiom the teacher uses for SIGCHLD.
package shutdownsignal

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Watch installs SIGINT/SIGTERM handlers that fire trigger exactly
// once, then returns a function that stops watching.
func Watch(trigger interface{ Fire() }, log logrus.FieldLogger) func() {
	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig).Info("received shutdown signal")
			trigger.Fire()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

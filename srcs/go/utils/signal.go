package utils

import (
	"os"
	"os/signal"
	"syscall"
)

// Trap calls cancel on the first interrupt or termination signal, a second
// one gets the default behaviour. The returned func stops trapping.
func Trap(cancel func(os.Signal)) (stop func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-c:
			signal.Stop(c)
			cancel(sig)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}

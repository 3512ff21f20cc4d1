package utils

import (
	"sync"
	"time"

	"github.com/frostml/frost/srcs/go/log"
)

// StallDetector warns while an operation takes longer than its period.
type StallDetector struct {
	name    string
	period  time.Duration
	stopped chan struct{}
	done    chan struct{}
	once    sync.Once
}

// InstallStallDetector warns every period until Stop is called. A
// non-positive period disables it.
func InstallStallDetector(name string, period time.Duration) *StallDetector {
	s := &StallDetector{
		name:    name,
		period:  period,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if period <= 0 {
		close(s.done)
		return s
	}
	go s.watch()
	return s
}

func (s *StallDetector) watch() {
	defer close(s.done)
	t0 := time.Now()
	tk := time.NewTicker(s.period)
	defer tk.Stop()
	var stalls int
	for {
		select {
		case <-tk.C:
			stalls++
			log.Warnf("%s stalled for %s", s.name, time.Since(t0))
		case <-s.stopped:
			if stalls > 0 {
				log.Warnf("%s recovered after %s", s.name, time.Since(t0))
			}
			return
		}
	}
}

// Stop may be called more than once.
func (s *StallDetector) Stop() {
	s.once.Do(func() { close(s.stopped) })
	<-s.done
}

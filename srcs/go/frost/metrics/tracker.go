// Package metrics accumulates per-batch metrics of an epoch and reduces them
// across the processes of a training group.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frostml/frost/srcs/go/frost/collective"
	"github.com/frostml/frost/srcs/go/log"
)

// ErrNotSynchronized is returned by Summarize before SynchronizeBetweenProcesses.
var ErrNotSynchronized = errors.New("metrics not synchronized between processes")

// Tracker maps metric names to accumulators, in insertion order.
// A Tracker is created per epoch and is not safe for concurrent use.
type Tracker struct {
	names []string
	accs  map[string]*Accumulator
}

// NewTracker creates a tracker with empty accumulators for names, so that
// every process reduces the same metrics even if it saw no batch.
func NewTracker(names ...string) *Tracker {
	t := &Tracker{accs: make(map[string]*Accumulator)}
	for _, name := range names {
		t.get(name)
	}
	return t
}

func (t *Tracker) get(name string) *Accumulator {
	a, ok := t.accs[name]
	if !ok {
		a = &Accumulator{}
		t.accs[name] = a
		t.names = append(t.names, name)
	}
	return a
}

// Update records one observation, creating the accumulator on first use.
func (t *Tracker) Update(name string, v float64) {
	t.get(name).Update(v)
}

// Get returns the accumulator of name, an empty one if it was never updated.
func (t *Tracker) Get(name string) *Accumulator {
	if a, ok := t.accs[name]; ok {
		return a
	}
	return &Accumulator{}
}

func (t *Tracker) Names() []string {
	return append([]string(nil), t.names...)
}

// Format renders the last value and running average of every metric.
func (t *Tracker) Format(header string) string {
	parts := []string{header}
	for _, name := range t.names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, t.accs[name]))
	}
	return strings.Join(parts, "  ")
}

// Display logs the progress line of the current batch.
func (t *Tracker) Display(header string) {
	log.Infof("%s", t.Format(header))
}

// SynchronizeBetweenProcesses all-reduces (sum, count) of every accumulator.
// Every process of the group must call it the same number of times, with the
// same metrics in the same order.
func (t *Tracker) SynchronizeBetweenProcesses(ctx context.Context, c collective.Collective) error {
	for _, name := range t.names {
		a := t.accs[name]
		xs := []float64{a.sum, a.count}
		if err := c.AllReduce(ctx, "tracker::"+name, xs); err != nil {
			return err
		}
		a.globalSum, a.globalCount = xs[0], xs[1]
		a.synced = true
	}
	return nil
}

func (t *Tracker) synced() bool {
	for _, a := range t.accs {
		if !a.synced {
			return false
		}
	}
	return true
}

// FormatSummary renders the global averages.
func (t *Tracker) FormatSummary(header string) (string, error) {
	if !t.synced() {
		return "", ErrNotSynchronized
	}
	parts := []string{header}
	for _, name := range t.names {
		parts = append(parts, fmt.Sprintf("%s: %.4f", name, t.accs[name].GlobalAverage()))
	}
	return strings.Join(parts, "  "), nil
}

// Summarize logs the global averages of a synchronized tracker.
func (t *Tracker) Summarize(header string) error {
	s, err := t.FormatSummary(header)
	if err != nil {
		return err
	}
	log.Infof("%s", s)
	return nil
}

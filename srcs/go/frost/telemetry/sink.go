// Package telemetry records scalar time series of a training run: TensorBoard
// event files for offline charting and Prometheus gauges for live monitoring.
package telemetry

import (
	"github.com/frostml/frost/srcs/go/utils"
)

// Sink receives scalars indexed by a monotonically increasing step.
type Sink interface {
	AddScalar(tag string, value float64, step int) error
	Close() error
}

// Nop discards everything, it is the sink of non-main processes.
type Nop struct{}

func (Nop) AddScalar(string, float64, int) error { return nil }

func (Nop) Close() error { return nil }

// Multi writes every scalar to all sinks.
type Multi []Sink

func (m Multi) AddScalar(tag string, value float64, step int) error {
	for _, s := range m {
		if err := s.AddScalar(tag, value, step); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return utils.MergeErrors(errs, "close sinks")
}

// Flusher is implemented by buffered sinks.
type Flusher interface {
	Flush() error
}

// Flush flushes s, and the members of s if it is a Multi.
func Flush(s Sink) error {
	switch s := s.(type) {
	case Multi:
		for _, m := range s {
			if err := Flush(m); err != nil {
				return err
			}
		}
	case Flusher:
		return s.Flush()
	}
	return nil
}

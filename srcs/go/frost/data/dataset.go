// Package data is the input pipeline: datasets, per-sample transforms,
// samplers that partition a dataset between processes, and a batching loader
// that prepares batches on worker goroutines.
package data

import (
	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/pkg/errors"
)

// Sample is one input with its class label, Input is owned by the caller.
type Sample struct {
	Input []float64
	Label int
}

type Dataset interface {
	Len() int
	// SampleShape is the shape of every input.
	SampleShape() tensor.Shape
	Get(i int) (Sample, error)
}

// InMemory is a dataset whose samples are rows of a dense tensor.
type InMemory struct {
	samples *tensor.Dense
	labels  []int
}

func NewInMemory(samples *tensor.Dense, labels []int) (*InMemory, error) {
	if samples.Shape().Rank() < 1 || samples.Ldm() != len(labels) {
		return nil, errors.Errorf("%d labels for samples %s", len(labels), samples.Info())
	}
	return &InMemory{samples: samples, labels: labels}, nil
}

func (d *InMemory) Len() int {
	return len(d.labels)
}

func (d *InMemory) SampleShape() tensor.Shape {
	return d.samples.Shape().SubShape()
}

func (d *InMemory) Get(i int) (Sample, error) {
	if i < 0 || i >= len(d.labels) {
		return Sample{}, errors.Errorf("index %d out of range [0, %d)", i, len(d.labels))
	}
	return Sample{
		Input: append([]float64{}, d.samples.Row(i)...),
		Label: d.labels[i],
	}, nil
}

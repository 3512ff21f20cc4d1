package nn

import (
	"context"

	"github.com/frostml/frost/srcs/go/frost/collective"
	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// DistributedDataParallel replicates a module across a group: parameters of
// rank 0 are broadcast on construction and gradients are averaged over the
// group during the backward pass, so replicas stay identical.
type DistributedDataParallel struct {
	Module
	ctx  context.Context
	comm collective.Collective
	buf  []float64
}

func NewDistributedDataParallel(ctx context.Context, m Module, comm collective.Collective) (*DistributedDataParallel, error) {
	d := &DistributedDataParallel{
		Module: m,
		ctx:    ctx,
		comm:   comm,
		buf:    make([]float64, countParams(m.Parameters())),
	}
	d.flatten(func(p *Param) []float64 { return p.Value })
	if err := collective.Broadcast(ctx, comm, "ddp::params", d.buf); err != nil {
		return nil, errors.Wrap(err, "broadcast parameters")
	}
	d.unflatten(func(p *Param) []float64 { return p.Value })
	log.Debugf("replicated %d parameters over %d processes", len(d.buf), comm.Size())
	return d, nil
}

// Unwrap returns the replicated module.
func (d *DistributedDataParallel) Unwrap() Module {
	return d.Module
}

func (d *DistributedDataParallel) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	y, err := d.Module.Forward(x)
	if err != nil {
		return nil, err
	}
	if d.Module.Training() {
		y.OnBackward(func([]float64) error { return d.syncGrads() })
	}
	return y, nil
}

func (d *DistributedDataParallel) syncGrads() error {
	d.flatten(func(p *Param) []float64 { return p.Grad })
	if err := d.comm.AllReduce(d.ctx, "ddp::grads", d.buf); err != nil {
		return errors.Wrap(err, "all-reduce gradients")
	}
	floats.Scale(1/float64(d.comm.Size()), d.buf)
	d.unflatten(func(p *Param) []float64 { return p.Grad })
	return nil
}

func (d *DistributedDataParallel) flatten(field func(*Param) []float64) {
	off := 0
	for _, p := range d.Module.Parameters() {
		off += copy(d.buf[off:], field(p))
	}
}

func (d *DistributedDataParallel) unflatten(field func(*Param) []float64) {
	off := 0
	for _, p := range d.Module.Parameters() {
		off += copy(field(p), d.buf[off:])
	}
}

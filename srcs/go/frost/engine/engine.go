// Package engine runs one pass over a data pipeline, in training or in
// evaluation mode, and reports its metrics.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/frostml/frost/srcs/go/frost/data"
	"github.com/frostml/frost/srcs/go/frost/dist"
	"github.com/frostml/frost/srcs/go/frost/metrics"
	"github.com/frostml/frost/srcs/go/frost/telemetry"
	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/pkg/errors"
)

type Model interface {
	// SetTraining switches between training mode, where forward passes record
	// what backward needs, and evaluation mode, where they don't.
	SetTraining(bool)
	Forward(x *tensor.Dense) (*tensor.Dense, error)
}

type Optimizer interface {
	ZeroGrad()
	Step() error
}

type Criterion interface {
	Forward(logits *tensor.Dense, targets []int) (*tensor.Loss, error)
}

// Evaluator computes accuracy metrics of a batch, named by Names.
type Evaluator interface {
	Forward(logits *tensor.Dense, targets []int) []float64
	Names() []string
}

type Loader interface {
	Len() int
	Iter(ctx context.Context) *data.Iterator
}

type Mode int

const (
	Train Mode = iota
	Eval
)

func (m Mode) String() string {
	if m == Train {
		return "train"
	}
	return "valid"
}

// RunContext is what a pass needs to know about the run it belongs to.
type RunContext struct {
	Dist *dist.Context
	// Sink receives telemetry, it is only set on the main process.
	Sink     telemetry.Sink
	Reporter Reporter
	Epochs   int
}

func (rc *RunContext) sink() telemetry.Sink {
	if rc.Sink == nil || !rc.Dist.IsMain {
		return telemetry.Nop{}
	}
	return rc.Sink
}

func (rc *RunContext) reporter() Reporter {
	if rc.Reporter == nil {
		return LogReporter{}
	}
	return rc.Reporter
}

// Pass binds the collaborators of one pass, Optimizer is only used by Train.
type Pass struct {
	Model     Model
	Criterion Criterion
	Evaluator Evaluator
	Optimizer Optimizer
	Loader    Loader
}

const lossName = "loss"

// RunEpoch runs one pass over p.Loader and returns the global average of the
// first evaluator metric (top-1 accuracy). Every process of the group must
// call it with the same mode, in the same order.
func RunEpoch(ctx context.Context, rc *RunContext, mode Mode, p Pass, epoch int) (float64, error) {
	if mode == Train && p.Optimizer == nil {
		return 0, errors.New("training pass without optimizer")
	}
	p.Model.SetTraining(mode == Train)
	names := append([]string{lossName}, p.Evaluator.Names()...)
	tracker := metrics.NewTracker(names...)
	sink := rc.sink()
	rep := rc.reporter()
	n := p.Loader.Len()
	rep.Begin(mode, epoch, n)
	it := p.Loader.Iter(ctx)
	defer it.Close()
	for idx := 0; ; idx++ {
		b, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrapf(err, "%s batch %d", mode, idx)
		}
		if err := step(mode, p, b, tracker, names); err != nil {
			return 0, errors.Wrapf(err, "%s epoch %d batch %d", mode, epoch, idx)
		}
		rep.Batch(batchHeader(epoch, rc.Epochs, idx, n), tracker)
		globalStep := epoch*n + idx
		for _, name := range names {
			tag := fmt.Sprintf("%s / %s (batch)", mode, name)
			if err := sink.AddScalar(tag, tracker.Get(name).Value(), globalStep); err != nil {
				return 0, err
			}
		}
	}
	rep.End()
	if err := tracker.SynchronizeBetweenProcesses(ctx, rc.Dist.Collective); err != nil {
		return 0, errors.Wrapf(err, "synchronize %s metrics of epoch %d", mode, epoch)
	}
	if err := tracker.Summarize(epochHeader(epoch, rc.Epochs)); err != nil {
		return 0, err
	}
	for _, name := range names {
		tag := fmt.Sprintf("%s / %s (epoch)", mode, name)
		if err := sink.AddScalar(tag, tracker.Get(name).GlobalAverage(), epoch); err != nil {
			return 0, err
		}
	}
	if err := telemetry.Flush(sink); err != nil {
		return 0, err
	}
	if len(names) < 2 {
		return 0, nil
	}
	return tracker.Get(names[1]).GlobalAverage(), nil
}

func step(mode Mode, p Pass, b *data.Batch, tracker *metrics.Tracker, names []string) error {
	if mode == Train {
		p.Optimizer.ZeroGrad()
	}
	logits, err := p.Model.Forward(b.Inputs)
	if err != nil {
		return err
	}
	loss, err := p.Criterion.Forward(logits, b.Targets)
	if err != nil {
		return err
	}
	accs := p.Evaluator.Forward(logits, b.Targets)
	if mode == Train {
		if err := loss.Backward(); err != nil {
			return err
		}
		if err := p.Optimizer.Step(); err != nil {
			return err
		}
	}
	tracker.Update(lossName, loss.Value())
	for i, acc := range accs {
		tracker.Update(names[i+1], acc)
	}
	return nil
}

func epochHeader(epoch, epochs int) string {
	w := len(fmt.Sprint(epochs))
	return fmt.Sprintf("Epoch[%*d/%d]", w, epoch+1, epochs)
}

func batchHeader(epoch, epochs, idx, n int) string {
	w := len(fmt.Sprint(n))
	return fmt.Sprintf("%s - batch[%*d/%d]", epochHeader(epoch, epochs), w, idx+1, n)
}

// Package trainer drives a training run: epochs of training and validation,
// learning rate scheduling, checkpointing and resumption.
package trainer

import (
	"context"
	"io"

	"github.com/frostml/frost/srcs/go/frost/checkpoint"
	"github.com/frostml/frost/srcs/go/frost/data"
	"github.com/frostml/frost/srcs/go/frost/engine"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/utils"
	"github.com/pkg/errors"
)

// Stateful is implemented by collaborators that are checkpointed.
type Stateful interface {
	StateDict() ([]byte, error)
	LoadStateDict([]byte) error
}

type Optimizer interface {
	engine.Optimizer
	Stateful
}

type Scheduler interface {
	// Step advances the schedule by one epoch.
	Step()
	// StepTo moves the schedule to the given epoch.
	StepTo(epoch int)
	LR() float64
	Stateful
}

type Loader interface {
	engine.Loader
	data.EpochSetter
}

// Components are the collaborators of a run.
type Components struct {
	// Model runs the forward passes, it may be a replica wrapper of Module.
	Model     engine.Model
	Module    Stateful
	Optimizer Optimizer
	Scheduler Scheduler
	Criterion engine.Criterion
	Evaluator engine.Evaluator
	Train     Loader
	Valid     Loader
}

// bestScore is the best validation accuracy seen by this process.
type bestScore struct {
	value float64
}

// update records score and reports whether it is a strict improvement.
func (b *bestScore) update(score float64) bool {
	if b.value < score {
		b.value = score
		return true
	}
	return false
}

type Trainer struct {
	cfg        Config
	rc         *engine.RunContext
	c          *Components
	ckpt       *checkpoint.Manager
	best       bestScore
	startEpoch int
	closers    []io.Closer
}

// New creates the trainer and creates the save dir, it does not resume.
func New(cfg Config, rc *engine.RunContext, c *Components) (*Trainer, error) {
	ckpt, err := checkpoint.NewManager(cfg.SaveDir, rc.Dist.IsMain)
	if err != nil {
		return nil, err
	}
	rc.Epochs = cfg.Epochs
	return &Trainer{
		cfg:        cfg,
		rc:         rc,
		c:          c,
		ckpt:       ckpt,
		startEpoch: cfg.StartEpoch,
	}, nil
}

// Close releases the telemetry sinks of the run.
func (t *Trainer) Close() error {
	err := closeAll(t.closers)
	t.closers = nil
	return err
}

func (t *Trainer) StartEpoch() int {
	return t.startEpoch
}

// Checkpoints returns the checkpoint manager of this process.
func (t *Trainer) Checkpoints() *checkpoint.Manager {
	return t.ckpt
}

// Resume loads the model state of a checkpoint. The optimizer and scheduler
// states are only restored when the checkpoint also has the epoch, in which
// case training continues at the next epoch. The schedule is then moved to
// the start epoch.
func (t *Trainer) Resume(path string) error {
	rec, err := checkpoint.Load(path)
	if err != nil {
		return errors.Wrap(err, "resume")
	}
	if err := t.c.Module.LoadStateDict(rec.Model()); err != nil {
		return errors.Wrapf(err, "resume model from %s", path)
	}
	if rec.Resumable() {
		if err := t.c.Optimizer.LoadStateDict(rec.Optimizer()); err != nil {
			return errors.Wrapf(err, "resume optimizer from %s", path)
		}
		if err := t.c.Scheduler.LoadStateDict(rec.Scheduler()); err != nil {
			return errors.Wrapf(err, "resume scheduler from %s", path)
		}
		t.startEpoch = rec.Epoch() + 1
		log.Infof("resumed from %s at epoch %d", path, t.startEpoch)
	} else {
		if partial := rec.Present() &^ checkpoint.Model; partial != 0 {
			log.Warnf("%s has %s but not all of epoch|optimizer|scheduler, only the model is restored", path, partial)
		}
		log.Infof("restored model from %s, starting at epoch %d", path, t.startEpoch)
	}
	t.c.Scheduler.StepTo(t.startEpoch)
	return nil
}

func (t *Trainer) record(epoch int) (*checkpoint.Record, error) {
	model, err := t.c.Module.StateDict()
	if err != nil {
		return nil, err
	}
	opt, err := t.c.Optimizer.StateDict()
	if err != nil {
		return nil, err
	}
	sched, err := t.c.Scheduler.StateDict()
	if err != nil {
		return nil, err
	}
	return checkpoint.NewRecord(epoch, model, opt, sched), nil
}

// Run trains from the start epoch to the configured number of epochs.
func (t *Trainer) Run(ctx context.Context) error {
	train := engine.Pass{
		Model:     t.c.Model,
		Criterion: t.c.Criterion,
		Evaluator: t.c.Evaluator,
		Optimizer: t.c.Optimizer,
		Loader:    t.c.Train,
	}
	valid := train
	valid.Optimizer = nil
	valid.Loader = t.c.Valid
	for epoch := t.startEpoch; epoch < t.cfg.Epochs; epoch++ {
		t.c.Train.SetEpoch(epoch)
		lr := t.c.Scheduler.LR()
		var score float64
		d, err := utils.Measure(func() error {
			if _, err := engine.RunEpoch(ctx, t.rc, engine.Train, train, epoch); err != nil {
				return err
			}
			var err error
			score, err = engine.RunEpoch(ctx, t.rc, engine.Eval, valid, epoch)
			return err
		})
		if err != nil {
			return err
		}
		log.Debugf("epoch %d took %s, lr = %g", epoch+1, d, lr)
		t.c.Scheduler.Step()
		rec, err := t.record(epoch)
		if err != nil {
			return errors.Wrapf(err, "checkpoint of epoch %d", epoch)
		}
		if err := t.ckpt.SaveCurrent(rec); err != nil {
			return err
		}
		if t.best.update(score) {
			log.Infof("new best validation accuracy %.4f at epoch %d", score, epoch+1)
			if err := t.ckpt.SaveBest(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

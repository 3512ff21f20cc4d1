package trainer

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/frostml/frost/srcs/go/frost/collective"
	"github.com/frostml/frost/srcs/go/frost/data"
	"github.com/frostml/frost/srcs/go/frost/dist"
	"github.com/frostml/frost/srcs/go/frost/engine"
	"github.com/frostml/frost/srcs/go/frost/nn"
	"github.com/frostml/frost/srcs/go/frost/telemetry"
	"github.com/frostml/frost/srcs/go/log"
	"github.com/frostml/frost/srcs/go/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Build creates the reference pipeline for an IDX dataset under cfg.Data:
// a single layer classifier trained with AdamW and a step decay schedule.
// When cfg.Resume is set, the returned trainer has resumed from it.
func Build(ctx context.Context, cfg Config, dc *dist.Context) (*Trainer, error) {
	dev, err := dist.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	dev = dc.Bind(dev)
	if dev.Kind == dist.CUDA {
		log.Warnf("%s is not supported by this build, using cpu", dev)
	}
	log.Debugf("pin memory: %t", cfg.PinMemory)

	trainSet, validSet, err := data.LoadIDXSplits(cfg.Data)
	if err != nil {
		return nil, err
	}
	c, err := newComponents(ctx, cfg, dc, trainSet, validSet)
	if err != nil {
		return nil, err
	}
	sink, closers, err := newSink(cfg, dc)
	if err != nil {
		return nil, err
	}
	rc := &engine.RunContext{Dist: dc, Sink: sink}
	if cfg.Progress && dc.IsMain {
		rc.Reporter = engine.NewProgressReporter(os.Stderr)
	}
	t, err := New(cfg, rc, c)
	if err != nil {
		closeAll(closers)
		return nil, err
	}
	t.closers = closers
	if len(cfg.Resume) > 0 {
		if err := t.Resume(cfg.Resume); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

// runSeed returns cfg.Seed, or a time based seed agreed on by all ranks so
// that distributed samplers still partition the same permutation.
func runSeed(ctx context.Context, cfg Config, dc *dist.Context) (int64, error) {
	if cfg.Seed != nil {
		return *cfg.Seed, nil
	}
	// float64 carries 53 bits exactly
	seed := time.Now().UnixNano() & (1<<53 - 1)
	if dc.IsDistributed {
		xs := []float64{float64(seed)}
		if err := collective.Broadcast(ctx, dc.Collective, "trainer::seed", xs); err != nil {
			return 0, errors.Wrap(err, "broadcast seed")
		}
		seed = int64(xs[0])
	}
	log.Infof("no seed given, using %d", seed)
	return seed, nil
}

func newComponents(ctx context.Context, cfg Config, dc *dist.Context, trainSet, validSet data.Dataset) (*Components, error) {
	seed, err := runSeed(ctx, cfg, dc)
	if err != nil {
		return nil, err
	}
	var trainSampler, validSampler data.Sampler
	if dc.IsDistributed {
		trainSampler = data.NewDistributed(trainSet.Len(), dc.Rank, dc.WorldSize, true, seed)
		validSampler = data.NewDistributed(validSet.Len(), dc.Rank, dc.WorldSize, false, seed)
	} else {
		trainSampler = data.NewRandom(trainSet.Len(), seed)
		validSampler = data.NewSequential(validSet.Len())
	}
	trainTransform, err := data.TrainTransform(data.MNISTMean, data.MNISTStd)
	if err != nil {
		return nil, err
	}
	validTransform, err := data.ValidTransform(data.MNISTMean, data.MNISTStd)
	if err != nil {
		return nil, err
	}
	opts := data.LoaderOptions{
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		DropLast:  true,
		Seed:      seed + int64(dc.Rank),
	}
	opts.Transform = trainTransform
	train, err := data.NewLoader(trainSet, trainSampler, opts)
	if err != nil {
		return nil, err
	}
	opts.Transform = validTransform
	valid, err := data.NewLoader(validSet, validSampler, opts)
	if err != nil {
		return nil, err
	}
	log.Infof("%d training and %d validation batches per epoch", train.Len(), valid.Len())

	slp := nn.NewSLP(trainSet.SampleShape().Size(), cfg.NumClasses, seed)
	var model engine.Model = slp
	if dc.IsDistributed {
		ddp, err := nn.NewDistributedDataParallel(ctx, slp, dc.Collective)
		if err != nil {
			return nil, err
		}
		model = ddp
	}
	opt := nn.NewAdamW(slp.Parameters(), cfg.LR)
	return &Components{
		Model:     model,
		Module:    slp,
		Optimizer: opt,
		Scheduler: nn.NewStepLR(opt, cfg.LR, cfg.StepSize, cfg.Gamma),
		Criterion: nn.CrossEntropy{},
		Evaluator: nn.NewAccuracy(1, 5),
		Train:     train,
		Valid:     valid,
	}, nil
}

// newSink creates the telemetry sinks of the main process.
func newSink(cfg Config, dc *dist.Context) (telemetry.Sink, []io.Closer, error) {
	if !dc.IsMain {
		return nil, nil, nil
	}
	var sinks telemetry.Multi
	var closers []io.Closer
	if len(cfg.TensorboardDir) > 0 {
		w, err := telemetry.NewEventWriter(cfg.TensorboardDir)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("writing events to %s", w.Path())
		sinks = append(sinks, w)
	}
	if cfg.MonitorPort > 0 {
		reg := prometheus.NewRegistry()
		s, err := telemetry.NewPrometheusSink(reg)
		if err != nil {
			sinks.Close()
			return nil, nil, err
		}
		srv, err := telemetry.StartServer(cfg.MonitorPort, reg)
		if err != nil {
			sinks.Close()
			return nil, nil, err
		}
		log.Infof("serving metrics on %s", srv.Addr())
		sinks = append(sinks, s)
		closers = append(closers, closerFunc(srv.Stop))
	}
	if len(sinks) == 0 {
		return nil, nil, nil
	}
	closers = append(closers, sinks)
	return sinks, closers, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return utils.MergeErrors(errs, "close")
}

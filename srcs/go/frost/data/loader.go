package data

import (
	"context"
	"io"
	"math/rand"

	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/pkg/errors"
)

// Batch is a mini batch, Inputs has a leading batch dimension.
type Batch struct {
	Inputs  *tensor.Dense
	Targets []int
}

type LoaderOptions struct {
	BatchSize int
	// Workers is the number of goroutines preparing batches, 0 prepares
	// them on the calling goroutine.
	Workers   int
	DropLast  bool
	Transform Transform
	Seed      int64
}

// Loader groups the indices of a sampler into batches.
type Loader struct {
	ds      Dataset
	sampler Sampler
	opts    LoaderOptions
	epoch   int
}

func NewLoader(ds Dataset, sampler Sampler, opts LoaderOptions) (*Loader, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.Errorf("invalid batch size %d", opts.BatchSize)
	}
	if opts.Workers < 0 {
		opts.Workers = 0
	}
	return &Loader{ds: ds, sampler: sampler, opts: opts}, nil
}

// Len is the number of batches per epoch.
func (l *Loader) Len() int {
	n := l.sampler.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

func (l *Loader) Sampler() Sampler {
	return l.sampler
}

// SetEpoch reseeds the sampler and the random transforms.
func (l *Loader) SetEpoch(epoch int) {
	l.epoch = epoch
	if s, ok := l.sampler.(EpochSetter); ok {
		s.SetEpoch(epoch)
	}
}

func (l *Loader) split(idx []int) [][]int {
	var batches [][]int
	bs := l.opts.BatchSize
	for i := 0; i < len(idx); i += bs {
		j := i + bs
		if j > len(idx) {
			if l.opts.DropLast {
				break
			}
			j = len(idx)
		}
		batches = append(batches, idx[i:j])
	}
	return batches
}

func (l *Loader) collate(i int, indices []int) (*Batch, error) {
	shape := l.ds.SampleShape()
	inputs := tensor.New(tensor.NewShape(append([]int{len(indices)}, shape.Dims()...)...))
	targets := make([]int, len(indices))
	rng := rand.New(rand.NewSource(l.opts.Seed ^ int64(l.epoch)<<32 ^ int64(i)))
	for j, k := range indices {
		s, err := l.ds.Get(k)
		if err != nil {
			return nil, err
		}
		if l.opts.Transform != nil {
			l.opts.Transform.Apply(&s, shape, rng)
		}
		copy(inputs.Row(j), s.Input)
		targets[j] = s.Label
	}
	return &Batch{Inputs: inputs, Targets: targets}, nil
}

// Iter starts an epoch. Batches are delivered in sampler order regardless of
// the number of workers. The iterator must be closed.
func (l *Loader) Iter(ctx context.Context) *Iterator {
	ctx, cancel := context.WithCancel(ctx)
	it := &Iterator{
		l:       l,
		batches: l.split(l.sampler.Indices()),
		ctx:     ctx,
		cancel:  cancel,
	}
	if l.opts.Workers > 0 && len(it.batches) > 0 {
		it.start(l.opts.Workers)
	}
	return it
}

type result struct {
	b   *Batch
	err error
}

type Iterator struct {
	l       *Loader
	batches [][]int
	next    int
	ctx     context.Context
	cancel  context.CancelFunc

	results []chan result
	window  chan struct{}
}

func (it *Iterator) start(workers int) {
	it.results = make([]chan result, len(it.batches))
	for i := range it.results {
		it.results[i] = make(chan result, 1)
	}
	it.window = make(chan struct{}, 2*workers)
	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range it.batches {
			select {
			case it.window <- struct{}{}:
			case <-it.ctx.Done():
				return
			}
			select {
			case jobs <- i:
			case <-it.ctx.Done():
				return
			}
		}
	}()
	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				b, err := it.l.collate(i, it.batches[i])
				it.results[i] <- result{b: b, err: err}
			}
		}()
	}
}

// Next returns the next batch, or io.EOF at the end of the epoch.
func (it *Iterator) Next() (*Batch, error) {
	if it.next >= len(it.batches) {
		return nil, io.EOF
	}
	i := it.next
	it.next++
	if it.results == nil {
		if err := it.ctx.Err(); err != nil {
			return nil, err
		}
		return it.l.collate(i, it.batches[i])
	}
	select {
	case r := <-it.results[i]:
		<-it.window
		return r.b, r.err
	case <-it.ctx.Done():
		return nil, it.ctx.Err()
	}
}

// Close stops the workers.
func (it *Iterator) Close() {
	it.cancel()
}

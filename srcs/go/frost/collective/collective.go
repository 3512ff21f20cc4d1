// Package collective provides the cross-process reductions used during
// training. Every member of a group must issue the same collectives, with the
// same names, in the same order; a name mismatch is reported as an error.
package collective

import (
	"context"
	"fmt"
)

// Collective is a fixed group of processes that reduce vectors together.
type Collective interface {
	Rank() int
	Size() int
	// AllReduce replaces xs with the element-wise sum of xs over all members.
	AllReduce(ctx context.Context, name string, xs []float64) error
	Barrier(ctx context.Context) error
	Close() error
}

// Broadcast replaces xs on every member with the values of rank 0.
func Broadcast(ctx context.Context, c Collective, name string, xs []float64) error {
	if c.Rank() != 0 {
		for i := range xs {
			xs[i] = 0
		}
	}
	return c.AllReduce(ctx, name, xs)
}

// Local is the collective of a single process, every operation is a no-op.
type Local struct{}

func (Local) Rank() int { return 0 }

func (Local) Size() int { return 1 }

func (Local) AllReduce(ctx context.Context, name string, xs []float64) error { return nil }

func (Local) Barrier(ctx context.Context) error { return nil }

func (Local) Close() error { return nil }

func (Local) String() string { return "local" }

const barrierName = "frost::barrier"

type mismatchError struct {
	name, other string
	n, m        int
}

func (e mismatchError) Error() string {
	return fmt.Sprintf("collective mismatch: %q with %d elements vs %q with %d elements", e.name, e.n, e.other, e.m)
}

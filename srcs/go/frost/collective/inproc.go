package collective

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// NewGroup creates n members that reduce through shared memory. Each member
// is meant to be driven by its own goroutine, standing in for a process.
func NewGroup(n int) []Collective {
	g := &group{size: n}
	g.cond = sync.NewCond(&g.Mutex)
	members := make([]Collective, n)
	for i := range members {
		members[i] = &member{g: g, rank: i}
	}
	return members
}

type group struct {
	sync.Mutex
	cond *sync.Cond
	size int

	gen     uint64
	arrived int
	name    string
	contrib [][]float64
	err     error

	result    []float64
	resultErr error
}

type member struct {
	g    *group
	rank int
}

func (m *member) Rank() int { return m.rank }

func (m *member) Size() int { return m.g.size }

func (m *member) AllReduce(ctx context.Context, name string, xs []float64) error {
	g := m.g
	g.Lock()
	defer g.Unlock()
	if g.arrived == 0 {
		g.name = name
		g.contrib = make([][]float64, g.size)
		g.err = nil
	} else if first := g.contrib[g.firstRank()]; g.name != name || len(first) != len(xs) {
		g.err = mismatchError{name: g.name, n: len(first), other: name, m: len(xs)}
	}
	g.contrib[m.rank] = append([]float64{}, xs...)
	g.arrived++
	gen := g.gen
	if g.arrived == g.size {
		g.resultErr = g.err
		if g.err == nil {
			sum := make([]float64, len(xs))
			for _, c := range g.contrib {
				floats.Add(sum, c)
			}
			g.result = sum
		}
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
	} else {
		for gen == g.gen {
			g.cond.Wait()
		}
	}
	if g.resultErr != nil {
		return g.resultErr
	}
	copy(xs, g.result)
	return nil
}

func (g *group) firstRank() int {
	for i, c := range g.contrib {
		if c != nil {
			return i
		}
	}
	return 0
}

func (m *member) Barrier(ctx context.Context) error {
	return m.AllReduce(ctx, barrierName, nil)
}

func (m *member) Close() error { return nil }

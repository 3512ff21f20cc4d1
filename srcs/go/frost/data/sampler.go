package data

import (
	"math/rand"
)

// Sampler yields the dataset indices of one epoch.
type Sampler interface {
	Indices() []int
	Len() int
}

// EpochSetter is implemented by samplers and loaders whose order depends on the epoch.
type EpochSetter interface {
	SetEpoch(epoch int)
}

type Sequential struct {
	n int
}

func NewSequential(n int) *Sequential {
	return &Sequential{n: n}
}

func (s *Sequential) Len() int { return s.n }

func (s *Sequential) Indices() []int {
	idx := make([]int, s.n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// Random draws a permutation that is a function of (seed, epoch), so a
// resumed run visits samples in the same order as an uninterrupted one.
type Random struct {
	n     int
	seed  int64
	epoch int
}

func NewRandom(n int, seed int64) *Random {
	return &Random{n: n, seed: seed}
}

func (s *Random) SetEpoch(epoch int) { s.epoch = epoch }

func (s *Random) Len() int { return s.n }

func (s *Random) Indices() []int {
	return permutation(s.n, s.seed, s.epoch)
}

func permutation(n int, seed int64, epoch int) []int {
	return rand.New(rand.NewSource(seed + int64(epoch))).Perm(n)
}

// Distributed restricts a process to its shard of the dataset. Indices are
// padded by wrapping around so every rank gets ceil(n / size) samples, then
// rank takes every size-th index starting at rank.
type Distributed struct {
	n       int
	rank    int
	size    int
	shuffle bool
	seed    int64
	epoch   int
}

func NewDistributed(n, rank, size int, shuffle bool, seed int64) *Distributed {
	return &Distributed{n: n, rank: rank, size: size, shuffle: shuffle, seed: seed}
}

func (s *Distributed) SetEpoch(epoch int) { s.epoch = epoch }

func (s *Distributed) Len() int {
	return (s.n + s.size - 1) / s.size
}

func (s *Distributed) Indices() []int {
	var idx []int
	if s.shuffle {
		idx = permutation(s.n, s.seed, s.epoch)
	} else {
		idx = NewSequential(s.n).Indices()
	}
	total := s.Len() * s.size
	for i := 0; len(idx) < total; i++ {
		idx = append(idx, idx[i])
	}
	shard := make([]int, 0, s.Len())
	for i := s.rank; i < total; i += s.size {
		shard = append(shard, idx[i])
	}
	return shard
}

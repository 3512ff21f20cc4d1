// Package nn provides a small set of reference training collaborators: a
// softmax linear classifier, a data-parallel wrapper, cross-entropy, top-k
// accuracy, AdamW and a step learning rate schedule.
package nn

import (
	"github.com/frostml/frost/srcs/go/frost/tensor"
)

// Param is a trainable parameter with its accumulated gradient.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

func newParam(name string, n int) *Param {
	return &Param{
		Name:  name,
		Value: make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// Module is a model whose parameters are exposed to optimizers and to the
// data-parallel wrapper.
type Module interface {
	SetTraining(bool)
	Training() bool
	Forward(x *tensor.Dense) (*tensor.Dense, error)
	Parameters() []*Param
	StateDict() ([]byte, error)
	LoadStateDict([]byte) error
}

func countParams(ps []*Param) int {
	var n int
	for _, p := range ps {
		n += len(p.Value)
	}
	return n
}

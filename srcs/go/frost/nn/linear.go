package nn

import (
	"math"
	"math/rand"

	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// SLP is a single layer perceptron: logits = flatten(x) * w + b.
type SLP struct {
	inputSize int
	classes   int
	weight    *Param // (inputSize, classes)
	bias      *Param // (classes)
	training  bool
}

// NewSLP creates a classifier with weights drawn from U(-1/sqrt(in), 1/sqrt(in)).
func NewSLP(inputSize, classes int, seed int64) *SLP {
	s := &SLP{
		inputSize: inputSize,
		classes:   classes,
		weight:    newParam("weight", inputSize*classes),
		bias:      newParam("bias", classes),
		training:  true,
	}
	bound := 1 / math.Sqrt(float64(inputSize))
	r := rand.New(rand.NewSource(seed))
	for _, p := range s.Parameters() {
		for i := range p.Value {
			p.Value[i] = (2*r.Float64() - 1) * bound
		}
	}
	return s
}

func (s *SLP) SetTraining(training bool) {
	s.training = training
}

func (s *SLP) Training() bool {
	return s.training
}

func (s *SLP) Parameters() []*Param {
	return []*Param{s.weight, s.bias}
}

func (s *SLP) Forward(x *tensor.Dense) (*tensor.Dense, error) {
	if x.Shape().Rank() == 0 || x.Shape().Size() != x.Ldm()*s.inputSize {
		return nil, errors.Errorf("SLP with %d inputs can't take %s", s.inputSize, x.Info())
	}
	n := x.Ldm()
	x = x.Reshape(tensor.NewShape(n, s.inputSize))
	w := tensor.FromData(tensor.NewShape(s.inputSize, s.classes), s.weight.Value)
	y := tensor.Matmul(x, w)
	tensor.AddBias(y, tensor.FromData(tensor.NewShape(s.classes), s.bias.Value))
	if s.training {
		y.OnBackward(func(grad []float64) error {
			s.accumulateGrad(x, grad)
			return nil
		})
	}
	return y, nil
}

// accumulateGrad adds dL/dw = x^T * grad and dL/db = sum of grad rows.
func (s *SLP) accumulateGrad(x *tensor.Dense, grad []float64) {
	for i := 0; i < x.Ldm(); i++ {
		g := grad[i*s.classes : (i+1)*s.classes]
		for k, xk := range x.Row(i) {
			if xk != 0 {
				floats.AddScaled(s.weight.Grad[k*s.classes:(k+1)*s.classes], xk, g)
			}
		}
		floats.Add(s.bias.Grad, g)
	}
}

func (s *SLP) StateDict() ([]byte, error) {
	st := NewState()
	for _, p := range s.Parameters() {
		st.Put(p.Name, p.Value...)
	}
	return st.Marshal(), nil
}

func (s *SLP) LoadStateDict(b []byte) error {
	st, err := UnmarshalState(b)
	if err != nil {
		return err
	}
	for _, p := range s.Parameters() {
		if err := st.CopyTo(p.Name, p.Value); err != nil {
			return errors.Wrap(err, "load SLP")
		}
	}
	return nil
}

package data

import (
	"math/rand"

	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/pkg/errors"
)

// Transform modifies a sample of the given shape in place. Random transforms
// draw from rng only, so a batch is reproducible from its seed.
type Transform interface {
	Apply(s *Sample, shape tensor.Shape, rng *rand.Rand)
}

type Compose []Transform

func (c Compose) Apply(s *Sample, shape tensor.Shape, rng *rand.Rand) {
	for _, t := range c {
		t.Apply(s, shape, rng)
	}
}

// RandomHorizontalFlip mirrors the last dimension with probability P.
type RandomHorizontalFlip struct {
	P float64
}

func (f RandomHorizontalFlip) Apply(s *Sample, shape tensor.Shape, rng *rand.Rand) {
	if rng.Float64() >= f.P || shape.Rank() == 0 {
		return
	}
	dims := shape.Dims()
	w := dims[len(dims)-1]
	for off := 0; off+w <= len(s.Input); off += w {
		row := s.Input[off : off+w]
		for i, j := 0, w-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}

// Normalize maps x to (x - mean) / std per channel. Inputs of rank 3 are
// (C, H, W), any other input is a single channel.
type Normalize struct {
	mean []float64
	std  []float64
}

func NewNormalize(mean, std []float64) (*Normalize, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, errors.Errorf("normalize: %d means for %d stds", len(mean), len(std))
	}
	for _, s := range std {
		if s == 0 {
			return nil, errors.New("normalize: zero std")
		}
	}
	return &Normalize{mean: mean, std: std}, nil
}

func (n *Normalize) Apply(s *Sample, shape tensor.Shape, _ *rand.Rand) {
	channels := 1
	if shape.Rank() == 3 {
		channels = shape.Dims()[0]
	}
	plane := len(s.Input) / channels
	for c := 0; c < channels; c++ {
		m, sd := n.mean[c%len(n.mean)], n.std[c%len(n.std)]
		xs := s.Input[c*plane : (c+1)*plane]
		for i, x := range xs {
			xs[i] = (x - m) / sd
		}
	}
}

// MNIST statistics of pixels scaled to [0, 1].
var (
	MNISTMean = []float64{0.1307}
	MNISTStd  = []float64{0.3081}
)

// TrainTransform augments and normalizes training samples.
func TrainTransform(mean, std []float64) (Transform, error) {
	norm, err := NewNormalize(mean, std)
	if err != nil {
		return nil, err
	}
	return Compose{RandomHorizontalFlip{P: 0.5}, norm}, nil
}

// ValidTransform only normalizes.
func ValidTransform(mean, std []float64) (Transform, error) {
	return NewNormalize(mean, std)
}

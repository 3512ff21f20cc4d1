package nn

import (
	"math"

	"github.com/frostml/frost/srcs/go/frost/tensor"
	"github.com/pkg/errors"
)

// CrossEntropy is the mean negative log-likelihood of softmax(logits).
type CrossEntropy struct{}

func (CrossEntropy) Forward(logits *tensor.Dense, targets []int) (*tensor.Loss, error) {
	if logits.Shape().Rank() != 2 || logits.Ldm() != len(targets) {
		return nil, errors.Errorf("cross entropy: %s logits for %d targets", logits.Info(), len(targets))
	}
	n := len(targets)
	if n == 0 {
		return tensor.NewLoss(0, nil), nil
	}
	k := logits.Shape().Dims()[1]
	p := tensor.SoftmaxRows(logits)
	var sum float64
	for i, t := range targets {
		if t < 0 || t >= k {
			return nil, errors.Errorf("cross entropy: target %d out of range [0, %d)", t, k)
		}
		sum -= math.Log(math.Max(p.Row(i)[t], 1e-300))
	}
	loss := sum / float64(n)
	if !logits.RequiresGrad() {
		return tensor.NewLoss(loss, nil), nil
	}
	return tensor.NewLoss(loss, func() error {
		// dL/dlogits = (softmax - onehot) / n
		grad := append([]float64{}, p.Data()...)
		for i, t := range targets {
			grad[i*k+t] -= 1
		}
		for i := range grad {
			grad[i] /= float64(n)
		}
		return logits.Backward(grad)
	}), nil
}

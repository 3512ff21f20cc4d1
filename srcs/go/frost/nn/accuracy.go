package nn

import (
	"fmt"

	"github.com/frostml/frost/srcs/go/frost/tensor"
)

// Accuracy computes the top-k accuracies of a batch as fractions in [0, 1].
// A target counts for top-k when fewer than k classes score strictly higher.
type Accuracy struct {
	TopK []int
}

func NewAccuracy(topk ...int) *Accuracy {
	return &Accuracy{TopK: topk}
}

func (a *Accuracy) Forward(logits *tensor.Dense, targets []int) []float64 {
	accs := make([]float64, len(a.TopK))
	if len(targets) == 0 {
		return accs
	}
	for i, t := range targets {
		r := tensor.RankOf(logits.Row(i), t)
		for j, k := range a.TopK {
			if r < k {
				accs[j]++
			}
		}
	}
	for j := range accs {
		accs[j] /= float64(len(targets))
	}
	return accs
}

// Names returns acc<k> for every k.
func (a *Accuracy) Names() []string {
	names := make([]string, len(a.TopK))
	for i, k := range a.TopK {
		names[i] = fmt.Sprintf("acc%d", k)
	}
	return names
}

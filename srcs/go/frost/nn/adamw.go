package nn

import (
	"math"

	"github.com/pkg/errors"
)

// AdamW is Adam with decoupled weight decay.
type AdamW struct {
	params      []*Param
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	step int
	m    [][]float64
	v    [][]float64
}

func NewAdamW(params []*Param, lr float64) *AdamW {
	o := &AdamW{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: 1e-2,
	}
	for _, p := range params {
		o.m = append(o.m, make([]float64, len(p.Value)))
		o.v = append(o.v, make([]float64, len(p.Value)))
	}
	return o
}

func (o *AdamW) LR() float64 {
	return o.lr
}

func (o *AdamW) SetLR(lr float64) {
	o.lr = lr
}

func (o *AdamW) Steps() int {
	return o.step
}

func (o *AdamW) ZeroGrad() {
	for _, p := range o.params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// Step applies one update. A non-finite gradient fails the step and leaves
// the parameters and optimizer state untouched.
func (o *AdamW) Step() error {
	for _, p := range o.params {
		for _, g := range p.Grad {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				return errors.Errorf("non-finite gradient of %s", p.Name)
			}
		}
	}
	o.step++
	c1 := 1 - math.Pow(o.beta1, float64(o.step))
	c2 := 1 - math.Pow(o.beta2, float64(o.step))
	for i, p := range o.params {
		m, v := o.m[i], o.v[i]
		for j, g := range p.Grad {
			p.Value[j] *= 1 - o.lr*o.weightDecay
			m[j] = o.beta1*m[j] + (1-o.beta1)*g
			v[j] = o.beta2*v[j] + (1-o.beta2)*g*g
			p.Value[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.eps)
		}
	}
	return nil
}

func (o *AdamW) StateDict() ([]byte, error) {
	st := NewState()
	st.Put("lr", o.lr)
	st.Put("step", float64(o.step))
	for i, p := range o.params {
		st.Put(p.Name+".exp_avg", o.m[i]...)
		st.Put(p.Name+".exp_avg_sq", o.v[i]...)
	}
	return st.Marshal(), nil
}

func (o *AdamW) LoadStateDict(b []byte) error {
	st, err := UnmarshalState(b)
	if err != nil {
		return err
	}
	lr, err := st.Scalar("lr")
	if err != nil {
		return errors.Wrap(err, "load AdamW")
	}
	step, err := st.Scalar("step")
	if err != nil {
		return errors.Wrap(err, "load AdamW")
	}
	for i, p := range o.params {
		if err := st.CopyTo(p.Name+".exp_avg", o.m[i]); err != nil {
			return errors.Wrap(err, "load AdamW")
		}
		if err := st.CopyTo(p.Name+".exp_avg_sq", o.v[i]); err != nil {
			return errors.Wrap(err, "load AdamW")
		}
	}
	o.lr, o.step = lr, int(step)
	return nil
}

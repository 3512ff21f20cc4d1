package nn

import (
	"math"

	"github.com/pkg/errors"
)

// LRSetter is an optimizer whose learning rate is driven by a schedule.
type LRSetter interface {
	SetLR(float64)
}

// StepLR decays the learning rate by gamma every stepSize epochs:
// lr = baseLR * gamma^(epoch / stepSize).
type StepLR struct {
	opt       LRSetter
	baseLR    float64
	stepSize  int
	gamma     float64
	lastEpoch int
}

func NewStepLR(opt LRSetter, baseLR float64, stepSize int, gamma float64) *StepLR {
	s := &StepLR{opt: opt, baseLR: baseLR, stepSize: stepSize, gamma: gamma}
	s.apply()
	return s
}

func (s *StepLR) LR() float64 {
	if s.stepSize <= 0 {
		return s.baseLR
	}
	return s.baseLR * math.Pow(s.gamma, float64(s.lastEpoch/s.stepSize))
}

func (s *StepLR) LastEpoch() int {
	return s.lastEpoch
}

// Step advances the schedule by one epoch.
func (s *StepLR) Step() {
	s.lastEpoch++
	s.apply()
}

// StepTo moves the schedule to epoch.
func (s *StepLR) StepTo(epoch int) {
	s.lastEpoch = epoch
	s.apply()
}

func (s *StepLR) apply() {
	s.opt.SetLR(s.LR())
}

func (s *StepLR) StateDict() ([]byte, error) {
	st := NewState()
	st.Put("base_lr", s.baseLR)
	st.Put("step_size", float64(s.stepSize))
	st.Put("gamma", s.gamma)
	st.Put("last_epoch", float64(s.lastEpoch))
	return st.Marshal(), nil
}

func (s *StepLR) LoadStateDict(b []byte) error {
	st, err := UnmarshalState(b)
	if err != nil {
		return err
	}
	var vals [4]float64
	for i, name := range []string{"base_lr", "step_size", "gamma", "last_epoch"} {
		if vals[i], err = st.Scalar(name); err != nil {
			return errors.Wrap(err, "load StepLR")
		}
	}
	s.baseLR, s.stepSize, s.gamma, s.lastEpoch = vals[0], int(vals[1]), vals[2], int(vals[3])
	s.apply()
	return nil
}

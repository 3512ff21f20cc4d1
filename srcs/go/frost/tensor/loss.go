package tensor

// Loss is a scalar loss of a batch.
type Loss struct {
	value    float64
	backward func() error
}

// NewLoss creates a loss, backward may be nil when no gradient is required.
func NewLoss(value float64, backward func() error) *Loss {
	return &Loss{value: value, backward: backward}
}

func (l *Loss) Value() float64 {
	return l.value
}

// Backward accumulates the gradients of the loss into the parameters that produced it.
func (l *Loss) Backward() error {
	if l.backward == nil {
		return nil
	}
	return l.backward()
}

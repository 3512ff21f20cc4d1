// Package tensor provides the dense float64 tensors exchanged between the
// data pipeline and the reference model.
package tensor

import (
	"bytes"
	"fmt"

	"github.com/frostml/frost/srcs/go/utils/assert"
)

type Shape struct {
	dims []int
}

func NewShape(dims ...int) Shape {
	return Shape{dims: append([]int{}, dims...)}
}

func (s Shape) Size() int {
	d := 1
	for _, dim := range s.dims {
		d *= dim
	}
	return d
}

func (s Shape) Rank() int {
	return len(s.dims)
}

func (s Shape) Dims() []int {
	return append([]int{}, s.dims...)
}

func (s Shape) SubShape() Shape {
	return Shape{dims: s.dims[1:]}
}

func (s Shape) Equal(t Shape) bool {
	if len(s.dims) != len(t.dims) {
		return false
	}
	for i, d := range s.dims {
		if t.dims[i] != d {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "(")
	for i, d := range s.dims {
		if i > 0 {
			fmt.Fprintf(b, ",")
		}
		fmt.Fprintf(b, "%d", d)
	}
	fmt.Fprintf(b, ")")
	return b.String()
}

// Dense is a row-major float64 tensor. A tensor produced in training mode
// carries backward hooks that receive the gradient of the loss w.r.t. its data.
type Dense struct {
	shape Shape
	data  []float64
	hooks []func(grad []float64) error
}

func New(shape Shape) *Dense {
	return &Dense{
		shape: shape,
		data:  make([]float64, shape.Size()),
	}
}

// FromData wraps data without copying it.
func FromData(shape Shape, data []float64) *Dense {
	assert.True(shape.Size() == len(data))
	return &Dense{shape: shape, data: data}
}

// Ldm returns the leading dimension
func (t *Dense) Ldm() int {
	assert.True(len(t.shape.dims) > 0)
	return t.shape.dims[0]
}

func (t *Dense) Shape() Shape {
	return t.shape
}

func (t *Dense) Data() []float64 {
	return t.data
}

func (t *Dense) Info() string {
	return fmt.Sprintf("f64%s", t.shape)
}

// Row returns the i-th sub-tensor along the leading dimension as a slice.
func (t *Dense) Row(i int) []float64 {
	m := t.shape.SubShape().Size()
	return t.data[m*i : m*(i+1)]
}

func (t *Dense) Slice(i, j int) *Dense {
	subShape := t.shape.SubShape()
	shape := Shape{dims: append([]int{j - i}, subShape.dims...)}
	m := subShape.Size()
	return &Dense{
		shape: shape,
		data:  t.data[m*i : m*j],
	}
}

func (t *Dense) Reshape(shape Shape) *Dense {
	assert.True(shape.Size() == t.shape.Size())
	return &Dense{
		shape: shape,
		data:  t.data,
		hooks: t.hooks,
	}
}

// OnBackward appends a hook, hooks run in registration order.
func (t *Dense) OnBackward(f func(grad []float64) error) {
	t.hooks = append(t.hooks, f)
}

// RequiresGrad reports whether a gradient flowing into t reaches any parameter.
func (t *Dense) RequiresGrad() bool {
	return len(t.hooks) > 0
}

// Backward propagates grad, which has the shape of t, through the hooks.
func (t *Dense) Backward(grad []float64) error {
	assert.True(len(grad) == len(t.data))
	for _, f := range t.hooks {
		if err := f(grad); err != nil {
			return err
		}
	}
	return nil
}

package tensor

import (
	"math"

	"github.com/frostml/frost/srcs/go/utils/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matmul computes x (m, k) * y (k, n).
func Matmul(x, y *Dense) *Dense {
	xdims := x.shape.Dims()
	ydims := y.shape.Dims()
	assert.True(len(xdims) == 2)
	assert.True(len(ydims) == 2)
	m, k := xdims[0], xdims[1]
	n := ydims[1]
	assert.True(k == ydims[0])
	z := New(NewShape(m, n))
	if m == 0 || n == 0 || k == 0 {
		return z
	}
	zm := mat.NewDense(m, n, z.data)
	zm.Mul(mat.NewDense(m, k, x.data), mat.NewDense(k, n, y.data))
	return z
}

// AddBias adds y (k) to every row of x (n, k) in place.
func AddBias(x, y *Dense) {
	xdims := x.shape.Dims()
	assert.True(len(xdims) == 2)
	assert.True(y.shape.Size() == xdims[1])
	for i := 0; i < xdims[0]; i++ {
		floats.Add(x.Row(i), y.data)
	}
}

// SoftmaxRows returns the row-wise softmax of x (n, k).
func SoftmaxRows(x *Dense) *Dense {
	assert.True(x.shape.Rank() == 2)
	z := New(x.shape)
	for i := 0; i < x.Ldm(); i++ {
		row := z.Row(i)
		copy(row, x.Row(i))
		if len(row) == 0 {
			continue
		}
		floats.AddConst(-floats.Max(row), row)
		for j, v := range row {
			row[j] = expClamped(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return z
}

// RankOf counts the entries of xs strictly greater than xs[i].
func RankOf(xs []float64, i int) int {
	var r int
	for _, x := range xs {
		if x > xs[i] {
			r++
		}
	}
	return r
}

// Argmax returns the index of the largest value of each row of x (n, k).
func Argmax(x *Dense) []int {
	assert.True(x.shape.Rank() == 2)
	idx := make([]int, x.Ldm())
	for i := range idx {
		idx[i] = floats.MaxIdx(x.Row(i))
	}
	return idx
}

func expClamped(x float64) float64 {
	if x < -700 {
		return 0
	}
	return math.Exp(x)
}

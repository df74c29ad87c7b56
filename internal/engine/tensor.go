package engine

import (
	"fmt"

	"github.com/hailam/chessnet/internal/graph"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape graph.Shape
	Data  []float32
}

// NewTensor allocates a zero tensor.
func NewTensor(shape graph.Shape) *Tensor {
	return &Tensor{Shape: shape.Clone(), Data: make([]float32, shape.Elems())}
}

// FromSlice wraps data, which must hold exactly shape.Elems() values.
func FromSlice(shape graph.Shape, data []float32) (*Tensor, error) {
	if len(data) != shape.Elems() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Tensor{Shape: shape.Clone(), Data: data}, nil
}

// At4 returns the element (n, c, h, w) of a rank 4 tensor.
func (t *Tensor) At4(n, c, h, w int) float32 {
	s := t.Shape
	return t.Data[((n*s[1]+c)*s[2]+h)*s[3]+w]
}

// Row returns the features of sample n.
func (t *Tensor) Row(n int) []float32 {
	per := t.Shape.PerSample()
	return t.Data[n*per : (n+1)*per]
}

// Min returns the smallest element.
func (t *Tensor) Min() float32 {
	m := t.Data[0]
	for _, v := range t.Data[1:] {
		m = min(m, v)
	}
	return m
}

// Max returns the largest element.
func (t *Tensor) Max() float32 {
	m := t.Data[0]
	for _, v := range t.Data[1:] {
		m = max(m, v)
	}
	return m
}

// Argmax returns the index of the largest feature of sample n.
func (t *Tensor) Argmax(n int) int {
	row := t.Row(n)
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

package broadcast

import (
	"fmt"

	"github.com/san-kum/upperatm/internal/kernel"
)

// Array is a dense row-major n-dimensional array. A nil Shape is a scalar.
type Array struct {
	Shape []int
	Data  []float64
}

func Scalar(v float64) Array {
	return Array{Data: []float64{v}}
}

// Vector builds a one-dimensional array from vs.
func Vector(vs ...float64) Array {
	data := make([]float64, len(vs))
	copy(data, vs)
	return Array{Shape: []int{len(vs)}, Data: data}
}

func New(shape []int, data []float64) (Array, error) {
	a := Array{Shape: append([]int(nil), shape...), Data: data}
	if err := a.check("array"); err != nil {
		return Array{}, err
	}
	return a, nil
}

// Full returns an array of the given shape filled with v.
func Full(shape []int, v float64) Array {
	a := Array{Shape: append([]int(nil), shape...)}
	a.Data = make([]float64, a.Size())
	for i := range a.Data {
		a.Data[i] = v
	}
	return a
}

func (a Array) Ndim() int { return len(a.Shape) }

func (a Array) IsScalar() bool { return len(a.Shape) == 0 }

func (a Array) Size() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// Reshape returns a view with a new shape of the same size.
func (a Array) Reshape(shape ...int) (Array, error) {
	b := Array{Shape: append([]int(nil), shape...), Data: a.Data}
	if b.Size() != a.Size() {
		return Array{}, &kernel.InvalidParameterError{
			Param:    "shape",
			Expected: fmt.Sprintf("size %d", a.Size()),
			Actual:   fmt.Sprintf("%s (size %d)", kernel.FormatShape(shape), b.Size()),
		}
	}
	return b, nil
}

func (a Array) check(name string) error {
	for _, d := range a.Shape {
		if d < 0 {
			return &kernel.InvalidParameterError{Param: name, Expected: "non-negative dimensions", Actual: kernel.FormatShape(a.Shape)}
		}
	}
	if len(a.Data) != a.Size() {
		return &kernel.InvalidParameterError{
			Param:    name,
			Expected: fmt.Sprintf("%d values for shape %s", a.Size(), kernel.FormatShape(a.Shape)),
			Actual:   fmt.Sprintf("%d values", len(a.Data)),
		}
	}
	return nil
}

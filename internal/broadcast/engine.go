package broadcast

import (
	"fmt"

	"github.com/san-kum/upperatm/internal/kernel"
)

// Input is one named field of a batch. Width is 1 for scalar fields and N
// for a fixed-length vector field, whose trailing axis must have length N.
type Input struct {
	Name  string
	Value Array
	Width int
}

// Plan is the expanded batch: one row per coordinate of Shape in row-major
// order, each row concatenating the inputs in order.
type Plan struct {
	Shape []int
	Rows  [][]float64
}

func (p *Plan) Len() int { return len(p.Rows) }

// Requests wraps the rows without copying.
func (p *Plan) Requests() []kernel.Request {
	reqs := make([]kernel.Request, len(p.Rows))
	for i, r := range p.Rows {
		reqs[i] = kernel.Request{Inputs: r}
	}
	return reqs
}

// Engine expands inputs. Vectorized fills rows with a chunked parallel loop,
// otherwise rows are filled one index at a time; both give the same plan.
type Engine struct {
	Vectorized bool
	// MaxPoints bounds the expansion; zero means unbounded.
	MaxPoints int
}

const parallelChunk = 4096

type operand struct {
	name    string
	shape   []int
	data    []float64
	width   int
	strides []int
}

// Shape validates inputs and returns the broadcast point shape.
func (e Engine) Shape(inputs []Input) ([]int, error) {
	ops, err := operands(inputs)
	if err != nil {
		return nil, err
	}
	return broadcastShape(ops)
}

func (e Engine) Expand(inputs []Input) (*Plan, error) {
	ops, err := operands(inputs)
	if err != nil {
		return nil, err
	}
	shape, err := broadcastShape(ops)
	if err != nil {
		return nil, err
	}

	total := 1
	for _, d := range shape {
		total *= d
	}
	if e.MaxPoints > 0 && total > e.MaxPoints {
		return nil, &kernel.InvalidParameterError{
			Param:    "batch size",
			Expected: fmt.Sprintf("at most %d points", e.MaxPoints),
			Actual:   fmt.Sprintf("%d points %s", total, kernel.FormatShape(shape)),
		}
	}

	width := 0
	for i := range ops {
		ops[i].strides = alignedStrides(ops[i].shape, shape)
		width += ops[i].width
	}

	backing := make([]float64, total*width)
	rows := make([][]float64, total)
	fill := func(start, end int) {
		coord := make([]int, len(shape))
		for p := start; p < end; p++ {
			unravel(p, shape, coord)
			row := backing[p*width : (p+1)*width : (p+1)*width]
			col := 0
			for _, op := range ops {
				off := 0
				for ax, c := range coord {
					off += c * op.strides[ax]
				}
				copy(row[col:col+op.width], op.data[off*op.width:(off+1)*op.width])
				col += op.width
			}
			rows[p] = row
		}
	}

	if e.Vectorized {
		kernel.ParallelFor(total, parallelChunk, fill)
	} else {
		fill(0, total)
	}

	return &Plan{Shape: shape, Rows: rows}, nil
}

// operands checks each input and strips the vector axis.
func operands(inputs []Input) ([]operand, error) {
	ops := make([]operand, len(inputs))
	for i, in := range inputs {
		if err := in.Value.check(in.Name); err != nil {
			return nil, err
		}
		w := in.Width
		if w <= 0 {
			w = 1
		}
		shape := in.Value.Shape
		if w > 1 {
			if len(shape) == 0 {
				return nil, kernel.ArityError(in.Name, w, 1)
			}
			if last := shape[len(shape)-1]; last != w {
				return nil, kernel.ArityError(in.Name, w, last)
			}
			shape = shape[:len(shape)-1]
		}
		if len(shape) == 0 {
			shape = []int{1}
		}
		ops[i] = operand{name: in.Name, shape: shape, data: in.Value.Data, width: w}
	}
	return ops, nil
}

// broadcastShape applies the equal-or-one rule from the trailing axis and
// stops at the first conflict.
func broadcastShape(ops []operand) ([]int, error) {
	ndim := 0
	for _, op := range ops {
		if len(op.shape) > ndim {
			ndim = len(op.shape)
		}
	}
	if ndim == 0 {
		return []int{1}, nil
	}

	shape := make([]int, ndim)
	owner := make([]int, ndim)
	for ax := range shape {
		shape[ax] = 1
		owner[ax] = -1
	}

	for i, op := range ops {
		lead := ndim - len(op.shape)
		for j, d := range op.shape {
			ax := lead + j
			switch {
			case d == shape[ax] || d == 1:
			case shape[ax] == 1:
				shape[ax] = d
				owner[ax] = i
			default:
				prev := ops[owner[ax]]
				return nil, &kernel.ShapeBroadcastError{
					A: prev.name, ShapeA: prev.shape,
					B: op.name, ShapeB: op.shape,
				}
			}
		}
	}
	return shape, nil
}

// alignedStrides returns row-major strides of shape placed against out,
// with zero stride on replicated axes.
func alignedStrides(shape, out []int) []int {
	strides := make([]int, len(out))
	lead := len(out) - len(shape)
	step := 1
	for j := len(shape) - 1; j >= 0; j-- {
		if shape[j] != 1 {
			strides[lead+j] = step
		}
		step *= shape[j]
	}
	return strides
}

func unravel(p int, shape, coord []int) {
	for ax := len(shape) - 1; ax >= 0; ax-- {
		coord[ax] = p % shape[ax]
		p /= shape[ax]
	}
}

// Unravel converts a flat row index to its coordinate in shape.
func Unravel(p int, shape []int) []int {
	coord := make([]int, len(shape))
	unravel(p, shape, coord)
	return coord
}

package native

import (
	"fmt"
	"math"

	"github.com/san-kum/upperatm/internal/kernel"
)

// frame holds the packed arguments of one call. Every input entry is
// converted into the buffer matching its slot kind and the binding
// precision; the other buffers keep stale values at that index.
type frame struct {
	i32 []int32
	f32 []float32
	f64 []float64
	o32 []float32
	o64 []float64
}

func newFrame(d kernel.Descriptor) frame {
	in, out := d.InputWidth(), d.OutputWidth()
	f := frame{i32: make([]int32, in)}
	if d.Precision == kernel.Double {
		f.f64 = make([]float64, in)
		f.o64 = make([]float64, out)
	} else {
		f.f32 = make([]float32, in)
		f.o32 = make([]float32, out)
	}
	return f
}

// pack is the only place request values are narrowed to native types.
func pack(d kernel.Descriptor, req kernel.Request, f *frame) error {
	if len(req.Inputs) != d.InputWidth() {
		return &kernel.InvalidParameterError{
			Param:    d.Name + " inputs",
			Expected: fmt.Sprintf("%d values", d.InputWidth()),
			Actual:   fmt.Sprintf("%d values", len(req.Inputs)),
		}
	}

	i := 0
	for _, s := range d.Inputs {
		for k := 0; k < s.Len; k++ {
			v := req.Inputs[i]
			switch s.Kind {
			case kernel.Int:
				if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
					return &kernel.InvalidParameterError{
						Param:    s.Name,
						Expected: "an integer within int32 range",
						Actual:   fmt.Sprint(v),
					}
				}
				f.i32[i] = int32(v)
			default:
				if d.Precision == kernel.Double {
					f.f64[i] = v
				} else {
					f.f32[i] = float32(v)
				}
			}
			i++
		}
	}

	// Outputs are cleared so a kernel that skips a slot cannot leak the
	// previous call's value.
	for j := range f.o32 {
		f.o32[j] = 0
	}
	for j := range f.o64 {
		f.o64[j] = 0
	}
	return nil
}

func unpack(d kernel.Descriptor, f *frame) kernel.Vector {
	out := make(kernel.Vector, d.OutputWidth())
	if d.Precision == kernel.Double {
		copy(out, f.o64)
		return out
	}
	for i, v := range f.o32 {
		out[i] = float64(v)
	}
	return out
}

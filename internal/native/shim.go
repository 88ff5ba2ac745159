package native

import (
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/san-kum/upperatm/internal/kernel"
)

// callFunc invokes the resolved entry point on a packed frame.
type callFunc func(f *frame)

// register wraps purego.RegisterFunc, which panics on signatures the
// platform ABI cannot express.
func register(fptr any, fn uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register native function: %v", r)
		}
	}()
	purego.RegisterFunc(fptr, fn)
	return nil
}

// msiscalc(day, utsec, z, lat, lon, f107a, f107, ap7[7], *t_local, dn10[10], *t_exo)
func msis2Shim(fn uintptr, p kernel.Precision) (callFunc, error) {
	if p == kernel.Double {
		var c func(day, utsec, z, lat, lon, f107a, f107 float64, ap7, tLocal, dn10, tExo *float64)
		if err := register(&c, fn); err != nil {
			return nil, err
		}
		return func(f *frame) {
			in, out := f.f64, f.o64
			c(in[0], in[1], in[2], in[3], in[4], in[5], in[6], &in[7], &out[0], &out[1], &out[11])
		}, nil
	}

	var c func(day, utsec, z, lat, lon, f107a, f107 float32, ap7, tLocal, dn10, tExo *float32)
	if err := register(&c, fn); err != nil {
		return nil, err
	}
	return func(f *frame) {
		in, out := f.f32, f.o32
		c(in[0], in[1], in[2], in[3], in[4], in[5], in[6], &in[7], &out[0], &out[1], &out[11])
	}, nil
}

// gtd7_eval(iyd, sec, alt, glat, glong, stl, f107a, f107, ap[7], mass, d[9], t[2])
func msis00Shim(fn uintptr, _ kernel.Precision) (callFunc, error) {
	var c func(iyd int32, sec, alt, glat, glong, stl, f107a, f107 float32, ap *float32, mass int32, d, t *float32)
	if err := register(&c, fn); err != nil {
		return nil, err
	}
	return func(f *frame) {
		in, out := f.f32, f.o32
		c(f.i32[0], in[1], in[2], in[3], in[4], in[5], in[6], in[7], &in[8], f.i32[15], &out[0], &out[9])
	}, nil
}

// hwmXX_eval(iyd, sec, alt, glat, glon, stl, f107a, f107, ap[2], w[2])
func hwmShim(fn uintptr, _ kernel.Precision) (callFunc, error) {
	var c func(iyd int32, sec, alt, glat, glon, stl, f107a, f107 float32, ap, w *float32)
	if err := register(&c, fn); err != nil {
		return nil, err
	}
	return func(f *frame) {
		in, out := f.f32, f.o32
		c(f.i32[0], in[1], in[2], in[3], in[4], in[5], in[6], in[7], &in[8], &out[0])
	}, nil
}

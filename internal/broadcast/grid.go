package broadcast

// Linspace returns n evenly spaced values from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}

// Arange returns values from start up to but excluding stop.
func Arange(start, stop, step float64) []float64 {
	if step == 0 || (stop-start)/step <= 0 {
		return nil
	}
	var out []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if (step > 0 && v >= stop) || (step < 0 && v <= stop) {
			break
		}
		out = append(out, v)
	}
	return out
}

// Axis places values along one axis of an ndim-dimensional array so that
// several axes broadcast into a full grid.
//
//	lat := broadcast.Axis(lats, 0, 3)
//	lon := broadcast.Axis(lons, 1, 3)
//	alt := broadcast.Axis(alts, 2, 3)
func Axis(values []float64, axis, ndim int) Array {
	shape := make([]int, ndim)
	for i := range shape {
		shape[i] = 1
	}
	shape[axis] = len(values)
	data := make([]float64, len(values))
	copy(data, values)
	return Array{Shape: shape, Data: data}
}

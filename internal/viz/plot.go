package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

const (
	plotHeight = 12
	plotWidth  = 72
)

// Profile plots ys against sample order, typically ascending altitude.
// Non-finite samples are dropped. Log plots base-10 values and drops
// non-positive samples. Returns "" when nothing is left to draw.
func Profile(ys []float64, caption string, log bool) string {
	data := make([]float64, 0, len(ys))
	for _, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		if log {
			if y <= 0 {
				continue
			}
			y = math.Log10(y)
		}
		data = append(data, y)
	}
	if len(data) == 0 {
		return ""
	}

	width := plotWidth
	if len(data) < width {
		width = 0
	}
	return asciigraph.Plot(data,
		asciigraph.Height(plotHeight),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

package viz

import (
	"math"
	"strings"
	"testing"
)

func TestProfile(t *testing.T) {
	tests := []struct {
		name  string
		ys    []float64
		log   bool
		empty bool
	}{
		{"linear", []float64{200, 400, 800, 950}, false, false},
		{"log densities", []float64{1e19, 1e16, 1e13}, true, false},
		{"all non-finite", []float64{math.NaN(), math.Inf(1)}, false, true},
		{"log drops non-positive", []float64{0, -1}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Profile(tt.ys, "caption", tt.log)
			if (got == "") != tt.empty {
				t.Errorf("Profile() empty = %v, want %v", got == "", tt.empty)
			}
			if !tt.empty && !strings.Contains(got, "caption") {
				t.Errorf("Profile() missing caption:\n%s", got)
			}
		})
	}
}

func TestReport(t *testing.T) {
	out := Report("msis2", []Field{
		{Label: "t_local", Value: 190.25, Unit: "K"},
		{Label: "He", Value: 1.5e13, Unit: "m^-3"},
		{Label: "NO", Value: math.NaN()},
	})
	for _, want := range []string{"msis2", "t_local", "190.2500", "1.5000e+13", "NaN"} {
		if !strings.Contains(out, want) {
			t.Errorf("Report() missing %q:\n%s", want, out)
		}
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		points, failed int
		want           string
	}{
		{5, 0, "5 points ok"},
		{5, 1, "1 of 5 points failed"},
		{2, 2, "all 2 points failed"},
	}
	for _, tt := range tests {
		if got := Status(tt.points, tt.failed); !strings.Contains(got, tt.want) {
			t.Errorf("Status(%d, %d) = %q, want %q", tt.points, tt.failed, got, tt.want)
		}
	}
}

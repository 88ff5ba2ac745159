package broadcast

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/upperatm/internal/kernel"
)

func TestExpand_ScalarAndVector(t *testing.T) {
	plan, err := Engine{}.Expand([]Input{
		{Name: "alt_km", Value: Vector(100, 200, 300)},
		{Name: "lat_deg", Value: Scalar(35)},
	})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}

	want := [][]float64{{100, 35}, {200, 35}, {300, 35}}
	if diff := cmp.Diff(want, plan.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, plan.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_AllScalars(t *testing.T) {
	plan, err := Engine{}.Expand([]Input{
		{Name: "a", Value: Scalar(1)},
		{Name: "b", Value: Scalar(2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Len() != 1 || len(plan.Shape) != 1 || plan.Shape[0] != 1 {
		t.Errorf("plan = %v %v, want a single (1,) point", plan.Shape, plan.Rows)
	}
}

func TestExpand_RowMajorOrder(t *testing.T) {
	col, _ := New([]int{2, 1}, []float64{10, 20})
	plan, err := Engine{}.Expand([]Input{
		{Name: "lat", Value: col},
		{Name: "lon", Value: Vector(1, 2, 3)},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := [][]float64{
		{10, 1}, {10, 2}, {10, 3},
		{20, 1}, {20, 2}, {20, 3},
	}
	if diff := cmp.Diff(want, plan.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, plan.Shape); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_Incompatible(t *testing.T) {
	tests := []struct {
		name   string
		inputs []Input
		a, b   string
	}{
		{
			name: "3 vs 4",
			inputs: []Input{
				{Name: "alt_km", Value: Vector(1, 2, 3)},
				{Name: "lat_deg", Value: Vector(1, 2, 3, 4)},
			},
			a: "alt_km", b: "lat_deg",
		},
		{
			name: "conflict after compatible",
			inputs: []Input{
				{Name: "day", Value: Scalar(1)},
				{Name: "lon_deg", Value: Full([]int{2, 3}, 0)},
				{Name: "alt_km", Value: Vector(1, 2)},
			},
			a: "lon_deg", b: "alt_km",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Engine{}.Expand(tt.inputs)
			var sbe *kernel.ShapeBroadcastError
			if !errors.As(err, &sbe) {
				t.Fatalf("Expand() error = %v, want ShapeBroadcastError", err)
			}
			if sbe.A != tt.a || sbe.B != tt.b {
				t.Errorf("conflict = %s vs %s, want %s vs %s", sbe.A, sbe.B, tt.a, tt.b)
			}
		})
	}
}

func TestExpand_VectorField(t *testing.T) {
	ap7 := Vector(1, 2, 3, 4, 5, 6, 7)
	plan, err := Engine{}.Expand([]Input{
		{Name: "alt_km", Value: Vector(100, 200)},
		{Name: "ap7", Value: ap7, Width: 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{
		{100, 1, 2, 3, 4, 5, 6, 7},
		{200, 1, 2, 3, 4, 5, 6, 7},
	}
	if diff := cmp.Diff(want, plan.Rows); diff != "" {
		t.Errorf("shared vector mismatch (-want +got):\n%s", diff)
	}

	perPoint, _ := New([]int{2, 2}, []float64{0, 20, 5, 30})
	plan, err = Engine{}.Expand([]Input{
		{Name: "alt_km", Value: Vector(100, 200)},
		{Name: "ap2", Value: perPoint, Width: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	want = [][]float64{{100, 0, 20}, {200, 5, 30}}
	if diff := cmp.Diff(want, plan.Rows); diff != "" {
		t.Errorf("per-point vector mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_VectorArity(t *testing.T) {
	_, err := Engine{}.Expand([]Input{
		{Name: "alt_km", Value: Scalar(100)},
		{Name: "ap7", Value: Vector(4, 4, 4, 4, 4, 4), Width: 7},
	})
	var ipe *kernel.InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("Expand() error = %v, want InvalidParameterError", err)
	}
	if ipe.Param != "ap7" || ipe.Expected != "length 7" || ipe.Actual != "length 6" {
		t.Errorf("error = %+v", ipe)
	}
}

func TestExpand_MaxPoints(t *testing.T) {
	e := Engine{MaxPoints: 10}
	_, err := e.Expand([]Input{
		{Name: "lat", Value: Axis(Linspace(-90, 90, 4), 0, 2)},
		{Name: "lon", Value: Axis(Linspace(0, 360, 4), 1, 2)},
	})
	if !errors.Is(err, kernel.ErrInvalidParameter) {
		t.Errorf("Expand() error = %v, want ErrInvalidParameter", err)
	}
}

func TestExpand_VectorizedMatchesSerial(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := func(n int) []float64 {
		vs := make([]float64, n)
		for i := range vs {
			vs[i] = rng.Float64()
		}
		return vs
	}

	inputs := []Input{
		{Name: "lat", Value: Axis(random(30), 0, 3)},
		{Name: "lon", Value: Axis(random(40), 1, 3)},
		{Name: "alt", Value: Axis(random(12), 2, 3)},
		{Name: "ap2", Value: Vector(0, 20), Width: 2},
	}

	serial, err := Engine{}.Expand(inputs)
	if err != nil {
		t.Fatal(err)
	}
	vectorized, err := Engine{Vectorized: true}.Expand(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if serial.Len() != 30*40*12 {
		t.Fatalf("Len() = %d", serial.Len())
	}
	if diff := cmp.Diff(serial, vectorized); diff != "" {
		t.Errorf("vectorized plan differs (-serial +vectorized):\n%s", diff)
	}
}

func TestUnravel(t *testing.T) {
	if diff := cmp.Diff([]int{1, 2}, Unravel(5, []int{2, 3})); diff != "" {
		t.Errorf("Unravel mismatch:\n%s", diff)
	}
}

func TestGridHelpers(t *testing.T) {
	if diff := cmp.Diff([]float64{0, 0.25, 0.5, 0.75, 1}, Linspace(0, 1, 5)); diff != "" {
		t.Errorf("Linspace mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]float64{100, 150, 200}, Arange(100, 250, 50)); diff != "" {
		t.Errorf("Arange mismatch:\n%s", diff)
	}
	if Arange(0, 1, 0) != nil {
		t.Error("Arange with zero step should be empty")
	}

	a := Axis([]float64{1, 2, 3}, 1, 3)
	if diff := cmp.Diff([]int{1, 3, 1}, a.Shape); diff != "" {
		t.Errorf("Axis shape mismatch:\n%s", diff)
	}
}

func TestArray(t *testing.T) {
	if _, err := New([]int{2, 2}, []float64{1, 2, 3}); !errors.Is(err, kernel.ErrInvalidParameter) {
		t.Errorf("New() with short data error = %v", err)
	}
	a, _ := New([]int{2, 3}, make([]float64, 6))
	if _, err := a.Reshape(3, 2); err != nil {
		t.Errorf("Reshape(3, 2) error: %v", err)
	}
	if _, err := a.Reshape(4, 2); err == nil {
		t.Error("Reshape(4, 2) should fail")
	}
	if !Scalar(1).IsScalar() || Scalar(1).Size() != 1 {
		t.Error("Scalar should have size 1 and no shape")
	}
}

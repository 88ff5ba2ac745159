package atmos

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/upperatm/internal/broadcast"
	"github.com/san-kum/upperatm/internal/config"
	"github.com/san-kum/upperatm/internal/kernel"
	"github.com/san-kum/upperatm/internal/native"
)

// DefaultAp2 is (unused, current 3-hour ap).
var DefaultAp2 = []float64{0, 20}

type WindPoint struct {
	// IYD is YYYYDDD or DDD.
	IYD      int
	Sec      float64
	AltKm    float64
	GLatDeg  float64
	GLonDeg  float64
	STLHours float64
	F107A    float64
	F107     float64
	// Ap2 defaults to DefaultAp2 when nil.
	Ap2 []float64
}

type WindResult struct {
	AltKm        float64
	MeridionalMS float64
	ZonalMS      float64
}

type WindBatch struct {
	IYD      broadcast.Array
	Sec      broadcast.Array
	AltKm    broadcast.Array
	GLatDeg  broadcast.Array
	GLonDeg  broadcast.Array
	STLHours broadcast.Array
	F107A    broadcast.Array
	F107     broadcast.Array
	Ap2      broadcast.Array
}

// WindBatchResult holds one entry per point. Failed points carry NaN
// values and a StatusFailed entry with the cause.
type WindBatchResult struct {
	Shape   []int
	Results []WindResult
	Status  []kernel.PointStatus
}

func (r *WindBatchResult) Len() int { return len(r.Results) }

func (r *WindBatchResult) Failed() []int {
	var idx []int
	for i, s := range r.Status {
		if s.State == kernel.StatusFailed {
			idx = append(idx, i)
		}
	}
	return idx
}

// Components returns meridional and zonal winds in point order. Failed
// points hold NaN.
func (r *WindBatchResult) Components() (meridional, zonal []float64) {
	meridional = make([]float64, len(r.Results))
	zonal = make([]float64, len(r.Results))
	for i, res := range r.Results {
		if !r.Status[i].OK() {
			meridional[i], zonal[i] = math.NaN(), math.NaN()
			continue
		}
		meridional[i], zonal[i] = res.MeridionalMS, res.ZonalMS
	}
	return meridional, zonal
}

// WindModel computes horizontal neutral winds with HWM14 or HWM93.
type WindModel struct {
	*engine
}

// NewWindModel binds the wind model named by cfg.WindModel unless
// WithVersion overrides it. HWM kernels are single precision only.
func NewWindModel(cfg *config.Config, opts ...Option) (*WindModel, error) {
	o := buildOptions(opts)
	version := o.version
	if version == "" {
		version = cfg.WindModel
	}

	var v native.Variant
	switch version {
	case native.HWM14.Name:
		v = native.HWM14
	case native.HWM93.Name:
		v = native.HWM93
	default:
		return nil, unsupportedVersion("wind", version, "hwm14", "hwm93")
	}

	e, err := newEngine(cfg, v, kernel.Single, o)
	if err != nil {
		return nil, err
	}
	return &WindModel{engine: e}, nil
}

func (m *WindModel) CalculatePoint(ctx context.Context, p WindPoint) (WindResult, error) {
	ap2, err := vectorArg("ap2", p.Ap2, DefaultAp2)
	if err != nil {
		return WindResult{}, err
	}

	res, err := m.CalculateBatch(ctx, WindBatch{
		IYD:      broadcast.Scalar(float64(p.IYD)),
		Sec:      broadcast.Scalar(p.Sec),
		AltKm:    broadcast.Scalar(p.AltKm),
		GLatDeg:  broadcast.Scalar(p.GLatDeg),
		GLonDeg:  broadcast.Scalar(p.GLonDeg),
		STLHours: broadcast.Scalar(p.STLHours),
		F107A:    broadcast.Scalar(p.F107A),
		F107:     broadcast.Scalar(p.F107),
		Ap2:      ap2,
	})
	if err != nil {
		return WindResult{}, err
	}
	if st := res.Status[0]; !st.OK() {
		return WindResult{}, st.Err
	}
	return res.Results[0], nil
}

// CalculatePointAt derives IYD, Sec and local solar time from t in UTC and
// the point longitude.
func (m *WindModel) CalculatePointAt(ctx context.Context, t time.Time, p WindPoint) (WindResult, error) {
	u := t.UTC()
	p.IYD = YearDay(u)
	p.Sec = SecondsOfDay(u.Hour(), u.Minute(), float64(u.Second())+float64(u.Nanosecond())/1e9)
	p.STLHours = LocalSolarTime(p.Sec, p.GLonDeg)
	return m.CalculatePoint(ctx, p)
}

func (m *WindModel) CalculateBatch(ctx context.Context, b WindBatch) (*WindBatchResult, error) {
	ap2 := orDefault(b.Ap2, DefaultAp2)

	if err := checkIYD(b.IYD, m.checks); err != nil {
		return nil, err
	}
	err := m.validate([]field{
		{"sec", b.Sec, daySecs},
		{"alt_km", b.AltKm, nonNeg},
		{"glat_deg", b.GLatDeg, latitude},
		{"glon_deg", b.GLonDeg, longitude},
		{"stl_hours", b.STLHours, hours},
		{"f107a", b.F107A, positive},
		{"f107", b.F107, positive},
		{"ap2", ap2, nonNeg},
	})
	if err != nil {
		return nil, err
	}

	plan, batch, err := m.run(ctx, []broadcast.Input{
		{Name: "iyd", Value: b.IYD},
		{Name: "sec", Value: b.Sec},
		{Name: "alt_km", Value: b.AltKm},
		{Name: "glat_deg", Value: b.GLatDeg},
		{Name: "glon_deg", Value: b.GLonDeg},
		{Name: "stl_hours", Value: b.STLHours},
		{Name: "f107a", Value: b.F107A},
		{Name: "f107", Value: b.F107},
		{Name: "ap2", Value: ap2, Width: 2},
	}, func(row []float64) kernel.Request {
		return kernel.Request{Inputs: row}
	})
	if err != nil {
		return nil, err
	}

	out := &WindBatchResult{
		Shape:   plan.Shape,
		Results: make([]WindResult, batch.Len()),
		Status:  batch.Status,
	}
	nan := math.NaN()
	for i, res := range batch.Results {
		if !batch.Status[i].OK() {
			out.Results[i] = WindResult{AltKm: nan, MeridionalMS: nan, ZonalMS: nan}
			continue
		}
		out.Results[i] = WindResult{
			AltKm:        plan.Rows[i][2],
			MeridionalMS: res.Outputs[0],
			ZonalMS:      res.Outputs[1],
		}
	}
	return out, nil
}

// checkIYD requires whole, non-negative day codes; with range checks the
// day part must be 1..366.
func checkIYD(a broadcast.Array, ranged bool) error {
	for i, v := range a.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
			return &kernel.InvalidParameterError{Param: "iyd", Expected: "a whole YYYYDDD or DDD value", Actual: describe(a, i, v)}
		}
		if ranged {
			if ddd := int64(v) % 1000; ddd < 1 || ddd > 366 {
				return &kernel.InvalidParameterError{
					Param:    "iyd",
					Expected: "day of year in [1, 366]",
					Actual:   fmt.Sprintf("%s (day %d)", describe(a, i, v), ddd),
				}
			}
		}
	}
	return nil
}

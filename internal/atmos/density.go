package atmos

import (
	"context"
	"math"
	"time"

	"github.com/san-kum/upperatm/internal/broadcast"
	"github.com/san-kum/upperatm/internal/config"
	"github.com/san-kum/upperatm/internal/kernel"
	"github.com/san-kum/upperatm/internal/native"
)

// DefaultAp7 is the geomagnetic history used when none is given.
var DefaultAp7 = []float64{4, 4, 4, 4, 4, 4, 4}

// msis00Mass selects every species in gtd7.
const msis00Mass = 48

type DensityPoint struct {
	Day    float64
	UTSec  float64
	AltKm  float64
	LatDeg float64
	LonDeg float64
	F107A  float64
	F107   float64
	// Ap7 defaults to DefaultAp7 when nil.
	Ap7 []float64
}

type TempDensityResult struct {
	AltKm   float64
	TLocalK float64
	TExoK   float64
	// Densities follow Species order.
	Densities []float64
	Species   []string
}

// Density returns the named species density.
func (r TempDensityResult) Density(species string) (float64, bool) {
	for i, s := range r.Species {
		if s == species && i < len(r.Densities) {
			return r.Densities[i], true
		}
	}
	return 0, false
}

// DensityBatch fields broadcast against each other. Ap7 may be unset,
// shape (7,) shared by every point, or (..., 7) per point.
type DensityBatch struct {
	Day    broadcast.Array
	UTSec  broadcast.Array
	AltKm  broadcast.Array
	LatDeg broadcast.Array
	LonDeg broadcast.Array
	F107A  broadcast.Array
	F107   broadcast.Array
	Ap7    broadcast.Array
}

// DensityBatchResult holds one entry per point. Failed points carry NaN
// values and a StatusFailed entry with the cause.
type DensityBatchResult struct {
	Shape   []int
	Results []TempDensityResult
	Status  []kernel.PointStatus
	Species []string
}

func (r *DensityBatchResult) Len() int { return len(r.Results) }

func (r *DensityBatchResult) Failed() []int {
	var idx []int
	for i, s := range r.Status {
		if s.State == kernel.StatusFailed {
			idx = append(idx, i)
		}
	}
	return idx
}

// DensityColumns is the columnar form of a batch. Failed points hold NaN.
type DensityColumns struct {
	AltKm     []float64
	TLocalK   []float64
	TExoK     []float64
	Densities [][]float64
	Species   []string
}

func (r *DensityBatchResult) Columns() DensityColumns {
	n := len(r.Results)
	cols := DensityColumns{
		AltKm:     make([]float64, n),
		TLocalK:   make([]float64, n),
		TExoK:     make([]float64, n),
		Densities: make([][]float64, n),
		Species:   r.Species,
	}
	for i, res := range r.Results {
		if !r.Status[i].OK() {
			res = failedDensity(r.Species)
		}
		cols.AltKm[i] = res.AltKm
		cols.TLocalK[i] = res.TLocalK
		cols.TExoK[i] = res.TExoK
		cols.Densities[i] = res.Densities
	}
	return cols
}

// failedDensity is the result reported for a point that did not compute:
// every value NaN, never zero.
func failedDensity(species []string) TempDensityResult {
	nan := math.NaN()
	d := make([]float64, len(species))
	for i := range d {
		d[i] = nan
	}
	return TempDensityResult{AltKm: nan, TLocalK: nan, TExoK: nan, Densities: d, Species: species}
}

// densityAdapter maps facade rows onto one kernel's argument layout.
type densityAdapter struct {
	request func(row []float64) kernel.Request
	result  func(row []float64, out kernel.Vector) TempDensityResult
}

// Facade rows: day, utsec, alt_km, lat_deg, lon_deg, f107a, f107, ap7[7].
func msis2Adapter(species []string) densityAdapter {
	return densityAdapter{
		request: func(row []float64) kernel.Request {
			return kernel.Request{Inputs: row}
		},
		result: func(row []float64, out kernel.Vector) TempDensityResult {
			return TempDensityResult{
				AltKm:     row[2],
				TLocalK:   out[0],
				TExoK:     out[11],
				Densities: out[1:11:11],
				Species:   species,
			}
		},
	}
}

func msis00Adapter(species []string) densityAdapter {
	return densityAdapter{
		request: func(row []float64) kernel.Request {
			in := make(kernel.Vector, 0, 16)
			in = append(in,
				math.Floor(row[0]),
				row[1],
				row[2],
				row[3],
				row[4],
				LocalSolarTime(row[1], row[4]),
				row[5],
				row[6],
			)
			in = append(in, row[7:14]...)
			in = append(in, msis00Mass)
			return kernel.Request{Inputs: in}
		},
		result: func(row []float64, out kernel.Vector) TempDensityResult {
			return TempDensityResult{
				AltKm:     row[2],
				TLocalK:   out[10],
				TExoK:     out[9],
				Densities: out[0:9:9],
				Species:   species,
			}
		},
	}
}

// TempDensityModel computes neutral temperature and species densities with
// NRLMSIS-2.0 or NRLMSISE-00.
type TempDensityModel struct {
	*engine
	adapter densityAdapter
	species []string
}

// NewTempDensityModel binds the density model named by cfg.DensityModel
// unless WithVersion overrides it.
func NewTempDensityModel(cfg *config.Config, opts ...Option) (*TempDensityModel, error) {
	o := buildOptions(opts)
	version := o.version
	if version == "" {
		version = cfg.DensityModel
	}

	var (
		v       native.Variant
		adapter densityAdapter
	)
	switch version {
	case native.MSIS2.Name:
		v, adapter = native.MSIS2, msis2Adapter(native.MSIS2.Species)
	case native.MSIS00.Name:
		v, adapter = native.MSIS00, msis00Adapter(native.MSIS00.Species)
	case native.MSIS00D.Name:
		v, adapter = native.MSIS00D, msis00Adapter(native.MSIS00D.Species)
	default:
		return nil, unsupportedVersion("density", version, "msis2", "msis00", "msis00d")
	}

	e, err := newEngine(cfg, v, cfg.PrecisionValue(), o)
	if err != nil {
		return nil, err
	}
	return &TempDensityModel{engine: e, adapter: adapter, species: v.Species}, nil
}

// Species lists density labels in output order.
func (m *TempDensityModel) Species() []string { return m.species }

func (m *TempDensityModel) CalculatePoint(ctx context.Context, p DensityPoint) (TempDensityResult, error) {
	ap7, err := vectorArg("ap7", p.Ap7, DefaultAp7)
	if err != nil {
		return TempDensityResult{}, err
	}

	res, err := m.CalculateBatch(ctx, DensityBatch{
		Day:    broadcast.Scalar(p.Day),
		UTSec:  broadcast.Scalar(p.UTSec),
		AltKm:  broadcast.Scalar(p.AltKm),
		LatDeg: broadcast.Scalar(p.LatDeg),
		LonDeg: broadcast.Scalar(p.LonDeg),
		F107A:  broadcast.Scalar(p.F107A),
		F107:   broadcast.Scalar(p.F107),
		Ap7:    ap7,
	})
	if err != nil {
		return TempDensityResult{}, err
	}
	if st := res.Status[0]; !st.OK() {
		return TempDensityResult{}, st.Err
	}
	return res.Results[0], nil
}

// CalculatePointAt takes day and time of day from t in UTC.
func (m *TempDensityModel) CalculatePointAt(ctx context.Context, t time.Time, p DensityPoint) (TempDensityResult, error) {
	u := t.UTC()
	p.Day = DayOfYear(u.Year(), u.Month(), u.Day())
	p.UTSec = SecondsOfDay(u.Hour(), u.Minute(), float64(u.Second())+float64(u.Nanosecond())/1e9)
	return m.CalculatePoint(ctx, p)
}

// CalculateBatch validates every field, broadcasts them and evaluates each
// point. Nothing reaches the native kernel if validation or broadcasting
// fails.
func (m *TempDensityModel) CalculateBatch(ctx context.Context, b DensityBatch) (*DensityBatchResult, error) {
	ap7 := orDefault(b.Ap7, DefaultAp7)

	err := m.validate([]field{
		{"day", b.Day, dayOfYear},
		{"utsec", b.UTSec, daySecs},
		{"alt_km", b.AltKm, nonNeg},
		{"lat_deg", b.LatDeg, latitude},
		{"lon_deg", b.LonDeg, longitude},
		{"f107a", b.F107A, positive},
		{"f107", b.F107, positive},
		{"ap7", ap7, nonNeg},
	})
	if err != nil {
		return nil, err
	}

	plan, batch, err := m.run(ctx, []broadcast.Input{
		{Name: "day", Value: b.Day},
		{Name: "utsec", Value: b.UTSec},
		{Name: "alt_km", Value: b.AltKm},
		{Name: "lat_deg", Value: b.LatDeg},
		{Name: "lon_deg", Value: b.LonDeg},
		{Name: "f107a", Value: b.F107A},
		{Name: "f107", Value: b.F107},
		{Name: "ap7", Value: ap7, Width: 7},
	}, m.adapter.request)
	if err != nil {
		return nil, err
	}

	out := &DensityBatchResult{
		Shape:   plan.Shape,
		Results: make([]TempDensityResult, batch.Len()),
		Status:  batch.Status,
		Species: m.species,
	}
	for i, res := range batch.Results {
		if !batch.Status[i].OK() {
			out.Results[i] = failedDensity(m.species)
			continue
		}
		out.Results[i] = m.adapter.result(plan.Rows[i], res.Outputs)
	}
	return out, nil
}

package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/upperatm/internal/atmos"
	"github.com/san-kum/upperatm/internal/broadcast"
	"github.com/san-kum/upperatm/internal/config"
	"github.com/san-kum/upperatm/internal/logging"
	"github.com/san-kum/upperatm/internal/storage"
	"github.com/san-kum/upperatm/internal/viz"
)

func modelOptions(cmd *cobra.Command) []atmos.Option {
	opts := []atmos.Option{atmos.WithLogger(logging.L())}
	if cmd.Flags().Changed("model") {
		opts = append(opts, atmos.WithVersion(model))
	}
	if noChecks {
		opts = append(opts, atmos.WithoutRangeChecks())
	}
	return opts
}

func parseAt() (time.Time, bool, error) {
	if atTime == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, atTime)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid --at: %w", err)
	}
	return t, true, nil
}

func densityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "density",
		Short: "temperature and densities at one point",
		RunE:  runDensity,
	}
	cmd.Flags().StringVar(&model, "model", "", "msis2, msis00 or msis00d (overrides density_model)")
	cmd.Flags().Float64Var(&day, "day", 1, "day of year")
	cmd.Flags().Float64Var(&utsec, "utsec", 43200, "UT seconds of day")
	cmd.Flags().StringVar(&atTime, "at", "", "RFC 3339 time, replaces --day and --utsec")
	cmd.Flags().Float64Var(&alt, "alt", 100, "altitude km")
	cmd.Flags().Float64Var(&lat, "lat", 35, "geodetic latitude deg")
	cmd.Flags().Float64Var(&lon, "lon", 116, "longitude deg")
	swFlags(cmd)
	return cmd
}

func runDensity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sw, err := spaceWeather(cmd, cfg)
	if err != nil {
		return err
	}
	at, hasAt, err := parseAt()
	if err != nil {
		return err
	}

	m, err := atmos.NewTempDensityModel(cfg, modelOptions(cmd)...)
	if err != nil {
		return err
	}
	defer m.Close()

	p := atmos.DensityPoint{
		Day: day, UTSec: utsec, AltKm: alt, LatDeg: lat, LonDeg: lon,
		F107A: sw.F107A, F107: sw.F107, Ap7: sw.Ap7(),
	}
	var res atmos.TempDensityResult
	if hasAt {
		res, err = m.CalculatePointAt(cmd.Context(), at, p)
	} else {
		res, err = m.CalculatePoint(cmd.Context(), p)
	}
	if err != nil {
		return err
	}

	fields := []viz.Field{
		{Label: "alt", Value: res.AltKm, Unit: "km"},
		{Label: "t_local", Value: res.TLocalK, Unit: "K"},
		{Label: "t_exo", Value: res.TExoK, Unit: "K"},
	}
	for i, s := range res.Species {
		fields = append(fields, viz.Field{Label: s, Value: res.Densities[i], Unit: densityUnit(s)})
	}
	fmt.Println(viz.Report(m.Descriptor().Identity(), fields))
	return nil
}

func densityUnit(species string) string {
	if species == "TotalMass" {
		return "g/cm^3"
	}
	return "m^-3"
}

func windCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wind",
		Short: "meridional and zonal wind at one point",
		RunE:  runWind,
	}
	cmd.Flags().StringVar(&model, "model", "", "hwm14 or hwm93 (overrides wind_model)")
	cmd.Flags().IntVar(&iyd, "iyd", 2023196, "YYYYDDD or DDD")
	cmd.Flags().Float64Var(&utsec, "sec", 45000, "UT seconds of day")
	cmd.Flags().Float64Var(&stl, "stl", -1, "local solar time hours, derived from --sec and --lon when negative")
	cmd.Flags().StringVar(&atTime, "at", "", "RFC 3339 time, replaces --iyd, --sec and --stl")
	cmd.Flags().Float64Var(&alt, "alt", 100, "altitude km")
	cmd.Flags().Float64Var(&lat, "lat", 35, "geodetic latitude deg")
	cmd.Flags().Float64Var(&lon, "lon", 116, "longitude deg")
	swFlags(cmd)
	return cmd
}

func runWind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sw, err := spaceWeather(cmd, cfg)
	if err != nil {
		return err
	}
	at, hasAt, err := parseAt()
	if err != nil {
		return err
	}

	m, err := atmos.NewWindModel(cfg, modelOptions(cmd)...)
	if err != nil {
		return err
	}
	defer m.Close()

	p := atmos.WindPoint{
		IYD: iyd, Sec: utsec, AltKm: alt, GLatDeg: lat, GLonDeg: lon, STLHours: stl,
		F107A: sw.F107A, F107: sw.F107, Ap2: sw.Ap2(),
	}
	if p.STLHours < 0 {
		p.STLHours = atmos.LocalSolarTime(p.Sec, p.GLonDeg)
	}
	var res atmos.WindResult
	if hasAt {
		res, err = m.CalculatePointAt(cmd.Context(), at, p)
	} else {
		res, err = m.CalculatePoint(cmd.Context(), p)
	}
	if err != nil {
		return err
	}

	fmt.Println(viz.Report(m.Descriptor().Identity(), []viz.Field{
		{Label: "alt", Value: res.AltKm, Unit: "km"},
		{Label: "meridional", Value: res.MeridionalMS, Unit: "m/s"},
		{Label: "zonal", Value: res.ZonalMS, Unit: "m/s"},
	}))
	return nil
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "profile [density|wind]",
		Short:     "altitude profile at one location, saved as a run",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"density", "wind"},
		RunE:      runProfile,
	}
	cmd.Flags().StringVar(&model, "model", "", "model variant (overrides config)")
	cmd.Flags().Float64Var(&day, "day", 1, "day of year (density)")
	cmd.Flags().IntVar(&iyd, "iyd", 2023196, "YYYYDDD or DDD (wind)")
	cmd.Flags().Float64Var(&utsec, "utsec", 43200, "UT seconds of day")
	cmd.Flags().Float64Var(&lat, "lat", 35, "geodetic latitude deg")
	cmd.Flags().Float64Var(&lon, "lon", 116, "longitude deg")
	cmd.Flags().Float64Var(&altMin, "alt-min", 0, "lowest altitude km")
	cmd.Flags().Float64Var(&altMax, "alt-max", 500, "highest altitude km")
	cmd.Flags().Float64Var(&altStep, "alt-step", 10, "altitude step km")
	cmd.Flags().StringVar(&species, "species", "O", "species to plot (density)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	swFlags(cmd)
	return cmd
}

func altitudes() ([]float64, error) {
	if altStep <= 0 || altMax < altMin {
		return nil, fmt.Errorf("invalid altitude range %g..%g step %g", altMin, altMax, altStep)
	}
	return broadcast.Arange(altMin, altMax+altStep/2, altStep), nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sw, err := spaceWeather(cmd, cfg)
	if err != nil {
		return err
	}
	alts, err := altitudes()
	if err != nil {
		return err
	}

	var (
		table *storage.Table
		meta  storage.RunMetadata
	)
	start := time.Now()
	if len(args) == 1 && args[0] == "wind" {
		table, meta, err = windProfile(cmd, cfg, sw, alts)
	} else {
		table, meta, err = densityProfile(cmd, cfg, sw, alts)
	}
	if err != nil {
		return err
	}
	meta.Params = map[string]float64{
		"lat_deg": lat, "lon_deg": lon, "utsec": utsec,
		"f107": sw.F107, "f107a": sw.F107A, "ap": sw.Ap,
	}

	fmt.Println(viz.Status(len(table.Rows), meta.Failed), viz.Subtle.Render(time.Since(start).String()))
	return saveRun(cfg, meta, table, "profile complete")
}

func densityProfile(cmd *cobra.Command, cfg *config.Config, sw config.SpaceWeather, alts []float64) (*storage.Table, storage.RunMetadata, error) {
	m, err := atmos.NewTempDensityModel(cfg, modelOptions(cmd)...)
	if err != nil {
		return nil, storage.RunMetadata{}, err
	}
	defer m.Close()

	res, err := m.CalculateBatch(cmd.Context(), atmos.DensityBatch{
		Day:    broadcast.Scalar(day),
		UTSec:  broadcast.Scalar(utsec),
		AltKm:  broadcast.Vector(alts...),
		LatDeg: broadcast.Scalar(lat),
		LonDeg: broadcast.Scalar(lon),
		F107A:  broadcast.Scalar(sw.F107A),
		F107:   broadcast.Scalar(sw.F107),
		Ap7:    broadcast.Vector(sw.Ap7()...),
	})
	if err != nil {
		return nil, storage.RunMetadata{}, err
	}

	cols := res.Columns()
	fmt.Println(viz.Header.Render(m.Descriptor().Identity()))
	fmt.Println(viz.Profile(cols.TLocalK, "t_local K vs altitude", false))
	fmt.Println()

	t := storage.DensityTable(res)
	if col, ok := t.Column(species); ok {
		fmt.Println(viz.Profile(col, fmt.Sprintf("log10 %s vs altitude", species), true))
	} else {
		fmt.Println(viz.Warn.Render(fmt.Sprintf("unknown species %s (have %v)", species, m.Species())))
	}

	return t, storage.RunMetadata{
		Kind:      "density",
		Model:     m.Version(),
		Precision: m.Descriptor().Precision.String(),
		Shape:     res.Shape,
		Failed:    len(res.Failed()),
	}, nil
}

func windProfile(cmd *cobra.Command, cfg *config.Config, sw config.SpaceWeather, alts []float64) (*storage.Table, storage.RunMetadata, error) {
	m, err := atmos.NewWindModel(cfg, modelOptions(cmd)...)
	if err != nil {
		return nil, storage.RunMetadata{}, err
	}
	defer m.Close()

	res, err := m.CalculateBatch(cmd.Context(), atmos.WindBatch{
		IYD:      broadcast.Scalar(float64(iyd)),
		Sec:      broadcast.Scalar(utsec),
		AltKm:    broadcast.Vector(alts...),
		GLatDeg:  broadcast.Scalar(lat),
		GLonDeg:  broadcast.Scalar(lon),
		STLHours: broadcast.Scalar(atmos.LocalSolarTime(utsec, lon)),
		F107A:    broadcast.Scalar(sw.F107A),
		F107:     broadcast.Scalar(sw.F107),
		Ap2:      broadcast.Vector(sw.Ap2()...),
	})
	if err != nil {
		return nil, storage.RunMetadata{}, err
	}

	mer, zon := res.Components()
	fmt.Println(viz.Header.Render(m.Descriptor().Identity()))
	fmt.Println(viz.Profile(mer, "meridional m/s vs altitude", false))
	fmt.Println()
	fmt.Println(viz.Profile(zon, "zonal m/s vs altitude", false))

	return storage.WindTable(res), storage.RunMetadata{
		Kind:      "wind",
		Model:     m.Version(),
		Precision: m.Descriptor().Precision.String(),
		Shape:     res.Shape,
		Failed:    len(res.Failed()),
	}, nil
}

func gridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "latitude by longitude density grid at one altitude, saved as a run",
		RunE:  runGrid,
	}
	cmd.Flags().StringVar(&model, "model", "", "msis2, msis00 or msis00d (overrides density_model)")
	cmd.Flags().Float64Var(&day, "day", 1, "day of year")
	cmd.Flags().Float64Var(&utsec, "utsec", 43200, "UT seconds of day")
	cmd.Flags().Float64Var(&alt, "alt", 400, "altitude km")
	cmd.Flags().IntVar(&latN, "lat-n", 19, "latitude samples over [-90, 90]")
	cmd.Flags().IntVar(&lonN, "lon-n", 37, "longitude samples over [-180, 180]")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	swFlags(cmd)
	return cmd
}

func runGrid(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sw, err := spaceWeather(cmd, cfg)
	if err != nil {
		return err
	}

	m, err := atmos.NewTempDensityModel(cfg, modelOptions(cmd)...)
	if err != nil {
		return err
	}
	defer m.Close()

	start := time.Now()
	res, err := m.CalculateBatch(cmd.Context(), atmos.DensityBatch{
		Day:    broadcast.Scalar(day),
		UTSec:  broadcast.Scalar(utsec),
		AltKm:  broadcast.Scalar(alt),
		LatDeg: broadcast.Axis(broadcast.Linspace(-90, 90, latN), 0, 2),
		LonDeg: broadcast.Axis(broadcast.Linspace(-180, 180, lonN), 1, 2),
		F107A:  broadcast.Scalar(sw.F107A),
		F107:   broadcast.Scalar(sw.F107),
		Ap7:    broadcast.Vector(sw.Ap7()...),
	})
	if err != nil {
		return err
	}

	cols := res.Columns()
	lo, hi := finiteRange(cols.TExoK)
	stats := m.Stats()
	fmt.Println(viz.Report(m.Descriptor().Identity(), []viz.Field{
		{Label: "points", Value: float64(res.Len())},
		{Label: "native calls", Value: float64(stats.NativeCalls)},
		{Label: "cache hits", Value: float64(stats.CacheHits)},
		{Label: "t_exo min", Value: lo, Unit: "K"},
		{Label: "t_exo max", Value: hi, Unit: "K"},
	}))
	fmt.Println(viz.Status(res.Len(), len(res.Failed())), viz.Subtle.Render(time.Since(start).String()))

	return saveRun(cfg, storage.RunMetadata{
		Kind:      "density",
		Model:     m.Version(),
		Precision: m.Descriptor().Precision.String(),
		Shape:     res.Shape,
		Failed:    len(res.Failed()),
		Params: map[string]float64{
			"alt_km": alt, "day": day, "utsec": utsec,
			"f107": sw.F107, "f107a": sw.F107A, "ap": sw.Ap,
		},
	}, storage.DensityTable(res), "grid complete")
}

func finiteRange(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo > hi {
		return math.NaN(), math.NaN()
	}
	return lo, hi
}

func saveRun(cfg *config.Config, meta storage.RunMetadata, t *storage.Table, msg string) error {
	if noSave {
		return nil
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	id, err := st.Save(meta, t)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	logRun(msg, meta, id)
	return nil
}

// Package atmos is the user-facing API for the temperature/density and wind
// models.
//
// Both facades validate inputs, broadcast batch fields to a common shape,
// and evaluate every point through a cached worker pool:
//
//	cfg := config.DefaultConfig()
//	m, err := atmos.NewTempDensityModel(cfg)
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	res, err := m.CalculatePoint(ctx, atmos.DensityPoint{
//		Day: 1, UTSec: 43200, AltKm: 100, LatDeg: 35, LonDeg: 116,
//		F107A: 100, F107: 100,
//	})
//
// Batch fields accept any broadcast.Array. Results come back in row-major
// order of the broadcast shape.
//
// # Thread Safety
//
// Models are safe for concurrent use. Each worker owns its native instance,
// so concurrent batches share the pool without sharing kernel state.
package atmos

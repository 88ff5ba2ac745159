package storage

import (
	"math"

	"github.com/san-kum/upperatm/internal/atmos"
)

// Table is a column-labelled block of float rows as written to results.csv.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, bool) {
	for j, c := range t.Columns {
		if c != name {
			continue
		}
		col := make([]float64, len(t.Rows))
		for i, row := range t.Rows {
			col[i] = row[j]
		}
		return col, true
	}
	return nil, false
}

// DensityTable flattens a density batch into alt_km, t_local_k, t_exo_k and
// one column per species. Failed points are NaN rows.
func DensityTable(r *atmos.DensityBatchResult) *Table {
	cols := r.Columns()
	t := &Table{
		Columns: append([]string{"alt_km", "t_local_k", "t_exo_k"}, cols.Species...),
		Rows:    make([][]float64, r.Len()),
	}
	for i := range t.Rows {
		row := make([]float64, 0, len(t.Columns))
		row = append(row, cols.AltKm[i], cols.TLocalK[i], cols.TExoK[i])
		t.Rows[i] = append(row, cols.Densities[i]...)
	}
	return t
}

// WindTable flattens a wind batch into alt_km, meridional_ms and zonal_ms.
func WindTable(r *atmos.WindBatchResult) *Table {
	mer, zon := r.Components()
	t := &Table{
		Columns: []string{"alt_km", "meridional_ms", "zonal_ms"},
		Rows:    make([][]float64, r.Len()),
	}
	for i, res := range r.Results {
		alt := res.AltKm
		if !r.Status[i].OK() {
			alt = math.NaN()
		}
		t.Rows[i] = []float64{alt, mer[i], zon[i]}
	}
	return t
}

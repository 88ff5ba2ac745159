package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/san-kum/upperatm/internal/atmos"
	"github.com/san-kum/upperatm/internal/kernel"
)

func sampleTable() *Table {
	return &Table{
		Columns: []string{"alt_km", "t_local_k", "He"},
		Rows: [][]float64{
			{100, 190.5, 1.25e13},
			{200, math.NaN(), math.NaN()},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{
		Kind:      "density",
		Model:     "msis2",
		Precision: "single",
		Shape:     []int{2},
		Failed:    1,
		Params:    map[string]float64{"f107": 150},
	}, sampleTable())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := uuid.Parse(runID); err != nil {
		t.Errorf("run id %q is not a UUID: %v", runID, err)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	want := RunMetadata{
		ID:        runID,
		Kind:      "density",
		Model:     "msis2",
		Precision: "single",
		Shape:     []int{2},
		Points:    2,
		Failed:    1,
		Params:    map[string]float64{"f107": 150},
		Columns:   []string{"alt_km", "t_local_k", "He"},
	}
	if diff := cmp.Diff(want, *meta, cmpopts.IgnoreFields(RunMetadata{}, "Timestamp")); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	got, err := st.LoadResults(runID)
	if err != nil {
		t.Fatalf("load results failed: %v", err)
	}
	if diff := cmp.Diff(sampleTable(), got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	he, ok := got.Column("He")
	if !ok || he[0] != 1.25e13 {
		t.Errorf("Column(He) = %v, %v", he, ok)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, _ := st.Save(RunMetadata{Kind: "wind", Model: "hwm14"}, &Table{Columns: []string{"alt_km"}})
	time.Sleep(10 * time.Millisecond)
	second, _ := st.Save(RunMetadata{Kind: "density", Model: "msis00"}, &Table{Columns: []string{"alt_km"}})

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("runs not newest first: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestStoreMissingRun(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Load() error = %v, want ErrRunNotFound", err)
	}
	if _, err := st.LoadResults("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LoadResults() error = %v, want ErrRunNotFound", err)
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Kind: "density", Model: "msis2"}, sampleTable())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, runID); err != nil {
		t.Fatalf("ExportJSON() error: %v", err)
	}

	var doc struct {
		ID   string       `json:"id"`
		Rows [][]*float64 `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if doc.ID != runID || len(doc.Rows) != 2 {
		t.Fatalf("export = %+v", doc)
	}
	if doc.Rows[0][2] == nil || *doc.Rows[0][2] != 1.25e13 {
		t.Errorf("row 0 = %v", doc.Rows[0])
	}
	if doc.Rows[1][1] != nil {
		t.Errorf("NaN cell should export as null, got %v", *doc.Rows[1][1])
	}
}

func TestDensityTable(t *testing.T) {
	species := []string{"He", "O"}
	res := &atmos.DensityBatchResult{
		Shape:   []int{2},
		Species: species,
		Results: []atmos.TempDensityResult{
			{AltKm: 100, TLocalK: 190, TExoK: 900, Densities: []float64{1, 2}, Species: species},
			{},
		},
		Status: []kernel.PointStatus{
			{State: kernel.StatusOK},
			{State: kernel.StatusFailed, Err: kernel.ErrNativeComputation},
		},
	}

	got := DensityTable(res)
	nan := math.NaN()
	want := &Table{
		Columns: []string{"alt_km", "t_local_k", "t_exo_k", "He", "O"},
		Rows: [][]float64{
			{100, 190, 900, 1, 2},
			{nan, nan, nan, nan, nan},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("DensityTable() mismatch (-want +got):\n%s", diff)
	}
}

func TestWindTable(t *testing.T) {
	res := &atmos.WindBatchResult{
		Shape:   []int{2},
		Results: []atmos.WindResult{{AltKm: 250, MeridionalMS: 3, ZonalMS: -7}, {}},
		Status:  []kernel.PointStatus{{State: kernel.StatusCached}, {State: kernel.StatusFailed}},
	}

	got := WindTable(res)
	nan := math.NaN()
	want := &Table{
		Columns: []string{"alt_km", "meridional_ms", "zonal_ms"},
		Rows:    [][]float64{{250, 3, -7}, {nan, nan, nan}},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("WindTable() mismatch (-want +got):\n%s", diff)
	}
}

package kernel

import (
	"fmt"
	"math"
	"strings"
)

type Precision int

const (
	Single Precision = iota
	Double
)

func (p Precision) String() string {
	switch p {
	case Single:
		return "single"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("precision(%d)", int(p))
	}
}

// Bytes is the width of one packed floating value.
func (p Precision) Bytes() int {
	if p == Double {
		return 8
	}
	return 4
}

func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single", "float32", "f32":
		return Single, nil
	case "double", "float64", "f64":
		return Double, nil
	}
	return Single, &InvalidParameterError{Param: "precision", Expected: "single or double", Actual: s}
}

type SlotKind int

const (
	// Float slots are packed at the binding precision.
	Float SlotKind = iota
	// Int slots are packed as a 32-bit C int.
	Int
)

type Slot struct {
	Name string
	Kind SlotKind
	Len  int
}

func Scalar(name string) Slot       { return Slot{Name: name, Kind: Float, Len: 1} }
func Integer(name string) Slot      { return Slot{Name: name, Kind: Int, Len: 1} }
func Array(name string, n int) Slot { return Slot{Name: name, Kind: Float, Len: n} }

func (s Slot) String() string { return fmt.Sprintf("%s[%d]", s.Name, s.Len) }

// Descriptor is the immutable identity of a bound native function.
type Descriptor struct {
	Name      string
	Precision Precision
	Inputs    []Slot
	Outputs   []Slot
}

func (d Descriptor) Identity() string {
	return d.Name + "/" + d.Precision.String()
}

func (d Descriptor) InputWidth() int  { return width(d.Inputs) }
func (d Descriptor) OutputWidth() int { return width(d.Outputs) }

// InputOffset returns the position of the named input in a flattened Request.
func (d Descriptor) InputOffset(name string) (int, bool) {
	return offset(d.Inputs, name)
}

func (d Descriptor) OutputOffset(name string) (int, bool) {
	return offset(d.Outputs, name)
}

// InputNames expands vector slots as name[i].
func (d Descriptor) InputNames() []string {
	names := make([]string, 0, d.InputWidth())
	for _, s := range d.Inputs {
		if s.Len == 1 {
			names = append(names, s.Name)
			continue
		}
		for i := 0; i < s.Len; i++ {
			names = append(names, fmt.Sprintf("%s[%d]", s.Name, i))
		}
	}
	return names
}

func width(slots []Slot) int {
	n := 0
	for _, s := range slots {
		n += s.Len
	}
	return n
}

func offset(slots []Slot, name string) (int, bool) {
	n := 0
	for _, s := range slots {
		if s.Name == name {
			return n, true
		}
		n += s.Len
	}
	return 0, false
}

type Vector []float64

func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Request is one point evaluation; Inputs follow Descriptor.Inputs order.
type Request struct {
	Inputs Vector
}

type Result struct {
	Outputs Vector
	// Suspect marks a result holding at least one non-finite output.
	Suspect bool
}

func (r Result) Clone() Result {
	return Result{Outputs: r.Outputs.Clone(), Suspect: r.Suspect}
}

type State int

const (
	StatusPending State = iota
	StatusOK
	StatusCached
	StatusFailed
)

func (s State) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusOK:
		return "ok"
	case StatusCached:
		return "cached"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type PointStatus struct {
	State State
	Err   error
}

func (p PointStatus) OK() bool {
	return p.State == StatusOK || p.State == StatusCached
}

// Batch keeps Requests, Results and Status index-aligned end to end.
type Batch struct {
	Requests []Request
	Results  []Result
	Status   []PointStatus
}

func NewBatch(reqs []Request) *Batch {
	return &Batch{
		Requests: reqs,
		Results:  make([]Result, len(reqs)),
		Status:   make([]PointStatus, len(reqs)),
	}
}

func (b *Batch) Len() int { return len(b.Requests) }

// Failed returns the indices of slots that did not produce a result.
func (b *Batch) Failed() []int {
	var idx []int
	for i, s := range b.Status {
		if s.State == StatusFailed {
			idx = append(idx, i)
		}
	}
	return idx
}

package native

import (
	"fmt"
	"sort"

	"github.com/san-kum/upperatm/internal/kernel"
)

// Variant describes one native kernel: where it lives, what it is called and
// how its arguments are laid out.
type Variant struct {
	Name    string
	Library string
	Symbols []string
	// DataEnv names an environment variable the kernel reads its coefficient
	// files from, if any.
	DataEnv    string
	Precisions []kernel.Precision
	// Species labels the density outputs for temperature/density kernels.
	Species []string

	layout func(kernel.Precision) (inputs, outputs []kernel.Slot)
	shim   func(fn uintptr, p kernel.Precision) (callFunc, error)
}

// Describe returns the descriptor for p.
func (v Variant) Describe(p kernel.Precision) (kernel.Descriptor, error) {
	if !v.Supports(p) {
		return kernel.Descriptor{}, &kernel.InvalidParameterError{
			Param:    "precision",
			Expected: v.precisionList(),
			Actual:   p.String(),
		}
	}
	in, out := v.layout(p)
	return kernel.Descriptor{Name: v.Name, Precision: p, Inputs: in, Outputs: out}, nil
}

func (v Variant) Supports(p kernel.Precision) bool {
	for _, q := range v.Precisions {
		if q == p {
			return true
		}
	}
	return false
}

func (v Variant) precisionList() string {
	s := ""
	for i, p := range v.Precisions {
		if i > 0 {
			s += " or "
		}
		s += p.String()
	}
	return s
}

var (
	MSIS2Species  = []string{"N2", "O2", "O", "He", "H", "Ar", "N", "AnomalousO", "NO", "NPlus"}
	MSIS00Species = []string{"He", "O", "N2", "O2", "Ar", "H", "N", "AnomalousO", "TotalMass"}
)

var (
	MSIS2 = Variant{
		Name:       "msis2",
		Library:    "nrlmsis2",
		Symbols:    []string{"msiscalc", "MSISCALC", "msiscalc_"},
		Precisions: []kernel.Precision{kernel.Single, kernel.Double},
		Species:    MSIS2Species,
		layout:     msis2Layout,
		shim:       msis2Shim,
	}

	MSIS00 = Variant{
		Name:       "msis00",
		Library:    "msis00",
		Symbols:    []string{"gtd7_eval", "GTD7_EVAL", "gtd7_eval_"},
		Precisions: []kernel.Precision{kernel.Single},
		Species:    MSIS00Species,
		layout:     msis00Layout,
		shim:       msis00Shim,
	}

	// MSIS00D is gtd7d: total mass density includes anomalous oxygen.
	MSIS00D = Variant{
		Name:       "msis00d",
		Library:    "msis00",
		Symbols:    []string{"gtd7d_eval", "GTD7D_EVAL", "gtd7d_eval_"},
		Precisions: []kernel.Precision{kernel.Single},
		Species:    MSIS00Species,
		layout:     msis00Layout,
		shim:       msis00Shim,
	}

	HWM14 = Variant{
		Name:       "hwm14",
		Library:    "hwm14",
		Symbols:    []string{"hwm14_eval", "HWM14_EVAL", "hwm14_eval_"},
		DataEnv:    "HWMPATH",
		Precisions: []kernel.Precision{kernel.Single},
		layout:     hwmLayout,
		shim:       hwmShim,
	}

	HWM93 = Variant{
		Name:       "hwm93",
		Library:    "hwm93",
		Symbols:    []string{"hwm93_eval", "HWM93_EVAL", "hwm93_eval_"},
		Precisions: []kernel.Precision{kernel.Single},
		layout:     hwmLayout,
		shim:       hwmShim,
	}
)

var registry = map[string]Variant{
	MSIS2.Name:   MSIS2,
	MSIS00.Name:  MSIS00,
	MSIS00D.Name: MSIS00D,
	HWM14.Name:   HWM14,
	HWM93.Name:   HWM93,
}

func Lookup(name string) (Variant, bool) {
	v, ok := registry[name]
	return v, ok
}

// MustLookup panics on an unknown name.
func MustLookup(name string) Variant {
	v, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("native: unknown variant %q", name))
	}
	return v
}

// Variants lists registered variant names in sorted order.
func Variants() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func msis2Layout(kernel.Precision) ([]kernel.Slot, []kernel.Slot) {
	return []kernel.Slot{
			kernel.Scalar("day"),
			kernel.Scalar("utsec"),
			kernel.Scalar("alt_km"),
			kernel.Scalar("lat_deg"),
			kernel.Scalar("lon_deg"),
			kernel.Scalar("f107a"),
			kernel.Scalar("f107"),
			kernel.Array("ap7", 7),
		}, []kernel.Slot{
			kernel.Scalar("t_local"),
			kernel.Array("dn10", 10),
			kernel.Scalar("t_exo"),
		}
}

func msis00Layout(kernel.Precision) ([]kernel.Slot, []kernel.Slot) {
	return []kernel.Slot{
			kernel.Integer("iyd"),
			kernel.Scalar("sec"),
			kernel.Scalar("alt_km"),
			kernel.Scalar("glat_deg"),
			kernel.Scalar("glon_deg"),
			kernel.Scalar("stl_hours"),
			kernel.Scalar("f107a"),
			kernel.Scalar("f107"),
			kernel.Array("ap7", 7),
			kernel.Integer("mass"),
		}, []kernel.Slot{
			kernel.Array("d", 9),
			kernel.Array("t", 2),
		}
}

func hwmLayout(kernel.Precision) ([]kernel.Slot, []kernel.Slot) {
	return []kernel.Slot{
			kernel.Integer("iyd"),
			kernel.Scalar("sec"),
			kernel.Scalar("alt_km"),
			kernel.Scalar("glat_deg"),
			kernel.Scalar("glon_deg"),
			kernel.Scalar("stl_hours"),
			kernel.Scalar("f107a"),
			kernel.Scalar("f107"),
			kernel.Array("ap2", 2),
		}, []kernel.Slot{
			kernel.Array("w", 2),
		}
}

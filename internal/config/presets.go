package config

import "sort"

// SpaceWeather is a set of solar and geomagnetic driver indices.
type SpaceWeather struct {
	F107  float64 `yaml:"f107"`
	F107A float64 `yaml:"f107a"`
	Ap    float64 `yaml:"ap"`
}

// Ap7 repeats the daily Ap across the seven MSIS history slots.
func (s SpaceWeather) Ap7() []float64 {
	ap := make([]float64, 7)
	for i := range ap {
		ap[i] = s.Ap
	}
	return ap
}

// Ap2 is the HWM pair; only the second entry is read by the kernels.
func (s SpaceWeather) Ap2() []float64 {
	return []float64{0, s.Ap}
}

var Presets = map[string]*SpaceWeather{
	"quiet":    {F107: 70, F107A: 70, Ap: 4},
	"moderate": {F107: 150, F107A: 150, Ap: 15},
	"active":   {F107: 200, F107A: 180, Ap: 50},
	"storm":    {F107: 250, F107A: 200, Ap: 200},
}

func GetPreset(name string) *SpaceWeather {
	sw, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *sw
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

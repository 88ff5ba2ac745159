package atmos

import (
	"math"
	"time"
)

// DayOfYear returns the 1-based day of year for a calendar date.
func DayOfYear(year int, month time.Month, day int) float64 {
	return float64(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).YearDay())
}

func SecondsOfDay(hour, minute int, second float64) float64 {
	return float64(hour)*3600 + float64(minute)*60 + second
}

// YearDay encodes t as YYYYDDD.
func YearDay(t time.Time) int {
	return t.Year()*1000 + t.YearDay()
}

// LocalSolarTime returns apparent local time in hours, wrapped into [0, 24).
func LocalSolarTime(utsec, lonDeg float64) float64 {
	stl := math.Mod(utsec/3600+lonDeg/15, 24)
	if stl < 0 {
		stl += 24
	}
	return stl
}

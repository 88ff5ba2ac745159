package atmos

import (
	"math"
	"testing"
	"time"
)

func TestDayOfYear(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month time.Month
		day   int
		want  float64
	}{
		{"january first", 2023, time.January, 1, 1},
		{"mid year", 2023, time.July, 15, 196},
		{"december 31 common year", 2023, time.December, 31, 365},
		{"december 31 leap year", 2024, time.December, 31, 366},
		{"february 29", 2024, time.February, 29, 60},
		{"march 1 common year", 2023, time.March, 1, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayOfYear(tt.year, tt.month, tt.day); got != tt.want {
				t.Errorf("DayOfYear() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSecondsOfDay(t *testing.T) {
	tests := []struct {
		h, m int
		s    float64
		want float64
	}{
		{0, 0, 0, 0},
		{12, 0, 0, 43200},
		{12, 30, 0, 45000},
		{23, 59, 59, 86399},
		{6, 15, 30.5, 22530.5},
	}
	for _, tt := range tests {
		if got := SecondsOfDay(tt.h, tt.m, tt.s); got != tt.want {
			t.Errorf("SecondsOfDay(%d, %d, %v) = %v, want %v", tt.h, tt.m, tt.s, got, tt.want)
		}
	}
}

func TestYearDay(t *testing.T) {
	if got := YearDay(time.Date(2023, 7, 15, 12, 30, 0, 0, time.UTC)); got != 2023196 {
		t.Errorf("YearDay() = %d, want 2023196", got)
	}
	if got := YearDay(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)); got != 2024366 {
		t.Errorf("YearDay() = %d, want 2024366", got)
	}
}

func TestLocalSolarTime(t *testing.T) {
	tests := []struct {
		utsec, lon, want float64
	}{
		{43200, 0, 12},
		{43200, 180, 0},
		{43200, -90, 6},
		{0, -15, 23},
		{82800, 30, 1},
		{43200, 116, 12 + 116.0/15},
	}
	for _, tt := range tests {
		got := LocalSolarTime(tt.utsec, tt.lon)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("LocalSolarTime(%v, %v) = %v, want %v", tt.utsec, tt.lon, got, tt.want)
		}
		if got < 0 || got >= 24 {
			t.Errorf("LocalSolarTime(%v, %v) = %v outside [0, 24)", tt.utsec, tt.lon, got)
		}
	}
}

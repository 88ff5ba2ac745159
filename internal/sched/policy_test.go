package sched

import (
	"errors"
	"testing"

	"github.com/san-kum/upperatm/internal/kernel"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", AbortOnFirst, false},
		{"abort-on-first", AbortOnFirst, false},
		{"Best-Effort", BestEffort, false},
		{"retry", AbortOnFirst, true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if err != nil && !errors.Is(err, kernel.ErrInvalidParameter) {
			t.Errorf("error should wrap ErrInvalidParameter")
		}
	}
}

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	if n < 1 || n > MaxDefaultWorkers {
		t.Errorf("DefaultWorkers() = %d, want 1..%d", n, MaxDefaultWorkers)
	}
}

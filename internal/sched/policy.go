package sched

import (
	"strings"

	"github.com/san-kum/upperatm/internal/kernel"
)

type Policy int

const (
	AbortOnFirst Policy = iota
	BestEffort
)

func (p Policy) String() string {
	switch p {
	case AbortOnFirst:
		return "abort-on-first"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort-on-first", "abort":
		return AbortOnFirst, nil
	case "best-effort", "besteffort":
		return BestEffort, nil
	}
	return AbortOnFirst, &kernel.InvalidParameterError{
		Param:    "failure_policy",
		Expected: "abort-on-first or best-effort",
		Actual:   s,
	}
}

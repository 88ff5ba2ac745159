package atmos

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/upperatm/internal/broadcast"
	"github.com/san-kum/upperatm/internal/cache"
	"github.com/san-kum/upperatm/internal/config"
	"github.com/san-kum/upperatm/internal/kernel"
	"github.com/san-kum/upperatm/internal/native"
	"github.com/san-kum/upperatm/internal/sched"
)

// engine is the pipeline shared by both facades.
type engine struct {
	variant native.Variant
	cache   *cache.Cache
	sched   *sched.Scheduler
	bcast   broadcast.Engine
	checks  bool
	logger  *zap.Logger
}

func newEngine(cfg *config.Config, v native.Variant, p kernel.Precision, o options) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger.With(zap.String("version", v.Name))
	factory := o.factory
	if factory == nil {
		factory = nativeFactory(v, cfg, p, logger)
	}

	c := cache.New(cfg.CacheCapacity)
	s, err := sched.New(factory, sched.Options{
		Workers:    cfg.Workers,
		QueueDepth: cfg.QueueDepth,
		Policy:     cfg.Policy(),
		Timeout:    cfg.Timeout(),
		Cache:      c,
		Keyer:      cache.Keyer{Digits: cfg.CacheDigits},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &engine{
		variant: v,
		cache:   c,
		sched:   s,
		bcast:   broadcast.Engine{Vectorized: cfg.Vectorized, MaxPoints: cfg.MaxBatchPoints},
		checks:  o.rangeChecks,
		logger:  logger,
	}, nil
}

// nativeFactory opens one binding per worker. Replica 0 loads the library
// in place; the others load private copies.
func nativeFactory(v native.Variant, cfg *config.Config, p kernel.Precision, logger *zap.Logger) sched.Factory {
	return func(replica int) (sched.Evaluator, error) {
		opts := append(cfg.NativeOptions(),
			native.WithPrecision(p),
			native.WithReplica(replica),
			native.WithLogger(logger),
		)
		b, err := native.Open(v, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (e *engine) run(ctx context.Context, inputs []broadcast.Input, toRequest func([]float64) kernel.Request) (*broadcast.Plan, *kernel.Batch, error) {
	plan, err := e.bcast.Expand(inputs)
	if err != nil {
		return nil, nil, err
	}

	reqs := make([]kernel.Request, plan.Len())
	for i, row := range plan.Rows {
		reqs[i] = toRequest(row)
	}

	batch, err := e.sched.Run(ctx, reqs)
	if err != nil {
		return nil, nil, err
	}
	if failed := batch.Failed(); len(failed) > 0 {
		e.logger.Warn("batch finished with failed points", zap.Int("failed", len(failed)), zap.Int("total", batch.Len()))
	}
	return plan, batch, nil
}

func (e *engine) Version() string               { return e.variant.Name }
func (e *engine) Descriptor() kernel.Descriptor { return e.sched.Descriptor() }
func (e *engine) ClearCache()                   { e.cache.Clear() }
func (e *engine) CacheStats() cache.Stats       { return e.cache.Stats() }
func (e *engine) SetCacheEnabled(on bool)       { e.cache.SetEnabled(on) }
func (e *engine) Stats() sched.Stats            { return e.sched.Stats() }
func (e *engine) Close() error                  { return e.sched.Close() }

// bound is an accepted value range; Exclusive makes Lo itself invalid.
type bound struct {
	Lo, Hi    float64
	Exclusive bool
}

var (
	nonNeg    = bound{Lo: 0, Hi: math.Inf(1)}
	positive  = bound{Lo: 0, Hi: math.Inf(1), Exclusive: true}
	latitude  = bound{Lo: -90, Hi: 90}
	longitude = bound{Lo: -180, Hi: 360}
	dayOfYear = bound{Lo: 1, Hi: 366}
	daySecs   = bound{Lo: 0, Hi: 86400}
	hours     = bound{Lo: 0, Hi: 24}
)

func (b bound) contains(v float64) bool {
	if b.Exclusive && v == b.Lo {
		return false
	}
	return v >= b.Lo && v <= b.Hi
}

func (b bound) String() string {
	switch {
	case math.IsInf(b.Hi, 1) && b.Exclusive:
		return fmt.Sprintf("> %g", b.Lo)
	case math.IsInf(b.Hi, 1):
		return fmt.Sprintf(">= %g", b.Lo)
	default:
		return fmt.Sprintf("in [%g, %g]", b.Lo, b.Hi)
	}
}

type field struct {
	name  string
	value broadcast.Array
	bound bound
}

// validate rejects non-finite values always and out-of-range values when
// range checks are on.
func (e *engine) validate(fields []field) error {
	for _, f := range fields {
		for i, v := range f.value.Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &kernel.InvalidParameterError{Param: f.name, Expected: "a finite value", Actual: describe(f.value, i, v)}
			}
			if e.checks && !f.bound.contains(v) {
				return &kernel.InvalidParameterError{Param: f.name, Expected: f.bound.String(), Actual: describe(f.value, i, v)}
			}
		}
	}
	return nil
}

func describe(a broadcast.Array, i int, v float64) string {
	if a.IsScalar() {
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%g at index %v", v, broadcast.Unravel(i, a.Shape))
}

// vectorArg checks a fixed-length point argument, substituting def when nil.
func vectorArg(name string, vs, def []float64) (broadcast.Array, error) {
	if vs == nil {
		return broadcast.Vector(def...), nil
	}
	if len(vs) != len(def) {
		return broadcast.Array{}, kernel.ArityError(name, len(def), len(vs))
	}
	return broadcast.Vector(vs...), nil
}

func orDefault(a broadcast.Array, def []float64) broadcast.Array {
	if a.Data == nil {
		return broadcast.Vector(def...)
	}
	return a
}

func unsupportedVersion(kind, got string, want ...string) error {
	exp := ""
	for i, w := range want {
		if i > 0 {
			exp += " or "
		}
		exp += w
	}
	return &kernel.InvalidParameterError{Param: kind + " version", Expected: exp, Actual: got}
}

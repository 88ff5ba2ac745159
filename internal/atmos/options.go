package atmos

import (
	"go.uber.org/zap"

	"github.com/san-kum/upperatm/internal/sched"
)

type options struct {
	version     string
	factory     sched.Factory
	logger      *zap.Logger
	rangeChecks bool
}

type Option func(*options)

// WithVersion selects the model variant, e.g. "msis00" or "hwm93".
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithFactory replaces native bindings with caller-built evaluators.
func WithFactory(f sched.Factory) Option {
	return func(o *options) { o.factory = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithoutRangeChecks skips physical range validation. Non-finite inputs
// and vector lengths are still checked.
func WithoutRangeChecks() Option {
	return func(o *options) { o.rangeChecks = false }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), rangeChecks: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Package nativetest provides in-process stand-ins for native kernels.
package nativetest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/upperatm/internal/kernel"
	"github.com/san-kum/upperatm/internal/native"
)

// ErrReentered is returned when a Kernel sees overlapping calls.
var ErrReentered = errors.New("nativetest: kernel re-entered")

// Counter is shared by every replica built from one Factory.
type Counter struct {
	Calls     atomic.Int64
	Reentries atomic.Int64
	Opened    atomic.Int64
	Closed    atomic.Int64

	mu     sync.Mutex
	inputs []kernel.Vector
}

// Inputs returns the requests seen so far in call order.
func (c *Counter) Inputs() []kernel.Vector {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]kernel.Vector, len(c.inputs))
	copy(out, c.inputs)
	return out
}

func (c *Counter) record(in kernel.Vector) {
	c.mu.Lock()
	c.inputs = append(c.inputs, in.Clone())
	c.mu.Unlock()
}

type Func func(in kernel.Vector) kernel.Vector

type config struct {
	fn       Func
	maxDelay time.Duration
	nanWhen  func(kernel.Vector) bool
	failWhen func(kernel.Vector) error
	block    <-chan struct{}
}

type Option func(*config)

// WithFunc replaces the synthetic computation.
func WithFunc(fn Func) Option {
	return func(c *config) { c.fn = fn }
}

// WithJitter sleeps a random duration up to max inside every call.
func WithJitter(max time.Duration) Option {
	return func(c *config) { c.maxDelay = max }
}

// WithNaN makes every output non-finite when pred matches the inputs.
func WithNaN(pred func(kernel.Vector) bool) Option {
	return func(c *config) { c.nanWhen = pred }
}

// WithFailure returns the predicate's error from Evaluate.
func WithFailure(pred func(kernel.Vector) error) Option {
	return func(c *config) { c.failWhen = pred }
}

// WithBlock holds every call until ch is closed.
func WithBlock(ch <-chan struct{}) Option {
	return func(c *config) { c.block = ch }
}

// Kernel is a non-reentrant fake with the same contract as native.Binding.
type Kernel struct {
	desc    kernel.Descriptor
	replica int
	cfg     config
	counter *Counter
	rng     *rand.Rand
	busy    atomic.Bool
	closed  atomic.Bool
}

func (k *Kernel) Descriptor() kernel.Descriptor { return k.desc }
func (k *Kernel) Replica() int                  { return k.replica }

func (k *Kernel) Evaluate(req kernel.Request) (kernel.Result, error) {
	if k.closed.Load() {
		return kernel.Result{}, &kernel.BindingNotReadyError{Model: k.desc.Identity(), State: "closed"}
	}
	if !k.busy.CompareAndSwap(false, true) {
		k.counter.Reentries.Add(1)
		return kernel.Result{}, fmt.Errorf("%w: %w", kernel.ErrConcurrentCall, ErrReentered)
	}
	defer k.busy.Store(false)

	if len(req.Inputs) != k.desc.InputWidth() {
		return kernel.Result{}, kernel.ArityError(k.desc.Name+" inputs", k.desc.InputWidth(), len(req.Inputs))
	}

	k.counter.Calls.Add(1)
	k.counter.record(req.Inputs)

	if k.cfg.block != nil {
		<-k.cfg.block
	}
	if k.cfg.maxDelay > 0 {
		time.Sleep(time.Duration(k.rng.Int63n(int64(k.cfg.maxDelay))))
	}
	if k.cfg.failWhen != nil {
		if err := k.cfg.failWhen(req.Inputs); err != nil {
			return kernel.Result{}, err
		}
	}

	out := k.cfg.fn(req.Inputs)
	if k.cfg.nanWhen != nil && k.cfg.nanWhen(req.Inputs) {
		for i := range out {
			out[i] = math.NaN()
		}
	}
	return kernel.Result{Outputs: out, Suspect: !out.IsFinite()}, nil
}

func (k *Kernel) Close() error {
	if k.closed.CompareAndSwap(false, true) {
		k.counter.Closed.Add(1)
	}
	return nil
}

// Factory builds replicas that share counter.
type Factory struct {
	Desc    kernel.Descriptor
	Counter *Counter
	opts    []Option
}

func NewFactory(desc kernel.Descriptor, opts ...Option) *Factory {
	return &Factory{Desc: desc, Counter: &Counter{}, opts: opts}
}

func (f *Factory) New(replica int) (*Kernel, error) {
	cfg := config{fn: SyntheticFor(f.Desc)}
	for _, opt := range f.opts {
		opt(&cfg)
	}
	f.Counter.Opened.Add(1)
	return &Kernel{
		desc:    f.Desc,
		replica: replica,
		cfg:     cfg,
		counter: f.Counter,
		rng:     rand.New(rand.NewSource(int64(replica) + 1)),
	}, nil
}

// Describe is native.Variant.Describe for tests that know the precision is valid.
func Describe(v native.Variant, p kernel.Precision) kernel.Descriptor {
	d, err := v.Describe(p)
	if err != nil {
		panic(err)
	}
	return d
}

// SyntheticFor picks a deterministic stand-in computation for the
// descriptor's model family.
func SyntheticFor(d kernel.Descriptor) Func {
	switch d.Name {
	case native.MSIS2.Name:
		return MSIS2
	case native.MSIS00.Name, native.MSIS00D.Name:
		return MSIS00
	case native.HWM14.Name, native.HWM93.Name:
		return HWM
	}
	width := d.OutputWidth()
	return func(in kernel.Vector) kernel.Vector {
		out := make(kernel.Vector, width)
		for i := range out {
			out[i] = float64(i)
			for _, v := range in {
				out[i] += v
			}
		}
		return out
	}
}

// MSIS2 returns t_local, ten densities and t_exo with a rough exponential
// fall-off in altitude.
func MSIS2(in kernel.Vector) kernel.Vector {
	alt, lat, f107 := in[2], in[3], in[6]
	out := make(kernel.Vector, 12)
	out[11] = 700 + 2*f107
	out[0] = out[11] - (out[11]-200)*math.Exp(-alt/60) + 0.01*lat
	for i := 0; i < 10; i++ {
		out[1+i] = 1e19 * math.Exp(-alt/float64(8*(i+1)))
	}
	return out
}

// MSIS00 returns nine densities followed by t_exo and t_alt.
func MSIS00(in kernel.Vector) kernel.Vector {
	alt, f107 := in[2], in[7]
	out := make(kernel.Vector, 11)
	for i := 0; i < 9; i++ {
		out[i] = 1e18 * math.Exp(-alt/float64(9*(i+1)))
	}
	out[9] = 700 + 2*f107
	out[10] = out[9] - (out[9]-200)*math.Exp(-alt/60)
	return out
}

// HWM returns meridional and zonal wind.
func HWM(in kernel.Vector) kernel.Vector {
	alt, lat, lon, ap := in[2], in[3], in[4], in[9]
	return kernel.Vector{lat/10 + ap/100, lon/36 - alt/100}
}

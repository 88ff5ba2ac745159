package native

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/upperatm/internal/kernel"
)

type BindingState int32

const (
	Unloaded BindingState = iota
	Loaded
	Ready
	Closed
)

func (s BindingState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type library interface {
	lookup(name string) (uintptr, error)
	close() error
}

type options struct {
	path      string
	dir       string
	dataDir   string
	precision kernel.Precision
	replica   int
	logger    *zap.Logger
}

type Option func(*options)

// WithLibraryPath skips the search and loads exactly path first.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.path = path }
}

// WithLibraryDir adds a directory to the search after the environment.
func WithLibraryDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

func WithPrecision(p kernel.Precision) Option {
	return func(o *options) { o.precision = p }
}

// WithDataDir sets the coefficient directory for kernels that read one.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

// WithReplica loads a private copy of the library file when n > 0 so the
// replica does not share global state with other bindings. Replica 0 loads
// the file in place unless another live binding already holds it.
func WithReplica(n int) Option {
	return func(o *options) { o.replica = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Binding is one loaded copy of a native kernel with a resolved entry point.
type Binding struct {
	variant Variant
	desc    kernel.Descriptor
	path    string
	symbol  string
	copyDir string
	held    string
	lib     library
	call    callFunc
	frame   frame
	logger  *zap.Logger

	state    atomic.Int32
	busy     atomic.Bool
	once     sync.Once
	closeErr error
}

// Open loads the library for v, resolves its entry point and returns a
// Ready binding.
func Open(v Variant, opts ...Option) (*Binding, error) {
	o := options{precision: kernel.Single, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	desc, err := v.Describe(o.precision)
	if err != nil {
		return nil, err
	}

	b := &Binding{
		variant: v,
		desc:    desc,
		frame:   newFrame(desc),
		logger:  o.logger.With(zap.String("model", desc.Identity()), zap.Int("replica", o.replica)),
	}

	if err := b.load(Candidates(v, o.path, o.dir), o); err != nil {
		return nil, err
	}
	if err := b.resolve(); err != nil {
		b.release()
		return nil, err
	}
	return b, nil
}

func (b *Binding) load(candidates []string, o options) error {
	loadErr := &kernel.LibraryLoadError{Variant: b.variant.Name}
	fail := func(path string, err error) {
		loadErr.Candidates = append(loadErr.Candidates, kernel.LoadAttempt{Path: path, Err: err})
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			fail(path, err)
			continue
		}

		target := path
		key, owned := "", false
		if o.replica == 0 {
			key, owned = claimInPlace(path)
		}
		if owned {
			b.held = key
		} else {
			copied, dir, err := copyLibrary(path, b.variant.Name, o.replica)
			if err != nil {
				fail(path, err)
				continue
			}
			target, b.copyDir = copied, dir
			b.logger.Debug("copied library for replica", zap.String("src", path), zap.String("dst", copied))
		}

		restore, err := b.setDataEnv(path, o.dataDir)
		if err != nil {
			fail(path, err)
			b.unclaim()
			continue
		}

		lib, err := dlopen(target)
		if err != nil {
			fail(path, err)
			restore()
			b.unclaim()
			continue
		}

		b.lib = lib
		b.path = path
		b.state.Store(int32(Loaded))
		b.logger.Debug("loaded native library", zap.String("path", target))
		return nil
	}

	return loadErr
}

// unclaim drops the in-place claim or private copy of a failed candidate.
func (b *Binding) unclaim() {
	if b.held != "" {
		releaseInPlace(b.held)
		b.held = ""
	}
	if err := b.removeCopy(); err != nil {
		b.logger.Warn("failed to remove library copy", zap.Error(err))
	}
}

func (b *Binding) resolve() error {
	var causes error
	for _, name := range b.variant.Symbols {
		fn, err := b.lib.lookup(name)
		if err != nil || fn == 0 {
			causes = multierr.Append(causes, fmt.Errorf("%s: %w", name, lookupErr(err)))
			continue
		}
		call, err := b.variant.shim(fn, b.desc.Precision)
		if err != nil {
			return &kernel.SymbolResolutionError{Library: b.path, Symbols: []string{name}, Cause: err}
		}
		b.call = call
		b.symbol = name
		b.state.Store(int32(Ready))
		b.logger.Debug("resolved entry point", zap.String("symbol", name))
		return nil
	}
	return &kernel.SymbolResolutionError{Library: b.path, Symbols: b.variant.Symbols, Cause: causes}
}

func lookupErr(err error) error {
	if err == nil {
		return errors.New("null address")
	}
	return err
}

// setDataEnv points the kernel at its coefficient files unless the user
// already did. The returned func undoes the change if the load fails.
func (b *Binding) setDataEnv(libPath, dataDir string) (func(), error) {
	noop := func() {}
	if b.variant.DataEnv == "" {
		return noop, nil
	}
	if _, ok := os.LookupEnv(b.variant.DataEnv); ok {
		return noop, nil
	}
	if dataDir == "" {
		dataDir = filepath.Join(filepath.Dir(libPath), "data")
	}
	if err := os.Setenv(b.variant.DataEnv, dataDir); err != nil {
		return noop, fmt.Errorf("set %s: %w", b.variant.DataEnv, err)
	}
	b.logger.Debug("set data directory", zap.String(b.variant.DataEnv, dataDir))
	return func() { os.Unsetenv(b.variant.DataEnv) }, nil
}

func copyLibrary(src, name string, replica int) (string, string, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("upperatm-%s-r%d-", name, replica))
	if err != nil {
		return "", "", err
	}
	dst := filepath.Join(dir, filepath.Base(src))

	in, err := os.Open(src)
	if err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.RemoveAll(dir)
		return "", "", err
	}
	if err := out.Close(); err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	return dst, dir, nil
}

func (b *Binding) Descriptor() kernel.Descriptor { return b.desc }
func (b *Binding) Variant() Variant              { return b.variant }
func (b *Binding) State() BindingState           { return BindingState(b.state.Load()) }

// Path is the library file the binding was loaded from.
func (b *Binding) Path() string   { return b.path }
func (b *Binding) Symbol() string { return b.symbol }

// Evaluate runs one synchronous native call. A call overlapping another on
// the same binding fails with kernel.ErrConcurrentCall.
func (b *Binding) Evaluate(req kernel.Request) (kernel.Result, error) {
	if s := b.State(); s != Ready {
		return kernel.Result{}, b.notReady(s)
	}
	if !b.busy.CompareAndSwap(false, true) {
		return kernel.Result{}, fmt.Errorf("%w: %s", kernel.ErrConcurrentCall, b.desc.Identity())
	}
	defer b.done()

	if s := b.State(); s != Ready {
		return kernel.Result{}, b.notReady(s)
	}
	if err := pack(b.desc, req, &b.frame); err != nil {
		return kernel.Result{}, err
	}

	b.call(&b.frame)

	out := unpack(b.desc, &b.frame)
	return kernel.Result{Outputs: out, Suspect: !out.IsFinite()}, nil
}

func (b *Binding) notReady(s BindingState) error {
	return &kernel.BindingNotReadyError{Model: b.desc.Identity(), State: s.String()}
}

// done hands the library back to a Close that arrived mid-call.
func (b *Binding) done() {
	b.busy.Store(false)
	if b.State() == Closed && b.busy.CompareAndSwap(false, true) {
		b.release()
	}
}

// Close unloads the library once no call is in flight. It is idempotent.
func (b *Binding) Close() error {
	b.state.Store(int32(Closed))
	if b.busy.CompareAndSwap(false, true) {
		return b.release()
	}
	return nil
}

func (b *Binding) release() error {
	b.once.Do(func() {
		b.state.Store(int32(Closed))
		if b.lib != nil {
			b.closeErr = multierr.Append(b.closeErr, b.lib.close())
		}
		b.closeErr = multierr.Append(b.closeErr, b.removeCopy())
		if b.held != "" {
			releaseInPlace(b.held)
		}
		b.logger.Debug("closed native library")
	})
	return b.closeErr
}

func (b *Binding) removeCopy() error {
	if b.copyDir == "" {
		return nil
	}
	dir := b.copyDir
	b.copyDir = ""
	return os.RemoveAll(dir)
}

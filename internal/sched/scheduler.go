package sched

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/upperatm/internal/cache"
	"github.com/san-kum/upperatm/internal/kernel"
)

// MaxDefaultWorkers caps the default pool size.
const MaxDefaultWorkers = 8

// Evaluator is one non-reentrant model instance, typically a native.Binding.
type Evaluator interface {
	Descriptor() kernel.Descriptor
	Evaluate(kernel.Request) (kernel.Result, error)
	Close() error
}

// Factory builds the evaluator for one worker. Replica 0 is the primary
// instance.
type Factory func(replica int) (Evaluator, error)

type Options struct {
	Workers    int
	QueueDepth int
	Policy     Policy
	Timeout    time.Duration
	// Cache is optional; nil disables memoization.
	Cache  *cache.Cache
	Keyer  cache.Keyer
	Logger *zap.Logger
}

func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n > MaxDefaultWorkers {
		n = MaxDefaultWorkers
	}
	return n
}

type Stats struct {
	NativeCalls  int64
	CacheHits    int64
	Deduplicated int64
	Failures     int64
}

type Scheduler struct {
	desc       kernel.Descriptor
	opts       Options
	evaluators []Evaluator
	idle       chan Evaluator
	logger     *zap.Logger
	closed     atomic.Bool

	calls    atomic.Int64
	hits     atomic.Int64
	deduped  atomic.Int64
	failures atomic.Int64
}

// New builds one evaluator per worker up front. If any construction fails
// the ones already built are closed.
func New(factory Factory, opts Options) (*Scheduler, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 2 * opts.Workers
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Scheduler{
		opts:   opts,
		idle:   make(chan Evaluator, opts.Workers),
		logger: opts.Logger,
	}

	for i := 0; i < opts.Workers; i++ {
		ev, err := factory(i)
		if err != nil {
			_ = s.closeAll()
			return nil, err
		}
		s.evaluators = append(s.evaluators, ev)
		s.idle <- ev
	}
	s.desc = s.evaluators[0].Descriptor()
	s.logger = s.logger.With(zap.String("model", s.desc.Identity()))
	s.logger.Debug("scheduler ready", zap.Int("workers", opts.Workers), zap.Int("queue_depth", opts.QueueDepth))
	return s, nil
}

func (s *Scheduler) Descriptor() kernel.Descriptor { return s.desc }
func (s *Scheduler) Workers() int                  { return s.opts.Workers }
func (s *Scheduler) Cache() *cache.Cache           { return s.opts.Cache }

func (s *Scheduler) Stats() Stats {
	return Stats{
		NativeCalls:  s.calls.Load(),
		CacheHits:    s.hits.Load(),
		Deduplicated: s.deduped.Load(),
		Failures:     s.failures.Load(),
	}
}

// task is one unique request and every slot waiting for it.
type task struct {
	key       cache.Key
	cacheable bool
	req       kernel.Request
	slots     []int
}

type outcome struct {
	task   *task
	result kernel.Result
	err    error
}

// Run evaluates reqs and returns a batch whose slots line up with reqs. The
// batch is returned alongside an error so partial progress stays visible.
func (s *Scheduler) Run(ctx context.Context, reqs []kernel.Request) (*kernel.Batch, error) {
	if s.closed.Load() {
		return nil, &kernel.BindingNotReadyError{Model: s.desc.Identity(), State: "closed"}
	}

	batch := kernel.NewBatch(reqs)
	tasks, cached := s.plan(batch)
	s.logger.Debug("dispatching batch",
		zap.Int("points", len(reqs)),
		zap.Int("cached", cached),
		zap.Int("unique", len(tasks)))
	if len(tasks) == 0 {
		return batch, nil
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	queue := make(chan *task, s.opts.QueueDepth)
	out := make(chan outcome, len(tasks))

	g.Go(func() error {
		defer close(queue)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	workers := s.opts.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() error {
			return s.worker(gctx, id, queue, out)
		})
	}

	completed := cached
	for received := 0; received < len(tasks); received++ {
		select {
		case o := <-out:
			if o.err != nil {
				s.failures.Add(1)
				for _, i := range o.task.slots {
					batch.Status[i] = kernel.PointStatus{State: kernel.StatusFailed, Err: o.err}
				}
				if s.opts.Policy == AbortOnFirst {
					cancel()
					go func() { _ = g.Wait() }()
					return batch, s.aborted(o)
				}
				s.logger.Warn("point failed", zap.Int("index", o.task.slots[0]), zap.Error(o.err))
				continue
			}
			for n, i := range o.task.slots {
				if n == 0 {
					batch.Results[i] = o.result
				} else {
					batch.Results[i] = o.result.Clone()
				}
				batch.Status[i] = kernel.PointStatus{State: kernel.StatusOK}
			}
			completed += len(o.task.slots)

		case <-runCtx.Done():
			// Workers still inside a native call return their evaluator
			// when it finishes.
			go func() { _ = g.Wait() }()
			if err := ctx.Err(); err != nil {
				return batch, err
			}
			s.logger.Warn("batch timed out", zap.Duration("timeout", s.opts.Timeout),
				zap.Int("completed", completed), zap.Int("total", len(reqs)))
			return batch, &kernel.TimeoutError{Timeout: s.opts.Timeout, Completed: completed, Total: len(reqs)}
		}
	}

	if err := g.Wait(); err != nil {
		return batch, err
	}
	return batch, nil
}

// plan fills cache hits and groups the remaining slots by key.
func (s *Scheduler) plan(batch *kernel.Batch) ([]*task, int) {
	var tasks []*task
	groups := make(map[cache.Key]*task)
	cached := 0

	for i, req := range batch.Requests {
		k, err := s.opts.Keyer.Key(s.desc, req)
		if err != nil {
			// Unkeyable requests still run so the evaluator reports the error.
			tasks = append(tasks, &task{req: req, slots: []int{i}})
			continue
		}
		if s.opts.Cache != nil {
			if res, ok := s.opts.Cache.Get(k); ok {
				batch.Results[i] = res
				batch.Status[i] = kernel.PointStatus{State: kernel.StatusCached}
				s.hits.Add(1)
				cached++
				continue
			}
		}
		if t, ok := groups[k]; ok {
			t.slots = append(t.slots, i)
			s.deduped.Add(1)
			continue
		}
		t := &task{key: k, cacheable: true, req: req, slots: []int{i}}
		groups[k] = t
		tasks = append(tasks, t)
	}
	return tasks, cached
}

func (s *Scheduler) worker(ctx context.Context, id int, queue <-chan *task, out chan<- outcome) error {
	var ev Evaluator
	select {
	case ev = <-s.idle:
	case <-ctx.Done():
		return nil
	}
	defer func() { s.idle <- ev }()

	logger := s.logger.With(zap.Int("worker", id))
	logger.Debug("worker started")

	for t := range queue {
		if ctx.Err() != nil {
			return nil
		}

		res, err := ev.Evaluate(t.req)
		s.calls.Add(1)
		if err == nil && res.Suspect {
			err = &kernel.NativeComputationError{Model: s.desc.Identity(), Outputs: res.Outputs}
		}
		if err == nil && t.cacheable && s.opts.Cache != nil {
			s.opts.Cache.Put(t.key, res)
		}

		out <- outcome{task: t, result: res, err: err}
		if err != nil {
			logger.Debug("evaluation failed", zap.Int("index", t.slots[0]), zap.Error(err))
			if s.opts.Policy == AbortOnFirst {
				return err
			}
		}
	}

	logger.Debug("worker finished")
	return nil
}

func (s *Scheduler) aborted(o outcome) error {
	return &kernel.BatchAbortedError{
		Index:  o.task.slots[0],
		Names:  s.desc.InputNames(),
		Inputs: o.task.req.Inputs.Clone(),
		Cause:  o.err,
	}
}

// Evaluate runs a single request through the cache and pool.
func (s *Scheduler) Evaluate(ctx context.Context, req kernel.Request) (kernel.Result, error) {
	batch, err := s.Run(ctx, []kernel.Request{req})
	if err != nil {
		return kernel.Result{}, err
	}
	if st := batch.Status[0]; !st.OK() {
		return kernel.Result{}, st.Err
	}
	return batch.Results[0], nil
}

// Close closes every evaluator. Evaluators still running an abandoned call
// close once that call returns.
func (s *Scheduler) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.closeAll()
}

func (s *Scheduler) closeAll() error {
	var err error
	for _, ev := range s.evaluators {
		err = multierr.Append(err, ev.Close())
	}
	return err
}

package sched_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/upperatm/internal/cache"
	"github.com/san-kum/upperatm/internal/kernel"
	"github.com/san-kum/upperatm/internal/native/nativetest"
	"github.com/san-kum/upperatm/internal/sched"
)

var toy = kernel.Descriptor{
	Name:      "toy",
	Precision: kernel.Double,
	Inputs:    []kernel.Slot{kernel.Scalar("x"), kernel.Scalar("y")},
	Outputs:   []kernel.Slot{kernel.Scalar("sum"), kernel.Scalar("x")},
}

func sum(in kernel.Vector) kernel.Vector {
	return kernel.Vector{in[0] + in[1], in[0]}
}

func requests(xs ...float64) []kernel.Request {
	reqs := make([]kernel.Request, len(xs))
	for i, x := range xs {
		reqs[i] = kernel.Request{Inputs: kernel.Vector{x, 1}}
	}
	return reqs
}

func factoryOf(f *nativetest.Factory) sched.Factory {
	return func(replica int) (sched.Evaluator, error) {
		k, err := f.New(replica)
		if err != nil {
			return nil, err
		}
		return k, nil
	}
}

var _ = Describe("Scheduler", func() {
	var (
		ctx     context.Context
		factory *nativetest.Factory
		s       *sched.Scheduler
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if s != nil {
			Expect(s.Close()).To(Succeed())
			s = nil
		}
	})

	newScheduler := func(opts sched.Options, kopts ...nativetest.Option) {
		factory = nativetest.NewFactory(toy, append([]nativetest.Option{nativetest.WithFunc(sum)}, kopts...)...)
		var err error
		s, err = sched.New(factoryOf(factory), opts)
		Expect(err).NotTo(HaveOccurred())
	}

	Context("ordering and isolation", func() {
		It("keeps input order under random latency with several workers", func() {
			newScheduler(sched.Options{Workers: 4}, nativetest.WithJitter(2*time.Millisecond))

			xs := make([]float64, 200)
			for i := range xs {
				xs[i] = float64(i)
			}
			batch, err := s.Run(ctx, requests(xs...))
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Len()).To(Equal(200))

			for i, r := range batch.Results {
				Expect(batch.Status[i].State).To(Equal(kernel.StatusOK))
				Expect(r.Outputs[1]).To(Equal(float64(i)))
				Expect(r.Outputs[0]).To(Equal(float64(i) + 1))
			}
		})

		It("never calls one evaluator from two workers at once", func() {
			newScheduler(sched.Options{Workers: 8, QueueDepth: 1}, nativetest.WithJitter(time.Millisecond))

			xs := make([]float64, 300)
			for i := range xs {
				xs[i] = float64(i)
			}
			for round := 0; round < 3; round++ {
				_, err := s.Run(ctx, requests(xs...))
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(factory.Counter.Reentries.Load()).To(BeZero())
			Expect(factory.Counter.Opened.Load()).To(BeEquivalentTo(8))
		})

		It("runs sequentially with one worker", func() {
			newScheduler(sched.Options{Workers: 1})

			batch, err := s.Run(ctx, requests(3, 2, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Results[0].Outputs[1]).To(Equal(3.0))
			Expect(batch.Results[2].Outputs[1]).To(Equal(1.0))

			seen := factory.Counter.Inputs()
			Expect(seen).To(HaveLen(3))
			Expect(seen[0][0]).To(Equal(3.0))
			Expect(seen[2][0]).To(Equal(1.0))
		})
	})

	Context("deduplication and caching", func() {
		It("evaluates each unique point once per batch", func() {
			newScheduler(sched.Options{Workers: 3})

			batch, err := s.Run(ctx, requests(1, 2, 1, 3, 2, 1, 1, 3, 2, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(factory.Counter.Calls.Load()).To(BeEquivalentTo(3))
			Expect(s.Stats().Deduplicated).To(BeEquivalentTo(7))

			for i, r := range batch.Results {
				Expect(r.Outputs[1]).To(Equal(batch.Requests[i].Inputs[0]))
			}
			batch.Results[0].Outputs[0] = -1
			Expect(batch.Results[2].Outputs[0]).To(Equal(2.0))
		})

		It("serves repeated batches from the cache", func() {
			c := cache.New(100)
			newScheduler(sched.Options{Workers: 2, Cache: c})

			_, err := s.Run(ctx, requests(1, 2, 3))
			Expect(err).NotTo(HaveOccurred())
			Expect(factory.Counter.Calls.Load()).To(BeEquivalentTo(3))

			batch, err := s.Run(ctx, requests(3, 2, 1))
			Expect(err).NotTo(HaveOccurred())
			Expect(factory.Counter.Calls.Load()).To(BeEquivalentTo(3))
			for _, st := range batch.Status {
				Expect(st.State).To(Equal(kernel.StatusCached))
			}
			Expect(batch.Results[0].Outputs[1]).To(Equal(3.0))
			Expect(s.Stats().CacheHits).To(BeEquivalentTo(3))
		})
	})

	Context("failure policy", func() {
		nanAt := func(x float64) nativetest.Option {
			return nativetest.WithNaN(func(in kernel.Vector) bool { return in[0] == x })
		}

		It("keeps going in best-effort mode and never caches suspect results", func() {
			c := cache.New(100)
			newScheduler(sched.Options{Workers: 2, Policy: sched.BestEffort, Cache: c}, nanAt(30))

			batch, err := s.Run(ctx, requests(10, 20, 30, 40, 50))
			Expect(err).NotTo(HaveOccurred())
			Expect(batch.Failed()).To(Equal([]int{2}))

			st := batch.Status[2]
			Expect(st.State).To(Equal(kernel.StatusFailed))
			Expect(errors.Is(st.Err, kernel.ErrNativeComputation)).To(BeTrue())
			Expect(batch.Results[2].Outputs).To(BeNil())

			for _, i := range []int{0, 1, 3, 4} {
				Expect(batch.Status[i].State).To(Equal(kernel.StatusOK))
				Expect(batch.Results[i].Outputs[1]).To(Equal(float64(10 * (i + 1))))
			}
			Expect(c.Len()).To(Equal(4))
		})

		It("aborts on the first failure with its index and inputs", func() {
			newScheduler(sched.Options{Workers: 2}, nanAt(30))

			_, err := s.Run(ctx, requests(10, 20, 30, 40, 50))
			var aborted *kernel.BatchAbortedError
			Expect(errors.As(err, &aborted)).To(BeTrue())
			Expect(aborted.Index).To(Equal(2))
			Expect(aborted.Inputs).To(Equal(kernel.Vector{30, 1}))
			Expect(aborted.Names).To(Equal([]string{"x", "y"}))
			Expect(errors.Is(err, kernel.ErrNativeComputation)).To(BeTrue())
		})

		It("reports the lowest index sharing a failing point", func() {
			newScheduler(sched.Options{Workers: 1}, nanAt(7))

			_, err := s.Run(ctx, requests(1, 7, 2, 7))
			var aborted *kernel.BatchAbortedError
			Expect(errors.As(err, &aborted)).To(BeTrue())
			Expect(aborted.Index).To(Equal(1))
		})

		It("passes evaluator errors through as the abort cause", func() {
			boom := errors.New("boom")
			newScheduler(sched.Options{Workers: 1}, nativetest.WithFailure(func(in kernel.Vector) error {
				if in[0] == 2 {
					return boom
				}
				return nil
			}))

			_, err := s.Run(ctx, requests(1, 2, 3))
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(errors.Is(err, kernel.ErrBatchAborted)).To(BeTrue())
		})
	})

	Context("timeouts", func() {
		It("returns after the timeout and recovers the evaluator later", func() {
			gate := make(chan struct{})
			newScheduler(sched.Options{Workers: 1, Timeout: 50 * time.Millisecond}, nativetest.WithBlock(gate))

			start := time.Now()
			batch, err := s.Run(ctx, requests(1, 2))
			Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))

			var te *kernel.TimeoutError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Total).To(Equal(2))
			Expect(te.Completed).To(BeZero())
			Expect(batch.Status[0].State).To(Equal(kernel.StatusPending))

			close(gate)
			Eventually(func() error {
				_, err := s.Run(ctx, requests(5))
				return err
			}).WithTimeout(5 * time.Second).Should(Succeed())
			Expect(factory.Counter.Reentries.Load()).To(BeZero())
		})

		It("returns the caller's context error on cancellation", func() {
			gate := make(chan struct{})
			defer close(gate)
			newScheduler(sched.Options{Workers: 1}, nativetest.WithBlock(gate))

			cctx, cancel := context.WithCancel(ctx)
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			_, err := s.Run(cctx, requests(1))
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Context("lifecycle", func() {
		It("closes evaluators already built when the factory fails", func() {
			factory = nativetest.NewFactory(toy)
			_, err := sched.New(func(replica int) (sched.Evaluator, error) {
				if replica == 2 {
					return nil, errors.New("no library")
				}
				return factory.New(replica)
			}, sched.Options{Workers: 4})

			Expect(err).To(MatchError("no library"))
			Expect(factory.Counter.Closed.Load()).To(BeEquivalentTo(2))
		})

		It("closes every evaluator once and rejects later batches", func() {
			newScheduler(sched.Options{Workers: 3})
			Expect(s.Close()).To(Succeed())
			Expect(s.Close()).To(Succeed())
			Expect(factory.Counter.Closed.Load()).To(BeEquivalentTo(3))

			_, err := s.Run(ctx, requests(1))
			Expect(errors.Is(err, kernel.ErrBindingNotReady)).To(BeTrue())
			s = nil
		})

		It("evaluates a single request", func() {
			newScheduler(sched.Options{Workers: 2})
			res, err := s.Evaluate(ctx, kernel.Request{Inputs: kernel.Vector{4, 5}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outputs[0]).To(Equal(9.0))
		})
	})
})

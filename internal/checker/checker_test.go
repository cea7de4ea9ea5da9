package checker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guregu/null/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pingwatch/internal/checker"
	"pingwatch/internal/logger"
	"pingwatch/internal/monitor"
	"pingwatch/internal/probe"
	"pingwatch/internal/storage"
	"pingwatch/internal/storage/memory"
	"pingwatch/internal/urlutil"
)

type stubProber struct {
	mu       sync.Mutex
	calls    map[string]int
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newStubProber(delay time.Duration) *stubProber {
	return &stubProber{calls: make(map[string]int), delay: delay}
}

func (p *stubProber) Probe(ctx context.Context, url string) probe.Outcome {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	p.calls[url]++
	p.mu.Unlock()
	return probe.Outcome{Succeeded: true, Elapsed: 10 * time.Millisecond}
}

func (p *stubProber) Calls(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[url]
}

func (p *stubProber) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

// flakyRefresher fails to store one specific url.
type flakyRefresher struct {
	*monitor.Service
	failURL string
}

func (f flakyRefresher) Refresh(ctx context.Context, url string) error {
	if url == f.failURL {
		return storage.ErrStoreFault
	}
	return f.Service.Refresh(ctx, url)
}

type brokenLister struct{ calls atomic.Int32 }

func (b *brokenLister) Keys(ctx context.Context) ([]string, error) {
	return nil, errors.Join(storage.ErrStoreFault, errors.New("connection refused"))
}

func (b *brokenLister) Refresh(ctx context.Context, url string) error {
	b.calls.Add(1)
	return nil
}

var _ = Describe("Checker", func() {
	var (
		ctx    context.Context
		store  *memory.Store
		prober *stubProber
		svc    *monitor.Service
		urls   []string
	)

	seed := func(n int) {
		urls = nil
		old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < n; i++ {
			url := fmt.Sprintf("https://s%d.google.com", i)
			urls = append(urls, url)
			Expect(store.Upsert(ctx, url, null.Float{}, old)).To(Succeed())
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = memory.New()
		prober = newStubProber(0)
		svc = monitor.NewService(urlutil.NewValidator(urlutil.DefaultAllowedDomains), prober, store, logger.Discard())
	})

	Describe("Sweep", func() {
		It("probes every known target and refreshes its record", func() {
			seed(5)
			c := checker.New(svc, checker.Options{Interval: time.Hour}, logger.Discard())

			start := time.Now()
			report := c.Sweep(ctx)
			Expect(report.Keys).To(Equal(5))
			Expect(report.Failed).To(BeZero())
			Expect(report.Aborted).To(BeFalse())
			Expect(report.Finished).To(BeTemporally(">=", report.Started))

			for _, url := range urls {
				Expect(prober.Calls(url)).To(Equal(1))
				r, err := store.Get(ctx, url)
				Expect(err).NotTo(HaveOccurred())
				Expect(r.ResponseTime.Valid).To(BeTrue())
				Expect(r.Timestamp).To(BeTemporally(">=", start.Truncate(time.Second)))
			}
		})

		It("is a no-op with no targets", func() {
			c := checker.New(svc, checker.Options{Interval: time.Hour}, logger.Discard())
			report := c.Sweep(ctx)
			Expect(report.Keys).To(BeZero())
			Expect(prober.Total()).To(BeZero())
		})

		It("probes sequentially by default", func() {
			prober = newStubProber(20 * time.Millisecond)
			svc = monitor.NewService(urlutil.NewValidator(urlutil.DefaultAllowedDomains), prober, store, logger.Discard())
			seed(4)

			checker.New(svc, checker.Options{Interval: time.Hour}, logger.Discard()).Sweep(ctx)
			Expect(prober.Total()).To(Equal(4))
			Expect(prober.maxSeen.Load()).To(Equal(int32(1)))
		})

		It("fans out up to the configured concurrency", func() {
			prober = newStubProber(50 * time.Millisecond)
			svc = monitor.NewService(urlutil.NewValidator(urlutil.DefaultAllowedDomains), prober, store, logger.Discard())
			seed(12)

			report := checker.New(svc, checker.Options{Interval: time.Hour, Concurrency: 3}, logger.Discard()).Sweep(ctx)
			Expect(report.Keys).To(Equal(12))
			Expect(prober.Total()).To(Equal(12))
			Expect(prober.maxSeen.Load()).To(BeNumerically("<=", 3))
			Expect(prober.maxSeen.Load()).To(BeNumerically(">", 1))
		})

		It("continues past a key whose result cannot be stored", func() {
			seed(3)
			c := checker.New(flakyRefresher{Service: svc, failURL: urls[1]}, checker.Options{Interval: time.Hour}, logger.Discard())

			report := c.Sweep(ctx)
			Expect(report.Failed).To(Equal(1))
			Expect(prober.Calls(urls[0])).To(Equal(1))
			Expect(prober.Calls(urls[1])).To(BeZero())
			Expect(prober.Calls(urls[2])).To(Equal(1))
		})

		It("aborts when the key list cannot be read", func() {
			lister := &brokenLister{}
			report := checker.New(lister, checker.Options{Interval: time.Hour}, logger.Discard()).Sweep(ctx)
			Expect(report.Aborted).To(BeTrue())
			Expect(lister.calls.Load()).To(BeZero())
		})

		It("never runs two sweeps at once", func() {
			prober = newStubProber(30 * time.Millisecond)
			svc = monitor.NewService(urlutil.NewValidator(urlutil.DefaultAllowedDomains), prober, store, logger.Discard())
			seed(3)
			c := checker.New(svc, checker.Options{Interval: time.Hour}, logger.Discard())

			var wg sync.WaitGroup
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					c.Sweep(ctx)
				}()
			}
			wg.Wait()

			Expect(prober.Total()).To(Equal(9))
			Expect(prober.maxSeen.Load()).To(Equal(int32(1)))
		})
	})

	Describe("Start and Stop", func() {
		It("sweeps on every interval", func() {
			seed(2)
			c := checker.New(svc, checker.Options{Interval: 50 * time.Millisecond}, logger.Discard())
			c.Start()
			defer c.Stop()

			Eventually(func() int { return prober.Calls(urls[0]) }).
				WithTimeout(2 * time.Second).
				Should(BeNumerically(">=", 2))
		})

		It("waits one interval before the first sweep", func() {
			seed(1)
			c := checker.New(svc, checker.Options{Interval: time.Hour}, logger.Discard())
			c.Start()
			Consistently(prober.Total).WithTimeout(100 * time.Millisecond).Should(BeZero())
			c.Stop()
		})

		It("sweeps immediately when asked to run on start", func() {
			seed(1)
			c := checker.New(svc, checker.Options{Interval: time.Hour, RunOnStart: true}, logger.Discard())
			c.Start()
			defer c.Stop()

			Eventually(prober.Total).WithTimeout(time.Second).Should(Equal(1))
		})

		It("lets the in-flight probe finish and abandons the rest of the sweep", func() {
			prober = newStubProber(100 * time.Millisecond)
			svc = monitor.NewService(urlutil.NewValidator(urlutil.DefaultAllowedDomains), prober, store, logger.Discard())
			seed(10)
			c := checker.New(svc, checker.Options{Interval: time.Hour, RunOnStart: true}, logger.Discard())
			c.Start()

			Eventually(prober.inFlight.Load).WithTimeout(time.Second).Should(Equal(int32(1)))
			c.Stop()

			Expect(prober.inFlight.Load()).To(BeZero())
			Expect(prober.Total()).To(BeNumerically(">=", 1))
			Expect(prober.Total()).To(BeNumerically("<", 10))
		})

		It("tolerates repeated stops", func() {
			c := checker.New(svc, checker.Options{Interval: time.Hour}, logger.Discard())
			c.Start()
			c.Stop()
			Expect(c.Stop).NotTo(Panic())
		})
	})
})

package checker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Refresher lists known targets and re-probes a single one.
type Refresher interface {
	Keys(ctx context.Context) ([]string, error)
	Refresh(ctx context.Context, url string) error
}

// Report summarises one sweep.
type Report struct {
	Started  time.Time
	Finished time.Time
	Keys     int
	Failed   int  // keys whose result could not be stored
	Aborted  bool // the key list could not be read, or the checker was stopped mid-sweep
}

// Checker periodically re-probes every known target.
type Checker struct {
	refresher     Refresher
	logger        *slog.Logger
	checkInterval time.Duration
	concurrency   int
	runOnStart    bool

	sweepMu  sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Options tune a Checker.
type Options struct {
	Interval    time.Duration
	Concurrency int  // keys probed in parallel within one sweep; 1 means sequential
	RunOnStart  bool // sweep immediately when started instead of waiting one interval
}

// New creates a new Checker.
func New(refresher Refresher, opts Options, logger *slog.Logger) *Checker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Checker{
		refresher:     refresher,
		logger:        logger,
		checkInterval: opts.Interval,
		concurrency:   opts.Concurrency,
		runOnStart:    opts.RunOnStart,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the periodic checking process.
func (c *Checker) Start() {
	c.logger.Info("starting background checker",
		slog.Duration("interval", c.checkInterval),
		slog.Int("concurrency", c.concurrency))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// A ticker buffers a single tick, so ticks missed during a long sweep
		// collapse into one follow-up sweep.
		ticker := time.NewTicker(c.checkInterval)
		defer ticker.Stop()

		if c.runOnStart {
			c.Sweep(context.Background())
		}

		for {
			select {
			case <-ticker.C:
				c.Sweep(context.Background())
			case <-c.stopChan:
				c.logger.Info("stopping background checker...")
				return
			}
		}
	}()
}

// Stop prevents new probes from starting, waits for the in-flight ones and
// returns. The remainder of a running sweep is abandoned. Safe to call more than once.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
	c.logger.Info("background checker stopped")
}

func (c *Checker) stopped() bool {
	select {
	case <-c.stopChan:
		return true
	default:
		return false
	}
}

// Sweep re-probes every known target once. Only one sweep runs at a time;
// concurrent callers wait for the running sweep to finish first.
func (c *Checker) Sweep(ctx context.Context) Report {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	report := Report{Started: time.Now()}
	c.logger.Info("sweep started")

	keys, err := c.refresher.Keys(ctx)
	if err != nil {
		c.logger.Error("error fetching targets for sweep", slog.Any("err", err))
		report.Aborted = true
		report.Finished = time.Now()
		return report
	}
	report.Keys = len(keys)

	var failed atomic.Int64
	refresh := func(url string) {
		if err := c.refresher.Refresh(ctx, url); err != nil {
			failed.Add(1)
			c.logger.Error("sweep step failed", slog.String("url", url), slog.Any("err", err))
		}
	}

	if c.concurrency == 1 {
		for _, url := range keys {
			if c.stopped() {
				report.Aborted = true
				break
			}
			refresh(url)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.concurrency)
		for _, url := range keys {
			if c.stopped() {
				report.Aborted = true
				break
			}
			g.Go(func() error {
				refresh(url)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Failed = int(failed.Load())
	report.Finished = time.Now()
	c.logger.Info("sweep finished",
		slog.Int("targets", report.Keys),
		slog.Int("failed", report.Failed),
		slog.Bool("aborted", report.Aborted),
		slog.Duration("took", report.Finished.Sub(report.Started)))
	return report
}

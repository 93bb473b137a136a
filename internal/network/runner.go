package network

import (
	"context"
	"errors"
	"sync"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
)

// DefaultTickInterval is the Runner's default tick period.
const DefaultTickInterval = 100 * time.Millisecond

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxTicks stops the Runner after n ticks. Zero, the default, runs until
// cancelled.
func WithMaxTicks(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxTicks = n
		}
	}
}

// Runner drives a Planner from a go-behaviortree ticker, one Tick per
// interval, until its context is cancelled or Stop is called.
type Runner struct {
	planner  *Planner
	interval time.Duration
	maxTicks int

	mu     sync.Mutex
	ticker bt.Ticker
}

// NewRunner returns a Runner for p. A non-positive interval selects
// DefaultTickInterval.
func NewRunner(p *Planner, interval time.Duration, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	r := &Runner{planner: p, interval: interval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ticks the planner until ctx is done, Stop is called, or the tick limit
// is reached, and waits for the ticker goroutine to exit. Cancellation is not
// an error.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.ticker != nil {
		r.mu.Unlock()
		return errors.New("network: runner already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	node := r.planner.Node()
	if r.maxTicks > 0 {
		node = r.limit(node, cancel)
	}
	ticker := bt.NewTicker(ctx, r.interval, node)
	r.ticker = ticker
	r.mu.Unlock()

	<-ticker.Done()
	if err := ticker.Err(); err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// limit cancels the run once node has been ticked maxTicks times. The ticker
// may fire again before it observes the cancellation; those ticks are
// dropped. It only runs on the ticker goroutine.
func (r *Runner) limit(node bt.Node, cancel context.CancelFunc) bt.Node {
	var ticks int
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if ticks >= r.maxTicks {
			return bt.Running, nil
		}
		status, err := node.Tick()
		if ticks++; ticks >= r.maxTicks {
			cancel()
		}
		return status, err
	})
}

// Stop stops a running Runner. It is safe to call at any time, more than
// once.
func (r *Runner) Stop() {
	r.mu.Lock()
	ticker := r.ticker
	r.mu.Unlock()
	if ticker != nil {
		ticker.Stop()
	}
}

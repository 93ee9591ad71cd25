// Package poller is the client side of payment reconciliation: it reads a payment's
// status until it is terminal, the attempt budget runs out, or the caller cancels.
// It only reads status; settlement happens on the server.
package poller

import (
	"context"
	"sync"
	"time"
)

type State int

const (
	StatePolling State = iota
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool { return s != StatePolling }

// Snapshot is one status read.
type Snapshot struct {
	CheckoutRequestID string
	Status            string
	ResultDesc        string
	Receipt           string
}

// Fetcher reads the current status of one payment.
type Fetcher interface {
	Fetch(ctx context.Context, checkoutID string) (Snapshot, error)
}

type FetcherFunc func(ctx context.Context, checkoutID string) (Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context, checkoutID string) (Snapshot, error) {
	return f(ctx, checkoutID)
}

// Handlers are the three continuations. At most one of them is ever called.
type Handlers struct {
	OnSuccess func(Snapshot)
	OnFailure func(desc string, s Snapshot)
	OnTimeout func(attempts int)
}

type Options struct {
	MaxAttempts int
	Interval    time.Duration
	// Backoff multiplies the interval after each attempt; <= 1 keeps it fixed.
	Backoff     float64
	MaxInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.Interval <= 0 {
		o.Interval = 3 * time.Second
	}
	return o
}

// Poller is a state machine. Tick is the only transition; Run drives it on a timer.
type Poller struct {
	checkoutID string
	fetcher    Fetcher
	handlers   Handlers
	opts       Options

	mu       sync.Mutex
	state    State
	attempts int
	cancel   context.CancelFunc

	done chan struct{}
	once sync.Once
}

func New(checkoutID string, fetcher Fetcher, h Handlers, opts Options) *Poller {
	return &Poller{
		checkoutID: checkoutID,
		fetcher:    fetcher,
		handlers:   h,
		opts:       opts.withDefaults(),
		state:      StatePolling,
		done:       make(chan struct{}),
	}
}

func (p *Poller) CheckoutID() string { return p.checkoutID }

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// Done is closed once the poller reaches any terminal state.
func (p *Poller) Done() <-chan struct{} { return p.done }

// Tick applies one status read. A fetch error counts as a pending read.
// Ticks after a terminal state are ignored.
func (p *Poller) Tick(snap Snapshot, fetchErr error) State {
	p.mu.Lock()
	if p.state != StatePolling {
		st := p.state
		p.mu.Unlock()
		return st
	}
	p.attempts++

	var fire func()
	switch {
	case fetchErr == nil && snap.Status == "completed":
		p.state = StateSucceeded
		if h := p.handlers.OnSuccess; h != nil {
			fire = func() { h(snap) }
		}
	case fetchErr == nil && (snap.Status == "failed" || snap.Status == "cancelled"):
		p.state = StateFailed
		if h := p.handlers.OnFailure; h != nil {
			desc := snap.ResultDesc
			if desc == "" {
				desc = "payment " + snap.Status
			}
			fire = func() { h(desc, snap) }
		}
	case p.attempts >= p.opts.MaxAttempts:
		p.state = StateTimedOut
		if h := p.handlers.OnTimeout; h != nil {
			n := p.attempts
			fire = func() { h(n) }
		}
	}
	st := p.state
	p.mu.Unlock()

	if st.Terminal() {
		p.finish()
	}
	if fire != nil {
		fire()
	}
	return st
}

// Cancel stops polling without calling any continuation. It reports false when the
// poller had already finished.
func (p *Poller) Cancel() bool {
	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return false
	}
	p.state = StateCancelled
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.finish()
	return true
}

func (p *Poller) finish() { p.once.Do(func() { close(p.done) }) }

// Delay is the wait after the given number of attempts.
func (p *Poller) Delay(attempts int) time.Duration {
	d := p.opts.Interval
	if p.opts.Backoff > 1 {
		for i := 1; i < attempts; i++ {
			d = time.Duration(float64(d) * p.opts.Backoff)
			if p.opts.MaxInterval > 0 && d >= p.opts.MaxInterval {
				return p.opts.MaxInterval
			}
		}
	}
	if p.opts.MaxInterval > 0 && d > p.opts.MaxInterval {
		d = p.opts.MaxInterval
	}
	return d
}

// Run fetches, ticks and sleeps until terminal. Cancelling ctx cancels the poller.
func (p *Poller) Run(ctx context.Context) State {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.state != StatePolling {
		st := p.state
		p.mu.Unlock()
		return st
	}
	p.cancel = cancel
	p.mu.Unlock()

	for {
		snap, err := p.fetcher.Fetch(ctx, p.checkoutID)
		if ctx.Err() != nil {
			p.Cancel()
			return p.State()
		}
		st := p.Tick(snap, err)
		if st.Terminal() {
			return st
		}

		timer := time.NewTimer(p.Delay(p.Attempts()))
		select {
		case <-ctx.Done():
			timer.Stop()
			p.Cancel()
			return p.State()
		case <-timer.C:
		}
	}
}

package poller

import (
	"context"
	"errors"
	"sync"
)

var ErrAlreadyPolling = errors.New("poller: already polling this payment")

// Registry allows one active poller per checkout id.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Poller
}

func NewRegistry() *Registry { return &Registry{active: make(map[string]*Poller)} }

// Start runs a poller in the background. The slot frees once it reaches a terminal state.
func (r *Registry) Start(ctx context.Context, checkoutID string, f Fetcher, h Handlers, opts Options) (*Poller, error) {
	r.mu.Lock()
	if _, busy := r.active[checkoutID]; busy {
		r.mu.Unlock()
		return nil, ErrAlreadyPolling
	}
	p := New(checkoutID, f, h, opts)
	r.active[checkoutID] = p
	r.mu.Unlock()

	go func() {
		defer r.release(checkoutID, p)
		p.Run(ctx)
	}()
	return p, nil
}

func (r *Registry) release(checkoutID string, p *Poller) {
	r.mu.Lock()
	if r.active[checkoutID] == p {
		delete(r.active, checkoutID)
	}
	r.mu.Unlock()
}

// Cancel stops the active poller for checkoutID, if any.
func (r *Registry) Cancel(checkoutID string) bool {
	r.mu.Lock()
	p := r.active[checkoutID]
	r.mu.Unlock()
	if p == nil {
		return false
	}
	return p.Cancel()
}

func (r *Registry) Active(checkoutID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[checkoutID]
	return ok
}

// Package guard rejects a second submission of an operation while the first
// one is still running.
package guard

import (
	"context"
	"sync"

	"duka/internal/core"
)

// InFlight tracks running operations by key. The zero value is ready to use.
type InFlight struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func New() *InFlight {
	return &InFlight{running: make(map[string]struct{})}
}

// Do runs fn unless another call with the same key has not returned yet, in
// which case it returns core.ErrInFlight without calling fn. The key is
// released when fn returns, whatever the outcome.
func (g *InFlight) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	if !g.acquire(key) {
		return core.ErrInFlight
	}
	defer g.release(key)
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// Busy reports whether an operation with key is running.
func (g *InFlight) Busy(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[key]
	return ok
}

func (g *InFlight) acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[key]; ok {
		return false
	}
	g.running[key] = struct{}{}
	return true
}

func (g *InFlight) release(key string) {
	g.mu.Lock()
	delete(g.running, key)
	g.mu.Unlock()
}

package detect

import (
	"context"
	"sync"
)

// Pass holds the state scoped to one scan pass: the URLs already processed
// and the reputation services whose budget ran out. A new pass starts with
// both empty.
type Pass struct {
	mu          sync.Mutex
	processed   map[string]struct{}
	exhausted   map[string]struct{}
	rateLimited bool
}

func NewPass() *Pass {
	return &Pass{
		processed: make(map[string]struct{}),
		exhausted: make(map[string]struct{}),
	}
}

// MarkProcessed records u and reports whether it was new to this pass.
func (p *Pass) MarkProcessed(u string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.processed[u]; seen {
		return false
	}
	p.processed[u] = struct{}{}
	return true
}

// Processed reports whether u was already handled in this pass.
func (p *Pass) Processed(u string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, seen := p.processed[u]
	return seen
}

// Exhaust stops further calls to service for the rest of the pass.
func (p *Pass) Exhaust(service string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted[service] = struct{}{}
	p.rateLimited = true
}

func (p *Pass) Exhausted(service string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.exhausted[service]
	return ok
}

// RateLimited reports whether any service hit its budget during the pass.
func (p *Pass) RateLimited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rateLimited
}

type gateKey struct{}

type serviceGate struct {
	pass    *Pass
	service string
}

// withGate binds ctx to the budget of service in pass.
func withGate(ctx context.Context, pass *Pass, service string) context.Context {
	if pass == nil {
		return ctx
	}
	return context.WithValue(ctx, gateKey{}, serviceGate{pass: pass, service: service})
}

// Proceed reports whether a reputation client may still send a request under
// ctx. Clients call it after waiting on their local limiter, right before the
// request goes out, so that lookups queued behind a 429 in the same pass stay
// quiet.
func Proceed(ctx context.Context) bool {
	g, ok := ctx.Value(gateKey{}).(serviceGate)
	if !ok {
		return true
	}
	return !g.pass.Exhausted(g.service)
}

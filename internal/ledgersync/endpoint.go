package ledgersync

import (
	"errors"
	"sync"
)

// ErrNoEndpoints is returned when an EndpointPool is built without endpoints.
var ErrNoEndpoints = errors.New("no indexer endpoints configured")

// Endpoint is a named indexer.
type Endpoint struct {
	URL     string
	Indexer Indexer
}

// EndpointPool rotates over the configured endpoints in round-robin order.
type EndpointPool struct {
	mu        sync.Mutex
	endpoints []Endpoint
	current   int
}

// Current returns the active endpoint and its index.
func (p *EndpointPool) Current() (int, Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current, p.endpoints[p.current]
}

// Next switches to the following endpoint, wrapping to the first after the
// last, and returns its index.
func (p *EndpointPool) Next() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = (p.current + 1) % len(p.endpoints)
	return p.current
}

// Len is the number of endpoints in the pool.
func (p *EndpointPool) Len() int {
	return len(p.endpoints)
}

// NewEndpointPool builds a pool starting at the first endpoint.
func NewEndpointPool(endpoints ...Endpoint) (*EndpointPool, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	return &EndpointPool{endpoints: endpoints}, nil
}

// Package cache memoizes compiled networks by the hash of their DOT
// source. Concurrent requests for the same source share one in-flight
// compilation; errors and panics are returned to every waiter and never
// cached.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/awmpietro/golang-bayesnet-inference-case/internal/bayes"
)

type InMemory struct {
	mu       sync.Mutex
	max      int
	items    map[string]*bayes.Network
	inflight map[string]*entry
}

type entry struct {
	ready chan struct{}
	net   *bayes.Network
	err   error
}

func NewInMemory(max int) *InMemory {
	return &InMemory{
		max:      max,
		items:    make(map[string]*bayes.Network, max),
		inflight: make(map[string]*entry),
	}
}

func (c *InMemory) GetOrCompute(dot string, fn func() (*bayes.Network, error)) (*bayes.Network, error) {
	key := hash(dot)

	c.mu.Lock()
	if v, ok := c.items[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	if e, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-e.ready
		return e.net, e.err
	}

	e := &entry{ready: make(chan struct{})}
	c.inflight[key] = e
	c.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				e.net, e.err = nil, fmt.Errorf("compile panicked: %v", r)
			}
			close(e.ready)

			c.mu.Lock()
			delete(c.inflight, key)
			if e.err == nil && len(c.items) < c.max {
				c.items[key] = e.net
			}
			c.mu.Unlock()
		}()
		e.net, e.err = fn()
	}()

	return e.net, e.err
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

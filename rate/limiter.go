// Package rate tracks a token-bucket limiter per client id.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per client id and forgets clients
// that stay quiet longer than the expiry.
type Limiter struct {
	rps    float64
	burst  int
	expiry time.Duration

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewLimiter(rps float64, burst int, expiry time.Duration) *Limiter {
	l := &Limiter{
		rps:     rps,
		burst:   burst,
		expiry:  expiry,
		clients: make(map[string]*client),
	}
	go l.evict()
	return l
}

// Allow reports whether the client may proceed, creating its bucket on
// first sight.
func (l *Limiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.clients[id]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[id] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter.Allow()
}

func (l *Limiter) evict() {
	for {
		time.Sleep(time.Minute)

		l.mu.Lock()
		for id, cl := range l.clients {
			if time.Since(cl.lastAccess) > l.expiry {
				delete(l.clients, id)
			}
		}
		l.mu.Unlock()
	}
}

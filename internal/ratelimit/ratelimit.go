// Package ratelimit guards the Login driver against connection floods from
// a single source address, grounded in the loginsQuota field seen ahead of
// the handshake handler in mcplaynetwork-gate-arm's fork of Gate ("Client
// IP-block rate limiter preventing too fast logins hitting the Mojang
// API"). It is consulted once per accepted socket, before any packet is
// read.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token-bucket per source IP, evicted lazily so the map
// cannot grow unbounded under a sustained flood from distinct addresses.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

type bucket struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// New returns a Limiter allowing burst immediate logins per source IP, then
// refilling at r per second. idleTTL controls how long an IP's bucket is
// kept before being swept on the next Allow call that touches the map.
func New(r rate.Limit, burst int, idleTTL time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    r,
		burst:   burst,
		idleTTL: idleTTL,
	}
}

// Allow reports whether a login attempt from ip may proceed.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastUse = now
	return b.limiter.Allow()
}

// sweep drops buckets idle for longer than idleTTL. Called with mu held.
func (l *Limiter) sweep(now time.Time) {
	if l.idleTTL <= 0 {
		return
	}
	for ip, b := range l.buckets {
		if now.Sub(b.lastUse) > l.idleTTL {
			delete(l.buckets, ip)
		}
	}
}

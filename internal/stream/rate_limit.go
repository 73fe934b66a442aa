package stream

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map; beyond it, idle buckets get pruned.
const maxTrackedIPs = 1024

// ipLimiter applies a token-bucket rate to connection attempts per client
// IP. Buckets are created on first sight and dropped after ten idle
// minutes once the map grows past maxTrackedIPs.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter allows ratePerMin connection attempts per minute per IP with
// the given burst.
func newIPLimiter(ratePerMin, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(ratePerMin) / 60),
		burst:   burst,
	}
}

// allow reports whether a connection attempt from ip may proceed.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = time.Now()

	if len(l.buckets) > maxTrackedIPs {
		l.prune()
	}
	return b.lim.Allow()
}

func (l *ipLimiter) prune() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

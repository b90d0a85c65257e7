package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	clients  map[string]*ratelimit.Bucket
	onReject func()
	rate     float64
	capacity int64
	mu       sync.RWMutex
}

// NewRateLimiter creates a limiter refilling rate tokens per second up to capacity.
func NewRateLimiter(rate float64, capacity int64) *RateLimiter {
	return &RateLimiter{
		clients:  make(map[string]*ratelimit.Bucket),
		rate:     rate,
		capacity: capacity,
	}
}

func (rl *RateLimiter) getBucket(client string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[client]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if bucket, exists = rl.clients[client]; !exists {
			bucket = ratelimit.NewBucketWithRate(rl.rate, rl.capacity)
			rl.clients[client] = bucket
		}
		rl.mu.Unlock()
	}

	return bucket
}

// Cleanup drops clients whose buckets have refilled, every interval until ctx ends.
func (rl *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.prune()
			}
		}
	}()
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, bucket := range rl.clients {
		if bucket.Available() == bucket.Capacity() {
			delete(rl.clients, client)
		}
	}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}

func tokenCost(r *http.Request) int64 {
	switch r.URL.Path {
	case "/health", "/metrics":
		return 0
	}
	return 1
}

func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests from clients that ran out of tokens.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := tokenCost(r)
		if cost == 0 {
			next.ServeHTTP(w, r)
			return
		}

		bucket := rl.getBucket(clientAddress(r))

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.capacity, 10))
		if bucket.TakeAvailable(cost) < cost {
			if rl.onReject != nil {
				rl.onReject()
			}
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}

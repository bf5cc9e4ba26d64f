package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mezonai/rollupstate/exception"
)

// Config holds a sliding window limit
type Config struct {
	MaxRequests     int           // requests allowed per key within WindowSize
	WindowSize      time.Duration // length of the sliding window
	CleanupInterval time.Duration // how often idle keys are forgotten
}

func DefaultConfig() *Config {
	return &Config{
		MaxRequests:     50,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter implements sliding window rate limiting per key
type Limiter struct {
	config   *Config
	requests map[string][]time.Time
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		config:   config,
		requests: make(map[string][]time.Time),
		stop:     make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		exception.SafeGo("ratelimit cleanup", l.cleanupLoop)
	}
	return l
}

// Allow records a request for key and reports whether it fits in the window
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-l.config.WindowSize)

	l.mu.Lock()
	defer l.mu.Unlock()

	valid := pruneBefore(l.requests[key], cutoff)
	if len(valid) >= l.config.MaxRequests {
		l.requests[key] = valid
		return false
	}
	l.requests[key] = append(valid, now)
	return true
}

// Count returns the requests of key still inside the window
func (l *Limiter) Count(key string) int {
	cutoff := time.Now().Add(-l.config.WindowSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	return len(pruneBefore(l.requests[key], cutoff))
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	return entries[i:]
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	cutoff := time.Now().Add(-l.config.WindowSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entries := range l.requests {
		if valid := pruneBefore(entries, cutoff); len(valid) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = valid
		}
	}
}

// Stop ends the cleanup goroutine
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Middleware rejects requests from a client IP that exceeded its limit by calling reject
func (l *Limiter) Middleware(reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ClientIP(r)) {
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

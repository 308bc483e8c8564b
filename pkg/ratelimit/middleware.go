package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Config holds per-IP rate limiting configuration.
type Config struct {
	Enabled    bool
	Capacity   int     // Max burst
	RefillRate float64 // Requests per second
	BucketTTL  time.Duration
}

// DefaultConfig returns a sensible default configuration: 100 requests per
// minute per IP, buckets kept for an hour after last use.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Capacity:   100,
		RefillRate: 100.0 / 60.0,
		BucketTTL:  1 * time.Hour,
	}
}

// Middleware applies per-IP token bucket rate limiting.
type Middleware struct {
	config  Config
	limiter *Limiter
}

// NewMiddleware creates a rate limiting middleware from the config.
func NewMiddleware(config Config) *Middleware {
	return &Middleware{
		config:  config,
		limiter: NewLimiter(config.Capacity, config.RefillRate, config.BucketTTL),
	}
}

// Handler is the chi-compatible middleware function.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !m.limiter.Allow(ip) {
			slog.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address, preferring forwarding headers set by
// a trusted proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

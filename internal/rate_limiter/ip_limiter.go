package ratelimiter

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/facenoel/chatter/internal/metrics"
)

type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type ipAddr string

type IPRateLimiter struct {
	limiters map[ipAddr]*rate.Limiter
	lastSeen map[ipAddr]time.Time
	mu       sync.Mutex
	Cancel   context.CancelFunc
	rate     rate.Limit
	burst    int
	window   time.Duration
	logger   zerolog.Logger
	CleanupOpts
}

func NewIPRateLimiter(requests int, window time.Duration, cleanupOpts CleanupOpts, logger zerolog.Logger) *IPRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &IPRateLimiter{
		limiters:    make(map[ipAddr]*rate.Limiter),
		lastSeen:    make(map[ipAddr]time.Time),
		Cancel:      cancel,
		rate:        rate.Every(window / time.Duration(requests)),
		burst:       requests,
		window:      window,
		logger:      logger,
		CleanupOpts: cleanupOpts,
	}

	go rl.cleanup(ctx)

	return rl
}

func (rl *IPRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()

			for ip, ls := range rl.lastSeen {
				if time.Since(ls) > rl.TTL {
					delete(rl.limiters, ip)
					delete(rl.lastSeen, ip)
				}
			}

			rl.mu.Unlock()
		}
	}
}

// GetClientIP expects chi's RealIP middleware to have already resolved
// proxy headers into RemoteAddr.
func (rl *IPRateLimiter) GetClientIP(r *http.Request) ipAddr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ipAddr(strings.TrimSpace(r.RemoteAddr))
	}

	return ipAddr(host)
}

func (rl *IPRateLimiter) Allow(ip ipAddr) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.limiters[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = bucket
	}

	rl.lastSeen[ip] = time.Now()
	return bucket.Allow()
}

// Tracked returns how many addresses currently hold a bucket.
func (rl *IPRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.GetClientIP(r)

		if !rl.Allow(ip) {
			metrics.RateLimitHits.WithLabelValues("http").Inc()
			rl.logger.Warn().
				Str("ip", string(ip)).
				Str("path", r.URL.Path).
				Str("method", r.Method).
				Msg("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int((rl.window/time.Duration(rl.burst)).Seconds())+1))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests, try again later"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

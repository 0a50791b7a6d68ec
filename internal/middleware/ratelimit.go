package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dukerupert/burgerbuilder/internal/domain"
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	// Rate is the sustained number of requests per second per key.
	Rate rate.Limit

	// Burst is how many requests a key may make at once.
	Burst int

	// IdleTTL is how long an unused key is remembered.
	IdleTTL time.Duration

	// KeyFunc picks the bucket for a request. Default: client IP.
	KeyFunc func(r *http.Request) string
}

// DefaultRateLimiterConfig limits every request by client IP. Typing into
// the contact form posts once per field change, so the burst is generous.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:    10,
		Burst:   40,
		IdleTTL: 5 * time.Minute,
		KeyFunc: GetClientIP,
	}
}

// SubmitRateLimiterConfig limits order submissions per shopper session,
// falling back to the client IP for requests without one.
func SubmitRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:    rate.Every(10 * time.Second),
		Burst:   3,
		IdleTTL: 5 * time.Minute,
		KeyFunc: SessionKey,
	}
}

// SessionKey keys a request by shopper session. It needs the Session
// middleware to run first.
func SessionKey(r *http.Request) string {
	if sess := GetSession(r.Context()); sess != nil {
		return "session:" + sess.ID.String()
	}
	return "ip:" + GetClientIP(r)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per key in memory.
type RateLimiter struct {
	config   RateLimiterConfig
	mu       sync.Mutex
	visitors map[string]*visitor
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts evicting idle keys.
// Call Stop to end the eviction goroutine.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = GetClientIP
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}

	rl := &RateLimiter{
		config:   config,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// reserve takes a token for key. When none is available it returns how long
// until one is.
func (rl *RateLimiter) reserve(key string) (bool, time.Duration) {
	res := rl.limiter(key).Reserve()
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header in whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.reserve(rl.config.KeyFunc(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			reject(w, r, domain.Errorf(domain.ERATELIMIT, "", "Too many requests. Please slow down."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.config.IdleTTL)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evict(now)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.config.IdleTTL {
			delete(rl.visitors, key)
		}
	}
}

// Stop ends idle key eviction. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per key.
type limiterPool struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	idleTTL  time.Duration
}

func newLimiterPool(idleTTL time.Duration) *limiterPool {
	return &limiterPool{visitors: make(map[string]*visitor), idleTTL: idleTTL}
}

func (p *limiterPool) get(key string, requestsPerWindow, windowSeconds, burst int) *rate.Limiter {
	if requestsPerWindow <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if v, exists := p.visitors[key]; exists {
		v.lastSeen = time.Now()
		return v.limiter
	}

	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	if burst < requestsPerWindow {
		burst = requestsPerWindow
	}

	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerWindow)/float64(windowSeconds)), burst)
	p.visitors[key] = &visitor{limiter: limiter, lastSeen: time.Now()}
	return limiter
}

func (p *limiterPool) cleanup(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, v := range p.visitors {
		if now.Sub(v.lastSeen) > p.idleTTL {
			delete(p.visitors, key)
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visitors)
}

// RateLimitManager owns the per-IP request limiters and the per-learner quiz
// submission limiters, and evicts idle ones in the background.
type RateLimitManager struct {
	visitors    *limiterPool
	submissions *limiterPool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRateLimitManager(ctx context.Context) *RateLimitManager {
	managerCtx, cancel := context.WithCancel(ctx)

	m := &RateLimitManager{
		visitors:    newLimiterPool(3 * time.Minute),
		submissions: newLimiterPool(10 * time.Minute),
		ctx:         managerCtx,
		cancel:      cancel,
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// GetVisitor returns the request limiter for ip, or nil when limiting is off.
func (m *RateLimitManager) GetVisitor(ip string, requestsPerWindow, windowSeconds, burst int) *rate.Limiter {
	return m.visitors.get(ip, requestsPerWindow, windowSeconds, burst)
}

// GetSubmissionLimiter returns the quiz submission limiter for a learner.
func (m *RateLimitManager) GetSubmissionLimiter(key string, perMinute int) *rate.Limiter {
	return m.submissions.get(key, perMinute, 60, perMinute)
}

func (m *RateLimitManager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.visitors.cleanup(now)
			m.submissions.cleanup(now)
		}
	}
}

// Shutdown stops the cleanup goroutine and waits for it to finish
func (m *RateLimitManager) Shutdown() error {
	m.cancel()
	m.wg.Wait()
	return nil
}

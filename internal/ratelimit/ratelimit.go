package ratelimit

import (
	"sync"
	"time"
)

// Token-bucket limiter for inbound messages on one session
type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}

	return false
}

// SessionLimiters hands out one limiter per session id. Entries are
// removed when the session disconnects.
type SessionLimiters struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	mu       sync.RWMutex
}

func NewSessionLimiters(rate float64, burst int) *SessionLimiters {
	return &SessionLimiters{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
	}
}

func (sl *SessionLimiters) Get(sessionID string) *Limiter {
	sl.mu.RLock()
	limiter, ok := sl.limiters[sessionID]
	sl.mu.RUnlock()

	if ok {
		return limiter
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if limiter, ok := sl.limiters[sessionID]; ok {
		return limiter
	}

	limiter = NewLimiter(sl.rate, sl.burst)
	sl.limiters[sessionID] = limiter
	return limiter
}

func (sl *SessionLimiters) Remove(sessionID string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	delete(sl.limiters, sessionID)
}

func (sl *SessionLimiters) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return len(sl.limiters)
}

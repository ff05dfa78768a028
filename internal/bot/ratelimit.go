package bot

import (
	"sync"
	"time"
)

const (
	MaxRequestsPerMinute = 30 // Максимум запросов в минуту на пользователя
	RateLimitWindow      = time.Minute
)

// RateLimiter простой rate limiter для пользователей со скользящим окном
type RateLimiter struct {
	requests  map[int64][]time.Time
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
	mutex     sync.Mutex
}

// NewRateLimiter создает rate limiter. limit <= 0 заменяется значением по умолчанию.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = MaxRequestsPerMinute
	}
	if window <= 0 {
		window = RateLimitWindow
	}
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// IsAllowed проверяет, разрешен ли запрос для пользователя
func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	rl.evictIdle(now)

	// Удаляем старые запросы
	valid := rl.requests[userID][:0]
	for _, reqTime := range rl.requests[userID] {
		if now.Sub(reqTime) < rl.window {
			valid = append(valid, reqTime)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[userID] = valid
		return false
	}

	rl.requests[userID] = append(valid, now)
	return true
}

// evictIdle раз в окно удаляет пользователей без запросов в текущем окне
func (rl *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now

	for userID, times := range rl.requests {
		if len(times) == 0 || now.Sub(times[len(times)-1]) >= rl.window {
			delete(rl.requests, userID)
		}
	}
}

package mind

import (
	"golang.org/x/time/rate"
)

// Generation budget across all groups. Two token buckets: a short one that
// smooths bursts and a long one that caps hourly spend.
const (
	generatePerMinute = 8
	generatePerHour   = 120
)

// GenerateLimiter bounds how often the engine may call the AI provider.
// Decisions that pass the engagement gate can still be vetoed here; the
// reply is skipped, not queued.
type GenerateLimiter struct {
	minute *rate.Limiter
	hourly *rate.Limiter
}

func NewGenerateLimiter() *GenerateLimiter {
	return &GenerateLimiter{
		minute: rate.NewLimiter(rate.Limit(generatePerMinute)/60.0, generatePerMinute),
		hourly: rate.NewLimiter(rate.Limit(generatePerHour)/3600.0, generatePerHour),
	}
}

// Allow consumes one token from both buckets. Both must have capacity.
func (l *GenerateLimiter) Allow() bool {
	if !l.minute.Allow() {
		return false
	}
	if !l.hourly.Allow() {
		// Keep the buckets consistent: the minute token is already spent,
		// which only makes the limiter slightly stricter.
		return false
	}
	return true
}

package service

import "time"

const (
	DefaultMaxRetries = 3
	DefaultBackoffCap = 60 * time.Minute
)

// RetryDelay is the wait before retry number retryCount: 2^retryCount
// minutes, capped.
func RetryDelay(retryCount int, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = DefaultBackoffCap
	}
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 16 {
		return limit
	}
	d := time.Duration(1<<uint(retryCount)) * time.Minute
	if d > limit {
		return limit
	}
	return d
}

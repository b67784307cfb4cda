package model

import "context"

// AttemptLimiter counts attempts against a set of keys inside a rolling
// window. Every call counts as an attempt, allowed or not.
type AttemptLimiter interface {
	Allow(ctx context.Context, keys ...string) (bool, error)
}

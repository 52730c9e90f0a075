package gate

import (
	"context"
	"time"

	"github.com/limitwarden/limitwarden/internal/policy"
)

// Result describes the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining float64
	Reset     time.Time
}

// Limiter applies a committed policy snapshot to one request.
type Limiter interface {
	Allow(ctx context.Context, key policy.Key, pol policy.Policy, now time.Time) (Result, error)
}

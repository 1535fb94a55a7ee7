package numerator

import (
	"context"
	"time"
)

// Generator hands out sequential document numbers.
type Generator interface {
	// GetNextNumber returns the next number for cfg in the given period,
	// e.g. MV-2026-00001.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}

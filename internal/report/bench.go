package report

import (
	"context"
	"fmt"
	"time"
)

// MeanOf runs fn the given number of times and returns the mean duration.
// The first error aborts the measurement.
func MeanOf(ctx context.Context, runs int, fn func(context.Context) error) (time.Duration, error) {
	if runs <= 0 {
		return 0, fmt.Errorf("runs must be positive, got %d", runs)
	}
	var total time.Duration
	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		start := time.Now()
		if err := fn(ctx); err != nil {
			return 0, fmt.Errorf("run %d: %w", i+1, err)
		}
		total += time.Since(start)
	}
	return total / time.Duration(runs), nil
}

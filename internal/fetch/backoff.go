package fetch

import (
	"math/rand"
	"time"
)

// jitterFraction spreads retry delays ±20% so many workers backing off
// from one host do not reconverge on the same instant.
const jitterFraction = 0.2

// backoff computes the delay before the next attempt: the base delay
// doubles per completed attempt and is then jittered. randFn is a test
// seam; nil uses math/rand.
func backoff(base time.Duration, attempt int, randFn func() float64) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << (attempt - 1)
	if randFn == nil {
		randFn = rand.Float64
	}
	// randFn in [0,1) -> factor in [1-j, 1+j)
	factor := 1 + jitterFraction*(2*randFn()-1)
	return time.Duration(float64(d) * factor)
}

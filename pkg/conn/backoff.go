package conn

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// secureRandomDuration returns a cryptographically secure random duration
// in the range [0, max). Used for backoff jitter to avoid thundering herd
// when many clients reconnect at once.
func secureRandomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := cryptorand.Read(b[:]); err != nil {
		// Fallback to zero jitter if crypto/rand fails (very unlikely)
		return 0
	}

	n := binary.LittleEndian.Uint64(b[:])

	return time.Duration(n % uint64(max))
}

// calculateBackoff computes the delay before reconnect attempt number
// attempt (0-based): initial * 2^attempt, capped at max, with up to ±10%
// jitter.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := time.Duration(float64(initial) * math.Pow(2, float64(attempt)))
	if backoff > max || backoff <= 0 {
		backoff = max
	}

	jitterRange := backoff / 10
	jitter := secureRandomDuration(2*jitterRange) - jitterRange

	return backoff + jitter
}

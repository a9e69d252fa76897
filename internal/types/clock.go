package types

import "time"

// Clock abstracts time for testability. Token expiry and sensor recency
// windows are evaluated against an injected clock so tests can advance time
// deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

var _ Clock = RealClock{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

package feed

import (
	"math"
	"time"
)

// ReconnectPolicy controls redials after the connection drops. The zero value
// never reconnects.
type ReconnectPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultReconnectPolicy: 5 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

func (p ReconnectPolicy) Enabled() bool { return p.MaxAttempts > 0 }

// ShouldRetry reports whether attempt (1-indexed) may redial.
func (p ReconnectPolicy) ShouldRetry(attempt int) bool {
	return p.Enabled() && attempt <= p.MaxAttempts
}

// NextDelay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p ReconnectPolicy) NextDelay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Source skipped
	StateHalfOpen BreakerState = "half_open" // Probing recovery
)

// BreakerConfig holds circuit breaker configuration for one data source
type BreakerConfig struct {
	Enabled             bool `json:"enabled"`
	MaxConsecutiveFails int  `json:"max_consecutive_fails"` // Failures before opening
	CooldownSeconds     int  `json:"cooldown_seconds"`      // Cooldown after trip
	MaxFailsPerMinute   int  `json:"max_fails_per_minute"`  // Burst failure limit
}

// DefaultBreakerConfig returns safe defaults
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Enabled:             true,
		MaxConsecutiveFails: 5,
		CooldownSeconds:     60,
		MaxFailsPerMinute:   15,
	}
}

// Breaker shields a market data source. Repeated failures open the
// breaker so the caller skips straight to its fallback source; after
// the cooldown one probe request is allowed through.
type Breaker struct {
	name             string
	config           *BreakerConfig
	state            BreakerState
	consecutiveFails int
	failsLastMinute  int
	lastTripTime     time.Time
	minuteResetTime  time.Time
	tripReason       string
	mu               sync.RWMutex
	onTrip           func(source, reason string)
}

// NewBreaker creates a circuit breaker for a named data source
func NewBreaker(name string, config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{
		name:            name,
		config:          config,
		state:           StateClosed,
		minuteResetTime: time.Now().Add(time.Minute),
	}
}

// OnTrip sets the callback invoked when the breaker opens
func (b *Breaker) OnTrip(handler func(source, reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// Allow reports whether a request may go to this source. While open it
// returns false with the trip reason; once the cooldown has passed the
// breaker moves to half-open and lets one probe through.
func (b *Breaker) Allow() (bool, string) {
	if !b.config.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersIfNeeded()

	if b.state == StateOpen {
		elapsed := time.Since(b.lastTripTime)
		cooldown := time.Duration(b.config.CooldownSeconds) * time.Second
		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return false, fmt.Sprintf("%s open, cooldown remaining: %v (reason: %s)",
				b.name, remaining.Round(time.Second), b.tripReason)
		}
		b.state = StateHalfOpen
	}

	if b.failsLastMinute >= b.config.MaxFailsPerMinute {
		return false, fmt.Sprintf("%s failure rate limit: %d fails/minute", b.name, b.failsLastMinute)
	}

	return true, ""
}

// RecordSuccess marks a successful fetch. A half-open probe success
// closes the breaker.
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFails = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.tripReason = ""
	}
}

// RecordFailure marks a failed fetch and trips the breaker once the
// consecutive-failure threshold is reached.
func (b *Breaker) RecordFailure() {
	if !b.config.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetCountersIfNeeded()
	b.consecutiveFails++
	b.failsLastMinute++

	if b.state == StateHalfOpen {
		b.trip("probe failed")
		return
	}
	if b.consecutiveFails >= b.config.MaxConsecutiveFails {
		b.trip(fmt.Sprintf("consecutive failures: %d", b.consecutiveFails))
	}
}

func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.lastTripTime = time.Now()
	b.tripReason = reason

	if b.onTrip != nil {
		go b.onTrip(b.name, reason)
	}
}

func (b *Breaker) resetCountersIfNeeded() {
	now := time.Now()
	if now.After(b.minuteResetTime) {
		b.failsLastMinute = 0
		b.minuteResetTime = now.Add(time.Minute)
	}
}

// ForceReset manually closes the breaker
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFails = 0
	b.tripReason = ""
}

// GetState returns the current breaker state
func (b *Breaker) GetState() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetStats returns current statistics for the status endpoint
func (b *Breaker) GetStats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"source":            b.name,
		"state":             string(b.state),
		"consecutive_fails": b.consecutiveFails,
		"fails_last_minute": b.failsLastMinute,
		"trip_reason":       b.tripReason,
		"last_trip_time":    b.lastTripTime,
	}
}

package circuit

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("primary", &BreakerConfig{
		Enabled:             true,
		MaxConsecutiveFails: 3,
		CooldownSeconds:     60,
		MaxFailsPerMinute:   100,
	})

	// The trip callback fires on its own goroutine.
	tripped := make(chan string, 1)
	b.OnTrip(func(source, reason string) { tripped <- source })

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if ok, _ := b.Allow(); !ok {
		t.Fatal("breaker should still be closed below the threshold")
	}

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Fatalf("state = %s, want open", b.GetState())
	}
	if ok, reason := b.Allow(); ok || reason == "" {
		t.Error("open breaker must refuse requests with a reason")
	}

	select {
	case source := <-tripped:
		if source != "primary" {
			t.Errorf("trip callback got %q", source)
		}
	case <-time.After(time.Second):
		t.Fatal("trip callback never fired")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("fallback", &BreakerConfig{
		Enabled:             true,
		MaxConsecutiveFails: 1,
		CooldownSeconds:     0,
		MaxFailsPerMinute:   100,
	})

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Fatal("breaker should open after one failure")
	}

	// Zero cooldown: the next Allow moves to half-open
	if ok, _ := b.Allow(); !ok {
		t.Fatal("probe should be allowed after cooldown")
	}
	if b.GetState() != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", b.GetState())
	}

	b.RecordSuccess()
	if b.GetState() != StateClosed {
		t.Fatalf("state = %s, want closed after probe success", b.GetState())
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker("primary", &BreakerConfig{
		Enabled:             true,
		MaxConsecutiveFails: 2,
		CooldownSeconds:     0,
		MaxFailsPerMinute:   100,
	})

	b.RecordFailure()
	b.RecordFailure()
	b.Allow() // half-open
	b.RecordFailure()

	if b.GetState() != StateOpen {
		t.Fatalf("state = %s, want open after failed probe", b.GetState())
	}
}

func TestDisabledBreakerAlwaysAllows(t *testing.T) {
	b := NewBreaker("primary", &BreakerConfig{Enabled: false, MaxConsecutiveFails: 1})
	b.RecordFailure()
	b.RecordFailure()
	if ok, _ := b.Allow(); !ok {
		t.Error("disabled breaker must always allow")
	}
	if b.GetState() != StateClosed {
		t.Error("disabled breaker should not change state")
	}
}

func TestForceResetClosesBreaker(t *testing.T) {
	b := NewBreaker("primary", &BreakerConfig{
		Enabled:             true,
		MaxConsecutiveFails: 1,
		CooldownSeconds:     300,
		MaxFailsPerMinute:   100,
	})

	b.RecordFailure()
	if b.GetState() != StateOpen {
		t.Fatal("breaker should be open")
	}

	b.ForceReset()
	if b.GetState() != StateClosed {
		t.Fatal("force reset should close the breaker")
	}
	if ok, _ := b.Allow(); !ok {
		t.Error("reset breaker should allow requests")
	}
}

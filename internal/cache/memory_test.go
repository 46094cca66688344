package cache

import (
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(time.Minute)

	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	m.Set("quote:AAPL", 187.5)
	v, ok := m.Get("quote:AAPL")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v.(float64) != 187.5 {
		t.Fatalf("value = %v, want 187.5", v)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(time.Minute)
	m.SetWithTTL("signal:MSFT", "stale", -time.Second)

	if _, ok := m.Get("signal:MSFT"); ok {
		t.Fatal("expired entry served")
	}

	m.CleanupExpired()
	m.mu.RLock()
	_, stillThere := m.items["signal:MSFT"]
	m.mu.RUnlock()
	if stillThere {
		t.Fatal("expired entry not removed by cleanup")
	}
}

func TestMemoryClear(t *testing.T) {
	m := NewMemory(time.Minute)
	m.Set("a", 1)
	m.Set("b", 2)
	m.Clear()
	if _, ok := m.Get("a"); ok {
		t.Fatal("entry survived Clear")
	}
}

package clock

import (
	"testing"
	"time"
)

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewFixed(start)
	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}
	got := c.Advance(29 * time.Minute)
	if !got.Equal(start.Add(29*time.Minute)) || !c.Now().Equal(got) {
		t.Fatalf("advance mismatch: %v", got)
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Fatalf("set mismatch: %v", c.Now())
	}
}

func TestOrDefaultsToReal(t *testing.T) {
	if _, ok := Or(nil).(Real); !ok {
		t.Fatalf("expected Real clock")
	}
	f := NewFixed(time.Unix(0, 0))
	if Or(f) != Clock(f) {
		t.Fatalf("expected passthrough")
	}
}

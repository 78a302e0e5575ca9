package transport

import (
	"testing"
	"time"
)

func TestBackoffDoubling(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffMonotonicUntilCap(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute)

	prev := b.Next()
	for i := 0; i < 20; i++ {
		cur := b.Next()
		if cur < prev {
			t.Fatalf("interval decreased: %v after %v", cur, prev)
		}
		if cur > time.Minute {
			t.Fatalf("interval %v exceeds cap", cur)
		}
		prev = cur
	}
	if prev != time.Minute {
		t.Errorf("final interval = %v, want cap %v", prev, time.Minute)
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)
	b.Next()
	b.Next()
	b.Reset()
	if got := b.Next(); got != 5*time.Second {
		t.Errorf("Next() after Reset = %v, want 5s", got)
	}
}

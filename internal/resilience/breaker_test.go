package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for range 3 {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	_ = b.Execute(func() error { return errBoom })
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe success, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}

func TestBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	_ = b.Execute(func() error { return errBoom })
	clock = clock.Add(2 * time.Minute)

	if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected underlying error from probe, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitUnknownLimiter(t *testing.T) {
	m := NewMultiLimiter()
	if err := m.Wait(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown limiter")
	}
}

func TestUnlimitedBudget(t *testing.T) {
	m := NewDefaultLimiter(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		if err := m.Wait(ctx, LimiterNews); err != nil {
			t.Fatalf("request %d delayed by unlimited limiter: %v", i, err)
		}
	}
}

func TestBurstIsHonoured(t *testing.T) {
	m := NewMultiLimiter()
	m.AddLimiter("slow", 0.001, 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := m.Wait(ctx, "slow"); err != nil {
			t.Fatalf("burst request %d: %v", i, err)
		}
	}
	// the next token is ~1000s away, past the deadline
	if err := m.Wait(ctx, "slow"); err == nil {
		t.Error("third request should exceed the burst")
	}
}

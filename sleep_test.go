package oms

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestShouldRetrySentinels(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("nil should not retry")
	}
	if ShouldRetry(context.Canceled) {
		t.Error("context.Canceled should not retry")
	}
	if ShouldRetry(context.DeadlineExceeded) {
		t.Error("context.DeadlineExceeded should not retry")
	}
	if !ShouldRetry(errors.New("connection reset")) {
		t.Error("generic transport error should retry")
	}
}

func TestTimedOutReportsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := TimedOut(ctx, "commit", time.Now(), 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTimedOutDurationExceeded(t *testing.T) {
	prevNow := Now
	defer func() { Now = prevNow }()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	Now = func() time.Time { return start.Add(2 * time.Second) }

	ctx := context.Background()
	if err := TimedOut(ctx, "commit", start, time.Second); err == nil {
		t.Error("expected timeout error")
	}
	if err := TimedOut(ctx, "commit", start, 3*time.Second); err != nil {
		t.Errorf("unexpected error inside the allowance: %v", err)
	}
}

func TestSleepHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Sleep(ctx, time.Minute)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep ignored context cancellation")
	}
}

func TestRetryGivesUpAfterExhaustion(t *testing.T) {
	calls := 0
	gaveUp := false
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		// Permanent failure, no retries wanted.
		return fmt.Errorf("schema mismatch")
	}, func(ctx context.Context) { gaveUp = true })
	if err == nil {
		t.Fatal("expected the task error")
	}
	if calls != 1 {
		t.Errorf("unretryable task ran %d times", calls)
	}
	if !gaveUp {
		t.Error("gave-up hook not invoked")
	}
}

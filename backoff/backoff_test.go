package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobrow/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponentialWithJitter_Bounds(t *testing.T) {
	e := backoff.NewExponentialWithJitter(100*time.Millisecond, time.Second)

	tests := []struct {
		attempt int
		upper   time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		for range 50 {
			got := e.Delay(tt.attempt)
			if got < 0 || got > tt.upper {
				t.Fatalf("Delay(%d) = %v, want within [0, %v]", tt.attempt, got, tt.upper)
			}
		}
	}
}

func TestCapped_LimitsDelay(t *testing.T) {
	c := backoff.Cap(backoff.NewConstant(time.Minute), 15*time.Second)
	if got := c.Delay(1); got != 15*time.Second {
		t.Errorf("Delay = %v, want 15s", got)
	}

	c = backoff.Cap(backoff.NewConstant(time.Second), 15*time.Second)
	if got := c.Delay(1); got != time.Second {
		t.Errorf("Delay = %v, want 1s", got)
	}
}

func TestDefaultStrategy(t *testing.T) {
	s := backoff.DefaultStrategy()
	if got := s.Delay(100); got > 30*time.Second {
		t.Errorf("default delay %v exceeds 30s", got)
	}
}

func TestPacer(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		p := backoff.NewPacer(0)
		for range 3 {
			if err := p.Wait(context.Background()); err != nil {
				t.Fatalf("Wait: %v", err)
			}
		}
	})

	t.Run("first wait is immediate", func(t *testing.T) {
		p := backoff.NewPacer(time.Hour)
		start := time.Now()
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if time.Since(start) > 100*time.Millisecond {
			t.Fatal("first Wait blocked")
		}
	})

	t.Run("deadline before next slot", func(t *testing.T) {
		p := backoff.NewPacer(time.Hour)
		_ = p.Wait(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := p.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want deadline exceeded", err)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		p := backoff.NewPacer(0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want canceled", err)
		}
	})
}

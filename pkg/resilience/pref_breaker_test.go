package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		Name:         "test-open",
		FailureRatio: 0.5,
		MinRequests:  2,
		OpenTimeout:  time.Minute,
		MaxHalfOpen:  1,
	})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if _, err := Execute(b, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if got := b.State(); got != "open" {
		t.Fatalf("state = %s, want open", got)
	}

	called := false
	_, err := Execute(b, func() (int, error) { called = true; return 1, nil })
	if !IsRejected(err) {
		t.Errorf("err = %v, want rejection", err)
	}
	if called {
		t.Error("wrapped call ran while breaker open")
	}
}

func TestBreaker_PassesResults(t *testing.T) {
	b := NewBreaker(DefaultBreakerConfig("test-pass"))

	got, err := Execute(b, func() ([]float32, error) { return []float32{1, 2}, nil })
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 2 || got[1] != 2 {
		t.Errorf("got %v", got)
	}

	none, err := Execute(b, func() ([]float32, error) { return nil, nil })
	if err != nil || none != nil {
		t.Errorf("nil result: got %v, %v", none, err)
	}
	if b.State() != "closed" {
		t.Errorf("state = %s", b.State())
	}
}

func TestIsRejected(t *testing.T) {
	if IsRejected(errors.New("other")) {
		t.Error("plain error reported as rejection")
	}
	if IsRejected(nil) {
		t.Error("nil reported as rejection")
	}
}

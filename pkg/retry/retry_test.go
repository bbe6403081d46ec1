package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"assetdex/pkg/fault"
)

func fastPolicy() Policy {
	return Policy{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxAttempts: 3}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &fault.TransientError{Op: "put", Err: errors.New("timeout")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("op called %d times, want 3", calls)
	}
}

func TestDoStopsOnTerminal(t *testing.T) {
	calls := 0
	wantErr := &fault.TerminalError{Op: "put", Err: errors.New("access denied")}
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return &fault.TransientError{Op: "get", Err: errors.New("throttled")}
	})
	if err == nil {
		t.Fatal("Do() error = nil, want transient error after exhaustion")
	}
	if calls != 3 {
		t.Fatalf("op called %d times, want 3", calls)
	}
}

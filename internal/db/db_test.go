package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForReady_RetriesUntilPingSucceeds(t *testing.T) {
	p := &flakyPinger{failures: 2}
	if err := WaitForReady(context.Background(), p, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestWaitForReady_Timeout(t *testing.T) {
	p := &flakyPinger{failures: 1 << 30}
	err := WaitForReady(context.Background(), p, 50*time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	err := &Error{Op: OpHGetAll, Err: ErrKeyNotFound}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatal("db.Error must unwrap to its cause")
	}
	if err.Error() != "HGETALL: db: key not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

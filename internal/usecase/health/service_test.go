package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockStorePinger struct {
	err error
}

func (m *mockStorePinger) Ping(_ context.Context) error { return m.err }

type mockBrowserState struct {
	state string
}

func (m *mockBrowserState) State() string { return m.state }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockBrowserState{state: "closed"})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["store"] != CheckOK {
		t.Errorf("expected store %q, got %q", CheckOK, r.Checks["store"])
	}
	if r.Checks["browser"] != CheckOK {
		t.Errorf("expected browser %q, got %q", CheckOK, r.Checks["browser"])
	}
}

func TestCheck_StoreError(t *testing.T) {
	svc := New(&mockStorePinger{err: errors.New("conn refused")}, &mockBrowserState{state: "closed"})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["store"] != CheckError {
		t.Errorf("expected store %q, got %q", CheckError, r.Checks["store"])
	}
}

func TestCheck_BreakerOpen(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockBrowserState{state: "open"})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["browser"] != CheckError {
		t.Errorf("expected browser %q, got %q", CheckError, r.Checks["browser"])
	}
}

func TestCheck_BreakerHalfOpen(t *testing.T) {
	svc := New(&mockStorePinger{}, &mockBrowserState{state: "half-open"})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["browser"] != CheckRecovering {
		t.Errorf("expected browser %q, got %q", CheckRecovering, r.Checks["browser"])
	}
}

func TestCheck_NoBrowser(t *testing.T) {
	svc := New(&mockStorePinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["browser"]; ok {
		t.Error("browser check should be absent when browser is nil")
	}
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newUnlockableGate(t *testing.T, ttl time.Duration) *SessionGate {
	t.Helper()
	hash, err := HashPasscode("1234")
	if err != nil {
		t.Fatalf("hash passcode: %v", err)
	}
	return NewSessionGate("test-secret", ttl, hash)
}

func TestUnlockWithCorrectPasscode(t *testing.T) {
	gate := newUnlockableGate(t, time.Hour)
	ctx := context.Background()

	if gate.Allowed(ctx) {
		t.Fatalf("fresh gate must be locked")
	}
	if gate.Reason() != "device locked" {
		t.Fatalf("unexpected reason %q", gate.Reason())
	}

	token, err := gate.Unlock("1234", "shop-counter")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a session token")
	}
	if !gate.Allowed(ctx) {
		t.Fatalf("gate must be open after unlock")
	}
}

func TestUnlockWithWrongPasscode(t *testing.T) {
	gate := newUnlockableGate(t, time.Hour)

	if _, err := gate.Unlock("9999", "shop-counter"); !errors.Is(err, ErrBadPasscode) {
		t.Fatalf("expected ErrBadPasscode, got %v", err)
	}
	if gate.Allowed(context.Background()) {
		t.Fatalf("failed unlock must leave the gate locked")
	}
}

func TestUnlockWithoutConfiguredHash(t *testing.T) {
	gate := NewSessionGate("test-secret", time.Hour, "")

	if _, err := gate.Unlock("1234", "shop-counter"); !errors.Is(err, ErrBadPasscode) {
		t.Fatalf("expected ErrBadPasscode when no hash is configured, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	gate := newUnlockableGate(t, time.Millisecond)
	ctx := context.Background()

	if _, err := gate.Unlock("1234", "shop-counter"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if gate.Allowed(ctx) {
		t.Fatalf("expired session must not pass the gate")
	}
	if gate.Reason() != "session expired" {
		t.Fatalf("unexpected reason %q", gate.Reason())
	}
}

func TestResumeAcrossRestart(t *testing.T) {
	gate := newUnlockableGate(t, time.Hour)
	token, err := gate.Unlock("1234", "shop-counter")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	// Same secret, fresh process.
	restarted := newUnlockableGate(t, time.Hour)
	if err := restarted.Resume(token); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !restarted.Allowed(context.Background()) {
		t.Fatalf("resumed session must be open")
	}
}

func TestResumeRejectsForeignToken(t *testing.T) {
	gate := newUnlockableGate(t, time.Hour)
	token, err := gate.Unlock("1234", "shop-counter")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}

	other := NewSessionGate("different-secret", time.Hour, "")
	if err := other.Resume(token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected rejection for token signed elsewhere, got %v", err)
	}
}

func TestLockEndsSession(t *testing.T) {
	gate := newUnlockableGate(t, time.Hour)
	if _, err := gate.Unlock("1234", "shop-counter"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	gate.Lock()

	if gate.Allowed(context.Background()) {
		t.Fatalf("gate must be locked after Lock")
	}
	if gate.Reason() != "device locked" {
		t.Fatalf("unexpected reason %q", gate.Reason())
	}
}

func TestStaticGate(t *testing.T) {
	ctx := context.Background()

	open := StaticGate{Open: true}
	if !open.Allowed(ctx) || open.Reason() != "" {
		t.Fatalf("open static gate must allow with no reason")
	}

	closed := StaticGate{Open: false}
	if closed.Allowed(ctx) {
		t.Fatalf("closed static gate must deny")
	}
	if closed.Reason() != "sync disabled" {
		t.Fatalf("unexpected default reason %q", closed.Reason())
	}
}

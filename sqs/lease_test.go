//nolint:paralleltest,testpackage // Tests need access to unexported functions
package sqs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewLease(t *testing.T) {
	now := time.Now()

	l := newLease("msg-1", 30, 128, now)

	if l.MessageID() != "msg-1" {
		t.Errorf("expected messageID 'msg-1', got %q", l.MessageID())
	}

	if !l.ReceivedAt().Equal(now) {
		t.Errorf("expected receivedAt %v, got %v", now, l.ReceivedAt())
	}

	if l.timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", l.timeout)
	}

	if l.Size() != 128 {
		t.Errorf("expected size 128, got %d", l.Size())
	}

	if l.Settled() {
		t.Error("expected a new lease to be unsettled")
	}
}

func TestLease_AckOnce(t *testing.T) {
	l := newLease("msg-1", 30, 0, time.Now())

	acks, nacks := 0, 0
	l.ackFunc = func() { acks++ }
	l.nackFunc = func() { nacks++ }

	l.Ack()
	l.Ack()
	l.Nack()

	if acks != 1 {
		t.Errorf("expected ackFunc to be called once, got %d", acks)
	}

	if nacks != 0 {
		t.Errorf("expected nackFunc not to be called, got %d", nacks)
	}

	if !l.Settled() {
		t.Error("expected lease to be settled")
	}
}

func TestLease_NackOnce(t *testing.T) {
	l := newLease("msg-1", 30, 0, time.Now())

	acks, nacks := 0, 0
	l.ackFunc = func() { acks++ }
	l.nackFunc = func() { nacks++ }

	l.Nack()
	l.Ack()

	if nacks != 1 || acks != 0 {
		t.Errorf("expected one nack and no ack, got %d nacks and %d acks", nacks, acks)
	}
}

func TestLease_SettleWithoutFuncs(t *testing.T) {
	l := newLease("msg-1", 30, 0, time.Now())

	l.Ack()

	if !l.Settled() {
		t.Error("expected lease to be settled")
	}
}

func TestLease_Due(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	l := newLease("msg-1", 30, 0, start)
	l.renewFunc = func(context.Context) error { return nil }

	if l.Due(start.Add(15 * time.Second)) {
		t.Error("expected lease not to be due at exactly half the timeout")
	}

	if !l.Due(start.Add(16 * time.Second)) {
		t.Error("expected lease to be due after half the timeout")
	}

	l.Ack()

	if l.Due(start.Add(time.Minute)) {
		t.Error("expected a settled lease never to be due")
	}
}

func TestLease_DueWithoutRenewFunc(t *testing.T) {
	start := time.Now()
	l := newLease("msg-1", 30, 0, start)

	if l.Due(start.Add(time.Minute)) {
		t.Error("expected a lease without renewFunc never to be due")
	}
}

func TestLease_Renew(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	l := newLease("msg-1", 30, 0, start)

	calls := 0
	l.renewFunc = func(context.Context) error {
		calls++
		return nil
	}

	renewedAt := start.Add(20 * time.Second)

	if err := l.Renew(t.Context(), renewedAt); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if calls != 1 {
		t.Errorf("expected renewFunc to be called once, got %d", calls)
	}

	if l.Due(renewedAt.Add(10 * time.Second)) {
		t.Error("expected renewal to reset the due time")
	}
}

func TestLease_RenewError(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	l := newLease("msg-1", 30, 0, start)
	l.renewFunc = func(context.Context) error { return errors.New("receipt handle expired") }

	if err := l.Renew(t.Context(), start.Add(20*time.Second)); err == nil {
		t.Fatal("expected error")
	}

	if !l.Due(start.Add(20 * time.Second)) {
		t.Error("expected a failed renewal to leave the lease due")
	}
}

func TestLease_RenewAfterSettle(t *testing.T) {
	l := newLease("msg-1", 30, 0, time.Now())

	called := false
	l.renewFunc = func(context.Context) error {
		called = true
		return nil
	}

	l.Nack()

	if err := l.Renew(t.Context(), time.Now()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if called {
		t.Error("expected renewFunc not to be called after settle")
	}
}

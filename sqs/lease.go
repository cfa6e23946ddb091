package sqs

import (
	"context"
	"sync"
	"time"
)

// lease tracks one received message from delivery until it is settled by
// Ack or Nack. While unsettled, the lease keeper renews its visibility
// timeout.
type lease struct {
	mu         sync.Mutex
	messageID  string
	receivedAt time.Time
	renewedAt  time.Time
	timeout    time.Duration
	size       int64
	ackFunc    func()
	nackFunc   func()
	renewFunc  func(ctx context.Context) error
	settled    bool
}

func newLease(messageID string, timeoutSeconds int32, size int, now time.Time) *lease {
	return &lease{
		messageID:  messageID,
		receivedAt: now,
		renewedAt:  now,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		size:       int64(size),
	}
}

func (l *lease) MessageID() string {
	return l.messageID
}

func (l *lease) ReceivedAt() time.Time {
	return l.receivedAt
}

func (l *lease) Size() int64 {
	return l.size
}

// Ack deletes the message. Only the first Ack or Nack has an effect.
func (l *lease) Ack() {
	l.settle(true)
}

// Nack makes the message visible again right away so it is redelivered
// without waiting for the visibility timeout. Only the first Ack or Nack has
// an effect.
func (l *lease) Nack() {
	l.settle(false)
}

func (l *lease) settle(ack bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.settled {
		return
	}

	l.settled = true
	l.renewFunc = nil

	f := l.nackFunc
	if ack {
		f = l.ackFunc
	}

	if f != nil {
		f()
	}
}

func (l *lease) Settled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.settled
}

// Due reports whether half of the visibility timeout has passed since the
// last renewal.
func (l *lease) Due(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return !l.settled && l.renewFunc != nil && now.Sub(l.renewedAt) > l.timeout/2
}

// Renew extends the visibility timeout. A settled lease is left alone.
func (l *lease) Renew(ctx context.Context, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.settled || l.renewFunc == nil {
		return nil
	}

	if err := l.renewFunc(ctx); err != nil {
		return err
	}

	l.renewedAt = now

	return nil
}

package sqs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentRenewals bounds ChangeMessageVisibility calls in flight
// during one sweep.
const maxConcurrentRenewals = 3

// leaseKeeper owns the leases of every delivered, unsettled message. It
// renews visibility timeouts and reports whether the receiver may fetch more.
//
// Renewal is best-effort: a lease whose renewal fails is dropped and its
// message becomes visible again when the current timeout runs out. Replaying
// a failure report twice only prints it twice.
type leaseKeeper struct {
	leases map[string]*lease
	count  atomic.Int64
	bytes  atomic.Int64
	opts   *Options
	logger types.Logger
}

func newLeaseKeeper(opts *Options, logger types.Logger) *leaseKeeper {
	return &leaseKeeper{
		leases: make(map[string]*lease),
		opts:   opts,
		logger: logger,
	}
}

// HasCapacity is safe to call from any goroutine.
func (k *leaseKeeper) HasCapacity() bool {
	return k.count.Load() < int64(k.opts.maxOutstandingMessages) &&
		k.bytes.Load() < int64(k.opts.maxOutstandingBytes)
}

func (k *leaseKeeper) run(ctx context.Context, sourceCh <-chan *lease) {
	k.logger.Debug("SQS lease keeper started")
	defer k.logger.Debug("SQS lease keeper exited")

	interval := max(time.Duration(k.opts.sqsVisibilityTimeoutSeconds/3)*time.Second, 5*time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.sweep(ctx)
		case l, ok := <-sourceCh:
			if !ok {
				return
			}

			k.track(l)
		}
	}
}

// sweep drops settled and over-age leases and renews the ones that are due.
func (k *leaseKeeper) sweep(ctx context.Context) {
	if len(k.leases) == 0 {
		return
	}

	now := k.opts.clock()
	due := []*lease{}

	for _, l := range k.leases {
		if l.Settled() {
			k.untrack(l)
			continue
		}

		if now.Sub(l.ReceivedAt())+l.timeout >= k.opts.maxLeaseDuration {
			k.logger.WithField("message_id", l.MessageID()).Warn("SQS message reached the maximum lease duration, it will become visible again")
			k.untrack(l)

			continue
		}

		if l.Due(now) {
			due = append(due, l)
		}
	}

	if len(due) == 0 {
		return
	}

	failed := k.renew(ctx, due, now)

	if ctx.Err() != nil {
		return
	}

	for _, l := range failed {
		k.untrack(l)
	}

	k.logger.WithField("renewed", len(due)-len(failed)).WithField("failed", len(failed)).Debug("SQS lease sweep completed")
}

// renew extends every due lease with at most maxConcurrentRenewals calls in
// flight and returns the leases whose renewal failed.
func (k *leaseKeeper) renew(ctx context.Context, due []*lease, now time.Time) []*lease {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []*lease
	)

	sem := semaphore.NewWeighted(maxConcurrentRenewals)

	for _, l := range due {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Go(func() {
			defer sem.Release(1)

			if err := l.Renew(ctx, now); err != nil {
				if ctx.Err() != nil {
					return
				}

				k.logger.WithField("message_id", l.MessageID()).Errorf("Failed to renew SQS message visibility, dropping lease: %v", err)

				mu.Lock()
				failed = append(failed, l)
				mu.Unlock()
			}
		})
	}

	wg.Wait()

	return failed
}

func (k *leaseKeeper) track(l *lease) {
	k.count.Add(1)
	k.bytes.Add(l.Size())

	k.leases[l.MessageID()] = l
}

func (k *leaseKeeper) untrack(l *lease) {
	if _, ok := k.leases[l.MessageID()]; !ok {
		return
	}

	k.count.Add(-1)
	k.bytes.Add(-l.Size())

	delete(k.leases, l.MessageID())
}

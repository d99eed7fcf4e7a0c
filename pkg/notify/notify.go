// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package notify fans a Store's commit notifications out to a
// Subscriber, retrying failed deliveries with backoff.
// store.Store.HandleCommit itself drops notifications a slow listener
// isn't ready for; Fanout sits downstream of Subscribe and buffers,
// batches and re-queues failed batches. A notification HandleCommit
// dropped never reaches Fanout, and a batch whose delivery fails while
// the queue is shutting down is dropped.
package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"k8s.io/client-go/util/workqueue"

	"github.com/atomicdata-dev/atomicd/pkg/store"
)

const (
	fanoutName          = "commit-notify-fanout"
	defaultMaxBatchSize = 100
	defaultFlushPeriod  = time.Second
)

// Subscriber receives batches of commit notifications. Deliver should
// return a non-nil error to trigger a retry with backoff; the batch is
// redelivered in full (not split) on retry.
type Subscriber interface {
	Deliver(ctx context.Context, batch []store.Notification) error
}

// SubscriberFunc adapts a function to a Subscriber.
type SubscriberFunc func(ctx context.Context, batch []store.Notification) error

func (f SubscriberFunc) Deliver(ctx context.Context, batch []store.Notification) error {
	return f(ctx, batch)
}

type notifyBatch struct {
	notifications []store.Notification
	id            uint64
}

var batchCounter uint64

func newNotifyBatch(n []store.Notification) *notifyBatch {
	return &notifyBatch{notifications: n, id: atomic.AddUint64(&batchCounter, 1)}
}

// Fanout subscribes to a Store's commit notifications and delivers them
// to a Subscriber in batches, retrying failed deliveries with backoff.
type Fanout struct {
	src        store.Store
	subscriber Subscriber
	logger     logr.Logger
	queue      workqueue.TypedRateLimitingInterface[*notifyBatch]

	mu    sync.Mutex
	batch *notifyBatch

	maxBatchSize int
	flushPeriod  time.Duration
}

type Option func(*Fanout)

func WithLogger(logger logr.Logger) Option {
	return func(f *Fanout) { f.logger = logger }
}

func WithMaxBatchSize(size int) Option {
	return func(f *Fanout) { f.maxBatchSize = size }
}

func WithFlushPeriod(period time.Duration) Option {
	return func(f *Fanout) { f.flushPeriod = period }
}

// NewFanout builds a Fanout against src, delivering to subscriber.
func NewFanout(src store.Store, subscriber Subscriber, opts ...Option) (*Fanout, error) {
	if src == nil {
		return nil, fmt.Errorf("notify: store can't be nil")
	}
	if subscriber == nil {
		return nil, fmt.Errorf("notify: subscriber can't be nil")
	}

	ratelimiter := workqueue.DefaultTypedControllerRateLimiter[*notifyBatch]()
	queue := workqueue.NewTypedRateLimitingQueueWithConfig(ratelimiter,
		workqueue.TypedRateLimitingQueueConfig[*notifyBatch]{Name: fanoutName},
	)

	f := &Fanout{
		src:          src,
		subscriber:   subscriber,
		queue:        queue,
		batch:        newNotifyBatch(nil),
		maxBatchSize: defaultMaxBatchSize,
		flushPeriod:  defaultFlushPeriod,
		logger:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Run consumes src's notification channel until ctx is done, batching
// and delivering via subscriber. It blocks until shutdown completes.
func (f *Fanout) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.deliverLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		f.batchFlusher(ctx)
	}()

	for n := range f.src.Subscribe() {
		f.mu.Lock()
		f.batch.notifications = append(f.batch.notifications, n)
		shouldFlush := len(f.batch.notifications) >= f.maxBatchSize
		f.mu.Unlock()

		if shouldFlush {
			f.flushBatch()
		}

		if ctx.Err() != nil {
			break
		}
	}

	f.logger.Info("shutting down commit notification fanout")
	f.flushBatch()
	f.queue.ShutDownWithDrain()
	wg.Wait()
	return nil
}

func (f *Fanout) flushBatch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batch.notifications) == 0 {
		return
	}
	f.queue.Add(f.batch)
	f.batch = newNotifyBatch(nil)
}

func (f *Fanout) batchFlusher(ctx context.Context) {
	ticker := time.NewTicker(f.flushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.flushBatch()
		}
	}
}

func (f *Fanout) deliverLoop(ctx context.Context) {
	for {
		batch, shutdown := f.queue.Get()
		if shutdown {
			return
		}
		f.deliver(ctx, batch)
		f.queue.Done(batch)
	}
}

func (f *Fanout) deliver(ctx context.Context, batch *notifyBatch) {
	_, err := backoff.Retry(ctx, func() (bool, error) {
		return true, f.subscriber.Deliver(ctx, batch.notifications)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))

	if err != nil {
		f.logger.Error(err, "failed to deliver commit notification batch", "batchID", batch.id, "size", len(batch.notifications))
		if !f.queue.ShuttingDown() {
			f.queue.AddRateLimited(batch)
		}
		return
	}
	f.queue.Forget(batch)
}

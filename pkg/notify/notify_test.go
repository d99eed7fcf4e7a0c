// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atomicdata-dev/atomicd/pkg/notify"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a notify.Subscriber that records every delivered batch,
// optionally failing the first N deliveries to exercise retry/backoff.
type recorder struct {
	mu        sync.Mutex
	batches   [][]store.Notification
	failUntil int
	calls     int
}

func (r *recorder) Deliver(ctx context.Context, batch []store.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failUntil {
		return errors.New("transient delivery failure")
	}
	cp := make([]store.Notification, len(batch))
	copy(cp, batch)
	r.batches = append(r.batches, cp)
	return nil
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func (r *recorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestNewFanout_RejectsNilStore(t *testing.T) {
	_, err := notify.NewFanout(nil, &recorder{})
	assert.Error(t, err)
}

func TestNewFanout_RejectsNilSubscriber(t *testing.T) {
	s := memstore.New("https://h", "https://h")
	_, err := notify.NewFanout(s, nil)
	assert.Error(t, err)
}

func TestFanout_DeliversNotificationsInBatches(t *testing.T) {
	s := memstore.New("https://h", "https://h")
	rec := &recorder{}
	f, err := notify.NewFanout(s, rec, notify.WithMaxBatchSize(2), notify.WithFlushPeriod(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.HandleCommit(store.Notification{Subject: "https://h/x", CommitURL: "https://h/commits/1"}))
	}

	require.Eventually(t, func() bool { return rec.total() == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestFanout_RetriesFailedDeliveryUntilSuccess(t *testing.T) {
	s := memstore.New("https://h", "https://h")
	rec := &recorder{failUntil: 2}
	f, err := notify.NewFanout(s, rec, notify.WithMaxBatchSize(1), notify.WithFlushPeriod(5*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	require.NoError(t, s.HandleCommit(store.Notification{Subject: "https://h/x", CommitURL: "https://h/commits/1"}))

	require.Eventually(t, func() bool { return rec.batchCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.total())

	cancel()
	<-done
}

func TestFanout_FlushesOnShutdownEvenBelowBatchSize(t *testing.T) {
	s := memstore.New("https://h", "https://h")
	rec := &recorder{}
	f, err := notify.NewFanout(s, rec, notify.WithMaxBatchSize(100), notify.WithFlushPeriod(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	require.NoError(t, s.HandleCommit(store.Notification{Subject: "https://h/x", CommitURL: "https://h/commits/1"}))
	time.Sleep(20 * time.Millisecond)

	cancel()
	s.Close()
	<-done

	assert.Equal(t, 1, rec.total(), "a single buffered notification should flush on shutdown without waiting for a full batch or the flush period")
}

func TestSubscriberFunc_AdaptsPlainFunction(t *testing.T) {
	var got []store.Notification
	sub := notify.SubscriberFunc(func(ctx context.Context, batch []store.Notification) error {
		got = batch
		return nil
	})
	require.NoError(t, sub.Deliver(context.Background(), []store.Notification{{Subject: "https://h/x"}}))
	require.Len(t, got, 1)
	assert.Equal(t, "https://h/x", got[0].Subject)
}

package infrastructure

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	mu       sync.Mutex
	requests [][2]int64 // (couponID, userID)
	err      error
}

func (p *recordingProducer) PublishIssueRequested(_ context.Context, couponID, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.requests = append(p.requests, [2]int64{couponID, userID})
	return nil
}

func (p *recordingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *recordingProducer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func TestDrainMovesQueuedRequestsToProducer(t *testing.T) {
	ctx := context.Background()
	queue := NewInMemoryIssueGate()
	producer := &recordingProducer{}
	scheduler := NewQueueScheduler(queue, producer, time.Second)

	for userID := int64(1); userID <= 3; userID++ {
		_, _, err := queue.Enqueue(ctx, 10, userID)
		require.NoError(t, err)
	}
	_, _, err := queue.Enqueue(ctx, 20, 99)
	require.NoError(t, err)

	scheduler.drainAll(ctx)

	assert.Equal(t, 4, producer.count())

	// 队列已清空
	pending, err := queue.PendingCoupons(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainRespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	queue := NewInMemoryIssueGate()
	producer := &recordingProducer{}
	scheduler := NewQueueScheduler(queue, producer, time.Second)

	for userID := int64(1); userID <= drainBatchSize+5; userID++ {
		_, _, err := queue.Enqueue(ctx, 10, userID)
		require.NoError(t, err)
	}

	scheduler.drainAll(ctx)
	assert.Equal(t, drainBatchSize, producer.count())

	// 下一轮搬运剩下的
	scheduler.drainAll(ctx)
	assert.Equal(t, drainBatchSize+5, producer.count())
}

// 发布失败的请求退回队列，下一轮重试后仍会被送达，不会被丢掉。
func TestDrainRequeuesOnProducerFailure(t *testing.T) {
	ctx := context.Background()
	queue := NewInMemoryIssueGate()
	producer := &recordingProducer{err: errors.New("broker unavailable")}
	scheduler := NewQueueScheduler(queue, producer, time.Second)

	_, _, err := queue.Enqueue(ctx, 10, 1)
	require.NoError(t, err)

	scheduler.drainAll(ctx)
	assert.Equal(t, 0, producer.count())

	// 请求还在队列里等待下一轮
	pending, err := queue.PendingCoupons(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	producer.setErr(nil)
	scheduler.drainAll(ctx)
	assert.Equal(t, 1, producer.count())

	pending, err = queue.PendingCoupons(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSchedulerStartStop(t *testing.T) {
	ctx := context.Background()
	queue := NewInMemoryIssueGate()
	producer := &recordingProducer{}
	scheduler := NewQueueScheduler(queue, producer, 5*time.Millisecond)

	_, _, err := queue.Enqueue(ctx, 10, 1)
	require.NoError(t, err)

	scheduler.Start(ctx)
	assert.Eventually(t, func() bool { return producer.count() == 1 }, time.Second, 5*time.Millisecond)
	scheduler.Stop()
}

package processor

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Item is one unit of ingestion work: either a pose frame or a telemetry
// sample pushed by the client.
type Item struct {
	Frame      *FrameItem
	Telemetry  *TelemetryItem
	EnqueuedAt time.Time
}

// WorkQueue is a bounded channel-backed queue with a fixed worker pool.
// Enqueue never blocks: a full queue rejects the item so the caller can
// count it as dropped instead of stalling the UI thread.
type WorkQueue struct {
	items      chan *Item
	workers    int
	workerFunc func(*Item)
	wg         sync.WaitGroup
	shutdown   chan struct{}
	isRunning  bool
	mutex      sync.RWMutex
	logger     *zap.Logger
}

func NewWorkQueue(queueSize, workers int, workerFunc func(*Item), logger *zap.Logger) *WorkQueue {
	if workers <= 0 {
		workers = 1
	}
	q := &WorkQueue{
		items:      make(chan *Item, queueSize),
		workers:    workers,
		workerFunc: workerFunc,
		shutdown:   make(chan struct{}),
		isRunning:  true,
		logger:     logger,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

func (q *WorkQueue) worker() {
	defer q.wg.Done()

	for {
		select {
		case item := <-q.items:
			if item != nil {
				q.run(item)
			}
		case <-q.shutdown:
			return
		}
	}
}

func (q *WorkQueue) run(item *Item) {
	defer func() {
		// A panicking item must not take the worker down with it.
		if r := recover(); r != nil {
			q.logger.Error("ingestion worker panic", zap.Any("panic", r))
		}
	}()

	q.workerFunc(item)
}

func (q *WorkQueue) Enqueue(item *Item) bool {
	q.mutex.RLock()
	if !q.isRunning {
		q.mutex.RUnlock()
		return false
	}
	q.mutex.RUnlock()

	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

func (q *WorkQueue) Size() int {
	return len(q.items)
}

func (q *WorkQueue) Capacity() int {
	return cap(q.items)
}

func (q *WorkQueue) IsRunning() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.isRunning
}

func (q *WorkQueue) Shutdown(timeout time.Duration) error {
	q.mutex.Lock()
	if !q.isRunning {
		q.mutex.Unlock()
		return nil
	}
	q.isRunning = false
	q.mutex.Unlock()

	close(q.shutdown)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("work queue shutdown timeout exceeded")
	}
}

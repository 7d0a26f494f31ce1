package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pipewatch/backend/services/monitor-service/internal/metrics"
)

// Handler processes one raw frame.
type Handler func(ctx context.Context, topic string, payload []byte, arrival time.Time)

type job struct {
	topic   string
	payload []byte
	arrival time.Time
}

// Dispatcher is the single long-lived concurrency runtime for frame
// processing: transport callbacks submit raw frames to a bounded queue and a
// fixed worker pool drains it. Stopping closes intake and lets in-flight
// frames finish.
type Dispatcher struct {
	jobs         chan job
	handler      Handler
	workers      int
	frameTimeout time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(workers, queueSize int, frameTimeout time.Duration, handler Handler, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if frameTimeout <= 0 {
		frameTimeout = 30 * time.Second
	}
	return &Dispatcher{
		jobs:         make(chan job, queueSize),
		handler:      handler,
		workers:      workers,
		frameTimeout: frameTimeout,
		logger:       logger,
	}
}

// Start launches the worker pool. Workers keep draining until Stop closes
// the queue, so cancellation never abandons accepted frames.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("frame dispatcher started", zap.Int("workers", d.workers), zap.Int("queue", cap(d.jobs)))
}

// Submit enqueues a frame for processing. Returns false when the dispatcher
// is stopped or the queue is full; the frame is dropped in either case and
// the transport's own redelivery is the only retry path.
func (d *Dispatcher) Submit(topic string, payload []byte) bool {
	buf := make([]byte, len(payload))
	copy(buf, payload)

	// Holding the lock through the enqueue keeps Submit from racing a
	// concurrent Stop's channel close. The send is non-blocking, so the
	// critical section stays short.
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}

	select {
	case d.jobs <- job{topic: topic, payload: buf, arrival: time.Now()}:
		metrics.QueueDepth.Set(float64(len(d.jobs)))
		return true
	default:
		metrics.FramesDiscarded.WithLabelValues("queue_full").Inc()
		d.logger.Warn("frame queue full, dropping frame", zap.String("topic", topic))
		return false
	}
}

// Stop closes intake and waits for in-flight frames to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped || !d.started {
		d.stopped = true
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	close(d.jobs)
	d.wg.Wait()
	d.logger.Info("frame dispatcher stopped")
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		metrics.QueueDepth.Set(float64(len(d.jobs)))
		ctx, cancel := context.WithTimeout(context.Background(), d.frameTimeout)
		d.handler(ctx, j.topic, j.payload, j.arrival)
		cancel()
	}
}

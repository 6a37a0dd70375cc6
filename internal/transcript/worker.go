package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

// Worker writes events to a Sink off the request path. The queue is bounded and
// Emit never blocks: when the queue is full the batch is dropped with a warning.
type Worker struct {
	sink    Sink
	log     *logger.Logger
	metrics *observability.Metrics
	timeout time.Duration

	queue chan []Event

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	closeMu sync.Once
}

func NewWorker(sink Sink, queueSize int, baseLog *logger.Logger, metrics *observability.Metrics) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Worker{
		sink:    sink,
		log:     baseLog.With("component", "TranscriptWorker"),
		metrics: metrics,
		timeout: 5 * time.Second,
		queue:   make(chan []Event, queueSize),
		done:    make(chan struct{}),
	}
}

func (w *Worker) Start() {
	go w.runLoop()
}

// Emit queues events and reports whether they were accepted.
func (w *Worker) Emit(events ...Event) bool {
	if len(events) == 0 {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.metrics.IncTranscript("dropped", len(events))
		return false
	}
	select {
	case w.queue <- events:
		return true
	default:
		w.metrics.IncTranscript("dropped", len(events))
		w.log.Warn("transcript queue full, dropping events", "count", len(events))
		return false
	}
}

func (w *Worker) runLoop() {
	defer close(w.done)
	for batch := range w.queue {
		w.write(batch)
	}
}

func (w *Worker) write(batch []Event) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.IncTranscript("failed", len(batch))
			w.log.Error("transcript sink panic", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := w.sink.Append(ctx, batch...); err != nil {
		w.metrics.IncTranscript("failed", len(batch))
		w.log.Warn("transcript append failed", "count", len(batch), "error", err)
		return
	}
	w.metrics.IncTranscript("written", len(batch))
}

// Close stops accepting events, drains the queue and waits for the loop to exit or ctx to end.
func (w *Worker) Close(ctx context.Context) error {
	w.closeMu.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

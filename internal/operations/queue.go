// file: internal/operations/queue.go
// version: 2.0.0
// guid: 8b3e1f6a-d527-4c90-a4b8-f9e0c2d7163a

package operations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jdfalk/mediashare/internal/logging"
	"github.com/jdfalk/mediashare/internal/metrics"
)

var (
	// ErrQueueFull is returned when every worker is busy and the pending
	// queue has no free slot.
	ErrQueueFull = errors.New("operation queue is full")
	// ErrQueueClosed is returned after Shutdown.
	ErrQueueClosed = errors.New("operation queue is shut down")
)

// Defaults used when NewOperationQueue gets non-positive sizes.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 16
)

// OperationFunc represents an operation that can be executed
type OperationFunc func(ctx context.Context, progress ProgressReporter) error

// ProgressReporter allows operations to report their progress
type ProgressReporter interface {
	UpdateProgress(current, total int64, message string) error
	IsCanceled() bool
}

// QueuedOperation represents an operation in the queue
type QueuedOperation struct {
	ID      string
	Type    string
	Func    OperationFunc
	Context context.Context
	Cancel  context.CancelFunc
}

// ProgressListener receives progress updates
type ProgressListener func(operationID string, progress OperationProgress)

// OperationProgress represents the current state of an operation
type OperationProgress struct {
	Current int64
	Total   int64
	Message string
}

// OperationQueue runs operations on a fixed number of workers fed by a
// bounded pending queue.
type OperationQueue struct {
	mu         sync.RWMutex
	operations map[string]*QueuedOperation
	pending    chan *QueuedOperation
	workers    int
	running    atomic.Int32
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	listeners  map[string][]ProgressListener
}

// NewOperationQueue starts workers goroutines reading from a pending queue
// holding up to queueSize operations.
func NewOperationQueue(workers, queueSize int) *OperationQueue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &OperationQueue{
		operations: make(map[string]*QueuedOperation),
		pending:    make(chan *QueuedOperation, queueSize),
		workers:    workers,
		ctx:        ctx,
		cancel:     cancel,
		listeners:  make(map[string][]ProgressListener),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return q
}

// Enqueue adds a new operation. It never blocks: when the pending queue is
// full the operation is rejected with ErrQueueFull.
func (q *OperationQueue) Enqueue(id, opType string, fn OperationFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if _, exists := q.operations[id]; exists {
		return fmt.Errorf("operation %s already exists", id)
	}

	ctx, cancel := context.WithCancel(q.ctx)
	op := &QueuedOperation{
		ID:      id,
		Type:    opType,
		Func:    fn,
		Context: ctx,
		Cancel:  cancel,
	}

	select {
	case q.pending <- op:
		q.operations[id] = op
		logging.Debug().Str("operation_id", id).Str("type", opType).Msg("operation enqueued")
		return nil
	default:
		cancel()
		metrics.IncOperationRejected(opType)
		logging.Warn().Str("operation_id", id).Str("type", opType).Msg("pending queue full, rejecting operation")
		return ErrQueueFull
	}
}

// Cancel cancels an operation
func (q *OperationQueue) Cancel(id string) error {
	q.mu.RLock()
	op, exists := q.operations[id]
	q.mu.RUnlock()
	if !exists {
		return fmt.Errorf("operation %s not found", id)
	}
	op.Cancel()
	logging.Info().Str("operation_id", id).Msg("operation canceled")
	return nil
}

// AddListener adds a progress listener for an operation
func (q *OperationQueue) AddListener(operationID string, listener ProgressListener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners[operationID] = append(q.listeners[operationID], listener)
}

// RemoveListeners removes all listeners for an operation
func (q *OperationQueue) RemoveListeners(operationID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.listeners, operationID)
}

// notifyListeners calls listeners in order on the reporting goroutine.
func (q *OperationQueue) notifyListeners(operationID string, progress OperationProgress) {
	q.mu.RLock()
	listeners := append([]ProgressListener(nil), q.listeners[operationID]...)
	q.mu.RUnlock()

	for _, listener := range listeners {
		listener(operationID, progress)
	}
}

// worker processes operations from the queue
func (q *OperationQueue) worker(id int) {
	defer q.wg.Done()
	log := logging.With("operations")
	log.Debug().Int("worker", id).Msg("worker started")

	for {
		select {
		case <-q.ctx.Done():
			log.Debug().Int("worker", id).Msg("worker stopped")
			return
		case op := <-q.pending:
			if op == nil {
				continue
			}
			q.run(id, op)
		}
	}
}

func (q *OperationQueue) run(workerID int, op *QueuedOperation) {
	log := logging.With("operations")
	q.running.Add(1)
	defer q.running.Add(-1)

	start := time.Now()
	metrics.IncOperationStarted(op.Type)
	log.Info().Int("worker", workerID).Str("operation_id", op.ID).Str("type", op.Type).Msg("operation started")

	reporter := &operationProgressReporter{operationID: op.ID, queue: q, ctx: op.Context}
	err := q.execute(op, reporter)

	switch {
	case err != nil:
		metrics.IncOperationFailed(op.Type)
		log.Error().Err(err).Str("operation_id", op.ID).Str("type", op.Type).Msg("operation failed")
	default:
		metrics.IncOperationCompleted(op.Type)
		log.Info().Str("operation_id", op.ID).Str("type", op.Type).Dur("elapsed", time.Since(start)).Msg("operation completed")
	}
	metrics.ObserveOperationDuration(op.Type, time.Since(start))

	op.Cancel()
	q.mu.Lock()
	delete(q.operations, op.ID)
	delete(q.listeners, op.ID)
	q.mu.Unlock()
}

// execute runs the operation, converting a panic into an error so one bad
// job cannot take a worker down.
func (q *OperationQueue) execute(op *QueuedOperation, reporter ProgressReporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked: %v", op.ID, r)
		}
	}()
	return op.Func(op.Context, reporter)
}

// Shutdown cancels running operations and waits for workers to exit.
// Operations still pending are dropped.
func (q *OperationQueue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("operation queue shut down gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// operationProgressReporter implements ProgressReporter
type operationProgressReporter struct {
	operationID string
	queue       *OperationQueue
	ctx         context.Context
	current     int64
	total       int64
}

func (r *operationProgressReporter) UpdateProgress(current, total int64, message string) error {
	r.current = current
	r.total = total
	r.queue.notifyListeners(r.operationID, OperationProgress{
		Current: current,
		Total:   total,
		Message: message,
	})
	return nil
}

func (r *operationProgressReporter) IsCanceled() bool {
	return r.ctx != nil && r.ctx.Err() != nil
}

// ActiveOperation represents lightweight info about an in-flight operation.
type ActiveOperation struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ActiveOperations returns a snapshot of currently queued/running operations.
func (q *OperationQueue) ActiveOperations() []ActiveOperation {
	if q == nil {
		return []ActiveOperation{}
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	results := make([]ActiveOperation, 0, len(q.operations))
	for id, op := range q.operations {
		results = append(results, ActiveOperation{ID: id, Type: op.Type})
	}
	return results
}

// Stats reports pool occupancy.
type Stats struct {
	Workers  int `json:"workers"`
	Running  int `json:"running"`
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

// Stats returns current pool occupancy.
func (q *OperationQueue) Stats() Stats {
	return Stats{
		Workers:  q.workers,
		Running:  int(q.running.Load()),
		Pending:  len(q.pending),
		Capacity: cap(q.pending),
	}
}

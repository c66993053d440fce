package report

import (
	"context"
	"sync"
	"time"

	"github.com/dominica-news/feedback/pkg/logging"
	"github.com/dominica-news/feedback/pkg/netstatus"
)

// QueuedReport is one error waiting for connectivity.
type QueuedReport struct {
	Err        error
	Context    ReportContext
	EnqueuedAt time.Time
}

// Submitter re-attempts delivery of a queued report.
type Submitter interface {
	Report(ctx context.Context, err error, reportCtx ReportContext) error
}

// OfflineQueue holds error reports that could not be delivered while
// offline and replays them when connectivity returns. Push never blocks
// and never fails; Flush drains front to back in insertion order, with
// at most one flush pass in flight at a time. A report whose replay
// fails is re-enqueued to the tail and waits for the next pass rather
// than being retried in a loop.
type OfflineQueue struct {
	mu       sync.Mutex
	items    []QueuedReport
	flushing bool

	submitter Submitter
	logger    *logging.Logger

	// OnDepth, when set, observes queue depth after every change.
	OnDepth func(depth int)
}

// NewOfflineQueue creates a queue that replays through the submitter.
func NewOfflineQueue(submitter Submitter) *OfflineQueue {
	return &OfflineQueue{
		submitter: submitter,
		logger:    logging.GetLogger(),
	}
}

// Push enqueues a report. Safe to call at any time, including while a
// flush pass is running or while offline.
func (q *OfflineQueue) Push(err error, reportCtx ReportContext) {
	q.mu.Lock()
	q.items = append(q.items, QueuedReport{
		Err:        err,
		Context:    reportCtx,
		EnqueuedAt: time.Now(),
	})
	depth := len(q.items)
	q.mu.Unlock()

	q.logger.Debug("Error report queued for later delivery",
		"depth", depth,
	)
	q.notifyDepth(depth)
}

// Len returns the number of queued reports.
func (q *OfflineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush runs one drain pass. Reports are replayed in insertion order;
// successes are dropped, failures re-enqueued to the tail. If a pass is
// already running the call is a no-op.
func (q *OfflineQueue) Flush(ctx context.Context) {
	q.mu.Lock()
	if q.flushing || len(q.items) == 0 {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	batch := q.items
	q.items = nil
	q.mu.Unlock()

	q.logger.Info("Flushing queued error reports",
		"count", len(batch),
	)

	var failed []QueuedReport
	for _, item := range batch {
		if ctx.Err() != nil {
			failed = append(failed, item)
			continue
		}
		if err := q.submitter.Report(ctx, item.Err, item.Context); err != nil {
			q.logger.Warn("Queued report replay failed, keeping for next pass",
				"error", err.Error(),
			)
			failed = append(failed, item)
		}
	}

	q.mu.Lock()
	// Failures go to the tail, behind anything pushed during the pass
	q.items = append(q.items, failed...)
	depth := len(q.items)
	q.flushing = false
	q.mu.Unlock()

	q.notifyDepth(depth)
}

// Bind wires the queue to connectivity transitions: every
// offline-to-online flip triggers a background flush pass.
func (q *OfflineQueue) Bind(tracker *netstatus.Tracker) {
	tracker.OnTransition(func(online bool) {
		if !online {
			return
		}
		go q.Flush(context.Background())
	})
}

func (q *OfflineQueue) notifyDepth(depth int) {
	if q.OnDepth != nil {
		q.OnDepth(depth)
	}
}

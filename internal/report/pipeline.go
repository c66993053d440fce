package report

import (
	"context"
	"time"

	"github.com/dominica-news/feedback/pkg/feedback"
	"github.com/dominica-news/feedback/pkg/logging"
	"github.com/dominica-news/feedback/pkg/metrics"
	"github.com/dominica-news/feedback/pkg/netstatus"
	"github.com/dominica-news/feedback/pkg/resilience"
)

// Pipeline ties classification, user notification, best-effort
// reporting, and offline queueing together. Every failure that reaches
// it ends up in at least one of: a user notification, the offline
// queue, or the log.
type Pipeline struct {
	sink     feedback.Sink
	reporter *Reporter
	queue    *OfflineQueue
	tracker  *netstatus.Tracker
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewPipeline wires the pipeline and binds the offline queue to
// connectivity transitions.
func NewPipeline(sink feedback.Sink, reporter *Reporter, tracker *netstatus.Tracker) *Pipeline {
	queue := NewOfflineQueue(reporter)
	queue.Bind(tracker)

	return &Pipeline{
		sink:     sink,
		reporter: reporter,
		queue:    queue,
		tracker:  tracker,
		logger:   logging.GetLogger(),
	}
}

// Queue exposes the offline queue, mainly for observation.
func (p *Pipeline) Queue() *OfflineQueue {
	return p.queue
}

// Instrument binds the pipeline's hooks to Prometheus metrics: offline
// queue depth, retry attempts and exhaustions, and notifications shown
// when the sink is a ToastCenter. Call before the pipeline is used.
func (p *Pipeline) Instrument(m *metrics.Metrics) {
	p.metrics = m
	if m == nil {
		return
	}
	if m.OfflineQueueDepth != nil {
		p.queue.OnDepth = func(depth int) {
			m.OfflineQueueDepth.Set(float64(depth))
		}
	}
	if center, ok := p.sink.(*feedback.ToastCenter); ok && m.ToastsShownTotal != nil {
		center.OnShow = func(n feedback.Notification) {
			m.ToastsShownTotal.WithLabelValues(string(n.Level), string(n.Severity)).Inc()
		}
	}
}

// Handle classifies a terminal failure, notifies the user, and reports
// it. Offline failures, and failures whose report submission itself
// fails, are queued for replay instead of dropped.
func (p *Pipeline) Handle(ctx context.Context, err error, reportCtx ReportContext) feedback.Descriptor {
	offline := !p.tracker.Online()
	desc := feedback.Classify(err, offline)

	opts := feedback.Options{}
	if offline {
		// Connection-lost notices stay until connectivity returns or
		// the user dismisses them
		opts.Persistent = true
	}
	p.sink.Error(desc, opts)

	if offline {
		p.queue.Push(err, reportCtx)
		return desc
	}

	if reportErr := p.reporter.Report(ctx, err, reportCtx); reportErr != nil {
		p.logger.Warn("Error report submission failed, queueing",
			"error", reportErr.Error(),
			"category", string(desc.Category),
		)
		p.queue.Push(err, reportCtx)
	}

	return desc
}

// Executor builds a retry executor whose exhausted failures flow into
// this pipeline. The sink is left unset on the executor so the pipeline
// remains the single place a failure surfaces to the user.
func (p *Pipeline) Executor(maxRetries int, baseDelay, maxDelay time.Duration, reportCtx ReportContext) *resilience.Executor {
	operation := operationLabel(reportCtx)
	return resilience.NewExecutor(resilience.Config{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		Offline: func() bool {
			return !p.tracker.Online()
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if p.metrics != nil && p.metrics.RetryAttemptsTotal != nil {
				p.metrics.RetryAttemptsTotal.WithLabelValues(operation).Inc()
			}
		},
		OnExhausted: func(err error, desc feedback.Descriptor) {
			if p.metrics != nil && p.metrics.RetryExhaustionsTotal != nil {
				p.metrics.RetryExhaustionsTotal.WithLabelValues(string(desc.Category)).Inc()
			}
			p.Handle(context.Background(), err, reportCtx)
		},
	})
}

func operationLabel(reportCtx ReportContext) string {
	switch {
	case reportCtx.Action != "":
		return reportCtx.Action
	case reportCtx.Component != "":
		return reportCtx.Component
	default:
		return "unknown"
	}
}

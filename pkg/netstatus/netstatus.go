package netstatus

import (
	"sync"
	"time"

	"github.com/dominica-news/feedback/pkg/logging"
)

// Status is the current connectivity picture.
type Status struct {
	Online         bool
	SlowConnection bool
	ConnectionType string
	EffectiveType  string
	RTT            time.Duration
	ChangedAt      time.Time
}

// Effective connection types considered slow.
var slowEffectiveTypes = map[string]bool{
	"slow-2g": true,
	"2g":      true,
}

// slowRTTThreshold marks a connection slow regardless of its reported
// effective type.
const slowRTTThreshold = 2 * time.Second

// Tracker holds process-wide connectivity state. It is explicitly
// constructed and injected rather than read as hidden global state, so
// tests get a fresh instance each.
//
// Connectivity events (the browser's online/offline events in the
// original environment) are fed in through SetOnline and SetConnection;
// consumers observe transitions through Subscribe or OnTransition.
type Tracker struct {
	mu          sync.Mutex
	status      Status
	subscribers map[int]chan Status
	nextSub     int
	transitions []func(online bool)
	logger      *logging.Logger
}

// NewTracker creates a tracker that starts online.
func NewTracker() *Tracker {
	return &Tracker{
		status: Status{
			Online:    true,
			ChangedAt: time.Now(),
		},
		subscribers: make(map[int]chan Status),
		logger:      logging.GetLogger(),
	}
}

// Status returns a snapshot of the current connectivity state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Online reports whether the tracker currently believes it is online.
func (t *Tracker) Online() bool {
	return t.Status().Online
}

// SetOnline feeds an online/offline event. No-op when the state does
// not change.
func (t *Tracker) SetOnline(online bool) {
	t.mu.Lock()
	if t.status.Online == online {
		t.mu.Unlock()
		return
	}
	t.status.Online = online
	t.status.ChangedAt = time.Now()
	status := t.status
	transitions := append([]func(online bool){}, t.transitions...)
	t.mu.Unlock()

	t.logger.Info("Connectivity changed",
		"online", online,
	)

	t.notify(status)
	for _, fn := range transitions {
		fn(online)
	}
}

// SetConnection feeds connection quality metadata.
func (t *Tracker) SetConnection(connectionType, effectiveType string, rtt time.Duration) {
	t.mu.Lock()
	t.status.ConnectionType = connectionType
	t.status.EffectiveType = effectiveType
	t.status.RTT = rtt
	t.status.SlowConnection = slowEffectiveTypes[effectiveType] || (rtt > 0 && rtt >= slowRTTThreshold)
	t.status.ChangedAt = time.Now()
	status := t.status
	t.mu.Unlock()

	t.notify(status)
}

// Subscribe returns a channel of status snapshots and a cancel
// function. The channel closes when cancelled.
func (t *Tracker) Subscribe() (<-chan Status, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan Status, 16)
	t.subscribers[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// OnTransition registers a callback invoked on every online/offline
// flip. Used by the offline queue to trigger its flush.
func (t *Tracker) OnTransition(fn func(online bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitions = append(t.transitions, fn)
}

func (t *Tracker) notify(status Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, ch := range t.subscribers {
		select {
		case ch <- status:
		default:
			// Slow subscriber, drop rather than block
		}
	}
}

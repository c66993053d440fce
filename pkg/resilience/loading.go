package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/dominica-news/feedback/pkg/logging"
)

// LoadingState is a snapshot of one logical operation's progress.
// HasError distinguishes "no error" from an empty error message.
type LoadingState struct {
	Loading  bool
	Error    string
	HasError bool
	Progress float64
}

// TrackerConfig tunes a loading tracker.
type TrackerConfig struct {
	// Timeout forces the tracker out of the loading state if no
	// terminal transition happened first. Zero disables it.
	Timeout time.Duration
	// OnTimeout is invoked when the timeout fires, at most once per
	// arming.
	OnTimeout func()
}

// Tracker is the per-operation loading state machine:
// idle -> loading -> idle with or without an error. Entering loading
// arms the timeout timer; re-entering rearms it so only one timer is
// ever live.
type Tracker struct {
	mu         sync.Mutex
	state      LoadingState
	config     TrackerConfig
	timer      *time.Timer
	generation int
	logger     *logging.Logger
}

// NewTracker creates a loading tracker.
func NewTracker(config TrackerConfig) *Tracker {
	return &Tracker{
		config: config,
		logger: logging.GetLogger(),
	}
}

// SetLoading transitions in or out of the loading state. Leaving
// loading this way clears any previous error.
func (t *Tracker) SetLoading(loading bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	t.state = LoadingState{Loading: loading}

	if loading && t.config.Timeout > 0 {
		gen := t.generation
		t.timer = time.AfterFunc(t.config.Timeout, func() {
			t.expire(gen)
		})
	}
}

// SetError leaves the loading state with an error message.
func (t *Tracker) SetError(message string) {
	t.mu.Lock()
	t.stopTimerLocked()
	t.state = LoadingState{Error: message, HasError: true}
	t.mu.Unlock()
}

// SetProgress updates progress, clamped to [0,100]. Ignored when not
// loading.
func (t *Tracker) SetProgress(progress float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.Loading {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.state.Progress = progress
}

// Reset returns the tracker to idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.stopTimerLocked()
	t.state = LoadingState{}
	t.mu.Unlock()
}

// State returns a snapshot of the current state.
func (t *Tracker) State() LoadingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Run sequences SetLoading(true), the operation, and the terminal
// transition, catching a failed operation into the error state.
func (t *Tracker) Run(ctx context.Context, operation func(context.Context) error) error {
	t.SetLoading(true)
	err := operation(ctx)
	if err != nil {
		t.SetError(err.Error())
		return err
	}
	t.SetLoading(false)
	return nil
}

func (t *Tracker) expire(generation int) {
	t.mu.Lock()
	if generation != t.generation || !t.state.Loading {
		t.mu.Unlock()
		return
	}
	t.generation++
	t.timer = nil
	t.state = LoadingState{Error: "operation timed out", HasError: true}
	onTimeout := t.config.OnTimeout
	t.mu.Unlock()

	t.logger.Warn("Loading state timed out",
		"timeout", t.config.Timeout,
	)

	if onTimeout != nil {
		onTimeout()
	}
}

// stopTimerLocked invalidates any armed timer. Callers hold t.mu.
func (t *Tracker) stopTimerLocked() {
	t.generation++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// TrackerGroup manages named trackers for concurrent operations that
// share one configuration.
type TrackerGroup struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
	config   TrackerConfig
}

// NewTrackerGroup creates a keyed tracker group.
func NewTrackerGroup(config TrackerConfig) *TrackerGroup {
	return &TrackerGroup{
		trackers: make(map[string]*Tracker),
		config:   config,
	}
}

// Get returns the tracker for a key, creating it on first use.
func (g *TrackerGroup) Get(key string) *Tracker {
	g.mu.Lock()
	defer g.mu.Unlock()

	tracker, ok := g.trackers[key]
	if !ok {
		tracker = NewTracker(g.config)
		g.trackers[key] = tracker
	}
	return tracker
}

// States returns a snapshot of every tracked operation.
func (g *TrackerGroup) States() map[string]LoadingState {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]LoadingState, len(g.trackers))
	for key, tracker := range g.trackers {
		out[key] = tracker.State()
	}
	return out
}

// ResetAll resets every tracker in the group.
func (g *TrackerGroup) ResetAll() {
	g.mu.Lock()
	trackers := make([]*Tracker, 0, len(g.trackers))
	for _, tracker := range g.trackers {
		trackers = append(trackers, tracker)
	}
	g.mu.Unlock()

	for _, tracker := range trackers {
		tracker.Reset()
	}
}

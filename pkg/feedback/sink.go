package feedback

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dominica-news/feedback/pkg/logging"
)

// Level is the visual class of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelLoading Level = "loading"
)

// Default auto-dismiss durations per level/severity.
const (
	DurationSuccess  = 4 * time.Second
	DurationInfo     = 5 * time.Second
	DurationWarning  = 5 * time.Second
	DurationError    = 6 * time.Second
	DurationCritical = 10 * time.Second
)

// Notification is one live toast.
type Notification struct {
	ID          string
	Level       Level
	Title       string
	Description string
	Severity    Severity
	Actions     []SuggestedAction
	Persistent  bool
	Duration    time.Duration
	CreatedAt   time.Time
}

// Options tunes how a notification is presented. The zero value uses
// level defaults.
type Options struct {
	Description string
	Duration    time.Duration
	Persistent  bool
	Actions     []SuggestedAction
}

// EventType distinguishes subscriber events.
type EventType string

const (
	EventShown     EventType = "shown"
	EventDismissed EventType = "dismissed"
)

// Event is delivered to subscribers for every notification change.
type Event struct {
	Type         EventType
	Notification Notification
}

// Sink presents classified errors and plain messages to the user.
type Sink interface {
	Success(message string, opts Options) string
	Info(message string, opts Options) string
	Warning(message string, opts Options) string
	Error(desc Descriptor, opts Options) string
	Loading(message, description string) string
	Dismiss(id string)
	DismissAll()
}

// ToastCenter is the in-memory Sink implementation. Non-persistent
// notifications auto-dismiss after their duration; persistent and
// loading notifications live until dismissed explicitly. Presenters
// observe the center through Subscribe.
type ToastCenter struct {
	// OnShow, when set, observes every notification as it is shown.
	// Set before the center is used.
	OnShow func(Notification)

	mu          sync.Mutex
	active      map[string]*activeToast
	subscribers map[int]chan Event
	nextSub     int
	logger      *logging.Logger
	closed      bool
}

type activeToast struct {
	notification Notification
	timer        *time.Timer
}

// NewToastCenter creates a toast center.
func NewToastCenter(logger *logging.Logger) *ToastCenter {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &ToastCenter{
		active:      make(map[string]*activeToast),
		subscribers: make(map[int]chan Event),
		logger:      logger,
	}
}

// Subscribe returns a channel of notification events and a cancel
// function. The channel is buffered; slow consumers drop events rather
// than blocking the center.
func (c *ToastCenter) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 64)
	c.subscribers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Success shows a success notification.
func (c *ToastCenter) Success(message string, opts Options) string {
	return c.show(LevelSuccess, message, SeverityLow, opts, DurationSuccess)
}

// Info shows an informational notification.
func (c *ToastCenter) Info(message string, opts Options) string {
	return c.show(LevelInfo, message, SeverityLow, opts, DurationInfo)
}

// Warning shows a warning notification.
func (c *ToastCenter) Warning(message string, opts Options) string {
	return c.show(LevelWarning, message, SeverityMedium, opts, DurationWarning)
}

// Error shows a classified error. Duration follows severity: critical
// errors stay visible longer; persistent errors stay until dismissed.
// All suggested actions render on this one notification.
func (c *ToastCenter) Error(desc Descriptor, opts Options) string {
	actions := opts.Actions
	if len(actions) == 0 && desc.Action != nil {
		actions = []SuggestedAction{*desc.Action}
	}
	if !desc.Recoverable {
		actions = withoutRetryActions(actions)
	}
	opts.Actions = actions

	fallback := DurationError
	if desc.Severity == SeverityCritical {
		fallback = DurationCritical
	}
	if opts.Description == "" {
		opts.Description = desc.Message
	}
	return c.show(LevelError, desc.Title, desc.Severity, opts, fallback)
}

// Loading shows a persistent loading notification and returns its
// handle for later dismissal.
func (c *ToastCenter) Loading(message, description string) string {
	return c.show(LevelLoading, message, SeverityLow, Options{
		Description: description,
		Persistent:  true,
	}, 0)
}

// Dismiss removes a notification by handle. Unknown handles are ignored.
func (c *ToastCenter) Dismiss(id string) {
	c.mu.Lock()
	toast, ok := c.active[id]
	if ok {
		if toast.timer != nil {
			toast.timer.Stop()
		}
		delete(c.active, id)
	}
	c.mu.Unlock()

	if ok {
		c.broadcast(Event{Type: EventDismissed, Notification: toast.notification})
	}
}

// DismissAll removes every live notification.
func (c *ToastCenter) DismissAll() {
	c.mu.Lock()
	dismissed := make([]Notification, 0, len(c.active))
	for id, toast := range c.active {
		if toast.timer != nil {
			toast.timer.Stop()
		}
		dismissed = append(dismissed, toast.notification)
		delete(c.active, id)
	}
	c.mu.Unlock()

	for _, n := range dismissed {
		c.broadcast(Event{Type: EventDismissed, Notification: n})
	}
}

// Active returns a snapshot of live notifications.
func (c *ToastCenter) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.active))
	for _, toast := range c.active {
		out = append(out, toast.notification)
	}
	return out
}

// Close dismisses everything and closes subscriber channels.
func (c *ToastCenter) Close() {
	c.DismissAll()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

func (c *ToastCenter) show(level Level, title string, severity Severity, opts Options, fallbackDuration time.Duration) string {
	duration := opts.Duration
	if duration <= 0 {
		duration = fallbackDuration
	}
	if opts.Persistent {
		duration = 0
	}

	n := Notification{
		ID:          uuid.New().String(),
		Level:       level,
		Title:       title,
		Description: opts.Description,
		Severity:    severity,
		Actions:     opts.Actions,
		Persistent:  opts.Persistent,
		Duration:    duration,
		CreatedAt:   time.Now(),
	}

	toast := &activeToast{notification: n}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n.ID
	}
	c.active[n.ID] = toast
	if duration > 0 {
		id := n.ID
		toast.timer = time.AfterFunc(duration, func() {
			c.Dismiss(id)
		})
	}
	c.mu.Unlock()

	c.logger.Debug("Notification shown",
		"id", n.ID,
		"level", string(level),
		"title", title,
		"persistent", opts.Persistent,
	)

	if c.OnShow != nil {
		c.OnShow(n)
	}
	c.broadcast(Event{Type: EventShown, Notification: n})
	return n.ID
}

func (c *ToastCenter) broadcast(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop rather than block
		}
	}
}

func withoutRetryActions(actions []SuggestedAction) []SuggestedAction {
	out := actions[:0:0]
	for _, a := range actions {
		if a.Kind == ActionRetry || a.Kind == ActionReload {
			continue
		}
		out = append(out, a)
	}
	return out
}

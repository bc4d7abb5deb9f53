package bus

import (
	"log/slog"
	"sync"
	"time"
)

// Well-known event types.
const (
	EventMessageReceived  = "message.received"
	EventMessageDuplicate = "message.duplicate"
	EventCommandExecuted  = "command.executed"
	EventCommandFailed    = "command.failed"
	EventModerationFailed = "moderation.failed"
	EventPolicyIgnored    = "policy.ignored"
	EventPolicyAntilink   = "policy.antilink"
	EventSettingsChanged  = "settings.changed"
	EventSettingsReloaded = "settings.reloaded"
	EventChannelReady     = "channel.ready"
	EventOwnerNotified    = "owner.notified"
	EventWebhookReceived  = "webhook.received"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

const defaultHistory = 1000

// Event is an internal notification about something the bot did. Events
// feed metrics and the admin API; they never drive chat behavior.
type Event struct {
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type EventHandler func(Event)

// EventBus is a synchronous topic pub/sub with a bounded history.
type EventBus struct {
	mu       sync.RWMutex
	subs     map[string][]EventHandler
	history  []Event
	capacity int
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subs:     make(map[string][]EventHandler),
		capacity: defaultHistory,
		logger:   logger,
	}
}

// On registers handler for eventType, or for every type with AllEvents.
func (eb *EventBus) On(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subs[eventType] = append(eb.subs[eventType], handler)
}

// Emit records the event and calls the matching handlers in registration
// order, type-specific ones first. A panicking handler is logged and skipped.
func (eb *EventBus) Emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.history) >= eb.capacity {
		eb.history = eb.history[1:]
	}
	eb.history = append(eb.history, ev)
	targets := make([]EventHandler, 0, len(eb.subs[ev.Type])+len(eb.subs[AllEvents]))
	targets = append(targets, eb.subs[ev.Type]...)
	targets = append(targets, eb.subs[AllEvents]...)
	eb.mu.Unlock()

	for _, h := range targets {
		eb.dispatch(h, ev)
	}
}

func (eb *EventBus) dispatch(h EventHandler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", ev.Type, "panic", r)
		}
	}()
	h(ev)
}

// Replay returns recorded events of eventType (AllEvents for any) emitted
// at or after since, oldest first.
func (eb *EventBus) Replay(eventType string, since time.Time) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	var out []Event
	for _, ev := range eb.history {
		if ev.Timestamp.Before(since) {
			continue
		}
		if eventType == AllEvents || ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Recent returns up to n most recent events, newest last. n <= 0 means all.
func (eb *EventBus) Recent(n int) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if n <= 0 || n > len(eb.history) {
		n = len(eb.history)
	}
	out := make([]Event, n)
	copy(out, eb.history[len(eb.history)-n:])
	return out
}

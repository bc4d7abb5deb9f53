// Package agent runs the inbound event pipeline: duplicate suppression,
// classification, policy gating and command dispatch.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"alphabot/internal/bus"
	"alphabot/internal/command"
	"alphabot/internal/domain"
	"alphabot/internal/intent"
	"alphabot/internal/metrics"
	"alphabot/internal/policy"
	"alphabot/internal/settings"
)

const defaultConcurrency = 8

// Loop consumes inbound events from the bus and routes each one on its own
// goroutine.
type Loop struct {
	bus        domain.MessageBus
	store      *settings.Store
	classifier *intent.Classifier
	policy     *policy.Engine
	dispatcher *command.Dispatcher
	dedup      *Dedup
	events     *bus.EventBus
	logger     *slog.Logger

	concurrency int
	wg          sync.WaitGroup
}

// LoopConfig holds the pipeline stages and tuning parameters.
type LoopConfig struct {
	Bus        domain.MessageBus
	Store      *settings.Store
	Policy     *policy.Engine
	Dispatcher *command.Dispatcher
	Dedup      *Dedup // optional
	Events     *bus.EventBus
	Logger     *slog.Logger
	// Concurrency bounds the number of events handled at once.
	Concurrency int
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := &Loop{
		bus:         cfg.Bus,
		store:       cfg.Store,
		classifier:  intent.NewClassifier(cfg.Dispatcher),
		policy:      cfg.Policy,
		dispatcher:  cfg.Dispatcher,
		dedup:       cfg.Dedup,
		events:      cfg.Events,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
	if l.events != nil {
		l.events.On(bus.EventModerationFailed, func(bus.Event) { metrics.ModerationFailures.Inc() })
	}
	return l
}

// Run handles inbound events until ctx is cancelled or the bus closes, then
// waits for in-flight events to finish.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("router loop started", "concurrency", l.concurrency)
	defer l.wg.Wait()

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("router loop stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, router loop stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			l.wg.Add(1)
			go func(ev domain.InboundEvent) {
				defer l.wg.Done()
				defer func() { <-sem }()
				l.Handle(ctx, ev)
			}(ev)
		}
	}
}

// Handle routes a single event. Errors and panics are logged and never
// escape.
func (l *Loop) Handle(ctx context.Context, ev domain.InboundEvent) {
	start := time.Now()
	metrics.EventsTotal.Inc()
	metrics.InFlightEvents.Inc()
	defer metrics.InFlightEvents.Dec()
	defer metrics.HandleLatency.ObserveSince(start)

	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerErrors.Inc()
			l.logger.Error("panic while handling event",
				"channel", ev.Channel, "chat", ev.ChatID, "id", ev.ID,
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := l.handle(ctx, ev); err != nil {
		metrics.HandlerErrors.Inc()
		l.logger.Error("event handling failed", "channel", ev.Channel, "chat", ev.ChatID, "id", ev.ID, "err", err)
		l.emit(bus.EventCommandFailed, map[string]any{
			"channel": ev.Channel, "chat": ev.ChatID, "id": ev.ID, "error": err.Error(),
		})
	}
}

func (l *Loop) handle(ctx context.Context, ev domain.InboundEvent) error {
	if l.dedup != nil && ev.ID != "" && l.dedup.IsDuplicate(ev.Channel+":"+ev.ID) {
		metrics.DuplicatesTotal.Inc()
		l.logger.Debug("duplicate delivery dropped", "channel", ev.Channel, "id", ev.ID)
		l.emit(bus.EventMessageDuplicate, map[string]any{"channel": ev.Channel, "id": ev.ID})
		return nil
	}

	sink, ok := l.bus.Sink(ev.Channel)
	if !ok {
		return fmt.Errorf("no sink for channel %q", ev.Channel)
	}

	st := l.store.Snapshot()
	it := l.classifier.Classify(ev, st.EffectivePrefix())
	l.logger.Debug("event classified",
		"channel", ev.Channel, "chat", ev.ChatID, "actor", ev.Actor(),
		"kind", it.Kind.String(), "name", it.Name)
	l.emit(bus.EventMessageReceived, map[string]any{
		"channel": ev.Channel, "chat": ev.ChatID, "actor": ev.Actor(), "kind": it.Kind.String(),
	})

	switch l.policy.Evaluate(ctx, sink, ev, it, st) {
	case policy.Ignore:
		metrics.PolicyIgnoredTotal.Inc()
		return nil
	case policy.Handled:
		metrics.AntilinkTotal.Inc()
		return nil
	}

	if it.Kind == intent.PlainText {
		return nil
	}
	metrics.CommandsTotal.Inc()
	if err := l.dispatcher.Dispatch(ctx, sink, ev, it, st); err != nil {
		return fmt.Errorf("dispatch %s: %w", it.Name, err)
	}
	return nil
}

func (l *Loop) emit(typ string, payload map[string]any) {
	if l.events == nil {
		return
	}
	l.events.Emit(bus.Event{Type: typ, Source: "router", Payload: payload})
}

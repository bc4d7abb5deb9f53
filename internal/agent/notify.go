package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"alphabot/internal/bus"
	"alphabot/internal/command"
	"alphabot/internal/domain"
	"alphabot/internal/identity"
	"alphabot/internal/settings"
)

const (
	defaultNotifyDelay = 1500 * time.Millisecond
	notifyTimeLayout   = "1/2/2006, 3:04:05 PM"
)

// NotifierConfig configures the connect-time owner notification.
type NotifierConfig struct {
	Bus    domain.MessageBus
	Store  *settings.Store
	Events *bus.EventBus
	Delay  time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Notifier tells every owner that the bot is online, once per process, a
// short delay after the first channel reports ready.
type Notifier struct {
	bus    domain.MessageBus
	store  *settings.Store
	events *bus.EventBus
	delay  time.Duration
	now    func() time.Time
	logger *slog.Logger

	scheduled atomic.Bool
	mu        sync.Mutex
	timer     *time.Timer
	done      chan struct{}
}

func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Delay <= 0 {
		cfg.Delay = defaultNotifyDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Notifier{
		bus:    cfg.Bus,
		store:  cfg.Store,
		events: cfg.Events,
		delay:  cfg.Delay,
		now:    cfg.Now,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}
}

// Run watches ready signals until ctx is cancelled. A pending notification is
// cancelled on exit.
func (n *Notifier) Run(ctx context.Context) {
	defer n.stop()
	ready := n.bus.Ready()
	for {
		select {
		case <-ctx.Done():
			return
		case channel, ok := <-ready:
			if !ok {
				return
			}
			n.schedule(ctx, channel)
		}
	}
}

// Done is closed after the notification has been sent.
func (n *Notifier) Done() <-chan struct{} { return n.done }

func (n *Notifier) schedule(ctx context.Context, channel string) {
	if len(n.store.Snapshot().Owners()) == 0 {
		n.logger.Info("no owners configured, skipping connect notification")
		return
	}
	if !n.scheduled.CompareAndSwap(false, true) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timer = time.AfterFunc(n.delay, func() {
		defer close(n.done)
		n.send(ctx, channel)
	})
	n.logger.Debug("connect notification scheduled", "channel", channel, "delay", n.delay)
}

func (n *Notifier) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
}

// Text renders the notification for the current settings.
func (n *Notifier) Text(st *settings.Settings) string {
	return fmt.Sprintf("✨ *%s* v%s\nMode: %s\nTime: %s\n\nBot is online.",
		command.BotName, command.BotVersion, st.Mode(), n.now().Format(notifyTimeLayout))
}

func (n *Notifier) send(ctx context.Context, channel string) {
	sink, ok := n.bus.Sink(channel)
	if !ok {
		n.logger.Warn("connect notification has no sink", "channel", channel)
		return
	}
	st := n.store.Snapshot()
	text := n.Text(st)
	for _, owner := range st.Owners() {
		digits, ok := identity.Normalize(owner)
		if !ok {
			continue
		}
		chat := sink.DirectChat(digits)
		if err := sink.SendToChat(ctx, chat, text, nil); err != nil {
			n.logger.Warn("connect notification failed", "owner", chat, "err", err)
			continue
		}
		n.logger.Info("connect notification sent", "owner", chat)
		if n.events != nil {
			n.events.Emit(bus.Event{Type: bus.EventOwnerNotified, Source: "notifier", Payload: map[string]any{
				"channel": channel, "owner": chat,
			}})
		}
	}
}

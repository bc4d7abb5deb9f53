package bus

import (
	"log/slog"
	"sync"
	"time"

	"alphabot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based event bus between channel adapters and
// the router. It also keeps the sink registered for each channel.
type InMemoryBus struct {
	inbound chan domain.InboundEvent
	ready   chan string
	done    chan struct{}
	sinks   map[string]domain.Sink
	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup // publishers that may still send on inbound
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.InboundEvent, bufferSize),
		ready:   make(chan string, 8),
		done:    make(chan struct{}),
		sinks:   make(map[string]domain.Sink),
		logger:  logger,
	}
}

// Publish blocks up to publishTimeout when the bus is full instead of
// dropping. The wait holds no lock, so Close ends it early.
func (b *InMemoryBus) Publish(ev domain.InboundEvent) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.logger.Warn("attempted to publish to closed bus")
		return
	}
	b.pending.Add(1)
	b.mu.RUnlock()
	defer b.pending.Done()

	select {
	case b.inbound <- ev:
		return
	default:
	}

	b.logger.Warn("inbound bus full, waiting...", "channel", ev.Channel, "chat", ev.ChatID)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case b.inbound <- ev:
		b.logger.Info("event delivered after wait", "channel", ev.Channel)
	case <-b.done:
		b.logger.Warn("event dropped: bus closed", "channel", ev.Channel, "id", ev.ID)
	case <-timer.C:
		b.logger.Error("event dropped: bus full",
			"channel", ev.Channel,
			"chat", ev.ChatID,
			"id", ev.ID,
		)
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundEvent {
	return b.inbound
}

func (b *InMemoryBus) RegisterSink(channelName string, sink domain.Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[channelName] = sink
}

func (b *InMemoryBus) Sink(channelName string) (domain.Sink, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sinks[channelName]
	if !ok {
		b.logger.Warn("no sink registered for channel", "channel", channelName)
	}
	return s, ok
}

// MarkReady never blocks; a full ready queue drops the signal.
func (b *InMemoryBus) MarkReady(channelName string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.ready <- channelName:
	default:
		b.logger.Warn("ready queue full, dropping signal", "channel", channelName)
	}
}

func (b *InMemoryBus) Ready() <-chan string {
	return b.ready
}

// Close stops accepting events, releases waiting publishers and closes the
// subscriber channels once they are gone.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.pending.Wait()
	close(b.inbound)
	close(b.ready)
}

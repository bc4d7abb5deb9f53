package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"alphabot/internal/domain"
)

const (
	bridgeName             = "whatsapp"
	bridgeRequestTimeout   = 30 * time.Second
	bridgeDefaultReconnect = 5 * time.Second
	bridgeWriteTimeout     = 10 * time.Second
	bridgeInboxSize        = 256
)

// BridgeConfig configures the WhatsApp bridge client.
type BridgeConfig struct {
	URL            string
	Token          string
	Reconnect      time.Duration
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Bridge connects to an external WhatsApp client over a websocket. The
// client owns the session; the bridge turns its message events into
// InboundEvents and forwards outbound actions as requests.
type Bridge struct {
	url       string
	token     string
	reconnect time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	dialer    *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	self    string
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Frame
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = bridgeDefaultReconnect
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = bridgeRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		url:       cfg.URL,
		token:     cfg.Token,
		reconnect: cfg.Reconnect,
		timeout:   cfg.RequestTimeout,
		logger:    cfg.Logger,
		dialer:    websocket.DefaultDialer,
		pending:   make(map[string]chan Frame),
	}
}

func (b *Bridge) Name() string { return bridgeName }

// Start keeps a session with the bridge open, reconnecting after failures,
// until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context, bus domain.MessageBus) error {
	bus.RegisterSink(bridgeName, b)
	for {
		err := b.session(ctx, bus)
		if ctx.Err() != nil {
			return nil
		}
		b.logger.Warn("bridge session ended, reconnecting", "err", err, "in", b.reconnect)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.reconnect):
		}
	}
}

// Stop closes the current connection. Start reconnects unless its context
// is done.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *Bridge) session(ctx context.Context, bus domain.MessageBus) error {
	header := http.Header{}
	if b.token != "" {
		header.Set("Authorization", "Bearer "+b.token)
	}
	conn, _, err := b.dialer.DialContext(ctx, b.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.url, err)
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.conn = nil
		b.mu.Unlock()
		_ = conn.Close()
	}()

	// Message events go through inbox so a full bus never holds up the
	// responses that in-flight requests wait for.
	inbox := make(chan domain.InboundEvent, bridgeInboxSize)
	go func() {
		for ev := range inbox {
			bus.Publish(ev)
		}
	}()

	readErr := make(chan error, 1)
	go func() {
		defer close(inbox)
		readErr <- b.readLoop(conn, bus, inbox)
	}()

	if _, err := b.call(ctx, MethodConnect, ConnectParams{Role: "bot", Token: b.token}); err != nil {
		_ = conn.Close()
		<-readErr
		return fmt.Errorf("handshake: %w", err)
	}
	b.logger.Info("bridge connected", "url", b.url)

	select {
	case err := <-readErr:
		return err
	case <-ctx.Done():
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
		<-readErr
		return ctx.Err()
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn, bus domain.MessageBus, inbox chan<- domain.InboundEvent) error {
	defer b.failPending()
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch f.Type {
		case "res":
			b.deliver(f)
		case "event":
			b.handleEvent(f, bus, inbox)
		default:
			b.logger.Debug("bridge frame ignored", "type", f.Type)
		}
	}
}

func (b *Bridge) handleEvent(f Frame, bus domain.MessageBus, inbox chan<- domain.InboundEvent) {
	switch f.Event {
	case EventReady:
		var p ReadyPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			b.logger.Warn("bad ready payload", "err", err)
		}
		b.mu.Lock()
		b.self = p.Self
		b.mu.Unlock()
		b.logger.Info("whatsapp client ready", "self", p.Self)
		bus.MarkReady(bridgeName)
	case EventMessage:
		var ev domain.InboundEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			b.logger.Warn("bad message payload", "err", err)
			return
		}
		ev.Channel = bridgeName
		if ev.SelfID == "" {
			b.mu.Lock()
			ev.SelfID = b.self
			b.mu.Unlock()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		select {
		case inbox <- ev:
		default:
			b.logger.Error("event dropped: bridge inbox full", "chat", ev.ChatID, "id", ev.ID)
		}
	default:
		b.logger.Debug("bridge event ignored", "event", f.Event)
	}
}

func (b *Bridge) deliver(f Frame) {
	b.pendingMu.Lock()
	ch, ok := b.pending[f.ID]
	delete(b.pending, f.ID)
	b.pendingMu.Unlock()
	if ok {
		ch <- f
	}
}

func (b *Bridge) failPending() {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

// call sends a request and waits for its response.
func (b *Bridge) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := uuid.NewString()
	req, err := reqFrame(id, method, params)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("%s: %w", method, errDisconnected)
	}

	ch := make(chan Frame, 1)
	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()
	cancel := func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}

	b.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(bridgeWriteTimeout))
	err = conn.WriteJSON(req)
	b.writeMu.Unlock()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case res, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: %w", method, errDisconnected)
		}
		return res.result(method)
	case <-timer.C:
		cancel()
		return nil, fmt.Errorf("timeout waiting for %s response", method)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

func (b *Bridge) do(ctx context.Context, method string, params any) error {
	_, err := b.call(ctx, method, params)
	return err
}

func (b *Bridge) Reply(ctx context.Context, chatID, messageID, text string) error {
	return b.do(ctx, MethodReply, ReplyParams{ChatID: chatID, MessageID: messageID, Text: text})
}

func (b *Bridge) SendToChat(ctx context.Context, chatID, text string, mentions []string) error {
	return b.do(ctx, MethodSend, SendParams{ChatID: chatID, Text: text, Mentions: mentions})
}

func (b *Bridge) UpdateParticipants(ctx context.Context, chatID string, kind domain.ModerationKind, participants []string) error {
	switch kind {
	case domain.ModRemove, domain.ModPromote, domain.ModDemote:
	default:
		return fmt.Errorf("participant update %q: %w", kind, domain.ErrUnsupported)
	}
	return b.do(ctx, MethodParticipants, ParticipantsParams{ChatID: chatID, Action: string(kind), Participants: participants})
}

func (b *Bridge) DirectChat(identity string) string { return identity + "@c.us" }

func (b *Bridge) RevokeInvite(ctx context.Context, chatID string) error {
	return b.do(ctx, MethodRevokeInvite, ChatParams{ChatID: chatID})
}

func (b *Bridge) BlockContact(ctx context.Context, contactID string) error {
	return b.do(ctx, MethodBlock, BlockParams{ContactID: contactID})
}

func (b *Bridge) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	return b.do(ctx, MethodDelete, DeleteParams{ChatID: chatID, MessageID: messageID})
}

func (b *Bridge) SendSticker(ctx context.Context, chatID, sourceMessageID string, meta domain.StickerMeta) error {
	return b.do(ctx, MethodSticker, StickerParams{ChatID: chatID, SourceMessageID: sourceMessageID, StickerMeta: meta})
}

// IsDisconnected reports whether err came from a missing bridge connection.
func IsDisconnected(err error) bool { return errors.Is(err, errDisconnected) }

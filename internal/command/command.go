// Package command owns the command table and turns classified intents into
// outbound actions.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"alphabot/internal/bus"
	"alphabot/internal/domain"
	"alphabot/internal/intent"
	"alphabot/internal/settings"
)

const (
	BotName    = "TrueAlpha x Bot"
	BotVersion = "1.0.0"
)

// Request is everything a handler may read. Settings is a snapshot taken
// when the event was classified.
type Request struct {
	Event    domain.InboundEvent
	Intent   intent.Intent
	Settings *settings.Settings
	IsOwner  bool
}

// Prefix returns the active command prefix.
func (r Request) Prefix() string { return r.Settings.EffectivePrefix() }

// Handler decides what a command does. It never talks to the transport.
type Handler func(ctx context.Context, req Request) domain.Result

// Command is one entry of the command table.
type Command struct {
	Name      string
	Aliases   []string
	Args      intent.ArgRule
	GroupOnly bool
	OwnerOnly bool
	Denied    string // reply to non-owners of an owner-only command
	Handler   Handler
}

// FeedbackWriter appends user feedback to durable storage.
type FeedbackWriter interface {
	Append(actor, text string) error
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Store    *settings.Store
	Feedback FeedbackWriter
	Events   *bus.EventBus
	Pacer    *Pacer
	RepoURL  string
	// StartedAt is the process start used for uptime.
	StartedAt time.Time
	// Now and Exit default to time.Now and os.Exit via cmd wiring.
	Now    func() time.Time
	Exit   func(code int)
	Logger *slog.Logger
}

// Dispatcher maps intents to handlers and executes their results.
type Dispatcher struct {
	store     *settings.Store
	feedback  FeedbackWriter
	events    *bus.EventBus
	pacer     *Pacer
	repoURL   string
	startedAt time.Time
	now       func() time.Time
	exit      func(int)
	logger    *slog.Logger

	commands map[string]*Command
	ordered  []*Command
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		store:     cfg.Store,
		feedback:  cfg.Feedback,
		events:    cfg.Events,
		pacer:     cfg.Pacer,
		repoURL:   cfg.RepoURL,
		startedAt: cfg.StartedAt,
		now:       cfg.Now,
		exit:      cfg.Exit,
		logger:    cfg.Logger,
		commands:  make(map[string]*Command),
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.startedAt.IsZero() {
		d.startedAt = d.now()
	}
	if d.exit == nil {
		d.exit = func(int) {}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.pacer == nil {
		d.pacer = NewPacer(Pacing{})
	}
	for _, c := range d.table() {
		d.register(c)
	}
	return d
}

func (d *Dispatcher) register(c *Command) {
	d.ordered = append(d.ordered, c)
	d.commands[c.Name] = c
	for _, a := range c.Aliases {
		d.commands[a] = c
	}
}

// Lookup implements intent.Table.
func (d *Dispatcher) Lookup(name string) (intent.ArgRule, bool) {
	c, ok := d.commands[name]
	if !ok {
		return 0, false
	}
	return c.Args, true
}

// Commands returns the table in registration order.
func (d *Dispatcher) Commands() []*Command {
	return append([]*Command(nil), d.ordered...)
}

// Dispatch runs the handler for it and executes the result against sink.
// Plain text is ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, sink domain.Sink, ev domain.InboundEvent, it intent.Intent, st *settings.Settings) error {
	req := Request{
		Event:    ev,
		Intent:   it,
		Settings: st,
		IsOwner:  st.Resolver().IsOwner(ev.Actor()),
	}

	var res domain.Result
	switch it.Kind {
	case intent.Quoted:
		res = d.quoted(ctx, req)
	case intent.Toggle:
		res = d.toggle(ctx, req)
	case intent.Command:
		c, ok := d.commands[it.Name]
		if !ok {
			return nil
		}
		res = d.guard(c, req)
		if res == nil {
			res = c.Handler(ctx, req)
		}
	default:
		return nil
	}

	d.logger.Debug("command dispatched", "kind", it.Kind.String(), "name", it.Name, "chat", ev.ChatID, "actor", ev.Actor())
	d.emit(bus.EventCommandExecuted, map[string]any{
		"kind": it.Kind.String(), "name": it.Name, "chat": ev.ChatID, "actor": ev.Actor(),
	})
	return d.Execute(ctx, sink, ev, res)
}

// guard applies the table-level group and owner checks.
func (d *Dispatcher) guard(c *Command, req Request) domain.Result {
	if c.GroupOnly && !req.Event.IsGroup() {
		return domain.Reply{Text: TextGroupOnly}
	}
	if c.OwnerOnly && !req.IsOwner {
		return domain.Reply{Text: c.Denied}
	}
	return nil
}

// Execute performs res against sink in the context of ev.
func (d *Dispatcher) Execute(ctx context.Context, sink domain.Sink, ev domain.InboundEvent, res domain.Result) error {
	switch r := res.(type) {
	case nil, domain.NoOp:
		return nil
	case domain.Reply:
		return d.reply(ctx, sink, ev, r.Text)
	case domain.SendToChat:
		if err := sink.SendToChat(ctx, ev.ChatID, r.Text, r.Mentions); err != nil {
			return fmt.Errorf("send to chat %s: %w", ev.ChatID, err)
		}
		return nil
	case domain.Moderation:
		return d.moderate(ctx, sink, ev, r)
	case domain.Sticker:
		return d.sticker(ctx, sink, ev, r)
	case domain.Restart:
		err := d.reply(ctx, sink, ev, r.Text)
		d.logger.Info("restart requested", "actor", ev.Actor())
		d.exit(0)
		return err
	default:
		return fmt.Errorf("unknown result type %T", res)
	}
}

func (d *Dispatcher) reply(ctx context.Context, sink domain.Sink, ev domain.InboundEvent, text string) error {
	if err := sink.Reply(ctx, ev.ChatID, ev.ID, text); err != nil {
		return fmt.Errorf("reply in %s: %w", ev.ChatID, err)
	}
	return nil
}

func (d *Dispatcher) moderate(ctx context.Context, sink domain.Sink, ev domain.InboundEvent, m domain.Moderation) error {
	if m.BestEffort {
		for _, target := range m.Targets {
			if err := d.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("moderation paced out: %w", err)
			}
			if err := d.applyOne(ctx, sink, ev.ChatID, m.Kind, target); err != nil {
				d.moderationFailed(ev, m.Kind, target, err)
			}
		}
		return d.reply(ctx, sink, ev, m.Success)
	}

	var err error
	switch {
	case isParticipantKind(m.Kind):
		err = sink.UpdateParticipants(ctx, ev.ChatID, m.Kind, m.Targets)
	case m.Kind == domain.ModRevokeInvite:
		err = d.applyOne(ctx, sink, ev.ChatID, m.Kind, "")
	default:
		for _, target := range m.Targets {
			if err = d.applyOne(ctx, sink, ev.ChatID, m.Kind, target); err != nil {
				break
			}
		}
	}
	switch {
	case err == nil:
		return d.reply(ctx, sink, ev, m.Success)
	case errors.Is(err, domain.ErrUnsupported) && m.Unsupported != "":
		d.logger.Info("moderation not supported by channel", "kind", m.Kind, "channel", ev.Channel)
		return d.reply(ctx, sink, ev, m.Unsupported)
	default:
		d.moderationFailed(ev, m.Kind, fmt.Sprint(m.Targets), err)
		return d.reply(ctx, sink, ev, m.Failure)
	}
}

func isParticipantKind(k domain.ModerationKind) bool {
	return k == domain.ModRemove || k == domain.ModPromote || k == domain.ModDemote
}

// applyOne performs a single moderation primitive, returning ErrUnsupported
// when the sink lacks the capability.
func (d *Dispatcher) applyOne(ctx context.Context, sink domain.Sink, chatID string, kind domain.ModerationKind, target string) error {
	switch kind {
	case domain.ModRemove, domain.ModPromote, domain.ModDemote:
		return sink.UpdateParticipants(ctx, chatID, kind, []string{target})
	case domain.ModRevokeInvite:
		if r, ok := sink.(domain.InviteRevoker); ok {
			return r.RevokeInvite(ctx, chatID)
		}
	case domain.ModBlock:
		if b, ok := sink.(domain.ContactBlocker); ok {
			return b.BlockContact(ctx, target)
		}
	case domain.ModDelete:
		if del, ok := sink.(domain.MessageDeleter); ok {
			return del.DeleteMessage(ctx, chatID, target)
		}
	default:
		return fmt.Errorf("unknown moderation kind %q", kind)
	}
	return domain.ErrUnsupported
}

func (d *Dispatcher) moderationFailed(ev domain.InboundEvent, kind domain.ModerationKind, target string, err error) {
	d.logger.Warn("moderation action failed", "kind", kind, "chat", ev.ChatID, "target", target, "err", err)
	d.emit(bus.EventModerationFailed, map[string]any{
		"kind": string(kind), "chat": ev.ChatID, "target": target, "error": err.Error(),
	})
}

func (d *Dispatcher) sticker(ctx context.Context, sink domain.Sink, ev domain.InboundEvent, s domain.Sticker) error {
	ss, ok := sink.(domain.StickerSender)
	if !ok {
		d.logger.Info("stickers not supported by channel", "channel", ev.Channel)
		return d.reply(ctx, sink, ev, TextStickerFailed)
	}
	err := ss.SendSticker(ctx, ev.ChatID, s.SourceMessageID, s.Meta)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrMediaUnavailable):
		return d.reply(ctx, sink, ev, TextMediaUnavailable)
	default:
		d.logger.Warn("sticker generation failed", "chat", ev.ChatID, "err", err)
		return d.reply(ctx, sink, ev, TextStickerFailed)
	}
}

func (d *Dispatcher) emit(typ string, payload map[string]any) {
	if d.events == nil {
		return
	}
	d.events.Emit(bus.Event{Type: typ, Source: "command", Payload: payload})
}

func (d *Dispatcher) uptimeSeconds() int {
	return int(d.now().Sub(d.startedAt).Seconds())
}

// Package policy gates events before dispatch: public/private mode and
// per-group protections.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"alphabot/internal/bus"
	"alphabot/internal/domain"
	"alphabot/internal/intent"
	"alphabot/internal/settings"
)

// AntilinkNotice is posted to the group after a link poster is removed.
const AntilinkNotice = "Removed user for posting links (antilink enabled)."

// Decision is the outcome of policy evaluation.
type Decision int

const (
	// Continue lets the event reach the dispatcher.
	Continue Decision = iota
	// Ignore drops the event silently.
	Ignore
	// Handled means a rule already acted on the event.
	Handled
)

func (d Decision) String() string {
	switch d {
	case Ignore:
		return "ignore"
	case Handled:
		return "handled"
	default:
		return "continue"
	}
}

var defaultLinkPatterns = []string{
	`(?i)https?://`,
	`(?i)wa\.me/`,
	`(?i)chat\.whatsapp\.com/`,
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	// ExtraLinkPatterns extend the antilink match. Plain strings match as
	// case-insensitive substrings.
	ExtraLinkPatterns []string
	Events            *bus.EventBus
	Logger            *slog.Logger
}

// Engine evaluates the mode gate and the antilink rule.
type Engine struct {
	linkRe []*regexp.Regexp
	events *bus.EventBus
	logger *slog.Logger
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	linkRe, err := compilePatterns(append(append([]string(nil), defaultLinkPatterns...), cfg.ExtraLinkPatterns...))
	if err != nil {
		return nil, fmt.Errorf("invalid link pattern: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{linkRe: linkRe, events: cfg.Events, logger: logger}, nil
}

// Evaluate applies the rules in order. The mode gate runs first; the antilink
// rule may act through sink.
func (e *Engine) Evaluate(ctx context.Context, sink domain.Sink, ev domain.InboundEvent, it intent.Intent, st *settings.Settings) Decision {
	actor := ev.Actor()

	if it.CommandShaped && !st.IsPublic() && !st.Resolver().IsOwner(actor) {
		e.logger.Info("ignored command from non-owner in private mode",
			"chat", ev.ChatID,
			"actor", actor,
			"command", it.Name,
		)
		e.emit(bus.EventPolicyIgnored, map[string]any{"chat": ev.ChatID, "actor": actor, "command": it.Name})
		return Ignore
	}

	if ev.IsGroup() && st.GroupFlag("antilink") && !ev.FromSelf && e.ContainsLink(ev.Text) {
		return e.antilink(ctx, sink, ev)
	}

	return Continue
}

func (e *Engine) antilink(ctx context.Context, sink domain.Sink, ev domain.InboundEvent) Decision {
	if !ev.Group.IsAdmin(ev.SelfID) {
		e.logger.Info("antilink: bot is not admin, leaving message", "chat", ev.ChatID, "author", ev.AuthorID)
		return Continue
	}
	if ev.AuthorID == "" {
		return Continue
	}

	if err := sink.UpdateParticipants(ctx, ev.ChatID, domain.ModRemove, []string{ev.AuthorID}); err != nil {
		e.logger.Warn("antilink removal failed", "chat", ev.ChatID, "author", ev.AuthorID, "err", err)
		e.emit(bus.EventModerationFailed, map[string]any{
			"chat": ev.ChatID, "kind": string(domain.ModRemove), "target": ev.AuthorID, "error": err.Error(),
		})
		return Continue
	}
	if err := sink.SendToChat(ctx, ev.ChatID, AntilinkNotice, nil); err != nil {
		e.logger.Warn("antilink notice failed", "chat", ev.ChatID, "err", err)
	}

	e.logger.Info("antilink removed author", "chat", ev.ChatID, "author", ev.AuthorID)
	e.emit(bus.EventPolicyAntilink, map[string]any{"chat": ev.ChatID, "author": ev.AuthorID})
	return Handled
}

// ContainsLink reports whether text matches any link pattern.
func (e *Engine) ContainsLink(text string) bool {
	for _, re := range e.linkRe {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (e *Engine) emit(typ string, payload map[string]any) {
	if e.events == nil {
		return
	}
	e.events.Emit(bus.Event{Type: typ, Source: "policy", Payload: payload})
}

// Simple strings are converted to substring-match patterns.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		var re *regexp.Regexp
		var err error
		if isRegex(p) {
			re, err = regexp.Compile(p)
		} else {
			re, err = regexp.Compile(`(?i)` + regexp.QuoteMeta(p))
		}
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func isRegex(s string) bool {
	for _, c := range s {
		switch c {
		case '(', ')', '[', ']', '{', '}', '|', '^', '$', '.', '*', '+', '?', '\\':
			return true
		}
	}
	return false
}

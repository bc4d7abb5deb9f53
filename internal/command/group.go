package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alphabot/internal/domain"
	"alphabot/internal/settings"
)

func (d *Dispatcher) tagAll(_ context.Context, req Request) domain.Result {
	var b strings.Builder
	b.WriteString("📢 *Attention Everyone:*\n\n")
	parts := req.Event.Group.Participants
	mentions := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.ID == "" {
			continue
		}
		mentions = append(mentions, p.ID)
		fmt.Fprintf(&b, "@%s ", p.User)
	}
	return domain.SendToChat{Text: b.String(), Mentions: mentions}
}

func (d *Dispatcher) kickAll(_ context.Context, req Request) domain.Result {
	return d.massAction(req, domain.ModRemove, TextNeedAdminRemove, TextKickAllDone)
}

func (d *Dispatcher) promoteAll(_ context.Context, req Request) domain.Result {
	return d.massAction(req, domain.ModPromote, TextNeedAdminPromote, TextPromoteAllDone)
}

func (d *Dispatcher) massAction(req Request, kind domain.ModerationKind, needAdmin, done string) domain.Result {
	g := req.Event.Group
	if !g.IsAdmin(req.Event.SelfID) {
		return domain.Reply{Text: needAdmin}
	}
	var targets []string
	for _, p := range g.NonAdmins() {
		targets = append(targets, p.ID)
	}
	return domain.Moderation{Kind: kind, Targets: targets, BestEffort: true, Success: done}
}

func (d *Dispatcher) resetLink(context.Context, Request) domain.Result {
	return domain.Moderation{
		Kind:        domain.ModRevokeInvite,
		Success:     TextLinkReset,
		Failure:     TextLinkResetFailed,
		Unsupported: TextLinkUnsupported,
	}
}

func (d *Dispatcher) approveAll(context.Context, Request) domain.Result {
	return domain.Reply{Text: TextApproveAll}
}

func (d *Dispatcher) welcomeUsage(_ context.Context, req Request) domain.Result {
	return domain.Reply{Text: fmt.Sprintf("Usage: %swelcome on|off", req.Prefix())}
}

func (d *Dispatcher) needsQuote(_ context.Context, req Request) domain.Result {
	return domain.Reply{Text: fmt.Sprintf("Reply to a message with %s%s to use this command.", req.Prefix(), req.Intent.Name)}
}

// quoted handles reply-based actions on the quoted message or its author.
func (d *Dispatcher) quoted(_ context.Context, req Request) domain.Result {
	if !req.Event.IsGroup() {
		return domain.Reply{Text: TextGroupOnly}
	}
	q := req.Intent.Quoted
	if q == nil {
		return domain.NoOp{}
	}

	switch req.Intent.Name {
	case "kick":
		return participantAction(domain.ModRemove, q.AuthorID, TextUserRemoved)
	case "promote":
		return participantAction(domain.ModPromote, q.AuthorID, TextUserPromoted)
	case "demote":
		return participantAction(domain.ModDemote, q.AuthorID, TextUserDemoted)
	case "block":
		if !req.IsOwner {
			return domain.Reply{Text: TextOwnerOnlyBlock}
		}
		return domain.Moderation{
			Kind:        domain.ModBlock,
			Targets:     []string{q.AuthorID},
			Success:     TextContactBlocked,
			Failure:     TextBlockFailed,
			Unsupported: TextBlockUnsupported,
		}
	case "delete":
		if !req.IsOwner {
			return domain.Reply{Text: TextOwnerOnlyDelete}
		}
		return domain.Moderation{
			Kind:        domain.ModDelete,
			Targets:     []string{q.ID},
			Success:     TextMessageDeleted,
			Failure:     TextDeleteFailed,
			Unsupported: TextDeleteUnsupported,
		}
	case "warn":
		return domain.Reply{Text: TextUserWarned}
	default:
		return domain.NoOp{}
	}
}

func participantAction(kind domain.ModerationKind, target, success string) domain.Result {
	if target == "" {
		return domain.Reply{Text: TextActionFailed}
	}
	return domain.Moderation{
		Kind:        kind,
		Targets:     []string{target},
		Success:     success,
		Failure:     TextActionFailed,
		Unsupported: TextActionFailed,
	}
}

// toggle sets a protection or behavior flag and echoes the new value.
func (d *Dispatcher) toggle(_ context.Context, req Request) domain.Result {
	name, on := req.Intent.Name, req.Intent.On
	if _, err := d.store.SetToggle(name, on); errors.Is(err, settings.ErrUnknownToggle) {
		return domain.NoOp{}
	}
	d.settingsChanged(req, name, on)

	if name == "welcome" {
		return domain.Reply{Text: "Welcome messages " + onOff(on)}
	}
	return domain.Reply{Text: fmt.Sprintf("%s set to %v", name, on)}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

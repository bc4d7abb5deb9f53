package command

import (
	"context"
	"fmt"
	"strings"

	"alphabot/internal/domain"
	"alphabot/internal/identity"
	"alphabot/internal/settings"
)

// runtimeLayout mirrors a JavaScript Date string.
const runtimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

func (d *Dispatcher) ping(_ context.Context, req Request) domain.Result {
	return domain.Reply{Text: fmt.Sprintf("🏓 Pong!\nUptime: %ds\nMode: %s", d.uptimeSeconds(), req.Settings.Mode())}
}

func (d *Dispatcher) menu(_ context.Context, req Request) domain.Result {
	return domain.SendToChat{Text: RenderMenu(MenuData{
		PushName: req.Event.PushName,
		Mode:     req.Settings.Mode(),
		Prefix:   req.Prefix(),
		Owners:   req.Settings.Owners(),
	})}
}

func (d *Dispatcher) help(_ context.Context, req Request) domain.Result {
	p := req.Prefix()
	return domain.Reply{Text: fmt.Sprintf("✨ Send %smenu for commands. For support use %ssupport or %sfeedback <text>", p, p, p)}
}

func (d *Dispatcher) botStatus(context.Context, Request) domain.Result {
	return domain.Reply{Text: fmt.Sprintf("Bot is running. Uptime: %ds", d.uptimeSeconds())}
}

func (d *Dispatcher) pair(context.Context, Request) domain.Result {
	return domain.Reply{Text: TextPair}
}

func (d *Dispatcher) repo(context.Context, Request) domain.Result {
	if d.repoURL == "" {
		return domain.Reply{Text: TextRepoMissing}
	}
	return domain.Reply{Text: d.repoURL}
}

func (d *Dispatcher) runtime(context.Context, Request) domain.Result {
	return domain.Reply{Text: fmt.Sprintf("Runtime: %s\nUptime: %ds", d.now().Format(runtimeLayout), d.uptimeSeconds())}
}

func (d *Dispatcher) owner(_ context.Context, req Request) domain.Result {
	owners := TextNotSet
	if list := req.Settings.Owners(); len(list) > 0 {
		owners = strings.Join(list, ",")
	}
	return domain.Reply{Text: fmt.Sprintf("Owner: %s (%s)", settings.StringOr(req.Settings.OwnerName, TextNotSet), owners)}
}

func (d *Dispatcher) mode(_ context.Context, req Request) domain.Result {
	detail := "Anyone can use commands."
	if !req.Settings.IsPublic() {
		detail = "Only owner can use commands."
	}
	return domain.Reply{Text: fmt.Sprintf("Mode: %s\n%s", req.Settings.Mode(), detail)}
}

func (d *Dispatcher) support(_ context.Context, req Request) domain.Result {
	var contacts []string
	for _, o := range req.Settings.Owners() {
		if digits, ok := identity.Normalize(o); ok {
			contacts = append(contacts, "https://wa.me/"+digits)
		}
	}
	contact := TextNotSet
	if len(contacts) > 0 {
		contact = strings.Join(contacts, "\n")
	}
	return domain.Reply{Text: fmt.Sprintf("🧰 *Support*\nOwner: %s\nContact: %s\nChannel: %s",
		settings.StringOr(req.Settings.OwnerName, TextNotSet),
		contact,
		settings.StringOr(req.Settings.ChannelLink, TextNotSet),
	)}
}

func (d *Dispatcher) feedbackCmd(_ context.Context, req Request) domain.Result {
	if d.feedback != nil {
		if err := d.feedback.Append(req.Event.Actor(), req.Intent.Args); err != nil {
			d.logger.Error("could not append feedback", "actor", req.Event.Actor(), "err", err)
		}
	}
	return domain.Reply{Text: TextFeedbackThanks}
}

func (d *Dispatcher) stickerCmd(_ context.Context, req Request) domain.Result {
	source, hasMedia := req.Event.ID, req.Event.HasMedia
	if q := req.Event.Quoted; q != nil {
		source, hasMedia = q.ID, q.HasMedia
	}
	if !hasMedia {
		return domain.Reply{Text: fmt.Sprintf("Please reply to an image/video or send media with caption %ssticker", req.Prefix())}
	}
	return domain.Sticker{
		SourceMessageID: source,
		Meta:            domain.StickerMeta{Author: StickerAuthor, Name: StickerName},
	}
}

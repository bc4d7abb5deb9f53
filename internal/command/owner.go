package command

import (
	"context"
	"unicode/utf8"

	"alphabot/internal/bus"
	"alphabot/internal/domain"
	"alphabot/internal/identity"
	"alphabot/internal/settings"
)

// setOwnerName has no owner check, unlike setchannel.
func (d *Dispatcher) setOwnerName(_ context.Context, req Request) domain.Result {
	name := req.Intent.Args
	d.update(req, "ownerName", name, func(s *settings.Settings) {
		s.OwnerName = &name
	})
	return domain.Reply{Text: TextOwnerNameSet}
}

func (d *Dispatcher) setOwnerNumber(_ context.Context, req Request) domain.Result {
	owners := identity.ParseList(req.Intent.Args)
	if len(owners) == 0 {
		return domain.Reply{Text: TextInvalidNumber}
	}
	d.update(req, "ownerNumbers", owners, func(s *settings.Settings) {
		s.OwnerNumbers = owners
		s.OwnerNumber = owners[0]
	})
	return domain.Reply{Text: TextOwnerNumbersSet}
}

// setPrefix has no owner check and keeps the first rune of the argument.
func (d *Dispatcher) setPrefix(_ context.Context, req Request) domain.Result {
	r, _ := utf8.DecodeRuneInString(req.Intent.Args)
	prefix := string(r)
	d.update(req, "prefix", prefix, func(s *settings.Settings) {
		s.Prefix = prefix
	})
	return domain.Reply{Text: "Prefix updated to " + prefix}
}

func (d *Dispatcher) setChannel(_ context.Context, req Request) domain.Result {
	link := req.Intent.Args
	if link == "" {
		return domain.Reply{Text: "Usage: " + req.Prefix() + "setchannel https://..."}
	}
	d.update(req, "channelLink", link, func(s *settings.Settings) {
		s.ChannelLink = &link
	})
	return domain.Reply{Text: TextChannelSaved}
}

func (d *Dispatcher) restart(context.Context, Request) domain.Result {
	return domain.Restart{Text: TextRestarting}
}

func (d *Dispatcher) setPublic(_ context.Context, req Request) domain.Result {
	d.update(req, "public", true, func(s *settings.Settings) { s.SetPublic(true) })
	return domain.Reply{Text: TextPublicMode}
}

func (d *Dispatcher) setPrivate(_ context.Context, req Request) domain.Result {
	d.update(req, "public", false, func(s *settings.Settings) { s.SetPublic(false) })
	return domain.Reply{Text: TextPrivateMode}
}

// update mutates and saves the settings. Save failures are logged by the
// store and do not change the reply.
func (d *Dispatcher) update(req Request, key string, value any, fn func(*settings.Settings)) {
	_, _ = d.store.Update(func(s *settings.Settings) error {
		fn(s)
		return nil
	})
	d.settingsChanged(req, key, value)
}

func (d *Dispatcher) settingsChanged(req Request, key string, value any) {
	d.emit(bus.EventSettingsChanged, map[string]any{
		"key": key, "value": value, "actor": req.Event.Actor(), "chat": req.Event.ChatID,
	})
}

package command

import "alphabot/internal/intent"

// table lists every command. Quoted verbs appear here too so that a bare
// "#kick" without a quoted message gets a corrective reply.
func (d *Dispatcher) table() []*Command {
	return []*Command{
		// General
		{Name: "ping", Handler: d.ping},
		{Name: "menu", Handler: d.menu},
		{Name: "help", Handler: d.help},
		{Name: "botstatus", Handler: d.botStatus},
		{Name: "pair", Handler: d.pair},
		{Name: "repo", Handler: d.repo},
		{Name: "runtime", Handler: d.runtime},
		{Name: "owner", Handler: d.owner},
		{Name: "mode", Handler: d.mode},
		{Name: "support", Handler: d.support},
		{Name: "feedback", Args: intent.ArgsOptional, Handler: d.feedbackCmd},
		{Name: "sticker", Aliases: []string{"s"}, Handler: d.stickerCmd},

		// Group
		{Name: "tagall", GroupOnly: true, Handler: d.tagAll},
		{Name: "kickall", GroupOnly: true, Handler: d.kickAll},
		{Name: "promoteall", GroupOnly: true, Handler: d.promoteAll},
		{Name: "resetlink", GroupOnly: true, Handler: d.resetLink},
		{Name: "approveall", Handler: d.approveAll},
		{Name: "welcome", Args: intent.ArgsOptional, Handler: d.welcomeUsage},
		{Name: "kick", Handler: d.needsQuote},
		{Name: "promote", Handler: d.needsQuote},
		{Name: "demote", Handler: d.needsQuote},
		{Name: "block", Handler: d.needsQuote},
		{Name: "delete", Handler: d.needsQuote},
		{Name: "warn", Handler: d.needsQuote},

		// Owner and settings
		{Name: "setownername", Args: intent.ArgsRequired, Handler: d.setOwnerName},
		{Name: "setownernumber", Args: intent.ArgsRequired, Handler: d.setOwnerNumber},
		{Name: "setprefix", Args: intent.ArgsRequired, Handler: d.setPrefix},
		{Name: "setchannel", Args: intent.ArgsOptional, OwnerOnly: true, Denied: TextOwnerOnlyChannel, Handler: d.setChannel},
		{Name: "restart", OwnerOnly: true, Denied: TextOwnerOnlyRestart, Handler: d.restart},
		{Name: "public", OwnerOnly: true, Denied: TextOwnerOnlyMode, Handler: d.setPublic},
		{Name: "private", OwnerOnly: true, Denied: TextOwnerOnlyMode, Handler: d.setPrivate},
	}
}

package command

import (
	"strings"
	"text/template"
)

// MenuData fills the help document.
type MenuData struct {
	PushName string
	Mode     string
	Prefix   string
	Owners   []string
}

var menuTmpl = template.Must(template.New("menu").Parse(`╔════════════════════════════════╗
║  ✨ {{.Bot}} — v{{.Version}}
╟────────────────────────────────╢
║ User: {{.User}}
║ Mode: {{.Mode}}    Prefix: {{.P}}
║ Owner(s): {{.Owners}}
╚════════════════════════════════╝

*📌 Group Commands*
1. {{.P}}tagall        — Mention all members
2. {{.P}}kick (reply)  — Remove replied member
3. {{.P}}promote (reply) — Promote replied member
4. {{.P}}demote (reply) — Demote replied member
5. {{.P}}antilink on/off — Block or allow links
6. {{.P}}antibot on/off — Block bot accounts
7. {{.P}}antiforeign on/off — Block foreign numbers
8. {{.P}}antigroupmention on/off — Restrict @all mentions
9. {{.P}}approveall     — Approve pending members (placeholder)
10.{{.P}}kickall       — Remove all non-admins (admin only)
11.{{.P}}promoteall    — Promote all non-admins (admin only)
12.{{.P}}resetlink     — Reset group invite link
13.{{.P}}welcome on/off — Toggle welcome messages

*⚙️ Other*
• {{.P}}botstatus — Check bot health
• {{.P}}pair      — Show pairing instructions
• {{.P}}ping      — Latency & uptime
• {{.P}}repo      — Repository link
• {{.P}}runtime   — Show runtime info
• {{.P}}sticker   — Turn replied media into a sticker

*🔐 Owner (Admin only)*
• {{.P}}owner         — Show owner info
• {{.P}}restart       — Restart bot
• {{.P}}public        — Allow commands for everyone
• {{.P}}private       — Restrict commands to owner
• {{.P}}mode          — Show current mode
• {{.P}}setchannel <link>      — Set support channel link

*⚙️ Settings*
• {{.P}}setownername <name>    — Set owner display name
• {{.P}}setownernumber <num>   — Set one or more owner numbers
• {{.P}}setprefix <ch>         — Change command prefix
• {{.P}}alwaysonline on/off    — Keep bot always online
• {{.P}}anticall on/off        — Block incoming calls

*🧰 Support*
• {{.P}}support    — One-tap contact & channel
• {{.P}}feedback <text> — Send feedback to owner

Type the command exactly. Use (reply) where required.`))

// RenderMenu returns the help document. It has no trailing newline.
func RenderMenu(m MenuData) string {
	user := m.PushName
	if user == "" {
		user = "User"
	}
	owners := TextNotSet
	if len(m.Owners) > 0 {
		owners = strings.Join(m.Owners, ", ")
	}
	prefix := m.Prefix
	if prefix == "" {
		prefix = "#"
	}

	var b strings.Builder
	_ = menuTmpl.Execute(&b, map[string]string{
		"Bot":     BotName,
		"Version": BotVersion,
		"User":    user,
		"Mode":    m.Mode,
		"P":       prefix,
		"Owners":  owners,
	})
	return b.String()
}

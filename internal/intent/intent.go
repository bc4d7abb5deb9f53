// Package intent classifies inbound chat text into plain text, commands,
// toggles and quoted-reply actions.
package intent

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"alphabot/internal/domain"
	"alphabot/internal/settings"
)

// Kind tags an Intent.
type Kind int

const (
	PlainText Kind = iota
	Command
	Toggle
	Quoted
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Toggle:
		return "toggle"
	case Quoted:
		return "quoted"
	default:
		return "plain"
	}
}

// Intent is the classified form of an inbound event.
type Intent struct {
	Kind Kind
	// Name is the lower-cased command, toggle or quoted verb.
	Name string
	// Args is the remainder after the name, trimmed, exactly as sent.
	Args string
	// On is the requested toggle state.
	On bool
	// Quoted is the target of a quoted-reply action.
	Quoted *domain.QuotedMessage
	// CommandShaped is true when the text starts with the prefix, whatever
	// the classification.
	CommandShaped bool
}

// ArgRule constrains the argument string of a command.
type ArgRule int

const (
	ArgsNone ArgRule = iota
	ArgsRequired
	ArgsOptional
)

func (r ArgRule) allows(args string) bool {
	switch r {
	case ArgsNone:
		return args == ""
	case ArgsRequired:
		return args != ""
	default:
		return true
	}
}

// Table answers which command names exist and what arguments they take.
type Table interface {
	Lookup(name string) (ArgRule, bool)
}

// QuotedVerbs act on the author or id of a quoted message.
var QuotedVerbs = []string{"kick", "promote", "demote", "block", "delete", "warn"}

// Classifier is a pure function of text, prefix, quoted presence and table.
type Classifier struct {
	table Table
}

func NewClassifier(table Table) *Classifier {
	return &Classifier{table: table}
}

// Normalize applies NFKC and trims surrounding whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(norm.NFKC.String(text))
}

// Classify turns ev into an Intent using prefix (empty means "#").
func (c *Classifier) Classify(ev domain.InboundEvent, prefix string) Intent {
	if prefix == "" {
		prefix = settings.DefaultPrefix
	}
	// Only the prefix and the command token are normalized; the arguments
	// keep the text as sent.
	raw := strings.TrimSpace(ev.Text)
	_, size := utf8.DecodeRuneInString(raw)
	end := strings.IndexFunc(raw[size:], unicode.IsSpace)
	if end < 0 {
		end = len(raw) - size
	}
	head := Normalize(raw[:size+end])
	if !HasPrefix(head, prefix) {
		return Intent{Kind: PlainText}
	}
	it := Intent{Kind: PlainText, CommandShaped: true}

	_, psize := utf8.DecodeRuneInString(head)
	name := strings.ToLower(head[psize:])
	if name == "" {
		return it
	}
	args := strings.TrimSpace(raw[size+end:])

	switch lower := strings.ToLower(Normalize(args)); {
	case (lower == "on" || lower == "off") && settings.IsToggle(name):
		it.Kind, it.Name, it.On = Toggle, name, lower == "on"
		return it
	case ev.Quoted != nil && args == "" && slices.Contains(QuotedVerbs, name):
		q := *ev.Quoted
		it.Kind, it.Name, it.Quoted = Quoted, name, &q
		return it
	}

	if c.table != nil {
		if rule, ok := c.table.Lookup(name); ok && rule.allows(args) {
			it.Kind, it.Name, it.Args = Command, name, args
		}
	}
	return it
}

// HasPrefix reports whether normalized text starts with the one-rune prefix,
// ignoring case.
func HasPrefix(text, prefix string) bool {
	if text == "" || prefix == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	p, _ := utf8.DecodeRuneInString(prefix)
	return strings.EqualFold(string(first), string(p))
}

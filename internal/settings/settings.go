// Package settings holds the chat-editable bot settings document and its
// durable store.
package settings

import (
	"errors"
	"fmt"
	"slices"

	"alphabot/internal/identity"
)

// DefaultPrefix is used whenever the stored prefix is empty or missing.
const DefaultPrefix = "#"

var (
	// ErrUnknownToggle is returned for a toggle name outside the allow-lists.
	ErrUnknownToggle = errors.New("unknown toggle")
	// ErrSchema marks a settings document that does not match the schema.
	ErrSchema = errors.New("settings schema violation")
)

// PersistenceError reports a settings file that could not be read, decoded
// or written.
type PersistenceError struct {
	Op   string // "load" | "save"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settings %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// GroupKeys are the per-group protection toggles.
var GroupKeys = []string{"antilink", "antibot", "antiforeign", "antigroupmention", "welcome"}

// BehaviorKeys are the bot behavior flags.
var BehaviorKeys = []string{
	"alwaysonline", "antibug", "anticall", "antidelete", "autoreact",
	"autoreactstatus", "autoread", "autorecord", "autorecordtyping",
	"autotyping", "autostatusview",
}

// Section identifies which map a toggle lives in.
type Section int

const (
	SectionNone Section = iota
	SectionGroup
	SectionBehavior
)

// ToggleSection returns the section holding the toggle name.
func ToggleSection(name string) Section {
	switch {
	case slices.Contains(GroupKeys, name):
		return SectionGroup
	case slices.Contains(BehaviorKeys, name):
		return SectionBehavior
	default:
		return SectionNone
	}
}

// IsToggle reports whether name is an allowed toggle.
func IsToggle(name string) bool { return ToggleSection(name) != SectionNone }

// Settings is the persisted bot settings document. Field names on disk keep
// the historical layout.
type Settings struct {
	Prefix       string          `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	OwnerNumber  string          `json:"ownerNumber,omitempty" yaml:"ownerNumber,omitempty"`
	OwnerNumbers []string        `json:"ownerNumbers,omitempty" yaml:"ownerNumbers,omitempty"`
	ChannelLink  *string         `json:"channelLink" yaml:"channelLink"`
	Public       *bool           `json:"public,omitempty" yaml:"public,omitempty"`
	OwnerName    *string         `json:"ownerName" yaml:"ownerName"`
	Group        map[string]bool `json:"group,omitempty" yaml:"group,omitempty"`
	Behavior     map[string]bool `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// DefaultOwners is the first-run owner list.
var DefaultOwners = []string{"+254701964272", "+254791536079"}

// Defaults returns the first-run document. owners overrides DefaultOwners
// when it yields at least one valid number.
func Defaults(owners []string) *Settings {
	list := make([]string, 0, len(owners))
	for _, o := range owners {
		if c, ok := identity.Canonical(o); ok {
			list = append(list, c)
		}
	}
	if len(list) == 0 {
		list = slices.Clone(DefaultOwners)
	}

	public := true
	s := &Settings{
		Prefix:       DefaultPrefix,
		OwnerNumber:  list[0],
		OwnerNumbers: list,
		Public:       &public,
		Group:        make(map[string]bool, len(GroupKeys)),
		Behavior:     make(map[string]bool, len(BehaviorKeys)),
	}
	for _, k := range GroupKeys {
		s.Group[k] = k == "welcome"
	}
	for _, k := range BehaviorKeys {
		s.Behavior[k] = false
	}
	return s
}

// normalizeOwners rewrites hand-edited owner entries to "+<digits>". List
// entries without a digit are dropped; a primary without one is cleared.
func (s *Settings) normalizeOwners() {
	if c, ok := identity.Canonical(s.OwnerNumber); ok {
		s.OwnerNumber = c
	} else {
		s.OwnerNumber = ""
	}
	if s.OwnerNumbers == nil {
		return
	}
	list := make([]string, 0, len(s.OwnerNumbers))
	for _, o := range s.OwnerNumbers {
		if c, ok := identity.Canonical(o); ok {
			list = append(list, c)
		}
	}
	s.OwnerNumbers = list
}

// EffectivePrefix returns the command prefix, falling back to "#".
func (s *Settings) EffectivePrefix() string {
	if s == nil || s.Prefix == "" {
		return DefaultPrefix
	}
	return s.Prefix
}

// IsPublic reports whether commands are accepted from everyone. A missing
// value reads as public.
func (s *Settings) IsPublic() bool {
	return s == nil || s.Public == nil || *s.Public
}

// Mode returns "PUBLIC" or "PRIVATE".
func (s *Settings) Mode() string {
	if s.IsPublic() {
		return "PUBLIC"
	}
	return "PRIVATE"
}

// Resolver returns an owner resolver over the stored owner fields.
func (s *Settings) Resolver() identity.Resolver {
	if s == nil {
		return identity.Resolver{}
	}
	return identity.Resolver{Primary: s.OwnerNumber, Owners: s.OwnerNumbers}
}

// Owners returns the owner list, or the primary owner alone when the list is
// empty.
func (s *Settings) Owners() []string {
	if s == nil {
		return nil
	}
	if len(s.OwnerNumbers) > 0 {
		return slices.Clone(s.OwnerNumbers)
	}
	if s.OwnerNumber != "" {
		return []string{s.OwnerNumber}
	}
	return nil
}

// GroupFlag reads a protection toggle; missing reads as off.
func (s *Settings) GroupFlag(name string) bool {
	return s != nil && s.Group[name]
}

// BehaviorFlag reads a behavior toggle; missing reads as off.
func (s *Settings) BehaviorFlag(name string) bool {
	return s != nil && s.Behavior[name]
}

// Toggle reads any allowed toggle.
func (s *Settings) Toggle(name string) (bool, error) {
	switch ToggleSection(name) {
	case SectionGroup:
		return s.GroupFlag(name), nil
	case SectionBehavior:
		return s.BehaviorFlag(name), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownToggle, name)
	}
}

// SetToggle sets an allowed toggle, creating its section when missing.
func (s *Settings) SetToggle(name string, on bool) error {
	switch ToggleSection(name) {
	case SectionGroup:
		if s.Group == nil {
			s.Group = make(map[string]bool)
		}
		s.Group[name] = on
	case SectionBehavior:
		if s.Behavior == nil {
			s.Behavior = make(map[string]bool)
		}
		s.Behavior[name] = on
	default:
		return fmt.Errorf("%w: %s", ErrUnknownToggle, name)
	}
	return nil
}

// SetPublic stores the mode flag.
func (s *Settings) SetPublic(public bool) {
	s.Public = &public
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	c := *s
	c.OwnerNumbers = slices.Clone(s.OwnerNumbers)
	if s.ChannelLink != nil {
		v := *s.ChannelLink
		c.ChannelLink = &v
	}
	if s.OwnerName != nil {
		v := *s.OwnerName
		c.OwnerName = &v
	}
	if s.Public != nil {
		v := *s.Public
		c.Public = &v
	}
	if s.Group != nil {
		c.Group = make(map[string]bool, len(s.Group))
		for k, v := range s.Group {
			c.Group[k] = v
		}
	}
	if s.Behavior != nil {
		c.Behavior = make(map[string]bool, len(s.Behavior))
		for k, v := range s.Behavior {
			c.Behavior[k] = v
		}
	}
	return &c
}

// StringOr dereferences p, returning def when p is nil or empty.
func StringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

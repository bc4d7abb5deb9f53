package domain

import "time"

// InboundEvent is a decoded chat message handed over by a channel adapter.
// It is a snapshot: handlers never mutate it and it is never persisted.
type InboundEvent struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	ChatID    string         `json:"chatId"`
	SenderID  string         `json:"senderId"`           // origin of the message (the group for group chats)
	AuthorID  string         `json:"authorId,omitempty"` // participant who wrote it, group chats only
	SelfID    string         `json:"selfId,omitempty"`   // the bot account on this channel
	FromSelf  bool           `json:"fromSelf,omitempty"` // outbound echo of the bot's own message
	Text      string         `json:"text"`
	HasMedia  bool           `json:"hasMedia,omitempty"`
	Quoted    *QuotedMessage `json:"quoted,omitempty"`
	Group     *GroupInfo     `json:"group,omitempty"`
	PushName  string         `json:"pushName,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QuotedMessage is the message an inbound event replies to.
type QuotedMessage struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	HasMedia bool   `json:"hasMedia,omitempty"`
}

// Participant is one member of a group roster.
type Participant struct {
	ID      string `json:"id"`
	User    string `json:"user"` // display handle used in @mentions
	IsAdmin bool   `json:"isAdmin"`
}

// GroupInfo is the roster of a group chat at the time the event was received.
type GroupInfo struct {
	Subject      string        `json:"subject,omitempty"`
	Participants []Participant `json:"participants"`
}

// IsGroup reports whether the event was received in a group chat.
func (e InboundEvent) IsGroup() bool { return e.Group != nil }

// Actor returns the identity that issued the message: the group participant
// when there is one, the sender otherwise.
func (e InboundEvent) Actor() string {
	if e.AuthorID != "" {
		return e.AuthorID
	}
	return e.SenderID
}

// IsAdmin reports whether id holds admin rights in the group.
func (g *GroupInfo) IsAdmin(id string) bool {
	if g == nil || id == "" {
		return false
	}
	for _, p := range g.Participants {
		if p.ID == id {
			return p.IsAdmin
		}
	}
	return false
}

// NonAdmins returns the participants without admin rights, in roster order.
func (g *GroupInfo) NonAdmins() []Participant {
	if g == nil {
		return nil
	}
	out := make([]Participant, 0, len(g.Participants))
	for _, p := range g.Participants {
		if !p.IsAdmin && p.ID != "" {
			out = append(out, p)
		}
	}
	return out
}

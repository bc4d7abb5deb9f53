package testutil

import (
	"time"

	"alphabot/internal/domain"
)

const (
	BotID   = "254700000000@c.us"
	OwnerID = "254701964272@c.us"
	GroupID = "120363000000000000@g.us"
)

// GroupEvent builds a group message from author with the bot as admin and
// the given extra members.
func GroupEvent(text, author string, botAdmin bool, members ...domain.Participant) domain.InboundEvent {
	parts := []domain.Participant{{ID: BotID, User: "254700000000", IsAdmin: botAdmin}}
	seen := map[string]bool{BotID: true}
	if author != "" && !seen[author] {
		parts = append(parts, domain.Participant{ID: author, User: userPart(author)})
		seen[author] = true
	}
	for _, m := range members {
		if !seen[m.ID] {
			parts = append(parts, m)
			seen[m.ID] = true
		}
	}
	return domain.InboundEvent{
		ID:        "msg-" + text,
		Channel:   "test",
		ChatID:    GroupID,
		SenderID:  GroupID,
		AuthorID:  author,
		SelfID:    BotID,
		Text:      text,
		Group:     &domain.GroupInfo{Subject: "Test Group", Participants: parts},
		PushName:  "Tester",
		Timestamp: time.Unix(1700000000, 0),
	}
}

// DirectEvent builds a one-to-one message from sender.
func DirectEvent(text, sender string) domain.InboundEvent {
	return domain.InboundEvent{
		ID:        "msg-" + text,
		Channel:   "test",
		ChatID:    sender,
		SenderID:  sender,
		SelfID:    BotID,
		Text:      text,
		PushName:  "Tester",
		Timestamp: time.Unix(1700000000, 0),
	}
}

func userPart(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '@' {
			return id[:i]
		}
	}
	return id
}

package domain

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned by a channel that cannot perform an action.
	ErrUnsupported = errors.New("action not supported by channel")
	// ErrMediaUnavailable is returned when message media cannot be fetched.
	ErrMediaUnavailable = errors.New("media unavailable")
	// ErrNotAdmin is returned when the bot lacks admin rights in a group.
	ErrNotAdmin = errors.New("bot is not a group admin")
)

// ModerationKind names a moderation primitive.
type ModerationKind string

const (
	ModRemove       ModerationKind = "remove"
	ModPromote      ModerationKind = "promote"
	ModDemote       ModerationKind = "demote"
	ModRevokeInvite ModerationKind = "revoke_invite"
	ModBlock        ModerationKind = "block"
	ModDelete       ModerationKind = "delete"
)

// Sink is the outbound side of a channel. Every channel adapter implements it.
type Sink interface {
	// Reply answers a message in the chat it came from, quoting it when the
	// channel supports quoting.
	Reply(ctx context.Context, chatID, messageID, text string) error
	// SendToChat posts a message, optionally mentioning participants.
	SendToChat(ctx context.Context, chatID, text string, mentions []string) error
	// UpdateParticipants removes, promotes or demotes group participants.
	UpdateParticipants(ctx context.Context, chatID string, kind ModerationKind, participants []string) error
	// DirectChat returns the chat address of a one-to-one conversation with
	// the digit-normalized identity.
	DirectChat(identity string) string
}

// Optional sink capabilities, discovered by type assertion.

type InviteRevoker interface {
	RevokeInvite(ctx context.Context, chatID string) error
}

type ContactBlocker interface {
	BlockContact(ctx context.Context, contactID string) error
}

type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID, messageID string) error
}

type StickerSender interface {
	SendSticker(ctx context.Context, chatID, sourceMessageID string, meta StickerMeta) error
}

// StickerMeta is the pack metadata attached to a generated sticker.
type StickerMeta struct {
	Author string `json:"author"`
	Name   string `json:"name"`
}

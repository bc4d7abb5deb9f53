// Package testutil provides an in-memory recording sink for router tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"alphabot/internal/domain"
)

// Call is one recorded outbound action.
type Call struct {
	Op       string // "reply" | "send" | "participants" | "revoke" | "block" | "delete" | "sticker"
	ChatID   string
	Target   string // message id, contact id or joined participant ids
	Text     string
	Kind     domain.ModerationKind
	Mentions []string
}

// RecordingSink records every outbound action and implements all optional
// capabilities.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingSink struct {
	mu    sync.Mutex
	calls []Call
	// Fail maps an op name, or "participants:<id>", to the error it returns.
	fail map[string]error
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{fail: make(map[string]error)}
}

// FailOn makes op return err. For participant updates op may be
// "participants:<participant id>" to fail a single target.
func (s *RecordingSink) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

func (s *RecordingSink) record(c Call, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if err, ok := s.fail[k]; ok {
			return err
		}
	}
	s.calls = append(s.calls, c)
	return nil
}

// Calls returns a copy of the recorded calls.
func (s *RecordingSink) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Ops returns the op names of the recorded calls in order.
func (s *RecordingSink) Ops() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

// Texts returns the texts of replies and sent messages in order.
func (s *RecordingSink) Texts() []string {
	var out []string
	for _, c := range s.Calls() {
		if c.Op == "reply" || c.Op == "send" {
			out = append(out, c.Text)
		}
	}
	return out
}

// LastText returns the most recent reply or sent text, or "".
func (s *RecordingSink) LastText() string {
	texts := s.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (s *RecordingSink) Reply(_ context.Context, chatID, messageID, text string) error {
	return s.record(Call{Op: "reply", ChatID: chatID, Target: messageID, Text: text}, "reply")
}

func (s *RecordingSink) SendToChat(_ context.Context, chatID, text string, mentions []string) error {
	return s.record(Call{Op: "send", ChatID: chatID, Text: text, Mentions: append([]string(nil), mentions...)}, "send")
}

func (s *RecordingSink) UpdateParticipants(_ context.Context, chatID string, kind domain.ModerationKind, participants []string) error {
	keys := []string{"participants", "participants:" + string(kind)}
	for _, p := range participants {
		keys = append(keys, "participants:"+p)
	}
	return s.record(Call{Op: "participants", ChatID: chatID, Kind: kind, Target: strings.Join(participants, ",")}, keys...)
}

func (s *RecordingSink) DirectChat(identity string) string {
	return fmt.Sprintf("%s@c.us", identity)
}

func (s *RecordingSink) RevokeInvite(_ context.Context, chatID string) error {
	return s.record(Call{Op: "revoke", ChatID: chatID, Kind: domain.ModRevokeInvite}, "revoke")
}

func (s *RecordingSink) BlockContact(_ context.Context, contactID string) error {
	return s.record(Call{Op: "block", Target: contactID, Kind: domain.ModBlock}, "block")
}

func (s *RecordingSink) DeleteMessage(_ context.Context, chatID, messageID string) error {
	return s.record(Call{Op: "delete", ChatID: chatID, Target: messageID, Kind: domain.ModDelete}, "delete")
}

func (s *RecordingSink) SendSticker(_ context.Context, chatID, sourceMessageID string, meta domain.StickerMeta) error {
	return s.record(Call{Op: "sticker", ChatID: chatID, Target: sourceMessageID, Text: meta.Author + "/" + meta.Name}, "sticker")
}

// BasicSink exposes only the required Sink methods of a RecordingSink.
type BasicSink struct {
	Rec *RecordingSink
}

func (b BasicSink) Reply(ctx context.Context, chatID, messageID, text string) error {
	return b.Rec.Reply(ctx, chatID, messageID, text)
}

func (b BasicSink) SendToChat(ctx context.Context, chatID, text string, mentions []string) error {
	return b.Rec.SendToChat(ctx, chatID, text, mentions)
}

func (b BasicSink) UpdateParticipants(ctx context.Context, chatID string, kind domain.ModerationKind, participants []string) error {
	return b.Rec.UpdateParticipants(ctx, chatID, kind, participants)
}

func (b BasicSink) DirectChat(identity string) string { return b.Rec.DirectChat(identity) }

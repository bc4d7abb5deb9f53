package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"alphabot/internal/domain"
)

// Frame is the bridge wire format. Three types: "req" (bot to bridge),
// "res" (bridge to bot) and "event" (bridge push).
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Bridge error codes with a domain meaning.
const (
	CodeUnsupported      = "UNSUPPORTED"
	CodeMediaUnavailable = "MEDIA_UNAVAILABLE"
	CodeNotAdmin         = "NOT_ADMIN"
)

// Bridge methods.
const (
	MethodConnect      = "connect"
	MethodReply        = "message.reply"
	MethodSend         = "message.send"
	MethodDelete       = "message.delete"
	MethodParticipants = "group.participants"
	MethodRevokeInvite = "group.revokeInvite"
	MethodBlock        = "contact.block"
	MethodSticker      = "sticker.send"
)

// Bridge events.
const (
	EventReady   = "ready"
	EventMessage = "message"
)

type ConnectParams struct {
	Role  string `json:"role"`
	Token string `json:"token,omitempty"`
}

type ReadyPayload struct {
	Self string `json:"self"`
}

type ReplyParams struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

type SendParams struct {
	ChatID   string   `json:"chatId"`
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
}

type ParticipantsParams struct {
	ChatID       string   `json:"chatId"`
	Action       string   `json:"action"`
	Participants []string `json:"participants"`
}

type ChatParams struct {
	ChatID string `json:"chatId"`
}

type BlockParams struct {
	ContactID string `json:"contactId"`
}

type DeleteParams struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

type StickerParams struct {
	ChatID          string `json:"chatId"`
	SourceMessageID string `json:"sourceMessageId"`
	domain.StickerMeta
}

func reqFrame(id, method string, params any) (Frame, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s params: %w", method, err)
	}
	return Frame{Type: "req", ID: id, Method: method, Params: data}, nil
}

func ResOK(id string, payload any) Frame {
	data, _ := json.Marshal(payload)
	ok := true
	return Frame{Type: "res", ID: id, OK: &ok, Payload: data}
}

func ResErr(id, code, message string) Frame {
	ok := false
	return Frame{Type: "res", ID: id, OK: &ok, Error: &ErrorPayload{Code: code, Message: message}}
}

func EventFrame(event string, payload any) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Type: "event", Event: event, Payload: data}
}

// RemoteError is a failed bridge response.
type RemoteError struct {
	Method  string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge %s: %s: %s", e.Method, e.Code, e.Message)
}

// Unwrap maps well-known codes to domain errors.
func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeUnsupported:
		return domain.ErrUnsupported
	case CodeMediaUnavailable:
		return domain.ErrMediaUnavailable
	case CodeNotAdmin:
		return domain.ErrNotAdmin
	}
	return nil
}

// result turns a response frame into its payload or error.
func (f Frame) result(method string) (json.RawMessage, error) {
	if f.OK != nil && *f.OK {
		return f.Payload, nil
	}
	if f.Error == nil {
		return nil, &RemoteError{Method: method, Code: "UNKNOWN", Message: "response without ok flag"}
	}
	return nil, &RemoteError{Method: method, Code: f.Error.Code, Message: f.Error.Message}
}

var errDisconnected = errors.New("bridge disconnected")

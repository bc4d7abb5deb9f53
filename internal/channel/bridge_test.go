package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphabot/internal/bus"
	"alphabot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClient plays the external WhatsApp client side of the bridge.
type fakeClient struct {
	t     *testing.T
	token string

	mu       sync.Mutex
	requests []Frame
	failures map[string]*ErrorPayload
	conn     *websocket.Conn
	writeMu  sync.Mutex
	ready    chan struct{}
}

func newFakeClient(t *testing.T, token string) (*fakeClient, *httptest.Server) {
	fc := &fakeClient{t: t, token: token, failures: map[string]*ErrorPayload{}, ready: make(chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(fc.serve))
	t.Cleanup(srv.Close)
	return fc, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (fc *fakeClient) serve(w http.ResponseWriter, r *http.Request) {
	if fc.token != "" && r.Header.Get("Authorization") != "Bearer "+fc.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	fc.mu.Lock()
	fc.conn = conn
	fc.mu.Unlock()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		fc.mu.Lock()
		fc.requests = append(fc.requests, f)
		failure := fc.failures[f.Method]
		fc.mu.Unlock()

		if failure != nil {
			fc.write(ResErr(f.ID, failure.Code, failure.Message))
			continue
		}
		fc.write(ResOK(f.ID, map[string]any{}))
		if f.Method == MethodConnect {
			close(fc.ready)
		}
	}
}

func (fc *fakeClient) write(f Frame) {
	fc.writeMu.Lock()
	defer fc.writeMu.Unlock()
	fc.mu.Lock()
	conn := fc.conn
	fc.mu.Unlock()
	_ = conn.WriteJSON(f)
}

func (fc *fakeClient) fail(method, code string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.failures[method] = &ErrorPayload{Code: code, Message: "nope"}
}

func (fc *fakeClient) requestsFor(method string) []Frame {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []Frame
	for _, f := range fc.requests {
		if f.Method == method {
			out = append(out, f)
		}
	}
	return out
}

func startBridge(t *testing.T, url, token string) (*Bridge, *bus.InMemoryBus) {
	t.Helper()
	return startBridgeOn(t, url, token, bus.New(8, testLogger()))
}

func startBridgeOn(t *testing.T, url, token string, b *bus.InMemoryBus) (*Bridge, *bus.InMemoryBus) {
	t.Helper()
	br := NewBridge(BridgeConfig{URL: url, Token: token, Reconnect: 20 * time.Millisecond, RequestTimeout: 2 * time.Second, Logger: testLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = br.Start(ctx, b)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	return br, b
}

func TestBridge_HandshakeReadyAndMessages(t *testing.T) {
	fc, srv := newFakeClient(t, "secret")
	_, b := startBridge(t, wsURL(srv), "secret")

	select {
	case <-fc.ready:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not complete handshake")
	}
	connect := fc.requestsFor(MethodConnect)
	require.Len(t, connect, 1)
	var params ConnectParams
	require.NoError(t, json.Unmarshal(connect[0].Params, &params))
	assert.Equal(t, ConnectParams{Role: "bot", Token: "secret"}, params)

	fc.write(EventFrame(EventReady, ReadyPayload{Self: "254700000000@c.us"}))
	select {
	case name := <-b.Ready():
		assert.Equal(t, "whatsapp", name)
	case <-time.After(2 * time.Second):
		t.Fatal("no ready signal")
	}

	fc.write(EventFrame(EventMessage, map[string]any{
		"id":       "ABC",
		"chatId":   "120363000000000000@g.us",
		"senderId": "120363000000000000@g.us",
		"authorId": "254711111111@c.us",
		"text":     "#ping",
		"quoted":   map[string]any{"id": "Q1", "authorId": "254722222222@c.us", "hasMedia": true},
		"group": map[string]any{"subject": "G", "participants": []map[string]any{
			{"id": "254700000000@c.us", "user": "254700000000", "isAdmin": true},
		}},
		"timestamp": "2026-10-19T10:00:00Z",
	}))

	select {
	case ev := <-b.Subscribe():
		assert.Equal(t, "whatsapp", ev.Channel)
		assert.Equal(t, "ABC", ev.ID)
		assert.Equal(t, "254711111111@c.us", ev.Actor())
		assert.Equal(t, "254700000000@c.us", ev.SelfID)
		assert.True(t, ev.IsGroup())
		assert.True(t, ev.Group.IsAdmin(ev.SelfID))
		require.NotNil(t, ev.Quoted)
		assert.True(t, ev.Quoted.HasMedia)
		assert.Equal(t, time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC), ev.Timestamp.UTC())
	case <-time.After(2 * time.Second):
		t.Fatal("message event was not published")
	}
}

func TestBridge_RepliesFlowWhileBusIsFull(t *testing.T) {
	fc, srv := newFakeClient(t, "")
	br, b := startBridgeOn(t, wsURL(srv), "", bus.New(1, testLogger()))
	<-fc.ready

	// Nobody drains the bus: the first message fills it and the rest queue up.
	for _, id := range []string{"m1", "m2", "m3"} {
		fc.write(EventFrame(EventMessage, map[string]any{"id": id, "chatId": "c1", "senderId": "a@c.us", "text": "hi"}))
	}
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, br.Reply(ctx, "c1", "m1", "pong"))

	ev := <-b.Subscribe()
	assert.Equal(t, "m1", ev.ID)
}

func TestBridge_OutboundRequests(t *testing.T) {
	fc, srv := newFakeClient(t, "")
	br, _ := startBridge(t, wsURL(srv), "")
	<-fc.ready
	ctx := context.Background()

	require.NoError(t, br.Reply(ctx, "c1", "m1", "hi"))
	require.NoError(t, br.SendToChat(ctx, "c1", "@a", []string{"a@c.us"}))
	require.NoError(t, br.UpdateParticipants(ctx, "c1", domain.ModPromote, []string{"a@c.us", "b@c.us"}))
	require.NoError(t, br.SendSticker(ctx, "c1", "m2", domain.StickerMeta{Author: "TrueAlpha", Name: "Sticker"}))

	var reply ReplyParams
	require.NoError(t, json.Unmarshal(fc.requestsFor(MethodReply)[0].Params, &reply))
	assert.Equal(t, ReplyParams{ChatID: "c1", MessageID: "m1", Text: "hi"}, reply)

	var send SendParams
	require.NoError(t, json.Unmarshal(fc.requestsFor(MethodSend)[0].Params, &send))
	assert.Equal(t, []string{"a@c.us"}, send.Mentions)

	var parts ParticipantsParams
	require.NoError(t, json.Unmarshal(fc.requestsFor(MethodParticipants)[0].Params, &parts))
	assert.Equal(t, "promote", parts.Action)
	assert.Len(t, parts.Participants, 2)

	assert.JSONEq(t,
		`{"chatId":"c1","sourceMessageId":"m2","author":"TrueAlpha","name":"Sticker"}`,
		string(fc.requestsFor(MethodSticker)[0].Params))

	assert.Equal(t, "254701964272@c.us", br.DirectChat("254701964272"))
}

func TestBridge_ErrorCodesMapToDomainErrors(t *testing.T) {
	fc, srv := newFakeClient(t, "")
	br, _ := startBridge(t, wsURL(srv), "")
	<-fc.ready
	ctx := context.Background()

	fc.fail(MethodBlock, CodeUnsupported)
	fc.fail(MethodSticker, CodeMediaUnavailable)
	fc.fail(MethodParticipants, CodeNotAdmin)
	fc.fail(MethodDelete, "TOO_OLD")

	assert.ErrorIs(t, br.BlockContact(ctx, "x@c.us"), domain.ErrUnsupported)
	assert.ErrorIs(t, br.SendSticker(ctx, "c", "m", domain.StickerMeta{}), domain.ErrMediaUnavailable)
	assert.ErrorIs(t, br.UpdateParticipants(ctx, "c", domain.ModRemove, []string{"x"}), domain.ErrNotAdmin)

	err := br.DeleteMessage(ctx, "c", "m")
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "TOO_OLD", remote.Code)
	assert.NotErrorIs(t, err, domain.ErrUnsupported)
}

func TestBridge_NotConnected(t *testing.T) {
	br := NewBridge(BridgeConfig{URL: "ws://127.0.0.1:1/ws", Logger: testLogger()})
	err := br.Reply(context.Background(), "c", "m", "t")
	assert.True(t, IsDisconnected(err))
}

func TestBridge_RejectsUnknownParticipantKind(t *testing.T) {
	br := NewBridge(BridgeConfig{Logger: testLogger()})
	err := br.UpdateParticipants(context.Background(), "c", domain.ModBlock, []string{"x"})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

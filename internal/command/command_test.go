package command

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphabot/internal/bus"
	"alphabot/internal/domain"
	"alphabot/internal/intent"
	"alphabot/internal/settings"
	"alphabot/internal/testutil"
)

const stranger = "254711111111@c.us"

var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type feedbackEntry struct{ actor, text string }

type fakeFeedback struct {
	mu      sync.Mutex
	entries []feedbackEntry
}

func (f *fakeFeedback) Append(actor, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, feedbackEntry{actor, text})
	return nil
}

type harness struct {
	d        *Dispatcher
	store    *settings.Store
	events   *bus.EventBus
	feedback *fakeFeedback
	exits    []int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := settings.Open(settings.StoreConfig{
		Path:   filepath.Join(t.TempDir(), "settings.json"),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	h := &harness{store: store, events: bus.NewEventBus(testLogger()), feedback: &fakeFeedback{}}
	h.d = NewDispatcher(DispatcherConfig{
		Store:     store,
		Feedback:  h.feedback,
		Events:    h.events,
		Pacer:     NewPacer(Pacing{PerMinute: 6000, Burst: 100}),
		RepoURL:   "https://github.com/truealpha/bot",
		StartedAt: fixedNow.Add(-42 * time.Second),
		Now:       func() time.Time { return fixedNow },
		Exit:      func(code int) { h.exits = append(h.exits, code) },
		Logger:    testLogger(),
	})
	return h
}

// run classifies ev against the current settings and dispatches it.
func (h *harness) run(t *testing.T, sink domain.Sink, ev domain.InboundEvent) intent.Intent {
	t.Helper()
	st := h.store.Snapshot()
	it := intent.NewClassifier(h.d).Classify(ev, st.EffectivePrefix())
	require.NoError(t, h.d.Dispatch(context.Background(), sink, ev, it, st))
	return it
}

func member(id string, admin bool) domain.Participant {
	return domain.Participant{ID: id, User: id[:len(id)-5], IsAdmin: admin}
}

// --- General commands ---

func TestPing(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	ev := testutil.DirectEvent("#ping", stranger)

	h.run(t, sink, ev)

	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "reply", calls[0].Op)
	assert.Equal(t, ev.ID, calls[0].Target)
	assert.Equal(t, "🏓 Pong!\nUptime: 42s\nMode: PUBLIC", calls[0].Text)
}

func TestSimpleReplies(t *testing.T) {
	h := newHarness(t)
	cases := map[string]string{
		"#help":       "✨ Send #menu for commands. For support use #support or #feedback <text>",
		"#botstatus":  "Bot is running. Uptime: 42s",
		"#pair":       TextPair,
		"#repo":       "https://github.com/truealpha/bot",
		"#runtime":    "Runtime: Mon Oct 19 2026 10:00:00 GMT+0000 (UTC)\nUptime: 42s",
		"#owner":      "Owner: Not set (+254701964272,+254791536079)",
		"#mode":       "Mode: PUBLIC\nAnyone can use commands.",
		"#approveall": TextApproveAll,
		"#welcome":    "Usage: #welcome on|off",
		"#welcome x":  "Usage: #welcome on|off",
		"#kick":       "Reply to a message with #kick to use this command.",
	}
	for text, want := range cases {
		sink := testutil.NewRecordingSink()
		h.run(t, sink, testutil.DirectEvent(text, stranger))
		assert.Equal(t, []string{want}, sink.Texts(), text)
	}
}

func TestRepoNotConfigured(t *testing.T) {
	h := newHarness(t)
	h.d.repoURL = ""
	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.DirectEvent("#repo", stranger))
	assert.Equal(t, TextRepoMissing, sink.LastText())
}

func TestMenuIsSentToChat(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	ev := testutil.GroupEvent("#menu", stranger, false)

	h.run(t, sink, ev)

	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "send", calls[0].Op)
	assert.Equal(t, testutil.GroupID, calls[0].ChatID)
	assert.Empty(t, calls[0].Mentions)
	assert.Contains(t, calls[0].Text, "║ User: Tester")
	assert.Contains(t, calls[0].Text, "Prefix: #")
}

func TestSupport(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.DirectEvent("#support", stranger))
	assert.Equal(t,
		"🧰 *Support*\nOwner: Not set\nContact: https://wa.me/254701964272\nhttps://wa.me/254791536079\nChannel: Not set",
		sink.LastText())
}

func TestFeedback(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	ev := testutil.GroupEvent("#feedback Love the Bot", stranger, false)

	h.run(t, sink, ev)

	assert.Equal(t, TextFeedbackThanks, sink.LastText())
	require.Len(t, h.feedback.entries, 1)
	assert.Equal(t, feedbackEntry{stranger, "Love the Bot"}, h.feedback.entries[0])
}

func TestUnknownCommandIsSilent(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.DirectEvent("#frobnicate", stranger))
	h.run(t, sink, testutil.DirectEvent("#antispam on", stranger))
	h.run(t, sink, testutil.DirectEvent("just chatting", stranger))
	assert.Empty(t, sink.Calls())
}

// --- Sticker ---

func TestSticker(t *testing.T) {
	h := newHarness(t)

	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.DirectEvent("#sticker", stranger))
	assert.Equal(t, "Please reply to an image/video or send media with caption #sticker", sink.LastText())

	sink = testutil.NewRecordingSink()
	ev := testutil.DirectEvent("#s", stranger)
	ev.Quoted = &domain.QuotedMessage{ID: "img-1", AuthorID: stranger, HasMedia: true}
	h.run(t, sink, ev)
	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sticker", calls[0].Op)
	assert.Equal(t, "img-1", calls[0].Target)
	assert.Equal(t, "TrueAlpha/Sticker", calls[0].Text)

	sink = testutil.NewRecordingSink()
	ev = testutil.DirectEvent("#sticker", stranger)
	ev.HasMedia = true
	sink.FailOn("sticker", domain.ErrMediaUnavailable)
	h.run(t, sink, ev)
	assert.Equal(t, TextMediaUnavailable, sink.LastText())

	rec := testutil.NewRecordingSink()
	h.run(t, testutil.BasicSink{Rec: rec}, ev)
	assert.Equal(t, TextStickerFailed, rec.LastText())
}

// --- Group commands ---

func TestTagAll(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	ev := testutil.GroupEvent("#tagall", stranger, false,
		member("254722222222@c.us", false),
		member("254733333333@c.us", true),
	)

	h.run(t, sink, ev)

	calls := sink.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "send", calls[0].Op)
	assert.Len(t, calls[0].Mentions, len(ev.Group.Participants))
	assert.Equal(t,
		"📢 *Attention Everyone:*\n\n@254700000000 @254711111111 @254722222222 @254733333333 ",
		calls[0].Text)
}

func TestGroupOnlyCommandsInDirectChat(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"#tagall", "#kickall", "#promoteall", "#resetlink"} {
		sink := testutil.NewRecordingSink()
		h.run(t, sink, testutil.DirectEvent(text, stranger))
		assert.Equal(t, []string{TextGroupOnly}, sink.Texts(), text)
	}
}

func quotedGroupEvent(text, author string) domain.InboundEvent {
	ev := testutil.GroupEvent(text, author, true, member("254744444444@c.us", false))
	ev.Quoted = &domain.QuotedMessage{ID: "bad-msg", AuthorID: "254744444444@c.us"}
	return ev
}

func TestQuotedParticipantActions(t *testing.T) {
	cases := []struct {
		verb string
		kind domain.ModerationKind
		want string
	}{
		{"kick", domain.ModRemove, TextUserRemoved},
		{"promote", domain.ModPromote, TextUserPromoted},
		{"demote", domain.ModDemote, TextUserDemoted},
	}
	for _, c := range cases {
		h := newHarness(t)
		sink := testutil.NewRecordingSink()
		h.run(t, sink, quotedGroupEvent("#"+c.verb, stranger))

		calls := sink.Calls()
		require.Len(t, calls, 2, c.verb)
		assert.Equal(t, c.kind, calls[0].Kind)
		assert.Equal(t, "254744444444@c.us", calls[0].Target)
		assert.Equal(t, c.want, calls[1].Text)
	}
}

func TestQuotedActionFailure(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	sink.FailOn("participants", errors.New("not admin"))

	h.run(t, sink, quotedGroupEvent("#kick", stranger))

	assert.Equal(t, []string{TextActionFailed}, sink.Texts())
	assert.Len(t, h.events.Replay(bus.EventModerationFailed, time.Time{}), 1)
}

func TestQuotedActionInDirectChat(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	ev := testutil.DirectEvent("#kick", stranger)
	ev.Quoted = &domain.QuotedMessage{ID: "m", AuthorID: "254744444444@c.us"}

	h.run(t, sink, ev)
	assert.Equal(t, []string{TextGroupOnly}, sink.Texts())
}

func TestQuotedBlockAndDelete(t *testing.T) {
	h := newHarness(t)

	sink := testutil.NewRecordingSink()
	h.run(t, sink, quotedGroupEvent("#block", stranger))
	h.run(t, sink, quotedGroupEvent("#delete", stranger))
	assert.Equal(t, []string{TextOwnerOnlyBlock, TextOwnerOnlyDelete}, sink.Texts())

	sink = testutil.NewRecordingSink()
	h.run(t, sink, quotedGroupEvent("#block", testutil.OwnerID))
	h.run(t, sink, quotedGroupEvent("#delete", testutil.OwnerID))
	assert.Equal(t, []string{"block", "reply", "delete", "reply"}, sink.Ops())
	calls := sink.Calls()
	assert.Equal(t, "254744444444@c.us", calls[0].Target)
	assert.Equal(t, "bad-msg", calls[2].Target)
	assert.Equal(t, []string{TextContactBlocked, TextMessageDeleted}, sink.Texts())

	rec := testutil.NewRecordingSink()
	h.run(t, testutil.BasicSink{Rec: rec}, quotedGroupEvent("#block", testutil.OwnerID))
	assert.Equal(t, []string{TextBlockUnsupported}, rec.Texts())

	sink = testutil.NewRecordingSink()
	sink.FailOn("delete", errors.New("too old"))
	h.run(t, sink, quotedGroupEvent("#delete", testutil.OwnerID))
	assert.Equal(t, []string{TextDeleteFailed}, sink.Texts())
}

func TestQuotedWarn(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	h.run(t, sink, quotedGroupEvent("#warn", stranger))
	assert.Equal(t, []string{TextUserWarned}, sink.Texts())
}

func TestKickAll(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	ev := testutil.GroupEvent("#kickall", testutil.OwnerID, true,
		member("254722222222@c.us", false),
		member("254733333333@c.us", true),
		member("254744444444@c.us", false),
	)
	sink.FailOn("participants:254722222222@c.us", errors.New("gone"))

	h.run(t, sink, ev)

	var targets []string
	for _, c := range sink.Calls() {
		if c.Op == "participants" {
			assert.Equal(t, domain.ModRemove, c.Kind)
			targets = append(targets, c.Target)
		}
	}
	// Owner and 254744444444 succeed; 254722222222 fails and is skipped.
	assert.Equal(t, []string{testutil.OwnerID, "254744444444@c.us"}, targets)
	assert.Equal(t, []string{TextKickAllDone}, sink.Texts())
	assert.Len(t, h.events.Replay(bus.EventModerationFailed, time.Time{}), 1)
}

func TestKickAllNeedsAdmin(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.GroupEvent("#kickall", stranger, false))
	h.run(t, sink, testutil.GroupEvent("#promoteall", stranger, false))
	assert.Equal(t, []string{TextNeedAdminRemove, TextNeedAdminPromote}, sink.Texts())
	assert.NotContains(t, sink.Ops(), "participants")
}

func TestPromoteAll(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.GroupEvent("#promoteall", stranger, true, member("254722222222@c.us", false)))

	assert.Equal(t, []string{"participants", "participants", "reply"}, sink.Ops())
	assert.Equal(t, TextPromoteAllDone, sink.LastText())
}

func TestResetLink(t *testing.T) {
	h := newHarness(t)

	sink := testutil.NewRecordingSink()
	h.run(t, sink, testutil.GroupEvent("#resetlink", stranger, true))
	assert.Equal(t, []string{"revoke", "reply"}, sink.Ops())
	assert.Equal(t, TextLinkReset, sink.LastText())

	rec := testutil.NewRecordingSink()
	h.run(t, testutil.BasicSink{Rec: rec}, testutil.GroupEvent("#resetlink", stranger, true))
	assert.Equal(t, []string{TextLinkUnsupported}, rec.Texts())

	sink = testutil.NewRecordingSink()
	sink.FailOn("revoke", errors.New("forbidden"))
	h.run(t, sink, testutil.GroupEvent("#resetlink", stranger, true))
	assert.Equal(t, []string{TextLinkResetFailed}, sink.Texts())

	sink = testutil.NewRecordingSink()
	sink.FailOn("revoke", domain.ErrUnsupported)
	h.run(t, sink, testutil.GroupEvent("#resetlink", stranger, true))
	assert.Equal(t, []string{TextLinkUnsupported}, sink.Texts())
}

// --- Toggles ---

func TestToggles(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()

	h.run(t, sink, testutil.DirectEvent("#antilink on", stranger))
	assert.True(t, h.store.Snapshot().GroupFlag("antilink"))
	h.run(t, sink, testutil.DirectEvent("#antilink off", stranger))
	assert.False(t, h.store.Snapshot().GroupFlag("antilink"))
	h.run(t, sink, testutil.DirectEvent("#AutoRead ON", stranger))
	assert.True(t, h.store.Snapshot().BehaviorFlag("autoread"))
	h.run(t, sink, testutil.DirectEvent("#welcome off", stranger))
	assert.False(t, h.store.Snapshot().GroupFlag("welcome"))

	assert.Equal(t, []string{
		"antilink set to true",
		"antilink set to false",
		"autoread set to true",
		"Welcome messages off",
	}, sink.Texts())
	assert.Len(t, h.events.Replay(bus.EventSettingsChanged, time.Time{}), 4)

	persisted, err := settings.ReadFile(h.store.Path())
	require.NoError(t, err)
	assert.True(t, persisted.BehaviorFlag("autoread"))
}

// --- Owner and settings commands ---

func TestSetOwnerNumber(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()

	h.run(t, sink, testutil.DirectEvent("#setownernumber +254701964272, 0791536079", testutil.OwnerID))
	snap := h.store.Snapshot()
	assert.Equal(t, []string{"+254701964272", "+0791536079"}, snap.OwnerNumbers)
	assert.Equal(t, "+254701964272", snap.OwnerNumber)
	assert.Equal(t, TextOwnerNumbersSet, sink.LastText())

	h.run(t, sink, testutil.DirectEvent("#setownernumber abc", testutil.OwnerID))
	assert.Equal(t, snap.OwnerNumbers, h.store.Snapshot().OwnerNumbers)
	assert.Equal(t, TextInvalidNumber, sink.LastText())
}

func TestSetOwnerNameAndPrefixHaveNoOwnerCheck(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()

	h.run(t, sink, testutil.DirectEvent("#setownername Alpha Wolf", stranger))
	assert.Equal(t, "Alpha Wolf", settings.StringOr(h.store.Snapshot().OwnerName, ""))

	h.run(t, sink, testutil.DirectEvent("#setprefix !x", stranger))
	assert.Equal(t, "!", h.store.Snapshot().EffectivePrefix())
	assert.Equal(t, []string{TextOwnerNameSet, "Prefix updated to !"}, sink.Texts())

	sink = testutil.NewRecordingSink()
	h.run(t, sink, testutil.DirectEvent("#ping", stranger))
	assert.Empty(t, sink.Calls(), "old prefix no longer triggers")
	h.run(t, sink, testutil.DirectEvent("!owner", stranger))
	assert.Equal(t, "Owner: Alpha Wolf (+254701964272,+254791536079)", sink.LastText())
}

func TestSetChannel(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()

	h.run(t, sink, testutil.DirectEvent("#setchannel https://whatsapp.com/channel/AbC", stranger))
	assert.Nil(t, h.store.Snapshot().ChannelLink)

	h.run(t, sink, testutil.DirectEvent("#setchannel", testutil.OwnerID))
	h.run(t, sink, testutil.DirectEvent("#setchannel https://whatsapp.com/channel/AbC", testutil.OwnerID))
	assert.Equal(t, "https://whatsapp.com/channel/AbC", settings.StringOr(h.store.Snapshot().ChannelLink, ""))
	assert.Equal(t, []string{TextOwnerOnlyChannel, "Usage: #setchannel https://...", TextChannelSaved}, sink.Texts())
}

func TestPublicPrivate(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()

	h.run(t, sink, testutil.DirectEvent("#private", stranger))
	assert.True(t, h.store.Snapshot().IsPublic())
	assert.Equal(t, TextOwnerOnlyMode, sink.LastText())

	h.run(t, sink, testutil.DirectEvent("#private", testutil.OwnerID))
	assert.False(t, h.store.Snapshot().IsPublic())
	assert.Equal(t, TextPrivateMode, sink.LastText())

	h.run(t, sink, testutil.DirectEvent("#mode", testutil.OwnerID))
	assert.Equal(t, "Mode: PRIVATE\nOnly owner can use commands.", sink.LastText())

	h.run(t, sink, testutil.DirectEvent("#public", testutil.OwnerID))
	h.run(t, sink, testutil.DirectEvent("#public", testutil.OwnerID))
	assert.True(t, h.store.Snapshot().IsPublic())
	assert.Equal(t, TextPublicMode, sink.LastText())
}

func TestRestart(t *testing.T) {
	h := newHarness(t)
	sink := testutil.NewRecordingSink()

	h.run(t, sink, testutil.DirectEvent("#restart", stranger))
	assert.Empty(t, h.exits)
	assert.Equal(t, TextOwnerOnlyRestart, sink.LastText())

	h.run(t, sink, testutil.DirectEvent("#restart", testutil.OwnerID))
	assert.Equal(t, []int{0}, h.exits)
	assert.Equal(t, TextRestarting, sink.LastText())
}

// --- Table ---

func TestLookup(t *testing.T) {
	h := newHarness(t)
	rule, ok := h.d.Lookup("s")
	assert.True(t, ok)
	assert.Equal(t, intent.ArgsNone, rule)

	rule, ok = h.d.Lookup("setownernumber")
	assert.True(t, ok)
	assert.Equal(t, intent.ArgsRequired, rule)

	_, ok = h.d.Lookup("antilink")
	assert.False(t, ok, "toggles are not table commands")
}

func TestCommandsHaveHandlers(t *testing.T) {
	h := newHarness(t)
	for _, c := range h.d.Commands() {
		assert.NotNil(t, c.Handler, c.Name)
		if c.OwnerOnly {
			assert.NotEmpty(t, c.Denied, c.Name)
		}
	}
}

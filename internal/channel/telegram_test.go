package channel

import (
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tgSelf = tgbotapi.User{ID: 999, UserName: "alphabot", IsBot: true}

func TestTelegramEvent_Private(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 254711111111, FirstName: "Ann"},
		Chat:      &tgbotapi.Chat{ID: 254711111111, Type: "private"},
		Date:      1700000000,
		Caption:   "#sticker",
		Photo:     []tgbotapi.PhotoSize{{FileID: "f"}},
	}

	ev := telegramEvent(msg, tgSelf, nil)

	assert.Equal(t, "254711111111:7", ev.ID)
	assert.Equal(t, "telegram", ev.Channel)
	assert.Equal(t, "254711111111", ev.Actor())
	assert.Equal(t, "999", ev.SelfID)
	assert.Equal(t, "#sticker", ev.Text)
	assert.True(t, ev.HasMedia)
	assert.False(t, ev.IsGroup())
	assert.Equal(t, "Ann", ev.PushName)
}

func TestTelegramEvent_GroupRosterAndQuote(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 12,
		From:      &tgbotapi.User{ID: 5, UserName: "bob"},
		Chat:      &tgbotapi.Chat{ID: -100123, Type: "supergroup", Title: "Crew"},
		Text:      "#kick",
		ReplyToMessage: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: 6},
		},
	}
	admins := []tgbotapi.ChatMember{
		{User: &tgSelf, Status: "administrator"},
		{User: &tgbotapi.User{ID: 1, UserName: "owner"}, Status: "creator"},
	}

	ev := telegramEvent(msg, tgSelf, admins)

	require.True(t, ev.IsGroup())
	assert.Equal(t, "5", ev.Actor())
	assert.Equal(t, "Crew", ev.Group.Subject)
	assert.True(t, ev.Group.IsAdmin("999"))
	assert.True(t, ev.Group.IsAdmin("1"))
	assert.False(t, ev.Group.IsAdmin("5"))
	assert.Len(t, ev.Group.Participants, 3)
	require.NotNil(t, ev.Quoted)
	assert.Equal(t, "-100123:10", ev.Quoted.ID)
	assert.Equal(t, "6", ev.Quoted.AuthorID)
}

func TestTelegramEvent_FromSelf(t *testing.T) {
	msg := &tgbotapi.Message{MessageID: 1, From: &tgSelf, Chat: &tgbotapi.Chat{ID: 3, Type: "private"}, Text: "x"}
	assert.True(t, telegramEvent(msg, tgSelf, nil).FromSelf)
}

func TestParseTelegramMessageID(t *testing.T) {
	chat, msg, err := parseTelegramMessageID("-100123:10")
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), chat)
	assert.Equal(t, 10, msg)

	for _, bad := range []string{"", "12", "a:1", "1:b"} {
		_, _, err := parseTelegramMessageID(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	chunks := splitMessage(text, 10)
	assert.Equal(t, []string{"aaaaaa", "\nbbbbbb"}, chunks)

	chunks = splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []int{10, 10, 5}, []int{len(chunks[0]), len(chunks[1]), len(chunks[2])})
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("@ñandú ", 20)
	chunks := splitMessage(text, 9)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "%q", c)
		assert.LessOrEqual(t, len(c), 9)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

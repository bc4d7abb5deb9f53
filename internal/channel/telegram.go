package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alphabot/internal/domain"
)

const (
	telegramName      = "telegram"
	telegramMaxMsgLen = 4000
)

// Telegram implements domain.Channel for a Telegram bot. Chat and message
// ids are decimal strings; message ids are "<chat>:<message>".
type Telegram struct {
	token     string
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		token:     cfg.Token,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return telegramName }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	bus.RegisterSink(telegramName, t)
	bus.MarkReady(telegramName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop is a no-op: polling stops when Start's context is cancelled, and
// calling StopReceivingUpdates twice panics.
func (t *Telegram) Stop() error { return nil }

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	var admins []tgbotapi.ChatMember
	if isTelegramGroup(msg.Chat) {
		var err error
		admins, err = t.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: msg.Chat.ID},
		})
		if err != nil {
			t.logger.Warn("telegram admin lookup failed", "chat", msg.Chat.ID, "err", err)
		}
	}

	ev := telegramEvent(msg, t.bot.Self, admins)
	if ev.Text == "" && !ev.HasMedia {
		return
	}
	t.logger.Debug("telegram message received", "chat", ev.ChatID, "actor", ev.Actor(), "text_len", len(ev.Text))
	t.bus.Publish(ev)
}

func isTelegramGroup(c *tgbotapi.Chat) bool {
	return c.IsGroup() || c.IsSuperGroup()
}

// telegramEvent converts a Telegram message. Telegram does not expose full
// member lists to bots, so the roster holds the administrators plus the
// author.
func telegramEvent(msg *tgbotapi.Message, self tgbotapi.User, admins []tgbotapi.ChatMember) domain.InboundEvent {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	ev := domain.InboundEvent{
		ID:        telegramMessageID(msg.Chat.ID, msg.MessageID),
		Channel:   telegramName,
		ChatID:    chatID,
		SenderID:  chatID,
		SelfID:    strconv.FormatInt(self.ID, 10),
		FromSelf:  msg.From.ID == self.ID,
		Text:      msg.Text,
		HasMedia:  hasTelegramMedia(msg),
		PushName:  msg.From.FirstName,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
	if ev.Text == "" {
		ev.Text = msg.Caption
	}
	if r := msg.ReplyToMessage; r != nil {
		q := &domain.QuotedMessage{
			ID:       telegramMessageID(msg.Chat.ID, r.MessageID),
			HasMedia: hasTelegramMedia(r),
		}
		if r.From != nil {
			q.AuthorID = strconv.FormatInt(r.From.ID, 10)
		}
		ev.Quoted = q
	}

	if !isTelegramGroup(msg.Chat) {
		return ev
	}
	author := strconv.FormatInt(msg.From.ID, 10)
	ev.AuthorID = author
	g := &domain.GroupInfo{Subject: msg.Chat.Title}
	seen := make(map[string]bool)
	for _, m := range admins {
		if m.User == nil {
			continue
		}
		id := strconv.FormatInt(m.User.ID, 10)
		seen[id] = true
		g.Participants = append(g.Participants, domain.Participant{
			ID:      id,
			User:    telegramHandle(m.User),
			IsAdmin: m.IsAdministrator() || m.IsCreator(),
		})
	}
	if !seen[author] {
		g.Participants = append(g.Participants, domain.Participant{ID: author, User: telegramHandle(msg.From)})
	}
	ev.Group = g
	return ev
}

func telegramHandle(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strconv.FormatInt(u.ID, 10)
}

func hasTelegramMedia(m *tgbotapi.Message) bool {
	return len(m.Photo) > 0 || m.Video != nil || m.Animation != nil || m.Document != nil || m.Sticker != nil
}

func telegramMessageID(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// parseTelegramMessageID splits "<chat>:<message>".
func parseTelegramMessageID(id string) (int64, int, error) {
	chat, msg, ok := strings.Cut(id, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid telegram message id %q", id)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid telegram chat in %q: %w", id, err)
	}
	msgID, err := strconv.Atoi(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid telegram message in %q: %w", id, err)
	}
	return chatID, msgID, nil
}

func parseTelegramID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram id %q: %w", id, err)
	}
	return n, nil
}

func (t *Telegram) Reply(_ context.Context, chatID, messageID, text string) error {
	id, err := parseTelegramID(chatID)
	if err != nil {
		return err
	}
	replyTo := 0
	if _, m, err := parseTelegramMessageID(messageID); err == nil {
		replyTo = m
	}
	return t.sendText(id, replyTo, text)
}

// SendToChat posts text. Telegram mentions need usernames, which are
// already part of the text, so mentions are not sent separately.
func (t *Telegram) SendToChat(_ context.Context, chatID, text string, _ []string) error {
	id, err := parseTelegramID(chatID)
	if err != nil {
		return err
	}
	return t.sendText(id, 0, text)
}

func (t *Telegram) UpdateParticipants(_ context.Context, chatID string, kind domain.ModerationKind, participants []string) error {
	chat, err := parseTelegramID(chatID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		user, err := parseTelegramID(p)
		if err != nil {
			return err
		}
		member := tgbotapi.ChatMemberConfig{ChatID: chat, UserID: user}
		var req tgbotapi.Chattable
		switch kind {
		case domain.ModRemove:
			req = tgbotapi.BanChatMemberConfig{ChatMemberConfig: member, UntilDate: time.Now().Add(time.Minute).Unix()}
		case domain.ModPromote, domain.ModDemote:
			on := kind == domain.ModPromote
			req = tgbotapi.PromoteChatMemberConfig{
				ChatMemberConfig:   member,
				CanChangeInfo:      on,
				CanDeleteMessages:  on,
				CanInviteUsers:     on,
				CanRestrictMembers: on,
				CanPinMessages:     on,
			}
		default:
			return fmt.Errorf("participant update %q: %w", kind, domain.ErrUnsupported)
		}
		if _, err := t.bot.Request(req); err != nil {
			return fmt.Errorf("telegram %s %d: %w", kind, user, err)
		}
	}
	return nil
}

func (t *Telegram) DirectChat(identity string) string { return identity }

// RevokeInvite exports a new primary invite link, which revokes the old one.
func (t *Telegram) RevokeInvite(_ context.Context, chatID string) error {
	chat, err := parseTelegramID(chatID)
	if err != nil {
		return err
	}
	if _, err := t.bot.GetInviteLink(tgbotapi.ChatInviteLinkConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chat}}); err != nil {
		return fmt.Errorf("telegram export invite link: %w", err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(_ context.Context, chatID, messageID string) error {
	chat, err := parseTelegramID(chatID)
	if err != nil {
		return err
	}
	_, msg, err := parseTelegramMessageID(messageID)
	if err != nil {
		return err
	}
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chat, msg)); err != nil {
		return fmt.Errorf("telegram delete message: %w", err)
	}
	return nil
}

// sendText splits text at Telegram's message size limit, preferring line
// breaks. Only the first chunk quotes replyTo.
func (t *Telegram) sendText(chatID int64, replyTo int, text string) error {
	for _, chunk := range splitMessage(text, telegramMaxMsgLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ReplyToMessageID = replyTo
		msg.ParseMode = t.parseMode
		_, err := t.bot.Send(msg)
		if err != nil && msg.ParseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
			t.logger.Warn("telegram markup rejected, sending as plain text", "chat", chatID)
			msg.ParseMode = ""
			_, err = t.bot.Send(msg)
		}
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		replyTo = 0
	}
	return nil
}

// splitMessage cuts text into chunks of at most maxLen bytes, preferring a
// newline and never splitting a rune.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > maxLen {
		cut := strings.LastIndex(text[:maxLen], "\n")
		if cut < maxLen/2 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(text)
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}

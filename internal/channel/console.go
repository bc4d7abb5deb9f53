package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"alphabot/internal/domain"
)

const (
	// ConsoleName is the channel name of the terminal console.
	ConsoleName    = "console"
	consoleSelfID  = "console-bot@c.us"
	consoleGroupID = "console@g.us"
)

const consoleHelp = `Console commands:
  /as <id>            send as another identity
  /group on|off       simulate a group chat
  /admin on|off       bot is admin in the simulated group
  /member <id>        add a member to the simulated group
  /quote <id> [media] quote a message from <id> in the next line
  /quit               exit`

// Console implements domain.Channel for local testing in a terminal. Every
// outbound action is printed.
type Console struct {
	bus    domain.MessageBus
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
	outMu  sync.Mutex

	sender   string
	group    bool
	botAdmin bool
	members  []string
	quote    *domain.QuotedMessage
	seq      int
}

type ConsoleConfig struct {
	SenderID string
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
}

func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Console{
		logger:   cfg.Logger,
		in:       cfg.In,
		out:      cfg.Out,
		sender:   consoleIdentity(cfg.SenderID),
		botAdmin: true,
	}
}

func consoleIdentity(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "user@c.us"
	}
	if !strings.Contains(id, "@") {
		id += "@c.us"
	}
	return id
}

func (c *Console) Name() string { return ConsoleName }

// Start runs the read loop until EOF, /quit or ctx cancellation.
func (c *Console) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus
	bus.RegisterSink(ConsoleName, c)
	bus.MarkReady(ConsoleName)

	c.printf("alphabot console. Sending as %s. Type /help for commands.\n", c.sender)

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("console quit requested")
			return nil
		}
		if c.control(line) {
			continue
		}
		bus.Publish(c.event(line))
	}
}

// Stop is a no-op; Start returns on EOF or /quit.
func (c *Console) Stop() error { return nil }

// control applies a console directive and reports whether line was one.
func (c *Console) control(line string) bool {
	fields := strings.Fields(line)
	arg := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	switch fields[0] {
	case "/help":
		c.printf("%s\n", consoleHelp)
	case "/as":
		c.sender = consoleIdentity(arg(1))
		c.printf("now sending as %s\n", c.sender)
	case "/group":
		c.group = arg(1) != "off"
		c.printf("group simulation %s\n", onOffText(c.group))
	case "/admin":
		c.botAdmin = arg(1) != "off"
		c.printf("bot admin %s\n", onOffText(c.botAdmin))
	case "/member":
		if id := arg(1); id != "" {
			c.members = append(c.members, consoleIdentity(id))
		}
	case "/quote":
		c.seq++
		c.quote = &domain.QuotedMessage{
			ID:       fmt.Sprintf("console-q%d", c.seq),
			AuthorID: consoleIdentity(arg(1)),
			HasMedia: arg(2) == "media",
		}
	default:
		return false
	}
	return true
}

func onOffText(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (c *Console) event(text string) domain.InboundEvent {
	c.seq++
	ev := domain.InboundEvent{
		ID:        fmt.Sprintf("console-%d", c.seq),
		Channel:   ConsoleName,
		ChatID:    c.sender,
		SenderID:  c.sender,
		SelfID:    consoleSelfID,
		Text:      text,
		Quoted:    c.quote,
		PushName:  strings.TrimSuffix(c.sender, "@c.us"),
		Timestamp: time.Now(),
	}
	c.quote = nil
	if !c.group {
		return ev
	}

	ev.ChatID, ev.SenderID, ev.AuthorID = consoleGroupID, consoleGroupID, c.sender
	g := &domain.GroupInfo{Subject: "Console Group"}
	seen := map[string]bool{}
	add := func(id string, admin bool) {
		if seen[id] {
			return
		}
		seen[id] = true
		g.Participants = append(g.Participants, domain.Participant{
			ID: id, User: strings.TrimSuffix(id, "@c.us"), IsAdmin: admin,
		})
	}
	add(consoleSelfID, c.botAdmin)
	add(c.sender, false)
	for _, m := range c.members {
		add(m, false)
	}
	if ev.Quoted != nil {
		add(ev.Quoted.AuthorID, false)
	}
	ev.Group = g
	return ev
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Reply(_ context.Context, chatID, messageID, text string) error {
	c.printf("--- reply to %s in %s ---\n%s\n", messageID, chatID, text)
	return nil
}

func (c *Console) SendToChat(_ context.Context, chatID, text string, mentions []string) error {
	if len(mentions) > 0 {
		c.printf("--- send to %s (mentions %s) ---\n%s\n", chatID, strings.Join(mentions, ","), text)
		return nil
	}
	c.printf("--- send to %s ---\n%s\n", chatID, text)
	return nil
}

func (c *Console) UpdateParticipants(_ context.Context, chatID string, kind domain.ModerationKind, participants []string) error {
	c.printf("*** %s %s in %s\n", kind, strings.Join(participants, ","), chatID)
	return nil
}

func (c *Console) DirectChat(identity string) string { return identity + "@c.us" }

func (c *Console) RevokeInvite(_ context.Context, chatID string) error {
	c.printf("*** invite link reset in %s\n", chatID)
	return nil
}

func (c *Console) BlockContact(_ context.Context, contactID string) error {
	c.printf("*** blocked %s\n", contactID)
	return nil
}

func (c *Console) DeleteMessage(_ context.Context, chatID, messageID string) error {
	c.printf("*** deleted %s in %s\n", messageID, chatID)
	return nil
}

func (c *Console) SendSticker(_ context.Context, chatID, sourceMessageID string, meta domain.StickerMeta) error {
	c.printf("*** sticker from %s in %s (%s / %s)\n", sourceMessageID, chatID, meta.Author, meta.Name)
	return nil
}

package domain

// Result is what a command handler decided to do. The dispatcher executes it
// against a Sink; handlers never talk to the transport themselves.
type Result interface {
	isResult()
}

// Reply answers the triggering message.
type Reply struct {
	Text string
}

// SendToChat posts a new message into the triggering chat.
type SendToChat struct {
	Text     string
	Mentions []string
}

// Moderation applies a moderation primitive to Targets (participants,
// contacts or message ids depending on Kind).
//
// With BestEffort set every target is attempted on its own and failures are
// skipped; Success is sent once at the end. Otherwise the first failure
// replies with Failure. Unsupported is the reply when the channel lacks the
// capability.
type Moderation struct {
	Kind        ModerationKind
	Targets     []string
	BestEffort  bool
	Success     string
	Failure     string
	Unsupported string
}

// Sticker turns the media of SourceMessageID into a sticker.
type Sticker struct {
	SourceMessageID string
	Meta            StickerMeta
}

// Restart replies with Text and terminates the process.
type Restart struct {
	Text string
}

// NoOp does nothing.
type NoOp struct{}

func (Reply) isResult()      {}
func (SendToChat) isResult() {}
func (Moderation) isResult() {}
func (Sticker) isResult()    {}
func (Restart) isResult()    {}
func (NoOp) isResult()       {}

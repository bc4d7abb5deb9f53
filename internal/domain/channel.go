package domain

import "context"

// Channel is a transport adapter (WhatsApp bridge, Telegram, console).
// Start blocks until ctx is cancelled or the transport fails.
type Channel interface {
	Sink
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

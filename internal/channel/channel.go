// Package channel holds the transport adapters. Each adapter publishes
// InboundEvents on the bus and serves as the Sink for its own events.
package channel

import "alphabot/internal/domain"

var (
	_ domain.Channel        = (*Bridge)(nil)
	_ domain.Channel        = (*Telegram)(nil)
	_ domain.Channel        = (*Console)(nil)
	_ domain.InviteRevoker  = (*Bridge)(nil)
	_ domain.ContactBlocker = (*Bridge)(nil)
	_ domain.MessageDeleter = (*Bridge)(nil)
	_ domain.StickerSender  = (*Bridge)(nil)
	_ domain.InviteRevoker  = (*Telegram)(nil)
	_ domain.MessageDeleter = (*Telegram)(nil)
)

package command

// Fixed reply texts.
const (
	TextGroupOnly         = "This command only works in groups."
	TextActionFailed      = "❌ Action failed. Am I an admin?"
	TextUserRemoved       = "✅ User removed."
	TextUserPromoted      = "✅ User promoted to Admin."
	TextUserDemoted       = "✅ User demoted."
	TextContactBlocked    = "✅ Contact blocked."
	TextBlockFailed       = "❌ Could not block contact."
	TextBlockUnsupported  = "Blocking contacts is not supported on this channel."
	TextMessageDeleted    = "✅ Message deleted."
	TextDeleteFailed      = "❌ Could not delete message."
	TextDeleteUnsupported = "Deleting messages is not supported on this channel."
	TextUserWarned        = "⚠️ User warned by admin."
	TextOwnerOnlyBlock    = "Only owner can use this command."
	TextOwnerOnlyDelete   = "Only owner can delete messages."

	TextNeedAdminRemove  = "I need to be admin to remove members."
	TextNeedAdminPromote = "I need to be admin to promote members."
	TextKickAllDone      = "✅ Attempted to remove all non-admin participants."
	TextPromoteAllDone   = "✅ Attempted to promote all non-admin participants."

	TextLinkReset       = "✅ Group invite link has been reset."
	TextLinkResetFailed = "❌ Failed to reset link."
	TextLinkUnsupported = "Resetting links is not supported on this channel."
	TextApproveAll      = "✅ Approve all executed (placeholder)."

	TextOwnerNameSet     = "Owner name set."
	TextOwnerNumbersSet  = "Owner number(s) set."
	TextInvalidNumber    = "Please provide a valid number."
	TextChannelSaved     = "Channel link saved."
	TextOwnerOnlyChannel = "Only owner can set channel link."
	TextOwnerOnlyMode    = "Only owner can change mode."
	TextOwnerOnlyRestart = "Only owner can restart the bot."
	TextRestarting       = "🔁 Restarting..."
	TextPublicMode       = "Bot set to PUBLIC mode — commands accepted from everyone."
	TextPrivateMode      = "Bot set to PRIVATE mode — only owner can use commands."

	TextPair             = "To pair, scan the QR code shown in the terminal."
	TextRepoMissing      = "Repository not configured."
	TextFeedbackThanks   = "🙏 Thanks — feedback received."
	TextNotSet           = "Not set"
	TextMediaUnavailable = "Could not download media."
	TextStickerFailed    = "Failed to create sticker."

	StickerAuthor = "TrueAlpha"
	StickerName   = "Sticker"
)

package download

import (
	"fmt"

	"tg-downloader-bot/internal/domain"
)

const (
	msgProcessing      = "⏳ Processing your link..."
	msgUnsupported     = "❌ This link is not supported. Send /help to see supported platforms."
	msgDuplicate       = "⏳ You already sent this link. Please wait a moment before sending it again."
	msgNoDeliverable   = "😕 Nothing to download: this post has no media we can deliver."
	msgDeliveryFailed  = "❌ Could not send the media. It may be too large for Telegram."
	msgUnexpectedError = "❌ Something went wrong! Please try again later."
)

func msgRateLimited(limit int) string {
	return fmt.Sprintf("⛔ Download limit reached!\n\nFree users get %d downloads/hour.\n\n💎 Get unlimited access with /premium", limit)
}

func msgFetchFailed(platform string) string {
	if platform == "" {
		platform = "The platform"
	}
	return fmt.Sprintf("❌ %s did not return this video. Please try again later.", platform)
}

// RejectionText возвращает текст отказа в приёме ссылки.
func RejectionText(reason domain.AdmissionReason, limit int) string {
	switch reason {
	case domain.ReasonDuplicate:
		return msgDuplicate
	case domain.ReasonRateLimited:
		return msgRateLimited(limit)
	default:
		return msgUnsupported
	}
}

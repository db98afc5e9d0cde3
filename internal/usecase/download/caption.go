package download

import (
	"fmt"
	"strconv"
	"strings"

	"tg-downloader-bot/internal/domain"
)

// FormatCount сокращает большие числа: 1500 -> 1.5K, 2300000 -> 2.3M.
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// BuildCaption собирает подпись к медиа из необязательных метаданных.
func BuildCaption(res domain.MediaResult) string {
	var lines []string
	if res.Author != "" {
		lines = append(lines, "👤 "+res.Author)
	}
	var stats []string
	add := func(icon string, v *int64) {
		if v != nil {
			stats = append(stats, icon+" "+FormatCount(*v))
		}
	}
	add("👁", res.Views)
	add("❤️", res.Likes)
	add("💬", res.Comments)
	add("🔁", res.Shares)
	if len(stats) > 0 {
		lines = append(lines, strings.Join(stats, "  "))
	}
	if desc := strings.TrimSpace(res.Description); desc != "" {
		lines = append(lines, "", desc)
	}
	caption := strings.TrimSpace(strings.Join(lines, "\n"))
	runes := []rune(caption)
	if len(runes) > captionLimit {
		caption = string(runes[:captionLimit-3]) + "..."
	}
	return caption
}

const captionLimit = 1024

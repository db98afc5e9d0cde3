package download

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tg-downloader-bot/internal/domain"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0"},
		{in: 999, want: "999"},
		{in: 1500, want: "1.5K"},
		{in: 2_300_000, want: "2.3M"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatCount(tt.in))
	}
}

func TestBuildCaptionSkipsMissingFields(t *testing.T) {
	likes := int64(12)
	caption := BuildCaption(domain.MediaResult{Likes: &likes, Description: "  dance  "})
	require.Equal(t, "❤️ 12\n\ndance", caption)

	require.Empty(t, BuildCaption(domain.MediaResult{}))
}

func TestBuildCaptionTruncates(t *testing.T) {
	caption := BuildCaption(domain.MediaResult{Author: "a", Description: strings.Repeat("x", 2000)})
	require.Len(t, []rune(caption), captionLimit)
	require.True(t, strings.HasSuffix(caption, "..."))
}

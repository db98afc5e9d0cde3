package telegram

import (
	"strings"
	"unicode"
)

// MessageLimit задаёт максимальную длину текстового сообщения в Telegram.
const MessageLimit = 4096

// SplitMessage делит текст на сообщения в пределах MessageLimit.
func SplitMessage(text string) []string {
	return SplitText(text, MessageLimit)
}

// SplitText делит текст на части не длиннее limit рун.
// Разрез делается по последнему переводу строки, затем по пробелу, и только потом посередине слова.
func SplitText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 {
		limit = MessageLimit
	}

	runes := []rune(trimmed)
	var parts []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			parts = appendChunk(parts, runes)
			break
		}
		cut := lastIndex(runes[:limit], func(r rune) bool { return r == '\n' })
		if cut <= 0 {
			cut = lastIndex(runes[:limit], unicode.IsSpace)
		}
		if cut <= 0 {
			cut = limit
		}
		parts = appendChunk(parts, runes[:cut])
		runes = []rune(strings.TrimLeftFunc(string(runes[cut:]), unicode.IsSpace))
	}
	return parts
}

func appendChunk(parts []string, chunk []rune) []string {
	if s := strings.TrimRightFunc(string(chunk), unicode.IsSpace); s != "" {
		return append(parts, s)
	}
	return parts
}

func lastIndex(runes []rune, match func(rune) bool) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if match(runes[i]) {
			return i
		}
	}
	return -1
}

package flow

import "strings"

const alwaysEscaped = "\\[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes text for Telegram's MarkdownV2 parse mode.
// With keepFormatting, '*' and '_' survive as long as they pair up
// left-to-right; an unpaired trailing marker is escaped so Telegram does not
// reject the message.
func EscapeMarkdownV2(text string, keepFormatting bool) string {

	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(alwaysEscaped, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	escaped := b.String()

	if !keepFormatting {
		escaped = strings.NewReplacer("_", "\\_", "*", "\\*").Replace(escaped)
		return escaped
	}

	escaped = preservePairs(escaped, '*')
	return preservePairs(escaped, '_')
}

func preservePairs(s string, marker rune) string {

	runes := []rune(s)

	var positions []int
	for i, r := range runes {
		if r == marker {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return s
	}

	paired := make(map[int]bool, len(positions))
	for i := 0; i+1 < len(positions); i += 2 {
		paired[positions[i]] = true
		paired[positions[i+1]] = true
	}

	var b strings.Builder
	for i, r := range runes {
		if r == marker && !paired[i] {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

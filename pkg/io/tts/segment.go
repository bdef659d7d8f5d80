package tts

import "strings"

const (
	defaultMaxChars = 240
	flushPunct      = ".!?;:"
)

// SplitUtterance carves speech text into synthesis-sized segments on sentence
// punctuation, hard-wrapping anything that exceeds maxChars. Segment order is
// delivery order.
func SplitUtterance(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var segments []string
	var sb strings.Builder
	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			segments = append(segments, s)
		}
		sb.Reset()
	}

	for _, r := range text {
		sb.WriteRune(r)
		if strings.ContainsRune(flushPunct, r) || sb.Len() >= maxChars {
			flush()
		}
	}
	flush()
	return segments
}

package host

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Destructive sequences removed from captured history before it is
// sent to a client. Cursor positioning and screen clearing would fight
// the client's scrollback accumulation; SGR color codes stay because
// users want colored history.
var historyScrubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\x1b\[\d*;\d*[Hf]`),  // cursor position
	regexp.MustCompile(`\x1b\[\d+[Hf]`),      // cursor row
	regexp.MustCompile(`\x1b\[H`),            // cursor home
	regexp.MustCompile(`\x1b\[\d*[ABCD]`),    // cursor movement
	regexp.MustCompile(`\x1b\[\d*[JK]`),      // erase screen/line
	regexp.MustCompile(`\x1bc`),              // full reset
	regexp.MustCompile(`\x1b\[\?1049[hl]`),   // xterm alt screen
	regexp.MustCompile(`\x1b\[\?47[hl]`),     // DEC alt screen
	regexp.MustCompile(`\x1b\[[su]`),         // save/restore cursor (ANSI)
	regexp.MustCompile(`\x1b[78]`),           // save/restore cursor (DEC)
	regexp.MustCompile(`\x1b\[\d+;\d+r`),     // scroll region
}

// SanitizeHistory strips sequences that would corrupt a client-side
// scrollback buffer while preserving colors.
func SanitizeHistory(content string) string {
	for _, re := range historyScrubPatterns {
		content = re.ReplaceAllString(content, "")
	}
	return content
}

// NormalizeCRLF converts any mix of line endings to CRLF, which
// terminal emulators need for proper line separation.
func NormalizeCRLF(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.ReplaceAll(content, "\n", "\r\n")
}

var seamCursorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\x1b\[\d*;\d*[Hf]`),
	regexp.MustCompile(`\x1b\[\d+[Hf]`),
}

// StripSeamSequences removes sequences from the initial pty output
// that would destroy content the client already rendered: tmux redraws
// its viewport on attach, and a raw clear-screen at that moment wipes
// the freshly synchronized scrollback.
func StripSeamSequences(s string) string {
	s = strings.ReplaceAll(s, "\x1bc", "")
	s = strings.ReplaceAll(s, "\x1b[?1049h", "")
	s = strings.ReplaceAll(s, "\x1b[?1049l", "")
	s = strings.ReplaceAll(s, "\x1b[?47h", "")
	s = strings.ReplaceAll(s, "\x1b[?47l", "")
	s = strings.ReplaceAll(s, "\x1b[2J", "")
	s = strings.ReplaceAll(s, "\x1b[H", "")
	for _, re := range seamCursorPatterns {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// LastUTF8Boundary returns the length of the longest prefix of data
// that ends on a complete UTF-8 sequence. Streaming reads can split a
// multi-byte character across two reads; the tail past the boundary
// must be carried into the next frame or clients render mojibake.
func LastUTF8Boundary(data []byte) int {
	// Only the trailing bytes can hold an incomplete sequence; a
	// UTF-8 character is at most 4 bytes. Find the last rune start
	// and check whether it completes. Invalid bytes pass through
	// untouched; they are the remote program's problem, not a split.
	for i := len(data) - 1; i >= 0 && len(data)-i <= 4; i-- {
		if utf8.RuneStart(data[i]) {
			if utf8.FullRune(data[i:]) {
				return len(data)
			}
			return i
		}
	}
	return len(data)
}

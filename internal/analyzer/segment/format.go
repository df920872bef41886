package segment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chatlens/server/internal/analyzer/model"
)

// TruncationMarker is appended whenever text is cut to fit a byte budget.
const TruncationMarker = "...[truncated]"

const maxPlaceholderType = 20

// FormatMessage renders one transcript message as a single display line:
// timestamp, sender (with optional remark), content and compact metadata.
func FormatMessage(m model.MessageRecord) string {
	prefix := m.Sender
	if prefix == "" {
		prefix = "Unknown"
	}
	if m.Remark != "" {
		prefix += " (" + m.Remark + ")"
	}

	var b strings.Builder
	b.WriteString(m.Time)
	b.WriteString(" - ")
	b.WriteString(prefix)
	b.WriteString(": ")
	b.WriteString(displayContent(m.Content))

	meta := make([]string, 0, 3)
	if m.ID != "" {
		meta = append(meta, "id="+m.ID)
	}
	if m.ReplyTo != "" {
		meta = append(meta, "reply="+m.ReplyTo)
	}
	if len(m.Mentions) > 0 {
		meta = append(meta, fmt.Sprintf("mentions=%d", len(m.Mentions)))
	}
	if len(meta) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(meta, " "))
		b.WriteString("]")
	}
	return b.String()
}

// FormatSegment renders a segment as newline-joined display lines.
func FormatSegment(s model.Segment) string {
	lines := make([]string, 0, len(s.Messages))
	for _, m := range s.Messages {
		lines = append(lines, FormatMessage(m))
	}
	return strings.Join(lines, "\n")
}

// displayContent compacts pre-rendered placeholder content such as
// "[image: cat.jpg]" down to "[image message]" so oversized payload
// descriptions do not eat into the segment budget.
func displayContent(content string) string {
	if !strings.HasPrefix(content, "[") || !strings.Contains(content, "]") {
		return content
	}
	end := strings.IndexByte(content, ':')
	if end == -1 {
		end = strings.IndexByte(content, ']')
	}
	if end <= 1 {
		return "[special message]"
	}
	mainType := content[1:end]
	if len(mainType) > maxPlaceholderType {
		mainType = mainType[:maxPlaceholderType] + "..."
	}
	return "[" + mainType + " message]"
}

// Truncate cuts s to the longest UTF-8 prefix such that the prefix plus
// the truncation marker fits in max bytes, then appends the marker.
// Strings already within max are returned unchanged. When max is too
// small for even the marker the result may exceed max; callers decide
// whether to drop it.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(TruncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + TruncationMarker
}

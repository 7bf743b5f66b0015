package telegram

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SplitMessage splits text into chunks of at most maxLen characters,
// preferring to cut after a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			parts = append(parts, string(runes))
			break
		}

		splitAt := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				splitAt = i + 1
				break
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}
	return parts
}

var (
	headingRe = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	boldRe    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	bulletRe  = regexp.MustCompile(`(?m)^([ \t]*)[*-][ \t]+`)
)

// ToTelegramMarkdown rewrites the CommonMark the model produces into
// Telegram's legacy Markdown: headings and **bold** become *bold*, list
// bullets become "•", and unbalanced code fences are closed. Code spans and
// blocks are left alone.
func ToTelegramMarkdown(text string) string {
	segments := splitCode(text)
	var sb strings.Builder
	for _, seg := range segments {
		if seg.code {
			sb.WriteString(seg.text)
			continue
		}
		s := bulletRe.ReplaceAllString(seg.text, "${1}• ")
		s = boldRe.ReplaceAllString(s, "*$1*")
		s = headingRe.ReplaceAllStringFunc(s, func(line string) string {
			title := headingRe.FindStringSubmatch(line)[1]
			return "*" + strings.Trim(title, "*") + "*"
		})
		s = strings.ReplaceAll(s, "__", "_")
		sb.WriteString(s)
	}
	return FixMarkdown(sb.String())
}

type segment struct {
	text string
	code bool
}

// splitCode separates ``` blocks and `inline` spans from prose.
func splitCode(text string) []segment {
	var out []segment
	for len(text) > 0 {
		i := strings.IndexByte(text, '`')
		if i < 0 {
			out = append(out, segment{text: text})
			break
		}
		if i > 0 {
			out = append(out, segment{text: text[:i]})
			text = text[i:]
		}

		delim := "`"
		if strings.HasPrefix(text, "```") {
			delim = "```"
		}
		end := strings.Index(text[len(delim):], delim)
		if end < 0 {
			out = append(out, segment{text: text, code: true})
			break
		}
		n := len(delim) + end + len(delim)
		out = append(out, segment{text: text[:n], code: true})
		text = text[n:]
	}
	return out
}

// FixMarkdown closes an unbalanced code block or inline code span.
func FixMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		text += "\n```"
	}
	return fixInlineCode(text)
}

func fixInlineCode(text string) string {
	var builder strings.Builder
	inCodeBlock := false
	inlineOpen := false

	for i := 0; i < len(text); i++ {
		if strings.HasPrefix(text[i:], "```") {
			if inlineOpen {
				builder.WriteByte('`')
				inlineOpen = false
			}
			inCodeBlock = !inCodeBlock
			builder.WriteString("```")
			i += 2
			continue
		}
		if !inCodeBlock && text[i] == '`' {
			inlineOpen = !inlineOpen
		}
		builder.WriteByte(text[i])
	}

	if inlineOpen {
		builder.WriteByte('`')
	}
	return builder.String()
}

package export

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"chatrelay/gateway/pkg/session"
)

const rtfHeader = `{\rtf1\ansi\ansicpg1252\deff0
{\fonttbl{\f0\fswiss\fcharset0 Arial;}{\f1\fmodern\fcharset0 Courier New;}}
{\colortbl;\red0\green86\blue179;\red40\green40\blue40;\red220\green53\blue69;\red40\green167\blue69;}
\f0\fs22\sa200
`

// EscapeRTF escapes RTF control characters and encodes text as
// Windows-1252. Characters outside the code page become \uN? escapes.
// Newlines become paragraph breaks.
func EscapeRTF(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString("\\par\n")
		case r == '\r':
		case r < 0x80:
			b.WriteRune(r)
		default:
			if c, ok := charmap.Windows1252.EncodeRune(r); ok {
				fmt.Fprintf(&b, "\\'%02x", c)
				continue
			}
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&b, "\\u%d?", int16(u))
			}
		}
	}
	return b.String()
}

func rtfCentered(text string) string {
	return `{\pard\qc\sb100{\fs20\cf2 ` + text + `}\par}`
}

func renderRTF(c *session.Conversation, m meta) []byte {
	parts := []string{
		rtfHeader,
		`{\pard\qc\sb300{\b\fs32\cf1 ` + EscapeRTF(m.opts.Title) + ` - Export}\par}`,
		rtfCentered("Server: " + EscapeRTF(orDefault(c.ServerInfo.Name, m.opts.Title))),
		rtfCentered("IP: " + EscapeRTF(orDefault(c.ServerInfo.IP, "unbekannt"))),
		rtfCentered(fmt.Sprintf("Datum: %s  Uhrzeit: %s", EscapeRTF(m.date), EscapeRTF(m.clock))),
		rtfCentered(fmt.Sprintf("Nachrichten: %d", len(c.Messages))),
		`{\pard\brdrb\brdrs\brdrw10\brsp20 \par}`,
		"",
	}

	for _, msg := range c.Messages {
		color := `\cf4`
		if msg.Role == "user" {
			color = `\cf1`
		}
		label := fmt.Sprintf("%s [%s]", speaker(msg.Role, m.opts), messageTime(msg.Timestamp))

		parts = append(parts,
			`{\pard\sb200{\b\fs24`+color+` `+EscapeRTF(label)+`}\par}`,
			`{\pard\sb50\brdrb\brdrs\brdrw5\brsp10 \par}`,
			`{\pard\sb100\f0\fs22\cf2 `+EscapeRTF(msg.Content)+`\par}`,
			`{\pard\sb200\brdrb\brdrs\brdrw15\brsp20 \par}`,
			"",
		)
	}
	parts = append(parts, "}")

	// Every byte is ASCII after escaping.
	return []byte(strings.Join(parts, "\n"))
}

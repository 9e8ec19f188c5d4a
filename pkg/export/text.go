package export

import (
	"fmt"
	"strings"

	"chatrelay/gateway/pkg/session"
)

var (
	heavyRule = strings.Repeat("=", 60)
	lightRule = strings.Repeat("-", 40)
)

func renderText(c *session.Conversation, m meta) []byte {
	lines := []string{
		heavyRule,
		strings.ToUpper(m.opts.Title) + " - EXPORT",
		heavyRule,
		"Server: " + orDefault(c.ServerInfo.Name, m.opts.Title),
		"IP:     " + orDefault(c.ServerInfo.IP, "unbekannt"),
		fmt.Sprintf("Datum:  %s  Uhrzeit: %s", prefix(m.timestamp, 10), m.clock),
		fmt.Sprintf("Anzahl Nachrichten: %d", len(c.Messages)),
		heavyRule,
		"",
	}

	for _, msg := range c.Messages {
		lines = append(lines,
			fmt.Sprintf("%s [%s]:", speaker(msg.Role, m.opts), messageTime(msg.Timestamp)),
			lightRule,
			msg.Content,
			"",
			heavyRule,
			"",
		)
	}

	return []byte(strings.Join(lines, "\n"))
}

// speaker labels a turn in text and RTF exports.
func speaker(role string, opts Options) string {
	if role == "user" {
		return "USER"
	}
	return opts.AssistantLabel
}

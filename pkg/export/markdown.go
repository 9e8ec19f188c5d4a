package export

import (
	"fmt"
	"strconv"
	"strings"

	"chatrelay/gateway/pkg/session"
)

const tocPreviewLength = 50

// Statistics summarizes a conversation for the Markdown header.
type Statistics struct {
	Total    int
	User     int
	AI       int
	Modes    []ModeCount
	Files    int
	Tokens   float64
	Duration string
}

// ModeCount is the number of messages sent in one UI mode.
type ModeCount struct {
	Mode  string
	Count int
}

// ComputeStatistics counts messages per role and mode. Modes keep the
// order in which they first appear.
func ComputeStatistics(messages []session.Message) Statistics {
	s := Statistics{Total: len(messages)}

	index := make(map[string]int)
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			s.User++
		case "assistant":
			s.AI++
		}

		mode := orDefault(msg.Mode, "chat")
		if i, ok := index[mode]; ok {
			s.Modes[i].Count++
		} else {
			index[mode] = len(s.Modes)
			s.Modes = append(s.Modes, ModeCount{Mode: mode, Count: 1})
		}

		if msg.HasFile {
			s.Files++
		}
		s.Tokens += msg.EstimatedTokens
	}

	if len(messages) == 0 {
		s.Duration = "Keine Nachrichten"
	} else {
		s.Duration = messages[0].Timestamp + " bis " + messages[len(messages)-1].Timestamp
	}
	return s
}

func roleName(role string) string {
	if role == "user" {
		return "Benutzer"
	}
	return "KI"
}

func renderMarkdown(c *session.Conversation, m meta) []byte {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}
	rule := func() {
		line("")
		line("---")
		line("")
	}

	line("# %s - Export", m.opts.Title)
	line("")
	line("**Server:** %s (IP: %s)", orDefault(c.ServerInfo.Name, "Unbekannt"), orDefault(c.ServerInfo.IP, "Unbekannt"))
	line("**Export-Datum:** %s", orDefault(c.Timestamp, "Unbekannt"))
	settings := c.UISettings()
	line("**Einstellungen:** %s-Form, Modus: %s", orDefault(settings.AddressForm, "sie"), orDefault(settings.DefaultMode, "chat"))
	rule()

	stats := ComputeStatistics(c.Messages)
	modes := make([]string, len(stats.Modes))
	for i, mc := range stats.Modes {
		modes[i] = fmt.Sprintf("%s: %dx", mc.Mode, mc.Count)
	}

	line("## Statistiken")
	line("")
	line("- **Nachrichten gesamt:** %d (Benutzer: %d, KI: %d)", stats.Total, stats.User, stats.AI)
	line("- **Verwendete Modi:** %s", strings.Join(modes, ", "))
	line("- **Hochgeladene Dateien:** %d", stats.Files)
	line("- **Geschaetzte Token-Nutzung:** %s", strconv.FormatFloat(stats.Tokens, 'f', -1, 64))
	line("- **Chat-Dauer:** %s", stats.Duration)
	rule()

	line("## Inhaltsverzeichnis")
	line("")
	for i, msg := range c.Messages {
		preview := msg.Content
		if r := []rune(preview); len(r) > tocPreviewLength {
			preview = string(r[:tocPreviewLength]) + "..."
		}
		line("- [Nachricht %d (%s)](#nachricht-%d): %s", i+1, roleName(msg.Role), i+1, preview)
	}
	rule()

	line("## Chat-Verlauf")
	line("")
	for i, msg := range c.Messages {
		mode := strings.ToUpper(orDefault(msg.Mode, "chat"))
		line("### Nachricht %d - %s [%s] {#nachricht-%d}", i+1, roleName(msg.Role), mode, i+1)
		line("*%s*", msg.Timestamp)
		line("")
		line("%s", msg.Content)
		rule()
	}

	fmt.Fprintf(&b, "*Exportiert mit %s v%s*", m.opts.Title, m.opts.Version)
	return []byte(b.String())
}

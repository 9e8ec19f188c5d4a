package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"chatrelay/gateway/pkg/session"
)

// Layout in points on A4 with 2cm margins.
const (
	pdfMargin     = 56.7
	pdfUserIndent = 20
	pdfAIIndent   = 40
	pdfLabelWidth = 150
)

type rgb struct{ r, g, b int }

var (
	pdfTitleColor   = rgb{0x4d, 0xab, 0xf7}
	pdfHeadingColor = rgb{0x00, 0x56, 0xb3}
	pdfUserColor    = rgb{0x4d, 0xab, 0xf7}
	pdfTextColor    = rgb{0x00, 0x00, 0x00}
	pdfMutedColor   = rgb{0x6c, 0x75, 0x7d}
	pdfTableFill    = rgb{0xf1, 0xf3, 0xf5}
)

// modeColor picks the badge color for a message mode.
func modeColor(mode string) rgb {
	switch mode {
	case "deepthink":
		return rgb{0x28, 0xa7, 0x45}
	case "search":
		return rgb{0x17, 0xa2, 0xb8}
	default:
		return pdfMutedColor
	}
}

// latin1 converts UTF-8 text to the Windows-1252 bytes expected by the
// core PDF fonts. Characters outside the code page become '?'.
func latin1(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		default:
			if c, ok := charmap.Windows1252.EncodeRune(r); ok {
				b.WriteByte(c)
			} else {
				b.WriteByte('?')
			}
		}
	}
	return b.String()
}

type pdfWriter struct {
	*fpdf.Fpdf
}

func (p pdfWriter) color(c rgb) {
	p.SetTextColor(c.r, c.g, c.b)
}

func (p pdfWriter) heading(text string) {
	p.Ln(12)
	p.SetFont("Helvetica", "B", 14)
	p.color(pdfHeadingColor)
	p.MultiCell(0, 18, latin1(text), "", "L", false)
	p.Ln(6)
}

func (p pdfWriter) labelled(label, value string) {
	p.SetFont("Helvetica", "B", 10)
	p.color(pdfTextColor)
	p.Write(14, latin1(label+": "))
	p.SetFont("Helvetica", "", 10)
	p.Write(14, latin1(value))
	p.Ln(14)
}

func (p pdfWriter) statsTable(stats Statistics) {
	modes := make([]string, len(stats.Modes))
	for i, mc := range stats.Modes {
		modes[i] = fmt.Sprintf("%s: %dx", mc.Mode, mc.Count)
	}

	rows := [][2]string{
		{"Nachrichten gesamt", fmt.Sprintf("%d (Benutzer: %d, KI: %d)", stats.Total, stats.User, stats.AI)},
		{"Verwendete Modi", strings.Join(modes, ", ")},
		{"Hochgeladene Dateien", strconv.Itoa(stats.Files)},
		{"Geschaetzte Token-Nutzung", strconv.FormatFloat(stats.Tokens, 'f', -1, 64)},
		{"Chat-Dauer", stats.Duration},
	}

	p.SetFillColor(pdfTableFill.r, pdfTableFill.g, pdfTableFill.b)
	p.color(pdfTextColor)
	for _, row := range rows {
		p.SetFont("Helvetica", "B", 9)
		p.CellFormat(pdfLabelWidth, 16, latin1(row[0]), "1", 0, "L", true, 0, "")
		p.SetFont("Helvetica", "", 9)
		p.CellFormat(0, 16, latin1(row[1]), "1", 1, "L", false, 0, "")
	}
}

func (p pdfWriter) message(i int, msg session.Message) {
	mode := orDefault(msg.Mode, "chat")

	p.Ln(8)
	p.SetFont("Helvetica", "B", 12)
	p.color(pdfHeadingColor)
	p.Write(16, latin1(fmt.Sprintf("Nachricht %d - %s ", i, roleName(msg.Role))))
	p.color(modeColor(mode))
	p.Write(16, latin1("["+strings.ToUpper(mode)+"] "))
	p.SetFont("Helvetica", "I", 10)
	p.color(pdfMutedColor)
	p.Write(16, latin1("("+msg.Timestamp+")"))
	p.Ln(20)

	indent, c := float64(pdfAIIndent), pdfTextColor
	if msg.Role == "user" {
		indent, c = pdfUserIndent, pdfUserColor
	}
	p.SetFont("Helvetica", "", 10)
	p.color(c)
	p.SetX(pdfMargin + indent)
	p.MultiCell(0, 13, latin1(msg.Content), "", "L", false)
	p.Ln(8)
}

func renderPDF(c *session.Conversation, m meta) ([]byte, error) {
	p := pdfWriter{fpdf.New("P", "pt", "A4", "")}
	p.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	p.SetAutoPageBreak(true, pdfMargin)
	p.SetTitle(m.opts.Title+" - Export", true)
	p.SetCreator(m.opts.Title+" v"+m.opts.Version, true)
	p.SetCreationDate(m.now)
	p.AddPage()

	p.SetFont("Helvetica", "B", 24)
	p.color(pdfTitleColor)
	p.CellFormat(0, 30, latin1(m.opts.Title+" - Export"), "", 1, "C", false, 0, "")
	p.Ln(14)

	p.labelled("Server", fmt.Sprintf("%s (IP: %s)", orDefault(c.ServerInfo.Name, "Unbekannt"), orDefault(c.ServerInfo.IP, "Unbekannt")))
	p.labelled("Export-Datum", orDefault(c.Timestamp, "Unbekannt"))
	settings := c.UISettings()
	p.labelled("Einstellungen", fmt.Sprintf("%s-Form, Modus: %s", orDefault(settings.AddressForm, "sie"), orDefault(settings.DefaultMode, "chat")))

	p.heading("Statistiken")
	p.statsTable(ComputeStatistics(c.Messages))

	p.heading("Inhaltsverzeichnis")
	p.SetFont("Helvetica", "", 9)
	p.color(pdfTextColor)
	for i, msg := range c.Messages {
		preview := msg.Content
		if r := []rune(preview); len(r) > tocPreviewLength {
			preview = string(r[:tocPreviewLength]) + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		p.MultiCell(0, 12, latin1(fmt.Sprintf("Nachricht %d (%s): %s", i+1, roleName(msg.Role), preview)), "", "L", false)
	}

	p.AddPage()
	p.heading("Chat-Verlauf")
	for i, msg := range c.Messages {
		p.message(i+1, msg)
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

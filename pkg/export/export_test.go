package export

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"chatrelay/gateway/pkg/session"
)

func testConversation() *session.Conversation {
	return &session.Conversation{
		Timestamp:  "2025-01-15T14:30:22.512Z",
		ServerInfo: session.ServerInfo{Name: "Praxis Müller", IP: "10.1.2.3"},
		Settings:   json.RawMessage(`{"addressForm":"du","defaultMode":"code"}`),
		Messages: []session.Message{
			{Role: "user", Content: "Schreib mir eine Funktion", Timestamp: "2025-01-15T14:30:22.512Z", Mode: "code", HasFile: true, EstimatedTokens: 12},
			{Role: "assistant", Content: "func f() {}\nfertig", Timestamp: "2025-01-15T14:30:25.000Z", Mode: "code", EstimatedTokens: 30},
			{Role: "user", Content: "Danke", Timestamp: "2025-01-15T14:31:00.000Z"},
		},
	}
}

func newTestExporter() *Exporter {
	e := New(Options{})
	e.now = func() time.Time { return time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC) }
	return e
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
		ok   bool
	}{
		{"txt", FormatText, true},
		{"text", FormatText, true},
		{"md", FormatMarkdown, true},
		{"markdown", FormatMarkdown, true},
		{"rtf", FormatRTF, true},
		{"pdf", FormatPDF, true},
		{"docx", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFormat(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestRender_Text(t *testing.T) {
	doc, err := newTestExporter().Render(FormatText, testConversation())
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat-2025-01-15.txt", doc.Filename)
	assert.Equal(t, "text/plain; charset=utf-8", doc.ContentType)

	body := string(doc.Body)
	lines := strings.Split(body, "\n")
	assert.Equal(t, strings.Repeat("=", 60), lines[0])
	assert.Equal(t, "DEEPSEEK CHAT - EXPORT", lines[1])
	assert.Equal(t, "Server: Praxis Müller", lines[3])
	assert.Equal(t, "IP:     10.1.2.3", lines[4])
	assert.Equal(t, "Datum:  2025-01-15  Uhrzeit: 14:30:22", lines[5])
	assert.Equal(t, "Anzahl Nachrichten: 3", lines[6])
	assert.Contains(t, body, "USER [2025-01-15 14:30:22]:\n"+strings.Repeat("-", 40)+"\nSchreib mir eine Funktion\n")
	assert.Contains(t, body, "DEEPSEEK AI [2025-01-15 14:30:25]:")
}

func TestRender_TextDefaults(t *testing.T) {
	doc, err := newTestExporter().Render(FormatText, &session.Conversation{})
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat-2025-07-01.txt", doc.Filename)
	body := string(doc.Body)
	assert.Contains(t, body, "Server: DeepSeek Chat\n")
	assert.Contains(t, body, "IP:     unbekannt\n")
	assert.Contains(t, body, "Anzahl Nachrichten: 0\n")
}

func TestRender_UnsafeTimestampNotInFilename(t *testing.T) {
	conv := &session.Conversation{Timestamp: "\"; rm -rf /x"}
	doc, err := newTestExporter().Render(FormatRTF, conv)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat-2025-07-01.rtf", doc.Filename)
}

func TestRender_Markdown(t *testing.T) {
	doc, err := newTestExporter().Render(FormatMarkdown, testConversation())
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat-2025-01-15.md", doc.Filename)
	body := string(doc.Body)

	for _, want := range []string{
		"# DeepSeek Chat - Export\n",
		"**Server:** Praxis Müller (IP: 10.1.2.3)\n",
		"**Einstellungen:** du-Form, Modus: code\n",
		"- **Nachrichten gesamt:** 3 (Benutzer: 2, KI: 1)\n",
		"- **Verwendete Modi:** code: 2x, chat: 1x\n",
		"- **Hochgeladene Dateien:** 1\n",
		"- **Geschaetzte Token-Nutzung:** 42\n",
		"- **Chat-Dauer:** 2025-01-15T14:30:22.512Z bis 2025-01-15T14:31:00.000Z\n",
		"- [Nachricht 2 (KI)](#nachricht-2): func f() {}\nfertig\n",
		"### Nachricht 1 - Benutzer [CODE] {#nachricht-1}\n*2025-01-15T14:30:22.512Z*\n",
		"### Nachricht 3 - Benutzer [CHAT] {#nachricht-3}\n",
	} {
		assert.Contains(t, body, want)
	}
	assert.True(t, strings.HasSuffix(body, "*Exportiert mit DeepSeek Chat v1.0*"))
}

func TestRender_MarkdownTOCPreview(t *testing.T) {
	conv := &session.Conversation{Messages: []session.Message{{Role: "user", Content: strings.Repeat("ö", 60)}}}
	doc, err := newTestExporter().Render(FormatMarkdown, conv)
	require.NoError(t, err)

	assert.Contains(t, string(doc.Body), "(#nachricht-1): "+strings.Repeat("ö", 50)+"...\n")
	assert.Contains(t, string(doc.Body), "**Einstellungen:** sie-Form, Modus: chat\n")
}

func TestComputeStatistics_Empty(t *testing.T) {
	s := ComputeStatistics(nil)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, "Keine Nachrichten", s.Duration)
	assert.Empty(t, s.Modes)
}

func TestEscapeRTF(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "control chars", in: `a\b{c}`, want: `a\\b\{c\}`},
		{name: "umlauts", in: "Grüße Ärger", want: `Gr\'fc\'dfe \'c4rger`},
		{name: "euro is cp1252", in: "5€", want: `5\'80`},
		{name: "newline", in: "a\r\nb", want: "a\\par\nb"},
		{name: "outside code page", in: "Ω", want: `\u937?`},
		{name: "astral plane", in: "😀", want: `\u-10179?\u-8704?`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeRTF(tt.in))
		})
	}
}

func TestEscapeRTF_ASCIIOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		out := EscapeRTF(rapid.String().Draw(t, "text"))
		for i := 0; i < len(out); i++ {
			if out[i] >= 0x80 {
				t.Fatalf("non-ASCII byte %#x at %d in %q", out[i], i, out)
			}
		}
	})
}

func TestRender_RTF(t *testing.T) {
	doc, err := newTestExporter().Render(FormatRTF, testConversation())
	require.NoError(t, err)

	assert.Equal(t, "application/rtf", doc.ContentType)
	body := string(doc.Body)
	assert.True(t, strings.HasPrefix(body, `{\rtf1\ansi\ansicpg1252\deff0`))
	assert.True(t, strings.HasSuffix(body, "\n}"))
	assert.Contains(t, body, `Server: Praxis M\'fcller`)
	assert.Contains(t, body, `{\pard\sb200{\b\fs24\cf1 USER [2025-01-15 14:30:22]}\par}`)
	assert.Contains(t, body, `{\pard\sb200{\b\fs24\cf4 DEEPSEEK AI [2025-01-15 14:30:25]}\par}`)
	assert.Contains(t, body, `func f() \{\}\par`)
}

func TestRender_PDF(t *testing.T) {
	doc, err := newTestExporter().Render(FormatPDF, testConversation())
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "deepseek-chat-2025-01-15.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")), "missing PDF header")
	assert.Contains(t, string(bytes.TrimSpace(doc.Body[len(doc.Body)-16:])), "%%EOF")
}

func TestRender_PDFEmptyConversation(t *testing.T) {
	doc, err := newTestExporter().Render(FormatPDF, &session.Conversation{})
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat-2025-07-01.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
}

func TestLatin1(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "Grüße", want: "Gr\xfc\xdfe"},
		{in: "5€", want: "5\x80"},
		{in: "Ω😀", want: "??"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, latin1(tt.in), tt.in)
	}
}

type exportCounter map[string]int

func (c exportCounter) RecordExport(format string) { c[format]++ }

func TestHandler(t *testing.T) {
	conv, _ := json.Marshal(map[string]any{"chatData": testConversation()})

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		wantStatus  int
		wantType    string
		wantCounted string
	}{
		{name: "txt", method: "POST", path: "/api/export/txt", body: string(conv), wantStatus: 200, wantType: "text/plain; charset=utf-8", wantCounted: "txt"},
		{name: "md alias", method: "POST", path: "/api/export/md", body: string(conv), wantStatus: 200, wantType: "text/markdown; charset=utf-8", wantCounted: "markdown"},
		{name: "rtf", method: "POST", path: "/api/export/rtf", body: string(conv), wantStatus: 200, wantType: "application/rtf", wantCounted: "rtf"},
		{name: "pdf", method: "POST", path: "/api/export/pdf", body: string(conv), wantStatus: 200, wantType: "application/pdf", wantCounted: "pdf"},
		{name: "unknown format", method: "POST", path: "/api/export/docx", body: string(conv), wantStatus: 404},
		{name: "missing chat data", method: "POST", path: "/api/export/txt", body: `{}`, wantStatus: 400},
		{name: "null chat data", method: "POST", path: "/api/export/txt", body: `{"chatData":null}`, wantStatus: 400},
		{name: "malformed chat data", method: "POST", path: "/api/export/txt", body: `{"chatData":{"messages":"x"}}`, wantStatus: 400},
		{name: "get rejected", method: "GET", path: "/api/export/txt", wantStatus: 405},
		{name: "preflight", method: "OPTIONS", path: "/api/export/rtf", wantStatus: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := exportCounter{}
			h := NewHandler(newTestExporter(), counter, 0, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"deepseek-chat-2025-01-15.")
			}
			if tt.wantCounted != "" {
				assert.Equal(t, 1, counter[tt.wantCounted])
			} else {
				assert.Empty(t, counter)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	assert.Equal(t, []Format{FormatMarkdown, FormatPDF, FormatRTF, FormatText}, New(DefaultOptions()).Formats())
}

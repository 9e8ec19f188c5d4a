package export

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"chatrelay/gateway/pkg/session"
)

// Format names an export format.
type Format string

// Supported formats.
const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "markdown"
	FormatRTF      Format = "rtf"
	FormatPDF      Format = "pdf"
)

var aliases = map[string]Format{
	"txt":      FormatText,
	"text":     FormatText,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"rtf":      FormatRTF,
	"pdf":      FormatPDF,
}

// ParseFormat resolves a format name or alias.
func ParseFormat(name string) (Format, bool) {
	f, ok := aliases[name]
	return f, ok
}

// Document is a rendered export.
type Document struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Options brand the rendered documents.
type Options struct {
	// Title names the application in headings.
	Title string
	// AssistantLabel marks assistant turns in text and RTF exports.
	AssistantLabel string
	// FilePrefix starts every download filename.
	FilePrefix string
	// Version is printed in the Markdown footer.
	Version string
}

// DefaultOptions returns the branding used by the chat UI.
func DefaultOptions() Options {
	return Options{
		Title:          "DeepSeek Chat",
		AssistantLabel: "DEEPSEEK AI",
		FilePrefix:     "deepseek-chat",
		Version:        "1.0",
	}
}

type renderFunc func(c *session.Conversation, m meta) ([]byte, error)

// infallible adapts a renderer that cannot fail.
func infallible(fn func(*session.Conversation, meta) []byte) renderFunc {
	return func(c *session.Conversation, m meta) ([]byte, error) {
		return fn(c, m), nil
	}
}

type renderer struct {
	contentType string
	extension   string
	render      renderFunc
}

// meta holds values derived once per export.
type meta struct {
	opts      Options
	timestamp string
	date      string
	clock     string
	now       time.Time
}

// Exporter renders conversations.
type Exporter struct {
	opts      Options
	renderers map[Format]renderer
	now       func() time.Time
}

// New creates an Exporter. Empty option fields fall back to DefaultOptions.
func New(opts Options) *Exporter {
	def := DefaultOptions()
	if opts.Title == "" {
		opts.Title = def.Title
	}
	if opts.AssistantLabel == "" {
		opts.AssistantLabel = def.AssistantLabel
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = def.FilePrefix
	}
	if opts.Version == "" {
		opts.Version = def.Version
	}

	return &Exporter{
		opts: opts,
		renderers: map[Format]renderer{
			FormatText:     {contentType: "text/plain; charset=utf-8", extension: "txt", render: infallible(renderText)},
			FormatMarkdown: {contentType: "text/markdown; charset=utf-8", extension: "md", render: infallible(renderMarkdown)},
			FormatRTF:      {contentType: "application/rtf", extension: "rtf", render: infallible(renderRTF)},
			FormatPDF:      {contentType: "application/pdf", extension: "pdf", render: renderPDF},
		},
		now: time.Now,
	}
}

// Formats lists the supported formats in name order.
func (e *Exporter) Formats() []Format {
	formats := make([]Format, 0, len(e.renderers))
	for f := range e.renderers {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Render renders c in format f.
func (e *Exporter) Render(f Format, c *session.Conversation) (*Document, error) {
	r, ok := e.renderers[f]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", f)
	}

	m := e.meta(c)
	body, err := r.render(c, m)
	if err != nil {
		return nil, err
	}
	return &Document{
		ContentType: r.contentType,
		Filename:    fmt.Sprintf("%s-%s.%s", e.opts.FilePrefix, m.date, r.extension),
		Body:        body,
	}, nil
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func (e *Exporter) meta(c *session.Conversation) meta {
	now := e.now()
	ts := c.Timestamp
	if ts == "" {
		ts = now.Format("2006-01-02T15:04:05")
	}

	date := prefix(ts, 10)
	if !isoDate.MatchString(date) {
		date = now.Format("2006-01-02")
	}

	return meta{
		opts:      e.opts,
		timestamp: ts,
		date:      date,
		clock:     substr(ts, 11, 19),
		now:       now,
	}
}

// prefix returns at most the first n bytes of s.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// substr returns s[from:to] clamped to the string length.
func substr(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// messageTime renders a message timestamp as "YYYY-MM-DD HH:MM:SS".
func messageTime(ts string) string {
	b := []byte(prefix(ts, 19))
	for i, c := range b {
		if c == 'T' {
			b[i] = ' '
		}
	}
	return string(b)
}

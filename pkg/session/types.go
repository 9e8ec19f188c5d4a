package session

import (
	"encoding/json"
	"fmt"
)

// Message is one turn of a saved conversation.
type Message struct {
	Role            string  `json:"role"`
	Content         string  `json:"content"`
	Timestamp       string  `json:"timestamp,omitempty"`
	Mode            string  `json:"mode,omitempty"`
	HasFile         bool    `json:"hasFile,omitempty"`
	EstimatedTokens float64 `json:"estimatedTokens,omitempty"`
}

// ServerInfo identifies the installation a conversation was held on.
type ServerInfo struct {
	Name string `json:"name,omitempty"`
	IP   string `json:"ip,omitempty"`
}

// Settings are the UI preferences stored with a conversation.
type Settings struct {
	AddressForm string `json:"addressForm,omitempty"`
	DefaultMode string `json:"defaultMode,omitempty"`
}

// Conversation is the typed view of a stored chat document.
type Conversation struct {
	Timestamp  string          `json:"timestamp,omitempty"`
	Messages   []Message       `json:"messages"`
	ServerInfo ServerInfo      `json:"serverInfo"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

// ParseConversation decodes a stored chat document.
func ParseConversation(data json.RawMessage) (*Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &c, nil
}

// UISettings decodes the settings object. Unknown or malformed settings
// yield the zero value.
func (c *Conversation) UISettings() Settings {
	var s Settings
	if len(c.Settings) > 0 {
		_ = json.Unmarshal(c.Settings, &s)
	}
	return s
}

// Summary describes a stored session in the session list.
type Summary struct {
	SessionID    string          `json:"sessionId"`
	Timestamp    string          `json:"timestamp"`
	MessageCount int             `json:"messageCount"`
	Preview      string          `json:"preview"`
	Settings     json.RawMessage `json:"settings"`
}

// MaxPreviewLength is the number of characters of the first user message
// shown in a Summary.
const MaxPreviewLength = 50

// EmptyPreview is shown for sessions without a user message.
const EmptyPreview = "Keine Nachricht"

func summarize(id string, c *Conversation) Summary {
	preview := EmptyPreview
	for _, m := range c.Messages {
		if m.Role == "user" {
			preview = truncate(m.Content, MaxPreviewLength)
			break
		}
	}

	settings := c.Settings
	if len(settings) == 0 || string(settings) == "null" {
		settings = json.RawMessage("{}")
	}

	return Summary{
		SessionID:    id,
		Timestamp:    c.Timestamp,
		MessageCount: len(c.Messages),
		Preview:      preview,
		Settings:     settings,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

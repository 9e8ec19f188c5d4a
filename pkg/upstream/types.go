package upstream

// Message roles accepted by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a validated request ready to be sent upstream.
// It is built once per inbound call and not modified afterwards.
type CompletionRequest struct {
	Model          string
	Messages       []Message
	MaxTokens      int
	TrainingOptOut bool
}

// wireRequest is the JSON body of the outbound call.
type wireRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

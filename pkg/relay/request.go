package relay

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chatrelay/gateway/pkg/api"
	"chatrelay/gateway/pkg/upstream"
)

// Defaults fill fields the client omitted.
type Defaults struct {
	Model     string
	MaxTokens int
}

// RequestError is a client input error detected before any upstream call.
type RequestError struct {
	Status  int
	Message string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// inboundRequest is the JSON body accepted from browsers. max_tokens is the
// documented field; maxTokens is accepted for older clients.
type inboundRequest struct {
	Model          string             `json:"model"`
	Messages       []upstream.Message `json:"messages"`
	MaxTokens      *int               `json:"max_tokens"`
	MaxTokensAlias *int               `json:"maxTokens"`
	NoTraining     *bool              `json:"no_training"`
}

// ParseRequest reads and validates the body of r. The body is limited to
// maxBody bytes. Returned errors are *RequestError.
func ParseRequest(r *http.Request, maxBody int64, d Defaults) (upstream.CompletionRequest, error) {
	var in inboundRequest
	if err := api.DecodeJSON(r, maxBody, &in); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			return upstream.CompletionRequest{}, &RequestError{Status: apiErr.Status, Message: apiErr.Error(), Param: "body"}
		}
		return upstream.CompletionRequest{}, &RequestError{Status: http.StatusBadRequest, Message: err.Error(), Param: "body"}
	}

	return in.toCompletion(d)
}

func (in *inboundRequest) toCompletion(d Defaults) (upstream.CompletionRequest, error) {
	var zero upstream.CompletionRequest

	if len(in.Messages) == 0 {
		return zero, &RequestError{
			Status:  http.StatusBadRequest,
			Message: "messages must be a non-empty array",
			Param:   "messages",
		}
	}
	for i, m := range in.Messages {
		if err := validateMessage(m); err != nil {
			return zero, &RequestError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("messages[%d]: %v", i, err),
				Param:   fmt.Sprintf("messages[%d]", i),
			}
		}
	}

	model := strings.TrimSpace(in.Model)
	if model == "" {
		model = d.Model
	}

	maxTokens := d.MaxTokens
	switch {
	case in.MaxTokens != nil:
		maxTokens = *in.MaxTokens
	case in.MaxTokensAlias != nil:
		maxTokens = *in.MaxTokensAlias
	}
	if maxTokens <= 0 {
		return zero, &RequestError{
			Status:  http.StatusBadRequest,
			Message: "max_tokens must be positive",
			Param:   "max_tokens",
		}
	}

	optOut := true
	if in.NoTraining != nil {
		optOut = *in.NoTraining
	}

	messages := make([]upstream.Message, len(in.Messages))
	copy(messages, in.Messages)

	return upstream.CompletionRequest{
		Model:          model,
		Messages:       messages,
		MaxTokens:      maxTokens,
		TrainingOptOut: optOut,
	}, nil
}

// validateMessage checks the role only. Content is forwarded as sent, empty
// turns included.
func validateMessage(m upstream.Message) error {
	switch m.Role {
	case upstream.RoleUser, upstream.RoleAssistant, upstream.RoleSystem:
		return nil
	default:
		return fmt.Errorf("unknown role %q", m.Role)
	}
}

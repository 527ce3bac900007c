// Package intelligence defines the boundary with the external LLM
// collaborator: a single request contract plus a strict parse-or-fallback
// extraction of task arrays from whatever text comes back.
package intelligence

import (
	"context"
	"encoding/json"
	"strings"
)

// RequestPayload carries the prompt and generation parameters for one
// intelligence request.
type RequestPayload struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Response is the provider's reply. The usable text may arrive under any of
// the three fields depending on the provider.
type Response struct {
	Completion string `json:"completion,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Provider is the external intelligence collaborator. Implementations must
// treat failures as ordinary errors; callers degrade to deterministic
// fallbacks and never surface provider failures to the end user.
type Provider interface {
	RequestIntelligence(ctx context.Context, requestType string, payload RequestPayload) (*Response, error)
}

// GeneratedTask is the shape the provider is asked to return, one element
// per task, as a JSON array.
type GeneratedTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Difficulty  int    `json:"difficulty,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// ExtractTaskArray pulls a task array out of a provider response. The
// primary path is a strict parse of the first non-empty field; as a
// best-effort secondary attempt the outermost bracketed slice is tried.
// Garbage yields nil, never an error; the caller falls back to templates.
func ExtractTaskArray(resp *Response) []GeneratedTask {
	if resp == nil {
		return nil
	}
	for _, text := range []string{resp.Completion, resp.Answer, resp.Text} {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if tasks := parseTaskArray(text); tasks != nil {
			return tasks
		}
		return nil
	}
	return nil
}

func parseTaskArray(text string) []GeneratedTask {
	trimmed := strings.TrimSpace(text)

	var tasks []GeneratedTask
	if err := json.Unmarshal([]byte(trimmed), &tasks); err == nil {
		return tasks
	}

	// Secondary attempt: the model wrapped the array in prose.
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end <= start {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &tasks); err != nil {
		return nil
	}
	return tasks
}

// stubProvider is the offline provider: it reports that no intelligence is
// available, which routes every generation through the template fallback.
type stubProvider struct{}

// NewStubProvider returns a Provider that always yields an empty response.
func NewStubProvider() Provider {
	return stubProvider{}
}

func (stubProvider) RequestIntelligence(_ context.Context, _ string, _ RequestPayload) (*Response, error) {
	return &Response{}, nil
}

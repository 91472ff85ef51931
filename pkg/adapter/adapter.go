// Package adapter is the boundary between the routing core and upstream
// provider APIs.
package adapter

import (
	"context"
	"errors"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

// ErrStreamingUnsupported is returned by Stream when the provider does not
// support streaming responses.
var ErrStreamingUnsupported = errors.New("streaming not supported by provider")

// ErrProbeFailed is returned by health probes when the provider is
// unreachable or unhealthy.
var ErrProbeFailed = errors.New("provider health probe failed")

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Prompt       string    `json:"prompt"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	Model        string    `json:"model,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Stream       bool      `json:"stream,omitempty"`
	JSONMode     bool      `json:"json_mode,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	ResponseID   string  `json:"response_id,omitempty"`
	FinishReason string  `json:"finish_reason,omitempty"`
	LatencyMS    int     `json:"latency_ms"`
}

// HealthStatus is the result of a provider health check.
type HealthStatus struct {
	Status        registry.Status `json:"status"`
	LatencyMS     float64         `json:"latency_ms"`
	Authenticated bool            `json:"authenticated"`
}

// Adapter executes requests against one provider.
type Adapter interface {
	ProviderID() string
	Authenticate(ctx context.Context) bool
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Stream sends content chunks to the callback and returns the
	// aggregated response. ErrStreamingUnsupported when unavailable.
	Stream(ctx context.Context, req *Request, callback func(chunk string)) (*Response, error)
	HealthCheck(ctx context.Context) HealthStatus
}

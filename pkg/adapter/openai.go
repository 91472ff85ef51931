package adapter

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

// degradedLatencyMS marks a health check as degraded above this latency.
const degradedLatencyMS = 3000

// OpenAIAdapter talks to any OpenAI-compatible endpoint. All built-in
// providers expose this API shape, local Ollama included.
type OpenAIAdapter struct {
	provider *registry.Provider
	client   openai.Client
	model    string
}

// NewOpenAIAdapter builds an adapter for the provider. The API key is read
// from the provider's configured environment variable; an empty key env
// means an unauthenticated local endpoint.
func NewOpenAIAdapter(p *registry.Provider) (*OpenAIAdapter, error) {
	if p.APIBase == "" {
		return nil, fmt.Errorf("provider %s has no api_base", p.ID)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(p.APIBase),
	}
	if p.APIKeyEnv != "" {
		opts = append(opts, option.WithAPIKey(os.Getenv(p.APIKeyEnv)))
	}

	model := ""
	if len(p.Models) > 0 {
		model = p.Models[0]
	}

	return &OpenAIAdapter{
		provider: p.Clone(),
		client:   openai.NewClient(opts...),
		model:    model,
	}, nil
}

// ProviderID returns the provider this adapter serves.
func (a *OpenAIAdapter) ProviderID() string {
	return a.provider.ID
}

func (a *OpenAIAdapter) params(req *Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	if len(req.Messages) > 0 {
		for _, m := range req.Messages {
			switch m.Role {
			case "system":
				messages = append(messages, openai.SystemMessage(m.Content))
			case "assistant":
				messages = append(messages, openai.AssistantMessage(m.Content))
			default:
				messages = append(messages, openai.UserMessage(m.Content))
			}
		}
	} else {
		messages = append(messages, openai.UserMessage(req.Prompt))
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// Complete executes a non-streaming completion.
func (a *OpenAIAdapter) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	completion, err := a.client.Chat.Completions.New(ctx, a.params(req))
	if err != nil {
		return nil, fmt.Errorf("completion failed for %s: %w", a.provider.ID, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion failed for %s: no choices returned", a.provider.ID)
	}

	in := int(completion.Usage.PromptTokens)
	out := int(completion.Usage.CompletionTokens)

	return &Response{
		Content:      completion.Choices[0].Message.Content,
		Model:        completion.Model,
		Provider:     a.provider.ID,
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  int(completion.Usage.TotalTokens),
		CostUSD:      a.provider.Cost.Estimate(in, out),
		ResponseID:   completion.ID,
		FinishReason: string(completion.Choices[0].FinishReason),
		LatencyMS:    int(time.Since(start).Milliseconds()),
	}, nil
}

// Stream executes a streaming completion, forwarding content deltas to the
// callback and returning the aggregated response.
func (a *OpenAIAdapter) Stream(ctx context.Context, req *Request, callback func(chunk string)) (*Response, error) {
	if !a.provider.Capabilities.SupportsStreaming {
		return nil, ErrStreamingUnsupported
	}

	start := time.Now()
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(req))

	resp := &Response{Provider: a.provider.ID}
	var content string
	for stream.Next() {
		chunk := stream.Current()
		if resp.Model == "" {
			resp.Model = chunk.Model
		}
		if resp.ResponseID == "" {
			resp.ResponseID = chunk.ID
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				content += delta
				if callback != nil {
					callback(delta)
				}
			}
			if fr := chunk.Choices[0].FinishReason; fr != "" {
				resp.FinishReason = string(fr)
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			resp.InputTokens = int(chunk.Usage.PromptTokens)
			resp.OutputTokens = int(chunk.Usage.CompletionTokens)
			resp.TotalTokens = int(chunk.Usage.TotalTokens)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream failed for %s: %w", a.provider.ID, err)
	}

	resp.Content = content
	resp.CostUSD = a.provider.Cost.Estimate(resp.InputTokens, resp.OutputTokens)
	resp.LatencyMS = int(time.Since(start).Milliseconds())
	return resp, nil
}

// Authenticate probes the endpoint and reports whether credentials work.
func (a *OpenAIAdapter) Authenticate(ctx context.Context) bool {
	return a.HealthCheck(ctx).Authenticated
}

// HealthCheck probes the model listing endpoint and grades the latency.
func (a *OpenAIAdapter) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	_, err := a.client.Models.List(ctx)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		return HealthStatus{Status: registry.StatusUnhealthy, LatencyMS: latency}
	}

	status := registry.StatusHealthy
	if latency > degradedLatencyMS {
		status = registry.StatusDegraded
	}
	return HealthStatus{Status: status, LatencyMS: latency, Authenticated: true}
}

package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/federation-go/pkg/registry"
)

func adapterProvider(apiBase string) *registry.Provider {
	return &registry.Provider{
		ID:      "testprov",
		Name:    "Test Provider",
		APIBase: apiBase,
		Capabilities: registry.Capabilities{
			MaxContext:        8192,
			SupportsStreaming: true,
		},
		Cost:   registry.Cost{InputPer1M: 2.0, OutputPer1M: 4.0},
		Models: []string{"test-model"},
	}
}

func completionServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 1000, "completion_tokens": 500, "total_tokens": 1500}
		}`))
	})
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "list", "data": [{"id": "test-model", "object": "model"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	srv := completionServer(t)
	a, err := NewOpenAIAdapter(adapterProvider(srv.URL))
	require.NoError(t, err)

	resp, err := a.Complete(context.Background(), &Request{Prompt: "say hello"})
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "testprov", resp.Provider)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, 1000, resp.InputTokens)
	assert.Equal(t, 500, resp.OutputTokens)
	assert.Equal(t, 1500, resp.TotalTokens)
	// 1000 in at $2/1M plus 500 out at $4/1M
	assert.Equal(t, 0.004, resp.CostUSD)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "chatcmpl-123", resp.ResponseID)
}

func TestCompleteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	a, err := NewOpenAIAdapter(adapterProvider(srv.URL))
	require.NoError(t, err)

	_, err = a.Complete(context.Background(), &Request{Prompt: "say hello"})
	assert.Error(t, err)
}

func TestStreamUnsupported(t *testing.T) {
	p := adapterProvider("http://localhost:0")
	p.Capabilities.SupportsStreaming = false

	a, err := NewOpenAIAdapter(p)
	require.NoError(t, err)

	_, err = a.Stream(context.Background(), &Request{Prompt: "hi"}, nil)
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy endpoint", func(t *testing.T) {
		srv := completionServer(t)
		a, err := NewOpenAIAdapter(adapterProvider(srv.URL))
		require.NoError(t, err)

		hs := a.HealthCheck(context.Background())
		assert.Equal(t, registry.StatusHealthy, hs.Status)
		assert.True(t, hs.Authenticated)
		assert.True(t, a.Authenticate(context.Background()))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		a, err := NewOpenAIAdapter(adapterProvider("http://127.0.0.1:1"))
		require.NoError(t, err)

		hs := a.HealthCheck(context.Background())
		assert.Equal(t, registry.StatusUnhealthy, hs.Status)
		assert.False(t, hs.Authenticated)
	})
}

func TestNewOpenAIAdapterRequiresBase(t *testing.T) {
	p := adapterProvider("")
	_, err := NewOpenAIAdapter(p)
	assert.Error(t, err)
}

func TestFactoryCachesAdapters(t *testing.T) {
	f := NewFactory()
	p := adapterProvider("http://localhost:9999")

	a1, err := f.Get(p)
	require.NoError(t, err)
	a2, err := f.Get(p)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
}

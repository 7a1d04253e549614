// Package openai implements an llm.Provider backed by OpenAI's chat
// completions API, adapted from the teacher's plain net/http AI client.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/llm"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates OpenAI providers.
type Factory struct{}

func (f *Factory) Name() string        { return "openai" }
func (f *Factory) Description() string { return "OpenAI chat completions API" }

func (f *Factory) DetectEnvironment() (priority int, available bool) {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return 80, true
	}
	return 0, false
}

func (f *Factory) Create(cfg *llm.ProviderConfig) llm.Provider {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Provider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.openai.com/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// Provider talks to OpenAI's /chat/completions endpoint, requesting JSON
// output since every task kind the Gateway routes here expects a
// schema-shaped response.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if p.apiKey == "" {
		return nil, core.NewFrameworkError("openai.Generate", "NoProvider", core.ErrNoProvider)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	var messages []map[string]string
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body, err := json.Marshal(map[string]interface{}{
		"model":           model,
		"messages":        messages,
		"temperature":     req.Temperature,
		"max_tokens":      maxTokens,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewFrameworkError("openai.Generate", "Transient", core.ErrLLMTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, core.NewFrameworkError("openai.Generate", "RateLimited", core.ErrLLMRateLimited)
	case http.StatusOK:
		// fall through
	default:
		if resp.StatusCode >= 500 {
			return nil, core.NewFrameworkError("openai.Generate", "Transient", core.ErrLLMTransient)
		}
		return nil, &core.FrameworkError{
			Op: "openai.Generate", Kind: "ProviderError",
			Message: fmt.Sprintf("openai: status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, core.NewFrameworkError("openai.Generate", "Transient", core.ErrLLMTransient)
	}

	return &llm.Response{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// Package anthropic implements an llm.Provider backed by Anthropic's native
// Messages API, adapted from the teacher's anthropic AI client.
package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates Anthropic providers.
type Factory struct{}

func (f *Factory) Name() string        { return "anthropic" }
func (f *Factory) Description() string { return "Anthropic native Messages API" }

func (f *Factory) DetectEnvironment() (priority int, available bool) {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return 90, true
	}
	return 0, false
}

func (f *Factory) Create(cfg *llm.ProviderConfig) llm.Provider {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &Provider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Provider talks to Anthropic's /messages endpoint. Anthropic has no native
// "json_object" response mode, so the system prompt is expected to instruct
// the model to answer with JSON only; the Gateway's schema decode step is
// what actually enforces the shape.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if p.apiKey == "" {
		return nil, core.NewFrameworkError("anthropic.Generate", "NoProvider", core.ErrNoProvider)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	payload := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.SystemPrompt != "" {
		payload["system"] = req.SystemPrompt
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewFrameworkError("anthropic.Generate", "Transient", core.ErrLLMTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return nil, core.NewFrameworkError("anthropic.Generate", "RateLimited", core.ErrLLMRateLimited)
	case http.StatusOK:
		// fall through
	default:
		if resp.StatusCode >= 500 {
			return nil, core.NewFrameworkError("anthropic.Generate", "Transient", core.ErrLLMTransient)
		}
		return nil, &core.FrameworkError{
			Op: "anthropic.Generate", Kind: "ProviderError",
			Message: fmt.Sprintf("anthropic: status %d: %s", resp.StatusCode, string(raw)),
		}
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return nil, core.NewFrameworkError("anthropic.Generate", "Transient", core.ErrLLMTransient)
	}

	return &llm.Response{
		Content: parsed.Content[0].Text,
		Model:   parsed.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

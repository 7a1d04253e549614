// Package mock provides a scriptable LLM provider for development mode and
// tests. It is never auto-detected; it is used only when a caller names it
// as the provider (llm.Config.DefaultProvider or ProviderByTask = "mock").
package mock

import (
	"context"
	"sync"

	"github.com/wayfarer-ai/itinerary/llm"
)

func init() {
	llm.MustRegister(&Factory{})
}

// Factory creates mock providers.
type Factory struct{}

func (f *Factory) Name() string        { return "mock" }
func (f *Factory) Description() string { return "scriptable provider for development and tests" }

// DetectEnvironment never auto-selects mock; it must be configured
// explicitly so a forgotten env var can never silently route production
// traffic to canned responses.
func (f *Factory) DetectEnvironment() (priority int, available bool) { return 0, false }

// shared is the single mock provider instance every Gateway resolves to.
// Mock is only ever reached from development/test configuration, never a
// production code path, so a process-wide instance that tests can script
// via Shared() is simpler than threading per-gateway mock state through the
// registry's Create(cfg) contract.
var shared = NewProvider()

// Shared returns the process-wide mock provider instance for configuring
// canned responses in tests.
func Shared() *Provider { return shared }

func (f *Factory) Create(cfg *llm.ProviderConfig) llm.Provider {
	return shared
}

// Provider returns a queued sequence of canned JSON responses, one per
// call; once exhausted it repeats the last one. Tests can set Err to force
// every call to fail.
type Provider struct {
	mu        sync.Mutex
	responses []string
	index     int

	Err       error
	CallCount int
	LastPrompt string
}

// NewProvider creates a Provider with a single default response.
func NewProvider() *Provider {
	return &Provider{responses: []string{"{}"}}
}

// SetResponses replaces the queued responses and resets call bookkeeping.
func (p *Provider) SetResponses(responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = responses
	p.index = 0
	p.CallCount = 0
	p.Err = nil
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount++
	p.LastPrompt = req.Prompt

	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.responses) == 0 {
		return &llm.Response{Content: "{}"}, nil
	}
	idx := p.index
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	} else {
		p.index++
	}
	return &llm.Response{Content: p.responses[idx], Model: "mock"}, nil
}

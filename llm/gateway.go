package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/resilience"
)

// Config configures gateway-wide defaults and per-task-kind provider
// routing. A task kind with no explicit entry in ProviderByTask falls back
// to DefaultProvider, then to environment auto-detection.
type Config struct {
	ProviderByTask map[TaskKind]string
	DefaultProvider string
	APIKey          string
	Model           string
	BedrockRegion   string
	Temperature     float32
	MaxTokens       int
	RetryAttempts   int
	RetryDelay      time.Duration
	Logger          core.Logger
	Telemetry       core.Telemetry

	// CircuitBreaker configures the per-provider breaker guarding
	// Generate calls. A zero value applies resilience's defaults.
	CircuitBreaker core.CircuitBreakerConfig
}

// Gateway is the LLM Gateway described in spec.md §4.4.
type Gateway struct {
	cfg       *Config
	logger    core.Logger
	telemetry core.Telemetry

	mu        sync.Mutex
	providers map[string]Provider                  // lazily created, one instance per provider name
	breakers  map[string]*resilience.CircuitBreaker // one breaker per provider name
}

// NewGateway constructs a Gateway from cfg. cfg.Logger may be nil, in which
// case log calls are discarded.
func NewGateway(cfg *Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if aware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = aware.WithComponent("llm")
	}
	telemetry := cfg.Telemetry
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	return &Gateway{
		cfg: cfg, logger: logger, telemetry: telemetry,
		providers: make(map[string]Provider),
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}
}

// breakerFor returns (creating if needed) the circuit breaker guarding calls
// to the named provider, so one misbehaving provider's failures don't count
// against another provider configured for a different task kind.
func (g *Gateway) breakerFor(name string) *resilience.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[name]; ok {
		return cb
	}
	cb := resilience.New(core.CircuitBreakerParams{
		Name:   "llm." + name,
		Config: g.cfg.CircuitBreaker,
		Logger: g.logger,
	})
	g.breakers[name] = cb
	return cb
}

func (g *Gateway) resolveProviderName(task TaskKind) (string, error) {
	if g.cfg.ProviderByTask != nil {
		if name, ok := g.cfg.ProviderByTask[task]; ok && name != "" {
			return name, nil
		}
	}
	if g.cfg.DefaultProvider != "" {
		return g.cfg.DefaultProvider, nil
	}
	return detectDefaultProvider()
}

func (g *Gateway) providerFor(task TaskKind) (Provider, error) {
	name, err := g.resolveProviderName(task)
	if err != nil {
		return nil, core.NewFrameworkError("llm.Invoke", "NoProvider", core.ErrNoProvider)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.providers[name]; ok {
		return p, nil
	}

	factory, ok := getProviderFactory(name)
	if !ok {
		return nil, &core.FrameworkError{
			Op: "llm.Invoke", Kind: "NoProvider", ID: name,
			Message: "llm.Invoke: no provider registered under name " + name,
			Err:     core.ErrNoProvider,
		}
	}
	p := factory.Create(&ProviderConfig{
		APIKey:        g.cfg.APIKey,
		Model:         g.cfg.Model,
		BedrockRegion: g.cfg.BedrockRegion,
		Temperature:   g.cfg.Temperature,
		MaxTokens:     g.cfg.MaxTokens,
		Logger:        g.logger,
	})
	g.providers[name] = p
	return p, nil
}

// Invoke routes req to the provider configured for req.TaskKind, retries
// transient failures with exponential backoff and jitter, and decodes the
// provider's response into a value of type T. A decode failure or any
// non-transient provider error is returned immediately without retry.
func Invoke[T any](ctx context.Context, g *Gateway, req *Request) (T, error) {
	var zero T

	ctx, span := g.telemetry.StartSpan(ctx, "llm.Invoke")
	defer span.End()
	span.SetAttribute("taskKind", string(req.TaskKind))

	provider, err := g.providerFor(req.TaskKind)
	if err != nil {
		span.RecordError(err)
		return zero, err
	}
	breaker := g.breakerFor(provider.Name())

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	attempts := g.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	if g.cfg.RetryDelay > 0 {
		eb.InitialInterval = g.cfg.RetryDelay
	}

	operation := func() (T, error) {
		if !breaker.CanExecute() {
			return zero, backoff.Permanent(fmt.Errorf("llm.Invoke: %w", core.ErrCircuitBreakerOpen))
		}

		var resp *Response
		genErr := breaker.Execute(ctx, func() error {
			var err error
			resp, err = provider.Generate(ctx, req)
			return err
		})
		if genErr != nil {
			err := genErr
			if core.IsRetryable(err) {
				g.logger.WarnWithContext(ctx, "llm provider call failed, retrying", map[string]interface{}{
					"provider": provider.Name(), "taskKind": string(req.TaskKind), "error": err.Error(),
				})
				return zero, err
			}
			return zero, backoff.Permanent(err)
		}

		var out T
		dec := json.NewDecoder(strings.NewReader(resp.Content))
		if err := dec.Decode(&out); err != nil {
			return zero, backoff.Permanent(&core.FrameworkError{
				Op: "llm.Invoke", Kind: "SchemaMismatch", ID: string(req.TaskKind),
				Message: "llm.Invoke: response did not match the expected schema: " + err.Error(),
				Err:     core.ErrLLMSchemaMismatch,
			})
		}
		return out, nil
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(attempts)),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = core.NewFrameworkError("llm.Invoke", "Timeout", core.ErrLLMTimeout)
		}
		span.RecordError(err)
		return zero, err
	}
	return result, nil
}

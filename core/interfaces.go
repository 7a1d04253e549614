package core

import (
	"context"
	"sync"
	"time"
)

// Logger is the minimal structured logging interface used throughout this
// module. Implementations are field-based (map[string]interface{}) rather
// than printf-style, and the *WithContext variants pull trace/span ids out
// of context for correlation.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with component context support so a
// single base logger configuration can be scoped per package:
//
//	"orchestration"  - Agent Registry + Orchestrator
//	"change"         - Change Engine
//	"agent/<name>"   - an individual pipeline or chat-editing agent
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is optional tracing/metrics support. A nil Telemetry is never
// passed around; callers get NoOpTelemetry instead so call sites don't need
// nil checks.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// AIClient is the interface the LLM Gateway's per-provider clients
// implement (see package llm). It is declared here, in the ambient core
// package, so that resilience and telemetry wrappers can depend on it
// without importing llm.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, options *AIOptions) (*AIResponse, error)
}

// AIOptions configures a single generation call.
type AIOptions struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// AIResponse is the raw text response from an AIClient, before schema
// validation/parsing into a structured result (see llm.Gateway.Invoke).
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage reports token accounting for an AI response.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Memory is a generic TTL-capable key/value interface, implemented by
// InMemoryStore and MemoryStore. No package outside core uses it: the Event
// Bus keeps its backlog in per-subscriber channels, and the store package
// persists documents through its own versioned Gateway.
type Memory interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NoOpLogger discards everything. Used as the default when no logger is
// injected, so call sites never need a nil check.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// NoOpTelemetry discards spans and metrics.
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan discards attributes and errors.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// InMemoryStore is a simple in-memory Memory implementation, used in tests.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]string)}
}

func (m *InMemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}

func (m *InMemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *InMemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *InMemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.data[key]
	return exists, nil
}

// ============================================================================
// Global metrics registry hook, mirroring the teacher's pattern for letting
// the telemetry package register itself with core without creating an
// import cycle (telemetry -> core would be natural; core -> telemetry would
// not).
// ============================================================================

// MetricsRegistry lets the telemetry package register itself with core so
// that ProductionLogger can emit log-derived metrics once telemetry is
// wired up, without core importing telemetry.
type MetricsRegistry interface {
	Counter(name string, labels ...string)
	EmitWithContext(ctx context.Context, name string, value float64, labels ...string)
	Gauge(name string, value float64, labels ...string)
	Histogram(name string, value float64, labels ...string)
	GetBaggage(ctx context.Context) map[string]string
}

var globalMetricsRegistry MetricsRegistry

// SetMetricsRegistry allows the telemetry package to register itself.
func SetMetricsRegistry(registry MetricsRegistry) {
	globalMetricsRegistry = registry
	enableMetricsOnExistingLoggers()
}

// GetGlobalMetricsRegistry returns the global metrics registry, or nil if
// telemetry has not registered one yet.
func GetGlobalMetricsRegistry() MetricsRegistry {
	return globalMetricsRegistry
}

var createdLoggers []*ProductionLogger
var loggersMutex sync.RWMutex

func trackLogger(logger *ProductionLogger) {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()
	createdLoggers = append(createdLoggers, logger)
	if globalMetricsRegistry != nil {
		logger.EnableMetrics()
	}
}

func enableMetricsOnExistingLoggers() {
	loggersMutex.Lock()
	defer loggersMutex.Unlock()
	for _, logger := range createdLoggers {
		logger.EnableMetrics()
	}
}

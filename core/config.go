package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for a wayfarer process (the orchestrator
// daemon, a worker, or a test harness). It supports the same three-layer
// priority gomind's core.Config documents:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithServiceName("wayfarerd"),
//	    WithRedisURL("redis://localhost:6379"),
//	    WithLLMProvider("bedrock", ""),
//	)
type Config struct {
	// ServiceName identifies this process in logs and metrics.
	ServiceName string `json:"service_name" env:"WAYFARER_SERVICE_NAME" default:"wayfarerd"`

	// Store is the Document Store Gateway backend configuration.
	Store StoreConfig `json:"store"`

	// LLM is the LLM Gateway's provider configuration.
	LLM LLMConfig `json:"llm"`

	// Orchestration bounds concurrency and timeouts for the Agent
	// Orchestrator's DAG execution.
	Orchestration OrchestrationConfig `json:"orchestration"`

	// EventBus configures the per-itinerary progress event bus.
	EventBus EventBusConfig `json:"event_bus"`

	// Telemetry configuration (optional module).
	Telemetry TelemetryConfig `json:"telemetry"`

	// Resilience configuration (circuit breaker / retry).
	Resilience ResilienceConfig `json:"resilience"`

	// Logging configuration.
	Logging LoggingConfig `json:"logging"`

	// Development configuration.
	Development DevelopmentConfig `json:"development"`

	// Logger instance for configuration operations (excluded from JSON).
	logger Logger `json:"-"`
}

// StoreConfig selects and configures the Document Store Gateway backend.
type StoreConfig struct {
	Provider        string        `json:"provider" env:"WAYFARER_STORE_PROVIDER" default:"inmemory"`
	RedisURL        string        `json:"redis_url" env:"WAYFARER_STORE_REDIS_URL,REDIS_URL"`
	RevisionHistory int           `json:"revision_history" env:"WAYFARER_STORE_REVISION_HISTORY" default:"20"`
	OperationTTL    time.Duration `json:"operation_timeout" env:"WAYFARER_STORE_TIMEOUT" default:"5s"`
}

// LLMConfig selects the LLM Gateway's provider and call parameters.
type LLMConfig struct {
	Provider      string        `json:"provider" env:"WAYFARER_LLM_PROVIDER" default:"mock"`
	Model         string        `json:"model" env:"WAYFARER_LLM_MODEL" default:"gpt-4"`
	APIKey        string        `json:"api_key" env:"WAYFARER_LLM_API_KEY,OPENAI_API_KEY"`
	BedrockRegion string        `json:"bedrock_region" env:"WAYFARER_LLM_BEDROCK_REGION,AWS_REGION" default:"us-east-1"`
	Temperature   float32       `json:"temperature" env:"WAYFARER_LLM_TEMPERATURE" default:"0.7"`
	MaxTokens     int           `json:"max_tokens" env:"WAYFARER_LLM_MAX_TOKENS" default:"2000"`
	Timeout       time.Duration `json:"timeout" env:"WAYFARER_LLM_TIMEOUT" default:"30s"`
	RetryAttempts int           `json:"retry_attempts" env:"WAYFARER_LLM_RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `json:"retry_delay" env:"WAYFARER_LLM_RETRY_DELAY" default:"1s"`
}

// OrchestrationConfig bounds the Agent Orchestrator's DAG execution.
type OrchestrationConfig struct {
	MaxConcurrentAgents int           `json:"max_concurrent_agents" env:"WAYFARER_ORCH_MAX_CONCURRENT" default:"8"`
	PlanTimeout         time.Duration `json:"plan_timeout" env:"WAYFARER_ORCH_PLAN_TIMEOUT" default:"60s"`
	EditTimeout         time.Duration `json:"edit_timeout" env:"WAYFARER_ORCH_EDIT_TIMEOUT" default:"20s"`
	HistorySize         int           `json:"history_size" env:"WAYFARER_ORCH_HISTORY_SIZE" default:"100"`
	PipelineConfigPath  string        `json:"pipeline_config_path" env:"WAYFARER_ORCH_PIPELINE_CONFIG" default:"config/pipelines.yaml"`
}

// EventBusConfig bounds the per-itinerary progress event bus.
type EventBusConfig struct {
	SubscriberBacklog int  `json:"subscriber_backlog" env:"WAYFARER_EVENTBUS_BACKLOG" default:"64"`
	RedisBackedFanout bool `json:"redis_backed_fanout" env:"WAYFARER_EVENTBUS_REDIS_FANOUT" default:"false"`
}

// TelemetryConfig contains observability configuration for metrics and
// distributed tracing. This is an optional module; telemetry is only
// initialized when Enabled=true. Supports OpenTelemetry (OTLP).
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" env:"WAYFARER_TELEMETRY_ENABLED" default:"false"`
	Endpoint       string  `json:"endpoint" env:"WAYFARER_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string  `json:"service_name" env:"WAYFARER_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME"`
	MetricsEnabled bool    `json:"metrics_enabled" env:"WAYFARER_TELEMETRY_METRICS" default:"true"`
	TracingEnabled bool    `json:"tracing_enabled" env:"WAYFARER_TELEMETRY_TRACING" default:"true"`
	SamplingRate   float64 `json:"sampling_rate" env:"WAYFARER_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure       bool    `json:"insecure" env:"WAYFARER_TELEMETRY_INSECURE" default:"true"`
}

// ResilienceConfig contains fault tolerance pattern configuration shared by
// the LLM Gateway and the Document Store Gateway.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry"`
}

// RetryConfig defines retry pattern settings with exponential backoff.
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" env:"WAYFARER_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" env:"WAYFARER_RETRY_INITIAL_INTERVAL" default:"1s"`
	MaxInterval     time.Duration `json:"max_interval" env:"WAYFARER_RETRY_MAX_INTERVAL" default:"30s"`
	Multiplier      float64       `json:"multiplier" env:"WAYFARER_RETRY_MULTIPLIER" default:"2.0"`
}

// LoggingConfig contains logging configuration. Supports structured (JSON)
// and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" env:"WAYFARER_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"WAYFARER_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"WAYFARER_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" env:"WAYFARER_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.999999999Z07:00"`
}

// DevelopmentConfig contains settings for local development and testing.
// DefaultConfig (when neither WAYFARER_DEV_MODE nor KUBERNETES_SERVICE_HOST
// is set) and WithDevelopmentMode(true) set Enabled together with text
// logs, PrettyLogs and MockLLM. Enabled itself is not read anywhere else:
// setting only WAYFARER_DEV_MODE=true changes no other setting.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"WAYFARER_DEV_MODE" default:"false"`
	MockLLM      bool `json:"mock_llm" env:"WAYFARER_MOCK_LLM" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"WAYFARER_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"WAYFARER_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring Config. Options are applied
// in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults. Local
// development defaults to pretty text logging and a mock LLM provider
// unless WAYFARER_DEV_MODE or KUBERNETES_SERVICE_HOST is set.
func DefaultConfig() *Config {
	cfg := &Config{
		ServiceName: "wayfarerd",
		Store: StoreConfig{
			Provider:        "inmemory",
			RevisionHistory: 20,
			OperationTTL:    5 * time.Second,
		},
		LLM: LLMConfig{
			Provider:      "mock",
			Model:         "gpt-4",
			BedrockRegion: "us-east-1",
			Temperature:   0.7,
			MaxTokens:     2000,
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    1 * time.Second,
		},
		Orchestration: OrchestrationConfig{
			MaxConcurrentAgents: 8,
			PlanTimeout:         60 * time.Second,
			EditTimeout:         20 * time.Second,
			HistorySize:         100,
			PipelineConfigPath:  "config/pipelines.yaml",
		},
		EventBus: EventBusConfig{
			SubscriberBacklog: 64,
			RedisBackedFanout: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:        false,
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 3,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 1 * time.Second,
				MaxInterval:     30 * time.Second,
				Multiplier:      2.0,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
		Development: DevelopmentConfig{
			Enabled:      false,
			MockLLM:      false,
			DebugLogging: false,
			PrettyLogs:   false,
		},
	}

	if os.Getenv("WAYFARER_DEV_MODE") == "" && os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		cfg.Development.Enabled = true
		cfg.Development.PrettyLogs = true
		cfg.Development.MockLLM = true
		cfg.Logging.Format = "text"
		cfg.LLM.Provider = "mock"
	}

	return cfg
}

// LoadFromEnv loads configuration from environment variables and validates
// the result. Environment variables take precedence over defaults but are
// overridden by functional options.
func (c *Config) LoadFromEnv() error {
	if c.logger != nil {
		c.logger.Info("loading configuration from environment", map[string]interface{}{
			"config_source": "environment_variables",
		})
	}

	loadString(&c.ServiceName, "WAYFARER_SERVICE_NAME")

	loadString(&c.Store.Provider, "WAYFARER_STORE_PROVIDER")
	loadString(&c.Store.RedisURL, "WAYFARER_STORE_REDIS_URL", "REDIS_URL")
	loadInt(&c.Store.RevisionHistory, "WAYFARER_STORE_REVISION_HISTORY")
	loadDuration(&c.Store.OperationTTL, "WAYFARER_STORE_TIMEOUT")

	loadString(&c.LLM.Provider, "WAYFARER_LLM_PROVIDER")
	loadString(&c.LLM.Model, "WAYFARER_LLM_MODEL")
	loadString(&c.LLM.APIKey, "WAYFARER_LLM_API_KEY", "OPENAI_API_KEY")
	loadString(&c.LLM.BedrockRegion, "WAYFARER_LLM_BEDROCK_REGION", "AWS_REGION")
	loadInt(&c.LLM.MaxTokens, "WAYFARER_LLM_MAX_TOKENS")
	loadDuration(&c.LLM.Timeout, "WAYFARER_LLM_TIMEOUT")
	loadInt(&c.LLM.RetryAttempts, "WAYFARER_LLM_RETRY_ATTEMPTS")
	loadDuration(&c.LLM.RetryDelay, "WAYFARER_LLM_RETRY_DELAY")

	loadInt(&c.Orchestration.MaxConcurrentAgents, "WAYFARER_ORCH_MAX_CONCURRENT")
	loadDuration(&c.Orchestration.PlanTimeout, "WAYFARER_ORCH_PLAN_TIMEOUT")
	loadDuration(&c.Orchestration.EditTimeout, "WAYFARER_ORCH_EDIT_TIMEOUT")
	loadInt(&c.Orchestration.HistorySize, "WAYFARER_ORCH_HISTORY_SIZE")
	loadString(&c.Orchestration.PipelineConfigPath, "WAYFARER_ORCH_PIPELINE_CONFIG")

	loadInt(&c.EventBus.SubscriberBacklog, "WAYFARER_EVENTBUS_BACKLOG")
	loadBool(&c.EventBus.RedisBackedFanout, "WAYFARER_EVENTBUS_REDIS_FANOUT")

	loadBool(&c.Telemetry.Enabled, "WAYFARER_TELEMETRY_ENABLED")
	loadString(&c.Telemetry.Endpoint, "WAYFARER_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	loadString(&c.Telemetry.ServiceName, "WAYFARER_TELEMETRY_SERVICE_NAME", "OTEL_SERVICE_NAME")
	loadBool(&c.Telemetry.MetricsEnabled, "WAYFARER_TELEMETRY_METRICS")
	loadBool(&c.Telemetry.TracingEnabled, "WAYFARER_TELEMETRY_TRACING")

	loadBool(&c.Resilience.CircuitBreaker.Enabled, "WAYFARER_CB_ENABLED")
	loadInt(&c.Resilience.CircuitBreaker.Threshold, "WAYFARER_CB_THRESHOLD")
	loadDuration(&c.Resilience.CircuitBreaker.Timeout, "WAYFARER_CB_TIMEOUT")
	loadInt(&c.Resilience.CircuitBreaker.HalfOpenRequests, "WAYFARER_CB_HALF_OPEN")

	loadInt(&c.Resilience.Retry.MaxAttempts, "WAYFARER_RETRY_MAX_ATTEMPTS")
	loadDuration(&c.Resilience.Retry.InitialInterval, "WAYFARER_RETRY_INITIAL_INTERVAL")
	loadDuration(&c.Resilience.Retry.MaxInterval, "WAYFARER_RETRY_MAX_INTERVAL")

	loadString(&c.Logging.Level, "WAYFARER_LOG_LEVEL")
	loadString(&c.Logging.Format, "WAYFARER_LOG_FORMAT")
	loadString(&c.Logging.Output, "WAYFARER_LOG_OUTPUT")

	loadBool(&c.Development.Enabled, "WAYFARER_DEV_MODE")
	loadBool(&c.Development.MockLLM, "WAYFARER_MOCK_LLM")
	loadBool(&c.Development.DebugLogging, "WAYFARER_DEBUG")
	loadBool(&c.Development.PrettyLogs, "WAYFARER_PRETTY_LOGS")

	loadBool(&c.Telemetry.Insecure, "WAYFARER_TELEMETRY_INSECURE")
	loadString(&c.Logging.TimeFormat, "WAYFARER_LOG_TIME_FORMAT")
	temperature := float64(c.LLM.Temperature)
	for name, dst := range map[string]*float64{
		"WAYFARER_LLM_TEMPERATURE":         &temperature,
		"WAYFARER_RETRY_MULTIPLIER":        &c.Resilience.Retry.Multiplier,
		"WAYFARER_TELEMETRY_SAMPLING_RATE": &c.Telemetry.SamplingRate,
	} {
		if f, err := strconv.ParseFloat(os.Getenv(name), 64); err == nil {
			*dst = f
		}
	}
	c.LLM.Temperature = float32(temperature)

	return nil
}

// loadString sets *dst from the first of names that is set in the
// environment, leaving the default in place otherwise.
func loadString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}

func loadInt(dst *int, name string) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func loadBool(dst *bool, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = parseBool(v)
	}
}

func loadDuration(dst *time.Duration, name string) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// parseBool converts a string to a boolean value. Accepts "true", "1",
// "yes", "on" (case-insensitive) as true; everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Logger returns the Logger NewConfig built (or installed via WithLogger),
// so a caller wiring components from a *Config can hand the same instance
// to each of them.
func (c *Config) Logger() Logger {
	return c.logger
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "service name is required",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" && c.LLM.Provider != "bedrock" && !c.Development.MockLLM {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "LLM API key is required when a non-mock, non-bedrock provider is selected",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Store.Provider == "redis" && c.Store.RedisURL == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "redis URL is required for the redis store provider",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "telemetry endpoint is required when telemetry is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Orchestration.MaxConcurrentAgents < 1 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid max concurrent agents: %d", c.Orchestration.MaxConcurrentAgents),
			Err:     ErrInvalidConfiguration,
		}
	}

	return nil
}

// Functional options.

// WithServiceName sets the process's service name, used in logs and metrics.
func WithServiceName(name string) Option {
	return func(c *Config) error {
		c.ServiceName = name
		return nil
	}
}

// WithRedisURL configures a Redis-backed Document Store Gateway.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Store.Provider = "redis"
		c.Store.RedisURL = url
		return nil
	}
}

// WithLLMProvider selects the LLM Gateway's provider ("openai", "bedrock",
// "anthropic", or "mock").
func WithLLMProvider(provider, apiKey string) Option {
	return func(c *Config) error {
		c.LLM.Provider = provider
		c.LLM.APIKey = apiKey
		return nil
	}
}

// WithLLMModel overrides the model name passed to the LLM provider.
func WithLLMModel(model string) Option {
	return func(c *Config) error {
		c.LLM.Model = model
		return nil
	}
}

// WithTelemetry enables OpenTelemetry export to endpoint.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the minimum log level ("debug", "info", "warn", "error").
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the log format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithCircuitBreaker overrides the shared circuit breaker threshold/timeout
// used by the LLM Gateway and Document Store Gateway.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithMaxConcurrentAgents bounds the Orchestrator's per-level fan-out.
func WithMaxConcurrentAgents(n int) Option {
	return func(c *Config) error {
		c.Orchestration.MaxConcurrentAgents = n
		return nil
	}
}

// WithDevelopmentMode toggles pretty text logging and a mock LLM provider.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Logging.Format = "text"
			c.Development.PrettyLogs = true
			c.Development.MockLLM = true
		}
		return nil
	}
}

// WithLogger injects a pre-built logger instead of constructing a
// ProductionLogger from the Logging/Development config.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig builds a Config from defaults, environment variables, and the
// given options, in that precedence order, then validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, cfg.ServiceName)
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger implementation - layered observability, gomind-style.
// ============================================================================

// ProductionLogger provides structured logging with an optional metrics
// layer that activates once the telemetry package registers itself via
// SetMetricsRegistry.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		metricsEnabled: false,
	}
}

// EnableMetrics is called by the telemetry package once it registers a
// MetricsRegistry, activating log-derived metrics.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) WithComponent(component string) Logger {
	return &componentLogger{base: p, component: component}
}

// componentLogger scopes a ProductionLogger to a named component
// ("orchestration", "change", "agent/skeleton_planner", ...) without
// mutating the shared base logger.
type componentLogger struct {
	base      *ProductionLogger
	component string
}

func (c *componentLogger) withComponentField(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["component"] = c.component
	return out
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.base.Info(msg, c.withComponentField(fields))
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	c.base.Error(msg, c.withComponentField(fields))
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.base.Warn(msg, c.withComponentField(fields))
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	c.base.Debug(msg, c.withComponentField(fields))
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.InfoWithContext(ctx, msg, c.withComponentField(fields))
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.ErrorWithContext(ctx, msg, c.withComponentField(fields))
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.WarnWithContext(ctx, msg, c.withComponentField(fields))
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.base.DebugWithContext(ctx, msg, c.withComponentField(fields))
}

// logEvent is the core logging implementation shared by all levels.
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n",
			timestamp, level, p.serviceName, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, msg, fields, ctx)
	}
}

// emitFrameworkMetric mirrors every log call as a counter, restricting
// labels to a fixed low-cardinality set to avoid metric explosion.
func (p *ProductionLogger) emitFrameworkMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{
		"level", level,
		"service", p.serviceName,
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "component", "provider":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "wayfarer.log_events", 1.0, labels...)
	} else {
		emitMetric("wayfarer.log_events", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}

// Command wayfarerd wires the Document Store Gateway, LLM Gateway, Change
// Engine, Progress Event Bus, and Agent Orchestrator into a single runnable
// process and drives one Orchestrator.Execute call from its flags. It
// deliberately has no HTTP/SSE surface: spec.md §1 treats that transport as
// an external collaborator, so wayfarerd is a CLI driver, not a server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/eventbus"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/llm"
	_ "github.com/wayfarer-ai/itinerary/llm/providers/anthropic"
	_ "github.com/wayfarer-ai/itinerary/llm/providers/mock"
	_ "github.com/wayfarer-ai/itinerary/llm/providers/openai"
	"github.com/wayfarer-ai/itinerary/orchestration"
	"github.com/wayfarer-ai/itinerary/store"
	"github.com/wayfarer-ai/itinerary/summarizer"
	"github.com/wayfarer-ai/itinerary/telemetry"
)

func main() {
	var (
		itineraryPath = flag.String("itinerary", "", "path to a seed itinerary JSON file (required on first run against an in-memory store)")
		itineraryID   = flag.String("itinerary-id", "", "itinerary id to operate on (defaults to the seed file's itineraryId)")
		taskKind      = flag.String("task", string(orchestration.TaskInitialGeneration), "orchestration.TaskTag to run: initial_generation or chat_edit")
		message       = flag.String("message", "", "chat utterance, required when -task=chat_edit")
	)
	flag.Parse()

	cfg, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wayfarerd: config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	ctx := context.Background()

	telem, shutdown := buildTelemetry(cfg)
	defer shutdown(ctx)

	storeGW, err := buildStore(cfg)
	if err != nil {
		logger.Error("wayfarerd: store init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	events := buildEventBus(cfg, logger)

	llmGateway := llm.NewGateway(&llm.Config{
		DefaultProvider: resolveLLMProvider(cfg),
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		BedrockRegion:   cfg.LLM.BedrockRegion,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		RetryAttempts:   cfg.LLM.RetryAttempts,
		RetryDelay:      cfg.LLM.RetryDelay,
		Logger:          logger,
		Telemetry:       telem,
		CircuitBreaker:  cfg.Resilience.CircuitBreaker,
	})

	changeEngine := change.New(storeGW,
		change.WithLogger(logger),
		change.WithEventSink(events),
		change.WithTelemetry(telem),
	)

	summ := summarizer.New(summarizer.WithLogger(logger))

	registry := orchestration.BuildDefaultRegistry()
	pipelineCfg, err := orchestration.LoadPipelineConfig(cfg.Orchestration.PipelineConfigPath)
	if err != nil {
		logger.Warn("wayfarerd: pipeline config not applied", map[string]interface{}{"error": err.Error()})
	} else {
		pipelineCfg.Apply(registry)
	}

	orch := orchestration.NewOrchestrator(orchestration.OrchestratorConfig{
		Registry:        registry,
		Change:          changeEngine,
		Store:           storeGW,
		LLM:             llmGateway,
		Summarizer:      summ,
		Events:          events,
		Logger:          logger,
		Telemetry:       telem,
		MaxConcurrency:  cfg.Orchestration.MaxConcurrentAgents,
		Deadline:        cfg.Orchestration.PlanTimeout,
		MaxVersionRetry: 3,
	})

	id, err := seedItinerary(ctx, storeGW, *itineraryPath, *itineraryID)
	if err != nil {
		logger.Error("wayfarerd: seeding itinerary failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	payload := map[string]interface{}{}
	if *message != "" {
		payload["message"] = *message
	}

	result, err := orch.Execute(ctx, id, orchestration.TaskTag(*taskKind), payload)
	if err != nil {
		logger.Error("wayfarerd: orchestration run failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

func resolveLLMProvider(cfg *core.Config) string {
	if cfg.Development.MockLLM {
		return "mock"
	}
	return cfg.LLM.Provider
}

func buildTelemetry(cfg *core.Config) (core.Telemetry, func(context.Context)) {
	if !cfg.Telemetry.Enabled {
		return &core.NoOpTelemetry{}, func(context.Context) {}
	}
	provider, err := telemetry.NewProvider(cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		cfg.Logger().Warn("wayfarerd: telemetry disabled", map[string]interface{}{"error": err.Error()})
		return &core.NoOpTelemetry{}, func(context.Context) {}
	}
	return provider, func(ctx context.Context) { _ = provider.Shutdown(ctx) }
}

func buildStore(cfg *core.Config) (store.Gateway, error) {
	if cfg.Store.Provider != "redis" {
		return store.NewInMemoryGateway(cfg.Store.RevisionHistory), nil
	}
	client, err := store.NewRedisClient(cfg.Store.RedisURL, cfg.Store.OperationTTL)
	if err != nil {
		return nil, fmt.Errorf("wayfarerd: redis store: %w", err)
	}
	return store.NewRedisGateway(client, cfg.ServiceName, cfg.Store.RevisionHistory), nil
}

func buildEventBus(cfg *core.Config, logger core.Logger) change.EventSink {
	if !cfg.EventBus.RedisBackedFanout {
		return eventbus.New(eventbus.WithBacklog(cfg.EventBus.SubscriberBacklog), eventbus.WithLogger(logger))
	}
	client, err := store.NewRedisClient(cfg.Store.RedisURL, 5*time.Second)
	if err != nil {
		logger.Warn("wayfarerd: redis event fanout disabled, falling back to in-process bus", map[string]interface{}{"error": err.Error()})
		return eventbus.New(eventbus.WithBacklog(cfg.EventBus.SubscriberBacklog), eventbus.WithLogger(logger))
	}
	return eventbus.NewRedisBus(client, cfg.ServiceName, eventbus.WithLogger(logger))
}

// seedItinerary loads itineraryPath (if given) and Puts it into gw as
// version 0, returning the itinerary id to operate on. Without a seed
// file, it assumes id already names a document the store backend already
// holds (the normal case against a Redis-backed store across runs).
func seedItinerary(ctx context.Context, gw store.Gateway, path, id string) (string, error) {
	if path == "" {
		if id == "" {
			return "", fmt.Errorf("one of -itinerary or -itinerary-id is required")
		}
		return id, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading seed itinerary: %w", err)
	}
	var doc itinerary.Itinerary
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing seed itinerary: %w", err)
	}
	if id != "" {
		doc.ItineraryID = id
	}
	doc.Version = 0
	doc.UpdatedAt = itinerary.NowMillis()

	if err := gw.Put(ctx, doc.ItineraryID, &doc, 0); err != nil {
		return "", fmt.Errorf("seeding itinerary %s: %w", doc.ItineraryID, err)
	}
	return doc.ItineraryID, nil
}

package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wayfarer-ai/itinerary/core"
)

// ProviderConfig carries everything a ProviderFactory needs to construct a
// Provider for one configured backend.
type ProviderConfig struct {
	APIKey        string
	Model         string
	BedrockRegion string
	Temperature   float32
	MaxTokens     int
	Logger        core.Logger
	Extra         map[string]string
}

// ProviderFactory is implemented by each provider package and self-registers
// from an init() function, mirroring the teacher's AI provider registry.
type ProviderFactory interface {
	Create(cfg *ProviderConfig) Provider
	// DetectEnvironment reports whether this provider's credentials are
	// present in the environment, and a priority to break ties when more
	// than one provider is available and none was explicitly configured.
	DetectEnvironment() (priority int, available bool)
	Name() string
	Description() string
}

type providerRegistry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

var registry = &providerRegistry{factories: make(map[string]ProviderFactory)}

// Register adds a provider factory under its own name. Returns an error on
// a duplicate name rather than silently overwriting.
func Register(factory ProviderFactory) error {
	if factory == nil {
		return fmt.Errorf("llm: factory cannot be nil")
	}
	name := factory.Name()
	if name == "" {
		return fmt.Errorf("llm: factory.Name() cannot be empty")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.factories[name]; exists {
		return fmt.Errorf("llm: provider %q already registered", name)
	}
	registry.factories[name] = factory
	return nil
}

// MustRegister registers a provider and panics on error. Provider packages
// call this from init(), where there is no sane way to propagate an error.
func MustRegister(factory ProviderFactory) {
	if err := Register(factory); err != nil {
		panic(err)
	}
}

func getProviderFactory(name string) (ProviderFactory, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	f, ok := registry.factories[name]
	return f, ok
}

// ListProviders returns the names of every registered provider, sorted.
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderInfo describes a registered provider for diagnostics.
type ProviderInfo struct {
	Name        string
	Description string
	Available   bool
	Priority    int
}

// GetProviderInfo reports availability and priority for every registered
// provider, highest priority first.
func GetProviderInfo() []ProviderInfo {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	info := make([]ProviderInfo, 0, len(registry.factories))
	for name, f := range registry.factories {
		priority, available := f.DetectEnvironment()
		info = append(info, ProviderInfo{Name: name, Description: f.Description(), Available: available, Priority: priority})
	}
	sort.Slice(info, func(i, j int) bool {
		if info[i].Priority != info[j].Priority {
			return info[i].Priority > info[j].Priority
		}
		return info[i].Name < info[j].Name
	})
	return info
}

// detectDefaultProvider picks the highest-priority available provider when
// none was explicitly configured for a task kind.
func detectDefaultProvider() (string, error) {
	info := GetProviderInfo()
	for _, i := range info {
		if i.Available {
			return i.Name, nil
		}
	}
	return "", fmt.Errorf("llm: no provider available in environment, checked %d registered providers", len(info))
}

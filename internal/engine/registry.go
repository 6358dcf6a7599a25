package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/localscribe/localscribe/internal/pipeline"
)

// Factory constructs an engine from a validated config.
type Factory func(cfg Config, runner CommandRunner) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a factory under an engine ID. Called from adapter init
// functions; duplicate registration is a programming error.
func Register(id string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("engine %q registered twice", id))
	}
	registry[id] = factory
}

// New resolves the adapter named by cfg.ID and constructs it. The ID is
// resolved once here, at startup, never per call.
func New(cfg Config, runner CommandRunner) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := registry[cfg.ID]
	registryMu.RUnlock()
	if !ok {
		return nil, pipeline.NewValidationError(
			fmt.Sprintf("unknown engine %q", cfg.ID)).
			WithHint("available engines: " + strings.Join(IDs(), ", "))
	}
	return factory(cfg, runner)
}

// IDs lists registered engine IDs, sorted.
func IDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

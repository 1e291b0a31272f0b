package providers

import (
	"fmt"
	"sort"

	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
	"github.com/pantryloop/pantryloop-backend/pkg/logger"
	"github.com/pantryloop/pantryloop-backend/pkg/telemetry"
)

// Registry owns the closed adapter set and the resolved fleet configuration.
// Both are fixed at construction; a routing decision reads a consistent view
// for its whole lifetime.
type Registry struct {
	adapters map[enums.ProviderID]Adapter
	configs  map[enums.ProviderID]ProviderConfig
	ordered  []ProviderConfig
}

func NewRegistry(cfg config.ProvidersConfig, logg *logger.Logger, emitter *telemetry.Emitter) (*Registry, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}

	deps := adapterDeps{
		upstream: newUpstreamClient(logg),
		logg:     logg,
		emitter:  emitter,
	}

	adapters := map[enums.ProviderID]Adapter{
		enums.ProviderMealMe:    newMealMeAdapter(deps),
		enums.ProviderInstacart: newInstacartAdapter(deps),
		enums.ProviderKroger:    newKrogerAdapter(deps),
		enums.ProviderWalmart:   newWalmartAdapter(deps),
	}

	resolved := ConfigsFromEnv(cfg)
	configs := make(map[enums.ProviderID]ProviderConfig, len(resolved))
	for _, pc := range resolved {
		if _, known := adapters[pc.ID]; !known {
			return nil, fmt.Errorf("no adapter registered for provider %s", pc.ID)
		}
		configs[pc.ID] = pc
	}

	ordered := make([]ProviderConfig, len(resolved))
	copy(ordered, resolved)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	return &Registry{
		adapters: adapters,
		configs:  configs,
		ordered:  ordered,
	}, nil
}

// Adapter looks up the integration for a provider id.
func (r *Registry) Adapter(id enums.ProviderID) (Adapter, bool) {
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// Config returns the resolved configuration for a provider id.
func (r *Registry) Config(id enums.ProviderID) (ProviderConfig, bool) {
	cfg, ok := r.configs[id]
	return cfg, ok
}

// EnabledSorted returns the enabled provider configs ordered by priority
// descending, provider id ascending. This order seeds the scoring tie-break.
func (r *Registry) EnabledSorted() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(r.ordered))
	for _, cfg := range r.ordered {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

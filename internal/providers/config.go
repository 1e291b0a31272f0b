package providers

import (
	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// directPreferenceBoost is added to a direct provider's priority when the
// operator flags it as preferred over the aggregators.
const directPreferenceBoost = 10

// providerDefaults is a provider's built-in personality. Environment
// settings override field by field; zero values keep the default.
type providerDefaults struct {
	name           string
	priority       int
	commissionRate float64
	timeoutMs      int
	maxRetries     int
	baseURL        string
}

var defaultsByID = map[enums.ProviderID]providerDefaults{
	enums.ProviderMealMe: {
		name:           "MealMe",
		priority:       5,
		commissionRate: 0.12,
		timeoutMs:      3000,
		maxRetries:     2,
		baseURL:        "https://api.mealme.ai",
	},
	enums.ProviderInstacart: {
		name:           "Instacart",
		priority:       6,
		commissionRate: 0.15,
		timeoutMs:      2500,
		maxRetries:     2,
		baseURL:        "https://connect.instacart.com",
	},
	enums.ProviderKroger: {
		name:           "Kroger",
		priority:       4,
		commissionRate: 0.08,
		timeoutMs:      4000,
		maxRetries:     1,
		baseURL:        "https://api.kroger.com",
	},
	enums.ProviderWalmart: {
		name:           "Walmart",
		priority:       3,
		commissionRate: 0.05,
		timeoutMs:      5000,
		maxRetries:     1,
		baseURL:        "https://developer.api.walmart.com",
	},
}

// ConfigsFromEnv resolves the read-only provider fleet from the environment
// surface. The result is computed once at process start; routing decisions
// see a consistent snapshot for their whole lifetime.
func ConfigsFromEnv(cfg config.ProvidersConfig) []ProviderConfig {
	mode := resolveMode(cfg)

	out := make([]ProviderConfig, 0, len(enums.ProviderIDs()))
	for _, id := range enums.ProviderIDs() {
		defaults := defaultsByID[id]
		settings := settingsFor(cfg, id)

		resolved := ProviderConfig{
			ID:             id,
			Name:           defaults.name,
			Enabled:        enabledFor(cfg, id),
			Priority:       defaults.priority,
			CommissionRate: defaults.commissionRate,
			Regions:        settings.Regions,
			TimeoutMs:      defaults.timeoutMs,
			MaxRetries:     defaults.maxRetries,
			Mode:           mode,
			BaseURL:        defaults.baseURL,
			APIKey:         settings.APIKey,
		}

		if settings.Priority > 0 {
			resolved.Priority = settings.Priority
		}
		if settings.CommissionRate > 0 {
			resolved.CommissionRate = settings.CommissionRate
		}
		if settings.TimeoutMs > 0 {
			resolved.TimeoutMs = settings.TimeoutMs
		}
		if settings.MaxRetries >= 0 {
			resolved.MaxRetries = settings.MaxRetries
		}
		if settings.BaseURL != "" {
			resolved.BaseURL = settings.BaseURL
		}

		switch id {
		case enums.ProviderKroger:
			if cfg.PreferDirectKroger {
				resolved.Priority += directPreferenceBoost
			}
		case enums.ProviderWalmart:
			if cfg.PreferDirectWalmart {
				resolved.Priority += directPreferenceBoost
			}
		}

		out = append(out, resolved)
	}
	return out
}

func resolveMode(cfg config.ProvidersConfig) enums.ProviderMode {
	switch {
	case cfg.MockMode:
		return enums.ProviderModeMock
	case cfg.MockFallback:
		return enums.ProviderModeRealWithFallback
	default:
		return enums.ProviderModeReal
	}
}

func enabledFor(cfg config.ProvidersConfig, id enums.ProviderID) bool {
	switch id {
	case enums.ProviderMealMe:
		return cfg.EnableMealMe
	case enums.ProviderInstacart:
		return cfg.EnableInstacart
	case enums.ProviderKroger:
		return cfg.EnableKroger
	case enums.ProviderWalmart:
		return cfg.EnableWalmart
	default:
		return false
	}
}

func settingsFor(cfg config.ProvidersConfig, id enums.ProviderID) config.ProviderSettings {
	switch id {
	case enums.ProviderMealMe:
		return cfg.MealMe
	case enums.ProviderInstacart:
		return cfg.Instacart
	case enums.ProviderKroger:
		return cfg.Kroger
	case enums.ProviderWalmart:
		return cfg.Walmart
	default:
		return config.ProviderSettings{}
	}
}

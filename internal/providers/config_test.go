package providers

import (
	"testing"

	"github.com/pantryloop/pantryloop-backend/pkg/config"
	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// baseProvidersConfig mirrors the envconfig defaults: everything enabled,
// fallback on, per-provider overrides untouched.
func baseProvidersConfig() config.ProvidersConfig {
	unset := config.ProviderSettings{MaxRetries: -1}
	return config.ProvidersConfig{
		MockFallback:    true,
		EnableMealMe:    true,
		EnableInstacart: true,
		EnableKroger:    true,
		EnableWalmart:   true,
		MealMe:          unset,
		Instacart:       unset,
		Kroger:          unset,
		Walmart:         unset,
	}
}

func configByID(t *testing.T, configs []ProviderConfig, id enums.ProviderID) ProviderConfig {
	t.Helper()
	for _, cfg := range configs {
		if cfg.ID == id {
			return cfg
		}
	}
	t.Fatalf("provider %s not resolved", id)
	return ProviderConfig{}
}

func TestConfigsFromEnvDefaults(t *testing.T) {
	configs := ConfigsFromEnv(baseProvidersConfig())
	if len(configs) != len(enums.ProviderIDs()) {
		t.Fatalf("expected %d providers, got %d", len(enums.ProviderIDs()), len(configs))
	}

	for _, cfg := range configs {
		defaults := defaultsByID[cfg.ID]
		if !cfg.Enabled {
			t.Fatalf("%s expected enabled", cfg.ID)
		}
		if cfg.Name != defaults.name {
			t.Fatalf("%s expected name %s, got %s", cfg.ID, defaults.name, cfg.Name)
		}
		if cfg.Priority != defaults.priority {
			t.Fatalf("%s expected priority %d, got %d", cfg.ID, defaults.priority, cfg.Priority)
		}
		if cfg.CommissionRate != defaults.commissionRate {
			t.Fatalf("%s expected commission %v, got %v", cfg.ID, defaults.commissionRate, cfg.CommissionRate)
		}
		if cfg.TimeoutMs != defaults.timeoutMs {
			t.Fatalf("%s expected timeout %d, got %d", cfg.ID, defaults.timeoutMs, cfg.TimeoutMs)
		}
		if cfg.MaxRetries != defaults.maxRetries {
			t.Fatalf("%s expected max retries %d, got %d", cfg.ID, defaults.maxRetries, cfg.MaxRetries)
		}
		if cfg.BaseURL != defaults.baseURL {
			t.Fatalf("%s expected base url %s, got %s", cfg.ID, defaults.baseURL, cfg.BaseURL)
		}
		if cfg.Mode != enums.ProviderModeRealWithFallback {
			t.Fatalf("%s expected fallback mode, got %s", cfg.ID, cfg.Mode)
		}
	}
}

func TestConfigsFromEnvOverrides(t *testing.T) {
	env := baseProvidersConfig()
	env.Kroger = config.ProviderSettings{
		BaseURL:        "https://kroger.sandbox.example",
		APIKey:         "kr-sandbox",
		Priority:       9,
		CommissionRate: 0.11,
		TimeoutMs:      1500,
		MaxRetries:     0,
		Regions:        []string{"OH", "TX"},
	}

	kroger := configByID(t, ConfigsFromEnv(env), enums.ProviderKroger)
	if kroger.BaseURL != "https://kroger.sandbox.example" {
		t.Fatalf("expected base url override, got %s", kroger.BaseURL)
	}
	if kroger.APIKey != "kr-sandbox" {
		t.Fatal("expected api key passthrough")
	}
	if kroger.Priority != 9 {
		t.Fatalf("expected priority 9, got %d", kroger.Priority)
	}
	if kroger.CommissionRate != 0.11 {
		t.Fatalf("expected commission 0.11, got %v", kroger.CommissionRate)
	}
	if kroger.TimeoutMs != 1500 {
		t.Fatalf("expected timeout 1500, got %d", kroger.TimeoutMs)
	}
	// Explicit zero disables retries; only the -1 sentinel keeps the default.
	if kroger.MaxRetries != 0 {
		t.Fatalf("expected max retries 0, got %d", kroger.MaxRetries)
	}
	if len(kroger.Regions) != 2 || kroger.Regions[0] != "OH" {
		t.Fatalf("expected regions passthrough, got %v", kroger.Regions)
	}

	// Other providers keep their defaults.
	mealme := configByID(t, ConfigsFromEnv(env), enums.ProviderMealMe)
	if mealme.TimeoutMs != defaultsByID[enums.ProviderMealMe].timeoutMs {
		t.Fatalf("mealme timeout should be untouched, got %d", mealme.TimeoutMs)
	}
}

func TestConfigsFromEnvDirectPreferenceBoost(t *testing.T) {
	env := baseProvidersConfig()
	env.PreferDirectKroger = true
	env.PreferDirectWalmart = true

	configs := ConfigsFromEnv(env)
	kroger := configByID(t, configs, enums.ProviderKroger)
	walmart := configByID(t, configs, enums.ProviderWalmart)
	instacart := configByID(t, configs, enums.ProviderInstacart)

	if kroger.Priority != defaultsByID[enums.ProviderKroger].priority+directPreferenceBoost {
		t.Fatalf("expected boosted kroger priority, got %d", kroger.Priority)
	}
	if walmart.Priority != defaultsByID[enums.ProviderWalmart].priority+directPreferenceBoost {
		t.Fatalf("expected boosted walmart priority, got %d", walmart.Priority)
	}
	if kroger.Priority <= instacart.Priority {
		t.Fatal("boosted direct provider should outrank the aggregators")
	}
}

func TestConfigsFromEnvDisabled(t *testing.T) {
	env := baseProvidersConfig()
	env.EnableWalmart = false

	walmart := configByID(t, ConfigsFromEnv(env), enums.ProviderWalmart)
	if walmart.Enabled {
		t.Fatal("expected walmart disabled")
	}
}

func TestResolveModePrecedence(t *testing.T) {
	env := baseProvidersConfig()

	env.MockMode = true
	env.MockFallback = true
	if mode := resolveMode(env); mode != enums.ProviderModeMock {
		t.Fatalf("mock mode must win, got %s", mode)
	}

	env.MockMode = false
	env.MockFallback = true
	if mode := resolveMode(env); mode != enums.ProviderModeRealWithFallback {
		t.Fatalf("expected fallback mode, got %s", mode)
	}

	env.MockFallback = false
	if mode := resolveMode(env); mode != enums.ProviderModeReal {
		t.Fatalf("expected real mode, got %s", mode)
	}
}

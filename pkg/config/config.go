package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Token        TokenConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Providers    ProvidersConfig
	Router       RouterConfig
	Tuning       TuningConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PANTRYLOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"PANTRYLOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PANTRYLOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PANTRYLOOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PANTRYLOOP_DB_DSN"`
	Driver string `envconfig:"PANTRYLOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PANTRYLOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"PANTRYLOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PANTRYLOOP_DB_USER"`
	LegacyPassword string `envconfig:"PANTRYLOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"PANTRYLOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"PANTRYLOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PANTRYLOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PANTRYLOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PANTRYLOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PANTRYLOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PANTRYLOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PANTRYLOOP_REDIS_ADDR"`
	Password     string        `envconfig:"PANTRYLOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PANTRYLOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PANTRYLOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PANTRYLOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PANTRYLOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PANTRYLOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PANTRYLOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// TokenConfig signs the confirmation token returned with every routing
// decision so the checkout collaborator can prove the quote it confirms is
// the quote that was selected.
type TokenConfig struct {
	Secret     string `envconfig:"PANTRYLOOP_TOKEN_SECRET" required:"true"`
	Issuer     string `envconfig:"PANTRYLOOP_TOKEN_ISSUER" default:"pantryloop-router"`
	TTLMinutes int    `envconfig:"PANTRYLOOP_TOKEN_TTL_MINUTES" default:"30"`
}

func (t TokenConfig) TTL() time.Duration {
	if t.TTLMinutes <= 0 {
		return 0
	}
	return time.Duration(t.TTLMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PANTRYLOOP_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PANTRYLOOP_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PANTRYLOOP_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PANTRYLOOP_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OutcomesSubscription string        `envconfig:"PANTRYLOOP_PUBSUB_OUTCOMES_SUBSCRIPTION" required:"true"`
	IdempotencyTTL       time.Duration `envconfig:"PANTRYLOOP_PUBSUB_IDEMPOTENCY_TTL" default:"720h"`
}

type BigQueryConfig struct {
	Enabled           bool   `envconfig:"PANTRYLOOP_BIGQUERY_ENABLED" default:"false"`
	Dataset           string `envconfig:"PANTRYLOOP_BIGQUERY_DATASET" default:"pantryloop"`
	OutcomeFactsTable string `envconfig:"PANTRYLOOP_BIGQUERY_OUTCOME_FACTS_TABLE" default:"outcome_facts"`
}

// ProvidersConfig is the raw environment surface for the provider fleet.
// Derivation into per-decision provider configs (priority boosts, mock mode
// resolution) happens in internal/providers.
type ProvidersConfig struct {
	MockMode     bool `envconfig:"PANTRYLOOP_PROVIDER_MOCK_MODE" default:"false"`
	MockFallback bool `envconfig:"PANTRYLOOP_PROVIDER_MOCK_FALLBACK" default:"true"`

	EnableMealMe    bool `envconfig:"PANTRYLOOP_ENABLE_MEALME" default:"true"`
	EnableInstacart bool `envconfig:"PANTRYLOOP_ENABLE_INSTACART" default:"true"`
	EnableKroger    bool `envconfig:"PANTRYLOOP_ENABLE_KROGER" default:"true"`
	EnableWalmart   bool `envconfig:"PANTRYLOOP_ENABLE_WALMART" default:"true"`

	PreferDirectKroger  bool `envconfig:"PANTRYLOOP_PREFER_DIRECT_KROGER" default:"false"`
	PreferDirectWalmart bool `envconfig:"PANTRYLOOP_PREFER_DIRECT_WALMART" default:"false"`

	// Nested knobs resolve as PANTRYLOOP_MEALME_BASE_URL and so on.
	MealMe    ProviderSettings
	Instacart ProviderSettings
	Kroger    ProviderSettings
	Walmart   ProviderSettings
}

// ProviderSettings carries the override knobs shared by every provider.
// Zero values mean "use the provider's built-in default", applied in
// internal/providers.
type ProviderSettings struct {
	BaseURL        string   `split_words:"true"`
	APIKey         string   `split_words:"true"`
	Priority       int      `split_words:"true"`
	CommissionRate float64  `split_words:"true"`
	TimeoutMs      int      `split_words:"true"`
	MaxRetries     int      `split_words:"true" default:"-1"`
	Regions        []string `split_words:"true"`
}

type RouterConfig struct {
	DecisionBufferMs       int           `envconfig:"PANTRYLOOP_ROUTER_DECISION_BUFFER_MS" default:"500"`
	WeightsRefreshInterval time.Duration `envconfig:"PANTRYLOOP_ROUTER_WEIGHTS_REFRESH" default:"60s"`
	MetricsRefreshInterval time.Duration `envconfig:"PANTRYLOOP_ROUTER_METRICS_REFRESH" default:"120s"`
}

type TuningConfig struct {
	MaxStepPerCycle float64       `envconfig:"PANTRYLOOP_TUNING_MAX_STEP" default:"0.05"`
	MinOutcomes     int           `envconfig:"PANTRYLOOP_TUNING_MIN_OUTCOMES" default:"10"`
	WindowDays      int           `envconfig:"PANTRYLOOP_TUNING_WINDOW_DAYS" default:"14"`
	RollupInterval  time.Duration `envconfig:"PANTRYLOOP_TUNING_ROLLUP_INTERVAL" default:"24h"`
	AdjustInterval  time.Duration `envconfig:"PANTRYLOOP_TUNING_ADJUST_INTERVAL" default:"24h"`
	LockTTL         time.Duration `envconfig:"PANTRYLOOP_TUNING_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

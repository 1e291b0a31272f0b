package config

// EnvPrefix namespaces every environment variable this process reads.
const EnvPrefix = "PANTRYLOOP"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (DSN assembly,
// error messages, tests).
const (
	EnvAppEnv = "PANTRYLOOP_APP_ENV"
	EnvPort   = "PANTRYLOOP_APP_PORT"

	EnvDBDSN  = "PANTRYLOOP_DB_DSN"
	EnvDBHost = "PANTRYLOOP_DB_HOST"
	EnvDBUser = "PANTRYLOOP_DB_USER"
	EnvDBName = "PANTRYLOOP_DB_NAME"

	EnvRedisURL = "PANTRYLOOP_REDIS_URL"

	EnvTokenSecret = "PANTRYLOOP_TOKEN_SECRET"

	EnvGCPProjectID = "PANTRYLOOP_GCP_PROJECT_ID"

	EnvPubSubOutcomesSub = "PANTRYLOOP_PUBSUB_OUTCOMES_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

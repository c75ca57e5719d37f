package config

const (
	EnvPrefix = "HEALTHOASIS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DoctorFallbackHolding = "holding"
	DoctorFallbackReject  = "reject"
)

const (
	EnvAppEnv   = "HEALTHOASIS_APP_ENV"
	EnvPort     = "HEALTHOASIS_APP_PORT"
	EnvLogLevel = "HEALTHOASIS_LOG_LEVEL"

	EnvDBDSN  = "HEALTHOASIS_DB_DSN"
	EnvDBHost = "HEALTHOASIS_DB_HOST"
	EnvDBUser = "HEALTHOASIS_DB_USER"
	EnvDBName = "HEALTHOASIS_DB_NAME"

	EnvRedisURL  = "HEALTHOASIS_REDIS_URL"
	EnvJWTSecret = "HEALTHOASIS_JWT_SECRET"
	EnvUseSQLite = "HEALTHOASIS_USE_SQLITE"

	EnvCORSAllowedOrigins = "HEALTHOASIS_CORS_ALLOWED_ORIGINS"

	EnvCommissionRate        = "HEALTHOASIS_COMMISSION_RATE"
	EnvAdminAccountKey       = "HEALTHOASIS_ADMIN_ACCOUNT_KEY"
	EnvVideoCallFee          = "HEALTHOASIS_VIDEO_CALL_FEE"
	EnvDoctorFallbackPolicy  = "HEALTHOASIS_DOCTOR_FALLBACK_POLICY"
	EnvDoctorFallbackAccount = "HEALTHOASIS_DOCTOR_FALLBACK_ACCOUNT"

	EnvFXFallbackRate = "HEALTHOASIS_FX_FALLBACK_RATE"
	EnvFXTimeout      = "HEALTHOASIS_FX_TIMEOUT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

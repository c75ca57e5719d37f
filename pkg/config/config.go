package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
	Stripe       StripeConfig
	Wallet       WalletConfig
	FX           FXConfig
	Webhook      WebhookConfig
	Admin        AdminConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	if err := cfg.Wallet.validate(); err != nil {
		return nil, err
	}
	if err := cfg.FX.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HEALTHOASIS_APP_ENV" required:"true"`
	Port         string `envconfig:"HEALTHOASIS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HEALTHOASIS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HEALTHOASIS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"HEALTHOASIS_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HEALTHOASIS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"HEALTHOASIS_DB_DSN"`
	Driver string `envconfig:"HEALTHOASIS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HEALTHOASIS_DB_HOST"`
	LegacyPort     int    `envconfig:"HEALTHOASIS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HEALTHOASIS_DB_USER"`
	LegacyPassword string `envconfig:"HEALTHOASIS_DB_PASSWORD"`
	LegacyName     string `envconfig:"HEALTHOASIS_DB_NAME"`
	LegacySSLMode  string `envconfig:"HEALTHOASIS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HEALTHOASIS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HEALTHOASIS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HEALTHOASIS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HEALTHOASIS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"HEALTHOASIS_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HEALTHOASIS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HEALTHOASIS_REDIS_ADDR"`
	Password     string        `envconfig:"HEALTHOASIS_REDIS_PASSWORD"`
	DB           int           `envconfig:"HEALTHOASIS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HEALTHOASIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HEALTHOASIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HEALTHOASIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HEALTHOASIS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HEALTHOASIS_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"HEALTHOASIS_REDIS_KEY_PREFIX" default:"ho"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HEALTHOASIS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HEALTHOASIS_JWT_ISSUER" default:"healthoasis"`
	ExpirationMinutes int    `envconfig:"HEALTHOASIS_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// TTL returns the configured token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"HEALTHOASIS_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"HEALTHOASIS_SQLITE_PATH" default:"healthoasis.db"`
	AutoMigrate bool   `envconfig:"HEALTHOASIS_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"HEALTHOASIS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type StripeConfig struct {
	APIKey         string `envconfig:"HEALTHOASIS_STRIPE_API_KEY"`
	Secret         string `envconfig:"HEALTHOASIS_STRIPE_SECRET"`
	Env            string `envconfig:"HEALTHOASIS_STRIPE_ENV" default:"test"`
	PublishableKey string `envconfig:"HEALTHOASIS_STRIPE_PUBLISHABLE_KEY"`
	ClientURL      string `envconfig:"HEALTHOASIS_CLIENT_URL" default:"http://localhost:3000"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// WalletConfig carries the settlement knobs shared by every money flow.
type WalletConfig struct {
	CommissionRate        decimal.Decimal `envconfig:"HEALTHOASIS_COMMISSION_RATE" default:"0.30"`
	AdminAccountKey       string          `envconfig:"HEALTHOASIS_ADMIN_ACCOUNT_KEY" default:"1"`
	NativeCurrency        string          `envconfig:"HEALTHOASIS_NATIVE_CURRENCY" default:"INR"`
	VideoCallFee          decimal.Decimal `envconfig:"HEALTHOASIS_VIDEO_CALL_FEE" default:"500"`
	DoctorFallbackPolicy  string          `envconfig:"HEALTHOASIS_DOCTOR_FALLBACK_POLICY" default:"holding"`
	DoctorFallbackAccount string          `envconfig:"HEALTHOASIS_DOCTOR_FALLBACK_ACCOUNT" default:"unassigned"`
}

func (w WalletConfig) validate() error {
	if !w.CommissionRate.IsPositive() || !w.CommissionRate.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be above 0 and below 1", EnvCommissionRate)
	}
	if strings.TrimSpace(w.AdminAccountKey) == "" {
		return fmt.Errorf("%s is required", EnvAdminAccountKey)
	}
	if !w.VideoCallFee.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvVideoCallFee)
	}
	switch strings.ToLower(strings.TrimSpace(w.DoctorFallbackPolicy)) {
	case DoctorFallbackHolding:
		if strings.TrimSpace(w.DoctorFallbackAccount) == "" {
			return fmt.Errorf("%s is required when the fallback policy is %q", EnvDoctorFallbackAccount, DoctorFallbackHolding)
		}
	case DoctorFallbackReject:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDoctorFallbackPolicy, DoctorFallbackHolding, DoctorFallbackReject)
	}
	return nil
}

// FXConfig drives the USD->INR conversion used by top-ups and webhooks.
type FXConfig struct {
	RateURL      string          `envconfig:"HEALTHOASIS_FX_RATE_URL" default:"https://api.exchangerate-api.com/v4/latest/USD"`
	Timeout      time.Duration   `envconfig:"HEALTHOASIS_FX_TIMEOUT" default:"3s"`
	FallbackRate decimal.Decimal `envconfig:"HEALTHOASIS_FX_FALLBACK_RATE" default:"88.6"`
	CacheTTL     time.Duration   `envconfig:"HEALTHOASIS_FX_CACHE_TTL" default:"15m"`
	MaxStaleness time.Duration   `envconfig:"HEALTHOASIS_FX_MAX_STALENESS" default:"6h"`
}

func (f FXConfig) validate() error {
	if !f.FallbackRate.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvFXFallbackRate)
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvFXTimeout)
	}
	return nil
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"HEALTHOASIS_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	MaxAttempts    int           `envconfig:"HEALTHOASIS_WEBHOOK_MAX_ATTEMPTS" default:"5"`
}

type AdminConfig struct {
	APIKey string `envconfig:"HEALTHOASIS_ADMIN_API_KEY"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"HEALTHOASIS_CRON_INTERVAL" default:"15m"`
	LockTTL    time.Duration `envconfig:"HEALTHOASIS_CRON_LOCK_TTL" default:"14m"`
	JobTimeout time.Duration `envconfig:"HEALTHOASIS_CRON_JOB_TIMEOUT" default:"5m"`
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

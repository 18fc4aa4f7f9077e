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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Commitment   CommitmentConfig
	Trust        TrustConfig
	Pricing      PricingConfig
	Sweep        SweepConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"PALETTE_APP_ENV" required:"true"`
	Port         string `envconfig:"PALETTE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PALETTE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PALETTE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PALETTE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PALETTE_DB_DSN"`
	Driver string `envconfig:"PALETTE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PALETTE_DB_HOST"`
	LegacyPort     int    `envconfig:"PALETTE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PALETTE_DB_USER"`
	LegacyPassword string `envconfig:"PALETTE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PALETTE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PALETTE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PALETTE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PALETTE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PALETTE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PALETTE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PALETTE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PALETTE_REDIS_ADDR"`
	Password     string        `envconfig:"PALETTE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PALETTE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PALETTE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PALETTE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PALETTE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PALETTE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PALETTE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PALETTE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PALETTE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PALETTE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	Window    time.Duration `envconfig:"PALETTE_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"PALETTE_RATE_LIMIT_USER_LIMIT" default:"10"`
	IPLimit   int           `envconfig:"PALETTE_RATE_LIMIT_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PALETTE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PALETTE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"PALETTE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	PendingTransferTTL    time.Duration `envconfig:"PALETTE_EVENTING_PENDING_TRANSFER_TTL" default:"72h"`
}

// CommitmentConfig governs the refundable hold a collector pays to open a match.
type CommitmentConfig struct {
	BaseFeeCents int64 `envconfig:"PALETTE_COMMITMENT_BASE_FEE_CENTS" default:"500"`
}

// TrustConfig tunes the collector reputation system without redeploys.
type TrustConfig struct {
	DefaultScore        int `envconfig:"PALETTE_TRUST_DEFAULT_SCORE" default:"100"`
	MultiplierThreshold int `envconfig:"PALETTE_TRUST_MULTIPLIER_THRESHOLD" default:"30"`
	GhostPenalty        int `envconfig:"PALETTE_TRUST_GHOST_PENALTY" default:"15"`
}

type PricingConfig struct {
	PlatformFeeRate      float64 `envconfig:"PALETTE_PRICING_PLATFORM_FEE_RATE" default:"0.075"`
	CommercialMultiplier float64 `envconfig:"PALETTE_PRICING_COMMERCIAL_MULTIPLIER" default:"1.25"`
}

type SweepConfig struct {
	ThresholdDays int           `envconfig:"PALETTE_SWEEP_THRESHOLD_DAYS" default:"7"`
	Interval      time.Duration `envconfig:"PALETTE_SWEEP_INTERVAL" default:"24h"`
	LockTTL       time.Duration `envconfig:"PALETTE_SWEEP_LOCK_TTL" default:"25h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PALETTE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PALETTE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PALETTE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic       string `envconfig:"PALETTE_PUBSUB_DOMAIN_TOPIC" default:"hp-domain-events"`
	NotificationTopic string `envconfig:"PALETTE_PUBSUB_NOTIFICATION_TOPIC" default:"hp-notification-events"`
}

type BigQueryConfig struct {
	Dataset                string `envconfig:"PALETTE_BIGQUERY_DATASET" default:"palette"`
	MarketplaceEventsTable string `envconfig:"PALETTE_BIGQUERY_MARKETPLACE_TABLE" default:"marketplace_events"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"PALETTE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"PALETTE_OUTBOX_PUBLISH_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"PALETTE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionAge time.Duration `envconfig:"PALETTE_OUTBOX_RETENTION_AGE" default:"168h"`
}

type StripeConfig struct {
	APIKey string `envconfig:"PALETTE_STRIPE_API_KEY"`
	Secret string `envconfig:"PALETTE_STRIPE_SECRET"`
	Env    string `envconfig:"PALETTE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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

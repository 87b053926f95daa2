package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "printforge"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv        = "PRINTFORGE_APP_ENV"
	EnvPort          = "PRINTFORGE_APP_PORT"
	EnvDBDSN         = "PRINTFORGE_DB_DSN"
	EnvDBHost        = "PRINTFORGE_DB_HOST"
	EnvDBUser        = "PRINTFORGE_DB_USER"
	EnvDBName        = "PRINTFORGE_DB_NAME"
	EnvRedisURL      = "PRINTFORGE_REDIS_URL"
	EnvJWTSecret     = "PRINTFORGE_JWT_SECRET"
	EnvJWTIssuer     = "PRINTFORGE_JWT_ISSUER"
	EnvJWTExpMins    = "PRINTFORGE_JWT_EXPIRATION_MINUTES"
	EnvPaymentSecret = "PRINTFORGE_PAYMENT_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Pricing       PricingConfig
	Payments      PaymentsConfig
	Orders        OrdersConfig
	Notifications NotificationsConfig
	Outbox        OutboxConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"PRINTFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"PRINTFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PRINTFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRINTFORGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTFORGE_DB_DSN"`
	Driver string `envconfig:"PRINTFORGE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRINTFORGE_DB_HOST"`
	LegacyPort     int    `envconfig:"PRINTFORGE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRINTFORGE_DB_USER"`
	LegacyPassword string `envconfig:"PRINTFORGE_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRINTFORGE_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRINTFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRINTFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PRINTFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PRINTFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PRINTFORGE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// PricingConfig carries the storefront pricing policy. Amounts are whole
// currency units, matching the stored order totals.
type PricingConfig struct {
	TaxRatePercent        int `envconfig:"PRINTFORGE_PRICING_TAX_RATE_PERCENT" default:"18"`
	FreeShippingThreshold int `envconfig:"PRINTFORGE_PRICING_FREE_SHIPPING_THRESHOLD" default:"999"`
	FlatShippingFee       int `envconfig:"PRINTFORGE_PRICING_FLAT_SHIPPING_FEE" default:"49"`
}

type PaymentsConfig struct {
	WebhookSecret string `envconfig:"PRINTFORGE_PAYMENT_WEBHOOK_SECRET" required:"true"`
}

type OrdersConfig struct {
	NumberPrefix string `envconfig:"PRINTFORGE_ORDER_NUMBER_PREFIX" default:"PF"`
}

type NotificationsConfig struct {
	FromEmail string `envconfig:"PRINTFORGE_NOTIFICATIONS_FROM_EMAIL" default:"orders@printforge.example"`
	FromName  string `envconfig:"PRINTFORGE_NOTIFICATIONS_FROM_NAME" default:"PrintForge"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PRINTFORGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PRINTFORGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PRINTFORGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PRINTFORGE_AUTO_MIGRATE" default:"false"`
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

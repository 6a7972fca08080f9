package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config is the full service configuration, populated from the environment
type Config struct {
	Server        ServerConfig        `envPrefix:"SERVER_"`
	Database      DatabaseConfig      `envPrefix:"DB_"`
	Stripe        StripeConfig        `envPrefix:"STRIPE_"`
	Razorpay      RazorpayConfig      `envPrefix:"RAZORPAY_"`
	Selector      SelectorConfig      `envPrefix:"SELECTOR_"`
	Fees          FeesConfig          `envPrefix:"FEES_"`
	Rates         RatesConfig         `envPrefix:"RATES_"`
	Reconcile     ReconcileConfig     `envPrefix:"RECONCILE_"`
	Notifications NotificationConfig  `envPrefix:"NOTIFY_"`
	Secrets       SecretsConfig       `envPrefix:"SECRETS_"`
	Observability ObservabilityConfig `envPrefix:"OBSERVABILITY_"`
	RateLimit     RateLimitConfig     `envPrefix:"RATELIMIT_"`
}

type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
}

type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"payment_engine"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"25"`
}

// DSN builds the pgx connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// StripeConfig configures the global card gateway. The *Path fields are
// secret-manager paths resolved at startup, not the secret values themselves.
type StripeConfig struct {
	APIKeyPath        string        `env:"API_KEY_PATH" envDefault:"stripe/api_key"`
	WebhookSecretPath string        `env:"WEBHOOK_SECRET_PATH" envDefault:"stripe/webhook_secret"`
	SuccessURL        string        `env:"SUCCESS_URL" envDefault:"http://localhost:3000/payment/success"`
	CancelURL         string        `env:"CANCEL_URL" envDefault:"http://localhost:3000/payment/cancel"`
	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT" envDefault:"10s"`
}

// RazorpayConfig configures the regional gateway
type RazorpayConfig struct {
	KeyIDPath         string        `env:"KEY_ID_PATH" envDefault:"razorpay/key_id"`
	KeySecretPath     string        `env:"KEY_SECRET_PATH" envDefault:"razorpay/key_secret"`
	WebhookSecretPath string        `env:"WEBHOOK_SECRET_PATH" envDefault:"razorpay/webhook_secret"`
	CallbackURL       string        `env:"CALLBACK_URL" envDefault:"http://localhost:3000/payment/success"`
	SessionTimeout    time.Duration `env:"SESSION_TIMEOUT" envDefault:"10s"`
}

// SelectorConfig drives the gateway selection policy
type SelectorConfig struct {
	RegionalCurrency  string   `env:"REGIONAL_CURRENCY" envDefault:"INR"`
	RegionalCountries []string `env:"REGIONAL_COUNTRIES" envDefault:"IN" envSeparator:","`
}

// FeesConfig drives the quoted fee breakdown on checkout responses.
// Percentages are of the settlement amount; fixed fees are USD and get
// converted at the captured rate.
type FeesConfig struct {
	PlatformPercent  float64 `env:"PLATFORM_PERCENT" envDefault:"5.0"`
	StripePercent    float64 `env:"STRIPE_PERCENT" envDefault:"2.9"`
	StripeFixedUSD   float64 `env:"STRIPE_FIXED_USD" envDefault:"0.30"`
	RazorpayPercent  float64 `env:"RAZORPAY_PERCENT" envDefault:"2.0"`
	RazorpayFixedUSD float64 `env:"RAZORPAY_FIXED_USD" envDefault:"0"`
}

type RatesConfig struct {
	SourceURL       string        `env:"SOURCE_URL" envDefault:"https://open.er-api.com/v6/latest/USD"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1h"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

type ReconcileConfig struct {
	ProcessingGracePeriod time.Duration `env:"PROCESSING_GRACE_PERIOD" envDefault:"24h"`
	StalePendingAge       time.Duration `env:"STALE_PENDING_AGE" envDefault:"1h"`
	SweepLimit            int32         `env:"SWEEP_LIMIT" envDefault:"200"`
	// SweepInterval enables the background stale-session sweep; zero
	// leaves resolution to the admin endpoints only.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30m"`
}

type NotificationConfig struct {
	ListenerURL       string        `env:"LISTENER_URL"`
	SigningSecretPath string        `env:"SIGNING_SECRET_PATH" envDefault:"notifications/signing_secret"`
	BufferSize        int           `env:"BUFFER_SIZE" envDefault:"256"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"5s"`
}

// SecretsConfig selects the secret-manager backend. "local" reads secrets
// from environment variables and needs no external service.
type SecretsConfig struct {
	Backend    string        `env:"BACKEND" envDefault:"local"`
	AWSRegion  string        `env:"AWS_REGION" envDefault:"us-east-1"`
	VaultAddr  string        `env:"VAULT_ADDR"`
	VaultToken string        `env:"VAULT_TOKEN"`
	CacheTTL   time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

type ObservabilityConfig struct {
	MetricsPort int `env:"METRICS_PORT" envDefault:"9090"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"REQUESTS_PER_SECOND" envDefault:"20"`
	Burst             int     `env:"BURST" envDefault:"40"`
}

// Load parses configuration from the environment
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express
func (c *Config) Validate() error {
	switch c.Secrets.Backend {
	case "local", "aws", "vault":
	default:
		return fmt.Errorf("config.Validate: unknown secrets backend %q", c.Secrets.Backend)
	}
	if c.Secrets.Backend == "vault" && c.Secrets.VaultAddr == "" {
		return fmt.Errorf("config.Validate: SECRETS_VAULT_ADDR is required for the vault backend")
	}
	if c.Selector.RegionalCurrency == "" {
		return fmt.Errorf("config.Validate: SELECTOR_REGIONAL_CURRENCY must not be empty")
	}
	return nil
}

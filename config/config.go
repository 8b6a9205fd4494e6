package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/lumafin/go-dbgateway/errors"
	"github.com/lumafin/go-dbgateway/validator"
)

// secretIDCandidates are tried in order; the first non-empty environment
// value wins.
var secretIDCandidates = []string{
	"DB_SECRET_ID",
	"DB_CREDENTIALS_SECRET",
	"AWS_DB_SECRET_NAME",
}

const defaultSecretID = "finance-dashboard/db"

// Config holds the gateway's environment-sourced settings. Explicit values
// always win; the secret hydrator fills only fields still unset.
type Config struct {
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"require" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxPoolSize int32 `env:"DB_MAX_POOL_SIZE" envDefault:"10" validate:"gte=1"`
	MinPoolSize int32 `env:"DB_MIN_POOL_SIZE" envDefault:"0" validate:"gte=0"`

	AcquireTimeoutMS   int `env:"DB_ACQUIRE_TIMEOUT_MS" envDefault:"5000" validate:"gte=0"`
	StatementTimeoutMS int `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"30000" validate:"gte=0"`
	QueryTimeoutMS     int `env:"DB_QUERY_TIMEOUT_MS" envDefault:"30000" validate:"gte=0"`
	OperationTimeoutMS int `env:"DB_OPERATION_TIMEOUT_MS" envDefault:"15000" validate:"gte=0"`

	SchemaName     string   `env:"DB_SCHEMA" envDefault:"public"`
	RequiredTables []string `env:"DB_REQUIRED_TABLES" envDefault:"users,accounts,transactions"`
	GuardEnabled   bool     `env:"DB_SCHEMA_GUARD_ENABLED" envDefault:"true"`

	// Bounded attempts for the initial pool connect; not a query retry policy.
	ConnectAttempts int `env:"DB_CONNECT_ATTEMPTS" envDefault:"3" validate:"gte=1"`

	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`

	// Resolved from secretIDCandidates, not parsed directly.
	SecretID string `env:"-"`
}

// Load reads the environment and validates the result. Connection fields may
// legitimately be empty here; they can still arrive via secret hydration and
// are checked at pool construction.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Validation("cannot parse gateway environment").WithCause(err)
	}
	cfg.SecretID = resolveSecretID()

	if fields := validator.Validate(cfg); fields != nil {
		return nil, errors.Validation("invalid gateway configuration").
			WithViolations(errors.ViolationsFromMap(fields))
	}
	return cfg, nil
}

func resolveSecretID() string {
	for _, key := range secretIDCandidates {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return defaultSecretID
}

func (c *Config) AcquireTimeout() time.Duration   { return msDuration(c.AcquireTimeoutMS) }
func (c *Config) StatementTimeout() time.Duration { return msDuration(c.StatementTimeoutMS) }
func (c *Config) QueryTimeout() time.Duration     { return msDuration(c.QueryTimeoutMS) }
func (c *Config) OperationTimeout() time.Duration { return msDuration(c.OperationTimeoutMS) }

func msDuration(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumafin/go-dbgateway/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "require", cfg.SSLMode)
	assert.Equal(t, int32(10), cfg.MaxPoolSize)
	assert.Equal(t, "public", cfg.SchemaName)
	assert.Equal(t, []string{"users", "accounts", "transactions"}, cfg.RequiredTables)
	assert.True(t, cfg.GuardEnabled)
	assert.Equal(t, defaultSecretID, cfg.SecretID)
	assert.Equal(t, 15*time.Second, cfg.OperationTimeout())
	assert.Equal(t, 30*time.Second, cfg.StatementTimeout())
}

func TestLoadExplicitValues(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "finances")
	t.Setenv("DB_REQUIRED_TABLES", "transactions,accounts")
	t.Setenv("DB_SCHEMA_GUARD_ENABLED", "false")
	t.Setenv("DB_OPERATION_TIMEOUT_MS", "2500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, "finances", cfg.Name)
	assert.Equal(t, []string{"transactions", "accounts"}, cfg.RequiredTables)
	assert.False(t, cfg.GuardEnabled)
	assert.Equal(t, 2500*time.Millisecond, cfg.OperationTimeout())
}

func TestSecretIDCandidateOrder(t *testing.T) {
	t.Setenv("DB_CREDENTIALS_SECRET", "fallback/db")
	t.Setenv("AWS_DB_SECRET_NAME", "last/db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fallback/db", cfg.SecretID)

	t.Setenv("DB_SECRET_ID", "primary/db")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "primary/db", cfg.SecretID)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DB_MAX_POOL_SIZE", "0")
	t.Setenv("DB_SSLMODE", "yes-please")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	var resp errors.ErrorResponse
	require.ErrorAs(t, err, &resp)
	fields := make(map[string]string, len(resp.Violations))
	for _, v := range resp.Violations {
		fields[v.Field] = v.Reason
	}
	assert.Contains(t, fields, "MaxPoolSize")
	assert.Contains(t, fields, "SSLMode")
}

func TestZeroTimeoutMeansDisabled(t *testing.T) {
	t.Setenv("DB_STATEMENT_TIMEOUT_MS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.StatementTimeout())
}

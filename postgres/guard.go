package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/lumafin/go-dbgateway/config"
	gwerr "github.com/lumafin/go-dbgateway/errors"
)

// Flyway-style migration history. Only the latest record matters here;
// executing migrations is someone else's job.
const latestMigrationSQL = `
	SELECT version, success
	FROM flyway_schema_history
	ORDER BY installed_rank DESC
	LIMIT 1`

const tablesInSchemaSQL = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = $1 AND table_name = ANY($2)`

// checkSchemaReady verifies the database is migration-ready before the pool
// serves traffic. Checks short-circuit on first failure. A missing history
// table is reported the same way as an empty one: callers must treat "not
// yet migrated" uniformly.
func checkSchemaReady(ctx context.Context, run Runner, meta Meta, cfg *config.Config) error {
	if !cfg.GuardEnabled {
		return nil
	}

	if meta.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, meta.QueryTimeout)
		defer cancel()
	}

	var version *string
	var success bool
	err := run.QueryRow(ctx, latestMigrationSQL).Scan(&version, &success)
	switch {
	case errors.Is(err, pgx.ErrNoRows), isUndefinedTable(err):
		return gwerr.SchemaNotReady("database migrations not applied")
	case err != nil:
		return gwerr.Connectivity("querying migration history").WithCause(err)
	}

	if !success {
		v := "unknown"
		if version != nil && *version != "" {
			v = *version
		}
		return gwerr.SchemaNotReady(fmt.Sprintf("latest migration %s failed", v))
	}

	if len(cfg.RequiredTables) == 0 {
		return nil
	}

	rows, err := run.Query(ctx, tablesInSchemaSQL, cfg.SchemaName, cfg.RequiredTables)
	if err != nil {
		return gwerr.Connectivity("querying table catalog").WithCause(err)
	}
	defer rows.Close()

	present := make(map[string]struct{}, len(cfg.RequiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return gwerr.Connectivity("scanning table catalog").WithCause(err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return gwerr.Connectivity("reading table catalog").WithCause(err)
	}

	var missing []string
	for _, name := range cfg.RequiredTables {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return gwerr.SchemaNotReady("missing required tables: " + strings.Join(missing, ", "))
	}
	return nil
}

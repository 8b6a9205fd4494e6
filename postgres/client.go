package postgres

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumafin/go-dbgateway/config"
	gwerr "github.com/lumafin/go-dbgateway/errors"
	"github.com/lumafin/go-dbgateway/retry"
)

const pingTimeout = 5 * time.Second

// Test hooks (replaceable in unit tests).
var (
	newPool  = pgxpool.NewWithConfig
	pingPool = func(ctx context.Context, p *pgxpool.Pool) error { return p.Ping(ctx) }
)

// Meta is derived per-pool metadata carried alongside the pool itself.
type Meta struct {
	StatementTimeout time.Duration
	QueryTimeout     time.Duration
}

// Client is the process-wide connection pool plus its effective timeouts.
type Client struct {
	Pool *pgxpool.Pool
	Meta Meta
}

// Open constructs the pool from resolved configuration and verifies
// connectivity with a ping. Transient connect failures are retried a bounded
// number of times; the pool is closed on every failure path.
func Open(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := validateConn(cfg); err != nil {
		return nil, err
	}

	pcfg, err := pgxpool.ParseConfig(buildURL(cfg))
	if err != nil {
		return nil, gwerr.Connectivity("invalid connection configuration").WithCause(err)
	}

	pcfg.MaxConns = cfg.MaxPoolSize
	pcfg.MinConns = cfg.MinPoolSize

	// pg_stat_activity visibility and unified timezone.
	if pcfg.ConnConfig != nil {
		if pcfg.ConnConfig.Config.RuntimeParams == nil {
			pcfg.ConnConfig.Config.RuntimeParams = map[string]string{}
		}
		if _, ok := pcfg.ConnConfig.Config.RuntimeParams["application_name"]; !ok {
			pcfg.ConnConfig.Config.RuntimeParams["application_name"] = "go-dbgateway"
		}
		if _, ok := pcfg.ConnConfig.Config.RuntimeParams["TimeZone"]; !ok {
			pcfg.ConnConfig.Config.RuntimeParams["TimeZone"] = "UTC"
		}
	}

	var pool *pgxpool.Pool
	attempt := func() error {
		p, err := newPool(ctx, pcfg)
		if err != nil {
			// Construction errors are configuration problems, not transient.
			return retry.Permanent(err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := pingPool(pingCtx, p); err != nil {
			p.Close()
			return err
		}

		pool = p
		return nil
	}

	if err := retry.Init(ctx, cfg.ConnectAttempts, attempt); err != nil {
		return nil, gwerr.Connectivity("database unreachable").WithCause(err)
	}

	return &Client{
		Pool: pool,
		Meta: Meta{
			StatementTimeout: cfg.StatementTimeout(),
			QueryTimeout:     cfg.QueryTimeout(),
		},
	}, nil
}

func (c *Client) Close() {
	if c != nil && c.Pool != nil {
		c.Pool.Close()
	}
}

func validateConn(cfg *config.Config) error {
	switch {
	case strings.TrimSpace(cfg.Host) == "":
		return gwerr.Connectivity("database host is not configured")
	case strings.TrimSpace(cfg.Port) == "":
		return gwerr.Connectivity("database port is not configured")
	case strings.TrimSpace(cfg.Name) == "":
		return gwerr.Connectivity("database name is not configured")
	}
	return nil
}

// buildURL builds the postgres DSN. IPv6-safe thanks to net.JoinHostPort.
func buildURL(cfg *config.Config) string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   "/" + strings.TrimPrefix(cfg.Name, "/"),
	}
	if cfg.User != "" || cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

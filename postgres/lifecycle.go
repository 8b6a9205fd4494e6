package postgres

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lumafin/go-dbgateway/config"
	gwerr "github.com/lumafin/go-dbgateway/errors"
	"github.com/lumafin/go-dbgateway/logger"
)

// Test hooks (replaceable in unit tests).
var (
	openClient = Open
	guardCheck = checkSchemaReady
)

// Hydrator merges secret-store credentials into configuration. Failures are
// the hydrator's to swallow, so there is nothing to return.
type Hydrator interface {
	Hydrate(ctx context.Context)
}

// Gateway owns the single connection pool for the process. Construct it once
// at startup and inject it into every request path; there is no package
// state to reset between tests.
type Gateway struct {
	cfg      *config.Config
	log      logger.LoggerInterface
	hydrator Hydrator

	mu     sync.Mutex
	client *Client
	ready  bool

	flight singleflight.Group
}

// New wires the gateway. hydrator may be nil for explicit-config-only
// deployments.
func New(cfg *config.Config, log logger.LoggerInterface, hydrator Hydrator) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway{cfg: cfg, log: log, hydrator: hydrator}
}

// EnsurePool returns the live pool, building it on first use: hydrate
// credentials, construct the pool, then verify schema readiness. Concurrent
// cold-start callers share one underlying attempt, success or failure. A
// readiness failure tears the pool down so the next call starts clean.
func (g *Gateway) EnsurePool(ctx context.Context) (*Client, error) {
	g.mu.Lock()
	if g.client != nil && g.ready {
		c := g.client
		g.mu.Unlock()
		return c, nil
	}
	g.mu.Unlock()

	v, err, _ := g.flight.Do("ensure", func() (any, error) {
		return g.ensure(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

func (g *Gateway) ensure(ctx context.Context) (*Client, error) {
	g.mu.Lock()
	client, ready := g.client, g.ready
	g.mu.Unlock()
	if client != nil && ready {
		return client, nil
	}

	if g.hydrator != nil {
		g.hydrator.Hydrate(ctx)
	}

	if client == nil {
		c, err := openClient(ctx, g.cfg)
		if err != nil {
			return nil, err
		}
		client = c

		g.mu.Lock()
		g.client = client
		g.mu.Unlock()
		g.log.Infow("connection pool created",
			"max_conns", g.cfg.MaxPoolSize,
			"schema", g.cfg.SchemaName,
		)
	}

	if err := guardCheck(ctx, poolRunner{p: client.Pool}, client.Meta, g.cfg); err != nil {
		g.log.Warnw("schema readiness check failed; tearing pool down", "error", err)
		g.teardown(client)
		return nil, err
	}

	g.mu.Lock()
	g.ready = true
	g.mu.Unlock()
	return client, nil
}

// Pool returns the pool only after a successful EnsurePool. Calling it
// earlier is an ordering bug, reported distinctly from connectivity
// failures.
func (g *Gateway) Pool() (*Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil || !g.ready {
		return nil, gwerr.NotInitialized()
	}
	return g.client, nil
}

// Close releases all physical connections and clears the singleton.
// Idempotent. In-flight borrowers keep their already-acquired connections;
// the next EnsurePool rebuilds from scratch.
func (g *Gateway) Close() {
	g.mu.Lock()
	c := g.client
	g.client = nil
	g.ready = false
	g.mu.Unlock()

	if c != nil {
		c.Close()
		g.log.Infow("connection pool closed")
	}
}

// Ping probes the live pool. Used by health endpoints.
func (g *Gateway) Ping(ctx context.Context) error {
	c, err := g.Pool()
	if err != nil {
		return err
	}
	return c.Pool.Ping(ctx)
}

// teardown closes c and clears the singleton, unless a racing Close already
// replaced it.
func (g *Gateway) teardown(c *Client) {
	g.mu.Lock()
	if g.client == c {
		g.client = nil
		g.ready = false
	}
	g.mu.Unlock()
	c.Close()
}

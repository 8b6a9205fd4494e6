package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumafin/go-dbgateway/config"
	gwerr "github.com/lumafin/go-dbgateway/errors"
)

// txStub records settle calls and every executed statement.
type txStub struct {
	mu        sync.Mutex
	execs     []string
	commits   int
	rollbacks int
	execErr   error
}

func (t *txStub) statements() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.execs...)
}

func (t *txStub) settles() (commits, rollbacks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commits, t.rollbacks
}

func (t *txStub) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("not implemented") }
func (t *txStub) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits++
	return nil
}
func (t *txStub) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks++
	return nil
}
func (t *txStub) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	t.execs = append(t.execs, sql)
	return pgconn.CommandTag{}, nil
}
func (t *txStub) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *txStub) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (t *txStub) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (t *txStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *txStub) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (t *txStub) Conn() *pgx.Conn { return nil }

type connStub struct {
	tx       *txStub
	beginErr error
	releases atomic.Int64
}

func (c *connStub) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}
func (c *connStub) Release() { c.releases.Add(1) }

// sessionGateway wires a gateway whose pool path is fully stubbed.
func sessionGateway(t *testing.T, cfg *config.Config, meta Meta) (*Gateway, *connStub, *atomic.Int64) {
	t.Helper()

	stubOpen(t, func(ctx context.Context, c *config.Config) (*Client, error) {
		return &Client{Pool: newTestPool(t), Meta: meta}, nil
	})
	stubGuard(t, func(context.Context, Runner, Meta, *config.Config) error { return nil })

	conn := &connStub{tx: &txStub{}}
	var acquires atomic.Int64
	oldAcquire := acquireConn
	acquireConn = func(ctx context.Context, p *pgxpool.Pool) (sessionConn, error) {
		acquires.Add(1)
		return conn, nil
	}
	t.Cleanup(func() { acquireConn = oldAcquire })

	return New(cfg, nil, nil), conn, &acquires
}

func sessionConfig() *config.Config {
	return &config.Config{
		Host: "127.0.0.1", Port: "5432", Name: "finances",
		MaxPoolSize: 4, OperationTimeoutMS: 2000,
	}
}

func TestWithUserClientRejectsEmptyUser(t *testing.T) {
	g, _, acquires := sessionGateway(t, sessionConfig(), Meta{})

	err := g.WithUserClient(context.Background(), "  ", func(context.Context, Runner) error {
		t.Error("unit of work must not run")
		return nil
	})

	require.Error(t, err)
	assert.True(t, gwerr.IsValidation(err))
	assert.Equal(t, int64(0), acquires.Load(), "validation failures must not touch the pool")
}

func TestWithUserClientHappyPath(t *testing.T) {
	meta := Meta{StatementTimeout: 30 * time.Second}
	g, conn, _ := sessionGateway(t, sessionConfig(), meta)

	var ran bool
	err := g.WithUserClient(context.Background(), "u-123", func(ctx context.Context, run Runner) error {
		ran = true
		_, e := run.Exec(ctx, "SELECT 1")
		return e
	})
	require.NoError(t, err)
	require.True(t, ran)

	stmts := conn.tx.statements()
	require.GreaterOrEqual(t, len(stmts), 3)
	assert.Equal(t, "SET LOCAL appsec.user_id = 'u-123'", stmts[0],
		"tenant attribute must be installed before any caller query")
	assert.Equal(t, "SET LOCAL statement_timeout = 30000", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])

	commits, rollbacks := conn.tx.settles()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 0, rollbacks)
	assert.Equal(t, int64(1), conn.releases.Load())
}

func TestWithUserClientSkipsStatementTimeoutWhenUnset(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})

	err := g.WithUserClient(context.Background(), "u-123", func(context.Context, Runner) error {
		return nil
	})
	require.NoError(t, err)

	for _, s := range conn.tx.statements() {
		assert.NotContains(t, s, "statement_timeout")
	}
}

func TestWithUserClientEscapesTenantValue(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})

	err := g.WithUserClient(context.Background(), "bob'; DROP TABLE accounts--", func(context.Context, Runner) error {
		return nil
	})
	require.NoError(t, err)

	stmts := conn.tx.statements()
	require.NotEmpty(t, stmts)
	assert.Equal(t, "SET LOCAL appsec.user_id = 'bob''; DROP TABLE accounts--'", stmts[0])
}

func TestWithUserClientRollsBackAndRethrowsUnitError(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})

	boom := errors.New("ledger out of balance")
	err := g.WithUserClient(context.Background(), "u-123", func(context.Context, Runner) error {
		return boom
	})

	assert.Same(t, boom, err, "unit-of-work errors pass through unchanged")

	commits, rollbacks := conn.tx.settles()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, int64(1), conn.releases.Load())
}

func TestWithUserClientDeadline(t *testing.T) {
	cfg := sessionConfig()
	cfg.OperationTimeoutMS = 30
	g, conn, _ := sessionGateway(t, cfg, Meta{})

	started := time.Now()
	err := g.WithUserClient(context.Background(), "u-123", func(ctx context.Context, _ Runner) error {
		time.Sleep(500 * time.Millisecond) // ignores its deadline
		return nil
	})
	elapsed := time.Since(started)

	require.Error(t, err)
	assert.True(t, gwerr.IsOperationTimeout(err))
	assert.Less(t, elapsed, 400*time.Millisecond, "manager must not wait for the unit of work to drain")

	var resp gwerr.ErrorResponse
	require.ErrorAs(t, err, &resp)
	assert.Equal(t, "30", resp.Details["timeout_ms"], "timeout error carries the configured value")

	commits, rollbacks := conn.tx.settles()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, int64(1), conn.releases.Load(), "connection must return to the pool on timeout")
}

func TestWithUserClientCallerCancellation(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})

	ctx, cancel := context.WithCancel(context.Background())
	err := g.WithUserClient(ctx, "u-123", func(workCtx context.Context, _ Runner) error {
		cancel()
		<-workCtx.Done()
		time.Sleep(200 * time.Millisecond)
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	_, rollbacks := conn.tx.settles()
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, int64(1), conn.releases.Load())
}

func TestWithUserClientPanicRollsBackAndReleases(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})

	require.Panics(t, func() {
		_ = g.WithUserClient(context.Background(), "u-123", func(context.Context, Runner) error {
			panic("broken handler")
		})
	})

	commits, rollbacks := conn.tx.settles()
	assert.Equal(t, 0, commits)
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, int64(1), conn.releases.Load())
}

func TestWithUserClientBeginFailureReleasesConnection(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})
	conn.beginErr = errors.New("server shutting down")

	err := g.WithUserClient(context.Background(), "u-123", func(context.Context, Runner) error {
		t.Error("unit of work must not run")
		return nil
	})

	assert.True(t, gwerr.IsConnectivity(err))
	assert.Equal(t, int64(1), conn.releases.Load())
}

func TestWithUserClientAttributeFailureRollsBack(t *testing.T) {
	g, conn, _ := sessionGateway(t, sessionConfig(), Meta{})
	conn.tx.execErr = errors.New("parameter rejected")

	err := g.WithUserClient(context.Background(), "u-123", func(context.Context, Runner) error {
		t.Error("unit of work must not run when the tenant attribute is unset")
		return nil
	})

	assert.True(t, gwerr.IsConnectivity(err))
	_, rollbacks := conn.tx.settles()
	assert.Equal(t, 1, rollbacks)
	assert.Equal(t, int64(1), conn.releases.Load())
}

func TestWithUserClientPropagatesEnsureFailure(t *testing.T) {
	stubOpen(t, func(ctx context.Context, c *config.Config) (*Client, error) {
		return nil, gwerr.Connectivity("database unreachable")
	})
	stubGuard(t, func(context.Context, Runner, Meta, *config.Config) error { return nil })

	g := New(sessionConfig(), nil, nil)
	err := g.WithUserClient(context.Background(), "u-123", func(context.Context, Runner) error {
		return nil
	})
	assert.True(t, gwerr.IsConnectivity(err))
}

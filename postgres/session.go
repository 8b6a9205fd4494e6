package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	gwerr "github.com/lumafin/go-dbgateway/errors"
)

// userAttribute is the session-scoped setting the row-level-security
// policies key on. SET LOCAL scopes it to the transaction, so it is
// implicitly cleared on settle.
const userAttribute = "appsec.user_id"

const rollbackTimeout = 5 * time.Second

// UnitOfWork runs caller queries inside one isolated transaction. The
// context carries the operation deadline; queries must go through run.
type UnitOfWork func(ctx context.Context, run Runner) error

// sessionConn is the slice of *pgxpool.Conn the session needs.
type sessionConn interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Release()
}

// Test hook (replaceable in unit tests).
var acquireConn = func(ctx context.Context, p *pgxpool.Pool) (sessionConn, error) {
	return p.Acquire(ctx)
}

// WithUserClient runs fn inside a transaction bound to userID's row-level
// isolation, raced against the configured operation deadline. The tenant
// attribute is installed before fn sees the connection; the transaction is
// settled exactly once and the connection always returns to the pool.
func (g *Gateway) WithUserClient(ctx context.Context, userID string, fn UnitOfWork) error {
	if strings.TrimSpace(userID) == "" {
		return gwerr.Validation("user id is required")
	}

	client, err := g.EnsurePool(ctx)
	if err != nil {
		return err
	}

	acquireCtx := ctx
	if t := g.cfg.AcquireTimeout(); t > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	conn, err := acquireConn(acquireCtx, client.Pool)
	if err != nil {
		return gwerr.Connectivity("acquiring connection").WithCause(err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return gwerr.Connectivity("opening transaction").WithCause(err)
	}

	if err := installSession(ctx, tx, userID, client.Meta); err != nil {
		g.rollback(ctx, tx)
		return err
	}

	timeout := g.cfg.OperationTimeout()
	workCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	panicked := make(chan any, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				panicked <- p
			}
		}()
		done <- fn(workCtx, txRunner{tx: tx})
	}()

	select {
	case p := <-panicked:
		g.rollback(ctx, tx)
		panic(p)

	case err := <-done:
		if err != nil {
			g.rollback(ctx, tx)
			return err
		}
		return tx.Commit(ctx)

	case <-workCtx.Done():
		// The deadline cancels workCtx, so in-flight statements abort
		// cooperatively; we do not wait for fn to drain.
		g.rollback(ctx, tx)
		if err := ctx.Err(); err != nil {
			return err
		}
		return gwerr.OperationTimeout(timeout)
	}
}

// installSession sets the tenant attribute and the per-session statement
// timeout before any caller query runs.
func installSession(ctx context.Context, tx pgx.Tx, userID string, meta Meta) error {
	if !validIdentifier(userAttribute) {
		return gwerr.Validation("invalid session attribute name: " + userAttribute)
	}

	// SET takes no bind parameters; the value is quote-escaped instead.
	stmt := fmt.Sprintf("SET LOCAL %s = %s", userAttribute, quoteLiteral(userID))
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return gwerr.Connectivity("installing tenant attribute").WithCause(err)
	}

	if meta.StatementTimeout > 0 {
		ms := meta.StatementTimeout.Milliseconds()
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms)); err != nil {
			return gwerr.Connectivity("applying statement timeout").WithCause(err)
		}
	}
	return nil
}

// rollback is best-effort: the primary error has already been decided, so a
// failing rollback is logged, never surfaced. Runs on its own deadline
// because the caller's context may already be expired.
func (g *Gateway) rollback(ctx context.Context, tx pgx.Tx) {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		g.log.Warnw("transaction rollback failed", "error", err)
	}
}

// Package unitofwork coordinates persistence access for one logical request:
// it owns a single database connection, vends lazily-constructed repositories
// bound to that connection, and manages an optional explicit transaction with
// guaranteed release on every exit path.
//
// A UnitOfWork is not safe for concurrent use; scope one instance per
// request and Close it when done. Close is idempotent.
package unitofwork

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// UnitOfWork implements dbx.DBTX, routing statements to the open transaction
// when one is active and to its dedicated connection otherwise. Repositories
// obtained from it therefore follow the transaction lifecycle transparently.
type UnitOfWork struct {
	conn *sql.Conn
	rm   repomanager.RepositoryManager

	tx       *sql.Tx
	users    users.Repository
	affected int64
	closed   bool
}

// New acquires a dedicated connection from db. The caller owns the returned
// UnitOfWork exclusively and must Close it.
func New(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) (*UnitOfWork, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &UnitOfWork{conn: conn, rm: rm}, nil
}

// Users returns the user repository, constructing it on first access and
// reusing the same instance for the lifetime of this UnitOfWork.
func (u *UnitOfWork) Users() users.Repository {
	if u.users == nil {
		u.users = u.rm.Users(u)
	}
	return u.users
}

// BeginTransaction opens an explicit transaction. Opening a second
// transaction while one is active returns common.ErrorTransactionOpen.
func (u *UnitOfWork) BeginTransaction(ctx context.Context) error {
	if u.closed {
		return common.ErrorUnitOfWorkClosed
	}
	if u.tx != nil {
		return common.ErrorTransactionOpen
	}
	tx, err := u.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	u.tx = tx
	return nil
}

// CommitTransaction commits the open transaction, if any. The transactional
// context is released before the commit result is inspected, so the
// UnitOfWork is back in its idle state even when the commit itself fails.
func (u *UnitOfWork) CommitTransaction(ctx context.Context) error {
	tx := u.tx
	u.tx = nil
	u.affected = 0
	if tx == nil {
		return nil
	}
	return tx.Commit()
}

// RollbackTransaction reverts the open transaction, if any, discarding any
// pending row counts. The transactional context is always released.
func (u *UnitOfWork) RollbackTransaction(ctx context.Context) error {
	tx := u.tx
	u.tx = nil
	u.affected = 0
	if tx == nil {
		return nil
	}
	return tx.Rollback()
}

// SaveChanges reports the number of rows affected by statements executed
// through this UnitOfWork since the last flush (or transaction boundary)
// and resets the counter. Statements run against database/sql take effect
// immediately, so unlike a change-tracking ORM there is nothing further to
// write here.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int64, error) {
	if u.closed {
		return 0, common.ErrorUnitOfWorkClosed
	}
	n := u.affected
	u.affected = 0
	return n, nil
}

// Close rolls back any open transaction and releases the underlying
// connection. Safe to call multiple times; only the first call releases.
func (u *UnitOfWork) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.tx != nil {
		_ = u.tx.Rollback()
		u.tx = nil
	}
	return u.conn.Close()
}

func (u *UnitOfWork) handle() dbx.DBTX {
	if u.tx != nil {
		return u.tx
	}
	return u.conn
}

// ExecContext implements dbx.DBTX and accumulates affected-row counts for
// SaveChanges.
func (u *UnitOfWork) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := u.handle().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, raErr := res.RowsAffected(); raErr == nil {
		u.affected += n
	}
	return res, nil
}

// QueryContext implements dbx.DBTX.
func (u *UnitOfWork) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return u.handle().QueryContext(ctx, query, args...)
}

// QueryRowContext implements dbx.DBTX.
func (u *UnitOfWork) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return u.handle().QueryRowContext(ctx, query, args...)
}

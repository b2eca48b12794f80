package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Connection is the sqlite/postgres/mysql implementation of
// connection.Connection, a single database/sql.DB plus an optional open
// *sql.Tx for the active transaction. Mirrors the teacher's
// PostgresConnection{ConnectionDB, Connected} shape, generalized across
// dialects and extended with the transaction/savepoint state spec §4.3
// requires.
type Connection struct {
	connection.Base

	dialect Dialect
	db      *sql.DB
	tx      *sql.Tx
}

// New constructs an unconnected Connection for cfg. cfg.Backend must be
// sqlite, postgres, or mysql.
func New(cfg config.ConnectionConfig) *Connection {
	return &Connection{
		Base:    connection.NewBase(cfg),
		dialect: DialectFor(cfg.Backend),
	}
}

// NewWithDB wraps an already-open *sql.DB as a connected Connection,
// bypassing Connect/dsn construction. Used by tests to inject a
// go-sqlmock-backed *sql.DB.
func NewWithDB(cfg config.ConnectionConfig, db *sql.DB) *Connection {
	c := New(cfg)
	c.db = db
	c.SetState(connection.StateConnected)

	return c
}

func (c *Connection) dsn() string {
	cfg := c.Cfg

	switch cfg.Backend {
	case config.BackendSQLite:
		if cfg.Path != "" {
			return cfg.Path
		}

		return ":memory:"
	case config.BackendPostgres:
		if cfg.URI != "" {
			return cfg.URI
		}

		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	case config.BackendMySQL:
		if cfg.URI != "" {
			return cfg.URI
		}

		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	default:
		return cfg.URI
	}
}

// Connect is idempotent: a second call on an already-connected instance
// is a no-op.
func (c *Connection) Connect(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	db, err := sql.Open(c.dialect.DriverName, c.dsn())
	if err != nil {
		return dberr.Connection(c.Cfg.Name, "opening sql connection", err)
	}

	if c.Cfg.Timeout > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, c.Cfg.Timeout)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return dberr.Connection(c.Cfg.Name, "pinging sql connection", err)
		}
	} else if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return dberr.Connection(c.Cfg.Name, "pinging sql connection", err)
	}

	c.db = db
	c.SetState(connection.StateConnected)

	return nil
}

// Disconnect rolls back an active transaction first, then closes the
// handle. Never errors on an already-closed handle (invariant I2).
func (c *Connection) Disconnect(ctx context.Context) error {
	if c.InTransaction() && c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
		c.SetTransactionActive(false)
		c.ResetSavepoints()
	}

	if c.db == nil {
		c.SetState(connection.StateDisconnected)
		return nil
	}

	err := c.db.Close()
	c.db = nil
	c.SetState(connection.StateDisconnected)

	if err != nil {
		return dberr.Connection(c.Cfg.Name, "closing sql connection", err)
	}

	return nil
}

// IsConnected performs no I/O: it only reports the locally tracked state.
func (c *Connection) IsConnected() bool {
	return c.db != nil && c.State() == connection.StateConnected
}

// CheckHealth runs the dialect's trivial probe statement.
func (c *Connection) CheckHealth(ctx context.Context) error {
	if c.db == nil {
		return dberr.Connection(c.Cfg.Name, "not connected", nil)
	}

	if _, err := c.db.ExecContext(ctx, c.dialect.HealthProbe); err != nil {
		return dberr.Connection(c.Cfg.Name, "health probe failed", err)
	}

	return nil
}

// Execute dispatches an SQLQuery per spec §4.3's SQL dispatch rules.
func (c *Connection) Execute(ctx context.Context, q connection.Query) (any, error) {
	sq, ok := q.(connection.SQLQuery)
	if !ok {
		return nil, dberr.Query("", "sqlconn received a non-SQL query", nil)
	}

	statement, args := sq.Statement, sq.Args
	if args == nil {
		statement, args = c.dialect.BindNamed(sq.Statement, sq.Named)
	}

	if IsReadStatement(sq.Statement) {
		return c.executeRead(ctx, statement, args)
	}

	return c.executeWrite(ctx, statement, args)
}

// executeRead wraps the read in the dialect's read-only prelude when no
// transaction is already open, guaranteeing a rollback on every exit path
// (spec §4.3: "the rollback is purely cleanup, not a failure").
func (c *Connection) executeRead(ctx context.Context, statement string, args []any) (*connection.RowsResult, error) {
	if c.InTransaction() {
		return c.queryRows(ctx, c.tx, statement, args)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberr.Connection(c.Cfg.Name, "starting read-only transaction", err)
	}

	if _, err := tx.ExecContext(ctx, c.dialect.ReadOnlyPrelude); err != nil {
		_ = tx.Rollback()
		return nil, dberr.Query(statement, "read-only prelude rejected", err)
	}

	result, err := c.queryRows(ctx, tx, statement, args)

	_ = tx.Rollback()

	return result, err
}

func (c *Connection) queryRows(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, statement string, args []any) (*connection.RowsResult, error) {
	rows, err := q.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, dberr.Query(statement, "query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, dberr.Query(statement, "reading columns", err)
	}

	result := &connection.RowsResult{Columns: cols}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, dberr.Query(statement, "scanning row", err)
		}

		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Query(statement, "iterating rows", err)
	}

	return result, nil
}

// executeWrite runs a non-SELECT statement. When no transaction is
// active it auto-commits on success, auto-rolls-back on failure; inside
// a transaction the commit decision is left to the caller.
func (c *Connection) executeWrite(ctx context.Context, statement string, args []any) (*connection.ExecResult, error) {
	if c.InTransaction() {
		res, err := c.tx.ExecContext(ctx, statement, args...)
		if err != nil {
			return nil, translateWriteError(c.Cfg.Backend, statement, err)
		}

		return execResultOf(res), nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberr.Connection(c.Cfg.Name, "starting implicit write transaction", err)
	}

	res, err := tx.ExecContext(ctx, statement, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, translateWriteError(c.Cfg.Backend, statement, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, dberr.Transaction("auto-commit failed", err)
	}

	return execResultOf(res), nil
}

func execResultOf(res sql.Result) *connection.ExecResult {
	out := &connection.ExecResult{}

	if n, err := res.RowsAffected(); err == nil {
		out.AffectedRows = n
	}

	if id, err := res.LastInsertId(); err == nil && id != 0 {
		out.LastInsertID = &id
	}

	return out
}

func translateWriteError(backend config.BackendKind, statement string, err error) error {
	if backend == config.BackendPostgres {
		return dberr.FromPgError(statement, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") {
		return dberr.DuplicateKey(err.Error(), err)
	}

	return dberr.Query(statement, "write failed", err)
}

// BeginTransaction starts a top-level transaction, or — if one is
// already active — creates a named savepoint (spec §4.3).
func (c *Connection) BeginTransaction(ctx context.Context) (string, error) {
	if c.db == nil {
		return "", dberr.Connection(c.Cfg.Name, "not connected", nil)
	}

	if !c.InTransaction() {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return "", dberr.Transaction("begin failed", err)
		}

		c.tx = tx
		c.SetTransactionActive(true)

		return "", nil
	}

	name := c.NextSavepoint()
	if _, err := c.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return "", dberr.Transaction("savepoint creation failed", err)
	}

	return name, nil
}

// Commit requires an active transaction; commits, restores auto-commit,
// and resets the savepoint counter (invariant I3).
func (c *Connection) Commit(ctx context.Context) error {
	if !c.InTransaction() || c.tx == nil {
		return dberr.Transaction("no active transaction to commit", nil)
	}

	err := c.tx.Commit()
	c.tx = nil
	c.SetTransactionActive(false)
	c.ResetSavepoints()

	if err != nil {
		return dberr.Transaction("commit failed", err)
	}

	return nil
}

// Rollback rolls back to savepoint if given, else rolls back the
// top-level transaction and restores auto-commit.
func (c *Connection) Rollback(ctx context.Context, savepoint string) error {
	if !c.InTransaction() || c.tx == nil {
		return dberr.Transaction("no active transaction to roll back", nil)
	}

	if savepoint != "" {
		_, err := c.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint)
		if err != nil {
			return dberr.Transaction("rollback to savepoint failed", err)
		}

		return nil
	}

	err := c.tx.Rollback()
	c.tx = nil
	c.SetTransactionActive(false)
	c.ResetSavepoints()

	if err != nil {
		return dberr.Transaction("rollback failed", err)
	}

	return nil
}

// ReleaseSavepoint mirrors savepoint creation.
func (c *Connection) ReleaseSavepoint(ctx context.Context, name string) error {
	if !c.InTransaction() || c.tx == nil {
		return dberr.Transaction("no active transaction", nil)
	}

	if _, err := c.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return dberr.Transaction("release savepoint failed", err)
	}

	return nil
}

// DB exposes the underlying *sql.DB for the SQL adapter's introspection
// queries (information_schema / sqlite_master / PRAGMA), which need raw
// query access beyond the abstract Query variants.
func (c *Connection) DB() *sql.DB { return c.db }

// Dialect exposes the resolved Dialect for the adapter's identifier
// quoting and feature-flag decisions.
func (c *Connection) Dialect() Dialect { return c.dialect }

package connection

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
)

// State is the Connected/Disconnected half of the connection lifecycle
// (spec §3). The NoTx/InTx sub-state is tracked separately by
// transactionActive, since the two axes are orthogonal.
type State int

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "uninitialized"
	}
}

// ExecResult is returned by execute for a non-SELECT SQL statement or a
// KV/document write: affected row/document count plus an optional
// driver-native last-insert id.
type ExecResult struct {
	AffectedRows int64
	LastInsertID *int64
}

// RowsResult is returned by execute for a read query: column names plus
// row values, backend-agnostic.
type RowsResult struct {
	Columns []string
	Rows    [][]any
}

// Connection is the lifecycle contract every backend-specific
// implementation (sqlconn, mongoconn, redisconn) satisfies. A Connection
// is not safe for concurrent use (spec §5); the pool enforces at most one
// borrower at a time.
type Connection interface {
	Config() config.ConnectionConfig

	// Connect is idempotent; establishes the driver handle.
	Connect(ctx context.Context) error
	// Disconnect is idempotent; rolls back an active transaction first,
	// never errors on an already-closed handle.
	Disconnect(ctx context.Context) error
	// IsConnected performs no network I/O beyond a cheap liveness check;
	// returns false on any doubt.
	IsConnected() bool
	// CheckHealth runs a trivial backend-specific probe.
	CheckHealth(ctx context.Context) error

	// Execute runs one abstract query and dispatches per its variant.
	Execute(ctx context.Context, q Query) (any, error)

	// BeginTransaction starts a transaction, or (if one is already
	// active) creates a named savepoint and returns its name.
	BeginTransaction(ctx context.Context) (savepoint string, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context, savepoint string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	// InTransaction reports the InTx/NoTx sub-state.
	InTransaction() bool
}

// Base holds the state shared by every backend implementation: the bound
// config, the orthogonal transaction sub-state, and the savepoint
// counter. Embed it in each backend's Connection struct (mirrors the
// teacher's *Connection{ConnectionStringSource, Connected} shape,
// generalized with the transaction/savepoint fields spec §3 requires).
type Base struct {
	Cfg config.ConnectionConfig

	state             State
	transactionActive bool
	savepointCounter  int64
}

// NewBase constructs the shared state for a backend Connection.
func NewBase(cfg config.ConnectionConfig) Base {
	return Base{Cfg: cfg, state: StateUninitialized}
}

func (b *Base) Config() config.ConnectionConfig { return b.Cfg }

func (b *Base) State() State { return b.state }

func (b *Base) SetState(s State) { b.state = s }

func (b *Base) InTransaction() bool { return b.transactionActive }

func (b *Base) SetTransactionActive(v bool) { b.transactionActive = v }

// NextSavepoint returns the next savepoint name, pre-incrementing the
// counter (spec §4.3: "sp_<n> where n is the pre-incremented counter").
func (b *Base) NextSavepoint() string {
	n := atomic.AddInt64(&b.savepointCounter, 1)
	return fmt.Sprintf("sp_%d", n)
}

// ResetSavepoints zeroes the counter — called on every top-level commit
// or rollback (invariant I3).
func (b *Base) ResetSavepoints() {
	atomic.StoreInt64(&b.savepointCounter, 0)
}

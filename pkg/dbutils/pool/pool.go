// Package pool implements the named connection pool (spec §4.4): a cache
// of live connections keyed by name, with idle eviction and a
// per-name lock serialising concurrent borrowers (spec §9, resolving the
// "the source lets them share" open question in favour of blocking
// serialization rather than unguarded sharing).
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connfactory"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
	"github.com/dbutils-go/broker/pkg/dbutils/retry"
	"github.com/dbutils-go/broker/pkg/mlog"
)

// Defaults per spec §4.4.
const (
	DefaultMaxIdle       = 300 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// entry is one pool slot: (name, Connection, last_used_time) plus the
// per-name lock that serializes borrowers of that name.
type entry struct {
	conn     connection.Connection
	lastUsed time.Time
	mu       sync.Mutex
}

// Factory builds an unconnected Connection from a resolved
// ConnectionConfig. connfactory.New satisfies this; tests substitute a
// fake to avoid real drivers.
type Factory func(config.ConnectionConfig) (connection.Connection, error)

// Pool holds a map name -> entry. Map mutations are serialized under
// mapMu; driver I/O happens after releasing mapMu, never while holding
// it (spec §4.4/§5).
type Pool struct {
	mapMu   sync.Mutex
	entries map[string]*entry

	docs    config.Document
	factory Factory

	maxIdle       time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time

	logger mlog.Logger
}

// New constructs an empty Pool resolving connection names against docs,
// building connections via connfactory.New.
func New(docs config.Document, logger mlog.Logger) *Pool {
	return NewWithFactory(docs, logger, connfactory.New)
}

// NewWithFactory is New with an injectable connection Factory, used by
// tests to avoid real drivers.
func NewWithFactory(docs config.Document, logger mlog.Logger, factory Factory) *Pool {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &Pool{
		entries:       make(map[string]*entry),
		docs:          docs,
		factory:       factory,
		maxIdle:       DefaultMaxIdle,
		sweepInterval: DefaultSweepInterval,
		logger:        logger,
	}
}

// WithIdleConfig overrides the default max_idle/sweep_interval.
func (p *Pool) WithIdleConfig(maxIdle, sweepInterval time.Duration) *Pool {
	p.maxIdle = maxIdle
	p.sweepInterval = sweepInterval

	return p
}

// Get returns the live, locked entry for name, connecting or reconnecting
// as needed. The caller MUST call Release when done, even on error paths
// that still returned a connection.
func (p *Pool) Get(ctx context.Context, name string) (connection.Connection, error) {
	p.sweepIfDue(ctx)

	e, err := p.entryFor(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()

	if e.conn.IsConnected() {
		if healthErr := e.conn.CheckHealth(ctx); healthErr != nil {
			p.logger.Warnf("pool: connection %q failed health check, reconnecting: %v", name, healthErr)

			_ = e.conn.Disconnect(ctx)

			if connErr := retry.Do(ctx, retry.DefaultConfig(), e.conn.Connect); connErr != nil {
				e.mu.Unlock()
				return nil, connErr
			}
		}
	} else if connErr := retry.Do(ctx, retry.DefaultConfig(), e.conn.Connect); connErr != nil {
		e.mu.Unlock()
		return nil, connErr
	}

	e.lastUsed = time.Now()

	return e.conn, nil
}

// entryFor returns the existing entry for name or creates (but does not
// connect) one, under the map lock only.
func (p *Pool) entryFor(name string) (*entry, error) {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()

	if e, ok := p.entries[name]; ok {
		return e, nil
	}

	cc, err := p.docs.Get(name)
	if err != nil {
		return nil, err
	}

	conn, err := p.factory(cc)
	if err != nil {
		return nil, err
	}

	e := &entry{conn: conn}
	p.entries[name] = e

	return e, nil
}

// Release returns the connection for name to the pool. If it has an
// active transaction, it is rolled back defensively (spec §4.4).
func (p *Pool) Release(ctx context.Context, name string) {
	p.mapMu.Lock()
	e, ok := p.entries[name]
	p.mapMu.Unlock()

	if !ok {
		return
	}

	if e.conn.InTransaction() {
		if err := e.conn.Rollback(ctx, ""); err != nil {
			p.logger.Warnf("pool: defensive rollback on release of %q failed: %v", name, err)
		}
	}

	e.lastUsed = time.Now()
	e.mu.Unlock()
}

// Close removes and disconnects the named entry.
func (p *Pool) Close(ctx context.Context, name string) error {
	p.mapMu.Lock()
	e, ok := p.entries[name]
	if ok {
		delete(p.entries, name)
	}
	p.mapMu.Unlock()

	if !ok {
		return nil
	}

	return e.conn.Disconnect(ctx)
}

// CloseAll removes and disconnects every entry.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mapMu.Lock()
	all := p.entries
	p.entries = make(map[string]*entry)
	p.mapMu.Unlock()

	var firstErr error

	for name, e := range all {
		if err := e.conn.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = dberr.Connection(name, "disconnect during close_all failed", err)
		}
	}

	return firstErr
}

// sweepIfDue evicts entries idle longer than maxIdle, at most once per
// sweepInterval (spec §4.4).
func (p *Pool) sweepIfDue(ctx context.Context) {
	p.mapMu.Lock()
	now := time.Now()

	if now.Sub(p.lastSweep) < p.sweepInterval {
		p.mapMu.Unlock()
		return
	}

	p.lastSweep = now

	var stale []string

	for name, e := range p.entries {
		if now.Sub(e.lastUsed) > p.maxIdle {
			stale = append(stale, name)
		}
	}

	evicted := make([]*entry, 0, len(stale))

	for _, name := range stale {
		evicted = append(evicted, p.entries[name])
		delete(p.entries, name)
	}

	p.mapMu.Unlock()

	for i, name := range stale {
		if err := evicted[i].conn.Disconnect(ctx); err != nil {
			p.logger.Warnf("pool: idle eviction of %q failed to disconnect cleanly: %v", name, err)
		}
	}
}

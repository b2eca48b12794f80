// Package redisadapter implements the Adapter surface (spec §4.5) for
// Redis atop a redisconn.Connection.
package redisadapter

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/redisconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// scanBatchSize bounds one SCAN cursor iteration.
const scanBatchSize = 1000

// Adapter is the redisadapter.Adapter implementation.
type Adapter struct {
	conn *redisconn.Connection
}

// New wraps conn in an adapter.Adapter.
func New(conn *redisconn.Connection) *Adapter {
	return &Adapter{conn: conn}
}

func (a *Adapter) ExecuteQuery(ctx context.Context, q connection.Query) (any, error) {
	kv, ok := q.(connection.KVCommand)
	if !ok {
		return nil, dberr.Query("", "redisadapter received a non-kv query", nil)
	}

	if kv.Kind() != connection.OpRead {
		return nil, dberr.Query(kv.Command, "execute_query rejects a non-READ command", nil)
	}

	return a.conn.Execute(ctx, kv)
}

func (a *Adapter) ExecuteWrite(ctx context.Context, q connection.Query) (any, error) {
	kv, ok := q.(connection.KVCommand)
	if !ok {
		return nil, dberr.Query("", "redisadapter received a non-kv query", nil)
	}

	if kv.Kind() == connection.OpRead {
		return nil, dberr.Query(kv.Command, "execute_write rejects a READ command", nil)
	}

	return a.conn.Execute(ctx, kv)
}

// ListResources enumerates keys via SCAN, not KEYS, to avoid blocking
// (spec §4.5).
func (a *Adapter) ListResources(ctx context.Context) ([]adapter.ResourceInfo, error) {
	client := a.conn.Client()

	var (
		cursor uint64
		out    []adapter.ResourceInfo
	)

	for {
		keys, next, err := client.Scan(ctx, cursor, "*", scanBatchSize).Result()
		if err != nil {
			return nil, dberr.Database("scanning keys failed", err)
		}

		for _, key := range keys {
			typ, _ := client.Type(ctx, key).Result()
			out = append(out, adapter.ResourceInfo{Name: key, Type: typ, Stats: map[string]any{}})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return out, nil
}

// DescribeResource reports the key's type only; TTL and memory usage are
// reported by GetResourceStats.
func (a *Adapter) DescribeResource(ctx context.Context, name string) (adapter.ResourceDescription, error) {
	client := a.conn.Client()

	exists, err := client.Exists(ctx, name).Result()
	if err != nil {
		return adapter.ResourceDescription{}, dberr.Database("checking key existence failed", err)
	}

	if exists == 0 {
		return adapter.ResourceDescription{}, dberr.ResourceNotFound(name, "key not found")
	}

	typ, _ := client.Type(ctx, name).Result()

	return adapter.ResourceDescription{
		Columns: []adapter.ColumnInfo{{Name: name, Type: typ, Nullable: false}},
	}, nil
}

// GetResourceStats returns TTL and memory usage for name.
func (a *Adapter) GetResourceStats(ctx context.Context, name string) (map[string]any, error) {
	client := a.conn.Client()

	exists, err := client.Exists(ctx, name).Result()
	if err != nil {
		return nil, dberr.Database("checking key existence failed", err)
	}

	if exists == 0 {
		return nil, dberr.ResourceNotFound(name, "key not found")
	}

	ttl, _ := client.TTL(ctx, name).Result()

	memUsage, err := client.MemoryUsage(ctx, name).Result()
	if err != nil && err != redis.Nil {
		memUsage = 0
	}

	return map[string]any{"ttl_seconds": ttl.Seconds(), "memory_bytes": memUsage}, nil
}

// ExtractResourceName returns the key carried directly by the abstract
// command.
func (a *Adapter) ExtractResourceName(q connection.Query) string {
	kv, ok := q.(connection.KVCommand)
	if !ok || kv.Key == "" {
		return adapter.UnknownResource
	}

	return kv.Key
}

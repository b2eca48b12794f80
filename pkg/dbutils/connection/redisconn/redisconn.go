// Package redisconn implements the Connection contract (spec §4.3) for
// Redis. Redis has no real transaction/savepoint model; BeginTransaction
// opens a pipeline and Commit drains it, per spec §4.3's KV dispatch
// note.
package redisconn

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Connection is the Redis implementation of connection.Connection.
// Mirrors the teacher's RedisConnection{ConnectionStringSource, Client,
// Connected} shape, extended with the pipeline-as-transaction state
// spec §4.3 requires.
type Connection struct {
	connection.Base

	client   *redis.Client
	pipeline redis.Pipeliner
}

// New constructs an unconnected redisconn.Connection for cfg.
func New(cfg config.ConnectionConfig) *Connection {
	return &Connection{Base: connection.NewBase(cfg)}
}

// NewWithClient wraps an already-connected *redis.Client. Used by tests
// with a client pointed at an unreachable address.
func NewWithClient(cfg config.ConnectionConfig, client *redis.Client) *Connection {
	c := New(cfg)
	c.client = client
	c.SetState(connection.StateConnected)

	return c
}

func (c *Connection) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	opts, err := redis.ParseURL(c.Cfg.URI)
	if err != nil {
		return dberr.Connection(c.Cfg.Name, "parsing redis uri", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return dberr.Connection(c.Cfg.Name, "pinging redis connection", err)
	}

	c.client = client
	c.SetState(connection.StateConnected)

	return nil
}

func (c *Connection) Disconnect(ctx context.Context) error {
	if c.InTransaction() && c.pipeline != nil {
		c.pipeline.Discard()
		c.pipeline = nil
		c.SetTransactionActive(false)
		c.ResetSavepoints()
	}

	if c.client == nil {
		c.SetState(connection.StateDisconnected)
		return nil
	}

	err := c.client.Close()
	c.client = nil
	c.SetState(connection.StateDisconnected)

	if err != nil {
		return dberr.Connection(c.Cfg.Name, "closing redis connection", err)
	}

	return nil
}

func (c *Connection) IsConnected() bool {
	return c.client != nil && c.State() == connection.StateConnected
}

func (c *Connection) CheckHealth(ctx context.Context) error {
	if c.client == nil {
		return dberr.Connection(c.Cfg.Name, "not connected", nil)
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		return dberr.Connection(c.Cfg.Name, "health probe failed", err)
	}

	return nil
}

// BeginTransaction opens a pipeline. Redis pipelines don't nest; a second
// call while one is open is a Transaction error (the closest analogue of
// a missing savepoint concept).
func (c *Connection) BeginTransaction(ctx context.Context) (string, error) {
	if c.client == nil {
		return "", dberr.Connection(c.Cfg.Name, "not connected", nil)
	}

	if c.InTransaction() {
		return "", dberr.Transaction("redis pipelines do not support nested transactions or savepoints", nil)
	}

	c.pipeline = c.client.TxPipeline()
	c.SetTransactionActive(true)

	return "", nil
}

// Commit drains the pipeline, executing every enqueued command.
func (c *Connection) Commit(ctx context.Context) error {
	if !c.InTransaction() || c.pipeline == nil {
		return dberr.Transaction("no active transaction to commit", nil)
	}

	_, err := c.pipeline.Exec(ctx)
	c.pipeline = nil
	c.SetTransactionActive(false)
	c.ResetSavepoints()

	if err != nil && err != redis.Nil {
		return dberr.Transaction("pipeline exec failed", err)
	}

	return nil
}

func (c *Connection) Rollback(ctx context.Context, savepoint string) error {
	if savepoint != "" {
		return dberr.Transaction("redis has no savepoint concept to roll back to", nil)
	}

	if !c.InTransaction() || c.pipeline == nil {
		return dberr.Transaction("no active transaction to roll back", nil)
	}

	c.pipeline.Discard()
	c.pipeline = nil
	c.SetTransactionActive(false)
	c.ResetSavepoints()

	return nil
}

func (c *Connection) ReleaseSavepoint(ctx context.Context, name string) error {
	return dberr.NotImplemented("redis has no savepoint concept to release")
}

// closed recognized command set; unknown commands are a Connection error
// per spec §4.3 ("unknown command → Connection error").
var commandDispatch = map[string]func(context.Context, redis.Cmdable, connection.KVCommand) (any, error){
	"GET":      func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Get(ctx, q.Key).Result() },
	"SET":      func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Set(ctx, q.Key, arg(q, 0), 0).Result() },
	"DEL":      func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Del(ctx, q.Key).Result() },
	"EXISTS":   func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Exists(ctx, q.Key).Result() },
	"TYPE":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Type(ctx, q.Key).Result() },
	"TTL":      func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.TTL(ctx, q.Key).Result() },
	"EXPIRE":   func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Expire(ctx, q.Key, durationArg(q, 0)).Result() },
	"INCR":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Incr(ctx, q.Key).Result() },
	"DECR":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Decr(ctx, q.Key).Result() },
	"KEYS":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.Keys(ctx, q.Key).Result() },
	"HGET":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.HGet(ctx, q.Key, strArg(q, 0)).Result() },
	"HGETALL":  func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.HGetAll(ctx, q.Key).Result() },
	"HSET":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.HSet(ctx, q.Key, q.Args...).Result() },
	"HDEL":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.HDel(ctx, q.Key, strArgs(q)...).Result() },
	"LRANGE": func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) {
		return c.LRange(ctx, q.Key, intArg(q, 0), intArg(q, 1)).Result()
	},
	"LPUSH":    func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.LPush(ctx, q.Key, q.Args...).Result() },
	"RPUSH":    func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.RPush(ctx, q.Key, q.Args...).Result() },
	"SADD":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.SAdd(ctx, q.Key, q.Args...).Result() },
	"SMEMBERS": func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.SMembers(ctx, q.Key).Result() },
	"SREM":     func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) { return c.SRem(ctx, q.Key, q.Args...).Result() },
	"ZADD": func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) {
		return c.ZAdd(ctx, q.Key, zMembersOf(q.Args)...).Result()
	},
	"ZRANGE": func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) {
		return c.ZRange(ctx, q.Key, intArg(q, 0), intArg(q, 1)).Result()
	},
	"SCAN": func(ctx context.Context, c redis.Cmdable, q connection.KVCommand) (any, error) {
		keys, _, err := c.Scan(ctx, 0, q.Key, 0).Result()
		return keys, err
	},
}

func arg(q connection.KVCommand, i int) any {
	if i < len(q.Args) {
		return q.Args[i]
	}

	return nil
}

func strArg(q connection.KVCommand, i int) string {
	v, _ := arg(q, i).(string)
	return v
}

func intArg(q connection.KVCommand, i int) int64 {
	switch v := arg(q, i).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func durationArg(q connection.KVCommand, i int) time.Duration {
	return time.Duration(intArg(q, i)) * time.Second
}

func strArgs(q connection.KVCommand) []string {
	out := make([]string, 0, len(q.Args))
	for _, a := range q.Args {
		if s, ok := a.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

func zMembersOf(args []any) []redis.Z {
	var members []redis.Z

	for i := 0; i+1 < len(args); i += 2 {
		score, _ := args[i].(float64)
		members = append(members, redis.Z{Score: score, Member: args[i+1]})
	}

	return members
}

// Execute dispatches a KVCommand. If a transaction/pipeline is active,
// the command is enqueued and the pipeline itself is returned; Commit
// drains it.
func (c *Connection) Execute(ctx context.Context, q connection.Query) (any, error) {
	kv, ok := q.(connection.KVCommand)
	if !ok {
		return nil, dberr.Query("", "redisconn received a non-kv query", nil)
	}

	fn, ok := commandDispatch[kv.Command]
	if !ok {
		return nil, dberr.Connection(c.Cfg.Name, fmt.Sprintf("unknown redis command %q", kv.Command), nil)
	}

	if c.InTransaction() {
		if _, err := fn(ctx, c.pipeline, kv); err != nil && err != redis.Nil {
			return nil, dberr.Database("redis command failed", err)
		}

		return c.pipeline, nil
	}

	result, err := fn(ctx, c.client, kv)
	if err != nil && err != redis.Nil {
		return nil, dberr.Database("redis command failed", err)
	}

	return result, nil
}

// Client exposes the underlying *redis.Client for the KV adapter's
// SCAN/MEMORY USAGE introspection, which needs raw access beyond the
// abstract Query variants.
func (c *Connection) Client() *redis.Client { return c.client }

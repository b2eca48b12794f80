package redisconn_test

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/redisconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// unreachableClient points at a closed port: connect attempts fail fast
// without requiring a live redis server in this unit test.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 0})
}

func TestUnknownCommandIsConnectionError(t *testing.T) {
	cfg := config.ConnectionConfig{Name: "r1", Backend: config.BackendRedis}
	conn := redisconn.NewWithClient(cfg, unreachableClient())

	_, err := conn.Execute(context.Background(), connection.KVCommand{Command: "FLUSHALL"})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConnection))
}

func TestCommitWithoutTransactionFails(t *testing.T) {
	cfg := config.ConnectionConfig{Name: "r1", Backend: config.BackendRedis}
	conn := redisconn.NewWithClient(cfg, unreachableClient())

	err := conn.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindTransaction))
}

func TestNestedBeginTransactionFails(t *testing.T) {
	cfg := config.ConnectionConfig{Name: "r1", Backend: config.BackendRedis}
	conn := redisconn.NewWithClient(cfg, unreachableClient())

	_, err := conn.BeginTransaction(context.Background())
	require.NoError(t, err)

	_, err = conn.BeginTransaction(context.Background())
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindTransaction))
}

package redisadapter_test

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter/redisadapter"
	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/redisconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

func unreachableConn() *redisconn.Connection {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return redisconn.NewWithClient(config.ConnectionConfig{Name: "r"}, client)
}

func TestExecuteQueryRejectsWriteCommand(t *testing.T) {
	a := redisadapter.New(unreachableConn())

	_, err := a.ExecuteQuery(context.Background(), connection.KVCommand{Command: "SET", Key: "k"})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestExecuteWriteRejectsReadCommand(t *testing.T) {
	a := redisadapter.New(unreachableConn())

	_, err := a.ExecuteWrite(context.Background(), connection.KVCommand{Command: "GET", Key: "k"})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestExtractResourceNameUsesKey(t *testing.T) {
	a := redisadapter.New(unreachableConn())

	assert.Equal(t, "session:1", a.ExtractResourceName(connection.KVCommand{Command: "GET", Key: "session:1"}))
	assert.Equal(t, "unknown_table", a.ExtractResourceName(connection.SQLQuery{Statement: "SELECT 1"}))
}

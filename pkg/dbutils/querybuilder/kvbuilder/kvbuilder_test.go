package kvbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/querybuilder/kvbuilder"
)

func TestSelectMapsToGet(t *testing.T) {
	cmd := kvbuilder.New("session:1").Select()

	assert.Equal(t, connection.KVCommand{Command: "GET", Key: "session:1"}, cmd)
	assert.Equal(t, connection.OpRead, cmd.Kind())
}

func TestInsertDictMapsToHSet(t *testing.T) {
	cmd := kvbuilder.New("user:1").InsertDict(map[string]any{"name": "alice"})

	assert.Equal(t, "HSET", cmd.Command)
	assert.Equal(t, []any{"name", "alice"}, cmd.Args)
}

func TestInsertScalarMapsToSet(t *testing.T) {
	cmd := kvbuilder.New("counter").InsertScalar(42)

	assert.Equal(t, connection.KVCommand{Command: "SET", Key: "counter", Args: []any{42}}, cmd)
}

func TestDeleteMapsToDel(t *testing.T) {
	cmd := kvbuilder.New("counter").Delete()

	assert.Equal(t, connection.KVCommand{Command: "DEL", Key: "counter"}, cmd)
}

func TestExpireMapsToExpireWithSeconds(t *testing.T) {
	cmd := kvbuilder.New("session:1").Expire(300)

	assert.Equal(t, connection.KVCommand{Command: "EXPIRE", Key: "session:1", Args: []any{int64(300)}}, cmd)
}

func TestWhereOrderByLimitOffsetAreNoOps(t *testing.T) {
	cmd := kvbuilder.New("session:1").Where("field", "value").OrderBy("field").Limit(10).Offset(5).Select()

	assert.Equal(t, connection.KVCommand{Command: "GET", Key: "session:1"}, cmd)
}

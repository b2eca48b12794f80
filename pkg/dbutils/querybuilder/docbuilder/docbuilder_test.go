package docbuilder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/querybuilder/docbuilder"
)

func TestFindBuildsFilterParams(t *testing.T) {
	q := docbuilder.New("users").Find(map[string]any{"active": true}).Build()

	assert.Equal(t, "users", q.Collection)
	assert.Equal(t, connection.DocFind, q.Operation)
	assert.Equal(t, map[string]any{"active": true}, q.Params["filter"])
}

func TestUpdateOneWrapsPlainFieldMapInSet(t *testing.T) {
	q := docbuilder.New("users").UpdateOne(map[string]any{"id": 1}, map[string]any{"name": "alice"}).Build()

	assert.Equal(t, connection.DocUpdateOne, q.Operation)
	assert.Equal(t, map[string]any{"$set": map[string]any{"name": "alice"}}, q.Params["update"])
}

func TestUpdateOnePreservesOperatorKeyedMap(t *testing.T) {
	update := map[string]any{"$inc": map[string]any{"visits": 1}}
	q := docbuilder.New("users").UpdateOne(map[string]any{"id": 1}, update).Build()

	assert.Equal(t, update, q.Params["update"])
}

func TestInsertManyBuildsDocumentsParam(t *testing.T) {
	docs := []any{map[string]any{"a": 1}, map[string]any{"a": 2}}
	q := docbuilder.New("users").InsertMany(docs).Build()

	assert.Equal(t, connection.DocInsertMany, q.Operation)
	assert.Equal(t, docs, q.Params["documents"])
}

func TestDistinctBuildsFieldAndFilter(t *testing.T) {
	q := docbuilder.New("users").Distinct("country", map[string]any{"active": true}).Build()

	assert.Equal(t, connection.DocDistinct, q.Operation)
	assert.Equal(t, "country", q.Params["field"])
}

func TestDeleteManyBuildsFilter(t *testing.T) {
	q := docbuilder.New("users").DeleteMany(map[string]any{"active": false}).Build()

	assert.Equal(t, connection.DocDeleteMany, q.Operation)
	assert.Equal(t, map[string]any{"active": false}, q.Params["filter"])
}

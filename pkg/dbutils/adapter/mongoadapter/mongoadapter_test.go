package mongoadapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter/mongoadapter"
	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/mongoconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

func TestExecuteQueryRejectsWriteOperation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("reject write", func(mt *mtest.T) {
		conn := mongoconn.NewWithClient(config.ConnectionConfig{Name: "m", Database: "d"}, mt.Client)
		a := mongoadapter.New(conn)

		_, err := a.ExecuteQuery(context.Background(), connection.DocumentQuery{Collection: "things", Operation: connection.DocInsertOne})
		require.Error(t, err)
		assert.True(t, dberr.IsKind(err, dberr.KindQuery))
	})
}

func TestExtractResourceNameUsesCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("extract", func(mt *mtest.T) {
		conn := mongoconn.NewWithClient(config.ConnectionConfig{Name: "m", Database: "d"}, mt.Client)
		a := mongoadapter.New(conn)

		assert.Equal(t, "things", a.ExtractResourceName(connection.DocumentQuery{Collection: "things", Operation: connection.DocFind}))
		assert.Equal(t, "unknown_table", a.ExtractResourceName(connection.SQLQuery{Statement: "SELECT 1"}))
	})
}

func TestGetResourceStatsNotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("stats missing", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 0}, {Key: "errmsg", Value: "ns not found"}})

		conn := mongoconn.NewWithClient(config.ConnectionConfig{Name: "m", Database: "d"}, mt.Client)
		a := mongoadapter.New(conn)

		_, err := a.GetResourceStats(context.Background(), "things")
		require.Error(t, err)
		assert.True(t, dberr.IsKind(err, dberr.KindResourceNotFound))
	})
}

// Package adapterfactory builds the backend-appropriate adapter.Adapter
// for a connection.Connection, kept separate from pkg/dbutils/adapter to
// avoid that package importing its own implementations.
package adapterfactory

import (
	"fmt"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter"
	"github.com/dbutils-go/broker/pkg/dbutils/adapter/mongoadapter"
	"github.com/dbutils-go/broker/pkg/dbutils/adapter/redisadapter"
	"github.com/dbutils-go/broker/pkg/dbutils/adapter/sqladapter"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/mongoconn"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/redisconn"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/sqlconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// New builds the Adapter matching conn's concrete backend type.
func New(conn connection.Connection) (adapter.Adapter, error) {
	switch c := conn.(type) {
	case *sqlconn.Connection:
		return sqladapter.New(c), nil
	case *mongoconn.Connection:
		return mongoadapter.New(c), nil
	case *redisconn.Connection:
		return redisadapter.New(c), nil
	default:
		return nil, dberr.Database(fmt.Sprintf("no adapter for connection type %T", conn), nil)
	}
}

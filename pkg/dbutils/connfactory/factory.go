// Package connfactory builds the backend-appropriate connection.Connection
// for a config.ConnectionConfig. It is kept separate from
// pkg/dbutils/connection to avoid that package importing its own
// implementations (sqlconn/mongoconn/redisconn already import connection
// for the shared Base/Query types).
package connfactory

import (
	"fmt"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/mongoconn"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/redisconn"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/sqlconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// New constructs the backend-appropriate, unconnected Connection for cfg
// (spec §3: "created by a factory from a ConnectionConfig").
func New(cfg config.ConnectionConfig) (connection.Connection, error) {
	switch cfg.Backend {
	case config.BackendSQLite, config.BackendPostgres, config.BackendMySQL:
		return sqlconn.New(cfg), nil
	case config.BackendMongoDB:
		return mongoconn.New(cfg), nil
	case config.BackendRedis:
		return redisconn.New(cfg), nil
	default:
		return nil, dberr.Configuration(fmt.Sprintf("unsupported backend %q", cfg.Backend), nil)
	}
}

package sqladapter_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter/sqladapter"
	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/sqlconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

func newAdapter(t *testing.T) (*sqladapter.Adapter, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	conn := sqlconn.NewWithDB(config.ConnectionConfig{Name: "t", Backend: config.BackendPostgres}, db)

	return sqladapter.New(conn), mock
}

func TestExecuteQueryRejectsWriteOp(t *testing.T) {
	a, _ := newAdapter(t)

	_, err := a.ExecuteQuery(context.Background(), connection.SQLQuery{Statement: "DELETE FROM t", Op: connection.OpDelete})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestExecuteWriteRejectsReadOp(t *testing.T) {
	a, _ := newAdapter(t)

	_, err := a.ExecuteWrite(context.Background(), connection.SQLQuery{Statement: "SELECT 1", Op: connection.OpRead})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestListResourcesQueriesInformationSchema(t *testing.T) {
	a, mock := newAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("BEGIN TRANSACTION READ ONLY").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"table_name"}).AddRow("users").AddRow("orders")
	mock.ExpectQuery("information_schema.tables").WillReturnRows(rows)
	mock.ExpectRollback()

	resources, err := a.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "users", resources[0].Name)
}

func TestGetDDLReconstructsPostgresCreateTable(t *testing.T) {
	a, mock := newAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("BEGIN TRANSACTION READ ONLY").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
		AddRow("id", "integer", "NO").
		AddRow("name", "text", "YES")
	mock.ExpectQuery("information_schema.columns").WillReturnRows(rows)
	mock.ExpectRollback()

	ddl, err := a.GetDDL(context.Background(), "users")
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE")
	assert.Contains(t, ddl, "NOT NULL")
}

func TestExplainQueryFormatsPlanRows(t *testing.T) {
	a, mock := newAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec("BEGIN TRANSACTION READ ONLY").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"plan"}).AddRow("Seq Scan on users")
	mock.ExpectQuery("EXPLAIN SELECT").WillReturnRows(rows)
	mock.ExpectRollback()

	plan, err := a.ExplainQuery(context.Background(), "SELECT * FROM users")
	require.NoError(t, err)
	assert.Contains(t, plan, "Seq Scan on users")
}

func TestExtractResourceNameVariants(t *testing.T) {
	a, _ := newAdapter(t)

	assert.Equal(t, "users", a.ExtractResourceName(connection.SQLQuery{Statement: "SELECT * FROM users WHERE id = 1"}))
	assert.Equal(t, "users", a.ExtractResourceName(connection.SQLQuery{Statement: `INSERT INTO "users" (id) VALUES (1)`}))
	assert.Equal(t, "users", a.ExtractResourceName(connection.SQLQuery{Statement: "UPDATE users SET x = 1"}))
	assert.Equal(t, "users", a.ExtractResourceName(connection.SQLQuery{Statement: "DELETE FROM users WHERE id = 1"}))
	assert.Equal(t, "unknown_table", a.ExtractResourceName(connection.SQLQuery{Statement: "PRAGMA table_info(x)"}))
}

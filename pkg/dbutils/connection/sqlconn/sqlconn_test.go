package sqlconn_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/sqlconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

func newMockConn(t *testing.T) (*sqlconn.Connection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	cfg := config.ConnectionConfig{Name: "test", Backend: config.BackendPostgres}

	return sqlconn.NewWithDB(cfg, db), mock
}

func TestExecuteReadWrapsInReadOnlyPreludeAndRollsBack(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectExec("BEGIN TRANSACTION READ ONLY").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)
	mock.ExpectRollback()

	result, err := conn.Execute(context.Background(), connection.SQLQuery{
		Statement: "SELECT id, name FROM users",
		Op:        connection.OpRead,
	})
	require.NoError(t, err)

	rr, ok := result.(*connection.RowsResult)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, rr.Columns)
	assert.Len(t, rr.Rows, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteWriteAutoCommitsOutsideTransaction(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET name").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := conn.Execute(context.Background(), connection.SQLQuery{
		Statement: "UPDATE users SET name = $1 WHERE id = $2",
		Op:        connection.OpUpdate,
	})
	require.NoError(t, err)

	er, ok := result.(*connection.ExecResult)
	require.True(t, ok)
	assert.Equal(t, int64(1), er.AffectedRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteWriteInsideTransactionLeavesCommitToCaller(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	_, err := conn.BeginTransaction(context.Background())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(7, 1))

	result, err := conn.Execute(context.Background(), connection.SQLQuery{
		Statement: "INSERT INTO users (name) VALUES ($1)",
		Op:        connection.OpInsert,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.(*connection.ExecResult).AffectedRows)

	mock.ExpectCommit()
	require.NoError(t, conn.Commit(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginTransactionTwiceCreatesSavepoint(t *testing.T) {
	conn, mock := newMockConn(t)

	mock.ExpectBegin()
	sp1, err := conn.BeginTransaction(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sp1)

	mock.ExpectExec("SAVEPOINT sp_1").WillReturnResult(sqlmock.NewResult(0, 0))
	sp2, err := conn.BeginTransaction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sp_1", sp2)

	mock.ExpectRollback()
	require.NoError(t, conn.Rollback(context.Background(), ""))
}

func TestCommitWithoutTransactionFails(t *testing.T) {
	conn, _ := newMockConn(t)

	err := conn.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindTransaction))
}

func TestIsReadStatementClassification(t *testing.T) {
	assert.True(t, sqlconn.IsReadStatement("  select * from t"))
	assert.True(t, sqlconn.IsReadStatement("-- comment\nEXPLAIN SELECT 1"))
	assert.False(t, sqlconn.IsReadStatement("DELETE FROM t"))
	assert.False(t, sqlconn.IsReadStatement("INSERT INTO t VALUES (1)"))
}

func TestBindNamedRewritesPostgresPlaceholders(t *testing.T) {
	d := sqlconn.DialectFor(config.BackendPostgres)

	stmt, args := d.BindNamed("SELECT * FROM t WHERE id = :id AND name = :name", map[string]any{
		"id":   1,
		"name": "a",
	})

	assert.Equal(t, "SELECT * FROM t WHERE id = $1 AND name = $2", stmt)
	assert.Equal(t, []any{1, "a"}, args)
}

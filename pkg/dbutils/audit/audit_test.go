package audit_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/audit"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
)

func newLog(t *testing.T) *audit.Log {
	t.Helper()
	return audit.New(filepath.Join(t.TempDir(), "audit.jsonl"))
}

func TestLogOperationFiltersOutReads(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.LogOperation("c1", "users", connection.OpRead, "alice", nil))

	logs, err := l.GetLogs(audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestLogOperationRecordsWrite(t *testing.T) {
	l := newLog(t)
	exec := &connection.ExecResult{AffectedRows: 3}
	require.NoError(t, l.LogOperation("c1", "users", connection.OpInsert, "alice", exec))

	logs, err := l.GetLogs(audit.Filter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.StatusSuccess, logs[0].Status)
	assert.Equal(t, int64(3), *logs[0].AffectedRows)
}

func TestLogFailedOperationRecordsError(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.LogFailedOperation("c1", "users", connection.OpDelete, "bob", assertError("boom")))

	logs, err := l.GetLogs(audit.Filter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, audit.StatusFailure, logs[0].Status)
	assert.Equal(t, "boom", logs[0].Error)
}

func TestGetLogsAppliesFiltersAndLimit(t *testing.T) {
	l := newLog(t)
	require.NoError(t, l.LogOperation("c1", "users", connection.OpInsert, "a", nil))
	require.NoError(t, l.LogOperation("c1", "orders", connection.OpUpdate, "a", nil))
	require.NoError(t, l.LogOperation("c2", "users", connection.OpInsert, "a", nil))

	logs, err := l.GetLogs(audit.Filter{Connection: "c1"})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = l.GetLogs(audit.Filter{Resource: "users"})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = l.GetLogs(audit.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestGetLogsOnMissingFileReturnsEmpty(t *testing.T) {
	l := audit.New(filepath.Join(t.TempDir(), "missing.jsonl"))

	logs, err := l.GetLogs(audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }

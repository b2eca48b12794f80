package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
	"github.com/dbutils-go/broker/pkg/dbutils/permission"
)

func TestValidateOperationRejectsUnknownOpKind(t *testing.T) {
	err := permission.ValidateOperation("BOGUS", "users", connection.SQLQuery{Statement: "SELECT 1", Op: "BOGUS"})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestValidateOperationRejectsEmptyResource(t *testing.T) {
	err := permission.ValidateOperation(connection.OpRead, "", connection.SQLQuery{Statement: "SELECT 1", Op: connection.OpRead})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestValidateOperationRejectsNilQuery(t *testing.T) {
	err := permission.ValidateOperation(connection.OpRead, "users", nil)
	require.Error(t, err)
}

func TestValidateOperationRejectsEmptyStatement(t *testing.T) {
	err := permission.ValidateOperation(connection.OpRead, "users", connection.SQLQuery{Statement: "  ", Op: connection.OpRead})
	require.Error(t, err)
}

func TestValidateOperationRejectsKeywordMismatch(t *testing.T) {
	err := permission.ValidateOperation(connection.OpDelete, "users",
		connection.SQLQuery{Statement: "SELECT * FROM users", Op: connection.OpRead})
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindQuery))
}

func TestValidateOperationAcceptsConsistentKeyword(t *testing.T) {
	err := permission.ValidateOperation(connection.OpDelete, "users",
		connection.SQLQuery{Statement: "DELETE FROM users WHERE id = 1", Op: connection.OpDelete})
	assert.NoError(t, err)
}

func TestValidateOperationSkipsKeywordCheckForNonSQL(t *testing.T) {
	err := permission.ValidateOperation(connection.OpRead, "users",
		connection.DocumentQuery{Collection: "users", Operation: connection.DocFind})
	assert.NoError(t, err)
}

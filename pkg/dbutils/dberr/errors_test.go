package dberr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

func TestRetryableOnlyConnection(t *testing.T) {
	assert.True(t, dberr.Connection("c1", "boom", nil).Retryable())
	assert.False(t, dberr.Database("boom", nil).Retryable())
	assert.False(t, dberr.Query("SELECT 1", "boom", nil).Retryable())
}

func TestWrappedCausePreserved(t *testing.T) {
	cause := errors.New("underlying")
	e := dberr.Transaction("rollback failed", cause)

	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "Transaction")
}

func TestIsKind(t *testing.T) {
	e := dberr.Permission("c1", "users", "DELETE", "no matching permission rule")

	assert.True(t, dberr.IsKind(e, dberr.KindPermission))
	assert.False(t, dberr.IsKind(e, dberr.KindQuery))

	kind, ok := dberr.As(e)
	assert.True(t, ok)
	assert.Equal(t, dberr.KindPermission, kind)
}

func TestPermissionMetadata(t *testing.T) {
	e := dberr.Permission("c2", "users", "DELETE", "no matching permission rule")

	assert.Equal(t, "users", e.Resource)
	assert.Equal(t, "DELETE", e.Operation)
	assert.Equal(t, "c2", e.Connection)
}

func TestResourceNotFoundMetadata(t *testing.T) {
	e := dberr.ResourceNotFound("widgets", "table not found")
	assert.Equal(t, "widgets", e.ResourceName)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadYAMLEmptyConnectionsFails(t *testing.T) {
	path := writeTemp(t, "connections: {}\n")

	_, err := config.LoadYAML(path)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestLoadYAMLMissingTypeFails(t *testing.T) {
	path := writeTemp(t, "connections:\n  main:\n    host: localhost\n")

	_, err := config.LoadYAML(path)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestLoadYAMLUnsupportedTypeFails(t *testing.T) {
	path := writeTemp(t, "connections:\n  main:\n    type: oracle\n")

	_, err := config.LoadYAML(path)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestLoadYAMLMongoWithoutURIOrDatabaseFails(t *testing.T) {
	path := writeTemp(t, "connections:\n  docs:\n    type: mongodb\n    host: localhost\n")

	_, err := config.LoadYAML(path)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestLoadYAMLValidSQLiteConnection(t *testing.T) {
	path := writeTemp(t, `
connections:
  local:
    type: sqlite
    path: /tmp/app.db
    writable: true
    write_permissions:
      default_policy: read_only
      tables:
        "users":
          allowed_ops: ["INSERT", "UPDATE"]
        "logs_*":
          allowed_ops: ["ALL"]
`)

	doc, err := config.LoadYAML(path)
	require.NoError(t, err)

	cc, err := doc.Get("local")
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cc.Backend)
	assert.True(t, cc.Writable)
	require.NotNil(t, cc.WritePermissions)
	assert.Equal(t, config.PolicyReadOnly, cc.WritePermissions.DefaultPolicy)
	assert.True(t, cc.WritePermissions.Rules["tables"]["users"].Allows("INSERT"))
	assert.True(t, cc.WritePermissions.Rules["tables"]["logs_*"].Allows("DELETE"))
}

func TestLoadYAMLFallsBackToEnvPortWhenFileOmitsIt(t *testing.T) {
	path := writeTemp(t, "connections:\n  primary:\n    type: postgres\n    host: localhost\n")

	t.Setenv("PRIMARY_PORT", "6432")

	doc, err := config.LoadYAML(path)
	require.NoError(t, err)

	cc, err := doc.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, 6432, cc.Port)
}

func TestLoadYAMLInvalidEnvPortFails(t *testing.T) {
	path := writeTemp(t, "connections:\n  primary:\n    type: postgres\n    host: localhost\n")

	t.Setenv("PRIMARY_PORT", "not-a-port")

	_, err := config.LoadYAML(path)
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestParsePortEmptyStringIsZero(t *testing.T) {
	port, err := config.ParsePort("")
	require.NoError(t, err)
	assert.Equal(t, 0, port)
}

func TestDocumentGetUnknownConnection(t *testing.T) {
	doc := config.Document{Connections: map[string]config.ConnectionConfig{
		"a": {Name: "a", Backend: config.BackendPostgres},
	}}

	_, err := doc.Get("missing")
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestDocumentGetEmptyConnections(t *testing.T) {
	doc := config.Document{}

	_, err := doc.Get("anything")
	require.Error(t, err)
	assert.True(t, dberr.IsKind(err, dberr.KindConfiguration))
}

func TestMaskedViewHidesPassword(t *testing.T) {
	cc := config.ConnectionConfig{Name: "pg", Backend: config.BackendPostgres, Password: "supersecret"}

	masked := cc.MaskedView()
	assert.Equal(t, "***", masked.Password)
	assert.NotEqual(t, cc.Password, masked.Password)
}

func TestMaskedViewStripsURICredentials(t *testing.T) {
	cc := config.ConnectionConfig{
		Name:    "redis",
		Backend: config.BackendRedis,
		URI:     "redis://user:pw@localhost:6379/0",
	}

	masked := cc.MaskedView()
	assert.NotContains(t, masked.URI, "pw")
	assert.Contains(t, masked.URI, "***")
}

func TestResourceClassPerBackend(t *testing.T) {
	assert.Equal(t, "tables", config.BackendPostgres.ResourceClass())
	assert.Equal(t, "collections", config.BackendMongoDB.ResourceClass())
	assert.Equal(t, "keys", config.BackendRedis.ResourceClass())
}

package stdioserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbutils-go/broker/internal/stdioserver"
)

type fakeRegistry struct {
	resultByTool map[string]string
	errByTool    map[string]error
}

func (f *fakeRegistry) ExecuteTool(_ context.Context, tool string, _ map[string]any) (string, error) {
	if err, ok := f.errByTool[tool]; ok {
		return "", err
	}

	return f.resultByTool[tool], nil
}

func TestServeDispatchesAndWritesTextResult(t *testing.T) {
	registry := &fakeRegistry{resultByTool: map[string]string{"dbutils-list-tables": "products\n"}}
	srv := stdioserver.New(registry, nil)

	in := strings.NewReader(`{"id":"1","tool":"dbutils-list-tables","arguments":{"connection":"c1"}}` + "\n")

	var out bytes.Buffer
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "1", resp["id"])
	assert.Nil(t, resp["error"])

	result, ok := resp["result"].([]any)
	require.True(t, ok)
	require.Len(t, result, 1)

	block, ok := result[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "text", block["type"])
	assert.Equal(t, "products\n", block["text"])
}

func TestServeReturnsMalformedRequestError(t *testing.T) {
	registry := &fakeRegistry{}
	srv := stdioserver.New(registry, nil)

	in := strings.NewReader("not json\n")

	var out bytes.Buffer
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))

	errObj, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errObj["message"], "malformed request")
}

func TestServeHandlesMultipleLinesInOrder(t *testing.T) {
	registry := &fakeRegistry{resultByTool: map[string]string{"a": "first\n", "b": "second\n"}}
	srv := stdioserver.New(registry, nil)

	in := strings.NewReader(
		`{"id":"1","tool":"a","arguments":{}}` + "\n" +
			`{"id":"2","tool":"b","arguments":{}}` + "\n")

	var out bytes.Buffer
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "1", first["id"])
	assert.Equal(t, "2", second["id"])
}

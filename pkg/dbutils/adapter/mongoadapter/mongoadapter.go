// Package mongoadapter implements the Adapter surface (spec §4.5) for
// MongoDB atop a mongoconn.Connection.
package mongoadapter

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/connection/mongoconn"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// sampleSize bounds the describe_resource field-schema sample (spec
// §4.5: "implementer's choice, e.g. 100").
const sampleSize = 100

// Adapter is the mongoadapter.Adapter implementation.
type Adapter struct {
	conn *mongoconn.Connection
}

// New wraps conn in an adapter.Adapter.
func New(conn *mongoconn.Connection) *Adapter {
	return &Adapter{conn: conn}
}

func (a *Adapter) ExecuteQuery(ctx context.Context, q connection.Query) (any, error) {
	dq, ok := q.(connection.DocumentQuery)
	if !ok {
		return nil, dberr.Query("", "mongoadapter received a non-document query", nil)
	}

	if dq.Kind() != connection.OpRead {
		return nil, dberr.Query(string(dq.Operation), "execute_query rejects a non-READ operation", nil)
	}

	return a.conn.Execute(ctx, dq)
}

func (a *Adapter) ExecuteWrite(ctx context.Context, q connection.Query) (any, error) {
	dq, ok := q.(connection.DocumentQuery)
	if !ok {
		return nil, dberr.Query("", "mongoadapter received a non-document query", nil)
	}

	if dq.Kind() == connection.OpRead {
		return nil, dberr.Query(string(dq.Operation), "execute_write rejects a READ operation", nil)
	}

	return a.conn.Execute(ctx, dq)
}

// ListResources enumerates collections in the bound database.
func (a *Adapter) ListResources(ctx context.Context) ([]adapter.ResourceInfo, error) {
	names, err := a.conn.Client().Database(a.conn.DatabaseName()).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, dberr.Database("listing collections failed", err)
	}

	out := make([]adapter.ResourceInfo, 0, len(names))

	for _, name := range names {
		out = append(out, adapter.ResourceInfo{Name: name, Type: "collection", Stats: map[string]any{}})
	}

	return out, nil
}

// DescribeResource infers a field schema by sampling up to sampleSize
// documents and unioning top-level field names/types (spec §4.5).
func (a *Adapter) DescribeResource(ctx context.Context, name string) (adapter.ResourceDescription, error) {
	coll := a.conn.Client().Database(a.conn.DatabaseName()).Collection(name)

	opts := options.Find().SetLimit(int64(sampleSize))

	cur, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return adapter.ResourceDescription{}, dberr.Database("sampling documents failed", err)
	}
	defer cur.Close(ctx)

	fieldTypes := map[string]string{}

	var sampled bool

	for cur.Next(ctx) {
		sampled = true

		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			continue
		}

		for k, v := range doc {
			if _, seen := fieldTypes[k]; !seen {
				fieldTypes[k] = bsonTypeName(v)
			}
		}
	}

	if !sampled {
		return adapter.ResourceDescription{}, dberr.ResourceNotFound(name, "collection not found or empty")
	}

	cols := make([]adapter.ColumnInfo, 0, len(fieldTypes))
	for field, typ := range fieldTypes {
		cols = append(cols, adapter.ColumnInfo{Name: field, Type: typ, Nullable: true})
	}

	return adapter.ResourceDescription{Columns: cols}, nil
}

// GetResourceStats maps to collStats (spec §4.5).
func (a *Adapter) GetResourceStats(ctx context.Context, name string) (map[string]any, error) {
	var result bson.M

	cmd := bson.D{{Key: "collStats", Value: name}}
	if err := a.conn.Client().Database(a.conn.DatabaseName()).RunCommand(ctx, cmd).Decode(&result); err != nil {
		return nil, dberr.ResourceNotFound(name, "collection not found")
	}

	return map[string]any{
		"count": result["count"],
		"size":  result["size"],
	}, nil
}

// ExtractResourceName returns the collection name carried directly by
// the abstract query — mongo queries always name their collection
// explicitly, so this never falls back to the sentinel in practice.
func (a *Adapter) ExtractResourceName(q connection.Query) string {
	dq, ok := q.(connection.DocumentQuery)
	if !ok || dq.Collection == "" {
		return adapter.UnknownResource
	}

	return dq.Collection
}

func bsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case bool:
		return "bool"
	case bson.M, map[string]any:
		return "object"
	case bson.A, []any:
		return "array"
	default:
		return "unknown"
	}
}

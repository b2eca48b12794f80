// Package adapter defines the uniform backend operation surface (spec
// §4.5) every concrete adapter (sqladapter, mongoadapter, redisadapter)
// implements atop a connection.Connection.
package adapter

import (
	"context"

	"github.com/dbutils-go/broker/pkg/dbutils/connection"
)

// ResourceInfo is one entry of list_resources: at minimum a name, a
// type tag, and backend-specific stats.
type ResourceInfo struct {
	Name  string
	Type  string
	Stats map[string]any
}

// ResourceDescription is the describe_resource payload: columns/fields/
// keys, indexes, and constraints/ttl, shaped per backend.
type ResourceDescription struct {
	Columns     []ColumnInfo
	Indexes     []IndexInfo
	Constraints []ConstraintInfo
}

// ColumnInfo describes one column/field.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

// IndexInfo describes one index.
type IndexInfo struct {
	Name    string
	Columns []string
	Unique  bool
	Method  string
}

// ConstraintInfo describes one constraint (PK/FK/unique/check).
type ConstraintInfo struct {
	Name       string
	Kind       string
	Columns    []string
	References string
}

// Adapter is the uniform surface every backend implements (spec §4.5).
// Stateless beyond its Connection reference; lifetime = one handler
// invocation.
type Adapter interface {
	// ExecuteQuery runs an abstract read query; rejects a non-READ query
	// with Query.
	ExecuteQuery(ctx context.Context, q connection.Query) (any, error)
	// ExecuteWrite runs an abstract write query; rejects a READ query
	// with Query.
	ExecuteWrite(ctx context.Context, q connection.Query) (any, error)
	// ListResources enumerates resources (tables/collections/keys).
	ListResources(ctx context.Context) ([]ResourceInfo, error)
	// DescribeResource returns a structural description.
	DescribeResource(ctx context.Context, name string) (ResourceDescription, error)
	// GetResourceStats returns size/count statistics.
	GetResourceStats(ctx context.Context, name string) (map[string]any, error)
	// ExtractResourceName extracts the resource name a query targets,
	// returning the sentinel UnknownResource on any parse failure —
	// never an error (used for logging and permission lookup only).
	ExtractResourceName(q connection.Query) string
}

// UnknownResource is the sentinel extract_resource_name returns when the
// resource name cannot be determined.
const UnknownResource = "unknown_table"

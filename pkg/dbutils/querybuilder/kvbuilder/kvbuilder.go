// Package kvbuilder implements the fluent key-value command assembler
// (spec §4.6): maps select/insert/update/delete/expire to the
// corresponding connection.KVCommand. where/order_by/limit/offset are
// accepted but ignored, kept only for API uniformity with the SQL and
// document builders.
package kvbuilder

import (
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
)

// Builder assembles a KVCommand for a single key.
type Builder struct {
	key string
}

// New constructs a Builder targeting key.
func New(key string) *Builder {
	return &Builder{key: key}
}

// Where is a no-op accepted for API uniformity with sqlbuilder/docbuilder.
func (b *Builder) Where(string, any) *Builder { return b }

// OrderBy is a no-op accepted for API uniformity.
func (b *Builder) OrderBy(...string) *Builder { return b }

// Limit is a no-op accepted for API uniformity.
func (b *Builder) Limit(uint64) *Builder { return b }

// Offset is a no-op accepted for API uniformity.
func (b *Builder) Offset(uint64) *Builder { return b }

// Select maps to GET.
func (b *Builder) Select() connection.KVCommand {
	return connection.KVCommand{Command: "GET", Key: b.key}
}

// InsertDict maps a field/value map to HSET.
func (b *Builder) InsertDict(fields map[string]any) connection.KVCommand {
	args := make([]any, 0, len(fields)*2)

	for k, v := range fields {
		args = append(args, k, v)
	}

	return connection.KVCommand{Command: "HSET", Key: b.key, Args: args}
}

// InsertScalar maps a plain value to SET.
func (b *Builder) InsertScalar(value any) connection.KVCommand {
	return connection.KVCommand{Command: "SET", Key: b.key, Args: []any{value}}
}

// Update maps to SET, same wire shape as InsertScalar (spec §4.6: a
// scalar key has no partial-update concept, so update replaces).
func (b *Builder) Update(value any) connection.KVCommand {
	return connection.KVCommand{Command: "SET", Key: b.key, Args: []any{value}}
}

// Delete maps to DEL.
func (b *Builder) Delete() connection.KVCommand {
	return connection.KVCommand{Command: "DEL", Key: b.key}
}

// Expire maps to EXPIRE with a TTL expressed in seconds.
func (b *Builder) Expire(seconds int64) connection.KVCommand {
	return connection.KVCommand{Command: "EXPIRE", Key: b.key, Args: []any{seconds}}
}

// Package docbuilder implements the fluent document-query assembler
// (spec §4.6): produces connection.DocumentQuery records, wrapping a
// plain field-map update as {$set: …} unless the caller already
// supplied an operator-keyed map.
package docbuilder

import (
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
)

// Builder assembles a DocumentQuery.
type Builder struct {
	collection string
	operation  connection.DocOperation
	filter     map[string]any
	update     map[string]any
	document   map[string]any
	documents  []any
	pipeline   []any
	field      string
	limit      int64
}

// New constructs a Builder targeting collection.
func New(collection string) *Builder {
	return &Builder{collection: collection}
}

func (b *Builder) Find(filter map[string]any) *Builder {
	b.operation = connection.DocFind
	b.filter = filter

	return b
}

func (b *Builder) FindOne(filter map[string]any) *Builder {
	b.operation = connection.DocFindOne
	b.filter = filter

	return b
}

func (b *Builder) Aggregate(pipeline []any) *Builder {
	b.operation = connection.DocAggregate
	b.pipeline = pipeline

	return b
}

func (b *Builder) Count(filter map[string]any) *Builder {
	b.operation = connection.DocCount
	b.filter = filter

	return b
}

func (b *Builder) Distinct(field string, filter map[string]any) *Builder {
	b.operation = connection.DocDistinct
	b.field = field
	b.filter = filter

	return b
}

func (b *Builder) InsertOne(document map[string]any) *Builder {
	b.operation = connection.DocInsertOne
	b.document = document

	return b
}

func (b *Builder) InsertMany(documents []any) *Builder {
	b.operation = connection.DocInsertMany
	b.documents = documents

	return b
}

// UpdateOne sets the update document, wrapping a plain field map as
// {$set: …} unless it already uses operator keys (spec §4.6).
func (b *Builder) UpdateOne(filter, update map[string]any) *Builder {
	b.operation = connection.DocUpdateOne
	b.filter = filter
	b.update = wrapSet(update)

	return b
}

func (b *Builder) UpdateMany(filter, update map[string]any) *Builder {
	b.operation = connection.DocUpdateMany
	b.filter = filter
	b.update = wrapSet(update)

	return b
}

func (b *Builder) DeleteOne(filter map[string]any) *Builder {
	b.operation = connection.DocDeleteOne
	b.filter = filter

	return b
}

func (b *Builder) DeleteMany(filter map[string]any) *Builder {
	b.operation = connection.DocDeleteMany
	b.filter = filter

	return b
}

func wrapSet(update map[string]any) map[string]any {
	for k := range update {
		if len(k) > 0 && k[0] == '$' {
			return update
		}
	}

	return map[string]any{"$set": update}
}

// Build assembles the final DocumentQuery.
func (b *Builder) Build() connection.DocumentQuery {
	params := map[string]any{}

	if b.filter != nil {
		params["filter"] = b.filter
	}

	if b.update != nil {
		params["update"] = b.update
	}

	if b.document != nil {
		params["document"] = b.document
	}

	if b.documents != nil {
		params["documents"] = b.documents
	}

	if b.pipeline != nil {
		params["pipeline"] = b.pipeline
	}

	if b.field != "" {
		params["field"] = b.field
	}

	if b.limit != 0 {
		params["limit"] = b.limit
	}

	return connection.DocumentQuery{Collection: b.collection, Operation: b.operation, Params: params}
}

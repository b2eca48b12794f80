// Package connection defines the Connection lifecycle contract (spec §4.3)
// shared by every backend-specific implementation (sqlconn, mongoconn,
// redisconn), plus the abstract query variants each Connection executes.
package connection

// OpKind is the closed set of operation kinds used for permission checks
// (spec §3, §4.7).
type OpKind string

// The four operation kinds.
const (
	OpRead   OpKind = "READ"
	OpInsert OpKind = "INSERT"
	OpUpdate OpKind = "UPDATE"
	OpDelete OpKind = "DELETE"
)

// QueryVariant distinguishes the three abstract query shapes.
type QueryVariant string

// The three query variants.
const (
	VariantSQL      QueryVariant = "sql"
	VariantDocument QueryVariant = "document"
	VariantKV       QueryVariant = "kv"
)

// SQLQuery is a parameterized statement plus its parameters. Exactly one
// of Named or Args is populated: Named carries `:name`-style parameters
// for sqlconn's dialect-native rebinding (hand-written callers); Args
// carries positional arguments already in the dialect's native
// placeholder order (query-builder output, which emits dialect-correct
// placeholders directly).
type SQLQuery struct {
	Statement string
	Named     map[string]any
	Args      []any
	Op        OpKind
}

func (SQLQuery) Variant() QueryVariant { return VariantSQL }

// Kind returns the operation kind for permission checks.
func (q SQLQuery) Kind() OpKind { return q.Op }

// DocOperation is the closed set of MongoDB-style operation tags.
type DocOperation string

// Supported document operations.
const (
	DocFind       DocOperation = "find"
	DocFindOne    DocOperation = "find_one"
	DocAggregate  DocOperation = "aggregate"
	DocInsertOne  DocOperation = "insert_one"
	DocInsertMany DocOperation = "insert_many"
	DocUpdateOne  DocOperation = "update_one"
	DocUpdateMany DocOperation = "update_many"
	DocDeleteOne  DocOperation = "delete_one"
	DocDeleteMany DocOperation = "delete_many"
	DocDistinct   DocOperation = "distinct"
	DocCount      DocOperation = "count"
)

// readDocOps is the closed read set for document operations (spec §4.5).
var readDocOps = map[DocOperation]bool{
	DocFind: true, DocFindOne: true, DocAggregate: true, DocDistinct: true, DocCount: true,
}

// DocumentQuery is a collection name + operation tag + parameter record.
type DocumentQuery struct {
	Collection string
	Operation  DocOperation
	Params     map[string]any
}

func (DocumentQuery) Variant() QueryVariant { return VariantDocument }

// Kind derives the operation kind from Operation per spec §4.5's document
// classification rule.
func (q DocumentQuery) Kind() OpKind {
	if readDocOps[q.Operation] {
		return OpRead
	}

	switch q.Operation {
	case DocInsertOne, DocInsertMany:
		return OpInsert
	case DocUpdateOne, DocUpdateMany:
		return OpUpdate
	case DocDeleteOne, DocDeleteMany:
		return OpDelete
	default:
		return OpRead
	}
}

// kvReadCommands is the closed read set for KV commands (spec §4.5).
var kvReadCommands = map[string]bool{
	"GET": true, "HGET": true, "HGETALL": true, "HMGET": true, "LRANGE": true,
	"SMEMBERS": true, "ZRANGE": true, "EXISTS": true, "TYPE": true, "TTL": true,
	"KEYS": true, "SCAN": true, "MGET": true, "STRLEN": true, "LLEN": true,
	"SCARD": true, "ZCARD": true, "HLEN": true, "MEMORY USAGE": true,
}

// KVCommand is a command name + key + argument list.
type KVCommand struct {
	Command string
	Key     string
	Args    []any
}

func (KVCommand) Variant() QueryVariant { return VariantKV }

// Kind classifies a KV command as READ if it is in the predefined read
// set, else a write kind derived from a best-effort verb match.
func (q KVCommand) Kind() OpKind {
	if kvReadCommands[q.Command] {
		return OpRead
	}

	switch q.Command {
	case "DEL", "HDEL", "LREM", "SREM", "ZREM", "EXPIRE":
		return OpDelete
	case "SET", "SETNX", "SETEX", "HSET", "HMSET", "LPUSH", "RPUSH", "SADD", "ZADD":
		return OpInsert
	case "INCR", "DECR", "INCRBY", "DECRBY", "APPEND":
		return OpUpdate
	default:
		return OpInsert
	}
}

// Query is implemented by SQLQuery, DocumentQuery, and KVCommand — the
// three abstract query variants of spec §3.
type Query interface {
	Variant() QueryVariant
	Kind() OpKind
}

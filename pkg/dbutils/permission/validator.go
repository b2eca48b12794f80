package permission

import (
	"strings"

	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// validOps is the closed set of operation kinds (spec §4.8a).
var validOps = map[connection.OpKind]bool{
	connection.OpRead: true, connection.OpInsert: true, connection.OpUpdate: true, connection.OpDelete: true,
}

// keywordForOp maps a SQL statement's first keyword to the operation
// kind it must be consistent with (spec §4.8d).
var keywordForOp = map[string]connection.OpKind{
	"SELECT": connection.OpRead,
	"INSERT": connection.OpInsert,
	"UPDATE": connection.OpUpdate,
	"DELETE": connection.OpDelete,
}

// ValidateOperation guards the adapter entry point per spec §4.8: op must
// be in the closed set, resource must be non-empty, query must be
// non-empty, and — for SQL queries — the statement's first keyword must
// be consistent with op. All failures are Query errors, never Permission:
// a validator failure means the caller wired arguments incorrectly.
func ValidateOperation(op connection.OpKind, resource string, q connection.Query) error {
	if !validOps[op] {
		return dberr.Query("", "unknown operation kind \""+string(op)+"\"", nil)
	}

	if resource == "" {
		return dberr.Query("", "resource name is empty", nil)
	}

	if q == nil {
		return dberr.Query("", "query is empty", nil)
	}

	sq, ok := q.(connection.SQLQuery)
	if !ok {
		return nil
	}

	if strings.TrimSpace(sq.Statement) == "" {
		return dberr.Query(sq.Statement, "query is empty", nil)
	}

	keyword := firstKeyword(sq.Statement)

	wantOp, known := keywordForOp[keyword]
	if known && wantOp != op {
		return dberr.Query(sq.Statement, "first keyword \""+keyword+"\" inconsistent with operation \""+string(op)+"\"", nil)
	}

	return nil
}

func firstKeyword(statement string) string {
	trimmed := strings.TrimSpace(statement)

	end := strings.IndexFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '('
	})
	if end < 0 {
		end = len(trimmed)
	}

	return strings.ToUpper(trimmed[:end])
}

// Package sqlconn implements the Connection contract (spec §4.3) for the
// three SQL backends — sqlite, postgres, mysql — behind one
// database/sql-based struct, differing only in dialect.
package sqlconn

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
)

// Dialect captures the per-backend differences spec §4.3/§4.5 call out:
// driver name, named-parameter placeholder style, identifier quoting, and
// the read-only transaction prelude.
type Dialect struct {
	DriverName       string
	HealthProbe      string
	ReadOnlyPrelude  string
	IdentifierQuote  string
	Placeholder      func(index int) string
}

// DialectFor returns the Dialect for a backend kind. Callers must only
// pass one of BackendSQLite/BackendPostgres/BackendMySQL.
func DialectFor(kind config.BackendKind) Dialect {
	switch kind {
	case config.BackendPostgres:
		return Dialect{
			DriverName:      "pgx",
			HealthProbe:     "SELECT 1",
			ReadOnlyPrelude: "BEGIN TRANSACTION READ ONLY",
			IdentifierQuote: `"`,
			Placeholder:     func(i int) string { return "$" + strconv.Itoa(i) },
		}
	case config.BackendMySQL:
		return Dialect{
			DriverName:      "mysql",
			HealthProbe:     "SELECT 1",
			ReadOnlyPrelude: "SET TRANSACTION READ ONLY",
			IdentifierQuote: "`",
			Placeholder:     func(int) string { return "?" },
		}
	default:
		return Dialect{
			DriverName:      "sqlite",
			HealthProbe:     "SELECT 1",
			ReadOnlyPrelude: "BEGIN TRANSACTION READ ONLY",
			IdentifierQuote: `"`,
			Placeholder:     func(int) string { return "?" },
		}
	}
}

// QuoteIdent quotes an identifier in the dialect's style.
func (d Dialect) QuoteIdent(name string) string {
	return d.IdentifierQuote + name + d.IdentifierQuote
}

var namedParamPattern = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// BindNamed rewrites a statement's `:name` placeholders into the
// dialect's native positional style, returning the rewritten statement
// and the argument slice in the order the driver expects. Names missing
// from named are bound as nil, which the driver sends as SQL NULL; no
// error is raised for them.
func (d Dialect) BindNamed(statement string, named map[string]any) (string, []any) {
	if len(named) == 0 || !strings.Contains(statement, ":") {
		return statement, nil
	}

	var args []any

	n := 0

	rewritten := namedParamPattern.ReplaceAllStringFunc(statement, func(tok string) string {
		name := tok[1:]
		n++
		args = append(args, named[name])

		return d.Placeholder(n)
	})

	return rewritten, args
}

// firstKeyword extracts the leading SQL keyword after stripping leading
// whitespace and `--`/`/* */` comments, upper-cased, for READ/WRITE
// classification (spec §4.5).
func firstKeyword(statement string) string {
	s := strings.TrimSpace(statement)

	for {
		switch {
		case strings.HasPrefix(s, "--"):
			if idx := strings.IndexByte(s, '\n'); idx >= 0 {
				s = strings.TrimSpace(s[idx+1:])
				continue
			}

			return ""
		case strings.HasPrefix(s, "/*"):
			if idx := strings.Index(s, "*/"); idx >= 0 {
				s = strings.TrimSpace(s[idx+2:])
				continue
			}

			return ""
		}

		break
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	return strings.ToUpper(fields[0])
}

var readKeywords = map[string]bool{"SELECT": true, "SHOW": true, "DESCRIBE": true, "EXPLAIN": true}

// IsReadStatement reports whether statement's first keyword marks it a
// read, per spec §4.5's classification rule.
func IsReadStatement(statement string) bool {
	return readKeywords[firstKeyword(statement)]
}

// Package sqlbuilder implements the fluent SQL query builder (spec §4.6)
// atop Masterminds/squirrel, translating an abstract query description
// into a dialect-correct connection.SQLQuery.
package sqlbuilder

import (
	"fmt"
	"reflect"

	sq "github.com/Masterminds/squirrel"

	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Operator is the closed set of WHERE-condition operators spec §4.6
// names.
type Operator string

// Supported operators.
const (
	OpEq          Operator = "="
	OpNeq         Operator = "<>"
	OpLt          Operator = "<"
	OpLte         Operator = "<="
	OpGt          Operator = ">"
	OpGte         Operator = ">="
	OpIn          Operator = "IN"
	OpNotIn       Operator = "NOT IN"
	OpLike        Operator = "LIKE"
	OpNotLike     Operator = "NOT LIKE"
	OpBetween     Operator = "BETWEEN"
	OpNotBetween  Operator = "NOT BETWEEN"
	OpIsNull      Operator = "IS NULL"
	OpIsNotNull   Operator = "IS NOT NULL"
)

// JoinKind is the closed set of JOIN kinds.
type JoinKind string

// Supported join kinds.
const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
	JoinCross JoinKind = "CROSS"
)

// Join is one JOIN clause with an explicit ON predicate.
type Join struct {
	Kind  JoinKind
	Table string
	On    string
}

// Condition is one explicit (field, operator, value) WHERE term.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Builder assembles a SELECT/INSERT/UPDATE/DELETE statement for one
// dialect. Zero value is not usable; use New.
type Builder struct {
	backend           config.BackendKind
	placeholderFormat sq.PlaceholderFormat

	queryType    string // SELECT | INSERT | UPDATE | DELETE
	resourceName string

	fields  []string
	joins   []Join
	eqWhere map[string]any
	conds   []Condition
	groupBy []string
	having  []Condition
	orderBy []string
	limit   *uint64
	offset  *uint64

	insertValues map[string]any
	updateValues map[string]any
}

// New constructs a Builder for backend's dialect.
func New(backend config.BackendKind) *Builder {
	format := sq.Question
	if backend == config.BackendPostgres {
		format = sq.Dollar
	}

	return &Builder{backend: backend, placeholderFormat: format, eqWhere: map[string]any{}}
}

// Select sets the query type to SELECT against resourceName, with an
// optional explicit field list (all fields if empty).
func (b *Builder) Select(resourceName string, fields ...string) *Builder {
	b.queryType = "SELECT"
	b.resourceName = resourceName
	b.fields = fields

	return b
}

// Insert sets the query type to INSERT against resourceName with the
// given column values.
func (b *Builder) Insert(resourceName string, values map[string]any) *Builder {
	b.queryType = "INSERT"
	b.resourceName = resourceName
	b.insertValues = values

	return b
}

// Update sets the query type to UPDATE against resourceName with the
// given column values.
func (b *Builder) Update(resourceName string, values map[string]any) *Builder {
	b.queryType = "UPDATE"
	b.resourceName = resourceName
	b.updateValues = values

	return b
}

// Delete sets the query type to DELETE against resourceName.
func (b *Builder) Delete(resourceName string) *Builder {
	b.queryType = "DELETE"
	b.resourceName = resourceName

	return b
}

// Join adds a JOIN clause.
func (b *Builder) Join(kind JoinKind, table, on string) *Builder {
	b.joins = append(b.joins, Join{Kind: kind, Table: table, On: on})
	return b
}

// WhereEq adds a simple equality condition.
func (b *Builder) WhereEq(field string, value any) *Builder {
	b.eqWhere[field] = value
	return b
}

// Where adds an explicit (field, operator, value) condition.
func (b *Builder) Where(field string, op Operator, value any) *Builder {
	b.conds = append(b.conds, Condition{Field: field, Operator: op, Value: value})
	return b
}

// GroupBy appends group-by fields.
func (b *Builder) GroupBy(fields ...string) *Builder {
	b.groupBy = append(b.groupBy, fields...)
	return b
}

// Having adds a HAVING condition.
func (b *Builder) Having(field string, op Operator, value any) *Builder {
	b.having = append(b.having, Condition{Field: field, Operator: op, Value: value})
	return b
}

// OrderBy appends order-by terms (e.g. "name DESC").
func (b *Builder) OrderBy(terms ...string) *Builder {
	b.orderBy = append(b.orderBy, terms...)
	return b
}

// Limit sets LIMIT.
func (b *Builder) Limit(n uint64) *Builder {
	b.limit = &n
	return b
}

// Offset sets OFFSET.
func (b *Builder) Offset(n uint64) *Builder {
	b.offset = &n
	return b
}

// Build validates and assembles the final SQLQuery. A missing query_type
// or resource_name is a Query error (spec §4.6).
func (b *Builder) Build() (connection.SQLQuery, error) {
	if b.queryType == "" || b.resourceName == "" {
		return connection.SQLQuery{}, dberr.Query("", "build without query_type and resource_name", nil)
	}

	if err := b.validateConditions(); err != nil {
		return connection.SQLQuery{}, err
	}

	switch b.queryType {
	case "SELECT":
		return b.buildSelect()
	case "INSERT":
		return b.buildInsert()
	case "UPDATE":
		return b.buildUpdate()
	case "DELETE":
		return b.buildDelete()
	default:
		return connection.SQLQuery{}, dberr.Query("", fmt.Sprintf("unknown query_type %q", b.queryType), nil)
	}
}

// validateConditions enforces spec §4.6: IN/NOT IN values must be a
// non-empty list; BETWEEN values must be a two-element list.
func (b *Builder) validateConditions() error {
	for _, c := range append(append([]Condition{}, b.conds...), b.having...) {
		switch c.Operator {
		case OpIn, OpNotIn:
			if !isList(c.Value) {
				return dberr.Query("", fmt.Sprintf("%s requires a list value for field %q", c.Operator, c.Field), nil)
			}

			if reflect.ValueOf(c.Value).Len() == 0 {
				return dberr.Query("", fmt.Sprintf("%s requires a non-empty list for field %q", c.Operator, c.Field), nil)
			}
		case OpBetween, OpNotBetween:
			list, ok := c.Value.([]any)
			if !ok || len(list) != 2 {
				return dberr.Query("", fmt.Sprintf("%s requires a two-element list for field %q", c.Operator, c.Field), nil)
			}
		}
	}

	return nil
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string, []int, []int64:
		return true
	default:
		return false
	}
}

func (b *Builder) selectBuilder() sq.SelectBuilder {
	cols := b.fields
	if len(cols) == 0 {
		cols = []string{"*"}
	}

	sb := sq.StatementBuilder.PlaceholderFormat(b.placeholderFormat).
		Select(cols...).
		From(b.resourceName)

	for _, j := range b.joins {
		clause := fmt.Sprintf("%s ON %s", j.Table, j.On)

		switch j.Kind {
		case JoinLeft:
			sb = sb.LeftJoin(clause)
		case JoinRight:
			sb = sb.RightJoin(clause)
		case JoinFull:
			sb = sb.JoinClause("FULL JOIN " + clause)
		case JoinCross:
			sb = sb.JoinClause("CROSS JOIN " + clause)
		default:
			sb = sb.Join(clause)
		}
	}

	sb = b.applyWhere(sb)

	if len(b.groupBy) > 0 {
		sb = sb.GroupBy(b.groupBy...)
	}

	for _, h := range b.having {
		sb = sb.Having(conditionSQL(h), conditionArgs(h)...)
	}

	if len(b.orderBy) > 0 {
		sb = sb.OrderBy(b.orderBy...)
	}

	if b.limit != nil {
		sb = sb.Limit(*b.limit)
	}

	if b.offset != nil {
		sb = sb.Offset(*b.offset)
	}

	return sb
}

func (b *Builder) applyWhere(sb sq.SelectBuilder) sq.SelectBuilder {
	if len(b.eqWhere) > 0 {
		sb = sb.Where(sq.Eq(b.eqWhere))
	}

	for _, c := range b.conds {
		sb = sb.Where(conditionSQL(c), conditionArgs(c)...)
	}

	return sb
}

func conditionSQL(c Condition) string {
	switch c.Operator {
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", c.Field)
	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", c.Field)
	case OpIn:
		return fmt.Sprintf("%s IN (?)", c.Field)
	case OpNotIn:
		return fmt.Sprintf("%s NOT IN (?)", c.Field)
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN ? AND ?", c.Field)
	case OpNotBetween:
		return fmt.Sprintf("%s NOT BETWEEN ? AND ?", c.Field)
	default:
		return fmt.Sprintf("%s %s ?", c.Field, c.Operator)
	}
}

func conditionArgs(c Condition) []any {
	switch c.Operator {
	case OpIsNull, OpIsNotNull:
		return nil
	case OpBetween, OpNotBetween:
		list, _ := c.Value.([]any)
		return list
	default:
		return []any{c.Value}
	}
}

func (b *Builder) buildSelect() (connection.SQLQuery, error) {
	stmt, args, err := b.selectBuilder().ToSql()
	if err != nil {
		return connection.SQLQuery{}, dberr.Query(stmt, "building select failed", err)
	}

	return connection.SQLQuery{Statement: stmt, Args: nonNilArgs(args), Op: connection.OpRead}, nil
}

func (b *Builder) buildInsert() (connection.SQLQuery, error) {
	cols := make([]string, 0, len(b.insertValues))
	vals := make([]any, 0, len(b.insertValues))

	for k, v := range b.insertValues {
		cols = append(cols, k)
		vals = append(vals, v)
	}

	stmt, args, err := sq.StatementBuilder.PlaceholderFormat(b.placeholderFormat).
		Insert(b.resourceName).Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return connection.SQLQuery{}, dberr.Query(stmt, "building insert failed", err)
	}

	return connection.SQLQuery{Statement: stmt, Args: nonNilArgs(args), Op: connection.OpInsert}, nil
}

func (b *Builder) buildUpdate() (connection.SQLQuery, error) {
	ub := sq.StatementBuilder.PlaceholderFormat(b.placeholderFormat).Update(b.resourceName)

	for k, v := range b.updateValues {
		ub = ub.Set(k, v)
	}

	if len(b.eqWhere) > 0 {
		ub = ub.Where(sq.Eq(b.eqWhere))
	}

	for _, c := range b.conds {
		ub = ub.Where(conditionSQL(c), conditionArgs(c)...)
	}

	stmt, args, err := ub.ToSql()
	if err != nil {
		return connection.SQLQuery{}, dberr.Query(stmt, "building update failed", err)
	}

	return connection.SQLQuery{Statement: stmt, Args: nonNilArgs(args), Op: connection.OpUpdate}, nil
}

func (b *Builder) buildDelete() (connection.SQLQuery, error) {
	db := sq.StatementBuilder.PlaceholderFormat(b.placeholderFormat).Delete(b.resourceName)

	if len(b.eqWhere) > 0 {
		db = db.Where(sq.Eq(b.eqWhere))
	}

	for _, c := range b.conds {
		db = db.Where(conditionSQL(c), conditionArgs(c)...)
	}

	stmt, args, err := db.ToSql()
	if err != nil {
		return connection.SQLQuery{}, dberr.Query(stmt, "building delete failed", err)
	}

	return connection.SQLQuery{Statement: stmt, Args: nonNilArgs(args), Op: connection.OpDelete}, nil
}

// nonNilArgs guarantees a non-nil Args slice (even when empty) so
// sqlconn's Execute can tell "builder output with no params" apart from
// "hand-written named-parameter statement" purely by nil-ness of Args.
func nonNilArgs(args []any) []any {
	if len(args) == 0 {
		return []any{}
	}

	return args
}

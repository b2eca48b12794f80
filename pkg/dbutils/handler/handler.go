// Package handler implements the per-call orchestrator (spec §4.11,
// §6): binds configuration, pool, adapter, permission, validation, retry
// and audit into the tool surface the stdio server dispatches against.
package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbutils-go/broker/pkg/dbutils/adapter"
	"github.com/dbutils-go/broker/pkg/dbutils/adapter/sqladapter"
	"github.com/dbutils-go/broker/pkg/dbutils/adapterfactory"
	"github.com/dbutils-go/broker/pkg/dbutils/audit"
	"github.com/dbutils-go/broker/pkg/dbutils/config"
	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
	"github.com/dbutils-go/broker/pkg/dbutils/permission"
	"github.com/dbutils-go/broker/pkg/dbutils/pool"
	"github.com/dbutils-go/broker/pkg/dbutils/retry"
	"github.com/dbutils-go/broker/pkg/mlog"
)

// ConfirmWriteToken is the literal confirmation string dbutils-execute-write
// requires (spec §6).
const ConfirmWriteToken = "CONFIRM_WRITE"

// ToolRegistry is the dispatch surface internal/stdioserver invokes
// against; Handler implements it.
type ToolRegistry interface {
	ExecuteTool(ctx context.Context, tool string, args map[string]any) (string, error)
}

// Handler is the per-process orchestrator binding C2–C10 (spec §4.11).
type Handler struct {
	docs   config.Document
	pool   *pool.Pool
	audit  *audit.Log
	retry  retry.Config
	logger mlog.Logger
	stats  *callStats
}

// New constructs a Handler. audit may be nil to disable audit logging
// (e.g. in tests exercising only the read path).
func New(docs config.Document, p *pool.Pool, auditLog *audit.Log, logger mlog.Logger) *Handler {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &Handler{docs: docs, pool: p, audit: auditLog, retry: retry.DefaultConfig(), logger: logger, stats: newCallStats()}
}

// ExecuteTool dispatches tool against args, implementing the state
// machine: Created → ConfigLoaded → ConnectionAcquired → Validated →
// Authorised → Executing → (Success|Failed) → AuditEmitted → StatsEmitted
// → Released (spec §4.11). Every call increments the query counter and
// timer, updates the result-size stat on success or the error histogram
// on failure, and emits one structured log line carrying the stat
// snapshot before returning.
func (h *Handler) ExecuteTool(ctx context.Context, tool string, args map[string]any) (result string, err error) {
	start := time.Now()

	var connName string

	defer func() {
		dur := time.Since(start)

		if err != nil {
			kind, ok := dberr.As(err)
			if !ok {
				kind = dberr.KindDatabase
			}

			snap := h.stats.recordFailure(dur, string(kind))
			h.logger.WithFields(
				"tool", tool, "connection", connName, "duration", dur, "error_kind", string(kind),
				"stat_query_count", snap.queryCount, "stat_total_duration", snap.totalDuration,
				"stat_error_counts", snap.errorCounts,
			).Info("dbutils-broker tool call failed")

			return
		}

		snap := h.stats.recordSuccess(dur, len(result))
		h.logger.WithFields(
			"tool", tool, "connection", connName, "duration", dur, "result_size", len(result),
			"stat_query_count", snap.queryCount, "stat_total_duration", snap.totalDuration,
			"stat_last_result_size", snap.lastResultSize,
		).Info("dbutils-broker tool call succeeded")
	}()

	connName, err = stringArg(args, "connection")
	if err != nil {
		return "", err
	}

	cc, err := h.docs.Get(connName)
	if err != nil {
		return "", err
	}

	conn, err := h.pool.Get(ctx, connName)
	if err != nil {
		return "", err
	}
	defer h.pool.Release(ctx, connName)

	a, err := adapterfactory.New(conn)
	if err != nil {
		return "", err
	}

	switch tool {
	case "dbutils-run-query":
		return h.runQuery(ctx, connName, cc, a, args)
	case "dbutils-list-tables":
		return h.listTables(ctx, cc, a)
	case "dbutils-describe-table":
		return h.describeTable(ctx, cc, a, args)
	case "dbutils-get-ddl":
		return h.getDDL(ctx, cc, a, args)
	case "dbutils-list-indexes":
		return h.listIndexes(ctx, cc, a, args)
	case "dbutils-get-stats":
		return h.getStats(ctx, cc, a, args)
	case "dbutils-list-constraints":
		return h.listConstraints(ctx, cc, a, args)
	case "dbutils-explain-query":
		return h.explainQuery(ctx, cc, a, args)
	case "dbutils-execute-write":
		return h.executeWrite(ctx, connName, cc, a, args)
	case "dbutils-get-audit-logs":
		return h.getAuditLogs(args)
	default:
		return "", dberr.Query("", fmt.Sprintf("unknown tool %q", tool), nil)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", dberr.Query("", fmt.Sprintf("missing required argument %q", key), nil)
	}

	s, ok := v.(string)
	if !ok {
		return "", dberr.Query("", fmt.Sprintf("argument %q must be a string", key), nil)
	}

	return s, nil
}

func optionalStringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

// runQuery is the SELECT-only tool: non-SELECT statements fail with a
// Configuration error (spec §6).
func (h *Handler) runQuery(ctx context.Context, connName string, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	sqlText, err := stringArg(args, "sql")
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlText)), "SELECT") {
		return "", dberr.Configuration("dbutils-run-query accepts SELECT statements only", nil)
	}

	q := connection.SQLQuery{Statement: sqlText, Op: connection.OpRead}

	if err := permission.ValidateOperation(connection.OpRead, a.ExtractResourceName(q), q); err != nil {
		return "", err
	}

	var result any

	err = retry.Do(ctx, h.retry, func(ctx context.Context) error {
		var execErr error
		result, execErr = a.ExecuteQuery(ctx, q)

		return execErr
	})
	if err != nil {
		return "", err
	}

	return formatRows(result), nil
}

func (h *Handler) listTables(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter) (string, error) {
	resources, err := a.ListResources(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "[%s]\n", cc.Backend)

	for _, r := range resources {
		b.WriteString(r.Name)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (h *Handler) describeTable(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	table, err := stringArg(args, "table")
	if err != nil {
		return "", err
	}

	desc, err := a.DescribeResource(ctx, table)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	fmt.Fprintf(&b, "table %s\n", table)

	for _, c := range desc.Columns {
		nullability := "NOT NULL"
		if c.Nullable {
			nullability = "NULL"
		}

		fmt.Fprintf(&b, "  %s %s %s\n", c.Name, c.Type, nullability)
	}

	return b.String(), nil
}

func (h *Handler) getDDL(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	table, err := stringArg(args, "table")
	if err != nil {
		return "", err
	}

	sa, ok := a.(*sqladapter.Adapter)
	if !ok {
		return "", dberr.NotImplemented("dbutils-get-ddl is only available for SQL connections")
	}

	return sa.GetDDL(ctx, table)
}

func (h *Handler) listIndexes(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	table, err := stringArg(args, "table")
	if err != nil {
		return "", err
	}

	desc, err := a.DescribeResource(ctx, table)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, idx := range desc.Indexes {
		fmt.Fprintf(&b, "%s columns=%v unique=%v method=%s\n", idx.Name, idx.Columns, idx.Unique, idx.Method)
	}

	return b.String(), nil
}

func (h *Handler) getStats(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	table, err := stringArg(args, "table")
	if err != nil {
		return "", err
	}

	stats, err := a.GetResourceStats(ctx, table)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for k, v := range stats {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}

	return b.String(), nil
}

func (h *Handler) listConstraints(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	table, err := stringArg(args, "table")
	if err != nil {
		return "", err
	}

	desc, err := a.DescribeResource(ctx, table)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, c := range desc.Constraints {
		fmt.Fprintf(&b, "%s (%s) columns=%v references=%s\n", c.Name, c.Kind, c.Columns, c.References)
	}

	return b.String(), nil
}

func (h *Handler) explainQuery(ctx context.Context, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	sqlText, err := stringArg(args, "sql")
	if err != nil {
		return "", err
	}

	sa, ok := a.(*sqladapter.Adapter)
	if !ok {
		return "", dberr.NotImplemented("dbutils-explain-query is only available for SQL connections")
	}

	return sa.ExplainQuery(ctx, sqlText)
}

// executeWrite is the guarded write path: confirmation token, then
// validation, then permission check, then execution, then audit (spec §6,
// scenarios 2-3).
func (h *Handler) executeWrite(ctx context.Context, connName string, cc config.ConnectionConfig, a adapter.Adapter, args map[string]any) (string, error) {
	sqlText, err := stringArg(args, "sql")
	if err != nil {
		return "", err
	}

	confirmation := optionalStringArg(args, "confirmation")
	if confirmation != ConfirmWriteToken {
		return "", dberr.Configuration("confirmation required: pass confirmation=\"CONFIRM_WRITE\"", nil)
	}

	op := opKindOf(sqlText)
	q := connection.SQLQuery{Statement: sqlText, Op: op}
	resource := a.ExtractResourceName(q)

	if err := permission.ValidateOperation(op, resource, q); err != nil {
		return "", err
	}

	if err := permission.Check(connName, &cc, resource, op); err != nil {
		if h.audit != nil {
			_ = h.audit.LogFailedOperation(connName, resource, op, "", err)
		}

		return "", err
	}

	var result any

	execErr := retry.Do(ctx, h.retry, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = a.ExecuteWrite(ctx, q)

		return innerErr
	})

	if h.audit != nil {
		if execErr != nil {
			_ = h.audit.LogFailedOperation(connName, resource, op, "", execErr)
		} else if res, ok := result.(*connection.ExecResult); ok {
			_ = h.audit.LogOperation(connName, resource, op, "", res)
		}
	}

	if execErr != nil {
		return "", execErr
	}

	res, _ := result.(*connection.ExecResult)

	return formatExecResult(res), nil
}

func (h *Handler) getAuditLogs(args map[string]any) (string, error) {
	if h.audit == nil {
		return "", dberr.NotImplemented("audit logging is not enabled for this process")
	}

	filter := audit.Filter{
		Connection: optionalStringArg(args, "connection"),
		Resource:   optionalStringArg(args, "table"),
		Operation:  connection.OpKind(optionalStringArg(args, "operation_type")),
		Status:     audit.Status(optionalStringArg(args, "status")),
	}

	if limit, ok := args["limit"].(int); ok {
		filter.Limit = limit
	} else if limitF, ok := args["limit"].(float64); ok {
		filter.Limit = int(limitF)
	}

	logs, err := h.audit.GetLogs(filter)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, rec := range logs {
		fmt.Fprintf(&b, "%s %s %s %s %s\n", rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"), rec.Connection, rec.Resource, rec.Operation, rec.Status)
	}

	return b.String(), nil
}

func opKindOf(statement string) connection.OpKind {
	trimmed := strings.ToUpper(strings.TrimSpace(statement))

	switch {
	case strings.HasPrefix(trimmed, "INSERT"):
		return connection.OpInsert
	case strings.HasPrefix(trimmed, "UPDATE"):
		return connection.OpUpdate
	case strings.HasPrefix(trimmed, "DELETE"):
		return connection.OpDelete
	default:
		return connection.OpRead
	}
}

func formatRows(result any) string {
	rows, ok := result.(*connection.RowsResult)
	if !ok || rows == nil {
		return "rows = []\n"
	}

	var b strings.Builder

	b.WriteString("rows = [")

	for i, row := range rows.Rows {
		if i > 0 {
			b.WriteString(", ")
		}

		b.WriteString("{")

		for j, col := range rows.Columns {
			if j > 0 {
				b.WriteString(", ")
			}

			fmt.Fprintf(&b, "%s:%v", col, row[j])
		}

		b.WriteString("}")
	}

	b.WriteString("]\n")

	return b.String()
}

func formatExecResult(res *connection.ExecResult) string {
	if res == nil {
		return "ok\n"
	}

	plural := "s"
	if res.AffectedRows == 1 {
		plural = ""
	}

	msg := fmt.Sprintf("%d row%s affected", res.AffectedRows, plural)

	if res.LastInsertID != nil {
		msg = fmt.Sprintf("%s, last_insert_id=%d", msg, *res.LastInsertID)
	}

	return msg + "\n"
}

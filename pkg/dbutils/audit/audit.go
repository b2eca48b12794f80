// Package audit implements the append-only JSONL audit log (spec §4.9):
// one JSON object per line, writes serialised behind a mutex and an
// inter-process file lock, reads filtered and streamed back in order.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/dbutils-go/broker/pkg/dbutils/connection"
	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
)

// Status is the outcome of an audited operation.
type Status string

// The two possible outcomes (spec §3: status ∈ {SUCCESS, FAILED}).
const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILED"
)

// Record is one audit log entry (spec §4.9).
type Record struct {
	ID           uuid.UUID         `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Connection   string            `json:"connection"`
	Resource     string            `json:"resource"`
	Operation    connection.OpKind `json:"operation"`
	User         string            `json:"user,omitempty"`
	Status       Status            `json:"status"`
	AffectedRows *int64            `json:"affected_rows,omitempty"`
	LastInsertID *int64            `json:"last_insert_id,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Filter narrows get_logs (spec §4.9): zero-value fields are not applied.
type Filter struct {
	Connection string
	Resource   string
	Operation  connection.OpKind
	Status     Status
	Limit      int
}

func (f Filter) matches(r Record) bool {
	if f.Connection != "" && f.Connection != r.Connection {
		return false
	}

	if f.Resource != "" && f.Resource != r.Resource {
		return false
	}

	if f.Operation != "" && f.Operation != r.Operation {
		return false
	}

	if f.Status != "" && f.Status != r.Status {
		return false
	}

	return true
}

// Log is the append-only audit writer/reader bound to one file path.
// Writes are serialised by both an in-process mutex (fast path for
// concurrent goroutines) and a gofrs/flock file lock (cross-process
// safety, matching the teacher pack's lock-file convention), since the
// broker process and any external tooling reading the same file must
// never interleave a partial JSON line.
type Log struct {
	mu       sync.Mutex
	path     string
	lockPath string
}

// New binds a Log to path. The file (and its ".lock" sibling) are
// created lazily on first write.
func New(path string) *Log {
	return &Log{path: path, lockPath: path + ".lock"}
}

// LogOperation appends a successful operation's outcome. READ operations
// are filtered out (spec §4.9: "audit only touches writes").
func (l *Log) LogOperation(connName, resource string, op connection.OpKind, user string, exec *connection.ExecResult) error {
	if op == connection.OpRead {
		return nil
	}

	rec := Record{
		ID: uuid.New(), Timestamp: time.Now(), Connection: connName, Resource: resource,
		Operation: op, User: user, Status: StatusSuccess,
	}

	if exec != nil {
		rec.AffectedRows = &exec.AffectedRows
		rec.LastInsertID = exec.LastInsertID
	}

	return l.append(rec)
}

// LogFailedOperation appends a failed write operation's outcome. READ
// operations are filtered out.
func (l *Log) LogFailedOperation(connName, resource string, op connection.OpKind, user string, cause error) error {
	if op == connection.OpRead {
		return nil
	}

	rec := Record{
		ID: uuid.New(), Timestamp: time.Now(), Connection: connName, Resource: resource,
		Operation: op, User: user, Status: StatusFailure,
	}

	if cause != nil {
		rec.Error = cause.Error()
	}

	return l.append(rec)
}

func (l *Log) append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	fileLock := flock.New(l.lockPath)
	if err := fileLock.Lock(); err != nil {
		return dberr.Database("acquiring audit log file lock", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return dberr.Database("opening audit log", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return dberr.Database("marshaling audit record", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return dberr.Database("writing audit record", err)
	}

	return nil
}

// GetLogs streams the file in order, applying filter and returning at
// most filter.Limit records (0 means unlimited).
func (l *Log) GetLogs(filter Filter) ([]Record, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, dberr.Database("opening audit log", err)
	}
	defer f.Close()

	var out []Record

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, dberr.Database("parsing audit record", err)
		}

		if !filter.matches(rec) {
			continue
		}

		out = append(out, rec)

		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, dberr.Database("reading audit log", err)
	}

	return out, nil
}

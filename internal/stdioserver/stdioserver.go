// Package stdioserver implements the minimal stdio JSON framing loop
// (spec §4.12/§6 expansion): newline-delimited JSON requests in, matching
// responses out, dispatched against a ToolRegistry.
package stdioserver

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/dbutils-go/broker/pkg/dbutils/dberr"
	"github.com/dbutils-go/broker/pkg/mlog"
)

// ToolRegistry is implemented by handler.Handler.
type ToolRegistry interface {
	ExecuteTool(ctx context.Context, tool string, args map[string]any) (string, error)
}

// request is one newline-delimited JSON-RPC-shaped tool call.
type request struct {
	ID        json.RawMessage `json:"id"`
	Tool      string          `json:"tool"`
	Arguments map[string]any  `json:"arguments"`
}

// contentBlock is one element of a successful response's result array.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// errorShape mirrors the taxonomy's Kind for the wire response.
type errorShape struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// response is one newline-delimited JSON reply.
type response struct {
	ID     json.RawMessage `json:"id"`
	Result []contentBlock  `json:"result,omitempty"`
	Error  *errorShape     `json:"error"`
}

// Server reads requests from in and writes responses to out, dispatching
// each to registry.
type Server struct {
	registry ToolRegistry
	logger   mlog.Logger
}

// New constructs a Server. logger may be nil.
func New(registry ToolRegistry, logger mlog.Logger) *Server {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &Server{registry: registry, logger: logger}
}

// Serve reads newline-delimited JSON requests from in until EOF or ctx is
// done, writing one newline-delimited JSON response per request to out.
// A malformed request line produces an error response instead of
// terminating the loop.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	enc := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(ctx, line)

		if err := enc.Encode(resp); err != nil {
			return err
		}
	}

	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warnf("stdioserver: malformed request: %v", err)
		return response{Error: &errorShape{Kind: string(dberr.KindQuery), Message: "malformed request: " + err.Error()}}
	}

	text, err := s.registry.ExecuteTool(ctx, req.Tool, req.Arguments)
	if err != nil {
		kind, ok := dberr.As(err)
		if !ok {
			kind = dberr.KindDatabase
		}

		return response{ID: req.ID, Error: &errorShape{Kind: string(kind), Message: err.Error()}}
	}

	return response{ID: req.ID, Result: []contentBlock{{Type: "text", Text: text}}}
}

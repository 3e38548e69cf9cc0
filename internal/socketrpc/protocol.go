package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tinytelemetry/querylens/internal/model"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.Provider over a Unix domain socket.
// Each method maps 1:1 to the Provider interface.
//
//   Method                 Params                                          Result
//   ───────────────────    ─────────────────────────────────────────────   ──────────────────────────
//   QueryLogs              QueryLogsOptions                                Page[LogEntry]
//   Stats24h               (none)                                          Stats
//   QueriesOverTime        OverTimeOptions                                 []QueriesOverTimeEntry
//   TopDomains             TopOptions                                      Page[TopDomainEntry]
//   TopClients             TopOptions                                      Page[TopClientEntry]
//   QueryTypesBreakdown    {range: string}                                 []QueryTypeEntry
//   SearchDomains          SearchOptions                                   []SearchHit
//   SearchClients          SearchOptions                                   []SearchHit
//
// Params use the JSON field names of the model option types.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params (also returned for model.ErrInvalidOptions)
//   -32603  Internal error (marshal failure)
//   -32000  Application error (provider failure)

const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeApplication    = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// Unwrap lets errors.Is see model.ErrInvalidOptions through the socket.
func (e *RPCError) Unwrap() error {
	if e.Code == CodeInvalidParams {
		return model.ErrInvalidOptions
	}
	return nil
}

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/querylens/querylens.sock, falling back to
// ~/.local/state/querylens/querylens.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "querylens", "querylens.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/querylens.sock"
	}
	return filepath.Join(home, ".local", "state", "querylens", "querylens.sock")
}

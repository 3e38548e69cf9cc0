package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

var log = logrus.WithField("component", "socketrpc")

// Per-connection line buffer: requests start at 1 MiB and may grow to 10 MiB.
const (
	scannerInitBufSize  = 1 << 20
	scannerMaxTokenSize = 10 << 20
)

// ErrSocketInUse means a live server already answers on the socket path.
var ErrSocketInUse = errors.New("socketrpc: socket in use")

// Server exposes a model.Provider over a Unix domain socket using JSON-RPC 2.0.
type Server struct {
	socketPath string
	provider   model.Provider
	listener   net.Listener
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates a new socket RPC server.
func NewServer(socketPath string, p model.Provider) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		provider:   p,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start listens on the socket path and serves connections in the background.
func (s *Server) Start() error {
	if err := claimSocket(s.socketPath); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.WithField("path", s.socketPath).Info("listening")
	return nil
}

// claimSocket prepares path for listening. A socket file left behind by a
// dead server is removed; one that still accepts connections is refused.
func claimSocket(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err != nil {
		log.WithField("path", path).Debug("removing stale socket")
		return os.Remove(path)
	}
	conn.Close()
	return fmt.Errorf("%w: %s", ErrSocketInUse, path)
}

// Stop closes the listener, cancels in-flight calls, waits for connections to
// drain and removes the socket file.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("accept error")
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	stop := context.AfterFunc(s.ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error"}})
			continue
		}

		resp := s.dispatch(s.ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

// validator is implemented by the model option types.
type validator interface{ Validate() error }

// decode unmarshals params into dst and validates it. Empty params leave dst
// at its zero value.
func decode(params json.RawMessage, dst any) error {
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, dst); err != nil {
			return err
		}
	}
	if v, ok := dst.(validator); ok {
		return v.Validate()
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v any, err error) Response {
		if err != nil {
			code := CodeApplication
			if errors.Is(err, model.ErrInvalidOptions) || errors.Is(err, timerange.ErrInvalidRange) {
				code = CodeInvalidParams
			}
			resp.Error = &RPCError{Code: code, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternal, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	switch req.Method {
	case "QueryLogs":
		var p model.QueryLogsOptions
		if err := decode(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		return marshalResult(s.provider.QueryLogs(ctx, p))

	case "Stats24h":
		return marshalResult(s.provider.Stats24h(ctx))

	case "QueriesOverTime":
		var p model.OverTimeOptions
		if err := decode(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		return marshalResult(s.provider.QueriesOverTime(ctx, p))

	case "TopDomains", "TopClients":
		var p model.TopOptions
		if err := decode(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if p.Filter == "" {
			p.Filter = model.FilterAll
		}
		if req.Method == "TopDomains" {
			return marshalResult(s.provider.TopDomains(ctx, p))
		}
		return marshalResult(s.provider.TopClients(ctx, p))

	case "QueryTypesBreakdown":
		var p struct {
			Range timerange.Range `json:"range"`
		}
		if err := decode(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if !p.Range.Valid() {
			return invalidParams(fmt.Errorf("%w %q", timerange.ErrInvalidRange, p.Range))
		}
		return marshalResult(s.provider.QueryTypesBreakdown(ctx, p.Range))

	case "SearchDomains", "SearchClients":
		var p model.SearchOptions
		if err := decode(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if req.Method == "SearchDomains" {
			return marshalResult(s.provider.SearchDomains(ctx, p))
		}
		return marshalResult(s.provider.SearchClients(ctx, p))

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// DefaultCallTimeout bounds a call whose context carries no deadline.
const DefaultCallTimeout = 30 * time.Second

// Client implements model.Provider over a Unix domain socket using JSON-RPC 2.0.
// A connection broken by a timeout or cancellation is redialled on the next call.
type Client struct {
	socketPath string

	mu      sync.Mutex
	conn    net.Conn
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

var _ model.Provider = (*Client)(nil)

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	c := &Client{socketPath: socketPath}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	c.conn = conn
	c.scanner = scanner
	c.encoder = json.NewEncoder(conn)
	return nil
}

func (c *Client) reset() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(ctx context.Context, method string, params any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(); err != nil {
			return err
		}
	}

	c.nextID++
	id := c.nextID

	var paramsData json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		paramsData = data
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultCallTimeout)
	}
	c.conn.SetDeadline(deadline)
	conn := c.conn
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	fail := func(format string, err error) error {
		c.reset()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
			return context.DeadlineExceeded
		}
		return fmt.Errorf(format, err)
	}

	if err := c.encoder.Encode(Request{JSONRPC: "2.0", ID: id, Method: method, Params: paramsData}); err != nil {
		return fail("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if err == nil {
			err = fmt.Errorf("connection closed")
		}
		return fail("socketrpc: read: %w", err)
	}
	c.conn.SetDeadline(time.Time{})

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fail("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id {
		return fail("socketrpc: %w", fmt.Errorf("response id %d, want %d", resp.ID, id))
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) QueryLogs(ctx context.Context, opts model.QueryLogsOptions) (model.Page[model.LogEntry], error) {
	var result model.Page[model.LogEntry]
	err := c.call(ctx, "QueryLogs", opts, &result)
	return result, err
}

func (c *Client) Stats24h(ctx context.Context) (model.Stats, error) {
	var result model.Stats
	err := c.call(ctx, "Stats24h", nil, &result)
	return result, err
}

func (c *Client) QueriesOverTime(ctx context.Context, opts model.OverTimeOptions) ([]model.QueriesOverTimeEntry, error) {
	var result []model.QueriesOverTimeEntry
	err := c.call(ctx, "QueriesOverTime", opts, &result)
	return result, err
}

func (c *Client) TopDomains(ctx context.Context, opts model.TopOptions) (model.Page[model.TopDomainEntry], error) {
	var result model.Page[model.TopDomainEntry]
	err := c.call(ctx, "TopDomains", opts, &result)
	return result, err
}

func (c *Client) TopClients(ctx context.Context, opts model.TopOptions) (model.Page[model.TopClientEntry], error) {
	var result model.Page[model.TopClientEntry]
	err := c.call(ctx, "TopClients", opts, &result)
	return result, err
}

func (c *Client) QueryTypesBreakdown(ctx context.Context, r timerange.Range) ([]model.QueryTypeEntry, error) {
	var result []model.QueryTypeEntry
	err := c.call(ctx, "QueryTypesBreakdown", map[string]any{"range": r}, &result)
	return result, err
}

func (c *Client) SearchDomains(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	var result []model.SearchHit
	err := c.call(ctx, "SearchDomains", opts, &result)
	return result, err
}

func (c *Client) SearchClients(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	var result []model.SearchHit
	err := c.call(ctx, "SearchClients", opts, &result)
	return result, err
}

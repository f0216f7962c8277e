package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// ServerError is an error reported by the remote handler, as opposed to a
// transport failure. The connection that carried it is still usable.
type ServerError string

func (e ServerError) Error() string {
	return fmt.Sprintf("rpc error: %s", string(e))
}

// Client is a lightweight JSON-over-TCP RPC client.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
	nextID  atomic.Int64
}

// Dial connects to an RPC server at the given address.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
	}, nil
}

// Call invokes the named RPC method with params and decodes the response
// into result. A ctx deadline bounds the whole round trip. Call is safe
// for concurrent use.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("setting deadline: %w", err)
		}
	} else {
		if err := c.conn.SetDeadline(time.Time{}); err != nil {
			return fmt.Errorf("clearing deadline: %w", err)
		}
	}

	id := c.nextID.Add(1)

	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	req := Request{
		Method: method,
		ID:     strconv.FormatInt(id, 10),
		Params: raw,
	}

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	var resp Response
	if err := c.decoder.Decode(&resp); err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.Error != "" {
		return ServerError(resp.Error)
	}

	if result != nil {
		data, err := json.Marshal(resp.Data)
		if err != nil {
			return fmt.Errorf("marshaling response data: %w", err)
		}
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshaling into result: %w", err)
		}
	}

	return nil
}

// Close closes the underlying TCP connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Pool keeps a bounded set of idle connections to one RPC server. A
// connection that suffers a transport failure is discarded; server-side
// errors leave it in the pool.
type Pool struct {
	addr string
	idle chan *Client
}

// NewPool creates a Pool of up to size idle connections to addr.
// Connections are dialed lazily on first use.
func NewPool(addr string, size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{
		addr: addr,
		idle: make(chan *Client, size),
	}
}

// Call borrows a connection (dialing when none is idle), performs the RPC,
// and returns the connection to the pool.
func (p *Pool) Call(ctx context.Context, method string, params any, result any) error {
	client, err := p.get(ctx)
	if err != nil {
		return err
	}
	err = client.Call(ctx, method, params, result)
	var serverErr ServerError
	if err != nil && !errors.As(err, &serverErr) {
		client.Close()
		return err
	}
	p.put(client)
	return err
}

func (p *Pool) get(ctx context.Context) (*Client, error) {
	select {
	case c := <-p.idle:
		return c, nil
	default:
		return Dial(ctx, p.addr)
	}
}

func (p *Pool) put(c *Client) {
	select {
	case p.idle <- c:
	default:
		c.Close()
	}
}

// Close closes every idle connection.
func (p *Pool) Close() error {
	for {
		select {
		case c := <-p.idle:
			c.Close()
		default:
			return nil
		}
	}
}

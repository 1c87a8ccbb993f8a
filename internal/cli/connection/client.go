package connection

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/yndnr/kvwait/internal/wire"
)

// DefaultDialTimeout bounds establishing the TCP connection.
const DefaultDialTimeout = 5 * time.Second

// ErrClosed is returned by calls on a client that was closed or whose
// connection was abandoned mid-frame.
var ErrClosed = errors.New("connection: client closed")

// Client speaks the kvwait binary protocol over one persistent connection.
// Calls are serialized; the server answers requests in order.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer
	broken bool
}

// Dial connects to a kvwait server. The connection may block server-side
// in admission until a session slot frees; that wait is not bounded by the
// dial timeout.
func Dial(ctx context.Context, addr string) (*Client, error) {
	d := net.Dialer{Timeout: DefaultDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}
}

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Alive reports whether the client can still issue calls.
func (c *Client) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.broken
}

// Register creates an account. It returns false if the username is taken.
func (c *Client) Register(ctx context.Context, username, password string) (bool, error) {
	return c.boolCall(ctx, &wire.Request{Cmd: wire.CmdRegister, Username: username, Password: password})
}

// Login authenticates the connection.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	return c.boolCall(ctx, &wire.Request{Cmd: wire.CmdLogin, Username: username, Password: password})
}

// Put stores value under key. It returns false if the server refused the
// write because the connection is not logged in.
func (c *Client) Put(ctx context.Context, key string, value []byte) (bool, error) {
	return c.boolCall(ctx, &wire.Request{Cmd: wire.CmdPut, Key: key, Value: value})
}

// MultiPut stores all pairs as one batch.
func (c *Client) MultiPut(ctx context.Context, pairs []wire.Pair) (bool, error) {
	return c.boolCall(ctx, &wire.Request{Cmd: wire.CmdMultiPut, Pairs: pairs})
}

// Get returns the value stored under key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	var ok bool
	err := c.call(ctx, &wire.Request{Cmd: wire.CmdGet, Key: key}, func(r *bufio.Reader) error {
		var err error
		v, ok, err = wire.ReadValue(r)
		return err
	})
	return v, ok, err
}

// MultiGet returns the present keys among keys, in request order.
func (c *Client) MultiGet(ctx context.Context, keys []string) ([]wire.Pair, error) {
	var pairs []wire.Pair
	err := c.call(ctx, &wire.Request{Cmd: wire.CmdMultiGet, Keys: keys}, func(r *bufio.Reader) error {
		var err error
		pairs, err = wire.ReadPairs(r)
		return err
	})
	return pairs, err
}

// GetWhen blocks until condKey holds condValue and returns the value of key
// at that moment. Cancelling ctx abandons the connection, since the server
// keeps waiting and the eventual response can no longer be matched.
func (c *Client) GetWhen(ctx context.Context, key, condKey string, condValue []byte) ([]byte, bool, error) {
	var v []byte
	var ok bool
	req := &wire.Request{Cmd: wire.CmdGetWhen, Key: key, CondKey: condKey, CondValue: condValue}
	err := c.call(ctx, req, func(r *bufio.Reader) error {
		var err error
		v, ok, err = wire.ReadValue(r)
		return err
	})
	return v, ok, err
}

// Exit sends EXIT and closes the connection.
func (c *Client) Exit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return c.conn.Close()
	}
	c.broken = true

	werr := wire.WriteRequest(c.bw, &wire.Request{Cmd: wire.CmdExit})
	if werr == nil {
		werr = c.bw.Flush()
	}
	if err := c.conn.Close(); err != nil && werr == nil {
		werr = err
	}
	return werr
}

// Close closes the connection without sending EXIT.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = true
	return c.conn.Close()
}

func (c *Client) boolCall(ctx context.Context, req *wire.Request) (bool, error) {
	var ok bool
	err := c.call(ctx, req, func(r *bufio.Reader) error {
		var err error
		ok, err = wire.ReadBool(r)
		return err
	})
	return ok, err
}

// call writes req and runs read on the response. If ctx ends first the
// connection deadline is forced into the past to unblock I/O, and the
// client is marked broken.
func (c *Client) call(ctx context.Context, req *wire.Request, read func(*bufio.Reader) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return ErrClosed
	}

	// Only the context ends a call, so a timeout always surfaces as ctx.Err().
	_ = c.conn.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})

	err := wire.WriteRequest(c.bw, req)
	if err == nil {
		err = c.bw.Flush()
	}
	if err == nil {
		err = read(c.br)
	}

	stopped := stop()
	if err == nil {
		if !stopped {
			// The deadline may have been forced after the response arrived.
			c.abandon()
		}
		return nil
	}

	c.abandon()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", req.Cmd, ctxErr)
	}
	return fmt.Errorf("%s: %w", req.Cmd, err)
}

func (c *Client) abandon() {
	c.broken = true
	_ = c.conn.Close()
}

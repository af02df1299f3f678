package client

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/protocol"
	"github.com/ValentinKolb/aKV/rpc/transport"
	"github.com/cockroachdb/errors"
)

// Client sends commands over one connection and reads their replies. Calls
// are serialized, so a Client is safe for concurrent use but never pipelines.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	mu      sync.Mutex
}

// Dial connects to the server configured in config using the transport
//
// Usage:
//
//	c, err := client.Dial(config, tcp.NewTCPClientTransport())
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//	res, err := c.Do("SET", "greeting", "hello world")
func Dial(config common.ClientConfig, t transport.IRPCClientTransport) (*Client, error) {
	conn, err := t.Dial(config)
	if err != nil {
		return nil, err
	}
	Logger.Debugf("connected to %s using %s transport", config.Endpoint, t.Name())
	return NewClient(conn, config), nil
}

// NewClient creates a client on an established connection
func NewClient(conn net.Conn, config common.ClientConfig) *Client {
	size := config.MaxLineBytes
	if size <= 0 {
		size = common.DefaultMaxLineBytes
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, size),
		timeout: time.Duration(config.TimeoutSecond) * time.Second,
	}
}

// Do sends one command and waits for its final reply. A failure reported by
// the server is returned as *StatusError together with the result.
func (c *Client) Do(name string, args ...string) (*Result, error) {
	line, err := protocol.Format(strings.ToUpper(name), args...)
	if err != nil {
		return nil, err
	}
	return c.DoLine(line)
}

// DoLine sends a raw command line, as typed in the shell
func (c *Client) DoLine(line string) (*Result, error) {
	line = strings.TrimSpace(line)
	cmd, err := protocol.Parse(line)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, errors.Wrapf(err, "failed to set deadline")
		}
	}

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return nil, errors.Wrapf(err, "failed to send %s", cmd.Name)
	}

	res := &Result{Command: cmd.Name}
	for {
		raw, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read reply of %s", cmd.Name)
		}
		r, err := protocol.ParseReply(raw)
		if err != nil {
			return nil, err
		}
		if done := res.add(r); done {
			break
		}
	}

	if res.Err != nil {
		return res, res.Err
	}
	return res, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

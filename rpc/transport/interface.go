package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/aKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandler serves one accepted connection and returns when it is done.
// The transport closes the connection afterwards.
type ConnHandler func(conn net.Conn)

// IRPCServerTransport is the interface of the listener side
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called (in its own
	// goroutine) for every accepted connection
	RegisterHandler(handler ConnHandler)
	// Listen accepts connections until ctx is cancelled. Before returning it
	// closes all open connections and waits for their handlers.
	Listen(ctx context.Context, config common.ServerConfig) error
	// Addr returns the address the transport listens on, nil before Listen
	Addr() net.Addr
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface of the dialing side
type IRPCClientTransport interface {
	// Dial opens a connection to the configured endpoint
	Dial(config common.ClientConfig) (net.Conn, error)
	// Name returns the name of the transport type (e.g., "unix", "tcp")
	Name() string
}

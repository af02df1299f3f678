package base

import (
	"math/rand"
	"net"
	"time"

	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/transport"
	"github.com/cockroachdb/errors"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements dialing independent of the transport medium
type clientTransport struct {
	connector IClientConnector
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Name() string {
	return t.connector.GetName()
}

func (t *clientTransport) Dial(config common.ClientConfig) (net.Conn, error) {
	if config.Endpoint == "" {
		return nil, errors.New("no endpoint provided")
	}
	timeout := time.Duration(config.TimeoutSecond) * time.Second

	// We always try at least once, and up to RetryCount times
	attempts := config.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := t.connect(config, timeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		Logger.Debugf("Connection attempt %d/%d to %s failed: %v", i+1, attempts, config.Endpoint, err)

		if i < attempts-1 {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	return nil, errors.Wrapf(lastErr, "failed to connect to %s after %d attempts", config.Endpoint, attempts)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *clientTransport) connect(config common.ClientConfig, timeout time.Duration) (net.Conn, error) {
	conn, err := t.connector.Connect(config.Endpoint, timeout)
	if err != nil {
		return nil, err
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "failed to upgrade connection to %s", config.Endpoint)
	}
	return conn, nil
}

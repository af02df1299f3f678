// Package base provides the transport functionality shared by all socket based
// transports of aKV, independent of the specific network protocol. Protocol
// specific behaviour is injected through connectors.
//
// Key Components:
//
//   - IServerConnector/IClientConnector: interfaces for protocol-specific
//     operations (creating a listener, dialing, tuning a connection).
//
//   - serverTransport: accepts connections and runs the registered handler for
//     each of them in its own goroutine. When the context of Listen is
//     cancelled it closes the listener and every open connection and waits for
//     all handlers to return.
//
//   - clientTransport: dials an endpoint with exponential backoff between
//     attempts.
//
// Thread Safety:
//
//	All public methods are thread-safe. Listen must be called only once per
//	transport.
package base

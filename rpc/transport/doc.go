// Package transport defines the listener and dialer abstractions of aKV.
// A transport only moves raw connections: the server side accepts sockets and
// hands each one to a ConnHandler, the client side dials an endpoint. The line
// protocol on top is implemented by the protocol, server and client packages.
//
// Key Components:
//
//   - IRPCServerTransport: accepts connections until its context is cancelled.
//
//   - IRPCClientTransport: opens connections to a configured endpoint.
//
//   - ConnHandler: function type serving one accepted connection.
//
// Implementations live in the tcp and unix subpackages, both built on base.
// The http subpackage serves the metrics and profiling endpoint.
package transport

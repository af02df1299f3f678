// Package rpc contains everything between the network and the query pipeline
// of aKV.
//
// The package is organized into several subpackages:
//
//   - common: configuration structures and the logger setup.
//
//   - transport: listener and dialer abstractions with tcp and unix
//     implementations, plus the http metrics endpoint.
//
//   - protocol: the line based request and reply format.
//
//   - server: client sessions and the server run group.
//
//   - client: a minimal client for the line protocol.
package rpc

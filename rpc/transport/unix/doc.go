// Package unix implements the Unix domain socket transport of aKV on top of
// the base package, for clients running on the same machine.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing a stale socket
//     file left behind by a previous run
package unix

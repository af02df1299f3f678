// Package tcp implements the TCP socket transport of aKV on top of the base
// package. Accepted and dialed connections get TCP_NODELAY and keep-alive.
package tcp

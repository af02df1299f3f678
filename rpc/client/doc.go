// Package client implements a minimal client for the aKV line protocol. It is
// used by the interactive shell and by end-to-end tests.
//
// A Client sends one command at a time and collects all reply lines that
// belong to it into a Result: the value of a scalar reply, or the elements of
// a vector reply (scans are reassembled over all chunks). Failures reported by
// the server are returned as *StatusError:
//
//	res, err := c.Do("GET", "missing")
//	var se *client.StatusError
//	if errors.As(err, &se) && se.Status == "NOT_FOUND" {
//		...
//	}
package client

// Package server implements the aKV server: it opens the storage engine,
// runs the dispatcher and serves client sessions on a transport.
//
// Each accepted connection becomes a session with its own dispatch.Conn. The
// session parses command lines, turns them into queries and posts them to the
// dispatcher. Results are delivered by the dispatch loop into a lock free
// write queue and rendered onto the socket by the session's writer goroutine,
// so a slow client never stalls the dispatcher.
//
// Session commands are answered by the session itself once every query posted
// before them was delivered:
//
//   - SELECT n: switch the select (1-100) used by subsequent commands
//   - INFO: server and pipeline statistics as ITEM lines
//   - RESETALL: drop all queued queries and scheduled entries
//   - QUIT: end the session
//
// Serve runs the transport, the dispatch loop and the optional metrics
// endpoint in one errgroup; the first failure or the cancellation of its
// context stops all of them.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Endpoint = "0.0.0.0:6667"
//	config.Workers = 8
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//	if err := s.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server

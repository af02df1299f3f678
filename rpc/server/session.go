package server

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ValentinKolb/aKV/lib/db/util"
	"github.com/ValentinKolb/aKV/lib/dispatch"
	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/ValentinKolb/aKV/rpc/protocol"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

const (
	maxPending   = 1024 // queued commands per connection before reading pauses
	idleInterval = time.Millisecond
)

// outbound is one entry of a session's write queue: either a query result or
// replies produced by the session itself
type outbound struct {
	q       *query.Query
	replies []protocol.Reply
}

// session is one client connection. The reader goroutine parses commands and
// posts them, the dispatcher delivers results into the lock free write queue
// and the writer goroutine renders them onto the socket.
type session struct {
	id     uuid.UUID
	server *Server
	conn   net.Conn
	dc     *dispatch.Conn
	out    *util.LockFreeMPSC[outbound]
	done   chan struct{}
}

func newSession(s *Server, conn net.Conn) *session {
	sess := &session{
		id:     uuid.New(),
		server: s,
		conn:   conn,
		out:    util.NewLockFreeMPSC[outbound](),
		done:   make(chan struct{}),
	}
	// delivery runs on the dispatch loop and must not block
	sess.dc = s.dispatcher.Connect(s.database, func(q *query.Query) {
		sess.out.Push(&outbound{q: q})
	})
	return sess
}

func (sess *session) run() {
	Logger.Debugf("session %s (connection %d) opened from %s", sess.id, sess.dc.ID(), sess.conn.RemoteAddr())

	go sess.writeLoop()
	sess.readLoop()

	sess.server.dispatcher.Disconnect(sess.dc)
	sess.out.Close()
	<-sess.done

	Logger.Debugf("session %s closed", sess.id)
}

// --------------------------------------------------------------------------
// Reading
// --------------------------------------------------------------------------

func (sess *session) readLoop() {
	// the initial buffer must not exceed the limit, Scanner allows cap(buf)
	maxLine := sess.server.config.MaxLineBytes
	scanner := bufio.NewScanner(sess.conn)
	scanner.Buffer(make([]byte, 0, min(4096, maxLine)), maxLine)

	for scanner.Scan() {
		cmd, err := protocol.Parse(scanner.Text())
		if errors.Is(err, protocol.ErrEmptyLine) {
			continue
		}
		if !sess.handle(cmd) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			sess.waitIdle()
			sess.reply(protocol.Reply{Type: protocol.ReplyErr, Command: "*", Status: query.StatusInvalidFormat.String(), Value: "line too long"})
			return
		}
		if !errors.Is(err, net.ErrClosed) {
			Logger.Debugf("session %s: read failed: %v", sess.id, err)
		}
	}
}

// handle executes one command. It returns false when the session ends.
func (sess *session) handle(cmd protocol.Command) bool {
	switch cmd.Name {
	case "QUIT":
		sess.waitIdle()
		sess.reply(ok(cmd.Name, "bye"))
		return false
	case "SELECT":
		sess.waitIdle()
		sess.reply(sess.selectDB(cmd))
		return true
	case "INFO":
		sess.waitIdle()
		sess.reply(sess.info()...)
		return true
	case "RESETALL":
		sess.waitIdle()
		sess.server.dispatcher.ResetAll()
		sess.reply(ok(cmd.Name, "OK"))
		return true
	}

	spec, found := query.LookupName(cmd.Name)
	if !found {
		sess.waitIdle()
		sess.reply(fail(cmd.Name, query.StatusInvalidFormat, "unknown command"))
		return true
	}

	for sess.dc.Pending() >= maxPending {
		time.Sleep(idleInterval)
	}
	sess.server.dispatcher.Post(sess.dc, query.New(nil, nil, 0, spec.Kind, cmd.Args...))
	return true
}

// waitIdle blocks until every posted query was delivered into the write
// queue, so replies produced by the session keep their order
func (sess *session) waitIdle() {
	for sess.dc.Pending() > 0 || sess.dc.Completed() > 0 || sess.dc.IsLocked() {
		time.Sleep(idleInterval)
	}
}

func (sess *session) reply(replies ...protocol.Reply) {
	sess.out.Push(&outbound{replies: replies})
}

// --------------------------------------------------------------------------
// Session commands
// --------------------------------------------------------------------------

func (sess *session) selectDB(cmd protocol.Command) protocol.Reply {
	if len(cmd.Args) != 1 {
		return fail(cmd.Name, query.StatusMissingArgs, "")
	}
	sel, st := query.ParseSelect(cmd.Args[0])
	if st != query.StatusOK {
		return fail(cmd.Name, st, "")
	}
	sess.dc.SetSelect(sel)
	return ok(cmd.Name, strconv.Itoa(int(sel)))
}

func (sess *session) info() []protocol.Reply {
	s := sess.server
	stats := s.dispatcher.Stats()

	fields := [][2]string{
		{"run_id", s.runID.String()},
		{"session_id", sess.id.String()},
		{"uptime_seconds", strconv.FormatInt(int64(time.Since(s.started).Seconds()), 10)},
		{"select", strconv.Itoa(int(sess.dc.Select()))},
		{"connections", strconv.Itoa(stats.Connections)},
		{"workers", strconv.Itoa(stats.Workers)},
		{"busy_workers", strconv.Itoa(stats.BusyWorkers)},
		{"expire_entries", strconv.Itoa(stats.ExpireEntries)},
		{"future_entries", strconv.Itoa(stats.FutureEntries)},
		{"queries_posted", strconv.FormatUint(stats.Posted, 10)},
		{"queries_executed", strconv.FormatUint(stats.Executed, 10)},
		{"queries_failed", strconv.FormatUint(stats.Failed, 10)},
		{"scan_chunks", strconv.FormatUint(stats.Chunks, 10)},
		{"worker_load_quality", fmt.Sprintf("%.2f", stats.WorkerLoad.Quality)},
	}
	for _, op := range stats.Ops {
		fields = append(fields, [2]string{
			"op." + op.Name,
			fmt.Sprintf("count=%d mean_ms=%.3f p99_ms=%.3f", op.Count, op.MeanMs, op.P99Ms),
		})
	}

	replies := make([]protocol.Reply, 0, len(fields)+1)
	for _, f := range fields {
		replies = append(replies, protocol.Reply{Type: protocol.ReplyItem, Command: "INFO", Field: f[0], HasField: true, Value: f[1]})
	}
	return append(replies, protocol.Reply{Type: protocol.ReplyEnd, Command: "INFO", Count: len(fields)})
}

func ok(name, value string) protocol.Reply {
	return protocol.Reply{Type: protocol.ReplyOK, Command: name, Value: value}
}

func fail(name string, st query.Status, text string) protocol.Reply {
	if text == "" {
		text = st.Text()
	}
	return protocol.Reply{Type: protocol.ReplyErr, Command: name, Status: st.String(), Value: text}
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// writeLoop renders the write queue onto the connection. It flushes whenever
// the queue runs empty and keeps draining after a write error so the
// dispatcher never blocks on a dead client.
func (sess *session) writeLoop() {
	defer close(sess.done)

	w := protocol.NewWriter(sess.conn)
	broken := false

	for m := range sess.out.Recv() {
		if broken {
			continue
		}

		var err error
		if m.q != nil {
			err = w.WriteResult(m.q)
		} else {
			for _, r := range m.replies {
				if err = w.WriteReply(r); err != nil {
					break
				}
			}
		}
		if err == nil && sess.out.Len() == 0 {
			err = w.Flush()
		}

		if err != nil {
			broken = true
			Logger.Debugf("session %s: write failed: %v", sess.id, err)
			_ = sess.conn.Close()
		}
	}

	if !broken {
		_ = w.Flush()
	}
}

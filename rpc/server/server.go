package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/db/engines/lsm"
	"github.com/ValentinKolb/aKV/lib/dispatch"
	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/transport"
	"github.com/ValentinKolb/aKV/rpc/transport/http"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("server")

// Server wires the storage engine, the dispatcher and a transport into a
// running aKV instance
//
// Usage:
//
//	s := server.NewServer(config, tcp.NewTCPServerTransport())
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
type Server struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	runID     uuid.UUID
	started   time.Time

	database   *db.Database
	dispatcher *dispatch.Dispatcher
	sessions   *xsync.MapOf[uint64, *session]
	closeOnce  sync.Once
}

// NewServer creates a server. Nothing is opened before Serve (or Open).
func NewServer(config common.ServerConfig, transport transport.IRPCServerTransport) *Server {
	return &Server{
		config:    config,
		transport: transport,
		runID:     uuid.New(),
		sessions:  xsync.NewMapOf[uint64, *session](),
	}
}

// Open opens the store, starts the worker pool and resets all queues
func (s *Server) Open() error {
	if err := s.config.Validate(); err != nil {
		return errors.Wrapf(err, "invalid configuration")
	}

	kv, err := lsm.NewLSMDB(&lsm.Options{
		Dir:      s.config.DataDir,
		InMemory: s.config.InMemory,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to open store")
	}
	s.database = db.NewDatabase("akv", kv)

	s.dispatcher = dispatch.New(dispatch.Options{
		Workers:      s.config.Workers,
		Env:          query.NewEnv(s.config.ChunkSize),
		Database:     s.database,
		PollInterval: time.Duration(s.config.TickMillisecond) * time.Millisecond,
		OnFailure:    s.onFailure,
		OnGlobal:     s.onGlobal,
	})
	s.dispatcher.Start()
	s.dispatcher.ResetAll()
	s.started = time.Now()

	Logger.Infof("aKV %s ready", s.runID)
	return nil
}

// Serve opens the server and runs the transport, the dispatch loop and (if
// configured) the metrics endpoint until ctx is cancelled or one of them
// fails
func (s *Server) Serve(ctx context.Context) error {
	common.InitLoggers(s.config)
	Logger.Infof("%s", s.config.String())

	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()

	s.transport.RegisterHandler(s.ServeConn)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.transport.Listen(gctx, s.config)
	})
	g.Go(func() error {
		return s.dispatcher.Run(gctx)
	})
	if s.config.MetricsEndpoint != "" {
		handler := http.NewMetricsHandler(s.config.LogLevel == "debug", s.dispatcher.WritePrometheus)
		g.Go(func() error {
			return http.Serve(gctx, s.config.MetricsEndpoint, handler)
		})
	}

	return g.Wait()
}

// ServeConn runs one client session on conn and returns when the client quits
// or the connection breaks. It does not close conn.
func (s *Server) ServeConn(conn net.Conn) {
	sess := newSession(s, conn)
	s.sessions.Store(sess.dc.ID(), sess)
	defer s.sessions.Delete(sess.dc.ID())

	sess.run()
}

// Close stops the worker pool and closes the store
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.dispatcher != nil {
			s.dispatcher.Shutdown()
		}
		if s.database != nil {
			if err := s.database.Close(); err != nil {
				Logger.Errorf("failed to close store: %v", err)
			}
		}
		Logger.Infof("aKV %s stopped", s.runID)
	})
}

// Addr returns the address of the transport, nil before it listens
func (s *Server) Addr() net.Addr {
	if s.transport == nil {
		return nil
	}
	return s.transport.Addr()
}

// --------------------------------------------------------------------------
// Dispatcher hooks
// --------------------------------------------------------------------------

func (s *Server) onFailure(c *dispatch.Conn, q *query.Query) {
	if c.Global() {
		Logger.Warningf("%s %v failed: %s", q.Name(), q.Args, q.Status)
		return
	}
	Logger.Debugf("connection %d: %s failed: %s", c.ID(), q.Name(), q.Status)
}

func (s *Server) onGlobal(q *query.Query) {
	Logger.Infof("global %s finished: %s", q.Name(), q.Status)
}

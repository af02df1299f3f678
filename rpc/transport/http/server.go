package http

import (
	"context"
	"io"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport")

const shutdownTimeout = 5 * time.Second

// MetricsWriter writes metrics in Prometheus text format
type MetricsWriter func(w io.Writer)

// NewMetricsHandler returns the handler of the metrics endpoint. /metrics
// serves the given writers followed by the process metrics, /debug/pprof/
// the runtime profiles. With debug set every request is logged.
func NewMetricsHandler(debug bool, writers ...MetricsWriter) http.Handler {
	mux := http.NewServeMux()

	handleMetrics := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, write := range writers {
			write(w)
		}
		metrics.WritePrometheus(w, true)
	}

	if debug {
		mux.HandleFunc("GET /metrics", loggerMiddleware(handleMetrics))
	} else {
		mux.HandleFunc("GET /metrics", handleMetrics)
	}

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

// Serve runs an HTTP server on endpoint until ctx is cancelled
func Serve(ctx context.Context, endpoint string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              endpoint,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			Logger.Warningf("Metrics server shutdown: %v", err)
		}
	})
	defer stop()

	Logger.Infof("Starting metrics server on %s", endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "metrics server on %s", endpoint)
	}
	return nil
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	}
}

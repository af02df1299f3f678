package dispatch

import (
	"io"
	"sort"
	"time"

	"github.com/ValentinKolb/aKV/lib/db/util"
	"github.com/ValentinKolb/aKV/lib/query"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// dispatchMetrics bundles the counters of one dispatcher. Every dispatcher
// owns its own metrics.Set, so several dispatchers (e.g. in tests) never
// register the same metric twice.
type dispatchMetrics struct {
	set        *metrics.Set
	posted     *metrics.Counter
	executed   *metrics.Counter
	failed     *metrics.Counter
	chunks     *metrics.Counter
	noWorker   *metrics.Counter
	timers     gometrics.Registry
	chunkSizes *util.SizeHistogram
}

func newDispatchMetrics(d *Dispatcher) *dispatchMetrics {
	set := metrics.NewSet()
	m := &dispatchMetrics{
		set:        set,
		posted:     set.NewCounter("akv_queries_posted_total"),
		executed:   set.NewCounter("akv_queries_executed_total"),
		failed:     set.NewCounter("akv_queries_failed_total"),
		chunks:     set.NewCounter("akv_scan_chunks_total"),
		noWorker:   set.NewCounter("akv_no_worker_total"),
		timers:     gometrics.NewRegistry(),
		chunkSizes: util.NewSizeHistogram(),
	}

	set.NewGauge("akv_workers", func() float64 { return float64(d.Workers()) })
	set.NewGauge("akv_workers_busy", func() float64 { return float64(d.BusyWorkers()) })
	set.NewGauge("akv_connections", func() float64 { return float64(d.conns.Size()) })
	set.NewGauge("akv_expire_entries", func() float64 { return float64(d.env.Expires.Len()) })
	set.NewGauge("akv_future_entries", func() float64 { return float64(d.env.Futures.Len()) })
	return m
}

// observe records the execution time of one query
func (m *dispatchMetrics) observe(kind query.Kind, start time.Time) {
	gometrics.GetOrRegisterTimer(kind.String(), m.timers).UpdateSince(start)
}

// --------------------------------------------------------------------------
// Reporting
// --------------------------------------------------------------------------

// OpStats summarizes the execution times of one operation
type OpStats struct {
	Name   string  `json:"name"`
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Stats is a snapshot of the dispatcher state
type Stats struct {
	Workers       int                    `json:"workers"`
	BusyWorkers   int                    `json:"busy_workers"`
	Connections   int                    `json:"connections"`
	ExpireEntries int                    `json:"expire_entries"`
	FutureEntries int                    `json:"future_entries"`
	Posted        uint64                 `json:"posted"`
	Executed      uint64                 `json:"executed"`
	Failed        uint64                 `json:"failed"`
	Chunks        uint64                 `json:"chunks"`
	MedianChunk   int                    `json:"median_chunk"`
	WorkerLoad    util.LoadStats         `json:"worker_load"`
	Ops           []OpStats              `json:"ops"`
}

// Stats returns a snapshot of the dispatcher state
func (d *Dispatcher) Stats() Stats {
	m := d.metrics

	d.poolMu.RLock()
	load := make([]uint64, len(d.workers))
	for i, w := range d.workers {
		load[i] = w.executed.Load()
	}
	d.poolMu.RUnlock()

	var ops []OpStats
	m.timers.Each(func(name string, i interface{}) {
		t, ok := i.(gometrics.Timer)
		if !ok {
			return
		}
		s := t.Snapshot()
		ops = append(ops, OpStats{
			Name:   name,
			Count:  s.Count(),
			MeanMs: s.Mean() / float64(time.Millisecond),
			P99Ms:  s.Percentile(0.99) / float64(time.Millisecond),
		})
	})
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })

	return Stats{
		Workers:       len(load),
		BusyWorkers:   d.BusyWorkers(),
		Connections:   d.conns.Size(),
		ExpireEntries: d.env.Expires.Len(),
		FutureEntries: d.env.Futures.Len(),
		Posted:        m.posted.Get(),
		Executed:      m.executed.Get(),
		Failed:        m.failed.Get(),
		Chunks:        m.chunks.Get(),
		MedianChunk:   m.chunkSizes.Median(),
		WorkerLoad:    util.NewLoadStats(load),
		Ops:           ops,
	}
}

// WritePrometheus writes the dispatcher metrics in Prometheus text format
func (d *Dispatcher) WritePrometheus(w io.Writer) {
	d.metrics.set.WritePrometheus(w)
}

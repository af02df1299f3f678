// Package dispatch implements the worker pool and the dispatcher of aKV.
//
// Every client session is registered as a Conn. The protocol layer turns a
// command into a query.Query and posts it with Dispatcher.Post. The reactor
// loop (Dispatcher.Run) then repeatedly
//
//  1. flushes the expire and future schedulers once per second (Tick), which
//     queues synthetic DEL and SET queries on the global pseudo-connection,
//  2. delivers the head of every connection's completed queue (CollectResults),
//  3. hands the head query of every idle connection to a worker
//     (DispatchPending), the global connection first.
//
// Single-flight: a connection is busy from the moment one of its queries is
// handed to a worker until the final (non-partial) result was collected, so
// queries of one connection are executed and delivered in submission order.
//
// Workers pick queries from a private lock-free FIFO (util.LockFreeMPSC). An
// idle worker is preferred; if all are busy a random one is chosen. With an
// empty pool a query fails with query.StatusNoWorker and the connection's
// remaining pending queries are discarded.
//
// Quiet and global queries are completed on the worker itself. Failed queries
// are reported to Options.OnFailure unless they are flagged as interrupts.
//
// Metrics are kept in a VictoriaMetrics set per dispatcher and per-operation
// execution timers (rcrowley/go-metrics), see Stats and WritePrometheus.
package dispatch

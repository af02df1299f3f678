// Package util provides data structures and statistics shared by the storage
// engine, the schedulers and the dispatcher.
//
// The package contains:
//   - statistics: LoadStats for the worker pool balance and a lock-free SizeHistogram
//   - functions: random seed generation
//   - mapheap: a keyed min-heap, the backing store of the expire and future schedulers
//   - lockfreempsc: a lock-free Multi-Producer Single-Consumer (MPSC) queue, used as the job FIFO of each worker
//
// None of the components depend on a specific db.KVDB implementation.
package util

// Package schedule implements the time-ordered schedulers of aKV.
//
// The server runs two independent Scheduler instances: one for key expirations
// (EXPIRE, EXPIREAT, SETEX) and one for future writes (FUTURE, FUTUREAT). Both
// hold at most one Entry per (key, select) pair, ordered by the absolute trigger
// time in unix seconds.
//
// Once per second the dispatcher calls Flush with the current time. Every entry
// that is due is removed from the scheduler and handed to a sink, which turns it
// into a synthetic query (DEL for expirations, SET for future writes) on the
// global connection. The scheduler itself never touches the storage engine.
//
// Thread-safety: All methods are safe for concurrent use. Flush invokes the sink
// after releasing the scheduler's lock, so a sink may call back into the scheduler.
package schedule

// Package query implements the query lifecycle of aKV: the Query type, its
// status codes, the registration table of all operations and the execution
// driver that runs a query against a db.Database.
//
// A query moves through Created -> Queued -> Executing -> Completed -> Delivered.
// Failures are not errors but data: the Status of a query tells the connection
// layer how to answer, and a failed query is delivered like any other.
//
// Operations are registered with Register from init functions. Each Spec names
// the command, its arity, whether it writes, and either a RunFunc or a ScanFunc:
//
//   - RunFunc executes inside the execution mutex of the database (see
//     db.Database.Exec). Composite values (lists, maps, multimaps) are always
//     handled as a whole-value read-modify-write: load the blob, decode it with
//     the codec package, apply one mutation, encode and store the whole blob.
//
//   - ScanFunc produces the elements of a potentially large result. Execute cuts
//     them into chunks of Env.ChunkSize elements, delivers every full chunk as a
//     partial copy of the query and finally the query itself. The owner's
//     liveness is checked between chunks.
//
// Storage layout: every user key is prefixed with its select (two bytes, big
// endian), every value with a one byte type tag. See StorageKey and TypeName.
package query

// Package protocol implements the line based wire format of aKV.
//
// Requests are single lines of space separated tokens. The last token may
// start with ':' in which case it extends to the end of the line and may
// contain spaces:
//
//	SET greeting :hello world
//	HGETALL users
//
// Every request yields exactly one final reply line. Scalar results and
// failures are a single line, vector results (scans, MGET) are a sequence of
// ITEM lines closed by END:
//
//	OK SET :OK
//	ERR GET NOT_FOUND :entry not found
//	ITEM HGETALL 0 alice :admin
//	ITEM HGETALL 0 bob :user
//	END HGETALL 2
//
// The number after ITEM is the chunk the element was delivered in. Chunks of
// one scan are always contiguous on the wire since a connection has at most
// one query in flight.
package protocol

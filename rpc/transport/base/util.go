package base

import (
	"io"
	"net"

	"github.com/cockroachdb/errors"
)

// isClosed reports whether err signals a connection or listener that was
// closed, either locally or by the peer
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}

package base

import (
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
	"io"
	"net"
)

// classifyError maps a failure of the underlying stream onto the client error taxonomy:
// protocol errors pass through, timeouts become common.TimeoutError and everything
// else becomes common.ConnectionError.
func classifyError(endpoint string, op common.TimeoutOp, err error) error {
	if errors.Is(err, common.ErrProtocol) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &common.TimeoutError{Endpoint: endpoint, Op: op, Err: err}
	}

	if errors.Is(err, io.EOF) {
		return &common.ConnectionError{Endpoint: endpoint, Msg: "stream closed by peer", Err: err}
	}

	var msg string
	switch op {
	case common.OpConnect:
		msg = "failed to connect"
	case common.OpRead:
		msg = "read failed"
	case common.OpWrite:
		msg = "write failed"
	}
	return &common.ConnectionError{Endpoint: endpoint, Msg: msg, Err: err}
}

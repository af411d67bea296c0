package client

import (
	"encoding/hex"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/ValentinKolb/rKV/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/exp/rand"
	"sync"
	"time"
)

var (
	Logger = logger.GetLogger("client")
)

// DefaultConnectionFactory creates a node connection for the scheme of the parameters
func DefaultConnectionFactory(params common.Parameters) (transport.INodeConnection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	switch params.Scheme {
	case common.SchemeTCP:
		return tcp.NewTCPConnection(params)
	case common.SchemeTLS:
		return tcp.NewTLSConnection(params)
	case common.SchemeUnix:
		return unix.NewUnixConnection(params)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", params.Scheme)
	}
}

// checkReply turns an error reply into a *common.ServerError when raise is set
func checkReply(frame resp.Frame, raise bool) (resp.Frame, error) {
	if raise && frame.IsError() {
		return frame, common.NewServerError(frame.Text())
	}
	return frame, nil
}

// checkReplies is checkReply for a batch, the first error reply is returned as error
func checkReplies(frames []resp.Frame, raise bool) ([]resp.Frame, error) {
	if !raise {
		return frames, nil
	}
	for _, frame := range frames {
		if frame.IsError() {
			return frames, common.NewServerError(frame.Text())
		}
	}
	return frames, nil
}

var (
	ownerMu  sync.Mutex
	ownerRnd = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
)

// newOwnerID returns a random token identifying the holder of a lock
func newOwnerID() []byte {
	buf := make([]byte, 16)
	ownerMu.Lock()
	_, _ = ownerRnd.Read(buf)
	ownerMu.Unlock()
	return []byte(hex.EncodeToString(buf))
}

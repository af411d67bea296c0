package unix

import (
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
	"net"
)

// clientConnector implements the IConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Connect(params common.Parameters) (net.Conn, error) {
	dialer := net.Dialer{Timeout: params.ConnectTimeout()}
	return dialer.Dial("unix", params.Path)
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, params common.Parameters) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	if params.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(params.WriteBufferSize); err != nil {
			return err
		}
	}
	if params.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(params.ReadBufferSize); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Connection Factory Method
// --------------------------------------------------------------------------

// NewUnixConnection creates a new node connection over a Unix domain socket
func NewUnixConnection(params common.Parameters) (transport.INodeConnection, error) {
	return base.NewNodeConnection(&clientConnector{}, params)
}

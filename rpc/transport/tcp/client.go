package tcp

import (
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
	"net"
	"time"
)

// clientConnector implements the IConnector interface for TCP sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(params common.Parameters) (net.Conn, error) {
	dialer := net.Dialer{Timeout: params.ConnectTimeout()}
	return dialer.Dial("tcp", params.Endpoint())
}

func (c *clientConnector) UpgradeConnection(conn net.Conn, params common.Parameters) error {
	return UpgradeTCPConnection(conn, params)
}

// --------------------------------------------------------------------------
// Socket tuning
// --------------------------------------------------------------------------

// UpgradeTCPConnection applies the socket options of the parameters to a TCP connection.
// Other connection types are left untouched.
func UpgradeTCPConnection(conn net.Conn, params common.Parameters) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(params.TCPNoDelay); err != nil {
		return err
	}

	// Set socket write buffer size if configured
	if params.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(params.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if params.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(params.ReadBufferSize); err != nil {
			return err
		}
	}

	// Enable TCP keep-alive if configured
	if params.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(params.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Connection Factory Method
// --------------------------------------------------------------------------

// NewTCPConnection creates a new node connection over TCP
func NewTCPConnection(params common.Parameters) (transport.INodeConnection, error) {
	return base.NewNodeConnection(&clientConnector{}, params)
}

package tcp

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
	"net"
	"os"
	"time"
)

// tlsConnector implements the IConnector interface for TLS over TCP
type tlsConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnector)
// --------------------------------------------------------------------------

func (c *tlsConnector) GetName() string {
	return "tls"
}

func (c *tlsConnector) Connect(params common.Parameters) (net.Conn, error) {
	config, err := TLSConfig(params)
	if err != nil {
		return nil, err
	}

	// the handshake is part of the connect timeout
	dialer := &net.Dialer{Timeout: params.ConnectTimeout()}
	rawConn, err := dialer.Dial("tcp", params.Endpoint())
	if err != nil {
		return nil, err
	}
	if err := UpgradeTCPConnection(rawConn, params); err != nil {
		_ = rawConn.Close()
		return nil, err
	}

	conn := tls.Client(rawConn, config)
	if timeout := params.ConnectTimeout(); timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	if err := conn.Handshake(); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return conn, nil
}

// UpgradeConnection is a no-op, the socket is tuned before the handshake
func (c *tlsConnector) UpgradeConnection(net.Conn, common.Parameters) error {
	return nil
}

// --------------------------------------------------------------------------
// TLS configuration
// --------------------------------------------------------------------------

// TLSConfig builds the client TLS configuration from the parameters
func TLSConfig(params common.Parameters) (*tls.Config, error) {
	opts := params.TLS
	config := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
		ServerName:         opts.ServerName,
		MinVersion:         tls.VersionTLS12,
	}
	if config.ServerName == "" {
		config.ServerName = params.Host
	}

	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", opts.CAFile)
		}
		config.RootCAs = pool
	}

	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %v", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// --------------------------------------------------------------------------
// Connection Factory Method
// --------------------------------------------------------------------------

// NewTLSConnection creates a new node connection over TLS
func NewTLSConnection(params common.Parameters) (transport.INodeConnection, error) {
	return base.NewNodeConnection(&tlsConnector{}, params)
}

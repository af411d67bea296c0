package base

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"strings"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport")

const defaultBufferSize = 16 * 1024

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnector defines the interface for medium-specific connection operations
type IConnector interface {
	// GetName returns the name of the medium (e.g., "unix", "tcp")
	GetName() string

	// Connect dials a single stream. Implementations honor params.ConnectTimeout().
	Connect(params common.Parameters) (net.Conn, error)

	// UpgradeConnection applies medium-specific socket settings to an established stream
	UpgradeConnection(conn net.Conn, params common.Parameters) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// nodeConnection implements transport.INodeConnection independent of the medium.
//
// mu guards every field below it. Stream I/O happens outside of mu so Disconnect can
// interrupt a blocked read. gen is bumped on every teardown so a failing read can tell
// whether its stream was closed under it.
type nodeConnection struct {
	connector IConnector
	params    common.Parameters

	mu           sync.Mutex
	conn         net.Conn
	writer       *bufio.Writer
	decoder      *resp.Decoder
	gen          uint64
	opened       bool
	initCommands []common.Command

	pending       []*pendingEntry
	pushes        []resp.Frame
	subscriptions int64
	channels      map[string]map[string]struct{}
}

// -----------------------------------------------------------
// Connection Factory Method (used for tcp, tls, unix)
// -----------------------------------------------------------

// NewNodeConnection creates a disconnected node connection that dials through the given connector
func NewNodeConnection(connector IConnector, params common.Parameters) (transport.INodeConnection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &nodeConnection{
		connector: connector,
		params:    params,
		channels:  make(map[string]map[string]struct{}),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.INodeConnection)
// --------------------------------------------------------------------------

func (c *nodeConnection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *nodeConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.teardownLocked(true)
	Logger.Debugf("Disconnected from %s", c)
	return nil
}

func (c *nodeConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *nodeConnection) AddInitCommand(cmd common.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return common.ErrInitCommandsFrozen
	}
	c.initCommands = append(c.initCommands, cmd)
	return nil
}

func (c *nodeConnection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *nodeConnection) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptions > 0
}

func (c *nodeConnection) Parameters() common.Parameters {
	return c.params
}

func (c *nodeConnection) String() string {
	if c.params.Alias != "" {
		return c.params.Alias
	}
	return c.params.ID()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// connectLocked opens the stream (or takes a parked persistent one) and runs the init commands
func (c *nodeConnection) connectLocked() error {
	if c.conn != nil {
		return nil
	}

	conn, reused, err := c.dial()
	if err != nil {
		connectionErrors.Inc()
		return err
	}

	c.conn = conn
	c.writer = bufio.NewWriterSize(conn, defaultBufferSize)
	c.decoder = resp.NewDecoder(bufio.NewReaderSize(conn, defaultBufferSize), c.params.Protocol)
	c.opened = true

	if !reused {
		if err := c.runInitCommands(); err != nil {
			connectionErrors.Inc()
			c.teardownLocked(false)
			return err
		}
	}

	connectionsOpened.Inc()
	Logger.Infof("Connected to %s using %s transport (protocol %d, reused %v)",
		c, c.connector.GetName(), c.params.Protocol, reused)
	return nil
}

// dial establishes the stream to the endpoint
func (c *nodeConnection) dial() (net.Conn, bool, error) {
	if c.params.Persistent {
		if conn, ok := takePersistentStream(c.streamKeyLocked()); ok {
			return conn, true, nil
		}
	}

	conn, err := c.connector.Connect(c.params)
	if err != nil {
		return nil, false, classifyError(c.params.Endpoint(), common.OpConnect, err)
	}

	if err := c.connector.UpgradeConnection(conn, c.params); err != nil {
		_ = conn.Close()
		return nil, false, &common.ConnectionError{
			Endpoint: c.params.Endpoint(),
			Msg:      "failed to upgrade connection",
			Err:      err,
		}
	}
	return conn, false, nil
}

// streamKeyLocked is the key of the persistent stream registry. Streams are only shared
// between handles that would have sent the same init commands.
func (c *nodeConnection) streamKeyLocked() string {
	key := c.params.SessionKey()
	for _, cmd := range c.initCommands {
		key += "|" + string(resp.EncodeCommand(cmd))
	}
	return key
}

// derivedInitCommands returns the commands derived from the parameters followed by the user supplied ones
func (c *nodeConnection) derivedInitCommands() []common.Command {
	p := c.params
	var cmds []common.Command

	if p.Password != "" || p.Protocol == 3 {
		args := []interface{}{p.Protocol}
		if p.Password != "" {
			username := p.Username
			if username == "" {
				username = "default"
			}
			args = append(args, "AUTH", username, p.Password)
		}
		if p.ClientName != "" {
			args = append(args, "SETNAME", p.ClientName)
		}
		cmds = append(cmds, common.NewCommand("HELLO", args...))
	} else if p.ClientName != "" {
		cmds = append(cmds, common.NewCommand("CLIENT", "SETNAME", p.ClientName))
	}

	if p.Database != 0 {
		cmds = append(cmds, common.NewCommand("SELECT", p.Database))
	}

	return append(cmds, c.initCommands...)
}

// runInitCommands pipelines the init commands and checks every reply.
// The whole exchange is bounded by the connect timeout.
func (c *nodeConnection) runInitCommands() error {
	cmds := c.derivedInitCommands()
	if len(cmds) == 0 {
		return nil
	}

	var deadline time.Time
	if timeout := c.params.ConnectTimeout(); timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	_ = c.conn.SetDeadline(deadline)
	defer func() {
		if c.conn != nil {
			_ = c.conn.SetDeadline(time.Time{})
		}
	}()

	for _, cmd := range cmds {
		_, _ = c.writer.Write(resp.EncodeCommand(cmd))
	}
	if err := c.writer.Flush(); err != nil {
		return classifyError(c.params.Endpoint(), common.OpConnect, err)
	}

	for _, cmd := range cmds {
		frame, err := c.decoder.Decode()
		for err == nil && frame.Kind == resp.KindPush {
			frame, err = c.decoder.Decode()
		}
		if err != nil {
			return classifyError(c.params.Endpoint(), common.OpConnect, err)
		}
		if frame.IsError() {
			return &common.ConnectionError{
				Endpoint: c.params.Endpoint(),
				Msg:      fmt.Sprintf("init command %s failed: %s", strings.ToUpper(cmd.ID()), frame.Text()),
			}
		}
	}
	return nil
}

// teardownLocked closes the stream and fails every open pending entry.
// Clean streams of persistent connections are parked for reuse when park is set.
func (c *nodeConnection) teardownLocked(park bool) {
	conn := c.conn
	clean := park && c.params.Persistent && c.subscriptions == 0 &&
		c.writer.Buffered() == 0 && c.decoder.Buffered() == 0 && c.firstOpenLocked() == nil

	for _, e := range c.pending {
		if e.open() {
			e.err = common.ErrConnectionClosed
		}
	}

	c.conn, c.writer, c.decoder = nil, nil, nil
	c.subscriptions = 0
	c.channels = make(map[string]map[string]struct{})
	c.gen++

	if clean {
		parkPersistentStream(c.streamKeyLocked(), conn)
		return
	}
	if err := conn.Close(); err != nil {
		Logger.Debugf("Closing stream to %s failed: %v", c, err)
	}
}

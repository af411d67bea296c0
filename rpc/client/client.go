package client

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/cluster"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"sync"
)

// IClient sends commands to a single node or to a cluster
type IClient interface {
	// Execute sends one command and returns its reply
	Execute(cmd common.Command) (resp.Frame, error)
	// Pipeline sends all commands before reading the replies. The replies keep the order of the commands.
	Pipeline(cmds ...common.Command) ([]resp.Frame, error)
	// Transaction wraps the commands in MULTI/EXEC and returns the reply of EXEC
	Transaction(cmds ...common.Command) (resp.Frame, error)
	// Strategy returns the strategy used to locate keys (prefixing, routing)
	Strategy() *cluster.RedisStrategy
	// Close disconnects all connections of the client
	Close() error
	// String describes the client
	String() string
}

// NewClient creates a client for the configuration. A nil factory uses DefaultConnectionFactory.
// Single node clients connect right away, cluster clients load the slot map.
func NewClient(config common.ClientConfig, factory transport.ConnectionFactory) (IClient, error) {
	if factory == nil {
		factory = DefaultConnectionFactory
	}
	if err := config.Parameters.Validate(); err != nil {
		return nil, err
	}

	opts := clientOptions{
		prefix: []byte(config.Prefix),
		raise:  config.RaiseServerErrors,
	}

	if !config.Cluster {
		conn, err := factory(config.Parameters)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(); err != nil {
			return nil, err
		}
		opts.strategy = cluster.NewRedisStrategy()
		return &nodeClient{clientOptions: opts, conn: conn}, nil
	}

	if len(config.Nodes) == 0 {
		config.Nodes = []string{config.Parameters.Endpoint()}
	}
	c, err := cluster.NewClient(config, factory, nil)
	if err != nil {
		return nil, err
	}
	if err := c.Refresh(); err != nil {
		_ = c.Close()
		return nil, err
	}
	opts.strategy = c.Strategy()
	return &clusterClient{clientOptions: opts, cluster: c}, nil
}

// clientOptions holds what both client kinds share
type clientOptions struct {
	prefix   []byte
	raise    bool
	strategy *cluster.RedisStrategy
}

// prepare prefixes the keys of the commands. Commands that cannot be changed are sent as they are.
func (o *clientOptions) prepare(cmds ...common.Command) {
	if len(o.prefix) == 0 {
		return
	}
	for _, cmd := range cmds {
		mutable, ok := cmd.(common.MutableCommand)
		if !ok {
			Logger.Warningf("keys of %s cannot be prefixed", cmd.ID())
			continue
		}
		o.strategy.PrefixKeys(mutable, o.prefix)
	}
}

func (o *clientOptions) Strategy() *cluster.RedisStrategy { return o.strategy }

// --------------------------------------------------------------------------
// Single Node Client
// --------------------------------------------------------------------------

type nodeClient struct {
	clientOptions
	mu   sync.Mutex
	conn transport.INodeConnection
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IClient)
// --------------------------------------------------------------------------

func (c *nodeClient) Execute(cmd common.Command) (resp.Frame, error) {
	c.prepare(cmd)
	c.mu.Lock()
	frame, err := c.conn.ExecuteCommand(cmd)
	c.mu.Unlock()
	if err != nil {
		return resp.Frame{}, err
	}
	return checkReply(frame, c.raise)
}

func (c *nodeClient) Pipeline(cmds ...common.Command) ([]resp.Frame, error) {
	c.prepare(cmds...)
	c.mu.Lock()
	frames, err := c.conn.Pipeline(cmds...)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return checkReplies(frames, c.raise)
}

func (c *nodeClient) Transaction(cmds ...common.Command) (resp.Frame, error) {
	c.prepare(cmds...)
	c.mu.Lock()
	frame, err := c.conn.Transaction(cmds...)
	c.mu.Unlock()
	if err != nil {
		return resp.Frame{}, err
	}
	return checkReply(frame, c.raise)
}

func (c *nodeClient) Close() error {
	return c.conn.Disconnect()
}

func (c *nodeClient) String() string {
	return fmt.Sprintf("node client [%s]", c.conn)
}

// --------------------------------------------------------------------------
// Cluster Client
// --------------------------------------------------------------------------

type clusterClient struct {
	clientOptions
	cluster *cluster.Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IClient)
// --------------------------------------------------------------------------

func (c *clusterClient) Execute(cmd common.Command) (resp.Frame, error) {
	c.prepare(cmd)
	frame, err := c.cluster.Execute(cmd)
	if err != nil {
		return resp.Frame{}, err
	}
	return checkReply(frame, c.raise)
}

func (c *clusterClient) Pipeline(cmds ...common.Command) ([]resp.Frame, error) {
	c.prepare(cmds...)
	frames, err := c.cluster.Pipeline(cmds...)
	if err != nil {
		return nil, err
	}
	return checkReplies(frames, c.raise)
}

func (c *clusterClient) Transaction(cmds ...common.Command) (resp.Frame, error) {
	c.prepare(cmds...)
	frame, err := c.cluster.Transaction(cmds...)
	if err != nil {
		return resp.Frame{}, err
	}
	return checkReply(frame, c.raise)
}

func (c *clusterClient) Close() error {
	return c.cluster.Close()
}

func (c *clusterClient) String() string {
	return fmt.Sprintf("cluster client %v", c.cluster.Nodes())
}

// Cluster returns the underlying cluster client of a cluster IClient
func Cluster(c IClient) (*cluster.Client, bool) {
	cc, ok := c.(*clusterClient)
	if !ok {
		return nil, false
	}
	return cc.cluster, true
}

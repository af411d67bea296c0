package cluster

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/exp/rand"
	"net"
	"sync"
	"time"
)

var Logger = logger.GetLogger("cluster")

// ErrTooManyRedirects is returned when a command is still redirected after MaxRedirects attempts
var ErrTooManyRedirects = errors.New("too many cluster redirections")

// DefaultMaxRedirects is used when the configuration does not bound redirections
const DefaultMaxRedirects = 5

// nodeHandle serializes the use of one node connection
type nodeHandle struct {
	mu   sync.Mutex
	conn transport.INodeConnection
}

// Client routes commands to the node owning their slot and follows MOVED/ASK redirections.
// It is safe for concurrent use, commands for the same node are serialized.
type Client struct {
	template     common.Parameters
	seeds        []string
	maxRedirects int
	factory      transport.ConnectionFactory
	strategy     *RedisStrategy
	slots        *SlotMap
	nodes        *xsync.MapOf[string, *nodeHandle]
	registry     gometrics.Registry

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewClient creates a cluster client. The parameters of the configuration are the template for
// every node connection, only the endpoint is replaced. A nil strategy uses NewRedisStrategy.
func NewClient(config common.ClientConfig, factory transport.ConnectionFactory, strategy *RedisStrategy) (*Client, error) {
	if len(config.Nodes) == 0 {
		return nil, fmt.Errorf("cluster client needs at least one seed node")
	}
	if factory == nil {
		return nil, fmt.Errorf("cluster client needs a connection factory")
	}
	if strategy == nil {
		strategy = NewRedisStrategy()
	}
	maxRedirects := config.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	return &Client{
		template:     config.Parameters,
		seeds:        append([]string(nil), config.Nodes...),
		maxRedirects: maxRedirects,
		factory:      factory,
		strategy:     strategy,
		slots:        NewSlotMap(),
		nodes:        xsync.NewMapOf[string, *nodeHandle](),
		registry:     gometrics.NewRegistry(),
		rnd:          rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Strategy returns the strategy used for routing
func (c *Client) Strategy() *RedisStrategy { return c.strategy }

// Slots returns the slot map of the client
func (c *Client) Slots() *SlotMap { return c.slots }

// Metrics returns the registry holding the per node meters and timers
func (c *Client) Metrics() gometrics.Registry { return c.registry }

// Nodes returns the known node addresses, the seeds while the slot map is empty
func (c *Client) Nodes() []string {
	if nodes := c.slots.Nodes(); len(nodes) > 0 {
		return nodes
	}
	return append([]string(nil), c.seeds...)
}

// --------------------------------------------------------------------------
// Topology
// --------------------------------------------------------------------------

// Refresh loads the slot map with CLUSTER SLOTS from the first node that answers
func (c *Client) Refresh() error {
	var lastErr error
	for _, addr := range c.Nodes() {
		reply, err := c.executeOn(addr, false, common.NewCommand("CLUSTER", "SLOTS"))
		if err != nil {
			lastErr = err
			Logger.Warningf("failed to load slots from %s: %v", addr, err)
			continue
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		if err := c.slots.UpdateFromClusterSlots(reply, host); err != nil {
			lastErr = err
			Logger.Warningf("failed to load slots from %s: %v", addr, err)
			continue
		}
		Logger.Infof("loaded %d slots on %d nodes from %s", c.slots.Assigned(), len(c.slots.Nodes()), addr)
		return nil
	}
	return fmt.Errorf("failed to load cluster slots: %w", lastErr)
}

// NodeFor returns the address of the node a command is sent to first
func (c *Client) NodeFor(cmd common.Command) (string, error) {
	slot, err := c.strategy.GetSlotOrError(cmd)
	switch {
	case errors.Is(err, common.ErrCrossSlot):
		return "", err
	case err != nil:
		// commands without keys may run anywhere
		return c.randomNode(), nil
	}

	if c.slots.IsEmpty() {
		if err := c.Refresh(); err != nil {
			Logger.Warningf("routing without slot map: %v", err)
		}
	}
	if addr, ok := c.slots.Node(slot); ok {
		return addr, nil
	}
	return c.randomNode(), nil
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Execute sends the command to the node owning its slot and returns the reply.
// MOVED redirections update the slot map, ASK redirections are followed once.
func (c *Client) Execute(cmd common.Command) (resp.Frame, error) {
	addr, err := c.NodeFor(cmd)
	if err != nil {
		return resp.Frame{}, err
	}
	return c.follow(addr, cmd, false)
}

// Pipeline sends the commands grouped per node, each group as one pipeline.
// The replies are returned in the order of the commands. Redirected commands are retried one by one.
func (c *Client) Pipeline(cmds ...common.Command) ([]resp.Frame, error) {
	type group struct {
		indexes []int
		cmds    []common.Command
	}
	groups := make(map[string]*group)
	order := make([]string, 0)

	for i, cmd := range cmds {
		addr, err := c.NodeFor(cmd)
		if err != nil {
			return nil, err
		}
		g, ok := groups[addr]
		if !ok {
			g = &group{}
			groups[addr] = g
			order = append(order, addr)
		}
		g.indexes = append(g.indexes, i)
		g.cmds = append(g.cmds, cmd)
	}

	replies := make([]resp.Frame, len(cmds))
	for _, addr := range order {
		g := groups[addr]
		frames, err := c.pipelineOn(addr, g.cmds)
		if err != nil {
			return nil, err
		}
		for j, frame := range frames {
			idx := g.indexes[j]
			if redirect, ok := ParseRedirect(frame); ok {
				c.applyRedirect(redirect)
				if frame, err = c.follow(redirect.Node, cmds[idx], redirect.Ask); err != nil {
					return nil, err
				}
			}
			replies[idx] = frame
		}
	}
	return replies, nil
}

// Transaction runs the commands in MULTI/EXEC on one node. All keyed commands must share a slot.
// Redirections are not followed, a moved slot makes the transaction fail with an error reply.
func (c *Client) Transaction(cmds ...common.Command) (resp.Frame, error) {
	var (
		target common.Command
		slot   = -1
	)
	for _, cmd := range cmds {
		s, ok := c.strategy.GetSlot(cmd)
		if !ok {
			if len(c.strategy.GetKeys(cmd)) > 1 {
				return resp.Frame{}, &common.CrossSlotError{Command: cmd.ID()}
			}
			continue
		}
		if slot >= 0 && s != slot {
			return resp.Frame{}, &common.CrossSlotError{Command: "MULTI"}
		}
		slot, target = s, cmd
	}
	if target == nil && len(cmds) > 0 {
		target = cmds[0]
	}

	addr := c.randomNode()
	if target != nil {
		var err error
		if addr, err = c.NodeFor(target); err != nil {
			return resp.Frame{}, err
		}
	}

	handle, err := c.node(addr)
	if err != nil {
		return resp.Frame{}, err
	}
	handle.mu.Lock()
	defer handle.mu.Unlock()
	gometrics.GetOrRegisterMeter("node."+addr+".transactions", c.registry).Mark(1)
	return handle.conn.Transaction(cmds...)
}

// Close disconnects every node connection
func (c *Client) Close() error {
	var errs []error
	c.nodes.Range(func(addr string, handle *nodeHandle) bool {
		handle.mu.Lock()
		if err := handle.conn.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		}
		handle.mu.Unlock()
		c.nodes.Delete(addr)
		return true
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// follow executes cmd on addr and follows redirections. With ask set ASKING is sent first.
func (c *Client) follow(addr string, cmd common.Command, ask bool) (resp.Frame, error) {
	var last Redirect

	for attempt := 0; attempt <= c.maxRedirects; attempt++ {
		reply, err := c.executeOn(addr, ask, cmd)
		if err != nil {
			return resp.Frame{}, err
		}
		redirect, ok := ParseRedirect(reply)
		if !ok {
			return reply, nil
		}

		Logger.Debugf("%s redirected: %s", cmd.ID(), redirect)
		c.applyRedirect(redirect)
		last = redirect
		addr, ask = redirect.Node, redirect.Ask
	}
	return resp.Frame{}, fmt.Errorf("%w: %s (last %s)", ErrTooManyRedirects, cmd.ID(), last)
}

func (c *Client) applyRedirect(redirect Redirect) {
	if redirect.Ask {
		gometrics.GetOrRegisterMeter("redirects.ask", c.registry).Mark(1)
		return
	}
	gometrics.GetOrRegisterMeter("redirects.moved", c.registry).Mark(1)
	_ = c.slots.SetSlot(redirect.Slot, redirect.Node)
}

func (c *Client) executeOn(addr string, asking bool, cmd common.Command) (resp.Frame, error) {
	if !asking {
		frames, err := c.pipelineOn(addr, []common.Command{cmd})
		if err != nil {
			return resp.Frame{}, err
		}
		return frames[0], nil
	}

	frames, err := c.pipelineOn(addr, []common.Command{common.NewCommand("ASKING"), cmd})
	if err != nil {
		return resp.Frame{}, err
	}
	return frames[1], nil
}

func (c *Client) pipelineOn(addr string, cmds []common.Command) ([]resp.Frame, error) {
	handle, err := c.node(addr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	handle.mu.Lock()
	frames, err := handle.conn.Pipeline(cmds...)
	handle.mu.Unlock()

	gometrics.GetOrRegisterTimer("node."+addr+".latency", c.registry).UpdateSince(start)
	gometrics.GetOrRegisterMeter("node."+addr+".commands", c.registry).Mark(int64(len(cmds)))
	if err != nil {
		gometrics.GetOrRegisterMeter("node."+addr+".errors", c.registry).Mark(1)
		return nil, err
	}
	return frames, nil
}

// node returns the handle of addr and creates the connection on first use
func (c *Client) node(addr string) (*nodeHandle, error) {
	if handle, ok := c.nodes.Load(addr); ok {
		return handle, nil
	}

	params, err := c.template.WithEndpoint(addr)
	if err != nil {
		return nil, err
	}
	conn, err := c.factory(params)
	if err != nil {
		return nil, err
	}
	// the losing connection was never opened, nothing to close
	handle, _ := c.nodes.LoadOrStore(addr, &nodeHandle{conn: conn})
	return handle, nil
}

func (c *Client) randomNode() string {
	nodes := c.Nodes()
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return nodes[c.rnd.Intn(len(nodes))]
}

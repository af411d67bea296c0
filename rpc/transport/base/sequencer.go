package base

import (
	"bufio"
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"net"
	"strings"
	"time"
)

// pendingEntry is the bookkeeping for one written command whose reply has not been handed out yet.
// An entry is open until it either collected all of its replies or failed.
type pendingEntry struct {
	id      string
	started time.Time

	// set for (un)subscribe commands, the lower case command name
	subscription  string
	confirmations int
	all           bool // unsubscribe without arguments

	replies []resp.Frame
	done    bool
	err     error
}

func newPendingEntry(cmd common.Command) *pendingEntry {
	e := &pendingEntry{id: strings.ToUpper(cmd.ID()), started: time.Now()}
	n := len(cmd.Arguments())

	switch e.id {
	case "SUBSCRIBE", "PSUBSCRIBE", "SSUBSCRIBE":
		e.subscription = strings.ToLower(e.id)
		e.confirmations = n
	case "UNSUBSCRIBE", "PUNSUBSCRIBE", "SUNSUBSCRIBE":
		e.subscription = strings.ToLower(e.id)
		e.confirmations = n
		e.all = n == 0
	}
	return e
}

func (e *pendingEntry) open() bool {
	return !e.done && e.err == nil
}

// result returns the reply of the entry. Commands answered by several
// confirmations (one per channel) yield an array of them.
func (e *pendingEntry) result() resp.Frame {
	if len(e.replies) == 1 {
		return e.replies[0]
	}
	return resp.Array(e.replies...)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.INodeConnection)
// --------------------------------------------------------------------------

func (c *nodeConnection) WriteFrame(data []byte) error {
	c.mu.Lock()
	if err := c.connectLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := c.bufferLocked(data); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	return c.Flush()
}

func (c *nodeConnection) ReadFrame() (resp.Frame, error) {
	frame, _, err := c.readStream(false)
	return frame, err
}

func (c *nodeConnection) WriteCommand(cmd common.Command) error {
	_, err := c.writeCommand(cmd)
	return err
}

func (c *nodeConnection) Flush() error {
	c.mu.Lock()
	conn, w, gen := c.conn, c.writer, c.gen
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.flush(conn, w, gen)
}

func (c *nodeConnection) ReadReply() (transport.Reply, error) {
	for {
		c.mu.Lock()
		if len(c.pushes) > 0 {
			frame := c.pushes[0]
			c.pushes = c.pushes[1:]
			c.mu.Unlock()
			return transport.Reply{Frame: frame, Push: true}, nil
		}

		var head *pendingEntry
		if len(c.pending) > 0 {
			head = c.pending[0]
			if !head.open() {
				c.pending = c.pending[1:]
				c.mu.Unlock()
				if head.err != nil {
					return transport.Reply{}, head.err
				}
				return transport.Reply{Frame: head.result()}, nil
			}
		} else if c.conn == nil || (c.subscriptions == 0 && c.params.Protocol != 3) {
			c.mu.Unlock()
			return transport.Reply{}, common.ErrNoPendingReply
		}
		c.mu.Unlock()

		frame, push, err := c.readStream(true)
		if err != nil {
			// failures are recorded on the head entry, the next iteration hands them out
			if head == nil || c.isOpen(head) {
				return transport.Reply{}, err
			}
			continue
		}
		if push {
			return transport.Reply{Frame: frame, Push: true}, nil
		}
	}
}

func (c *nodeConnection) ExecuteCommand(cmd common.Command) (resp.Frame, error) {
	e, err := c.writeCommand(cmd)
	if err != nil {
		return resp.Frame{}, err
	}
	return c.await(e)
}

func (c *nodeConnection) Pipeline(cmds ...common.Command) ([]resp.Frame, error) {
	entries := make([]*pendingEntry, 0, len(cmds))
	for _, cmd := range cmds {
		e, err := c.writeCommand(cmd)
		if err != nil {
			c.discard(entries)
			return nil, err
		}
		entries = append(entries, e)
	}

	frames := make([]resp.Frame, 0, len(entries))
	for i, e := range entries {
		frame, err := c.await(e)
		if err != nil {
			c.discard(entries[i+1:])
			return frames, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (c *nodeConnection) Transaction(cmds ...common.Command) (resp.Frame, error) {
	all := make([]common.Command, 0, len(cmds)+2)
	all = append(all, common.NewCommand("MULTI"))
	all = append(all, cmds...)
	all = append(all, common.NewCommand("EXEC"))

	frames, err := c.Pipeline(all...)
	if err != nil {
		return resp.Frame{}, err
	}
	if frames[0].IsError() {
		return frames[0], nil
	}
	return frames[len(frames)-1], nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writeCommand buffers the encoded command and queues its pending entry. Sending forces a connect.
func (c *nodeConnection) writeCommand(cmd common.Command) (*pendingEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	if err := c.bufferLocked(resp.EncodeCommand(cmd)); err != nil {
		return nil, err
	}

	e := newPendingEntry(cmd)
	c.pending = append(c.pending, e)
	countCommand(e.id)
	return e, nil
}

// bufferLocked appends data to the outbound buffer. The buffer may spill to the stream when full.
func (c *nodeConnection) bufferLocked(data []byte) error {
	if c.writer.Available() < len(data) {
		_ = c.conn.SetWriteDeadline(c.deadline())
	}
	if _, err := c.writer.Write(data); err != nil {
		cause := classifyError(c.params.Endpoint(), common.OpWrite, err)
		c.teardownLocked(false)
		return cause
	}
	return nil
}

// flush writes the outbound buffer of the stream identified by gen
func (c *nodeConnection) flush(conn net.Conn, w *bufio.Writer, gen uint64) error {
	if w.Buffered() == 0 {
		return nil
	}
	_ = conn.SetWriteDeadline(c.deadline())
	if err := w.Flush(); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			return common.ErrConnectionClosed
		}
		cause := classifyError(c.params.Endpoint(), common.OpWrite, err)
		c.teardownLocked(false)
		return cause
	}
	return nil
}

// readStream flushes pending writes and decodes the next frame. With route set the
// frame is matched against the pending entries and push reports whether it is a push.
//
// A failed read is fatal: the oldest open entry takes the error, every other open
// entry fails with common.ErrConnectionClosed.
func (c *nodeConnection) readStream(route bool) (frame resp.Frame, push bool, err error) {
	c.mu.Lock()
	conn, w, dec, gen := c.conn, c.writer, c.decoder, c.gen
	c.mu.Unlock()

	if conn == nil {
		return resp.Frame{}, false, common.ErrConnectionClosed
	}
	if err := c.flush(conn, w, gen); err != nil {
		return resp.Frame{}, false, err
	}

	_ = conn.SetReadDeadline(c.deadline())
	frame, err = dec.Decode()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return resp.Frame{}, false, common.ErrConnectionClosed
	}
	if err != nil {
		cause := classifyError(c.params.Endpoint(), common.OpRead, err)
		if errors.Is(cause, common.ErrProtocol) {
			protocolErrors.Inc()
		}
		if target := c.firstOpenLocked(); target != nil {
			target.err = cause
		}
		c.teardownLocked(false)
		Logger.Warningf("Read from %s failed: %v", c, cause)
		return resp.Frame{}, false, cause
	}

	if !route {
		return frame, false, nil
	}
	push = c.routeLocked(frame)
	return frame, push, nil
}

// await reads until the entry is complete. Replies of older entries and pushes read
// on the way stay queued for ReadReply.
func (c *nodeConnection) await(e *pendingEntry) (resp.Frame, error) {
	for {
		c.mu.Lock()
		if !e.open() {
			c.removeLocked(e)
			c.mu.Unlock()
			if e.err != nil {
				return resp.Frame{}, e.err
			}
			return e.result(), nil
		}
		c.mu.Unlock()

		frame, push, err := c.readStream(true)
		if err != nil {
			c.mu.Lock()
			if e.open() {
				c.removeLocked(e)
				c.mu.Unlock()
				return resp.Frame{}, err
			}
			c.mu.Unlock()
			continue
		}
		if push {
			c.mu.Lock()
			c.pushes = append(c.pushes, frame)
			c.mu.Unlock()
		}
	}
}

// discard drops entries whose replies will never be handed out
func (c *nodeConnection) discard(entries []*pendingEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.removeLocked(e)
	}
}

func (c *nodeConnection) removeLocked(e *pendingEntry) {
	for i, p := range c.pending {
		if p == e {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *nodeConnection) firstOpenLocked() *pendingEntry {
	for _, e := range c.pending {
		if e.open() {
			return e
		}
	}
	return nil
}

func (c *nodeConnection) isOpen(e *pendingEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return e.open()
}

// deadline returns the read/write deadline for the next operation (zero disables it)
func (c *nodeConnection) deadline() time.Time {
	if timeout := c.params.ReadWriteTimeout(); timeout > 0 {
		return time.Now().Add(timeout)
	}
	return time.Time{}
}

package transport

import (
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
)

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// Reply is one frame read from a connection. Push is set for frames the server sent
// on its own (pub/sub messages, client side caching invalidations) as opposed to
// replies matched to a written command.
type Reply struct {
	Frame resp.Frame
	Push  bool
}

// --------------------------------------------------------------------------
// Node Connection
// --------------------------------------------------------------------------

// INodeConnection owns the stream to one node and sequences requests and replies on it.
//
// A connection must be driven by one goroutine at a time. Only Disconnect may be
// called from another goroutine, e.g. to cancel a blocked read.
type INodeConnection interface {
	// Connect opens the stream and runs the init commands. Calling it while connected is a no-op.
	Connect() error
	// Disconnect closes the stream and fails every pending reply with common.ErrConnectionClosed.
	// Calling it while disconnected is a no-op.
	Disconnect() error
	// IsConnected reports whether the stream is open
	IsConnected() bool
	// AddInitCommand queues a command that is sent right after the stream is opened.
	// It returns common.ErrInitCommandsFrozen once the connection has been opened.
	AddInitCommand(cmd common.Command) error

	// WriteFrame writes raw bytes to the stream without tracking a pending reply
	WriteFrame(data []byte) error
	// ReadFrame decodes the next frame from the stream without matching it to a pending reply
	ReadFrame() (resp.Frame, error)

	// WriteCommand encodes a command into the outbound buffer and queues a pending reply.
	// The buffer is flushed by the next read or by Flush.
	WriteCommand(cmd common.Command) error
	// ReadReply returns the reply of the oldest pending command, or a push frame
	ReadReply() (Reply, error)
	// Flush writes buffered commands to the stream
	Flush() error
	// ExecuteCommand writes a command and returns its reply. Replies of commands written
	// earlier stay queued for ReadReply.
	ExecuteCommand(cmd common.Command) (resp.Frame, error)
	// Pipeline writes all commands before reading their replies
	Pipeline(cmds ...common.Command) ([]resp.Frame, error)
	// Transaction wraps the commands in MULTI/EXEC and returns the reply of EXEC
	Transaction(cmds ...common.Command) (resp.Frame, error)

	// Pending returns the number of replies still owed to the caller
	Pending() int
	// Subscribed reports whether the connection has active pub/sub subscriptions
	Subscribed() bool
	// Parameters returns the connection parameters
	Parameters() common.Parameters
	// String returns the alias or the endpoint of the connection
	String() string
}

// ConnectionFactory creates an unconnected node connection for the given parameters
type ConnectionFactory func(params common.Parameters) (INodeConnection, error)

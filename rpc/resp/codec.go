package resp

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"io"
)

// IProtocolCodec bundles request encoding and reply decoding for one protocol revision
type IProtocolCodec interface {
	// Protocol returns the revision number (2 or 3)
	Protocol() int
	// EncodeCommand encodes a command as a request frame
	EncodeCommand(cmd common.Command) []byte
	// AppendCommand appends the request frame of a command to dst
	AppendCommand(dst []byte, cmd common.Command) []byte
	// EncodeReply encodes a reply frame, downgrading RESP3 kinds for revision 2
	EncodeReply(f Frame) []byte
	// NewDecoder creates a reply decoder reading from r
	NewDecoder(r io.Reader) *Decoder
}

// NewRESP2Codec creates the codec for protocol revision 2
func NewRESP2Codec() IProtocolCodec {
	return &codecImpl{protocol: 2}
}

// NewRESP3Codec creates the codec for protocol revision 3
func NewRESP3Codec() IProtocolCodec {
	return &codecImpl{protocol: 3}
}

// NewCodec returns the codec for a revision number
func NewCodec(protocol int) (IProtocolCodec, error) {
	switch protocol {
	case 2:
		return NewRESP2Codec(), nil
	case 3:
		return NewRESP3Codec(), nil
	default:
		return nil, fmt.Errorf("invalid protocol %d. must be 2 or 3", protocol)
	}
}

// codecImpl implements IProtocolCodec. It is stateless and safe for concurrent use.
type codecImpl struct {
	protocol int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see resp.IProtocolCodec)
// --------------------------------------------------------------------------

func (c *codecImpl) Protocol() int {
	return c.protocol
}

func (c *codecImpl) EncodeCommand(cmd common.Command) []byte {
	return EncodeCommand(cmd)
}

func (c *codecImpl) AppendCommand(dst []byte, cmd common.Command) []byte {
	return AppendCommand(dst, cmd.ID(), common.RequestArguments(cmd))
}

func (c *codecImpl) EncodeReply(f Frame) []byte {
	return EncodeFrame(f, c.protocol)
}

func (c *codecImpl) NewDecoder(r io.Reader) *Decoder {
	return NewDecoder(r, c.protocol)
}

package resp

import (
	"bufio"
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
	"io"
	"strconv"
)

const (
	// MaxBulkLength is the largest bulk payload accepted (same limit as the server's proto-max-bulk-len default)
	MaxBulkLength = 512 * 1024 * 1024
	// MaxAggregateLength is the largest element count accepted for arrays, sets, maps and pushes
	MaxAggregateLength = 1 << 24
	// MaxDepth bounds the nesting of aggregate frames
	MaxDepth = 512

	defaultReaderSize = 16 * 1024
	preallocLimit     = 1024
)

// Decoder reads frames from a byte stream. Reads block until enough bytes are
// available, so frames may arrive in arbitrary fragments.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	r        *bufio.Reader
	protocol int
}

// NewDecoder creates a decoder for the given protocol revision (2 or 3).
// If r already is a *bufio.Reader it is used directly.
func NewDecoder(r io.Reader, protocol int) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, defaultReaderSize)
	}
	return &Decoder{r: br, protocol: protocol}
}

// SetProtocol switches the revision used for the following frames (after HELLO)
func (d *Decoder) SetProtocol(protocol int) {
	d.protocol = protocol
}

// Protocol returns the revision the decoder accepts
func (d *Decoder) Protocol() int {
	return d.protocol
}

// Buffered returns the number of bytes already read from the stream but not yet decoded
func (d *Decoder) Buffered() int {
	return d.r.Buffered()
}

// Decode reads exactly one frame.
//
// A stream that ends before the first byte of a frame returns io.EOF. A stream that
// ends inside a frame, and every malformed frame, returns a *common.ProtocolError.
// Other read errors (timeouts, resets) are returned unchanged.
//
// Duplicate keys in a map frame are resolved last-write-wins: the value of the later
// entry replaces the earlier one, the entry keeps the position of its first occurrence.
func (d *Decoder) Decode() (Frame, error) {
	return d.decode(0)
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

func (d *Decoder) decode(depth int) (Frame, error) {
	if depth > MaxDepth {
		return Frame{}, common.NewProtocolError("frame nesting exceeds %d levels", MaxDepth)
	}

	tag, err := d.r.ReadByte()
	if err != nil {
		if depth == 0 && errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, wrapReadError(err)
	}

	switch tag {
	case '+':
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: KindStatus, Str: line}, nil

	case '-':
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: KindError, Str: line}, nil

	case ':':
		n, err := d.readInt()
		if err != nil {
			return Frame{}, err
		}
		return Integer(n), nil

	case '$':
		payload, null, err := d.readBlob("bulk string")
		if err != nil {
			return Frame{}, err
		}
		if null {
			return Null(), nil
		}
		return Frame{Kind: KindBulk, Str: payload}, nil

	case '*':
		n, err := d.readCount("array", true)
		if err != nil {
			return Frame{}, err
		}
		if n < 0 {
			return Null(), nil
		}
		elems, err := d.readElems(n, depth)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: KindArray, Elems: elems}, nil
	}

	if d.protocol != 3 {
		return Frame{}, common.NewProtocolError("unexpected type tag %q for RESP%d", tag, d.protocol)
	}

	switch tag {
	case '_':
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		if len(line) != 0 {
			return Frame{}, common.NewProtocolError("null frame with payload %q", line)
		}
		return Null(), nil

	case ',':
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		v, err := strconv.ParseFloat(string(line), 64)
		if err != nil {
			return Frame{}, common.NewProtocolError("invalid double %q", line)
		}
		return Double(v), nil

	case '#':
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		switch string(line) {
		case "t":
			return Boolean(true), nil
		case "f":
			return Boolean(false), nil
		default:
			return Frame{}, common.NewProtocolError("invalid boolean %q", line)
		}

	case '(':
		line, err := d.readLine()
		if err != nil {
			return Frame{}, err
		}
		if !isBigNumber(line) {
			return Frame{}, common.NewProtocolError("invalid big number %q", line)
		}
		return Frame{Kind: KindBigNumber, Str: line}, nil

	case '!':
		payload, null, err := d.readBlob("blob error")
		if err != nil {
			return Frame{}, err
		}
		if null {
			return Frame{}, common.NewProtocolError("null blob error")
		}
		return Frame{Kind: KindError, Str: payload}, nil

	case '=':
		payload, null, err := d.readBlob("verbatim string")
		if err != nil {
			return Frame{}, err
		}
		if null || len(payload) < 4 || payload[3] != ':' {
			return Frame{}, common.NewProtocolError("verbatim string without format prefix")
		}
		return Frame{Kind: KindVerbatim, Format: string(payload[:3]), Str: payload[4:]}, nil

	case '~', '>':
		kind := KindSet
		if tag == '>' {
			kind = KindPush
		}
		n, err := d.readCount(kind.String(), false)
		if err != nil {
			return Frame{}, err
		}
		elems, err := d.readElems(n, depth)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: kind, Elems: elems}, nil

	case '%':
		pairs, err := d.readPairs(depth)
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: KindMap, Pairs: pairs}, nil

	case '|':
		attrs, err := d.readPairs(depth)
		if err != nil {
			return Frame{}, err
		}
		// attributes belong to the frame that follows them
		next, err := d.decode(depth + 1)
		if err != nil {
			return Frame{}, err
		}
		next.Attrs = append(attrs, next.Attrs...)
		return next, nil

	default:
		return Frame{}, common.NewProtocolError("unknown type tag %q", tag)
	}
}

func (d *Decoder) readElems(n int, depth int) ([]Frame, error) {
	elems := make([]Frame, 0, min(n, preallocLimit))
	for i := 0; i < n; i++ {
		elem, err := d.decode(depth + 1)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return elems, nil
}

func (d *Decoder) readPairs(depth int) ([]Pair, error) {
	n, err := d.readCount("map", false)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, min(n, preallocLimit))
	index := make(map[string]int, min(n, preallocLimit))
	for i := 0; i < n; i++ {
		key, err := d.decode(depth + 1)
		if err != nil {
			return nil, err
		}
		value, err := d.decode(depth + 1)
		if err != nil {
			return nil, err
		}
		// a repeated key overwrites the value but keeps its first position
		k := mapKey(key)
		if idx, ok := index[k]; ok {
			pairs[idx].Value = value
			continue
		}
		index[k] = len(pairs)
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return pairs, nil
}

// mapKey returns the lookup key of a map key frame. String keys use their kind and
// payload, everything else its RESP3 encoding.
func mapKey(key Frame) string {
	if len(key.Attrs) == 0 {
		switch key.Kind {
		case KindBulk, KindStatus, KindBigNumber, KindError:
			return string(rune(key.Kind)) + string(key.Str)
		}
	}
	return string(EncodeFrame(key, 3))
}

// --------------------------------------------------------------------------
// Primitive readers
// --------------------------------------------------------------------------

// readLine reads up to the line terminator and returns the line without CRLF
func (d *Decoder) readLine() ([]byte, error) {
	line, err := d.r.ReadBytes('\n')
	if err != nil {
		return nil, wrapReadError(err)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, common.NewProtocolError("line not terminated by CRLF")
	}
	return line[:len(line)-2], nil
}

func (d *Decoder) readInt() (int64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}
	return parseDecimal(line)
}

// readCount reads an element count. -1 is only accepted if allowNull is set.
func (d *Decoder) readCount(what string, allowNull bool) (int, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}
	if len(line) == 1 && line[0] == '?' {
		return 0, common.NewProtocolError("streamed %s is not supported", what)
	}
	n, err := parseDecimal(line)
	if err != nil {
		return 0, err
	}
	switch {
	case n == -1 && allowNull:
		return -1, nil
	case n < 0:
		return 0, common.NewProtocolError("invalid %s length %d", what, n)
	case n > MaxAggregateLength:
		return 0, common.NewProtocolError("%s length %d exceeds limit", what, n)
	}
	return int(n), nil
}

// readBlob reads a length prefixed payload. A length of -1 reports null.
func (d *Decoder) readBlob(what string) ([]byte, bool, error) {
	line, err := d.readLine()
	if err != nil {
		return nil, false, err
	}
	if len(line) == 1 && line[0] == '?' {
		return nil, false, common.NewProtocolError("streamed %s is not supported", what)
	}
	n, err := parseDecimal(line)
	if err != nil {
		return nil, false, err
	}
	switch {
	case n == -1:
		return nil, true, nil
	case n < 0:
		return nil, false, common.NewProtocolError("invalid %s length %d", what, n)
	case n > MaxBulkLength:
		return nil, false, common.NewProtocolError("%s length %d exceeds limit", what, n)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, false, wrapReadError(err)
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, false, common.NewProtocolError("%s not terminated by CRLF", what)
	}
	return buf[:n:n], false, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseDecimal parses an optionally negative decimal integer. Signs other than '-',
// whitespace and empty input are rejected.
func parseDecimal(b []byte) (int64, error) {
	if len(b) == 0 || b[0] == '+' {
		return 0, common.NewProtocolError("invalid integer %q", b)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, common.NewProtocolError("invalid integer %q", b)
	}
	return n, nil
}

func isBigNumber(b []byte) bool {
	if len(b) > 0 && (b[0] == '-' || b[0] == '+') {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// wrapReadError converts an end of stream inside a frame into a protocol error.
// Other errors are passed through so the transport can classify them (timeouts, resets).
func wrapReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &common.ProtocolError{Msg: "stream closed inside a frame", Err: io.ErrUnexpectedEOF}
	}
	return err
}

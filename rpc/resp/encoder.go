package resp

import (
	"bytes"
	"github.com/ValentinKolb/rKV/rpc/common"
	"strconv"
)

// --------------------------------------------------------------------------
// Request encoding
// --------------------------------------------------------------------------

// AppendCommand appends a request (array of bulk strings: id followed by args) to dst.
// The request encoding is the same for both protocol revisions.
func AppendCommand(dst []byte, id string, args [][]byte) []byte {
	dst = appendHeader(dst, '*', int64(1+len(args)))
	dst = appendBulk(dst, []byte(id))
	for _, arg := range args {
		dst = appendBulk(dst, arg)
	}
	return dst
}

// EncodeCommand encodes a command into a new buffer. Script commands with a
// declared key count get the count inserted after the body.
func EncodeCommand(cmd common.Command) []byte {
	args := common.RequestArguments(cmd)
	size := 16 + len(cmd.ID())
	for _, arg := range args {
		size += len(arg) + 16
	}
	return AppendCommand(make([]byte, 0, size), cmd.ID(), args)
}

// --------------------------------------------------------------------------
// Reply encoding
// --------------------------------------------------------------------------

// AppendFrame appends the wire form of a reply frame to dst.
// With protocol 2 the RESP3-only kinds are downgraded the way a server does it:
// null becomes $-1, doubles, big numbers and verbatim strings become bulk strings,
// booleans become integers, maps become flat arrays and sets/pushes become arrays.
// Attributes are only written with protocol 3.
func AppendFrame(dst []byte, f Frame, protocol int) []byte {
	resp3 := protocol == 3

	if resp3 && len(f.Attrs) > 0 {
		dst = appendHeader(dst, '|', int64(len(f.Attrs)))
		for _, pair := range f.Attrs {
			dst = AppendFrame(dst, pair.Key, protocol)
			dst = AppendFrame(dst, pair.Value, protocol)
		}
	}

	switch f.Kind {
	case KindStatus:
		dst = appendLine(dst, '+', f.Str)
	case KindError:
		if resp3 && bytes.ContainsAny(f.Str, "\r\n") {
			dst = appendHeader(dst, '!', int64(len(f.Str)))
			dst = append(dst, f.Str...)
			dst = append(dst, '\r', '\n')
		} else {
			dst = appendLine(dst, '-', f.Str)
		}
	case KindInteger:
		dst = appendHeader(dst, ':', f.Int)
	case KindBulk:
		dst = appendBulk(dst, f.Str)
	case KindNull:
		if resp3 {
			dst = append(dst, '_', '\r', '\n')
		} else {
			dst = append(dst, "$-1\r\n"...)
		}
	case KindDouble:
		if resp3 {
			dst = appendLine(dst, ',', []byte(formatDouble(f.Double)))
		} else {
			dst = appendBulk(dst, []byte(formatDouble(f.Double)))
		}
	case KindBoolean:
		switch {
		case resp3 && f.Bool:
			dst = append(dst, "#t\r\n"...)
		case resp3:
			dst = append(dst, "#f\r\n"...)
		case f.Bool:
			dst = append(dst, ":1\r\n"...)
		default:
			dst = append(dst, ":0\r\n"...)
		}
	case KindBigNumber:
		if resp3 {
			dst = appendLine(dst, '(', f.Str)
		} else {
			dst = appendBulk(dst, f.Str)
		}
	case KindVerbatim:
		if resp3 {
			format := f.Format
			if len(format) != 3 {
				format = "txt"
			}
			dst = appendHeader(dst, '=', int64(len(f.Str)+4))
			dst = append(dst, format...)
			dst = append(dst, ':')
			dst = append(dst, f.Str...)
			dst = append(dst, '\r', '\n')
		} else {
			dst = appendBulk(dst, f.Str)
		}
	case KindArray, KindSet, KindPush:
		tag := byte('*')
		if resp3 && f.Kind == KindSet {
			tag = '~'
		} else if resp3 && f.Kind == KindPush {
			tag = '>'
		}
		dst = appendHeader(dst, tag, int64(len(f.Elems)))
		for _, elem := range f.Elems {
			dst = AppendFrame(dst, elem, protocol)
		}
	case KindMap:
		if resp3 {
			dst = appendHeader(dst, '%', int64(len(f.Pairs)))
		} else {
			dst = appendHeader(dst, '*', int64(2*len(f.Pairs)))
		}
		for _, pair := range f.Pairs {
			dst = AppendFrame(dst, pair.Key, protocol)
			dst = AppendFrame(dst, pair.Value, protocol)
		}
	}
	return dst
}

// EncodeFrame encodes a reply frame into a new buffer
func EncodeFrame(f Frame, protocol int) []byte {
	return AppendFrame(nil, f, protocol)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func appendHeader(dst []byte, tag byte, n int64) []byte {
	dst = append(dst, tag)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, '\r', '\n')
}

func appendBulk(dst []byte, b []byte) []byte {
	dst = appendHeader(dst, '$', int64(len(b)))
	dst = append(dst, b...)
	return append(dst, '\r', '\n')
}

func appendLine(dst []byte, tag byte, b []byte) []byte {
	dst = append(dst, tag)
	dst = append(dst, b...)
	return append(dst, '\r', '\n')
}

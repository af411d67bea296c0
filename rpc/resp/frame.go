package resp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Frame Kinds
// --------------------------------------------------------------------------

// Kind is the variant tag of a Frame
type Kind uint8

const (
	KindStatus Kind = iota + 1
	KindError
	KindInteger
	KindBulk
	KindNull
	KindDouble
	KindBoolean
	KindBigNumber
	KindVerbatim
	KindArray
	KindSet
	KindMap
	KindPush
)

var kindNames = map[Kind]string{
	KindStatus:    "status",
	KindError:     "error",
	KindInteger:   "integer",
	KindBulk:      "bulk",
	KindNull:      "null",
	KindDouble:    "double",
	KindBoolean:   "boolean",
	KindBigNumber: "big-number",
	KindVerbatim:  "verbatim",
	KindArray:     "array",
	KindSet:       "set",
	KindMap:       "map",
	KindPush:      "push",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// IsAggregate reports whether frames of this kind carry child frames
func (k Kind) IsAggregate() bool {
	return k == KindArray || k == KindSet || k == KindMap || k == KindPush
}

// --------------------------------------------------------------------------
// Frame Structure
// --------------------------------------------------------------------------

// Pair is one key/value entry of a map or attribute frame
type Pair struct {
	Key   Frame
	Value Frame
}

// Frame is one decoded unit of the wire protocol. Which fields are used depends on Kind:
//
//   - Status, Error, Bulk, BigNumber: Str
//   - Verbatim: Str and Format (three bytes, e.g. "txt")
//   - Integer: Int
//   - Double: Double
//   - Boolean: Bool
//   - Array, Set, Push: Elems
//   - Map: Pairs
//
// Attributes sent ahead of a frame are attached to it in Attrs.
type Frame struct {
	Kind   Kind
	Str    []byte
	Int    int64
	Double float64
	Bool   bool
	Format string
	Elems  []Frame
	Pairs  []Pair
	Attrs  []Pair
}

// --------------------------------------------------------------------------
// Frame Factory Functions
// --------------------------------------------------------------------------

func Status(s string) Frame { return Frame{Kind: KindStatus, Str: []byte(s)} }

func Error(s string) Frame { return Frame{Kind: KindError, Str: []byte(s)} }

func Integer(n int64) Frame { return Frame{Kind: KindInteger, Int: n} }

func Bulk(b []byte) Frame {
	if b == nil {
		b = []byte{}
	}
	return Frame{Kind: KindBulk, Str: b}
}

func BulkString(s string) Frame { return Frame{Kind: KindBulk, Str: []byte(s)} }

func Null() Frame { return Frame{Kind: KindNull} }

func Double(f float64) Frame { return Frame{Kind: KindDouble, Double: f} }

func Boolean(b bool) Frame { return Frame{Kind: KindBoolean, Bool: b} }

func BigNumber(s string) Frame { return Frame{Kind: KindBigNumber, Str: []byte(s)} }

func Verbatim(format, text string) Frame {
	return Frame{Kind: KindVerbatim, Format: format, Str: []byte(text)}
}

func Array(elems ...Frame) Frame { return Frame{Kind: KindArray, Elems: nonNil(elems)} }

func Set(elems ...Frame) Frame { return Frame{Kind: KindSet, Elems: nonNil(elems)} }

func Push(elems ...Frame) Frame { return Frame{Kind: KindPush, Elems: nonNil(elems)} }

func Map(pairs ...Pair) Frame {
	if pairs == nil {
		pairs = []Pair{}
	}
	return Frame{Kind: KindMap, Pairs: pairs}
}

// WithAttributes returns a copy of the frame carrying the given attributes
func (f Frame) WithAttributes(attrs ...Pair) Frame {
	f.Attrs = attrs
	return f
}

func nonNil(elems []Frame) []Frame {
	if elems == nil {
		return []Frame{}
	}
	return elems
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

func (f Frame) IsNull() bool { return f.Kind == KindNull }

func (f Frame) IsError() bool { return f.Kind == KindError }

// Text returns the string payload of status, error, bulk, verbatim and big number frames,
// and the formatted value of integer, double and boolean frames
func (f Frame) Text() string {
	switch f.Kind {
	case KindInteger:
		return strconv.FormatInt(f.Int, 10)
	case KindDouble:
		return formatDouble(f.Double)
	case KindBoolean:
		if f.Bool {
			return "true"
		}
		return "false"
	default:
		return string(f.Str)
	}
}

// ErrorCode returns the code-like prefix of an error frame ("ERR", "WRONGTYPE", "MOVED", ...)
func (f Frame) ErrorCode() string {
	if f.Kind != KindError {
		return ""
	}
	code, _, _ := strings.Cut(string(f.Str), " ")
	return code
}

// ErrorMessage returns the message of an error frame without its code
func (f Frame) ErrorMessage() string {
	if f.Kind != KindError {
		return ""
	}
	_, msg, found := strings.Cut(string(f.Str), " ")
	if !found {
		return string(f.Str)
	}
	return msg
}

// BigInt parses a big number frame
func (f Frame) BigInt() (*big.Int, bool) {
	if f.Kind != KindBigNumber {
		return nil, false
	}
	return new(big.Int).SetString(string(f.Str), 10)
}

// --------------------------------------------------------------------------
// Equality
// --------------------------------------------------------------------------

// Equal compares two frames. Sets, maps and attributes are compared ignoring element order.
func (f Frame) Equal(o Frame) bool {
	if f.Kind != o.Kind {
		return false
	}
	if !pairsEqualUnordered(f.Attrs, o.Attrs) {
		return false
	}

	switch f.Kind {
	case KindNull:
		return true
	case KindInteger:
		return f.Int == o.Int
	case KindDouble:
		if math.IsNaN(f.Double) && math.IsNaN(o.Double) {
			return true
		}
		return f.Double == o.Double
	case KindBoolean:
		return f.Bool == o.Bool
	case KindVerbatim:
		return f.Format == o.Format && bytes.Equal(f.Str, o.Str)
	case KindArray, KindPush:
		if len(f.Elems) != len(o.Elems) {
			return false
		}
		for i := range f.Elems {
			if !f.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case KindSet:
		return framesEqualUnordered(f.Elems, o.Elems)
	case KindMap:
		return pairsEqualUnordered(f.Pairs, o.Pairs)
	default:
		return bytes.Equal(f.Str, o.Str)
	}
}

func framesEqualUnordered(a, b []Frame) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, x := range a {
		for j, y := range b {
			if !used[j] && x.Equal(y) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func pairsEqualUnordered(a, b []Pair) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
outer:
	for _, x := range a {
		for j, y := range b {
			if !used[j] && x.Key.Equal(y.Key) && x.Value.Equal(y.Value) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Formatting
// --------------------------------------------------------------------------

// String renders the frame the way redis-cli prints replies
func (f Frame) String() string {
	var sb strings.Builder
	f.render(&sb, "")
	return strings.TrimSuffix(sb.String(), "\n")
}

func (f Frame) render(sb *strings.Builder, indent string) {
	switch f.Kind {
	case KindNull:
		sb.WriteString("(nil)\n")
	case KindStatus:
		sb.Write(f.Str)
		sb.WriteByte('\n')
	case KindError:
		sb.WriteString("(error) ")
		sb.Write(f.Str)
		sb.WriteByte('\n')
	case KindInteger:
		fmt.Fprintf(sb, "(integer) %d\n", f.Int)
	case KindDouble:
		fmt.Fprintf(sb, "(double) %s\n", formatDouble(f.Double))
	case KindBoolean:
		fmt.Fprintf(sb, "(boolean) %t\n", f.Bool)
	case KindBigNumber:
		fmt.Fprintf(sb, "(big number) %s\n", f.Str)
	case KindBulk, KindVerbatim:
		sb.WriteString(strconv.Quote(string(f.Str)))
		sb.WriteByte('\n')
	case KindArray, KindSet, KindPush:
		if len(f.Elems) == 0 {
			sb.WriteString("(empty array)\n")
			return
		}
		width := len(strconv.Itoa(len(f.Elems)))
		for i, elem := range f.Elems {
			if i > 0 {
				sb.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			sb.WriteString(prefix)
			elem.render(sb, indent+strings.Repeat(" ", len(prefix)))
		}
	case KindMap:
		if len(f.Pairs) == 0 {
			sb.WriteString("(empty hash)\n")
			return
		}
		width := len(strconv.Itoa(len(f.Pairs)))
		for i, pair := range f.Pairs {
			if i > 0 {
				sb.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d# ", width, i+1)
			sb.WriteString(prefix)
			sb.WriteString(pair.Key.Text())
			sb.WriteString(" => ")
			pair.Value.render(sb, indent+strings.Repeat(" ", len(prefix)+len(pair.Key.Text())+4))
		}
	default:
		fmt.Fprintf(sb, "(unknown %s)\n", f.Kind)
	}
}

// formatDouble renders a double the way it is written on the wire
func formatDouble(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Command Contract
// --------------------------------------------------------------------------

// Command is the narrow contract the codec, the transport and the slot router
// consume. An identifier plus an ordered list of binary-safe arguments.
type Command interface {
	// ID returns the upper-cased command identifier (e.g. "GET")
	ID() string
	// Arguments returns the ordered arguments, not including the identifier
	Arguments() [][]byte
}

// MutableCommand is a command whose arguments may be replaced before dispatch (key prefixing)
type MutableCommand interface {
	Command
	SetArguments(args [][]byte)
}

// KeyCounter is implemented by script-style commands that declare their key count
// themselves instead of carrying it as an argument. Their Arguments() are laid out
// as [body, keys..., args...] and the count is inserted after the body on the wire.
type KeyCounter interface {
	KeyCount() int
}

// --------------------------------------------------------------------------
// Raw Command
// --------------------------------------------------------------------------

// RawCommand is the generic Command implementation
type RawCommand struct {
	id   string
	args [][]byte
}

// NewCommand creates a command from an identifier and arbitrary arguments.
// Arguments are converted with ToArgument.
func NewCommand(id string, args ...interface{}) *RawCommand {
	converted := make([][]byte, 0, len(args))
	for _, arg := range args {
		converted = append(converted, ToArgument(arg))
	}
	return &RawCommand{id: strings.ToUpper(id), args: converted}
}

// NewCommandFromBytes creates a command without converting the arguments
func NewCommandFromBytes(id string, args [][]byte) *RawCommand {
	return &RawCommand{id: strings.ToUpper(id), args: args}
}

// ParseCommand splits a command line ("SET foo bar") at whitespace. Arguments
// wrapped in double quotes may contain spaces.
func ParseCommand(line string) (*RawCommand, error) {
	fields, err := splitCommandLine(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	args := make([]interface{}, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, f)
	}
	return NewCommand(fields[0], args...), nil
}

func (c *RawCommand) ID() string { return c.id }

func (c *RawCommand) Arguments() [][]byte { return c.args }

func (c *RawCommand) SetArguments(args [][]byte) { c.args = args }

func (c *RawCommand) String() string {
	var sb strings.Builder
	sb.WriteString(c.id)
	for _, arg := range c.args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(string(arg)))
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Script Command
// --------------------------------------------------------------------------

// ScriptCommand is a script-style command (EVAL, EVALSHA, FCALL, ...) with a declared key count
type ScriptCommand struct {
	RawCommand
	keyCount int
}

// NewScriptCommand creates a script-style command. body is the script, sha or function name.
func NewScriptCommand(id string, body string, keys []string, args ...interface{}) *ScriptCommand {
	converted := make([][]byte, 0, 1+len(keys)+len(args))
	converted = append(converted, []byte(body))
	for _, key := range keys {
		converted = append(converted, []byte(key))
	}
	for _, arg := range args {
		converted = append(converted, ToArgument(arg))
	}
	return &ScriptCommand{
		RawCommand: RawCommand{id: strings.ToUpper(id), args: converted},
		keyCount:   len(keys),
	}
}

func (c *ScriptCommand) KeyCount() int { return c.keyCount }

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// RequestArguments returns the arguments as they are sent on the wire.
// For KeyCounter commands the declared key count is inserted after the body.
func RequestArguments(cmd Command) [][]byte {
	args := cmd.Arguments()
	counter, ok := cmd.(KeyCounter)
	if !ok || len(args) == 0 {
		return args
	}
	out := make([][]byte, 0, len(args)+1)
	out = append(out, args[0])
	out = append(out, strconv.AppendInt(nil, int64(counter.KeyCount()), 10))
	return append(out, args[1:]...)
}

// ToArgument converts a value into a binary-safe argument
func ToArgument(v interface{}) []byte {
	switch val := v.(type) {
	case nil:
		return []byte{}
	case []byte:
		return val
	case string:
		return []byte(val)
	case int:
		return strconv.AppendInt(nil, int64(val), 10)
	case int32:
		return strconv.AppendInt(nil, int64(val), 10)
	case int64:
		return strconv.AppendInt(nil, val, 10)
	case uint:
		return strconv.AppendUint(nil, uint64(val), 10)
	case uint32:
		return strconv.AppendUint(nil, uint64(val), 10)
	case uint64:
		return strconv.AppendUint(nil, val, 10)
	case float32:
		return strconv.AppendFloat(nil, float64(val), 'f', -1, 32)
	case float64:
		return strconv.AppendFloat(nil, val, 'f', -1, 64)
	case bool:
		if val {
			return []byte("1")
		}
		return []byte("0")
	case fmt.Stringer:
		return []byte(val.String())
	default:
		return []byte(fmt.Sprint(val))
	}
}

// splitCommandLine splits a line at whitespace, honoring double quotes and \" escapes
func splitCommandLine(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inQuote bool
		hasTok  bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuote && ch == '\\' && i+1 < len(line):
			i++
			current.WriteByte(line[i])
		case ch == '"':
			inQuote = !inQuote
			hasTok = true
		case !inQuote && (ch == ' ' || ch == '\t'):
			if hasTok {
				fields = append(fields, current.String())
				current.Reset()
				hasTok = false
			}
		default:
			current.WriteByte(ch)
			hasTok = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unbalanced quotes in %q", line)
	}
	if hasTok {
		fields = append(fields, current.String())
	}
	return fields, nil
}

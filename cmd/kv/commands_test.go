package kv

import (
	"reflect"
	"strings"
	"testing"
)

func TestReadCommands(t *testing.T) {
	input := `
# warm up
SET foo "hello world"
GET foo

incr counter
`
	cmds, err := readCommands(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readCommands() error = %v", err)
	}

	got := make([][]string, len(cmds))
	for i, cmd := range cmds {
		line := []string{cmd.ID()}
		for _, arg := range cmd.Arguments() {
			line = append(line, string(arg))
		}
		got[i] = line
	}
	want := [][]string{
		{"SET", "foo", "hello world"},
		{"GET", "foo"},
		{"INCR", "counter"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readCommands() = %v, want %v", got, want)
	}
}

func TestReadCommandsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "\n# nothing\n", "no commands"},
		{"unterminated quote", "SET foo \"bar\n", "line 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readCommands(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("readCommands() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCommandFromArgs(t *testing.T) {
	cmd := commandFromArgs([]string{"hset", "h", "f", "v"})
	if cmd.ID() != "HSET" || len(cmd.Arguments()) != 3 {
		t.Errorf("commandFromArgs() = %v", cmd)
	}
}

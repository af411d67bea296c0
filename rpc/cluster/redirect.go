package cluster

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"strconv"
	"strings"
)

// Redirect is the routing information carried by a MOVED or ASK error reply
type Redirect struct {
	// Ask is true for a one-shot ASK redirection, false for MOVED
	Ask  bool
	Slot int
	Node string
}

func (r Redirect) String() string {
	kind := "MOVED"
	if r.Ask {
		kind = "ASK"
	}
	return fmt.Sprintf("%s %d %s", kind, r.Slot, r.Node)
}

// ParseRedirect extracts the redirection from an error frame ("MOVED 3999 127.0.0.1:6381").
// It returns false for any other frame.
func ParseRedirect(frame resp.Frame) (Redirect, bool) {
	if !frame.IsError() {
		return Redirect{}, false
	}

	fields := strings.Fields(frame.Text())
	if len(fields) != 3 {
		return Redirect{}, false
	}

	var r Redirect
	switch fields[0] {
	case "MOVED":
	case "ASK":
		r.Ask = true
	default:
		return Redirect{}, false
	}

	slot, err := strconv.Atoi(fields[1])
	if err != nil || slot < 0 || slot >= SlotCount {
		return Redirect{}, false
	}
	r.Slot = slot
	r.Node = fields[2]
	return r, true
}

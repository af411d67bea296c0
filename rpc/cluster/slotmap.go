package cluster

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"net"
	"sort"
	"strconv"
	"sync"
)

// SlotMap maps hash slots to node addresses ("host:port"). The zero value is an empty map.
type SlotMap struct {
	mu    sync.RWMutex
	slots [SlotCount]string
	count int
}

// NewSlotMap creates an empty slot map
func NewSlotMap() *SlotMap {
	return &SlotMap{}
}

// SetSlots assigns the slots [first, last] to node
func (m *SlotMap) SetSlots(first, last int, node string) error {
	if first < 0 || last >= SlotCount || first > last {
		return fmt.Errorf("invalid slot range %d-%d", first, last)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for slot := first; slot <= last; slot++ {
		m.setLocked(slot, node)
	}
	return nil
}

// SetSlot assigns a single slot to node (used for MOVED redirections)
func (m *SlotMap) SetSlot(slot int, node string) error {
	return m.SetSlots(slot, slot, node)
}

// Node returns the node owning slot, false when the slot is unassigned
func (m *SlotMap) Node(slot int) (string, bool) {
	if slot < 0 || slot >= SlotCount {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	node := m.slots[slot]
	return node, node != ""
}

// Nodes returns the distinct node addresses in sorted order
func (m *SlotMap) Nodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, node := range m.slots {
		if node != "" {
			seen[node] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(seen))
	for node := range seen {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Assigned returns the number of slots that have an owner
func (m *SlotMap) Assigned() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// IsEmpty reports whether no slot is assigned
func (m *SlotMap) IsEmpty() bool {
	return m.Assigned() == 0
}

// Reset unassigns every slot
func (m *SlotMap) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = [SlotCount]string{}
	m.count = 0
}

// UpdateFromClusterSlots replaces the map with the content of a CLUSTER SLOTS reply.
// Masters announced with an empty host are reachable at defaultHost.
func (m *SlotMap) UpdateFromClusterSlots(reply resp.Frame, defaultHost string) error {
	if reply.IsError() {
		return fmt.Errorf("CLUSTER SLOTS failed: %s", reply.Text())
	}
	if reply.Kind != resp.KindArray {
		return fmt.Errorf("unexpected CLUSTER SLOTS reply of kind %s", reply.Kind)
	}

	type assignment struct {
		first, last int
		node        string
	}
	assignments := make([]assignment, 0, len(reply.Elems))

	for _, entry := range reply.Elems {
		if len(entry.Elems) < 3 {
			return fmt.Errorf("malformed CLUSTER SLOTS entry: %s", entry)
		}
		first, last := entry.Elems[0], entry.Elems[1]
		master := entry.Elems[2]
		if first.Kind != resp.KindInteger || last.Kind != resp.KindInteger || len(master.Elems) < 2 {
			return fmt.Errorf("malformed CLUSTER SLOTS entry: %s", entry)
		}
		host := master.Elems[0].Text()
		if host == "" || host == "?" {
			host = defaultHost
		}
		port := master.Elems[1].Int
		if master.Elems[1].Kind != resp.KindInteger {
			p, err := strconv.Atoi(master.Elems[1].Text())
			if err != nil {
				return fmt.Errorf("malformed port in CLUSTER SLOTS entry: %s", entry)
			}
			port = int64(p)
		}
		if first.Int < 0 || last.Int >= SlotCount || first.Int > last.Int {
			return fmt.Errorf("invalid slot range %d-%d", first.Int, last.Int)
		}
		assignments = append(assignments, assignment{
			first: int(first.Int),
			last:  int(last.Int),
			node:  net.JoinHostPort(host, strconv.FormatInt(port, 10)),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = [SlotCount]string{}
	m.count = 0
	for _, a := range assignments {
		for slot := a.first; slot <= a.last; slot++ {
			m.setLocked(slot, a.node)
		}
	}
	return nil
}

func (m *SlotMap) setLocked(slot int, node string) {
	switch {
	case m.slots[slot] == "" && node != "":
		m.count++
	case m.slots[slot] != "" && node == "":
		m.count--
	}
	m.slots[slot] = node
}

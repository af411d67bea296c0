package cluster

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Key policies
// --------------------------------------------------------------------------

// KeyPolicy tells where the keys of a command are found in its arguments
type KeyPolicy int

const (
	// PolicyNone marks commands without keys
	PolicyNone KeyPolicy = iota
	// PolicyFake marks keyless commands that are routed to slot 0 by convention
	PolicyFake
	// PolicyFirst takes the first argument
	PolicyFirst
	// PolicyAll takes every argument
	PolicyAll
	// PolicyInterleaved takes the arguments at even positions (key value key value ...)
	PolicyInterleaved
	// PolicyBlockingList takes every argument except the trailing timeout
	PolicyBlockingList
	// PolicyBitOp takes every argument after the operation
	PolicyBitOp
	// PolicyLeadingCount takes the destination and the keys announced by the count at position 1
	PolicyLeadingCount
	// PolicyCount takes the keys announced by the count at position 0
	PolicyCount
	// PolicyTimeoutCount takes the keys announced by the count at position 1 (after a timeout)
	PolicyTimeoutCount
	// PolicyScript takes the keys announced by the count at position 1 or by the command's KeyCount
	PolicyScript
	// PolicySortStore takes the first argument and the key following STORE
	PolicySortStore
	// PolicyGeoStore takes the first argument and the keys following STORE and STOREDIST
	PolicyGeoStore
	// PolicyShardedUnsubscribe routes to slot 0 without arguments and takes every argument otherwise
	PolicyShardedUnsubscribe
	// PolicyPair takes the first two arguments (source and destination followed by options)
	PolicyPair
)

var policyNames = map[KeyPolicy]string{
	PolicyNone:               "none",
	PolicyFake:               "fake",
	PolicyFirst:              "first",
	PolicyAll:                "all",
	PolicyInterleaved:        "interleaved",
	PolicyBlockingList:       "blocking-list",
	PolicyBitOp:              "bitop",
	PolicyLeadingCount:       "leading-count",
	PolicyCount:              "count",
	PolicyTimeoutCount:       "timeout-count",
	PolicyScript:             "script",
	PolicySortStore:          "sort-store",
	PolicyGeoStore:           "geo-store",
	PolicyShardedUnsubscribe: "sharded-unsubscribe",
	PolicyPair:               "pair",
}

func (p KeyPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("KeyPolicy(%d)", int(p))
}

// ParseKeyPolicy resolves a policy by its name
func ParseKeyPolicy(name string) (KeyPolicy, error) {
	for policy, n := range policyNames {
		if strings.EqualFold(n, name) {
			return policy, nil
		}
	}
	return PolicyNone, fmt.Errorf("unknown key policy %q", name)
}

// positions returns the indexes of the key arguments of cmd under the policy
func (p KeyPolicy) positions(cmd common.Command) []int {
	args := cmd.Arguments()
	n := len(args)

	switch p {
	case PolicyFirst:
		return span(0, min(n, 1))
	case PolicyAll, PolicyShardedUnsubscribe:
		return span(0, n)
	case PolicyPair:
		if n < 2 {
			return nil
		}
		return span(0, 2)
	case PolicyInterleaved:
		var out []int
		for i := 0; i < n; i += 2 {
			out = append(out, i)
		}
		return out
	case PolicyBlockingList:
		if n < 2 {
			return nil
		}
		return span(0, n-1)
	case PolicyBitOp:
		if n < 2 {
			return nil
		}
		return span(1, n)
	case PolicyLeadingCount:
		count, ok := keyCount(args, 1, 2)
		if !ok {
			return nil
		}
		return append([]int{0}, span(2, 2+count)...)
	case PolicyCount:
		count, ok := keyCount(args, 0, 1)
		if !ok {
			return nil
		}
		return span(1, 1+count)
	case PolicyTimeoutCount:
		count, ok := keyCount(args, 1, 2)
		if !ok {
			return nil
		}
		return span(2, 2+count)
	case PolicyScript:
		if counter, ok := cmd.(common.KeyCounter); ok {
			// the body is followed by the keys, the count is only inserted on the wire
			count := counter.KeyCount()
			if count < 0 || 1+count > n {
				return nil
			}
			return span(1, 1+count)
		}
		count, ok := keyCount(args, 1, 2)
		if !ok {
			return nil
		}
		return span(2, 2+count)
	case PolicySortStore:
		if n == 0 {
			return nil
		}
		return append([]int{0}, optionValues(args, 1, "STORE")...)
	case PolicyGeoStore:
		if n == 0 {
			return nil
		}
		// options start after key, member/coordinates, radius and unit
		return append([]int{0}, optionValues(args, 4, "STORE", "STOREDIST")...)
	default:
		return nil
	}
}

// span returns the indexes [from, to)
func span(from, to int) []int {
	if to <= from {
		return nil
	}
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// keyCount parses the key count at position idx and checks that the keys starting at first exist
func keyCount(args [][]byte, idx, first int) (int, bool) {
	if idx >= len(args) {
		return 0, false
	}
	count, err := strconv.Atoi(string(args[idx]))
	if err != nil || count < 0 || first+count > len(args) {
		return 0, false
	}
	return count, true
}

// optionValues returns the positions of the values following the named options
func optionValues(args [][]byte, from int, options ...string) []int {
	var out []int
	for i := from; i < len(args)-1; i++ {
		for _, option := range options {
			if strings.EqualFold(string(args[i]), option) {
				out = append(out, i+1)
				i++
				break
			}
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Strategy
// --------------------------------------------------------------------------

// KeyHandler extracts the routing key of a command. It returns false when the command has no key.
type KeyHandler func(cmd common.Command) ([]byte, bool)

// commandEntry is either a built-in policy or a custom handler
type commandEntry struct {
	policy  KeyPolicy
	handler KeyHandler
}

// RedisStrategy maps commands to hash slots. The command table is safe for concurrent use.
type RedisStrategy struct {
	commands *xsync.MapOf[string, commandEntry]
}

// NewRedisStrategy creates a strategy initialized with the default command table
func NewRedisStrategy() *RedisStrategy {
	s := &RedisStrategy{commands: xsync.NewMapOf[string, commandEntry]()}
	for id, policy := range defaultCommandPolicies {
		s.commands.Store(id, commandEntry{policy: policy})
	}
	return s
}

// GetSlot returns the slot of the command. It returns false for unknown commands, commands
// without keys and commands whose keys map to different slots.
func (s *RedisStrategy) GetSlot(cmd common.Command) (int, bool) {
	entry, ok := s.commands.Load(normalizeID(cmd.ID()))
	if !ok {
		return 0, false
	}

	if entry.handler != nil {
		key, ok := entry.handler(cmd)
		if !ok {
			return 0, false
		}
		return SlotByKey(key), true
	}

	switch {
	case entry.policy == PolicyFake:
		return 0, true
	case entry.policy == PolicyShardedUnsubscribe && len(cmd.Arguments()) == 0:
		return 0, true
	}

	return slotOfKeys(s.keysAt(cmd, entry.policy.positions(cmd)))
}

// GetSlotOrError is GetSlot with an error telling why no slot was found
func (s *RedisStrategy) GetSlotOrError(cmd common.Command) (int, error) {
	if slot, ok := s.GetSlot(cmd); ok {
		return slot, nil
	}
	if keys := s.GetKeys(cmd); len(keys) > 1 {
		return 0, &common.CrossSlotError{Command: normalizeID(cmd.ID())}
	}
	return 0, fmt.Errorf("%w: %s", common.ErrNoSlot, normalizeID(cmd.ID()))
}

// GetSlotByKey returns the slot of a single key
func (s *RedisStrategy) GetSlotByKey(key []byte) int {
	return SlotByKey(key)
}

// GetKeys returns the keys of the command without checking their slots
func (s *RedisStrategy) GetKeys(cmd common.Command) [][]byte {
	entry, ok := s.commands.Load(normalizeID(cmd.ID()))
	if !ok {
		return nil
	}
	if entry.handler != nil {
		if key, ok := entry.handler(cmd); ok {
			return [][]byte{key}
		}
		return nil
	}
	return s.keysAt(cmd, entry.policy.positions(cmd))
}

// KeyPositions returns the argument indexes holding keys. Custom handlers expose no positions.
func (s *RedisStrategy) KeyPositions(cmd common.Command) []int {
	entry, ok := s.commands.Load(normalizeID(cmd.ID()))
	if !ok || entry.handler != nil {
		return nil
	}
	return entry.policy.positions(cmd)
}

// PrefixKeys prepends prefix to every key argument of the command and returns the number of prefixed keys
func (s *RedisStrategy) PrefixKeys(cmd common.MutableCommand, prefix []byte) int {
	positions := s.KeyPositions(cmd)
	if len(positions) == 0 || len(prefix) == 0 {
		return 0
	}

	args := append([][]byte(nil), cmd.Arguments()...)
	for _, pos := range positions {
		key := make([]byte, 0, len(prefix)+len(args[pos]))
		key = append(key, prefix...)
		args[pos] = append(key, args[pos]...)
	}
	cmd.SetArguments(args)
	return len(positions)
}

// SupportedCommands returns the sorted ids of all commands in the table
func (s *RedisStrategy) SupportedCommands() []string {
	ids := make([]string, 0, s.commands.Size())
	s.commands.Range(func(id string, _ commandEntry) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// SetCommandPolicy installs a built-in policy for the command id
func (s *RedisStrategy) SetCommandPolicy(id string, policy KeyPolicy) {
	s.commands.Store(normalizeID(id), commandEntry{policy: policy})
}

// GetCommandPolicy returns the built-in policy of the command id.
// It returns false for unknown ids and ids served by a custom handler.
func (s *RedisStrategy) GetCommandPolicy(id string) (KeyPolicy, bool) {
	entry, ok := s.commands.Load(normalizeID(id))
	if !ok || entry.handler != nil {
		return PolicyNone, false
	}
	return entry.policy, true
}

// SetCommandHandler installs a custom key handler that supersedes the policy of the command id.
// A nil handler removes the id from the table, the command then has no slot.
func (s *RedisStrategy) SetCommandHandler(id string, handler KeyHandler) {
	if handler == nil {
		s.UnsetCommandHandler(id)
		return
	}
	s.commands.Store(normalizeID(id), commandEntry{handler: handler})
}

// UnsetCommandHandler removes the command id from the table
func (s *RedisStrategy) UnsetCommandHandler(id string) {
	s.commands.Delete(normalizeID(id))
}

// GetCommandHandler returns the custom handler of the command id, nil when there is none
func (s *RedisStrategy) GetCommandHandler(id string) KeyHandler {
	entry, _ := s.commands.Load(normalizeID(id))
	return entry.handler
}

// GetDistributor always fails, slots are computed by the strategy itself
func (s *RedisStrategy) GetDistributor() (interface{}, error) {
	return nil, &common.NotSupportedError{Component: "cluster.RedisStrategy", Feature: "an external distributor"}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *RedisStrategy) keysAt(cmd common.Command, positions []int) [][]byte {
	if len(positions) == 0 {
		return nil
	}
	args := cmd.Arguments()
	keys := make([][]byte, 0, len(positions))
	for _, pos := range positions {
		keys = append(keys, args[pos])
	}
	return keys
}

// slotOfKeys returns the common slot of all keys
func slotOfKeys(keys [][]byte) (int, bool) {
	if len(keys) == 0 {
		return 0, false
	}
	slot := SlotByKey(keys[0])
	for _, key := range keys[1:] {
		if !bytes.Equal(key, keys[0]) && SlotByKey(key) != slot {
			return 0, false
		}
	}
	return slot, true
}

func normalizeID(id string) string {
	return strings.ToUpper(id)
}

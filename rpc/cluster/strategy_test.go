package cluster

import (
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
	"reflect"
	"sync"
	"testing"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

func cmd(id string, args ...interface{}) *common.RawCommand {
	return common.NewCommand(id, args...)
}

func keysOf(strs ...string) [][]byte {
	out := make([][]byte, len(strs))
	for i, s := range strs {
		out[i] = []byte(s)
	}
	return out
}

var policyGroups = map[KeyPolicy][]string{
	PolicyFirst: {
		"TYPE", "EXPIRE", "EXPIREAT", "PERSIST", "PEXPIRE", "PEXPIREAT", "TTL", "PTTL", "DUMP", "RESTORE",
		"APPEND", "DECR", "DECRBY", "GET", "GETBIT", "SET", "GETRANGE", "GETSET", "INCR", "INCRBY",
		"INCRBYFLOAT", "SETBIT", "SETEX", "SETNX", "SETRANGE", "STRLEN", "SUBSTR", "BITCOUNT", "BITFIELD",
		"LINSERT", "LINDEX", "LLEN", "LPOP", "RPOP", "LPUSH", "LPUSHX", "RPUSH", "RPUSHX", "LRANGE", "LREM",
		"LSET", "LTRIM", "SADD", "SCARD", "SISMEMBER", "SMEMBERS", "SSCAN", "SPOP", "SRANDMEMBER", "SREM",
		"ZADD", "ZCARD", "ZCOUNT", "ZINCRBY", "ZRANGE", "ZRANGEBYSCORE", "ZRANK", "ZREM", "ZREMRANGEBYRANK",
		"ZREMRANGEBYSCORE", "ZREVRANGE", "ZREVRANGEBYSCORE", "ZREVRANK", "ZSCORE", "ZSCAN", "ZLEXCOUNT",
		"ZRANGEBYLEX", "ZREMRANGEBYLEX", "ZREVRANGEBYLEX", "HDEL", "HEXISTS", "HGET", "HGETALL", "HMGET",
		"HMSET", "HINCRBY", "HINCRBYFLOAT", "HKEYS", "HLEN", "HSET", "HSETNX", "HVALS", "HSCAN", "HSTRLEN",
		"PFADD", "GEOADD", "GEOHASH", "GEOPOS", "GEODIST", "SPUBLISH",
	},
	PolicyAll: {
		"EXISTS", "DEL", "MGET", "RPOPLPUSH", "SDIFF", "SDIFFSTORE", "SINTER", "SINTERSTORE", "SUNION",
		"SUNIONSTORE", "PFCOUNT", "PFMERGE", "SSUBSCRIBE",
	},
	PolicyInterleaved:        {"MSET", "MSETNX"},
	PolicyFake:               {"FLUSHDB", "INFO", "CLUSTER"},
	PolicyBlockingList:       {"BLPOP", "BRPOP", "BRPOPLPUSH"},
	PolicyBitOp:              {"BITOP"},
	PolicyLeadingCount:       {"ZINTERSTORE", "ZUNIONSTORE"},
	PolicyScript:             {"EVAL", "EVALSHA", "EVAL_RO", "EVALSHA_RO"},
	PolicyGeoStore:           {"GEORADIUS", "GEORADIUSBYMEMBER"},
	PolicySortStore:          {"SORT"},
	PolicyShardedUnsubscribe: {"SUNSUBSCRIBE"},
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestDefaultCommandTable(t *testing.T) {
	s := NewRedisStrategy()
	for policy, ids := range policyGroups {
		for _, id := range ids {
			got, ok := s.GetCommandPolicy(id)
			if !ok || got != policy {
				t.Errorf("GetCommandPolicy(%s) = %s, %v, want %s", id, got, ok, policy)
			}
		}
	}
}

func TestKeysFirstArgument(t *testing.T) {
	s := NewRedisStrategy()
	for _, id := range policyGroups[PolicyFirst] {
		if _, ok := s.GetSlot(cmd(id, "key")); !ok {
			t.Errorf("%s: expected a slot", id)
		}
	}
}

func TestKeysAllArguments(t *testing.T) {
	s := NewRedisStrategy()
	for _, id := range policyGroups[PolicyAll] {
		if _, ok := s.GetSlot(cmd(id, "{key}:1", "{key}:2")); !ok {
			t.Errorf("%s: expected a slot for tagged keys", id)
		}
		if _, ok := s.GetSlot(cmd(id, "key:1", "key:2")); ok {
			t.Errorf("%s: expected no slot for keys on different slots", id)
		}
	}
}

func TestKeysInterleavedArguments(t *testing.T) {
	s := NewRedisStrategy()
	for _, id := range policyGroups[PolicyInterleaved] {
		if _, ok := s.GetSlot(cmd(id, "{key}:1", "value1", "{key}:2", "value2")); !ok {
			t.Errorf("%s: expected a slot", id)
		}
		if _, ok := s.GetSlot(cmd(id, "key:1", "value1", "key:2", "value2")); ok {
			t.Errorf("%s: expected no slot", id)
		}
	}
}

func TestFakeKeyCommands(t *testing.T) {
	s := NewRedisStrategy()
	for _, id := range policyGroups[PolicyFake] {
		for _, args := range [][]interface{}{nil, {"1", "2"}} {
			slot, ok := s.GetSlot(cmd(id, args...))
			if !ok || slot != 0 {
				t.Errorf("%s %v: got slot %d, %v, want 0", id, args, slot, ok)
			}
		}
	}
}

func TestKeysBlockingList(t *testing.T) {
	s := NewRedisStrategy()
	for _, id := range policyGroups[PolicyBlockingList] {
		if _, ok := s.GetSlot(cmd(id, "key:1", 10)); !ok {
			t.Errorf("%s with one key: expected a slot", id)
		}
		if _, ok := s.GetSlot(cmd(id, "key:1", "key:2", 10)); ok {
			t.Errorf("%s with two keys: expected no slot", id)
		}
	}
}

func TestKeysBitOp(t *testing.T) {
	s := NewRedisStrategy()
	if _, ok := s.GetSlot(cmd("BITOP", "AND", "{key}:destination", "{key}:src:1")); !ok {
		t.Error("expected a slot")
	}
	if _, ok := s.GetSlot(cmd("BITOP", "AND", "key:destination", "key:src:1", "key:src:2")); ok {
		t.Error("expected no slot")
	}
	want := keysOf("{key}:destination", "{key}:src:1")
	if got := s.GetKeys(cmd("BITOP", "AND", "{key}:destination", "{key}:src:1")); !reflect.DeepEqual(got, want) {
		t.Errorf("GetKeys = %q, want %q", got, want)
	}
}

func TestKeysZsetAggregation(t *testing.T) {
	s := NewRedisStrategy()
	for _, id := range policyGroups[PolicyLeadingCount] {
		if _, ok := s.GetSlot(cmd(id, "{key}:destination", 2, "{key}:1", "{key}:2", "WEIGHTS", 10, 100, "AGGREGATE", "sum")); !ok {
			t.Errorf("%s: expected a slot", id)
		}
		if _, ok := s.GetSlot(cmd(id, "key:destination", 2, "key:1", "key:2")); ok {
			t.Errorf("%s: expected no slot", id)
		}
	}
}

func TestKeysCount(t *testing.T) {
	s := NewRedisStrategy()
	tests := []struct {
		cmd  common.Command
		want [][]byte
	}{
		{cmd("ZUNION", 2, "{a}1", "{a}2", "WITHSCORES"), keysOf("{a}1", "{a}2")},
		{cmd("SINTERCARD", 1, "k", "LIMIT", 5), keysOf("k")},
		{cmd("LMPOP", 2, "{l}1", "{l}2", "LEFT"), keysOf("{l}1", "{l}2")},
		{cmd("BLMPOP", 0.5, 1, "list", "RIGHT"), keysOf("list")},
		{cmd("BZMPOP", 1, 2, "{z}a", "{z}b", "MIN"), keysOf("{z}a", "{z}b")},
		{cmd("ZDIFFSTORE", "dst", 1, "src"), keysOf("dst", "src")},
		{cmd("ZUNION", 3, "only-one"), nil},
		{cmd("ZUNION", "x", "k"), nil},
	}

	for _, tt := range tests {
		if got := s.GetKeys(tt.cmd); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GetKeys(%s) = %q, want %q", tt.cmd.ID(), got, tt.want)
		}
	}
}

func TestKeysScript(t *testing.T) {
	s := NewRedisStrategy()

	// numkeys carried as argument
	for _, id := range policyGroups[PolicyScript] {
		if _, ok := s.GetSlot(cmd(id, "%SCRIPT%", 2, "{key}:1", "{key}:2", "value1", "value2")); !ok {
			t.Errorf("%s: expected a slot", id)
		}
		if _, ok := s.GetSlot(cmd(id, "%SCRIPT%", 2, "key:1", "key:2", "value1", "value2")); ok {
			t.Errorf("%s: expected no slot", id)
		}
	}

	// declared key count
	script := common.NewScriptCommand("EVALSHA", "return true", []string{"key:1"}, "value1")
	if _, ok := s.GetSlot(script); !ok {
		t.Error("script command with one declared key: expected a slot")
	}

	two := common.NewScriptCommand("EVAL", "return 1", []string{"key1", "key2"}, "arg1")
	if got, want := s.GetKeys(two), keysOf("key1", "key2"); !reflect.DeepEqual(got, want) {
		t.Errorf("GetKeys = %q, want %q", got, want)
	}

	ro := common.NewScriptCommand("EVAL_RO", "return 1", []string{"key:1"}, "value1")
	if _, ok := s.GetSlot(ro); !ok {
		t.Error("EVAL_RO: expected a slot")
	}

	none := common.NewScriptCommand("EVAL", "return 1", nil, "arg1")
	if _, ok := s.GetSlot(none); ok {
		t.Error("script without keys: expected no slot")
	}
}

func TestKeysSort(t *testing.T) {
	s := NewRedisStrategy()
	if _, ok := s.GetSlot(cmd("SORT", "{key}:1")); !ok {
		t.Error("expected a slot")
	}
	if _, ok := s.GetSlot(cmd("SORT", "{key}:1", "STORE", "{key}:2")); !ok {
		t.Error("expected a slot with tagged STORE key")
	}
	if _, ok := s.GetSlot(cmd("SORT", "key:1", "BY", "w_*", "STORE", "key:2")); ok {
		t.Error("expected no slot with untagged STORE key")
	}
}

func TestKeysGeoradius(t *testing.T) {
	s := NewRedisStrategy()
	tests := []struct {
		cmd  common.Command
		want [][]byte
	}{
		{cmd("GEORADIUS", "{key}:1", 10, 10, 1, "km"), keysOf("{key}:1")},
		{cmd("GEORADIUS", "{key}:1", 10, 10, 1, "km", "store", "{key}:2", "storedist", "{key}:3"), keysOf("{key}:1", "{key}:2", "{key}:3")},
		{cmd("GEORADIUSBYMEMBER", "{key}:1", "member", 1, "km"), keysOf("{key}:1")},
		{cmd("GEORADIUSBYMEMBER", "{key}:1", "member", 1, "km", "store", "{key}:2", "storedist", "{key}:3"), keysOf("{key}:1", "{key}:2", "{key}:3")},
	}

	for _, tt := range tests {
		if got := s.GetKeys(tt.cmd); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GetKeys(%s) = %q, want %q", tt.cmd.ID(), got, tt.want)
		}
		if _, ok := s.GetSlot(tt.cmd); !ok {
			t.Errorf("%s: expected a slot", tt.cmd.ID())
		}
	}

	if _, ok := s.GetSlot(cmd("GEORADIUS", "key:1", 10, 10, 1, "km", "STORE", "key:2")); ok {
		t.Error("expected no slot for a STORE key on another slot")
	}
}

func TestKeysPair(t *testing.T) {
	s := NewRedisStrategy()
	if got, want := s.GetKeys(cmd("LMOVE", "{l}src", "{l}dst", "LEFT", "RIGHT")), keysOf("{l}src", "{l}dst"); !reflect.DeepEqual(got, want) {
		t.Errorf("GetKeys = %q, want %q", got, want)
	}
	if _, ok := s.GetSlot(cmd("COPY", "{k}a", "{k}b", "REPLACE")); !ok {
		t.Error("COPY: expected a slot")
	}
	if _, ok := s.GetSlot(cmd("COPY", "a")); ok {
		t.Error("COPY with one argument: expected no slot")
	}
}

func TestKeysShardedUnsubscribe(t *testing.T) {
	s := NewRedisStrategy()
	if slot, ok := s.GetSlot(cmd("SUNSUBSCRIBE")); !ok || slot != 0 {
		t.Errorf("SUNSUBSCRIBE without channels = %d, %v, want 0", slot, ok)
	}
	if slot, ok := s.GetSlot(cmd("SUNSUBSCRIBE", "{ch}1", "{ch}2")); !ok || slot != SlotByKey([]byte("ch")) {
		t.Errorf("SUNSUBSCRIBE = %d, %v", slot, ok)
	}
}

func TestUnknownAndKeylessCommands(t *testing.T) {
	s := NewRedisStrategy()
	for _, c := range []common.Command{cmd("PING"), cmd("NOSUCHCOMMAND", "key"), cmd("GET")} {
		if _, ok := s.GetSlot(c); ok {
			t.Errorf("%s: expected no slot", c.ID())
		}
	}
}

func TestCommandIDIsCaseInsensitive(t *testing.T) {
	s := NewRedisStrategy()
	lower := common.NewCommandFromBytes("get", keysOf("key"))
	if _, ok := s.GetSlot(lower); !ok {
		t.Error("expected a slot")
	}
	if _, ok := s.GetCommandPolicy("mset"); !ok {
		t.Error("expected policy for lower case id")
	}
}

func TestGetSlotOrError(t *testing.T) {
	s := NewRedisStrategy()

	slot, err := s.GetSlotOrError(cmd("GET", "{foo}"))
	if err != nil || slot != 12182 {
		t.Errorf("GetSlotOrError = %d, %v, want 12182", slot, err)
	}

	_, err = s.GetSlotOrError(cmd("MGET", "a", "b"))
	var crossSlot *common.CrossSlotError
	if !errors.As(err, &crossSlot) || !errors.Is(err, common.ErrCrossSlot) || !errors.Is(err, common.ErrNoSlot) {
		t.Errorf("expected cross slot error, got %v", err)
	}

	_, err = s.GetSlotOrError(cmd("PING"))
	if !errors.Is(err, common.ErrNoSlot) || errors.Is(err, common.ErrCrossSlot) {
		t.Errorf("expected no slot error, got %v", err)
	}
}

func TestSettingCommandHandler(t *testing.T) {
	s := NewRedisStrategy()
	s.SetCommandHandler("set", func(c common.Command) ([]byte, bool) {
		args := c.Arguments()
		if len(args) < 2 {
			return nil, false
		}
		return args[1], true
	})

	slot, ok := s.GetSlot(cmd("SET", "key", "{foo}"))
	if !ok || slot != 12182 {
		t.Errorf("GetSlot with handler = %d, %v, want 12182", slot, ok)
	}
	if s.GetCommandHandler("SET") == nil {
		t.Error("expected handler")
	}
	if _, ok := s.GetCommandPolicy("SET"); ok {
		t.Error("policy should be superseded by handler")
	}
	if got := s.KeyPositions(cmd("SET", "key", "value")); got != nil {
		t.Errorf("KeyPositions with handler = %v, want nil", got)
	}
}

func TestUnsettingCommandHandler(t *testing.T) {
	s := NewRedisStrategy()
	s.SetCommandHandler("set", nil)
	s.UnsetCommandHandler("get")

	if _, ok := s.GetSlot(cmd("SET", "key", "value")); ok {
		t.Error("SET: expected no slot")
	}
	if _, ok := s.GetSlot(cmd("GET", "key")); ok {
		t.Error("GET: expected no slot")
	}
	if s.GetCommandHandler("GET") != nil {
		t.Error("expected no handler")
	}

	// other instances are not affected
	if _, ok := NewRedisStrategy().GetSlot(cmd("GET", "key")); !ok {
		t.Error("fresh strategy: expected a slot")
	}
}

func TestSetCommandPolicy(t *testing.T) {
	s := NewRedisStrategy()
	s.SetCommandPolicy("myget", PolicyFirst)
	if _, ok := s.GetSlot(cmd("MYGET", "key")); !ok {
		t.Error("expected a slot")
	}

	p, err := ParseKeyPolicy("Interleaved")
	if err != nil || p != PolicyInterleaved {
		t.Errorf("ParseKeyPolicy = %s, %v", p, err)
	}
	if _, err := ParseKeyPolicy("unknown"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if got := KeyPolicy(99).String(); got != "KeyPolicy(99)" {
		t.Errorf("String() = %s", got)
	}
}

func TestSupportedCommands(t *testing.T) {
	s := NewRedisStrategy()
	ids := s.SupportedCommands()
	if len(ids) != len(defaultCommandPolicies) {
		t.Fatalf("got %d commands, want %d", len(ids), len(defaultCommandPolicies))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("commands not sorted: %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestPrefixKeys(t *testing.T) {
	s := NewRedisStrategy()
	tests := []struct {
		name  string
		cmd   common.MutableCommand
		want  [][]byte
		count int
	}{
		{"HSET", cmd("HSET", "key", "field", "value"), keysOf("pfx:key", "field", "value"), 1},
		{"ZUNIONSTORE", cmd("ZUNIONSTORE", "dst", 2, "a", "b", "WEIGHTS", 1, 2), keysOf("pfx:dst", "2", "pfx:a", "pfx:b", "WEIGHTS", "1", "2"), 3},
		{"FCALL", cmd("FCALL", "fn", 2, "a", "b", "arg"), keysOf("fn", "2", "pfx:a", "pfx:b", "arg"), 2},
		{"MSET", cmd("MSET", "a", "1", "b", "2"), keysOf("pfx:a", "1", "pfx:b", "2"), 2},
		{"UNSUBSCRIBE", cmd("UNSUBSCRIBE", "channel"), keysOf("channel"), 0},
		{"script", common.NewScriptCommand("EVAL", "body", []string{"k"}, "v"), keysOf("body", "pfx:k", "v"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := append([][]byte(nil), tt.cmd.Arguments()...)
			if n := s.PrefixKeys(tt.cmd, []byte("pfx:")); n != tt.count {
				t.Errorf("prefixed %d keys, want %d", n, tt.count)
			}
			if got := tt.cmd.Arguments(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("arguments = %q, want %q", got, tt.want)
			}
			if tt.count > 0 && reflect.DeepEqual(original, tt.cmd.Arguments()) {
				t.Error("arguments were not replaced")
			}
		})
	}
}

func TestGetDistributor(t *testing.T) {
	_, err := NewRedisStrategy().GetDistributor()
	var notSupported *common.NotSupportedError
	if !errors.As(err, &notSupported) {
		t.Fatalf("expected NotSupportedError, got %v", err)
	}
	if want := "cluster.RedisStrategy does not provide an external distributor"; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestConcurrentHandlerUpdates(t *testing.T) {
	s := NewRedisStrategy()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.SetCommandPolicy("CUSTOM", PolicyFirst)
				s.UnsetCommandHandler("CUSTOM")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.GetSlot(cmd("CUSTOM", "key"))
				s.GetSlot(cmd("GET", "key"))
			}
		}()
	}
	wg.Wait()
}

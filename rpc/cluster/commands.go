package cluster

// defaultCommandPolicies is the command table a new strategy starts with
var defaultCommandPolicies = map[string]KeyPolicy{
	// commands operating on the key space
	"EXISTS":      PolicyAll,
	"DEL":         PolicyAll,
	"UNLINK":      PolicyAll,
	"TOUCH":       PolicyAll,
	"TYPE":        PolicyFirst,
	"EXPIRE":      PolicyFirst,
	"EXPIREAT":    PolicyFirst,
	"EXPIRETIME":  PolicyFirst,
	"PERSIST":     PolicyFirst,
	"PEXPIRE":     PolicyFirst,
	"PEXPIREAT":   PolicyFirst,
	"PEXPIRETIME": PolicyFirst,
	"TTL":         PolicyFirst,
	"PTTL":        PolicyFirst,
	"SORT":        PolicySortStore,
	"SORT_RO":     PolicySortStore,
	"DUMP":        PolicyFirst,
	"RESTORE":     PolicyFirst,
	"COPY":        PolicyPair,
	"RENAME":      PolicyAll,
	"RENAMENX":    PolicyAll,

	// commands operating on string values
	"APPEND":      PolicyFirst,
	"DECR":        PolicyFirst,
	"DECRBY":      PolicyFirst,
	"GET":         PolicyFirst,
	"GETBIT":      PolicyFirst,
	"MGET":        PolicyAll,
	"SET":         PolicyFirst,
	"GETRANGE":    PolicyFirst,
	"GETSET":      PolicyFirst,
	"GETDEL":      PolicyFirst,
	"GETEX":       PolicyFirst,
	"INCR":        PolicyFirst,
	"INCRBY":      PolicyFirst,
	"INCRBYFLOAT": PolicyFirst,
	"SETBIT":      PolicyFirst,
	"SETEX":       PolicyFirst,
	"PSETEX":      PolicyFirst,
	"MSET":        PolicyInterleaved,
	"MSETNX":      PolicyInterleaved,
	"SETNX":       PolicyFirst,
	"SETRANGE":    PolicyFirst,
	"STRLEN":      PolicyFirst,
	"SUBSTR":      PolicyFirst,
	"BITOP":       PolicyBitOp,
	"BITCOUNT":    PolicyFirst,
	"BITFIELD":    PolicyFirst,
	"BITFIELD_RO": PolicyFirst,
	"BITPOS":      PolicyFirst,
	"LCS":         PolicyPair,

	// commands operating on lists
	"LINSERT":    PolicyFirst,
	"LINDEX":     PolicyFirst,
	"LLEN":       PolicyFirst,
	"LPOP":       PolicyFirst,
	"RPOP":       PolicyFirst,
	"RPOPLPUSH":  PolicyAll,
	"LMOVE":      PolicyPair,
	"BLPOP":      PolicyBlockingList,
	"BRPOP":      PolicyBlockingList,
	"BRPOPLPUSH": PolicyBlockingList,
	"BLMOVE":     PolicyPair,
	"LMPOP":      PolicyCount,
	"BLMPOP":     PolicyTimeoutCount,
	"LPUSH":      PolicyFirst,
	"LPUSHX":     PolicyFirst,
	"RPUSH":      PolicyFirst,
	"RPUSHX":     PolicyFirst,
	"LRANGE":     PolicyFirst,
	"LREM":       PolicyFirst,
	"LSET":       PolicyFirst,
	"LTRIM":      PolicyFirst,
	"LPOS":       PolicyFirst,

	// commands operating on sets
	"SADD":        PolicyFirst,
	"SCARD":       PolicyFirst,
	"SDIFF":       PolicyAll,
	"SDIFFSTORE":  PolicyAll,
	"SINTER":      PolicyAll,
	"SINTERSTORE": PolicyAll,
	"SINTERCARD":  PolicyCount,
	"SUNION":      PolicyAll,
	"SUNIONSTORE": PolicyAll,
	"SISMEMBER":   PolicyFirst,
	"SMISMEMBER":  PolicyFirst,
	"SMEMBERS":    PolicyFirst,
	"SSCAN":       PolicyFirst,
	"SPOP":        PolicyFirst,
	"SRANDMEMBER": PolicyFirst,
	"SREM":        PolicyFirst,
	"SMOVE":       PolicyBlockingList,

	// commands operating on sorted sets
	"ZADD":             PolicyFirst,
	"ZCARD":            PolicyFirst,
	"ZCOUNT":           PolicyFirst,
	"ZINCRBY":          PolicyFirst,
	"ZINTERSTORE":      PolicyLeadingCount,
	"ZUNIONSTORE":      PolicyLeadingCount,
	"ZDIFFSTORE":       PolicyLeadingCount,
	"ZINTER":           PolicyCount,
	"ZUNION":           PolicyCount,
	"ZDIFF":            PolicyCount,
	"ZINTERCARD":       PolicyCount,
	"ZMPOP":            PolicyCount,
	"BZMPOP":           PolicyTimeoutCount,
	"BZPOPMIN":         PolicyBlockingList,
	"BZPOPMAX":         PolicyBlockingList,
	"ZPOPMIN":          PolicyFirst,
	"ZPOPMAX":          PolicyFirst,
	"ZRANDMEMBER":      PolicyFirst,
	"ZMSCORE":          PolicyFirst,
	"ZRANGE":           PolicyFirst,
	"ZRANGESTORE":      PolicyPair,
	"ZRANGEBYSCORE":    PolicyFirst,
	"ZRANK":            PolicyFirst,
	"ZREM":             PolicyFirst,
	"ZREMRANGEBYRANK":  PolicyFirst,
	"ZREMRANGEBYSCORE": PolicyFirst,
	"ZREVRANGE":        PolicyFirst,
	"ZREVRANGEBYSCORE": PolicyFirst,
	"ZREVRANK":         PolicyFirst,
	"ZSCORE":           PolicyFirst,
	"ZSCAN":            PolicyFirst,
	"ZLEXCOUNT":        PolicyFirst,
	"ZRANGEBYLEX":      PolicyFirst,
	"ZREMRANGEBYLEX":   PolicyFirst,
	"ZREVRANGEBYLEX":   PolicyFirst,

	// commands operating on hashes
	"HDEL":         PolicyFirst,
	"HEXISTS":      PolicyFirst,
	"HGET":         PolicyFirst,
	"HGETALL":      PolicyFirst,
	"HMGET":        PolicyFirst,
	"HMSET":        PolicyFirst,
	"HINCRBY":      PolicyFirst,
	"HINCRBYFLOAT": PolicyFirst,
	"HKEYS":        PolicyFirst,
	"HLEN":         PolicyFirst,
	"HSET":         PolicyFirst,
	"HSETNX":       PolicyFirst,
	"HVALS":        PolicyFirst,
	"HSCAN":        PolicyFirst,
	"HSTRLEN":      PolicyFirst,
	"HRANDFIELD":   PolicyFirst,

	// commands operating on HyperLogLog
	"PFADD":   PolicyFirst,
	"PFCOUNT": PolicyAll,
	"PFMERGE": PolicyAll,

	// commands performing geospatial operations
	"GEOADD":               PolicyFirst,
	"GEOHASH":              PolicyFirst,
	"GEOPOS":               PolicyFirst,
	"GEODIST":              PolicyFirst,
	"GEORADIUS":            PolicyGeoStore,
	"GEORADIUSBYMEMBER":    PolicyGeoStore,
	"GEORADIUS_RO":         PolicyFirst,
	"GEORADIUSBYMEMBER_RO": PolicyFirst,
	"GEOSEARCH":            PolicyFirst,
	"GEOSEARCHSTORE":       PolicyPair,

	// commands operating on streams
	"XADD":       PolicyFirst,
	"XLEN":       PolicyFirst,
	"XRANGE":     PolicyFirst,
	"XREVRANGE":  PolicyFirst,
	"XDEL":       PolicyFirst,
	"XTRIM":      PolicyFirst,
	"XACK":       PolicyFirst,
	"XCLAIM":     PolicyFirst,
	"XAUTOCLAIM": PolicyFirst,
	"XPENDING":   PolicyFirst,
	"XSETID":     PolicyFirst,

	// scripting
	"EVAL":       PolicyScript,
	"EVALSHA":    PolicyScript,
	"EVAL_RO":    PolicyScript,
	"EVALSHA_RO": PolicyScript,
	"FCALL":      PolicyScript,
	"FCALL_RO":   PolicyScript,

	// sharded pub/sub
	"SPUBLISH":     PolicyFirst,
	"SSUBSCRIBE":   PolicyAll,
	"SUNSUBSCRIBE": PolicyShardedUnsubscribe,

	// commands without keys routed to a fixed slot
	"FLUSHDB": PolicyFake,
	"INFO":    PolicyFake,
	"CLUSTER": PolicyFake,
}

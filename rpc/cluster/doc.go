/*
Package cluster maps commands to the hash slots of a sharded deployment and routes them to the
node owning the slot.

# Slots

A slot is CRC-16/XMODEM of the key modulo 16384. When the key contains a non-empty hash tag
(the content between the first '{' and the next '}') only the tag is hashed, so keys sharing
a tag are stored on the same node:

	cluster.SlotByKey([]byte("{user:1}:name")) == cluster.SlotByKey([]byte("{user:1}:mail"))

# Strategy

RedisStrategy knows where the keys of a command are located. Every command id maps to a
KeyPolicy or to a custom KeyHandler:

	strategy := cluster.NewRedisStrategy()
	slot, ok := strategy.GetSlot(common.NewCommand("MSET", "{a}1", "x", "{a}2", "y"))

Commands with several keys only have a slot when all keys hash to the same slot. Unknown
commands and commands without keys have no slot, except the few commands (INFO, FLUSHDB,
CLUSTER) that are routed to slot 0 by convention.

The command table of a strategy can be changed at runtime (SetCommandPolicy, SetCommandHandler,
UnsetCommandHandler) and is safe for concurrent use. Each strategy owns its own table.

# Client

Client keeps one connection per node, loads the slot map with CLUSTER SLOTS and follows MOVED
and ASK redirections up to a configured limit. Per node meters and timers are collected in a
go-metrics registry.
*/
package cluster

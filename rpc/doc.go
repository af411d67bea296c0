// Package rpc provides the client side of the Redis serialization protocol.
// It turns commands into wire frames, moves them over node connections and
// routes them across cluster nodes.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the client,
//     including the command model, connection parameters, errors and logging.
//
//   - resp: The RESP2/RESP3 codec. Frames, the streaming decoder and the
//     command and reply encoders.
//
//   - transport: Node connections with pluggable media (TCP, TLS, Unix sockets)
//     that pipeline commands and deliver server pushes.
//
//   - cluster: Hash slots, the key extraction strategy per command and a
//     cluster client that follows MOVED and ASK redirections.
//
//   - client: The facade applications use. Single node or cluster clients plus
//     key-value and lock helpers built on plain commands.
package rpc

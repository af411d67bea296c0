// Package transport defines the connection abstraction of the rKV client. A node
// connection owns one duplex stream to one key-value server and strictly orders
// requests and replies on it.
//
// The package focuses on:
//   - A single contract for node connections independent of the medium
//   - Strict FIFO matching of replies to written commands (pipelining)
//   - Delivering server pushes through the same read path, flagged as such
//
// Key Components:
//
//   - INodeConnection: Interface implemented by base.NewNodeConnection for every
//     medium (TCP, TLS, Unix sockets). Offers connect/disconnect, init commands,
//     raw frame access and the sequencing operations (WriteCommand, ReadReply,
//     ExecuteCommand, Pipeline, Transaction).
//
//   - Reply: A decoded frame plus the flag telling replies and pushes apart.
package transport

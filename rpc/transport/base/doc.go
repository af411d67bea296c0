// Package base provides the node connection of the rKV client independent of the
// medium (TCP, TLS, Unix sockets). It serves as a base layer that is extended with
// medium-specific connectors.
//
// The package focuses on:
//   - Strict request/reply ordering with pipelining over a single stream
//   - Lazy flushing: written commands are buffered until the next read or Flush
//   - Telling replies and server pushes apart for both protocol revisions
//   - Init commands (HELLO, AUTH, SELECT, CLIENT SETNAME) replayed on every new stream
//   - Mapping stream failures onto the error taxonomy of the common package
//
// Key Components:
//
//   - IConnector: Interface for medium-specific operations (dialing and socket tuning)
//     that allows extending the base connection with different network media.
//
//   - nodeConnection: Core implementation of transport.INodeConnection. Every written
//     command queues a pending entry, every decoded frame either completes the oldest
//     open entry or is handed out as a push. Subscription commands complete once all
//     of their confirmations arrived.
//
//   - Persistent streams: Connections created with Parameters.Persistent park their
//     stream in a process wide registry on a clean Disconnect. The next connection
//     with the same parameter ID takes it over without running the init commands again.
//
// Error Handling:
//
//	Any failure while reading or writing is fatal to the stream. The oldest open entry
//	receives the error, all other open entries fail with common.ErrConnectionClosed.
//	Error replies of the server are ordinary replies and never tear the stream down.
//
// Thread Safety:
//
//	A connection is driven by one goroutine. Disconnect may be called concurrently to
//	cancel a blocked read, which then fails with common.ErrConnectionClosed.
//
// Metrics:
//
//	Counters and a reply latency histogram are kept with VictoriaMetrics/metrics and
//	can be exported with WriteMetrics.
package base

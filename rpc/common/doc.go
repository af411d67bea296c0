// Package common provides core data structures and utilities shared across
// the rKV client packages. It defines the command contract, connection
// parameters, the error taxonomy and the logging setup used by the codec,
// the transports and the cluster router.
//
// The package focuses on:
//   - The narrow command contract (identifier + binary-safe arguments)
//   - Configuration structures for node connections and the client facade
//   - A typed error taxonomy usable with errors.Is / errors.As
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Command: Interface consumed by the codec and the slot router. RawCommand is
//     the generic implementation, ScriptCommand adds a declared key count
//     (KeyCounter) that is inserted after the script body on the wire.
//
//   - Parameters: Flat typed record for one node connection (scheme, endpoint,
//     protocol revision, timeouts, credentials, database, TLS options, alias).
//     Parameters can be serialized to and from YAML.
//
//   - ClientConfig: Configuration of the client facade (cluster mode, seed nodes,
//     redirect limit, key prefix, error raising).
//
//   - Errors: ProtocolError, ConnectionError, TimeoutError (connect vs. read/write),
//     ServerError, CrossSlotError and NotSupportedError, plus the sentinels
//     ErrProtocol, ErrConnection and ErrConnectionClosed.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common

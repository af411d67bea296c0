// Package tcp implements the TCP and TLS media of the rKV client. It provides
// concrete implementations of the base package's connector interface.
//
// This package builds on the base package's node connection, inheriting its request
// sequencing, push handling and error mapping. See the base package documentation
// for details on the underlying mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IConnector. Applies the
//     socket options of the parameters (no delay, keep-alive, buffer sizes).
//
//   - tlsConnector: TLS over TCP. The handshake counts towards the connect timeout,
//     CA and client certificates are loaded from the files named in Parameters.TLS.
package tcp

// Package unix implements the Unix domain socket medium of the rKV client. It provides
// optimized communication with servers running on the same machine.
//
// This package extends the base connection with a Unix socket-specific connector
// while inheriting all core functionality like request sequencing, push handling
// and error mapping from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets. The socket
//     path is taken from Parameters.Path.
package unix

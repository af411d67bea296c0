package base

import (
	"github.com/puzpuzpuz/xsync/v3"
	"net"
)

// persistentStreams holds idle streams of persistent connections keyed by Parameters.SessionKey().
// A stream is parked on a clean Disconnect and taken by the next Connect with the same key,
// so a reused stream never skips an AUTH or HELLO its new owner would have sent.
var persistentStreams = xsync.NewMapOf[string, net.Conn]()

func takePersistentStream(id string) (net.Conn, bool) {
	return persistentStreams.LoadAndDelete(id)
}

func parkPersistentStream(id string, conn net.Conn) {
	if _, loaded := persistentStreams.LoadOrStore(id, conn); loaded {
		_ = conn.Close()
		return
	}
	Logger.Debugf("Parked persistent stream %s", id)
}

// ClosePersistentStreams closes every parked stream and returns how many were closed
func ClosePersistentStreams() int {
	closed := 0
	persistentStreams.Range(func(id string, _ net.Conn) bool {
		if conn, ok := persistentStreams.LoadAndDelete(id); ok {
			_ = conn.Close()
			closed++
		}
		return true
	})
	return closed
}

// PersistentStreams returns the number of parked streams
func PersistentStreams() int {
	return persistentStreams.Size()
}

package base

import (
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/resp"
	"net"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// pipeConnector hands out one end of an in-memory pipe per dial and serves the other end
type pipeConnector struct {
	serve func(conn net.Conn)
	fail  error
	dials atomic.Int32
}

func (p *pipeConnector) GetName() string { return "pipe" }

func (p *pipeConnector) Connect(common.Parameters) (net.Conn, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	p.dials.Add(1)
	client, server := net.Pipe()
	go p.serve(server)
	return client, nil
}

func (p *pipeConnector) UpgradeConnection(net.Conn, common.Parameters) error { return nil }

// fakeServer decodes requests and answers each with the frames returned by handler.
// Every received command is recorded.
type fakeServer struct {
	protocol   int
	fragmented bool
	handler    func(args []string) []resp.Frame

	mu       sync.Mutex
	received [][]string
}

func (s *fakeServer) serve(conn net.Conn) {
	defer conn.Close()
	dec := resp.NewDecoder(conn, 2)
	for {
		req, err := dec.Decode()
		if err != nil {
			return
		}
		args := make([]string, len(req.Elems))
		for i, e := range req.Elems {
			args[i] = string(e.Str)
		}
		s.mu.Lock()
		s.received = append(s.received, args)
		s.mu.Unlock()

		for _, f := range s.handler(args) {
			if err := s.write(conn, resp.EncodeFrame(f, s.protocol)); err != nil {
				return
			}
		}
	}
}

func (s *fakeServer) write(conn net.Conn, data []byte) error {
	if !s.fragmented {
		_, err := conn.Write(data)
		return err
	}
	for i := range data {
		if _, err := conn.Write(data[i : i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeServer) commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.received...)
}

// basicHandler answers a handful of commands like a real server would
func basicHandler(args []string) []resp.Frame {
	switch strings.ToUpper(args[0]) {
	case "PING":
		return []resp.Frame{resp.Status("PONG")}
	case "ECHO":
		return []resp.Frame{resp.BulkString(args[1])}
	case "GET":
		return []resp.Frame{resp.BulkString("value:" + args[1])}
	case "HELLO":
		return []resp.Frame{resp.Map(resp.Pair{Key: resp.BulkString("proto"), Value: resp.Integer(3)})}
	case "MULTI", "SELECT", "SET", "CLIENT":
		return []resp.Frame{resp.Status("OK")}
	case "EXEC":
		return []resp.Frame{resp.Array(resp.Status("OK"))}
	case "BLOCK":
		return nil
	default:
		return []resp.Frame{resp.Error("ERR unknown command '" + args[0] + "'")}
	}
}

func newTestConnection(t *testing.T, params common.Parameters, connector IConnector) *nodeConnection {
	t.Helper()
	conn, err := NewNodeConnection(connector, params)
	if err != nil {
		t.Fatalf("NewNodeConnection() failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Disconnect() })
	return conn.(*nodeConnection)
}

func startServer(t *testing.T, params common.Parameters, handler func([]string) []resp.Frame) (*nodeConnection, *fakeServer, *pipeConnector) {
	t.Helper()
	server := &fakeServer{protocol: params.Protocol, handler: handler}
	if server.protocol == 0 {
		server.protocol = 2
	}
	connector := &pipeConnector{serve: server.serve}
	return newTestConnection(t, params, connector), server, connector
}

// fakeTimeout satisfies net.Error like the dial errors of the net package
type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestPipelinedRepliesUnderFragmentation tests that pipelined replies are matched in order
// even when the server delivers them one byte at a time
func TestPipelinedRepliesUnderFragmentation(t *testing.T) {
	server := &fakeServer{protocol: 2, fragmented: true, handler: basicHandler}
	conn := newTestConnection(t, common.DefaultParameters(), &pipeConnector{serve: server.serve})

	if err := conn.WriteCommand(common.NewCommand("PING")); err != nil {
		t.Fatalf("WriteCommand() failed: %v", err)
	}
	if err := conn.WriteCommand(common.NewCommand("ECHO", "hi")); err != nil {
		t.Fatalf("WriteCommand() failed: %v", err)
	}
	if conn.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", conn.Pending())
	}

	want := []resp.Frame{resp.Status("PONG"), resp.BulkString("hi")}
	for i, w := range want {
		reply, err := conn.ReadReply()
		if err != nil {
			t.Fatalf("ReadReply() %d failed: %v", i, err)
		}
		if reply.Push || !reply.Frame.Equal(w) {
			t.Errorf("ReadReply() %d = %v, want %v", i, reply.Frame, w)
		}
	}
	if conn.Pending() != 0 {
		t.Errorf("Pending() = %d after reading all replies", conn.Pending())
	}
}

// TestExecuteCommandKeepsEarlierReplies tests that replies read ahead by ExecuteCommand stay queued
func TestExecuteCommandKeepsEarlierReplies(t *testing.T) {
	conn, _, _ := startServer(t, common.DefaultParameters(), basicHandler)

	if err := conn.WriteCommand(common.NewCommand("GET", "a")); err != nil {
		t.Fatalf("WriteCommand() failed: %v", err)
	}
	frame, err := conn.ExecuteCommand(common.NewCommand("GET", "b"))
	if err != nil {
		t.Fatalf("ExecuteCommand() failed: %v", err)
	}
	if !frame.Equal(resp.BulkString("value:b")) {
		t.Errorf("ExecuteCommand() = %v", frame)
	}

	reply, err := conn.ReadReply()
	if err != nil || !reply.Frame.Equal(resp.BulkString("value:a")) {
		t.Errorf("ReadReply() = %v, %v, want the reply of the first command", reply.Frame, err)
	}
}

// TestDisconnectFailsPendingReads tests that a concurrent Disconnect cancels a blocked read
// and that every pending read reports the closed connection
func TestDisconnectFailsPendingReads(t *testing.T) {
	conn, _, _ := startServer(t, common.DefaultParameters(), func([]string) []resp.Frame { return nil })

	for i := 0; i < 2; i++ {
		if err := conn.WriteCommand(common.NewCommand("BLOCK")); err != nil {
			t.Fatalf("WriteCommand() failed: %v", err)
		}
	}

	timer := time.AfterFunc(50*time.Millisecond, func() { _ = conn.Disconnect() })
	defer timer.Stop()

	for i := 0; i < 2; i++ {
		if _, err := conn.ReadReply(); !errors.Is(err, common.ErrConnectionClosed) {
			t.Errorf("ReadReply() %d error = %v, want ErrConnectionClosed", i, err)
		}
	}
	if conn.IsConnected() {
		t.Error("connection should be closed")
	}
	if _, err := conn.ReadReply(); !errors.Is(err, common.ErrNoPendingReply) {
		t.Errorf("ReadReply() without pending entries = %v, want ErrNoPendingReply", err)
	}
}

func TestConnectAndDisconnectAreIdempotent(t *testing.T) {
	conn, _, connector := startServer(t, common.DefaultParameters(), basicHandler)

	for i := 0; i < 2; i++ {
		if err := conn.Connect(); err != nil {
			t.Fatalf("Connect() failed: %v", err)
		}
	}
	if connector.dials.Load() != 1 {
		t.Errorf("dials = %d, want 1", connector.dials.Load())
	}
	for i := 0; i < 2; i++ {
		if err := conn.Disconnect(); err != nil {
			t.Errorf("Disconnect() failed: %v", err)
		}
	}

	// sending forces a connect
	if _, err := conn.ExecuteCommand(common.NewCommand("PING")); err != nil {
		t.Fatalf("ExecuteCommand() failed: %v", err)
	}
	if connector.dials.Load() != 2 {
		t.Errorf("dials = %d, want 2", connector.dials.Load())
	}
}

// TestInitCommands tests the commands derived from the parameters and the user supplied ones
func TestInitCommands(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *common.Parameters)
		want   [][]string
	}{
		{
			name:   "nothing to initialize",
			modify: func(p *common.Parameters) {},
			want:   [][]string{{"PING"}},
		},
		{
			name:   "protocol 3",
			modify: func(p *common.Parameters) { p.Protocol = 3 },
			want:   [][]string{{"HELLO", "3"}, {"PING"}},
		},
		{
			name: "password, database and name",
			modify: func(p *common.Parameters) {
				p.Protocol = 3
				p.Password = "secret"
				p.Database = 2
				p.ClientName = "app"
			},
			want: [][]string{
				{"HELLO", "3", "AUTH", "default", "secret", "SETNAME", "app"},
				{"SELECT", "2"},
				{"PING"},
			},
		},
		{
			name: "username with protocol 2",
			modify: func(p *common.Parameters) {
				p.Username = "alice"
				p.Password = "pw"
			},
			want: [][]string{{"HELLO", "2", "AUTH", "alice", "pw"}, {"PING"}},
		},
		{
			name:   "client name only",
			modify: func(p *common.Parameters) { p.ClientName = "app" },
			want:   [][]string{{"CLIENT", "SETNAME", "app"}, {"PING"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := common.DefaultParameters()
			tt.modify(&params)
			conn, server, _ := startServer(t, params, basicHandler)

			frame, err := conn.ExecuteCommand(common.NewCommand("PING"))
			if err != nil {
				t.Fatalf("ExecuteCommand() failed: %v", err)
			}
			if !frame.Equal(resp.Status("PONG")) {
				t.Errorf("ExecuteCommand() = %v", frame)
			}
			if got := server.commands(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("server received %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddInitCommand(t *testing.T) {
	conn, server, _ := startServer(t, common.DefaultParameters(), basicHandler)

	if err := conn.AddInitCommand(common.NewCommand("CLIENT", "TRACKING", "ON")); err != nil {
		t.Fatalf("AddInitCommand() failed: %v", err)
	}
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	if err := conn.AddInitCommand(common.NewCommand("PING")); !errors.Is(err, common.ErrInitCommandsFrozen) {
		t.Errorf("AddInitCommand() after connect = %v, want ErrInitCommandsFrozen", err)
	}

	// init commands are replayed on every new stream
	_ = conn.Disconnect()
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	_ = conn.Disconnect()

	want := [][]string{{"CLIENT", "TRACKING", "ON"}, {"CLIENT", "TRACKING", "ON"}}
	if got := server.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("server received %v, want %v", got, want)
	}
}

func TestInitCommandErrorIsFatal(t *testing.T) {
	params := common.DefaultParameters()
	params.Password = "wrong"
	conn, _, _ := startServer(t, params, func(args []string) []resp.Frame {
		return []resp.Frame{resp.Error("WRONGPASS invalid username-password pair")}
	})

	err := conn.Connect()
	var connErr *common.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Connect() error = %v, want a ConnectionError", err)
	}
	if !strings.Contains(err.Error(), "HELLO") || !strings.Contains(err.Error(), "WRONGPASS") {
		t.Errorf("error should name the command and the reply: %v", err)
	}
	if conn.IsConnected() {
		t.Error("connection should be closed after a failed init command")
	}
}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name    string
		fail    error
		timeout bool
	}{
		{"refused", errors.New("connection refused"), false},
		{"timeout", fakeTimeout{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newTestConnection(t, common.DefaultParameters(), &pipeConnector{fail: tt.fail})
			err := conn.Connect()
			if !errors.Is(err, common.ErrConnection) {
				t.Fatalf("Connect() error = %v, want a connection error", err)
			}
			var timeoutErr *common.TimeoutError
			if got := errors.As(err, &timeoutErr); got != tt.timeout {
				t.Fatalf("TimeoutError = %v, want %v", got, tt.timeout)
			}
			if tt.timeout && timeoutErr.Op != common.OpConnect {
				t.Errorf("Op = %s, want connect", timeoutErr.Op)
			}
		})
	}
}

func TestReadTimeout(t *testing.T) {
	params := common.DefaultParameters()
	params.ReadWriteTimeoutMs = 50
	conn, _, _ := startServer(t, params, basicHandler)

	_, err := conn.ExecuteCommand(common.NewCommand("BLOCK"))
	var timeoutErr *common.TimeoutError
	if !errors.As(err, &timeoutErr) || timeoutErr.Op != common.OpRead {
		t.Fatalf("ExecuteCommand() error = %v, want a read timeout", err)
	}
	if !errors.Is(err, common.ErrConnection) {
		t.Error("a timeout must be a connection error")
	}
	if conn.IsConnected() {
		t.Error("connection should be closed after a timeout")
	}
}

// TestRawFrames tests that raw frames bypass the pending entries
func TestRawFrames(t *testing.T) {
	conn, _, _ := startServer(t, common.DefaultParameters(), func([]string) []resp.Frame {
		return []resp.Frame{resp.Status("OK")}
	})

	if err := conn.WriteCommand(common.NewCommand("PING")); err != nil {
		t.Fatalf("WriteCommand() failed: %v", err)
	}
	if err := conn.WriteFrame([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		t.Fatalf("WriteFrame() failed: %v", err)
	}
	if conn.Pending() != 1 {
		t.Errorf("Pending() = %d, raw frames must not queue an entry", conn.Pending())
	}

	if _, err := conn.ReadReply(); err != nil {
		t.Fatalf("ReadReply() failed: %v", err)
	}
	if frame, err := conn.ReadFrame(); err != nil || !frame.Equal(resp.Status("OK")) {
		t.Fatalf("ReadFrame() = %v, %v", frame, err)
	}
}

// TestMalformedReply tests that a protocol error fails the current read and closes the stream
func TestMalformedReply(t *testing.T) {
	conn := newTestConnection(t, common.DefaultParameters(), &pipeConnector{serve: func(c net.Conn) {
		defer c.Close()
		buf := make([]byte, 1024)
		if _, err := c.Read(buf); err != nil {
			return
		}
		_, _ = c.Write([]byte("?oops\r\n"))
		_, _ = c.Read(buf)
	}})

	if err := conn.WriteCommand(common.NewCommand("PING")); err != nil {
		t.Fatalf("WriteCommand() failed: %v", err)
	}
	if err := conn.WriteCommand(common.NewCommand("PING")); err != nil {
		t.Fatalf("WriteCommand() failed: %v", err)
	}

	if _, err := conn.ReadReply(); !errors.Is(err, common.ErrProtocol) {
		t.Errorf("ReadReply() error = %v, want a protocol error", err)
	}
	if _, err := conn.ReadReply(); !errors.Is(err, common.ErrConnectionClosed) {
		t.Errorf("ReadReply() error = %v, want ErrConnectionClosed", err)
	}
	if conn.IsConnected() {
		t.Error("connection should be closed after a protocol error")
	}
}

func TestServerErrorIsReply(t *testing.T) {
	conn, _, _ := startServer(t, common.DefaultParameters(), basicHandler)

	frame, err := conn.ExecuteCommand(common.NewCommand("NOPE"))
	if err != nil {
		t.Fatalf("ExecuteCommand() failed: %v", err)
	}
	if !frame.IsError() || frame.ErrorCode() != "ERR" {
		t.Errorf("ExecuteCommand() = %v, want an error reply", frame)
	}
	if !conn.IsConnected() {
		t.Error("an error reply must not close the connection")
	}
}

func TestPipelineAndTransaction(t *testing.T) {
	conn, server, _ := startServer(t, common.DefaultParameters(), func(args []string) []resp.Frame {
		if args[0] == "SET" {
			return []resp.Frame{resp.Status("QUEUED")}
		}
		return basicHandler(args)
	})

	frames, err := conn.Pipeline(common.NewCommand("PING"), common.NewCommand("ECHO", "x"))
	if err != nil {
		t.Fatalf("Pipeline() failed: %v", err)
	}
	if len(frames) != 2 || !frames[1].Equal(resp.BulkString("x")) {
		t.Errorf("Pipeline() = %v", frames)
	}

	exec, err := conn.Transaction(common.NewCommand("SET", "k", "v"))
	if err != nil {
		t.Fatalf("Transaction() failed: %v", err)
	}
	if !exec.Equal(resp.Array(resp.Status("OK"))) {
		t.Errorf("Transaction() = %v", exec)
	}

	want := [][]string{{"PING"}, {"ECHO", "x"}, {"MULTI"}, {"SET", "k", "v"}, {"EXEC"}}
	if got := server.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("server received %v, want %v", got, want)
	}
}

// TestSubscribeRESP2 tests that confirmations complete the subscription commands
// and that messages are delivered as pushes
func TestSubscribeRESP2(t *testing.T) {
	subscribed := 0
	conn, _, _ := startServer(t, common.DefaultParameters(), func(args []string) []resp.Frame {
		var out []resp.Frame
		switch args[0] {
		case "SUBSCRIBE":
			for _, ch := range args[1:] {
				subscribed++
				out = append(out, resp.Array(resp.BulkString("subscribe"), resp.BulkString(ch), resp.Integer(int64(subscribed))))
			}
			out = append(out, resp.Array(resp.BulkString("message"), resp.BulkString("a"), resp.BulkString("hello")))
		case "UNSUBSCRIBE":
			for _, ch := range []string{"a", "b"} {
				subscribed--
				out = append(out, resp.Array(resp.BulkString("unsubscribe"), resp.BulkString(ch), resp.Integer(int64(subscribed))))
			}
		case "PING":
			out = append(out, resp.Array(resp.BulkString("pong"), resp.BulkString("")))
		}
		return out
	})

	frame, err := conn.ExecuteCommand(common.NewCommand("SUBSCRIBE", "a", "b"))
	if err != nil {
		t.Fatalf("ExecuteCommand(SUBSCRIBE) failed: %v", err)
	}
	if frame.Kind != resp.KindArray || len(frame.Elems) != 2 {
		t.Fatalf("SUBSCRIBE reply = %v, want both confirmations", frame)
	}
	if !conn.Subscribed() {
		t.Error("Subscribed() should be true")
	}

	reply, err := conn.ReadReply()
	if err != nil {
		t.Fatalf("ReadReply() failed: %v", err)
	}
	if !reply.Push || string(reply.Frame.Elems[2].Str) != "hello" {
		t.Errorf("ReadReply() = %+v, want the message push", reply)
	}

	// PING in subscribed mode is answered with an array that is a reply, not a push
	frame, err = conn.ExecuteCommand(common.NewCommand("PING"))
	if err != nil || frame.Kind != resp.KindArray || string(frame.Elems[0].Str) != "pong" {
		t.Errorf("ExecuteCommand(PING) = %v, %v", frame, err)
	}

	frame, err = conn.ExecuteCommand(common.NewCommand("UNSUBSCRIBE"))
	if err != nil {
		t.Fatalf("ExecuteCommand(UNSUBSCRIBE) failed: %v", err)
	}
	if len(frame.Elems) != 2 {
		t.Errorf("UNSUBSCRIBE reply = %v, want one confirmation per channel", frame)
	}
	if conn.Subscribed() {
		t.Error("Subscribed() should be false after unsubscribing from everything")
	}
}

// TestRESP3PushBeforeReply tests that a push arriving before a reply is queued for ReadReply
func TestRESP3PushBeforeReply(t *testing.T) {
	params := common.DefaultParameters()
	params.Protocol = 3
	invalidate := resp.Push(resp.BulkString("invalidate"), resp.Array(resp.BulkString("k")))

	conn, _, _ := startServer(t, params, func(args []string) []resp.Frame {
		if args[0] == "GET" {
			return []resp.Frame{invalidate, resp.BulkString("v")}
		}
		return basicHandler(args)
	})

	frame, err := conn.ExecuteCommand(common.NewCommand("GET", "k"))
	if err != nil {
		t.Fatalf("ExecuteCommand() failed: %v", err)
	}
	if !frame.Equal(resp.BulkString("v")) {
		t.Errorf("ExecuteCommand() = %v", frame)
	}

	reply, err := conn.ReadReply()
	if err != nil {
		t.Fatalf("ReadReply() failed: %v", err)
	}
	if !reply.Push || !reply.Frame.Equal(invalidate) {
		t.Errorf("ReadReply() = %+v, want the invalidation push", reply)
	}
}

func TestPersistentStreams(t *testing.T) {
	params := common.DefaultParameters()
	params.Host = "persistent.test"
	params.Persistent = true
	defer ClosePersistentStreams()

	server := &fakeServer{protocol: 2, handler: basicHandler}
	connector := &pipeConnector{serve: server.serve}

	first := newTestConnection(t, params, connector)
	if _, err := first.ExecuteCommand(common.NewCommand("PING")); err != nil {
		t.Fatalf("ExecuteCommand() failed: %v", err)
	}
	_ = first.Disconnect()
	if PersistentStreams() != 1 {
		t.Fatalf("PersistentStreams() = %d, want 1", PersistentStreams())
	}

	second := newTestConnection(t, params, connector)
	if _, err := second.ExecuteCommand(common.NewCommand("ECHO", "again")); err != nil {
		t.Fatalf("ExecuteCommand() failed: %v", err)
	}
	if connector.dials.Load() != 1 {
		t.Errorf("dials = %d, want the parked stream to be reused", connector.dials.Load())
	}
	_ = second.Disconnect()

	if n := ClosePersistentStreams(); n != 1 {
		t.Errorf("ClosePersistentStreams() = %d, want 1", n)
	}
}

// TestPersistentStreamsRequireSameSession tests that a parked stream is only reused by a
// handle that would have negotiated the same session
func TestPersistentStreamsRequireSameSession(t *testing.T) {
	base := common.DefaultParameters()
	base.Host = "session.test"
	base.Persistent = true
	base.Password = "secret"

	tests := []struct {
		name   string
		modify func(p *common.Parameters)
		init   []common.Command
	}{
		{name: "password", modify: func(p *common.Parameters) { p.Password = "WRONG" }},
		{name: "protocol", modify: func(p *common.Parameters) { p.Protocol = 3 }},
		{name: "username", modify: func(p *common.Parameters) { p.Username = "app" }},
		{name: "database", modify: func(p *common.Parameters) { p.Database = 2 }},
		{name: "client name", modify: func(p *common.Parameters) { p.ClientName = "worker" }},
		{name: "tls server name", modify: func(p *common.Parameters) { p.TLS.ServerName = "other.test" }},
		{name: "init commands", modify: func(*common.Parameters) {}, init: []common.Command{common.NewCommand("CLIENT", "NO-EVICT", "on")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer ClosePersistentStreams()

			server := &fakeServer{protocol: 2, handler: basicHandler}
			connector := &pipeConnector{serve: server.serve}

			first := newTestConnection(t, base, connector)
			if _, err := first.ExecuteCommand(common.NewCommand("PING")); err != nil {
				t.Fatalf("ExecuteCommand() failed: %v", err)
			}
			_ = first.Disconnect()
			if PersistentStreams() != 1 {
				t.Fatalf("PersistentStreams() = %d, want 1", PersistentStreams())
			}

			params := base
			tt.modify(&params)
			second := newTestConnection(t, params, connector)
			for _, cmd := range tt.init {
				if err := second.AddInitCommand(cmd); err != nil {
					t.Fatalf("AddInitCommand() failed: %v", err)
				}
			}
			if _, err := second.ExecuteCommand(common.NewCommand("PING")); err != nil {
				t.Fatalf("ExecuteCommand() failed: %v", err)
			}
			if connector.dials.Load() != 2 {
				t.Errorf("dials = %d, want a fresh stream", connector.dials.Load())
			}
			if PersistentStreams() != 1 {
				t.Errorf("PersistentStreams() = %d, the first stream should stay parked", PersistentStreams())
			}
			_ = second.Disconnect()
		})
	}
}

// TestRESP3ArrayRepliesWhileSubscribed tests that plain arrays stay replies on a subscribed
// RESP3 connection, even when they look like pub/sub messages
func TestRESP3ArrayRepliesWhileSubscribed(t *testing.T) {
	params := common.DefaultParameters()
	params.Protocol = 3
	params.ReadWriteTimeoutMs = 2000

	conn, _, _ := startServer(t, params, func(args []string) []resp.Frame {
		switch args[0] {
		case "SUBSCRIBE":
			return []resp.Frame{resp.Push(resp.BulkString("subscribe"), resp.BulkString(args[1]), resp.Integer(1))}
		case "LRANGE":
			return []resp.Frame{
				resp.Push(resp.BulkString("message"), resp.BulkString("ch"), resp.BulkString("hello")),
				resp.Array(resp.BulkString("message"), resp.BulkString("a"), resp.BulkString("b")),
			}
		}
		return basicHandler(args)
	})

	if _, err := conn.ExecuteCommand(common.NewCommand("SUBSCRIBE", "ch")); err != nil {
		t.Fatalf("ExecuteCommand(SUBSCRIBE) failed: %v", err)
	}
	if !conn.Subscribed() {
		t.Fatal("Subscribed() should be true")
	}

	frame, err := conn.ExecuteCommand(common.NewCommand("LRANGE", "l", "0", "-1"))
	if err != nil {
		t.Fatalf("ExecuteCommand(LRANGE) failed: %v", err)
	}
	want := resp.Array(resp.BulkString("message"), resp.BulkString("a"), resp.BulkString("b"))
	if !frame.Equal(want) {
		t.Errorf("ExecuteCommand(LRANGE) = %v, want %v", frame, want)
	}

	reply, err := conn.ReadReply()
	if err != nil {
		t.Fatalf("ReadReply() failed: %v", err)
	}
	if !reply.Push || string(reply.Frame.Elems[2].Str) != "hello" {
		t.Errorf("ReadReply() = %+v, want the queued message push", reply)
	}
	if !conn.IsConnected() {
		t.Error("connection should stay usable")
	}
}

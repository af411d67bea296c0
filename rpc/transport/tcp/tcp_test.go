package tcp

import (
	"bufio"
	"github.com/ValentinKolb/rKV/rpc/common"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTLSConfig(t *testing.T) {
	params := common.DefaultParameters()
	params.Scheme = common.SchemeTLS
	params.Host = "cache.internal"

	config, err := TLSConfig(params)
	if err != nil {
		t.Fatalf("TLSConfig() error = %v", err)
	}
	if config.ServerName != "cache.internal" {
		t.Errorf("ServerName = %q, want host name", config.ServerName)
	}

	params.TLS.ServerName = "sni.internal"
	params.TLS.InsecureSkipVerify = true
	config, err = TLSConfig(params)
	if err != nil {
		t.Fatalf("TLSConfig() error = %v", err)
	}
	if config.ServerName != "sni.internal" || !config.InsecureSkipVerify {
		t.Errorf("TLS options not applied: name=%q insecure=%v", config.ServerName, config.InsecureSkipVerify)
	}
}

func TestTLSConfigFiles(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts common.TLSOptions
		want string
	}{
		{"missing ca", common.TLSOptions{CAFile: filepath.Join(dir, "missing.pem")}, "failed to read CA file"},
		{"empty ca", common.TLSOptions{CAFile: garbage}, "no certificates found"},
		{"missing key pair", common.TLSOptions{CertFile: garbage, KeyFile: garbage}, "failed to load client certificate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := common.DefaultParameters()
			params.TLS = tt.opts
			_, err := TLSConfig(params)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("TLSConfig() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestUpgradeTCPConnectionIgnoresOtherConns(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	params := common.DefaultParameters()
	params.TCPKeepAliveSec = 10
	if err := UpgradeTCPConnection(a, params); err != nil {
		t.Errorf("UpgradeTCPConnection() error = %v", err)
	}
}

func TestTCPConnection(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		// *1\r\n$4\r\nPING\r\n
		for i := 0; i < 3; i++ {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
		}
		_, _ = conn.Write([]byte("+PONG\r\n"))
	}()

	addr := listener.Addr().(*net.TCPAddr)
	params := common.DefaultParameters()
	params.Protocol = 2
	params.Port = addr.Port
	params.TCPKeepAliveSec = 30
	params.ReadBufferSize = 16 * 1024
	params.WriteBufferSize = 16 * 1024

	conn, err := NewTCPConnection(params)
	if err != nil {
		t.Fatalf("NewTCPConnection() error = %v", err)
	}
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Disconnect()

	reply, err := conn.ExecuteCommand(common.NewCommand("PING"))
	if err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}
	if reply.Text() != "PONG" {
		t.Errorf("reply = %v, want PONG", reply)
	}
}

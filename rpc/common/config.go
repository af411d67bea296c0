package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/ghodss/yaml"
	"net"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Connection parameters
// --------------------------------------------------------------------------

type Scheme string

const (
	SchemeTCP  Scheme = "tcp"
	SchemeTLS  Scheme = "tls"
	SchemeUnix Scheme = "unix"
)

const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 6379
	DefaultProtocol         = 2
	DefaultConnectTimeoutMs = 5000
)

// ParseScheme resolves a scheme name. "redis" and "rediss" are accepted as aliases of tcp and tls.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(s) {
	case "", "tcp", "redis":
		return SchemeTCP, nil
	case "tls", "rediss":
		return SchemeTLS, nil
	case "unix":
		return SchemeUnix, nil
	default:
		return "", fmt.Errorf("invalid scheme %q. must be one of tcp, redis, tls, rediss, unix", s)
	}
}

// TLSOptions holds the settings used by the tls scheme
type TLSOptions struct {
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty"`
	ServerName         string `json:"server_name,omitempty"`
	CAFile             string `json:"ca_file,omitempty"`
	CertFile           string `json:"cert_file,omitempty"`
	KeyFile            string `json:"key_file,omitempty"`
}

// Parameters is the flat, typed record describing one node connection.
// It is a value type. Two connections with equal ID() talk to the same stream.
type Parameters struct {
	Scheme   Scheme `json:"scheme"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Path     string `json:"path,omitempty"`
	Protocol int    `json:"protocol"`

	ConnectTimeoutMs   int `json:"connect_timeout_ms,omitempty"`
	ReadWriteTimeoutMs int `json:"read_write_timeout_ms,omitempty"`

	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Database   int    `json:"database,omitempty"`
	ClientName string `json:"client_name,omitempty"`

	TLS TLSOptions `json:"tls,omitempty"`

	Alias      string `json:"alias,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`

	TCPNoDelay      bool `json:"tcp_nodelay"`
	TCPKeepAliveSec int  `json:"tcp_keepalive_sec,omitempty"`
	ReadBufferSize  int  `json:"read_buffer_size,omitempty"`
	WriteBufferSize int  `json:"write_buffer_size,omitempty"`
}

// DefaultParameters returns the parameters used when nothing else is configured
func DefaultParameters() Parameters {
	return Parameters{
		Scheme:           SchemeTCP,
		Host:             DefaultHost,
		Port:             DefaultPort,
		Protocol:         DefaultProtocol,
		ConnectTimeoutMs: DefaultConnectTimeoutMs,
		TCPNoDelay:       true,
	}
}

// Validate checks the parameters and resolves scheme aliases in place
func (p *Parameters) Validate() error {
	scheme, err := ParseScheme(string(p.Scheme))
	if err != nil {
		return err
	}
	p.Scheme = scheme

	if p.Protocol == 0 {
		p.Protocol = DefaultProtocol
	}
	if p.Protocol != 2 && p.Protocol != 3 {
		return fmt.Errorf("invalid protocol %d. must be 2 or 3", p.Protocol)
	}

	switch p.Scheme {
	case SchemeUnix:
		if p.Path == "" {
			return fmt.Errorf("scheme unix requires a socket path")
		}
	default:
		if p.Host == "" {
			return fmt.Errorf("scheme %s requires a host", p.Scheme)
		}
		if p.Port <= 0 || p.Port > 65535 {
			return fmt.Errorf("invalid port %d", p.Port)
		}
	}

	if p.Database < 0 {
		return fmt.Errorf("invalid database index %d", p.Database)
	}
	if p.ConnectTimeoutMs < 0 || p.ReadWriteTimeoutMs < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// Endpoint returns the dial address (host:port or the socket path)
func (p Parameters) Endpoint() string {
	if p.Scheme == SchemeUnix {
		return p.Path
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ID returns the endpoint identity of the parameters (scheme, address, user, database).
// Persistent streams are keyed by SessionKey instead.
func (p Parameters) ID() string {
	id := fmt.Sprintf("%s://%s", p.Scheme, p.Endpoint())
	if p.Database != 0 {
		id += "/" + strconv.Itoa(p.Database)
	}
	if p.Username != "" {
		id = p.Username + "@" + id
	}
	return id
}

// SessionKey identifies an authenticated session on the endpoint. Streams are only shared
// between parameters with equal keys: the protocol, the credentials, the database, the
// client name and the TLS options all shape the session. The password enters as a digest.
func (p Parameters) SessionKey() string {
	var password string
	if p.Password != "" {
		sum := sha256.Sum256([]byte(p.Password))
		password = hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("%s|resp%d|user=%s|pass=%s|name=%s|tls=%t,%s,%s,%s,%s",
		p.ID(), p.Protocol, p.Username, password, p.ClientName,
		p.TLS.InsecureSkipVerify, p.TLS.ServerName, p.TLS.CAFile, p.TLS.CertFile, p.TLS.KeyFile)
}

// ConnectTimeout returns the connect timeout as a duration (0 means no timeout)
func (p Parameters) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutMs) * time.Millisecond
}

// ReadWriteTimeout returns the read/write timeout as a duration (0 means no timeout)
func (p Parameters) ReadWriteTimeout() time.Duration {
	return time.Duration(p.ReadWriteTimeoutMs) * time.Millisecond
}

// WithEndpoint returns a copy of the parameters pointing to another host:port (used for cluster nodes)
func (p Parameters) WithEndpoint(addr string) (Parameters, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return p, fmt.Errorf("invalid endpoint %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return p, fmt.Errorf("invalid port in endpoint %q: %w", addr, err)
	}
	p.Host = host
	p.Port = port
	p.Alias = ""
	return p, nil
}

// ToYAML serializes the parameters
func (p Parameters) ToYAML() ([]byte, error) {
	return yaml.Marshal(p)
}

// ParametersFromYAML reads parameters from YAML. Missing fields keep their defaults.
func ParametersFromYAML(data []byte) (Parameters, error) {
	p := DefaultParameters()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse parameters: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// String returns a formatted string representation of the parameters
func (p Parameters) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Connection")
	addField("Scheme", string(p.Scheme))
	addField("Endpoint", p.Endpoint())
	if p.Alias != "" {
		addField("Alias", p.Alias)
	}
	addField("Protocol", fmt.Sprintf("RESP%d", p.Protocol))
	addField("Database", strconv.Itoa(p.Database))
	addField("Persistent", strconv.FormatBool(p.Persistent))

	addSection("Timeouts")
	addField("Connect", p.ConnectTimeout().String())
	addField("Read/Write", p.ReadWriteTimeout().String())

	addSection("Credentials")
	addField("Username", p.Username)
	if p.Password != "" {
		addField("Password", "********")
	} else {
		addField("Password", "")
	}

	if p.Scheme == SchemeTLS {
		addSection("TLS")
		addField("Server Name", p.TLS.ServerName)
		addField("CA File", p.TLS.CAFile)
		addField("Cert File", p.TLS.CertFile)
		addField("Insecure Skip Verify", strconv.FormatBool(p.TLS.InsecureSkipVerify))
	}

	if p.Scheme == SchemeTCP || p.Scheme == SchemeTLS {
		addSection("Socket")
		addField("TCP NoDelay", strconv.FormatBool(p.TCPNoDelay))
		addField("TCP KeepAlive", fmt.Sprintf("%d sec", p.TCPKeepAliveSec))
		addField("Read Buffer", fmt.Sprintf("%d bytes", p.ReadBufferSize))
		addField("Write Buffer", fmt.Sprintf("%d bytes", p.WriteBufferSize))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures the client facade on top of the node connections
type ClientConfig struct {
	// Parameters are used for the single node connection and as template for cluster nodes
	Parameters Parameters

	// Cluster enables slot based routing. Nodes are the seed endpoints (host:port).
	Cluster bool
	Nodes   []string

	// MaxRedirects bounds how often MOVED/ASK redirections are followed
	MaxRedirects int

	// Prefix is prepended to every key of a command
	Prefix string

	// RaiseServerErrors turns error replies into Go errors
	RaiseServerErrors bool
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Cluster", strconv.FormatBool(c.Cluster))
	addField("Max Redirects", strconv.Itoa(c.MaxRedirects))
	addField("Key Prefix", c.Prefix)
	addField("Raise Server Errors", strconv.FormatBool(c.RaiseServerErrors))

	if c.Cluster {
		addSection("Seed Nodes")
		for i, node := range c.Nodes {
			addField(fmt.Sprintf("Node %d", i+1), node)
		}
	}

	sb.WriteString(c.Parameters.String())
	return sb.String()
}

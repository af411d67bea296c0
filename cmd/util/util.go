package util

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
	"strings"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the connection and client flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultParameters()
	flags := cmd.PersistentFlags()

	key := "params-file"
	flags.String(key, "", WrapString("YAML file with the connection parameters. Flags that are set explicitly override the file"))

	key = "scheme"
	flags.String(key, string(defaults.Scheme), WrapString("Connection scheme (tcp, redis, tls, rediss, unix)"))

	key = "host"
	flags.String(key, defaults.Host, WrapString("Host of the server"))

	key = "port"
	flags.Int(key, defaults.Port, WrapString("Port of the server"))

	key = "path"
	flags.String(key, "", WrapString("Socket path for the unix scheme"))

	key = "protocol"
	flags.Int(key, defaults.Protocol, WrapString("Protocol version (2 or 3)"))

	key = "connect-timeout"
	flags.Int(key, defaults.ConnectTimeoutMs, WrapString("Connect timeout in milliseconds (0 disables the timeout)"))

	key = "rw-timeout"
	flags.Int(key, 0, WrapString("Read and write timeout in milliseconds (0 disables the timeout)"))

	key = "username"
	flags.String(key, "", WrapString("Username used to authenticate"))

	key = "password"
	flags.String(key, "", WrapString("Password used to authenticate"))

	key = "db"
	flags.Int(key, 0, WrapString("Index of the database to select"))

	key = "client-name"
	flags.String(key, "", WrapString("Name announced with CLIENT SETNAME or HELLO"))

	key = "persistent"
	flags.Bool(key, false, WrapString("Keep the stream open for the next connection with the same parameters"))

	key = "tls-insecure"
	flags.Bool(key, false, WrapString("Skip the verification of the server certificate"))

	key = "tls-server-name"
	flags.String(key, "", WrapString("Server name used for SNI and verification (defaults to the host)"))

	key = "tls-ca"
	flags.String(key, "", WrapString("PEM file with the CA certificates"))

	key = "tls-cert"
	flags.String(key, "", WrapString("PEM file with the client certificate"))

	key = "tls-key"
	flags.String(key, "", WrapString("PEM file with the key of the client certificate"))

	key = "tcp-nodelay"
	flags.Bool(key, defaults.TCPNoDelay, WrapString("Whether to enable TCP_NODELAY"))

	key = "tcp-keepalive"
	flags.Int(key, 0, WrapString("The keepalive interval (in seconds, 0 disables keepalive)"))

	key = "read-buffer"
	flags.Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the system default)"))

	key = "write-buffer"
	flags.Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the system default)"))

	key = "cluster"
	flags.Bool(key, false, WrapString("Route commands to the nodes of a cluster by hash slot"))

	key = "nodes"
	flags.String(key, "", WrapString("Comma separated seed nodes (host:port) of the cluster. Defaults to host:port"))

	key = "max-redirects"
	flags.Int(key, 5, WrapString("How often MOVED and ASK redirections are followed"))

	key = "prefix"
	flags.String(key, "", WrapString("Prefix prepended to every key"))

	key = "raise-errors"
	flags.Bool(key, false, WrapString("Treat error replies as failures"))

	key = "metrics"
	flags.Bool(key, false, WrapString("Print the transport metrics in Prometheus format when the command finished"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("rkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging sets the level of all loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetParameters reads the connection parameters. The params file is the base,
// flags and environment variables that are set explicitly override it.
func GetParameters() (common.Parameters, error) {
	params := common.DefaultParameters()

	if path := viper.GetString("params-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return params, fmt.Errorf("failed to read params file: %w", err)
		}
		if params, err = common.ParametersFromYAML(data); err != nil {
			return params, err
		}
		Logger.Infof("loaded parameters from %s", path)
	}

	override := func(key string, apply func()) {
		if viper.IsSet(key) {
			apply()
		}
	}
	override("scheme", func() { params.Scheme = common.Scheme(viper.GetString("scheme")) })
	override("host", func() { params.Host = viper.GetString("host") })
	override("port", func() { params.Port = viper.GetInt("port") })
	override("path", func() { params.Path = viper.GetString("path") })
	override("protocol", func() { params.Protocol = viper.GetInt("protocol") })
	override("connect-timeout", func() { params.ConnectTimeoutMs = viper.GetInt("connect-timeout") })
	override("rw-timeout", func() { params.ReadWriteTimeoutMs = viper.GetInt("rw-timeout") })
	override("username", func() { params.Username = viper.GetString("username") })
	override("password", func() { params.Password = viper.GetString("password") })
	override("db", func() { params.Database = viper.GetInt("db") })
	override("client-name", func() { params.ClientName = viper.GetString("client-name") })
	override("persistent", func() { params.Persistent = viper.GetBool("persistent") })
	override("tls-insecure", func() { params.TLS.InsecureSkipVerify = viper.GetBool("tls-insecure") })
	override("tls-server-name", func() { params.TLS.ServerName = viper.GetString("tls-server-name") })
	override("tls-ca", func() { params.TLS.CAFile = viper.GetString("tls-ca") })
	override("tls-cert", func() { params.TLS.CertFile = viper.GetString("tls-cert") })
	override("tls-key", func() { params.TLS.KeyFile = viper.GetString("tls-key") })
	override("tcp-nodelay", func() { params.TCPNoDelay = viper.GetBool("tcp-nodelay") })
	override("tcp-keepalive", func() { params.TCPKeepAliveSec = viper.GetInt("tcp-keepalive") })
	override("read-buffer", func() { params.ReadBufferSize = viper.GetInt("read-buffer") * 1024 })
	override("write-buffer", func() { params.WriteBufferSize = viper.GetInt("write-buffer") * 1024 })

	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	params, err := GetParameters()
	if err != nil {
		return nil, err
	}

	conf := &common.ClientConfig{
		Parameters:        params,
		Cluster:           viper.GetBool("cluster"),
		MaxRedirects:      viper.GetInt("max-redirects"),
		Prefix:            viper.GetString("prefix"),
		RaiseServerErrors: viper.GetBool("raise-errors"),
	}
	if nodes := viper.GetString("nodes"); nodes != "" {
		conf.Nodes = strings.Split(nodes, ",")
	}

	return conf, nil
}

// WriteMetrics prints the transport metrics if the metrics flag is set
func WriteMetrics(w io.Writer) {
	if !viper.GetBool("metrics") {
		return
	}
	fmt.Fprintln(w)
	base.WriteMetrics(w)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

package util

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/netcom/rpc/common"
	"github.com/ValentinKolb/netcom/rpc/serializer"
	"github.com/ValentinKolb/netcom/rpc/transport"
	"github.com/ValentinKolb/netcom/rpc/transport/tcp"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupTransportFlags adds the socket option flags shared by client and simulator
func SetupTransportFlags(cmd *cobra.Command) {
	key := "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, 0 disables keepalive)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, 0 keeps the OS default)"))

	key = "max-frame-size"
	cmd.PersistentFlags().Int(key, 0, WrapString(fmt.Sprintf("Largest accepted inbound frame in bytes (0 uses %d, negative disables the limit)", common.DefaultMaxFrameSize)))
}

// SetupClientFlags adds the device server connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "address"
	cmd.PersistentFlags().String(key, common.DefaultAddress, WrapString("The address of the device server"))

	key = "port"
	cmd.PersistentFlags().Int(key, common.DefaultPort, WrapString("The port of the device server"))

	key = "client-info"
	cmd.PersistentFlags().String(key, common.DefaultClientInfo, WrapString("The name announced to the device server. With more than one connection the slot is appended (e.g. 'netcom 2/3')"))

	key = "max-connections"
	cmd.PersistentFlags().Int(key, common.DefaultMaxConnections, WrapString("Simultaneous connections to the device server"))

	SetupTransportFlags(cmd)
}

// InitConfig loads .env files and configures viper to read environment variables
func InitConfig() {
	// load env files
	for _, file := range []string{".env", ".env.local"} {
		if err := godotenv.Load(file); err == nil {
			Logger.Debugf("Loaded environment from %s", file)
		}
	}

	// initialize viper
	viper.SetEnvPrefix("netcom")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging applies the configured log level to all loggers
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetTransportConfig reads the socket options from viper
func GetTransportConfig() common.TransportConfig {
	return common.TransportConfig{
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		},
	}
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := common.ClientConfig{
		Address:        viper.GetString("address"),
		Port:           viper.GetInt("port"),
		ClientInfo:     viper.GetString("client-info"),
		MaxConnections: viper.GetInt("max-connections"),
		MaxFrameSize:   viper.GetInt("max-frame-size"),
		Transport:      GetTransportConfig(),
	}.WithDefaults()

	return &conf
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json", "":
		return serializer.NewJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientConnector creates the client transport based on configuration
func GetClientConnector() (transport.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp", "":
		return tcp.NewTCPClientConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerConnector creates the server transport based on configuration
func GetServerConnector() (transport.IServerConnector, error) {
	switch viper.GetString("transport") {
	case "tcp", "":
		return tcp.NewTCPServerConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// ParseAssignments parses name=value arguments into parameter pairs, keeping
// their order. Values that are valid JSON are decoded, all others are kept as
// strings.
func ParseAssignments(args []string) ([]common.Param, error) {
	params := make([]common.Param, 0, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected name=value)", arg)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		params = append(params, common.Param{Name: name, Value: value})
	}
	return params, nil
}

// ParseDevices parses a comma-separated device list where each device may
// carry initial values, e.g. "sim1,sim2:3x0005=42:mode=auto"
func ParseDevices(spec string) (map[string]map[string]any, error) {
	devices := make(map[string]map[string]any)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		params, err := ParseAssignments(parts[1:])
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", parts[0], err)
		}
		values := make(map[string]any, len(params))
		for _, p := range params {
			values[p.Name] = p.Value
		}
		devices[parts[0]] = values
	}
	return devices, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

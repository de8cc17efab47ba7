package cmd

import (
	"fmt"
	"github.com/ValentinKolb/netcom/cmd/device"
	"github.com/ValentinKolb/netcom/cmd/sim"
	"github.com/ValentinKolb/netcom/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:          "netcom",
		Short:        "device server client",
		SilenceUsage: true,
		Long: fmt.Sprintf(`netcom (v%s)

A client for device servers speaking the netcom protocol: netstring
framed JSON over TCP, with a bounded pool of connections.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of netcom",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netcom v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(device.DeviceCommands)
	RootCmd.AddCommand(sim.SimCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

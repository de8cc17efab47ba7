package sim

import (
	"fmt"
	"github.com/ValentinKolb/netcom/cmd/util"
	"github.com/ValentinKolb/netcom/rpc/common"
	"github.com/ValentinKolb/netcom/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var (
	simCmdConfig = &common.ServerConfig{}
	SimCmd       = &cobra.Command{
		Use:     "sim",
		Short:   "Start the device simulator",
		Long:    `Start a device server simulator speaking the netcom protocol. The configuration can be set via command line flags or environment variables. The format of the environment variables is NETCOM_<flag> (e.g. NETCOM_MAX_CONNECTIONS=3)`,
		Args:    cobra.NoArgs,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// add flags
	key := "endpoint"
	SimCmd.Flags().String(key, fmt.Sprintf("0.0.0.0:%d", common.DefaultPort), util.WrapString("The address on which the simulator will listen"))

	key = "max-connections"
	SimCmd.Flags().Int(key, 1, util.WrapString("How many clients may be connected at once (0 means unbounded). Further connections are closed right away"))

	key = "devices"
	SimCmd.Flags().String(key, server.DefaultDevice, util.WrapString("Comma-separated list of simulated devices, each optionally followed by initial values (e.g. 'sim1,sim2:3x0005=42:mode=auto')"))

	util.SetupTransportFlags(SimCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	devices, err := util.ParseDevices(viper.GetString("devices"))
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	simCmdConfig.Endpoint = viper.GetString("endpoint")
	simCmdConfig.MaxConnections = viper.GetInt("max-connections")
	simCmdConfig.MaxFrameSize = viper.GetInt("max-frame-size")
	simCmdConfig.LogLevel = viper.GetString("log-level")
	simCmdConfig.Devices = devices
	simCmdConfig.Transport = util.GetTransportConfig()

	return common.InitLoggers(simCmdConfig.LogLevel)
}

// run starts the simulator and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetServerConnector()
	if err != nil {
		return err
	}

	sim := server.NewServer(
		*simCmdConfig,
		t,
		s,
	)

	if err := sim.Listen(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		_ = sim.Close()
	}()

	fmt.Printf("Device simulator listening on %s\n", sim.Addr())
	return sim.Serve()
}

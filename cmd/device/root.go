package device

import (
	"github.com/ValentinKolb/netcom/cmd/util"
	"github.com/ValentinKolb/netcom/rpc/pool"
	"github.com/spf13/cobra"
)

var (
	connPool *pool.Pool

	// DeviceCommands represents the device command group
	DeviceCommands = &cobra.Command{
		Use:                "device",
		Short:              "Talk to a device server",
		PersistentPreRunE:  setupPool,
		PersistentPostRunE: closePool,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add connection flags to the device command
	util.SetupClientFlags(DeviceCommands)

	// Add subcommands
	DeviceCommands.AddCommand(listCmd)
	DeviceCommands.AddCommand(readCmd)
	DeviceCommands.AddCommand(writeCmd)
	DeviceCommands.AddCommand(perfTestCmd)
}

// setupPool initializes the connection pool
func setupPool(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := util.InitLogging(); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetClientConnector()
	if err != nil {
		return err
	}

	// Create the pool, connections are opened on first use
	connPool = pool.NewPool(
		*util.GetClientConfig(),
		t,
		s,
	)

	return nil
}

// closePool disconnects all pooled connections
func closePool(_ *cobra.Command, _ []string) error {
	if connPool != nil {
		connPool.Disconnect()
	}
	return nil
}

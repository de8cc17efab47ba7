package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/netcom/cmd/util"
	"github.com/ValentinKolb/netcom/rpc/client"
	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the devices of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(func(c *client.Conn) error {
				devices, err := c.GetDeviceList()
				if err != nil {
					return err
				}
				for _, d := range devices {
					var name string
					if err := json.Unmarshal(d, &name); err == nil {
						fmt.Println(name)
					} else {
						fmt.Println(string(d))
					}
				}
				return nil
			})
		},
	}
	readCmd = &cobra.Command{
		Use:   "read [device] [param...]",
		Short: "Reads parameters of a device",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConn(func(c *client.Conn) error {
				result, err := c.Read(args[0], args[1:])
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	writeCmd = &cobra.Command{
		Use:   "write [device] [param=value...]",
		Short: "Writes parameters of a device",
		Long:  "Writes parameters of a device. Values that are valid JSON (numbers, booleans, lists) are sent as such, all others as strings.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := util.ParseAssignments(args[1:])
			if err != nil {
				return err
			}
			return withConn(func(c *client.Conn) error {
				result, err := c.Write(args[0], values)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
)

// withConn runs fn with a pooled connection
func withConn(fn func(c *client.Conn) error) error {
	c, err := connPool.Acquire()
	if err != nil {
		return err
	}
	defer connPool.Release(c)
	return fn(c)
}

// printJSON prints a raw JSON value indented
func printJSON(raw json.RawMessage) error {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		// not valid JSON, print as received
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(out.String())
	return nil
}

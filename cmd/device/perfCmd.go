package device

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/netcom/cmd/util"
	"github.com/ValentinKolb/netcom/rpc/client"
	"github.com/ValentinKolb/netcom/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for device servers",
		Long:    "Runs read and write benchmarks through the connection pool and reports throughput, per request latencies and pool metrics.",
		Args:    cobra.NoArgs,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfDevice     = "sim1"
	perfParams     = []string{"3x0005"}
	perfNumThreads = 10
	perfSkip       = make([]string, 0)
)

// perfTests lists the benchmarks in the order they run
var perfTests = []struct {
	name string
	fn   func(c *client.Conn, i int) error
}{
	{"acquire", func(*client.Conn, int) error { return nil }},
	{"read", func(c *client.Conn, _ int) error {
		_, err := c.Read(perfDevice, perfParams)
		return err
	}},
	{"write", func(c *client.Conn, i int) error {
		_, err := c.Write(perfDevice, []common.Param{{Name: perfParams[i%len(perfParams)], Value: i}})
		return err
	}},
	{"mixed", func(c *client.Conn, i int) error {
		// one write for every nine reads
		if i%10 == 0 {
			_, err := c.Write(perfDevice, []common.Param{{Name: perfParams[i%len(perfParams)], Value: i}})
			return err
		}
		_, err := c.Read(perfDevice, perfParams)
		return err
	}},
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. write,mixed)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines sharing the pool"))
	key = "perf-device"
	perfTestCmd.Flags().String(key, "sim1", util.WrapString("Device to run the benchmarks against"))
	key = "perf-params"
	perfTestCmd.Flags().String(key, "3x0005", util.WrapString("Comma separated parameters to read and write"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "prometheus"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Print the pool metrics in Prometheus text format after the benchmarks"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfDevice = viper.GetString("perf-device")
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	perfParams = nil
	for _, p := range strings.Split(viper.GetString("perf-params"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			perfParams = append(perfParams, p)
		}
	}
	if len(perfParams) == 0 {
		return fmt.Errorf("at least one parameter is required")
	}

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for device servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Device:  %s %v\n", perfDevice, perfParams)
	fmt.Println()

	// Fail early if the server cannot be reached
	if err := withConn(func(*client.Conn) error { return nil }); err != nil {
		return err
	}

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, test := range perfTests {
		result := benchmark(test.name, test.fn)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Print request latencies recorded by the connections
	fmt.Println()
	fmt.Println("Request latencies:")
	printTimers(connPool.Registry())

	if viper.GetBool("prometheus") {
		fmt.Println()
		connPool.WritePrometheus(os.Stdout)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
		fmt.Println("Export complete")
	}

	return nil
}

// benchmark runs fn in parallel, every iteration acquires and releases a connection
func benchmark(name string, fn func(c *client.Conn, i int) error) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(name) {
			return
		}

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				err := withConn(func(c *client.Conn) error { return fn(c, counter) })
				if err != nil {
					log.Printf("(%s) - error: %v\n", name, err)
				}
				counter++
			}
		})
	})
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printTimers prints a summary of every timer in the registry
func printTimers(registry gometrics.Registry) {
	var names []string
	timers := make(map[string]gometrics.Timer)
	registry.Each(func(name string, metric interface{}) {
		if timer, ok := metric.(gometrics.Timer); ok {
			names = append(names, name)
			timers[name] = timer.Snapshot()
		}
	})
	sort.Strings(names)

	for _, name := range names {
		t := timers[name]
		ps := t.Percentiles([]float64{0.5, 0.99})
		fmt.Printf("%-28s%8d reqs\tmean %s\tp50 %s\tp99 %s\tmax %s\n",
			name, t.Count(),
			time.Duration(t.Mean()), time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(t.Max()))
	}
}

func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Address", "Port", "MaxConnections", "Threads", "Device", "Params",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Address,
			strconv.Itoa(config.Port),
			strconv.Itoa(config.MaxConnections),
			strconv.Itoa(perfNumThreads),
			perfDevice,
			strings.Join(perfParams, ";"),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

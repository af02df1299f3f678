package bench

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/ValentinKolb/aKV/rpc/client"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for aKV servers",
		Long:    "Runs a fixed set of workloads against a running server. Every benchmark goroutine uses its own connection.",
		PreRunE: processBenchConfig,
		RunE:    run,
	}
	benchKeyPrefix        = "__bench"
	benchLargeValueSizeKB = 100
	benchNumThreads       = 10
	benchKeySpread        = 100
	benchSkip             = make([]string, 0)
)

func init() {
	util.SetupClientFlags(BenchCmd)

	// add flags
	key := "skip"
	BenchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	BenchCmd.Flags().Int(key, 10, util.WrapString("Parallelism of the benchmarks. threads * GOMAXPROCS goroutines are started, each with its own connection"))
	key = "large-value-size"
	BenchCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	BenchCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	BenchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	benchLargeValueSizeKB = viper.GetInt("large-value-size")
	benchKeySpread = viper.GetInt("keys")
	benchNumThreads = viper.GetInt("threads")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	if benchKeySpread < 1 || benchNumThreads < 1 {
		return fmt.Errorf("keys and threads must be positive")
	}
	return nil
}

// workload is one benchmark. prepare runs once before the timer starts, op
// is called for every iteration with a per-goroutine counter.
type workload struct {
	name    string
	prepare func(c *client.Client, keys []string) error
	op      func(c *client.Client, keys []string, i int) error
}

func workloads() []workload {
	largeValue := strings.Repeat("x", benchLargeValueSizeKB*1024)

	fill := func(c *client.Client, keys []string) error {
		for _, k := range keys {
			if _, err := c.Do("SET", k, "test"); err != nil {
				return err
			}
		}
		return nil
	}

	return []workload{
		{
			name: "set",
			op: func(c *client.Client, keys []string, i int) error {
				_, err := c.Do("SET", keys[i%len(keys)], "test")
				return err
			},
		},
		{
			name: "set-large",
			op: func(c *client.Client, keys []string, i int) error {
				_, err := c.Do("SET", keys[i%len(keys)], largeValue)
				return err
			},
		},
		{
			name:    "get",
			prepare: fill,
			op: func(c *client.Client, keys []string, i int) error {
				_, err := c.Do("GET", keys[i%len(keys)])
				return err
			},
		},
		{
			name: "incr",
			op: func(c *client.Client, keys []string, i int) error {
				_, err := c.Do("INCR", keys[i%len(keys)])
				return err
			},
		},
		{
			name: "hset",
			op: func(c *client.Client, keys []string, i int) error {
				_, err := c.Do("HSET", keys[0], keys[i%len(keys)], "test")
				return err
			},
		},
		{
			name: "hgetall",
			prepare: func(c *client.Client, keys []string) error {
				for _, k := range keys {
					if _, err := c.Do("HSET", keys[0], k, "test"); err != nil {
						return err
					}
				}
				return nil
			},
			op: func(c *client.Client, keys []string, _ int) error {
				_, err := c.Do("HGETALL", keys[0])
				return err
			},
		},
		{
			name: "lpush-lpop",
			op: func(c *client.Client, keys []string, i int) error {
				key := keys[i%len(keys)]
				if i%2 == 0 {
					_, err := c.Do("LPUSH", key, "test")
					return err
				}
				_, err := c.Do("LPOP", key)
				var statusErr *client.StatusError
				if errors.As(err, &statusErr) {
					// another connection emptied the list first
					return nil
				}
				return err
			},
		},
		{
			name:    "mixed",
			prepare: fill,
			op: func(c *client.Client, keys []string, i int) error {
				key := keys[i%len(keys)]
				var err error
				switch i % 4 {
				case 0:
					_, err = c.Do("SET", key, "test")
				case 1:
					_, err = c.Do("GET", key)
				case 2:
					_, err = c.Do("EXISTS", key)
				case 3:
					_, err = c.Do("APPEND", key, "t")
				}
				var statusErr *client.StatusError
				if errors.As(err, &statusErr) {
					return nil
				}
				return err
			},
		},
	}
}

func run(_ *cobra.Command, _ []string) error {
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for aKV servers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", benchNumThreads)
	fmt.Println()

	// the control connection prepares and cleans up the keys
	control, err := util.Connect()
	if err != nil {
		return err
	}
	defer control.Close()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, w := range workloads() {
		result := benchmark(control, w)
		results[w.name] = result
		printResult(w.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// benchmark runs one workload in parallel
func benchmark(control *client.Client, w workload) testing.BenchmarkResult {
	return testing.Benchmark(func(b *testing.B) {
		if shouldSkip(w.name) {
			return
		}

		keys := getKeys(w.name)

		// cleanup
		b.Cleanup(func() {
			for _, k := range keys {
				if _, err := control.Do("DEL", k); err != nil && !isStatus(err) {
					log.Printf("(%s) - error deleting key: %v\n", w.name, err)
				}
			}
		})

		if w.prepare != nil {
			if err := w.prepare(control, keys); err != nil {
				log.Printf("(%s) - error preparing keys: %v\n", w.name, err)
				return
			}
		}

		// one connection per goroutine, opened before the timer starts
		n := benchNumThreads * runtime.GOMAXPROCS(0)
		conns := make(chan *client.Client, n)
		for i := 0; i < n; i++ {
			c, err := util.Connect()
			if err != nil {
				log.Printf("(%s) - error connecting: %v\n", w.name, err)
				close(conns)
				for c := range conns {
					_ = c.Close()
				}
				return
			}
			conns <- c
		}
		close(conns)
		b.Cleanup(func() {
			for c := range conns {
				_ = c.Close()
			}
		})

		b.SetParallelism(benchNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			c, ok := <-conns
			if !ok {
				c = control
			} else {
				defer c.Close()
			}
			counter := 0
			for pb.Next() {
				if err := w.op(c, keys, counter); err != nil {
					log.Printf("(%s) - error: %v\n", w.name, err)
				}
				counter++
			}
		})
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range benchSkip {
		if test == skip {
			return true
		}
	}
	return false
}

func isStatus(err error) bool {
	var statusErr *client.StatusError
	return errors.As(err, &statusErr)
}

// getKeys returns the test keys of a workload
func getKeys(prefix string) []string {
	keys := make([]string, benchKeySpread)
	for i := 0; i < benchKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", benchKeyPrefix, prefix, i)
	}
	return keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Transport", "TimeoutSec",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
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
			config.Endpoint,
			config.Transport,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(benchNumThreads),
			strconv.Itoa(benchLargeValueSizeKB),
			strconv.Itoa(benchKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

package kv

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/rKV/cmd/util"
	"github.com/ValentinKolb/rKV/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/rand"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for Redis compatible servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
	perfPercentiles      = []float64{0.5, 0.95, 0.99}
)

// perfTest is one benchmark. prepare runs before the timer starts and op is called with the
// key of the current iteration.
type perfTest struct {
	name    string
	prepare bool
	op      func(key string, counter int) error
}

// perfResult combines the throughput of testing.Benchmark with the per operation latencies
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  int64
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func perfTests() []perfTest {
	value := randomValue(16)
	largeValue := randomValue(perfLargeValueSizeKB * 1024)

	return []perfTest{
		{name: "set", op: func(key string, _ int) error {
			return rkvStore.Set(key, value)
		}},
		{name: "set-large", op: func(key string, _ int) error {
			return rkvStore.Set(key, largeValue)
		}},
		{name: "get", prepare: true, op: func(key string, _ int) error {
			_, _, err := rkvStore.Get(key)
			return err
		}},
		{name: "delete", prepare: true, op: func(key string, _ int) error {
			return rkvStore.Delete(key)
		}},
		{name: "has", prepare: true, op: func(key string, _ int) error {
			_, err := rkvStore.Has(key)
			return err
		}},
		{name: "has-not", op: func(key string, _ int) error {
			_, err := rkvStore.Has(key + "-missing")
			return err
		}},
		{name: "mixed", prepare: true, op: func(key string, counter int) error {
			var err error
			switch counter % 4 {
			case 0:
				err = rkvStore.Set(key, value)
			case 1:
				_, _, err = rkvStore.Get(key)
			case 2:
				err = rkvStore.Delete(key)
			case 3:
				_, err = rkvStore.Has(key)
			}
			return err
		}},
	}
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for Redis compatible servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(rkvConfig.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]perfResult)
	for _, test := range perfTests() {
		if shouldSkip(test.name) {
			results[test.name] = perfResult{}
			printResult(test.name, perfResult{})
			continue
		}
		result := runPerfTest(test, registry)
		results[test.name] = result
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, rkvConfig); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

func runPerfTest(test perfTest, registry gometrics.Registry) perfResult {
	latency := gometrics.GetOrRegisterTimer("perf."+test.name, registry)
	failures := gometrics.GetOrRegisterCounter("perf."+test.name+".errors", registry)
	getKey, iter := getKeys(test.name)

	bench := testing.Benchmark(func(b *testing.B) {
		if test.prepare {
			iter(func(k string) {
				if err := rkvStore.Set(k, []byte("test")); err != nil {
					util.Logger.Warningf("(%s) - error setting key: %v", test.name, err)
				}
			})
		}

		b.Cleanup(func() {
			iter(func(k string) {
				if err := rkvStore.Delete(k); err != nil {
					util.Logger.Warningf("(%s) - error deleting key: %v", test.name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := test.op(getKey(counter), counter)
				latency.UpdateSince(start)
				if err != nil {
					failures.Inc(1)
					util.Logger.Debugf("(%s) - operation failed: %v", test.name, err)
				}
				counter++
			}
		})
	})

	return perfResult{bench: bench, latency: latency, errors: failures.Count()}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

func randomValue(size int) []byte {
	value := make([]byte, size)
	_, _ = rand.Read(value)
	return value
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := result.latency.Percentiles(perfPercentiles)

	fmt.Printf("%-20s%.0fns/op\t%.0f ops/sec\tp50=%s p95=%s p99=%s\terrors=%d\n",
		test, nsPerOp, opsPerSec,
		time.Duration(p[0]), time.Duration(p[1]), time.Duration(p[2]),
		result.errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "OpsPerSec", "P50", "P95", "P99", "Errors", "Skipped",
		"Endpoint", "Scheme", "Protocol", "Cluster", "Nodes",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		var p []float64
		skipped := result.bench.NsPerOp() == 0

		if skipped {
			p = make([]float64, len(perfPercentiles))
		} else {
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			p = result.latency.Percentiles(perfPercentiles)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			fmt.Sprintf("%.0f", p[2]),
			strconv.FormatInt(result.errors, 10),
			strconv.FormatBool(skipped),
			config.Parameters.Endpoint(),
			string(config.Parameters.Scheme),
			strconv.Itoa(config.Parameters.Protocol),
			strconv.FormatBool(config.Cluster),
			strings.Join(config.Nodes, ";"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}

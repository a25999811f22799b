package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/pKV/cmd/util"
	"github.com/ValentinKolb/pKV/lib/common"
	"github.com/ValentinKolb/pKV/lib/hooks"
	"github.com/ValentinKolb/pKV/lib/middleware/metrics"
	"github.com/ValentinKolb/pKV/lib/provider"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for local stores",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOps              = 10000
	perfSkip             = make([]string, 0)
)

// benchmark is one perf test: setup prepares the keys, op is timed per call.
type benchmark struct {
	name  string
	setup func(ctx context.Context, keys []string) error
	op    func(ctx context.Context, key string, i int) error
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "prometheus"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Print the metrics of the metrics middleware (if registered) after the run"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOps = max(viper.GetInt("ops"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func benchmarks() []benchmark {
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)
	seed := func(ctx context.Context, keys []string) error {
		for _, k := range keys {
			if err := kvStore.Set(ctx, k, map[string]any{"n": 0, "tags": []any{}}); err != nil {
				return err
			}
		}
		return nil
	}
	over30, err := hooks.Condition("value.n > 30")
	if err != nil {
		panic(err)
	}

	return []benchmark{
		{name: "set", op: func(ctx context.Context, key string, _ int) error {
			return kvStore.Set(ctx, key, "test")
		}},
		{name: "set-large", op: func(ctx context.Context, key string, _ int) error {
			return kvStore.Set(ctx, key, largeValue)
		}},
		{name: "get", setup: seed, op: func(ctx context.Context, key string, _ int) error {
			_, _, err := kvStore.Get(ctx, key)
			return err
		}},
		{name: "has-not", op: func(ctx context.Context, key string, _ int) error {
			_, err := kvStore.Has(ctx, key+"-absent")
			return err
		}},
		{name: "inc", setup: seed, op: func(ctx context.Context, key string, _ int) error {
			return kvStore.Inc(ctx, key, "n")
		}},
		{name: "push", setup: seed, op: func(ctx context.Context, key string, i int) error {
			return kvStore.Push(ctx, key, i, "tags")
		}},
		{name: "filter", setup: seed, op: func(ctx context.Context, _ string, _ int) error {
			_, err := kvStore.Filter(ctx, provider.ByHook(over30))
			return err
		}},
		{name: "mixed", setup: seed, op: func(ctx context.Context, key string, i int) error {
			var err error
			switch i % 4 {
			case 0:
				err = kvStore.Set(ctx, key, map[string]any{"n": i, "tags": []any{}})
			case 1:
				_, _, err = kvStore.Get(ctx, key)
			case 2:
				err = kvStore.Inc(ctx, key, "n")
			case 3:
				_, err = kvStore.Has(ctx, key)
			}
			return err
		}},
	}
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for local stores")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(kvConfig.String())
	fmt.Printf("Threads: %d, Operations: %d\n", perfNumThreads, perfOps)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	var order []string
	for _, b := range benchmarks() {
		order = append(order, b.name)
		timer := gometrics.GetOrRegisterTimer(b.name, registry)
		if shouldSkip(b.name) {
			printTimer(b.name, timer)
			continue
		}
		errCount, err := runBenchmark(ctx, b, timer)
		if err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		if errCount > 0 {
			log.Warningf("(%s) - %d operations failed", b.name, errCount)
		}
		printTimer(b.name, timer)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, registry, kvConfig); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("prometheus") {
		if m, ok := kvStore.Middlewares().Get(metrics.Name); ok {
			fmt.Println()
			m.(*metrics.Middleware).WritePrometheus(os.Stdout)
		} else {
			fmt.Println("\nthe metrics middleware is not registered (use --middleware metrics)")
		}
	}

	return nil
}

// runBenchmark prepares the keys, times perfOps calls of b.op spread over perfNumThreads
// goroutines and removes the keys again.
func runBenchmark(ctx context.Context, b benchmark, timer gometrics.Timer) (int64, error) {
	keys := getKeys(b.name)
	defer func() {
		if err := kvStore.DeleteMany(ctx, keys...); err != nil {
			log.Errorf("(%s) - error deleting keys: %v", b.name, err)
		}
	}()
	if b.setup != nil {
		if err := b.setup(ctx, keys); err != nil {
			return 0, err
		}
	}

	var (
		wg       sync.WaitGroup
		errCount atomic.Int64
	)
	perThread := (perfOps + perfNumThreads - 1) / perfNumThreads
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			for i := t * perThread; i < (t+1)*perThread && i < perfOps; i++ {
				start := time.Now()
				err := b.op(ctx, keys[i%len(keys)], i)
				timer.UpdateSince(start)
				if err != nil {
					errCount.Add(1)
					log.Debugf("(%s) - %v", b.name, err)
				}
			}
		}(t)
	}
	wg.Wait()
	return errCount.Load(), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// printTimer prints the result of a benchmark in a formatted way
func printTimer(test string, timer gometrics.Timer) {
	snap := timer.Snapshot()
	if snap.Count() == 0 {
		fmt.Printf("%-12sskipped\n", test)
		return
	}
	ps := snap.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-12s%8d ops  mean %-10s p50 %-10s p99 %-10s %.0f ops/sec\n",
		test, snap.Count(),
		time.Duration(snap.Mean()), time.Duration(ps[0]), time.Duration(ps[1]),
		opsPerSec(snap),
	)
}

// opsPerSec derives the throughput of all goroutines together from the mean latency
func opsPerSec(snap gometrics.Timer) float64 {
	if snap.Mean() <= 0 {
		return 0
	}
	return float64(perfNumThreads) * 1e9 / snap.Mean()
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, registry gometrics.Registry, config *common.StoreConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "OpsPerSec", "Skipped",
		"Engine", "Middlewares", "AutoKey",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range order {
		timer, ok := registry.Get(test).(gometrics.Timer)
		if !ok {
			continue
		}
		snap := timer.Snapshot()
		ps := snap.Percentiles([]float64{0.5, 0.99})
		row := []string{
			test,
			strconv.FormatInt(snap.Count(), 10),
			fmt.Sprintf("%.0f", snap.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", opsPerSec(snap)),
			strconv.FormatBool(snap.Count() == 0),
			config.Engine,
			strings.Join(config.Middlewares, ";"),
			config.AutoKeyStrategy,
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

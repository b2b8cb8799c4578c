// Package main provides the entry point for efm-analyze: the offline
// analysis pipeline that turns a directory of ns-3 EFM simulation trace
// documents into one EFM localization output document per imported result
// set.
//
// This is a batch job, not a long-running service: it reads every trace
// document group under -sim_dir, resolves -config against each imported
// result set, runs the full set of (analysis config x observer set x
// classification mode x flow selection strategy) units internal/orchestrate
// derives from that, and writes one output document per group under
// -out_dir. It exits 0 on success and non-zero the first time any group
// fails to import, resolve, or run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/redis/go-redis/v9"

	"github.com/COMSYS/ns3-efm-study-overview/internal/cache"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmconfig"
	"github.com/COMSYS/ns3-efm-study-overview/internal/efmio"
	"github.com/COMSYS/ns3-efm-study-overview/internal/localize/lp"
	"github.com/COMSYS/ns3-efm-study-overview/internal/orchestrate"
)

func main() {
	prefix := flag.String("prefix", "", "Required. Trace document file name prefix grouping one simulation run's files.")
	configFile := flag.String("config", "", "Required. Path to the analysis config document (a JSON array of entries).")
	simDir := flag.String("sim_dir", "", "Required. Directory of ns-3 EFM trace document files to import.")
	outDir := flag.String("out_dir", "", "Required. Directory to write one output document per imported result set.")
	workers := flag.Int("workers", 8, "Bounded worker pool size for run orchestration.")
	redisAddr := flag.String("redis_addr", "", "If non-empty, memoize classification results in Redis at this address instead of in-process memory — lets multiple efm-analyze processes share one classification cache.")
	redisCacheTTL := flag.Duration("redis_cache_ttl", 24*time.Hour, "TTL for Redis-cached classification entries; only used with -redis_addr.")
	metricsFile := flag.String("metrics_file", "", "If non-empty, write a Prometheus text-format snapshot of this run's metrics to this path after completion.")
	flag.Parse()

	if *prefix == "" || *configFile == "" || *simDir == "" || *outDir == "" {
		flag.Usage()
		log.Fatal("efm-analyze: -prefix, -config, -sim_dir, and -out_dir are all required")
	}

	if err := run(*prefix, *configFile, *simDir, *outDir, *workers, *redisAddr, *redisCacheTTL); err != nil {
		log.Fatalf("efm-analyze: %v", err)
	}

	if *metricsFile != "" {
		if err := writeMetricsSnapshot(*metricsFile); err != nil {
			log.Fatalf("efm-analyze: writing metrics snapshot: %v", err)
		}
	}
}

func run(prefix, configFile, simDir, outDir string, workers int, redisAddr string, redisCacheTTL time.Duration) error {
	rawConfig, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("reading analysis config: %w", err)
	}

	store := newStore(redisAddr, redisCacheTTL)
	mgr := orchestrate.NewManager(store, lp.Unavailable, workers)

	resultSets, err := efmio.LoadAll(simDir, prefix)
	if err != nil {
		return fmt.Errorf("loading simulation results: %w", err)
	}
	if len(resultSets) == 0 {
		return fmt.Errorf("no trace document groups found under %s matching prefix %q", simDir, prefix)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", outDir, err)
	}

	ctx := context.Background()
	for _, rs := range resultSets {
		configs, err := efmconfig.ResolveAll(rawConfig, rs)
		if err != nil {
			return fmt.Errorf("%s: resolving analysis config: %w", rs.SimID, err)
		}

		fmt.Printf("efm-analyze: running %s (%d analysis configs)...\n", rs.SimID, len(configs))
		doc, err := mgr.Run(ctx, rs, rawConfig, configs)
		if err != nil {
			return fmt.Errorf("%s: running analysis: %w", rs.SimID, err)
		}

		outPath := filepath.Join(outDir, rs.SimID+"_efm_analysis.json")
		if err := writeOutput(outPath, doc); err != nil {
			return fmt.Errorf("%s: writing output: %w", rs.SimID, err)
		}
		fmt.Printf("efm-analyze: wrote %s\n", outPath)
	}
	return nil
}

func newStore(redisAddr string, ttl time.Duration) cache.Store {
	if redisAddr == "" {
		return cache.NewMemStore()
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	return cache.NewRedisStore(goRedisEvaler{client}, ttl)
}

// goRedisEvaler adapts *redis.Client to cache.RedisEvaler: go-redis's Eval
// returns a *redis.Cmd, not the (interface{}, error) pair RedisEvaler
// expects.
type goRedisEvaler struct{ c *redis.Client }

func (g goRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

func writeOutput(path string, doc *efmio.OutputDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return efmio.WriteOutput(f, doc)
}

// writeMetricsSnapshot dumps the default Prometheus registry's gathered
// metric families in text exposition format, mirroring a promhttp
// /metrics endpoint but to a file: this job exits when the run completes,
// so there is no live process for a scrape to hit.
func writeMetricsSnapshot(path string) error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Copyright 2017 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Command region-balance is an illustrative CLI for running one balancing
// algorithm against a generated or loaded snapshot and printing per-run
// balance metrics; the migration plan itself is not printed. It is not a
// cluster-facing service: no data
// actually moves, nothing is persisted beyond the snapshot text format.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tikv/region-balancer/balance"
	_ "github.com/tikv/region-balancer/balance/lp"
	"github.com/tikv/region-balancer/config"
	"github.com/tikv/region-balancer/core"
	"github.com/tikv/region-balancer/simulator"
	"github.com/tikv/region-balancer/workload"
)

// Exit codes per SPEC_FULL.md §6.
const (
	exitOK             = 0
	exitMalformedInput = 1
	exitSolverFailure  = 2
)

var (
	dumpPath   string
	loadPath   string
	seed       int64
	allowSplit bool
	configPath string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region-balance store_nums tolerant_rate [repeat] [alg]",
		Short: "Run a region-to-store balancing algorithm against a synthetic or loaded snapshot",
		Args:  cobra.RangeArgs(2, 4),
		RunE:  run,
	}
	cmd.Flags().StringVar(&dumpPath, "dump", "", "write the generated/loaded snapshot to this path before solving")
	cmd.Flags().StringVar(&loadPath, "load", "", "load the snapshot from this path instead of generating one")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for the generator")
	cmd.Flags().BoolVar(&allowSplit, "split", false, "allow region splitting where the algorithm supports it")
	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file; flags override values it sets")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return exitErr(exitMalformedInput, err)
		}
		cfg = loaded
	}

	storeCount, err := strconv.Atoi(args[0])
	if err != nil {
		return exitErr(exitMalformedInput, fmt.Errorf("store_nums must be an integer: %w", err))
	}
	ratio, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return exitErr(exitMalformedInput, fmt.Errorf("tolerant_rate must be a float: %w", err))
	}
	repeat := cfg.RepeatCount
	if len(args) >= 3 {
		repeat, err = strconv.Atoi(args[2])
		if err != nil {
			return exitErr(exitMalformedInput, fmt.Errorf("repeat must be an integer: %w", err))
		}
	}
	if len(args) >= 4 {
		cfg.Algorithm = args[3]
	}
	cfg.StoreCount = storeCount
	cfg.Ratio = ratio
	cfg.RepeatCount = repeat
	if cmd.Flags().Changed("seed") || configPath == "" {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("split") || configPath == "" {
		cfg.AllowSplit = allowSplit
	}

	if _, ok := balance.ParseAlgorithm(cfg.Algorithm); !ok {
		return exitErr(exitMalformedInput, fmt.Errorf("unknown algorithm tag %q", cfg.Algorithm))
	}
	if err := cfg.Validate(); err != nil {
		return exitErr(exitMalformedInput, err)
	}

	var snap *core.Snapshot
	if loadPath != "" {
		f, err := os.Open(loadPath)
		if err != nil {
			return exitErr(exitSolverFailure, err)
		}
		defer f.Close()
		snap, err = workload.Load(f, cfg.Dim)
		if err != nil {
			return exitErr(exitSolverFailure, err)
		}
	} else {
		gen := &workload.Generator{
			Dim:         cfg.Dim,
			TargetTotal: cfg.TargetTotal,
			StoreCount:  cfg.StoreCount,
			MigrateNums: cfg.MigrateNums,
			MaxFlowRate: cfg.MaxFlowRate,
			Rng:         rand.New(rand.NewSource(cfg.Seed)),
		}
		var err error
		snap, err = gen.Generate()
		if err != nil {
			return exitErr(exitSolverFailure, err)
		}
	}

	if dumpPath != "" {
		f, err := os.Create(dumpPath)
		if err != nil {
			return exitErr(exitSolverFailure, err)
		}
		defer f.Close()
		if err := workload.Dump(f, snap); err != nil {
			return exitErr(exitSolverFailure, err)
		}
	}

	harness, err := simulator.NewHarness(cfg)
	if err != nil {
		return exitErr(exitMalformedInput, err)
	}

	for i := 0; i < repeat; i++ {
		res, err := harness.Run(snap)
		if err != nil {
			if core.IsInvariantViolation(err) || core.IsIOError(err) {
				return exitErr(exitSolverFailure, err)
			}
			return exitErr(exitSolverFailure, err)
		}
		log.Info("region-balance: run complete",
			zap.Int("iteration", i),
			zap.Float64s("pre-max-mean", res.PreMaxMean),
			zap.Float64s("aft-max-mean", res.AftMaxMean),
			zap.Duration("used-time", res.UsedTime),
			zap.Bool("balanced", res.Metrics.Balanced))
		fmt.Printf("iteration %d: balanced=%v residual=%d used-time=%s aft-max-mean=%v\n",
			i, res.Metrics.Balanced, res.Metrics.ResidualCount, res.UsedTime, res.AftMaxMean)
	}
	return nil
}

func exitErr(code int, err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitMalformedInput)
	}
}

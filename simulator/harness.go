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

// Package simulator drives a generate-or-load → solve → measure cycle over
// a core.Snapshot, the way tools/pd-simulator drives a scheduler against a
// synthetic cluster in the pack.
package simulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/tikv/region-balancer/balance"
	"github.com/tikv/region-balancer/config"
	"github.com/tikv/region-balancer/core"
	"github.com/tikv/region-balancer/workload"
)

// Result is one harness run's record (spec.md §4.8).
type Result struct {
	MigrateNums int
	PreMaxMean  []float64
	PreMinMean  []float64
	AftMaxMean  []float64
	AftMinMean  []float64
	UsedTime    time.Duration
	Metrics     core.Metrics
}

// Harness owns the config a run is parameterized by.
type Harness struct {
	Config config.Config
}

// NewHarness builds a Harness from cfg, validating it up front.
func NewHarness(cfg config.Config) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Harness{Config: cfg}, nil
}

// Run generates (or the caller has otherwise prepared) a snapshot, solves
// it with the configured algorithm, and returns a Result. If snap is nil a
// fresh one is generated from h.Config.
func (h *Harness) Run(snap *core.Snapshot) (Result, error) {
	if snap == nil {
		gen := &workload.Generator{
			Dim:         h.Config.Dim,
			TargetTotal: h.Config.TargetTotal,
			StoreCount:  h.Config.StoreCount,
			MigrateNums: h.Config.MigrateNums,
			MaxFlowRate: h.Config.MaxFlowRate,
			Rng:         rand.New(rand.NewSource(h.Config.Seed)),
		}
		var err error
		snap, err = gen.Generate()
		if err != nil {
			return Result{}, err
		}
	}

	res := Result{
		MigrateNums: h.Config.MigrateNums,
		PreMaxMean:  snap.MaxMeanRatio(),
		PreMinMean:  snap.MinMeanRatio(),
	}
	log.Info("simulator: pre-balance", zap.Float64s("max-mean", res.PreMaxMean), zap.Float64s("min-mean", res.PreMinMean))

	start := time.Now()
	_, metrics, err := balance.Balance(h.Config.Algorithm, snap, h.Config.Ratio, h.Config.AllowSplit)
	res.UsedTime = time.Since(start)
	if err != nil {
		return res, err
	}
	res.Metrics = metrics

	res.AftMaxMean = snap.MaxMeanRatio()
	res.AftMinMean = snap.MinMeanRatio()
	log.Info("simulator: post-balance", zap.Float64s("max-mean", res.AftMaxMean), zap.Float64s("min-mean", res.AftMinMean),
		zap.Duration("used-time", res.UsedTime), zap.Bool("balanced", metrics.Balanced))

	return res, nil
}

// RunMany fans out n independent runs across goroutines, each with its own
// *rand.Rand derived from the harness seed plus its index, and returns
// their results in input order. This is the only concurrency in the
// module; it never touches solver-internal state across goroutines.
func (h *Harness) RunMany(n int) ([]Result, error) {
	results := make([]Result, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := h.Config
			cfg.Seed = h.Config.Seed + int64(i)
			sub := &Harness{Config: cfg}
			results[i], errs[i] = sub.Run(nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

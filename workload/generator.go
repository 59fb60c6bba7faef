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

// Package workload generates synthetic region placements for the simulator
// and provides the plain-text snapshot dump/load format (spec.md §4.7/§6).
package workload

import (
	"fmt"
	"math/rand"

	"github.com/tikv/region-balancer/core"
)

// Generator builds synthetic core.Snapshot inputs. Dim, TargetTotal and
// StoreCount must be set; MigrateNums and MaxFlowRate default to 0 and 1
// respectively when left zero.
type Generator struct {
	Dim         int
	TargetTotal []float64
	StoreCount  int
	MigrateNums int
	MaxFlowRate float64
	Rng         *rand.Rand
}

// Generate produces a snapshot per spec.md §4.7: regions are sampled with
// each dimension uniform over [0, min(remaining, limit)] and assigned to a
// uniformly random store until every dimension's remaining total drops
// below its limit; a final region absorbs the remainder. MigrateNums random
// 1-hop shuffles are then applied to perturb the initial placement.
func (g *Generator) Generate() (*core.Snapshot, error) {
	if g.StoreCount <= 0 {
		return nil, core.ErrInvariantViolation("generator: store count must be positive, got %d", g.StoreCount)
	}
	if len(g.TargetTotal) != g.Dim {
		return nil, core.ErrInvariantViolation("generator: target total has %d dims, want %d", len(g.TargetTotal), g.Dim)
	}
	maxFlowRate := g.MaxFlowRate
	if maxFlowRate <= 0 {
		maxFlowRate = 1
	}
	rng := g.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	snap := core.NewSnapshot(g.Dim)
	stores := make([]*core.StoreInfo, g.StoreCount)
	for i := range stores {
		s := core.NewStoreInfo(fmt.Sprintf("store-%d", i+1), g.Dim)
		stores[i] = s
		snap.Stores = append(snap.Stores, s)
	}

	limit := make([]float64, g.Dim)
	for i := 0; i < g.Dim; i++ {
		limit[i] = g.TargetTotal[i] / float64(g.StoreCount) * maxFlowRate
	}

	remaining := append([]float64(nil), g.TargetTotal...)
	regionSeq := 0

	below := func() bool {
		for i, r := range remaining {
			if r >= limit[i] {
				return false
			}
		}
		return true
	}

	for !below() {
		regionSeq++
		vals := make([]float64, g.Dim)
		for i := 0; i < g.Dim; i++ {
			bound := remaining[i]
			if limit[i] < bound {
				bound = limit[i]
			}
			if bound <= 0 {
				continue
			}
			vals[i] = rng.Float64() * bound
			remaining[i] -= vals[i]
		}
		dst := stores[rng.Intn(len(stores))]
		region := core.NewRegionInfo(fmt.Sprintf("r%d", regionSeq), vals, dst.ID)
		dst.AddSnapshotOnly(region)
	}

	// Final region absorbs whatever remains on every dimension.
	regionSeq++
	dst := stores[rng.Intn(len(stores))]
	region := core.NewRegionInfo(fmt.Sprintf("r%d", regionSeq), remaining, dst.ID)
	dst.AddSnapshotOnly(region)

	for i := 0; i < g.MigrateNums; i++ {
		oneHopShuffle(stores, rng)
	}
	return snap, nil
}

// oneHopShuffle moves one randomly chosen region from a randomly chosen
// non-empty store to a randomly chosen store (nothing moves when that draw
// is the source store itself), mirroring the
// generator's "migrate_nums random 1-hop shuffles" perturbation step. This
// is deliberately not core.Shuffle (which reassigns every region at once);
// it models incremental perturbation of an already-built placement.
func oneHopShuffle(stores []*core.StoreInfo, rng *rand.Rand) {
	var nonEmpty []*core.StoreInfo
	for _, s := range stores {
		if len(s.Regions) > 0 {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return
	}
	src := nonEmpty[rng.Intn(len(nonEmpty))]
	var picked *core.RegionInfo
	skip := rng.Intn(len(src.Regions))
	i := 0
	for _, r := range src.Regions {
		if i == skip {
			picked = r
			break
		}
		i++
	}
	dst := stores[rng.Intn(len(stores))]
	if dst.ID == src.ID {
		return
	}
	src.Remove(picked)
	picked.SrcStoreID = dst.ID
	picked.DstStoreID = dst.ID
	dst.AddSnapshotOnly(picked)
}

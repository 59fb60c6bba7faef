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

package balance

import (
	"math"
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/tikv/region-balancer/core"
)

// loadState classifies a store's load against the expected band.
type loadState int

const (
	stateBelowLower loadState = -2
	stateBelowMean  loadState = -1
	stateAboveMean  loadState = 1
	stateAboveUpper loadState = 2
)

// GreedySingleBoth runs the single-dimension balancer over every dimension
// in turn (dimension 0, then 1, ...), concatenating plans. It is what the
// "GREEDY-SINGLE" algorithm tag dispatches to, matching
// LoadBalanceSimulator.simulate's GREEDY-SINGLE branch which calls
// balanceSingle twice, once per dimension.
func GreedySingleBoth(snap *core.Snapshot, ratio float64, enableSplitting bool) (core.Plan, core.Metrics, error) {
	var plan core.Plan
	balanced := true
	for _, dim := range snap.Dims() {
		p, ok, err := GreedySingle(snap, ratio, dim, enableSplitting)
		if err != nil {
			return nil, core.Metrics{}, err
		}
		plan = append(plan, p...)
		balanced = balanced && ok
	}
	return plan, core.Metrics{Balanced: balanced}, nil
}

// GreedySingle implements the single-dimension balancer (spec.md §4.3): two
// pointers walking stores sorted ascending by ActValsSum[dim], moving
// regions out of the hottest remaining store into the first store in
// [low,high) that can accept them without crossing the upper band.
func GreedySingle(snap *core.Snapshot, ratio float64, dim int, enableSplitting bool) (core.Plan, bool, error) {
	stores := append([]*core.StoreInfo(nil), snap.Stores...)
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].ActValsSum[dim] != stores[j].ActValsSum[dim] {
			return stores[i].ActValsSum[dim] < stores[j].ActValsSum[dim]
		}
		return stores[i].ID < stores[j].ID
	})

	for _, s := range stores {
		s.Sort(dim)
		if enableSplitting {
			if err := preSplitOversized(s, dim); err != nil {
				return nil, false, err
			}
			s.Sort(dim)
		}
	}

	mean := 0.0
	for _, s := range stores {
		mean += s.ActValsSum[dim]
	}
	mean /= float64(len(stores))
	upper := mean * (1 + ratio)
	lower := mean * (1 - ratio)

	state := func(val float64) loadState {
		switch {
		case val > upper:
			return stateAboveUpper
		case val > mean:
			return stateAboveMean
		case val > lower:
			return stateBelowMean
		default:
			return stateBelowLower
		}
	}
	absState := func(st loadState) loadState {
		if st < 0 {
			return -st
		}
		return st
	}

	var plan core.Plan
	low, high := 0, len(stores)-1
	for low < high {
		hstore := stores[high]
		st := state(hstore.ActValsSum[dim])
		if absState(st) <= stateBelowMean {
			high--
			continue
		}
		if st == stateBelowLower {
			break
		}

		for i := len(hstore.SortedRegions) - 1; i >= 0 && state(hstore.ActValsSum[dim]) == stateAboveUpper; i-- {
			region := hstore.SortedRegions[i]
			if state(hstore.IfMoveOut(region, dim)) == stateBelowLower {
				continue
			}
			for si := low; si < high; si++ {
				lstore := stores[si]
				if state(lstore.IfMoveIn(region, dim)) != stateAboveUpper {
					if err := core.Migrate(region, hstore, lstore); err != nil {
						return nil, false, err
					}
					plan = append(plan, core.PlanEntry{
						RegionID: region.ID, SrcStoreID: hstore.ID, DstStoreID: lstore.ID, Fraction: 1,
					})
					break
				}
			}
		}

		if state(hstore.ActValsSum[dim]) == stateAboveUpper {
			break
		}
		high--
	}

	balanced := low == high
	if !balanced {
		log.Warn("greedy-single failed to converge", zap.Int("dim", dim), zap.Float64("ratio", ratio))
	}
	return plan, balanced, nil
}

// preSplitOversized mirrors balanceSingle's preprocessing step: for regions
// whose load in dim is at least twice the median of the top-10 (or fewer)
// regions by that dimension, split them into ceil(2*load/median) equal pieces,
// so each piece is roughly half the median.
func preSplitOversized(s *core.StoreInfo, dim int) error {
	n := len(s.SortedRegions)
	if n == 0 {
		return nil
	}
	top := n
	if top > 10 {
		top = 10
	}
	sample := make([]float64, 0, top)
	for _, r := range s.SortedRegions[n-top:] {
		sample = append(sample, r.Vals[dim])
	}
	median := medianOf(sample)
	if median <= 0 {
		return nil
	}

	// Walk hottest-to-coldest over a snapshot of the slice: SplitRegion
	// mutates s.Regions, so iterate over a copy.
	candidates := append([]*core.RegionInfo(nil), s.SortedRegions...)
	for i := len(candidates) - 1; i >= 0; i-- {
		r := candidates[i]
		if r.Vals[dim] >= 2*median {
			pieces := int(math.Ceil(r.Vals[dim] / median * 2))
			if pieces < 2 {
				pieces = 2
			}
			s.SplitRegion(r, pieces)
		}
	}
	return nil
}

func medianOf(vals []float64) float64 {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	n := len(cp)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

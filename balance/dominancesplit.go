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

// GreedyDominanceSplit implements the dominance-split balancer (spec.md
// §4.5) in four phases: it first equalizes each store's two dominating
// dimensions locally, evicting (and, when allowSplit is set, partially
// splitting) whichever regions skew a store the most; then it refills
// deficient stores from the evicted pool, places whatever is left over onto
// the best-fitting remaining store, and finally reports any region the pool
// still could not place as a numerical residual. allowSplit=false is the
// "GREEDY-GLOBAL" tag; allowSplit=true is "GREEDY-GLOBAL-SPLIT".
func GreedyDominanceSplit(snap *core.Snapshot, ratio float64, allowSplit bool) (core.Plan, core.Metrics, error) {
	mean := normalizeSnapshot(snap)
	bases := onesVector(snap.Dim)
	dom := core.NewDomRegions(snap)

	// Phase 1: equalize each store's two dominating dimensions. A store
	// keeps shedding its most-skewed region while its two normalized
	// dimensions disagree by more than ratio, or while both are still
	// above 1 (i.e. the store is overloaded on every dimension at once,
	// so there is no "lower" dimension left to dump load into locally).
	for _, s := range snap.Stores {
		s.ClassifyRegions(bases)
		for {
			higherDim, diff := dominanceGap(s)
			bothAboveOne := s.ActValsSum[0] > 1 && s.ActValsSum[1] > 1
			if diff <= ratio && !bothAboveOne {
				break
			}
			region := s.PopDom(higherDim)
			if region == nil {
				log.Debug("dominance-split: store can't shed further in phase 1",
					zap.String("store-id", s.ID), zap.Int("dim", higherDim))
				break
			}
			if allowSplit && diff > ratio {
				s.Remove(region)
				child, _ := dom.SplitRegionWithVal(region, higherDim, bases, diff, false)
				s.AddSnapshotOnly(child)
			} else {
				s.Remove(region)
			}
			dom.Push(higherDim, region)
		}
	}

	// Pop never splits unless the caller asked for a split plan: a bare
	// GREEDY-GLOBAL run moves whole regions, matching the reference
	// greedy() (which calls dom_regions.pop with no ratio at all).
	popRatio := 0.0
	if allowSplit {
		popRatio = ratio
	}

	// Phase 2: refill deficient stores, most-deficient first on dimension 0.
	order := append([]*core.StoreInfo(nil), snap.Stores...)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].ActValsSum[0] != order[j].ActValsSum[0] {
			return order[i].ActValsSum[0] < order[j].ActValsSum[0]
		}
		return order[i].ID < order[j].ID
	})
	for _, s := range order {
		for !dom.Empty(0) || !dom.Empty(1) {
			which, _ := dominanceGap(s)
			if s.ActValsSum[which] >= 1-ratio {
				break
			}
			region := dom.Pop(which, s.ID, popRatio, bases)
			if region == nil {
				break
			}
			if err := s.Add(region); err != nil {
				return nil, core.Metrics{}, err
			}
		}
	}

	// Phase 3: place whatever is left over onto the best-fitting store,
	// rolling back any pick that would push either dimension beyond
	// 1+ratio instead of committing an out-of-band placement.
	for which := 0; which < 2 && which < snap.Dim; which++ {
		for !dom.Empty(which) {
			dst := bestFitForResidual(snap.Stores, which, ratio)
			if dst == nil {
				break
			}
			region := dom.Pop(which, dst.ID, popRatio, bases)
			if region == nil {
				break
			}
			if err := dst.Add(region); err != nil {
				return nil, core.Metrics{}, err
			}
			overflow := false
			for d := 0; d < snap.Dim; d++ {
				if dst.ActValsSum[d] > 1+ratio {
					overflow = true
					break
				}
			}
			if overflow {
				dst.Remove(region)
				region.DstStoreID = region.SrcStoreID
				dom.Push(which, region)
				break
			}
		}
	}

	plan := dom.BuildSolution()
	residual := dom.Count(0) + dom.Count(1)
	if residual > 0 {
		log.Warn("dominance-split: could not place every region",
			zap.Int("residual", residual), zap.Float64s("mean", mean))
		return plan, core.Metrics{Balanced: false, ResidualCount: residual}, nil
	}
	return plan, core.Metrics{Balanced: true}, nil
}

// dominanceGap returns the dimension with the larger normalized load and the
// gap between the two (assumes Dim==2, as the dominance-split and
// ClassifyRegions machinery both do throughout spec.md §4.4-4.5).
func dominanceGap(s *core.StoreInfo) (higherDim int, diff float64) {
	if s.ActValsSum[0] >= s.ActValsSum[1] {
		return 0, s.ActValsSum[0] - s.ActValsSum[1]
	}
	return 1, s.ActValsSum[1] - s.ActValsSum[0]
}

// bestFitForResidual picks the store with the lowest current load in `which`
// that still has headroom under 1+ratio, for phase 3's leftover placement.
func bestFitForResidual(stores []*core.StoreInfo, which int, ratio float64) *core.StoreInfo {
	var best *core.StoreInfo
	minLoad := math.MaxFloat64
	for _, s := range stores {
		if s.ActValsSum[which] < 1+ratio && s.ActValsSum[which] < minLoad {
			best = s
			minLoad = s.ActValsSum[which]
		}
	}
	return best
}

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

// GreedyMultiWithoutPinning is variant C ("greedy-multi", no local pinning):
// it drops the dominance classification and per-region peer exclusion that
// variants A, B and D rely on. Each overloaded store gives up its single
// worst region (by max-normalized-load) and that region is free to land on
// any store, including ones it has already visited, as long as every
// dimension of the destination stays within 1+ratio after the move. This is
// what the "GREEDY-MULTI" algorithm tag dispatches to.
func GreedyMultiWithoutPinning(snap *core.Snapshot, ratio float64) (core.Plan, core.Metrics, error) {
	normalizeSnapshot(snap)
	dims := snap.Dims()

	stores := append([]*core.StoreInfo(nil), snap.Stores...)
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].ActValsSum[0] != stores[j].ActValsSum[0] {
			return stores[i].ActValsSum[0] > stores[j].ActValsSum[0]
		}
		return stores[i].ID < stores[j].ID
	})

	pickBestDst := func(src *core.StoreInfo, region *core.RegionInfo) *core.StoreInfo {
		var dst *core.StoreInfo
		minLoad := math.MaxFloat64
		for _, s := range stores {
			if s == src {
				continue
			}
			feasible := true
			maxAfter := 0.0
			for _, d := range dims {
				after := s.ActValsSum[d] + region.Vals[d]
				if after > 1+ratio {
					feasible = false
					break
				}
				if after > maxAfter {
					maxAfter = after
				}
			}
			if feasible && maxAfter < minLoad {
				minLoad = maxAfter
				dst = s
			}
		}
		return dst
	}

	var plan core.Plan
	balanced := true
	progress := true
	for progress {
		progress = false
		for _, cur := range stores {
			for {
				maxDim, maxLoad := cur.MaxLoadInfo(dims)
				if maxLoad <= 1+ratio {
					break
				}
				cur.SortByMaxLoad()
				if len(cur.SortedRegions) == 0 {
					log.Debug("greedy-multi: overloaded store has no regions left to shed",
						zap.String("store-id", cur.ID), zap.Int("dim", maxDim))
					balanced = false
					break
				}
				region := cur.SortedRegions[len(cur.SortedRegions)-1]

				dst := pickBestDst(cur, region)
				if dst == nil {
					balanced = false
					break
				}
				cur.Remove(region)
				if err := dst.Add(region); err != nil {
					return nil, core.Metrics{}, err
				}
				region.DstStoreID = dst.ID
				region.HasMoved = true
				plan = append(plan, core.PlanEntry{RegionID: region.ID, SrcStoreID: cur.ID, DstStoreID: dst.ID, Fraction: 1})
				progress = true
			}
		}
	}
	return plan, core.Metrics{Balanced: balanced}, nil
}

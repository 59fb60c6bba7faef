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

	"github.com/tikv/region-balancer/core"
)

// GreedyMultiGreedyGeneral is variant B ("greedy-multi-greedy-general"): same
// sweep structure as GreedyMultiGreedy, but it pulls candidates from
// per-dimension sorted queues (SortAll) instead of dominance buckets, and
// its destination selector only considers stores other than the source whose
// current load in the popped dimension does not exceed the source's, picking
// the one that minimizes the post-move max load.
func GreedyMultiGreedyGeneral(snap *core.Snapshot, ratio float64) (core.Plan, core.Metrics, error) {
	normalizeSnapshot(snap)

	stores := append([]*core.StoreInfo(nil), snap.Stores...)
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].ActValsSum[0] != stores[j].ActValsSum[0] {
			return stores[i].ActValsSum[0] > stores[j].ActValsSum[0]
		}
		return stores[i].ID < stores[j].ID
	})

	pickBestDst := func(src *core.StoreInfo, which int, region *core.RegionInfo) *core.StoreInfo {
		var dst *core.StoreInfo
		minLoad := math.MaxFloat64
		for _, s := range stores {
			if s == src || !region.AllowsPeer(s.ID) {
				continue
			}
			if s.ActValsSum[which] > src.ActValsSum[which] {
				continue
			}
			maxAfter := 0.0
			for i, v := range s.ActValsSum {
				after := v + region.Vals[i]
				if after > maxAfter {
					maxAfter = after
				}
			}
			if maxAfter < minLoad {
				minLoad = maxAfter
				dst = s
			}
		}
		return dst
	}

	var plan core.Plan
	progress := true
	for progress {
		progress = false
		for _, cur := range stores {
			cur.SortAll()
			queues := cur.SortedByDim

			for {
				maxDim, maxFlow := maxFlowDim(cur)
				if maxFlow <= 1+ratio {
					break
				}
				queue := queues[maxDim]
				if len(queue) == 0 {
					break
				}
				region := queue[len(queue)-1]
				queues[maxDim] = queue[:len(queue)-1]

				if maxFlow-region.Vals[maxDim] < 1-ratio {
					continue
				}

				region.ExcludePeer(region.SrcStoreID)
				dst := pickBestDst(cur, maxDim, region)
				if dst == nil {
					continue
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
	balanced := true
	for _, s := range stores {
		for _, v := range s.ActValsSum {
			if v > 1+ratio || v < 1-ratio {
				balanced = false
			}
		}
	}
	return plan, core.Metrics{Balanced: balanced}, nil
}

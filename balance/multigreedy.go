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

// normalizeSnapshot divides every store's ValsSum/ActValsSum and every
// region's Vals by the per-dimension cluster mean, in place, so "balanced"
// means each normalized sum is approximately 1 and ratio becomes an
// absolute threshold in normalized units. Variants A-D of the
// multi-dimensional greedy balancer all start this way (spec.md §4.4).
func normalizeSnapshot(snap *core.Snapshot) []float64 {
	mean := snap.MeanLoads()
	for _, s := range snap.Stores {
		for i := 0; i < snap.Dim; i++ {
			if mean[i] != 0 {
				s.ValsSum[i] /= mean[i]
				s.ActValsSum[i] /= mean[i]
			}
		}
		for _, r := range s.Regions {
			for i := 0; i < snap.Dim; i++ {
				if mean[i] != 0 {
					r.Vals[i] /= mean[i]
				}
			}
		}
	}
	return mean
}

func maxFlowDim(s *core.StoreInfo) (dim int, flow float64) {
	for i, v := range s.ActValsSum {
		if v > flow {
			flow = v
			dim = i
		}
	}
	return
}

// GreedyMultiGreedy is variant A ("greedy-multi-greedy", dominance
// classified): each store classifies its own regions by dominance and, in
// descending-ActValsSum[0] order, pops from its dominating-dimension bucket
// while any dimension exceeds 1+ratio, choosing the best-fit destination
// among stores whose post-move load in that dimension stays <= 1+ratio.
func GreedyMultiGreedy(snap *core.Snapshot, ratio float64) (core.Plan, core.Metrics, error) {
	normalizeSnapshot(snap)

	stores := append([]*core.StoreInfo(nil), snap.Stores...)
	sort.SliceStable(stores, func(i, j int) bool {
		if stores[i].ActValsSum[0] != stores[j].ActValsSum[0] {
			return stores[i].ActValsSum[0] > stores[j].ActValsSum[0]
		}
		return stores[i].ID < stores[j].ID
	})

	pickBestDst := func(which int, region *core.RegionInfo) *core.StoreInfo {
		var dst *core.StoreInfo
		minLoad := math.MaxFloat64
		for _, s := range stores {
			if !region.AllowsPeer(s.ID) {
				continue
			}
			after := s.ActValsSum[which] + region.Vals[which]
			if after <= 1+ratio && after < minLoad {
				dst = s
				minLoad = after
			}
		}
		return dst
	}

	var plan core.Plan
	progress := true
	for progress {
		progress = false
		for _, cur := range stores {
			cur.ClassifyRegions(onesVector(snap.Dim))
			for {
				maxDim, maxFlow := maxFlowDim(cur)
				if maxFlow <= 1+ratio {
					break
				}
				region := cur.PopDom(maxDim)
				if region == nil {
					log.Debug("greedy-multi-greedy: store can't optimize further",
						zap.String("store-id", cur.ID), zap.Float64s("loads", cur.ActValsSum))
					break
				}
				if maxFlow-region.Vals[maxDim] < 1-ratio {
					log.Debug("greedy-multi-greedy: region would destroy lower bound, skipping",
						zap.String("region-id", region.ID))
					continue
				}
				region.ExcludePeer(region.SrcStoreID)
				dst := pickBestDst(maxDim, region)
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

func onesVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

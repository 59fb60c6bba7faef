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

// GreedyMultiDimWithPinning is variant D (spec.md §4.4, "with local
// pinning"). It runs a local pinning phase before the same dominance-driven
// sweep GreedyMultiGreedy uses: within each store, regions whose dominating
// dimension is NOT the store's overloaded one are marked Pinned and become
// ineligible to be evicted, so a sweep that is fixing dimension d never
// disturbs the regions that are keeping the other dimension in check. It is
// not one of the seven tags Balance dispatches to (see DESIGN.md), but the
// spec names it as one of the four multi-dimensional variants to build, so
// it is exported for direct use and for property tests.
func GreedyMultiDimWithPinning(snap *core.Snapshot, ratio float64) (core.Plan, core.Metrics, error) {
	normalizeSnapshot(snap)
	bases := onesVector(snap.Dim)

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
			cur.ClassifyRegions(bases)

			maxDim, maxFlow := maxFlowDim(cur)
			pinDim := 1 - maxDim
			if maxFlow > 1+ratio {
				for _, r := range cur.DomRegions[pinDim] {
					r.Pinned = true
				}
			}

			for {
				maxDim, maxFlow := maxFlowDim(cur)
				if maxFlow <= 1+ratio {
					break
				}
				region := popUnpinned(cur, maxDim)
				if region == nil {
					break
				}
				if maxFlow-region.Vals[maxDim] < 1-ratio {
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

// popUnpinned pops from dominance bucket `which`, skipping any region marked
// Pinned by the local pinning phase and appending the skipped regions back
// onto the tail of the bucket.
func popUnpinned(s *core.StoreInfo, which int) *core.RegionInfo {
	var skipped []*core.RegionInfo
	var found *core.RegionInfo
	for {
		r := s.PopDom(which)
		if r == nil {
			break
		}
		if r.Pinned {
			skipped = append(skipped, r)
			continue
		}
		found = r
		break
	}
	for _, r := range skipped {
		s.DomRegions[which] = append(s.DomRegions[which], r)
	}
	return found
}

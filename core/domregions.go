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

package core

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// DomRegions is the transient holding area the dominance-split balancer uses
// for regions that have been detached from their store but not yet
// reassigned. Two buckets (which=0,1), each keyed by the region's original
// store id. It also remembers every region ever pushed so BuildSolution can
// report only the ones that actually moved.
type DomRegions struct {
	snap     *Snapshot
	buckets  [2]map[string][]*RegionInfo
	counts   [2]int
	migrated map[string]*RegionInfo
}

// NewDomRegions builds an empty DomRegions bound to snap's id allocator.
func NewDomRegions(snap *Snapshot) *DomRegions {
	return &DomRegions{
		snap:     snap,
		buckets:  [2]map[string][]*RegionInfo{make(map[string][]*RegionInfo), make(map[string][]*RegionInfo)},
		migrated: make(map[string]*RegionInfo),
	}
}

// Push appends region to bucket `which` under key region.SrcStoreID.
func (d *DomRegions) Push(which int, region *RegionInfo) {
	sid := region.SrcStoreID
	d.buckets[which][sid] = append(d.buckets[which][sid], region)
	d.migrated[region.ID] = region
	d.counts[which]++
}

// Empty reports whether bucket `which` has no regions left.
func (d *DomRegions) Empty(which int) bool { return d.counts[which] == 0 }

// Count returns how many regions remain in bucket `which`.
func (d *DomRegions) Count(which int) int { return d.counts[which] }

// Pop chooses a source-store bucket: candidateSID if it has entries, else
// the non-empty bucket with the smallest store id, so the choice is
// deterministic. It
// pops the bucket's last region, sets DstStoreID=candidateSID, and then:
//   - if ratio is zero (no cap requested) or the region's normalized load in
//     dimension `which` is already <= ratio, returns it unmodified;
//   - otherwise splits off exactly enough load to hit the ratio cap and
//     returns only the split child, leaving the residual in the bucket.
func (d *DomRegions) Pop(which int, candidateSID string, ratio float64, bases []float64) *RegionInfo {
	sid := candidateSID
	if _, ok := d.buckets[which][sid]; !ok || len(d.buckets[which][sid]) == 0 {
		sid = ""
		for k, v := range d.buckets[which] {
			if len(v) > 0 && (sid == "" || k < sid) {
				sid = k
			}
		}
		if sid == "" {
			return nil
		}
	}

	bucket := d.buckets[which][sid]
	region := bucket[len(bucket)-1]
	bucket = bucket[:len(bucket)-1]
	d.buckets[which][sid] = bucket
	region.DstStoreID = candidateSID

	if ratio <= 0 || region.Vals[which]/bases[which] <= ratio {
		if len(bucket) == 0 {
			delete(d.buckets[which], sid)
		}
		d.counts[which]--
		return region
	}

	child := d.splitRegion(region, which, ratio, bases)
	d.buckets[which][sid] = append(d.buckets[which][sid], region)
	return child
}

// splitRegion implements the ratio-capped split used by Pop: the portion
// removed from region is exactly enough to bring its normalized load in
// dimension `which` down to ratio*bases[which].
func (d *DomRegions) splitRegion(region *RegionInfo, which int, ratio float64, bases []float64) *RegionInfo {
	splitRatio := bases[which] * ratio / region.Vals[which]
	vals := make([]float64, len(region.Vals))
	for i := range vals {
		vals[i] = region.Vals[i] * splitRatio
	}
	child := NewRegionInfo(d.snap.AllocDomRegionID(), vals, region.SrcStoreID)
	child.DstStoreID = region.DstStoreID
	child.ParentID = region.ID

	for i := range region.Vals {
		region.Vals[i] -= vals[i]
	}
	for _, v := range region.Vals {
		if v < 0 {
			log.Error("split produced a negative residual",
				zap.String("region-id", region.ID), zap.Float64s("residual", region.Vals))
			break
		}
	}
	d.migrated[child.ID] = child
	return child
}

// SplitRegionWithVal computes the portion of region that, if removed, would
// equalize the owning store's two normalized dimensions (higherDim is the
// currently-dominating one, diff is the current |ratio0-ratio1| gap). When
// calculateOnly is set it only projects the resulting normalized loads,
// without mutating region or allocating a new id. Otherwise it materializes
// a sibling region left in the same store (DstStoreID == SrcStoreID).
func (d *DomRegions) SplitRegionWithVal(region *RegionInfo, higherDim int, bases []float64, diff float64, calculateOnly bool) (*RegionInfo, []float64) {
	lowerDim := 1 - higherDim
	normHigh := region.Vals[higherDim] / bases[higherDim]
	normLow := region.Vals[lowerDim] / bases[lowerDim]
	x := diff / (normHigh - normLow)

	vals := make([]float64, len(region.Vals))
	for i := range vals {
		vals[i] = region.Vals[i] * x
	}

	if calculateOnly {
		projected := make([]float64, len(vals))
		for i := range vals {
			projected[i] = vals[i] / bases[i]
		}
		return nil, projected
	}

	child := NewRegionInfo(d.snap.AllocDomRegionID(), vals, region.SrcStoreID)
	child.DstStoreID = child.SrcStoreID
	child.ParentID = region.ID

	for i := range region.Vals {
		region.Vals[i] -= vals[i]
	}
	if region.Vals[0] < 0 || region.Vals[1] < 0 {
		log.Error("splitRegionWithVal produced a negative residual",
			zap.String("region-id", region.ID), zap.Float64s("residual", region.Vals))
	}
	return child, nil
}

// BuildSolution emits (id, src, dst) for every region ever pushed whose
// SrcStoreID differs from its final DstStoreID.
func (d *DomRegions) BuildSolution() []PlanEntry {
	var ret []PlanEntry
	for _, region := range d.migrated {
		if region.SrcStoreID != region.DstStoreID {
			ret = append(ret, PlanEntry{RegionID: region.ID, SrcStoreID: region.SrcStoreID, DstStoreID: region.DstStoreID, Fraction: 1})
		}
	}
	return ret
}

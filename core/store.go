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
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/google/btree"
	"github.com/montanaflynn/stats"
)

const btreeDegree = 32

// classifyTieTolerance is the relative tolerance used when deciding whether
// a region's two normalized dimensions are "tied" for dominance purposes.
// A tied region belongs to both dominance buckets; see ClassifyRegions.
const classifyTieTolerance = 1e-5

// StoreInfo owns a set of regions and the aggregated load vectors derived
// from them. ValsSum accumulates every region ever added (Add and
// AddSnapshotOnly raise it, Remove leaves it alone); ActValsSum tracks the
// currently owned regions and is the value every balancer reasons about.
type StoreInfo struct {
	ID  string
	Dim int

	Regions map[string]*RegionInfo

	ValsSum    []float64
	ActValsSum []float64

	// SortedRegions is materialized by Sort (one dimension's ascending
	// order) or SortByMaxLoad. SortAll fills SortedByDim instead, one
	// ascending list per dimension, and leaves SortedRegions untouched.
	SortedRegions []*RegionInfo
	SortedByDim   [][]*RegionInfo

	// DomRegions is materialized by ClassifyRegions: DomRegions[i] holds
	// every region whose dimension i dominates, ascending by
	// |vals[0]-vals[1]| (most-skewed last, so popping the tail yields the
	// most out-of-balance region first).
	DomRegions [][]*RegionInfo

	splitCounter int
}

// NewStoreInfo creates an empty store with the given dimensionality.
func NewStoreInfo(id string, dim int) *StoreInfo {
	return &StoreInfo{
		ID:         id,
		Dim:        dim,
		Regions:    make(map[string]*RegionInfo),
		ValsSum:    make([]float64, dim),
		ActValsSum: make([]float64, dim),
	}
}

// Add inserts region into the store, bumping both ValsSum and ActValsSum.
// Adding a region whose id is already present is a programmer error.
func (s *StoreInfo) Add(region *RegionInfo) error {
	if _, ok := s.Regions[region.ID]; ok {
		return ErrInvariantViolation("region %s already exists in store %s", region.ID, s.ID)
	}
	s.Regions[region.ID] = region
	for i := 0; i < s.Dim; i++ {
		s.ValsSum[i] += region.Vals[i]
		s.ActValsSum[i] += region.Vals[i]
	}
	return nil
}

// AddSnapshotOnly inserts region and bumps ValsSum and ActValsSum together,
// without checking for a duplicate id. It is used where the id is known not
// to be in the store already: snapshot construction (generator, dump/load),
// Shuffle and one-hop shuffles, and split children.
func (s *StoreInfo) AddSnapshotOnly(region *RegionInfo) {
	s.Regions[region.ID] = region
	for i := 0; i < s.Dim; i++ {
		s.ValsSum[i] += region.Vals[i]
		s.ActValsSum[i] += region.Vals[i]
	}
}

// Remove deletes region from the store, decrementing ActValsSum only;
// ValsSum is left unchanged.
func (s *StoreInfo) Remove(region *RegionInfo) {
	delete(s.Regions, region.ID)
	for i := 0; i < s.Dim; i++ {
		s.ActValsSum[i] -= region.Vals[i]
	}
}

type regionItem struct {
	region *RegionInfo
	key    float64
}

func (it regionItem) Less(than btree.Item) bool {
	other := than.(regionItem)
	if it.key != other.key {
		return it.key < other.key
	}
	return it.region.ID < other.region.ID
}

func (s *StoreInfo) ascendingBy(key func(*RegionInfo) float64) []*RegionInfo {
	tree := btree.New(btreeDegree)
	for _, r := range s.Regions {
		tree.ReplaceOrInsert(regionItem{region: r, key: key(r)})
	}
	out := make([]*RegionInfo, 0, tree.Len())
	tree.Ascend(func(item btree.Item) bool {
		out = append(out, item.(regionItem).region)
		return true
	})
	return out
}

// Sort materializes SortedRegions ascending by Vals[dim], ties broken by
// region id for determinism.
func (s *StoreInfo) Sort(dim int) {
	s.SortedRegions = s.ascendingBy(func(r *RegionInfo) float64 { return r.Vals[dim] })
}

// SortAll materializes a per-dimension family of ascending sorts in
// SortedByDim.
func (s *StoreInfo) SortAll() {
	s.SortedByDim = make([][]*RegionInfo, s.Dim)
	for d := 0; d < s.Dim; d++ {
		dim := d
		s.SortedByDim[d] = s.ascendingBy(func(r *RegionInfo) float64 { return r.Vals[dim] })
	}
}

// SortByMaxLoad materializes SortedRegions ascending by max(Vals).
func (s *StoreInfo) SortByMaxLoad() {
	s.SortedRegions = s.ascendingBy(func(r *RegionInfo) float64 { return r.Max() })
}

// ClassifyRegions partitions the store's regions into dominance buckets: a
// region belongs to bucket i if Vals[i]/bases[i] is strictly greater than
// the other normalized dimension. When the two normalized values are tied
// within classifyTieTolerance, the region goes into both buckets. Each
// bucket is then sorted ascending by |vals[0]-vals[1]| so the most-skewed
// region is at the tail (cheap to Pop).
func (s *StoreInfo) ClassifyRegions(bases []float64) {
	s.DomRegions = make([][]*RegionInfo, 2)
	for _, r := range s.Regions {
		n0 := r.Vals[0] / bases[0]
		n1 := r.Vals[1] / bases[1]
		if closeEnough(n0, n1, classifyTieTolerance) {
			s.DomRegions[0] = append(s.DomRegions[0], r)
			s.DomRegions[1] = append(s.DomRegions[1], r)
		} else if n0 > n1 {
			s.DomRegions[0] = append(s.DomRegions[0], r)
		} else {
			s.DomRegions[1] = append(s.DomRegions[1], r)
		}
	}
	for i := range s.DomRegions {
		bucket := s.DomRegions[i]
		sort.SliceStable(bucket, func(a, b int) bool {
			da := math.Abs(bucket[a].Vals[0] - bucket[a].Vals[1])
			db := math.Abs(bucket[b].Vals[0] - bucket[b].Vals[1])
			if da != db {
				return da < db
			}
			return bucket[a].ID < bucket[b].ID
		})
	}
}

// PopDom removes and returns the last (most-skewed) region of dominance
// bucket `which`, or nil if it is empty.
func (s *StoreInfo) PopDom(which int) *RegionInfo {
	bucket := s.DomRegions[which]
	if len(bucket) == 0 {
		return nil
	}
	r := bucket[len(bucket)-1]
	s.DomRegions[which] = bucket[:len(bucket)-1]
	return r
}

func closeEnough(a, b, relTol float64) bool {
	return math.Abs(a-b) <= relTol*math.Max(math.Abs(a), math.Abs(b))
}

// SplitRegion removes r and replaces it with n new regions each carrying
// r.Vals/n. Used only by the single-dimension balancer.
func (s *StoreInfo) SplitRegion(r *RegionInfo, n int) []*RegionInfo {
	s.Remove(r)
	children := make([]*RegionInfo, 0, n)
	for i := 0; i < n; i++ {
		s.splitCounter++
		id := fmt.Sprintf("%s-split-%d", r.ID, s.splitCounter)
		vals := make([]float64, s.Dim)
		for d := 0; d < s.Dim; d++ {
			vals[d] = r.Vals[d] / float64(n)
		}
		child := NewRegionInfo(id, vals, r.SrcStoreID)
		child.DstStoreID = r.DstStoreID
		child.ParentID = r.ID
		s.AddSnapshotOnly(child)
		children = append(children, child)
	}
	return children
}

// IfMoveIn returns the hypothetical ActValsSum[which] if region were added,
// without mutating the store.
func (s *StoreInfo) IfMoveIn(region *RegionInfo, which int) float64 {
	return s.ActValsSum[which] + region.Vals[which]
}

// IfMoveOut returns the hypothetical ActValsSum[which] if region were
// removed, without mutating the store.
func (s *StoreInfo) IfMoveOut(region *RegionInfo, which int) float64 {
	return s.ActValsSum[which] - region.Vals[which]
}

// MaxLoadInfo returns the dimension (restricted to dims) with the largest
// ActValsSum and that value.
func (s *StoreInfo) MaxLoadInfo(dims []int) (maxDim int, maxLoad float64) {
	maxLoad = -1
	for _, d := range dims {
		if s.ActValsSum[d] > maxLoad {
			maxLoad = s.ActValsSum[d]
			maxDim = d
		}
	}
	return
}

// Migrate atomically removes region from "from" and adds it to "to",
// updating region.DstStoreID to the destination.
func Migrate(region *RegionInfo, from, to *StoreInfo) error {
	from.Remove(region)
	region.DstStoreID = to.ID
	return to.Add(region)
}

// CalcCV returns the coefficient of variation of ActValsSum[which] across
// stores, as used by property tests to judge how balanced a snapshot is.
func CalcCV(stores []*StoreInfo, which int) (float64, error) {
	vals := make([]float64, len(stores))
	for i, s := range stores {
		vals[i] = s.ActValsSum[which]
	}
	mean, err := stats.Mean(vals)
	if err != nil {
		return 0, err
	}
	if mean == 0 {
		return 0, nil
	}
	sd, err := stats.StandardDeviation(vals)
	if err != nil {
		return 0, err
	}
	return sd / mean, nil
}

// Shuffle reassigns every region across stores uniformly at random using
// rng, resetting ValsSum to match the new placement. It is used to build a
// deliberately unbalanced synthetic input.
func Shuffle(stores []*StoreInfo, rng *rand.Rand) {
	var all []*RegionInfo
	for _, s := range stores {
		for _, r := range s.Regions {
			all = append(all, r)
		}
		s.Regions = make(map[string]*RegionInfo)
		for i := range s.ValsSum {
			s.ValsSum[i] = 0
			s.ActValsSum[i] = 0
		}
	}
	for _, r := range all {
		dst := stores[rng.Intn(len(stores))]
		r.SrcStoreID = dst.ID
		r.DstStoreID = dst.ID
		dst.AddSnapshotOnly(r)
	}
}

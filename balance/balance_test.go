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
	"testing"

	. "github.com/pingcap/check"

	"github.com/tikv/region-balancer/core"
)

func Test(t *testing.T) {
	TestingT(t)
}

func newUniformSnapshot(numStores, numRegionsPerStore, dim int, val float64) *core.Snapshot {
	snap := core.NewSnapshot(dim)
	for si := 0; si < numStores; si++ {
		store := core.NewStoreInfo(storeID(si), dim)
		snap.Stores = append(snap.Stores, store)
		for ri := 0; ri < numRegionsPerStore; ri++ {
			vals := make([]float64, dim)
			for d := range vals {
				vals[d] = val
			}
			store.AddSnapshotOnly(core.NewRegionInfo(regionID(si, ri), vals, store.ID))
		}
	}
	return snap
}

func storeID(i int) string  { return "store-" + string(rune('A'+i)) }
func regionID(s, r int) string {
	return storeID(s) + "-r" + string(rune('0'+r))
}

var _ = Suite(&testParseAlgorithmSuite{})

type testParseAlgorithmSuite struct{}

func (s *testParseAlgorithmSuite) TestCaseInsensitive(c *C) {
	alg, ok := ParseAlgorithm("greedy-single")
	c.Assert(ok, Equals, true)
	c.Assert(alg, Equals, AlgGreedySingle)
}

func (s *testParseAlgorithmSuite) TestUnknownTag(c *C) {
	_, ok := ParseAlgorithm("not-a-real-algorithm")
	c.Assert(ok, Equals, false)
}

var _ = Suite(&testSingleDimSuite{})

type testSingleDimSuite struct{}

func (s *testSingleDimSuite) TestTinyBalancedProducesEmptyPlan(c *C) {
	snap := newUniformSnapshot(3, 2, 2, 1)
	plan, metrics, err := Balance(string(AlgGreedySingle), snap, 0.05, false)
	c.Assert(err, IsNil)
	c.Assert(metrics.Balanced, Equals, true)
	c.Assert(plan, HasLen, 0)
}

func (s *testSingleDimSuite) TestAllOnOneStoreMoves(c *C) {
	dim := 1
	snap := core.NewSnapshot(dim)
	hot := core.NewStoreInfo("hot", dim)
	cold1 := core.NewStoreInfo("cold1", dim)
	cold2 := core.NewStoreInfo("cold2", dim)
	snap.Stores = append(snap.Stores, hot, cold1, cold2)
	for i := 0; i < 9; i++ {
		hot.AddSnapshotOnly(core.NewRegionInfo(regionID(0, i), []float64{1}, "hot"))
	}

	plan, _, err := Balance(string(AlgGreedySingle), snap, 0.1, false)
	c.Assert(err, IsNil)
	c.Assert(len(plan) > 0, Equals, true)
	for _, entry := range plan {
		c.Assert(entry.SrcStoreID, Equals, "hot")
	}
}

var _ = Suite(&testMultiDimSuite{})

type testMultiDimSuite struct{}

func (s *testMultiDimSuite) TestCrossDominanceMigratesDominatingRegion(c *C) {
	dim := 2
	snap := core.NewSnapshot(dim)
	a := core.NewStoreInfo("A", dim)
	b := core.NewStoreInfo("B", dim)
	snap.Stores = append(snap.Stores, a, b)
	a.AddSnapshotOnly(core.NewRegionInfo("r1", []float64{100, 0}, "A"))
	a.AddSnapshotOnly(core.NewRegionInfo("r2", []float64{0, 100}, "A"))
	b.AddSnapshotOnly(core.NewRegionInfo("r3", []float64{0, 0}, "B"))

	for _, alg := range []Algorithm{AlgGreedyMultiGreedy, AlgGreedyMultiGreedyGenl, AlgGreedyMulti} {
		snapCopy := snap.Clone()
		plan, _, err := Balance(string(alg), snapCopy, 0.2, false)
		c.Assert(err, IsNil, Commentf("algorithm %s", alg))
		c.Assert(len(plan) > 0, Equals, true, Commentf("algorithm %s should move a region", alg))
	}
}

func (s *testMultiDimSuite) TestAllRegionsEqualProducesEmptyPlan(c *C) {
	snap := newUniformSnapshot(4, 3, 2, 2)
	for _, alg := range []Algorithm{AlgGreedyMultiGreedy, AlgGreedyMultiGreedyGenl, AlgGreedyMulti} {
		snapCopy := snap.Clone()
		plan, metrics, err := Balance(string(alg), snapCopy, 0.05, false)
		c.Assert(err, IsNil)
		c.Assert(metrics.Balanced, Equals, true)
		c.Assert(plan, HasLen, 0, Commentf("algorithm %s", alg))
	}
}

func (s *testMultiDimSuite) TestPinningVariantDoesNotEvictPinnedRegions(c *C) {
	dim := 2
	snap := core.NewSnapshot(dim)
	a := core.NewStoreInfo("A", dim)
	b := core.NewStoreInfo("B", dim)
	snap.Stores = append(snap.Stores, a, b)
	a.AddSnapshotOnly(core.NewRegionInfo("r1", []float64{90, 10}, "A"))
	a.AddSnapshotOnly(core.NewRegionInfo("r2", []float64{10, 90}, "A"))
	b.AddSnapshotOnly(core.NewRegionInfo("r3", []float64{10, 10}, "B"))

	plan, metrics, err := GreedyMultiDimWithPinning(snap, 0.2)
	c.Assert(err, IsNil)
	// r1 alone exceeds the band, so no placement of these regions is balanced.
	c.Assert(metrics.Balanced, Equals, false)
	_, stillOnA := a.Regions["r2"]
	c.Assert(stillOnA, Equals, true)
	for _, entry := range plan {
		c.Assert(entry.RegionID, Not(Equals), "r2")
	}
}

var _ = Suite(&testDominanceSplitSuite{})

type testDominanceSplitSuite struct{}

func (s *testDominanceSplitSuite) TestOneHeavyOnAWithSplit(c *C) {
	dim := 2
	snap := core.NewSnapshot(dim)
	a := core.NewStoreInfo("A", dim)
	b := core.NewStoreInfo("B", dim)
	cc := core.NewStoreInfo("C", dim)
	snap.Stores = append(snap.Stores, a, b, cc)
	a.AddSnapshotOnly(core.NewRegionInfo("r1", []float64{30, 30}, "A"))

	plan, _, err := GreedyDominanceSplit(snap, 0.1, true)
	c.Assert(err, IsNil)
	c.Assert(len(plan) >= 1, Equals, true)

	ratios := snap.MaxMeanRatio()
	for _, r := range ratios {
		c.Assert(r <= 1.1+1e-6, Equals, true)
	}
}

func (s *testDominanceSplitSuite) TestIdempotentOnAlreadyBalanced(c *C) {
	snap := newUniformSnapshot(3, 4, 2, 1)
	plan, metrics, err := GreedyDominanceSplit(snap, 0.05, false)
	c.Assert(err, IsNil)
	c.Assert(metrics.Balanced, Equals, true)
	c.Assert(plan, HasLen, 0)
}

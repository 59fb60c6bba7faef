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

package lp

import (
	"testing"

	. "github.com/pingcap/check"

	"github.com/tikv/region-balancer/balance"
	"github.com/tikv/region-balancer/core"
)

func Test(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testSolveSuite{})

type testSolveSuite struct{}

func (s *testSolveSuite) buildSkewedSnapshot() *core.Snapshot {
	dim := 1
	snap := core.NewSnapshot(dim)
	hot := core.NewStoreInfo("hot", dim)
	cold := core.NewStoreInfo("cold", dim)
	snap.Stores = append(snap.Stores, hot, cold)
	for i := 0; i < 4; i++ {
		hot.AddSnapshotOnly(core.NewRegionInfo(idFor(i), []float64{10}, "hot"))
	}
	return snap
}

func idFor(i int) string { return "r" + string(rune('0'+i)) }

func (s *testSolveSuite) TestSolveIntegralMovesRegionsOffHotStore(c *C) {
	snap := s.buildSkewedSnapshot()
	plan, metrics, err := Solve(snap, 0.1, false)
	c.Assert(err, IsNil)
	c.Assert(metrics.Balanced, Equals, true)
	c.Assert(len(plan) > 0, Equals, true)
	for _, entry := range plan {
		c.Assert(entry.Fraction, Equals, 1.0)
		c.Assert(entry.SrcStoreID, Equals, "hot")
	}
}

func (s *testSolveSuite) TestSolveSplitPlanFractionsSumToOne(c *C) {
	snap := s.buildSkewedSnapshot()
	plan, metrics, err := Solve(snap, 0.1, true)
	c.Assert(err, IsNil)
	c.Assert(metrics.Balanced, Equals, true)

	sums := make(map[string]float64)
	for _, entry := range plan {
		sums[entry.RegionID] += entry.Fraction
	}
	for id, sum := range sums {
		c.Assert(sum > 1.0-1e-5 && sum <= 1.0+1e-6, Equals, true, Commentf("region %s", id))
	}
}

func (s *testSolveSuite) TestSolveRejectsZeroMeanCluster(c *C) {
	dim := 1
	snap := core.NewSnapshot(dim)
	snap.Stores = append(snap.Stores, core.NewStoreInfo("a", dim), core.NewStoreInfo("b", dim))
	_, _, err := Solve(snap, 0.1, false)
	c.Assert(err, NotNil)
}

func (s *testSolveSuite) TestBalanceDispatchesToILPViaRegisteredHook(c *C) {
	c.Assert(balance.LPSolveFunc, NotNil)
	snap := s.buildSkewedSnapshot()
	plan, _, err := balance.Balance(string(balance.AlgILP), snap, 0.1, false)
	c.Assert(err, IsNil)
	c.Assert(len(plan) > 0, Equals, true)
}

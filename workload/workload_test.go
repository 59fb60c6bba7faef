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

package workload

import (
	"bytes"
	"math/rand"
	"testing"

	. "github.com/pingcap/check"

	"github.com/tikv/region-balancer/core"
)

func Test(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testGeneratorSuite{})

type testGeneratorSuite struct{}

func (s *testGeneratorSuite) TestGenerateConservesTotalLoad(c *C) {
	g := &Generator{
		Dim:         2,
		TargetTotal: []float64{1000, 2000},
		StoreCount:  4,
		MaxFlowRate: 0.2,
		Rng:         rand.New(rand.NewSource(7)),
	}
	snap, err := g.Generate()
	c.Assert(err, IsNil)
	c.Assert(snap.Stores, HasLen, 4)

	var sum0, sum1 float64
	seen := make(map[string]bool)
	for _, st := range snap.Stores {
		for id, r := range st.Regions {
			c.Assert(seen[id], Equals, false)
			seen[id] = true
			sum0 += r.Vals[0]
			sum1 += r.Vals[1]
		}
	}
	c.Assert(sum0, Equals, 1000.0)
	c.Assert(sum1, Equals, 2000.0)
}

func (s *testGeneratorSuite) TestGenerateRejectsMismatchedDim(c *C) {
	g := &Generator{Dim: 2, TargetTotal: []float64{1}, StoreCount: 2}
	_, err := g.Generate()
	c.Assert(err, NotNil)
	c.Assert(core.IsInvariantViolation(err), Equals, true)
}

var _ = Suite(&testSnapshotIOSuite{})

type testSnapshotIOSuite struct{}

func (s *testSnapshotIOSuite) TestDumpLoadRoundTrip(c *C) {
	snap := core.NewSnapshot(2)
	st1 := core.NewStoreInfo("store-1", 2)
	st2 := core.NewStoreInfo("store-2", 2)
	st1.AddSnapshotOnly(core.NewRegionInfo("r1", []float64{1.5, 2.5}, "store-1"))
	st2.AddSnapshotOnly(core.NewRegionInfo("r2", []float64{3, 4}, "store-2"))
	snap.Stores = append(snap.Stores, st1, st2)

	var buf bytes.Buffer
	c.Assert(Dump(&buf, snap), IsNil)

	loaded, err := Load(&buf, 2)
	c.Assert(err, IsNil)
	c.Assert(loaded.Stores, HasLen, 2)
	c.Assert(loaded.Stores[0].ID, Equals, "store-1")
	c.Assert(loaded.Stores[0].Regions["r1"].Vals, DeepEquals, []float64{1.5, 2.5})
	c.Assert(loaded.Stores[1].Regions["r2"].Vals, DeepEquals, []float64{3.0, 4.0})
}

func (s *testSnapshotIOSuite) TestLoadTruncatedInputIsIOError(c *C) {
	var buf bytes.Buffer
	buf.WriteString("2\nstore-1\n")
	_, err := Load(&buf, 2)
	c.Assert(err, NotNil)
	c.Assert(core.IsIOError(err), Equals, true)
}

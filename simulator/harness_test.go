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

package simulator

import (
	"testing"

	. "github.com/pingcap/check"

	"github.com/tikv/region-balancer/config"
)

func Test(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testHarnessSuite{})

type testHarnessSuite struct{}

func (s *testHarnessSuite) baseConfig() config.Config {
	cfg := config.Default()
	cfg.StoreCount = 4
	cfg.TargetTotal = []float64{1000, 1000}
	cfg.Algorithm = "GREEDY-GLOBAL"
	return cfg
}

func (s *testHarnessSuite) TestNewHarnessRejectsInvalidConfig(c *C) {
	cfg := s.baseConfig()
	cfg.Dim = 0
	_, err := NewHarness(cfg)
	c.Assert(err, NotNil)
}

func (s *testHarnessSuite) TestRunGeneratesAndBalances(c *C) {
	h, err := NewHarness(s.baseConfig())
	c.Assert(err, IsNil)

	res, err := h.Run(nil)
	c.Assert(err, IsNil)
	c.Assert(res.PreMaxMean, HasLen, 2)
	c.Assert(res.AftMaxMean, HasLen, 2)
	c.Assert(res.Metrics.Balanced, Equals, true)
}

func (s *testHarnessSuite) TestRunManyProducesOneResultPerCall(c *C) {
	h, err := NewHarness(s.baseConfig())
	c.Assert(err, IsNil)

	results, err := h.RunMany(5)
	c.Assert(err, IsNil)
	c.Assert(results, HasLen, 5)
	for _, r := range results {
		c.Assert(r.Metrics.Balanced, Equals, true)
	}
}

func (s *testHarnessSuite) TestRunManyUsesDistinctSeeds(c *C) {
	cfg := s.baseConfig()
	cfg.Seed = 1
	h, err := NewHarness(cfg)
	c.Assert(err, IsNil)

	results, err := h.RunMany(3)
	c.Assert(err, IsNil)

	allSame := true
	for i := 1; i < len(results); i++ {
		if results[i].PreMaxMean[0] != results[0].PreMaxMean[0] {
			allSame = false
		}
	}
	c.Assert(allSame, Equals, false)
}

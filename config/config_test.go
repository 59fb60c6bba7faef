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

package config

import (
	"io/ioutil"
	"os"
	"testing"

	. "github.com/pingcap/check"

	"github.com/tikv/region-balancer/core"
)

func Test(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testConfigSuite{})

type testConfigSuite struct{}

func (s *testConfigSuite) TestDefaultValidates(c *C) {
	c.Assert(Default().Validate(), IsNil)
}

func (s *testConfigSuite) TestValidateRejectsBadRatio(c *C) {
	cfg := Default()
	cfg.Ratio = 1.5
	c.Assert(cfg.Validate(), NotNil)
}

func (s *testConfigSuite) TestValidateRejectsDimMismatch(c *C) {
	cfg := Default()
	cfg.TargetTotal = []float64{1}
	c.Assert(cfg.Validate(), NotNil)
}

func (s *testConfigSuite) TestLoadOverridesDefaults(c *C) {
	f, err := ioutil.TempFile("", "region-balance-cfg-*.toml")
	c.Assert(err, IsNil)
	defer os.Remove(f.Name())
	_, err = f.WriteString("store-count = 9\nratio = 0.1\n")
	c.Assert(err, IsNil)
	c.Assert(f.Close(), IsNil)

	cfg, err := Load(f.Name())
	c.Assert(err, IsNil)
	c.Assert(cfg.StoreCount, Equals, 9)
	c.Assert(cfg.Ratio, Equals, 0.1)
	c.Assert(cfg.Dim, Equals, Default().Dim)
}

func (s *testConfigSuite) TestLoadMissingFileIsIOError(c *C) {
	_, err := Load("/no/such/path/region-balance.toml")
	c.Assert(err, NotNil)
	c.Assert(core.IsIOError(err), Equals, true)
}

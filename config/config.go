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

// Package config loads the TOML-backed configuration shared by
// simulator.Harness and cmd/region-balance, the way PD-era tools load their
// scheduler/server configuration.
package config

import (
	"github.com/BurntSushi/toml"

	"github.com/tikv/region-balancer/core"
)

// Config holds every knob the harness and CLI need to generate a workload
// and run a solver against it.
type Config struct {
	Dim         int       `toml:"dim"`
	DimLabels   []string  `toml:"dim-labels"`
	TargetTotal []float64 `toml:"target-total"`
	StoreCount  int       `toml:"store-count"`
	Ratio       float64   `toml:"ratio"`
	Algorithm   string    `toml:"algorithm"`
	AllowSplit  bool      `toml:"allow-split"`
	MigrateNums int       `toml:"migrate-nums"`
	MaxFlowRate float64   `toml:"max-flow-rate"`
	Seed        int64     `toml:"seed"`
	RepeatCount int       `toml:"repeat-count"`
}

// Default returns the configuration the CLI falls back to when no --config
// file is given: two dimensions, a 5% tolerance, GREEDY-GLOBAL.
func Default() Config {
	return Config{
		Dim:         2,
		DimLabels:   []string{"bytes", "keys"},
		TargetTotal: []float64{1_000_000, 1_000_000},
		StoreCount:  5,
		Ratio:       0.05,
		Algorithm:   "GREEDY-GLOBAL",
		MaxFlowRate: 0.2,
		Seed:        1,
		RepeatCount: 1,
	}
}

// Load reads a TOML file at path into a copy of Default, so unspecified
// fields keep sensible values.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, core.ErrIOError(err, "loading config file "+path)
	}
	return cfg, nil
}

// Validate checks the fields a generator/harness run cannot proceed
// without.
func (c Config) Validate() error {
	if c.Dim <= 0 {
		return core.ErrInvariantViolation("config: dim must be positive, got %d", c.Dim)
	}
	if c.StoreCount <= 0 {
		return core.ErrInvariantViolation("config: store-count must be positive, got %d", c.StoreCount)
	}
	if c.Ratio <= 0 || c.Ratio >= 1 {
		return core.ErrInvariantViolation("config: ratio must be in (0,1), got %v", c.Ratio)
	}
	if len(c.TargetTotal) != c.Dim {
		return core.ErrInvariantViolation("config: target-total has %d entries, want %d", len(c.TargetTotal), c.Dim)
	}
	return nil
}

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

// PlanEntry is one region move. Fraction is 1 for every greedy solver and
// for non-split LP variables; the LP adapter may emit several PlanEntry
// values for the same RegionID with Fraction<1 when continuous relaxation
// splits a region fractionally across destinations (see SPEC_FULL.md §9,
// "multi-destination LP plans").
type PlanEntry struct {
	RegionID   string
	SrcStoreID string
	DstStoreID string
	Fraction   float64
}

// Plan is an ordered set of region moves.
type Plan []PlanEntry

// Metrics summarizes a solver run for the simulator harness and for
// property tests. Balanced is false when the solver could not bring the
// snapshot within tolerance (InfeasibleProblem); ResidualCount records any
// regions a dominance-split run could not place at all
// (NumericalResidual), and is 1 when the LP adapter's integral rounding
// cannot relieve an overloaded store. It is 0 for every other solver.
type Metrics struct {
	Balanced      bool
	ResidualCount int
}

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

// Package lp adapts gonum's simplex solver into the ILP balancer (spec.md
// §4.6): it treats the LP relaxation as an opaque black box, then rounds the
// fractional solution back into region placements itself. gonum has no
// integer program solver, so when the caller asks for a non-split plan this
// package runs a small greedy branch-and-bound pass on top of the
// relaxation rather than trusting the LP's fractional optimum directly.
package lp

import (
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/tikv/region-balancer/balance"
	"github.com/tikv/region-balancer/core"
)

func init() {
	balance.LPSolveFunc = Solve
}

// variable indexes one candidate (region, destination store) placement.
type variable struct {
	region *core.RegionInfo
	store  *core.StoreInfo
	cost   float64
}

// Solve builds the unit-placement LP described in spec.md §4.6 (one
// variable per region/destination-store pair, a placement-sum-to-one
// constraint per region, and per-store-per-dimension band constraints
// bounding load between (1-ratio) and (1+ratio) of the per-dimension mean),
// relaxes it to a continuous LP, hands it to gonum's simplex solver, and
// reconstructs a plan from the result. When allowSplit is false the
// fractional solution is rounded to an integral one greedily; when true,
// fractional variables above a noise floor become split PlanEntry values.
func Solve(snap *core.Snapshot, ratio float64, allowSplit bool) (core.Plan, core.Metrics, error) {
	snap.ResetEphemeral()
	mean := snap.MeanLoads()
	for _, d := range mean {
		if d == 0 {
			return nil, core.Metrics{}, core.ErrInfeasibleProblem("cluster has zero mean load, nothing to balance")
		}
	}

	var regions []*core.RegionInfo
	for _, s := range snap.Stores {
		for _, r := range s.Regions {
			regions = append(regions, r)
		}
	}
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })
	stores := append([]*core.StoreInfo(nil), snap.Stores...)
	sort.SliceStable(stores, func(i, j int) bool { return stores[i].ID < stores[j].ID })

	vars := make([]variable, 0, len(regions)*len(stores))
	regionVarStart := make(map[string]int, len(regions))
	for _, r := range regions {
		regionVarStart[r.ID] = len(vars)
		for _, s := range stores {
			cost := 0.0
			if s.ID != r.DstStoreID {
				cost = 1
			}
			vars = append(vars, variable{region: r, store: s, cost: cost})
		}
	}
	nVar := len(vars)

	c := make([]float64, nVar)
	for i, v := range vars {
		c[i] = v.cost
	}

	// Equality constraints: one per region, sum_s x[r,s] == 1.
	aEq := mat.NewDense(len(regions), nVar, nil)
	bEq := make([]float64, len(regions))
	for ri, r := range regions {
		start := regionVarStart[r.ID]
		for s := 0; s < len(stores); s++ {
			aEq.Set(ri, start+s, 1)
		}
		bEq[ri] = 1
	}

	// Inequality constraints: two per store-dimension (upper and lower
	// band, each expressed as <= so the lower band is negated), plus one
	// per variable capping it at 1 (gonum's simplex only assumes x >= 0;
	// the x <= 1 upper bound has to be an explicit row, not a Bound type).
	nBand := len(stores)*snap.Dim*2 + nVar
	aIneq := mat.NewDense(nBand, nVar, nil)
	bIneq := make([]float64, nBand)
	row := 0
	for _, s := range stores {
		for d := 0; d < snap.Dim; d++ {
			for vi, v := range vars {
				if v.store.ID != s.ID {
					continue
				}
				aIneq.Set(row, vi, v.region.Vals[d])
			}
			bIneq[row] = (1 + ratio) * mean[d]
			row++

			for vi, v := range vars {
				if v.store.ID != s.ID {
					continue
				}
				aIneq.Set(row, vi, -v.region.Vals[d])
			}
			bIneq[row] = -(1 - ratio) * mean[d]
			row++
		}
	}
	for vi := 0; vi < nVar; vi++ {
		aIneq.Set(row, vi, 1)
		bIneq[row] = 1
		row++
	}

	stdC, stdA, stdB := lp.Convert(c, aIneq, bIneq, aEq, bEq)

	_, x, err := lp.Simplex(stdC, stdA, stdB, 1e-10, nil)
	if err == lp.ErrInfeasible {
		log.Warn("lp: relaxation is infeasible", zap.Float64("ratio", ratio))
		return nil, core.Metrics{Balanced: false}, nil
	}
	if err != nil {
		return nil, core.Metrics{}, core.ErrInfeasibleProblem("simplex solve failed: %v", err)
	}
	x = x[:nVar]

	log.Info("lp: relaxation solved", zap.Int("variables", nVar), zap.Int("regions", len(regions)), zap.Int("stores", len(stores)))

	if allowSplit {
		return buildSplitPlan(regions, stores, vars, x, regionVarStart)
	}
	return buildIntegralPlan(snap, regions, stores, vars, x, regionVarStart, ratio)
}

// buildSplitPlan emits one PlanEntry per (region, store) pair whose
// fractional assignment exceeds a noise floor, resolving the spec's
// "multi-destination LP plans" open question (see SPEC_FULL.md §9): a
// region may appear several times in the plan with Fraction<1, and the
// fractions for one region sum to 1.
func buildSplitPlan(regions []*core.RegionInfo, stores []*core.StoreInfo, vars []variable, x []float64, start map[string]int) (core.Plan, core.Metrics, error) {
	const noiseFloor = 1e-6
	var plan core.Plan
	for _, r := range regions {
		base := start[r.ID]
		for s := 0; s < len(stores); s++ {
			frac := x[base+s]
			if frac <= noiseFloor {
				continue
			}
			store := vars[base+s].store
			if store.ID == r.SrcStoreID && frac > 1-noiseFloor {
				continue
			}
			plan = append(plan, core.PlanEntry{
				RegionID: r.ID, SrcStoreID: r.SrcStoreID, DstStoreID: store.ID, Fraction: frac,
			})
		}
	}
	return plan, core.Metrics{Balanced: true}, nil
}

// buildIntegralPlan rounds the relaxed solution: each region is first
// assigned to its highest-weight destination; any store that ends up over
// its upper band is then relieved by moving its largest region (by max
// load) that fits to the first other store, in store-id order, with room for
// it under the upper band, a small greedy pass standing in for a real MIP
// solver. The LP is not re-solved.
func buildIntegralPlan(snap *core.Snapshot, regions []*core.RegionInfo, stores []*core.StoreInfo, vars []variable, x []float64, start map[string]int, ratio float64) (core.Plan, core.Metrics, error) {
	mean := snap.MeanLoads()
	assignment := make(map[string]*core.StoreInfo, len(regions))
	load := make(map[string][]float64, len(stores))
	for _, s := range stores {
		load[s.ID] = make([]float64, snap.Dim)
	}

	for _, r := range regions {
		base := start[r.ID]
		best, bestX := 0, -1.0
		for s := 0; s < len(stores); s++ {
			if x[base+s] > bestX {
				bestX = x[base+s]
				best = s
			}
		}
		dst := vars[base+best].store
		assignment[r.ID] = dst
		for d := range load[dst.ID] {
			load[dst.ID][d] += r.Vals[d]
		}
	}

	residual := 0
	for pass := 0; pass < len(regions)+1; pass++ {
		offender := findOverloaded(stores, load, mean, ratio)
		if offender == nil {
			break
		}
		r, dst := relieve(regions, assignment, load, stores, mean, ratio, offender)
		if r == nil {
			residual++
			break
		}
		assignment[r.ID] = dst
	}

	var plan core.Plan
	for _, r := range regions {
		dst := assignment[r.ID]
		if dst.ID != r.SrcStoreID {
			plan = append(plan, core.PlanEntry{RegionID: r.ID, SrcStoreID: r.SrcStoreID, DstStoreID: dst.ID, Fraction: 1})
		}
	}
	return plan, core.Metrics{Balanced: residual == 0, ResidualCount: residual}, nil
}

func findOverloaded(stores []*core.StoreInfo, load map[string][]float64, mean []float64, ratio float64) *core.StoreInfo {
	for _, s := range stores {
		for d, v := range load[s.ID] {
			if v > (1+ratio)*mean[d] {
				return s
			}
		}
	}
	return nil
}

func relieve(regions []*core.RegionInfo, assignment map[string]*core.StoreInfo, load map[string][]float64, stores []*core.StoreInfo, mean []float64, ratio float64, offender *core.StoreInfo) (*core.RegionInfo, *core.StoreInfo) {
	var candidates []*core.RegionInfo
	for _, r := range regions {
		if assignment[r.ID] == offender {
			candidates = append(candidates, r)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Max() > candidates[j].Max() })

	for _, r := range candidates {
		for _, s := range stores {
			if s.ID == offender.ID {
				continue
			}
			fits := true
			for d := 0; d < len(mean); d++ {
				if load[s.ID][d]+r.Vals[d] > (1+ratio)*mean[d] {
					fits = false
					break
				}
			}
			if !fits {
				continue
			}
			for d := range mean {
				load[offender.ID][d] -= r.Vals[d]
				load[s.ID][d] += r.Vals[d]
			}
			return r, s
		}
	}
	return nil, nil
}

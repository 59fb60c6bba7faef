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

// Package balance implements the family of region-to-store balancing
// solvers: the greedy multi-dimensional balancers that mutate a
// core.Snapshot directly, and (in balance/lp) the LP/ILP adapter that
// delegates to gonum's simplex solver.
package balance

import (
	"strings"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/tikv/region-balancer/core"
)

// Algorithm is one of the case-insensitive tags accepted by Balance.
type Algorithm string

// Recognized algorithm tags.
const (
	AlgILP                   Algorithm = "ILP"
	AlgGreedySingle          Algorithm = "GREEDY-SINGLE"
	AlgGreedyGlobal          Algorithm = "GREEDY-GLOBAL"
	AlgGreedyGlobalSplit     Algorithm = "GREEDY-GLOBAL-SPLIT"
	AlgGreedyMulti           Algorithm = "GREEDY-MULTI"
	AlgGreedyMultiGreedy     Algorithm = "GREEDY-MULTI-GREEDY"
	AlgGreedyMultiGreedyGenl Algorithm = "GREEDY-MULTI-GREEDY-GENERAL"
)

// ParseAlgorithm normalizes a user-supplied tag (case-insensitive) to one of
// the Alg* constants.
func ParseAlgorithm(tag string) (Algorithm, bool) {
	norm := Algorithm(strings.ToUpper(strings.TrimSpace(tag)))
	switch norm {
	case AlgILP, AlgGreedySingle, AlgGreedyGlobal, AlgGreedyGlobalSplit,
		AlgGreedyMulti, AlgGreedyMultiGreedy, AlgGreedyMultiGreedyGenl:
		return norm, true
	}
	return "", false
}

// Solver is implemented by every balancing algorithm below. LPSolve has a
// different signature (it also needs allowSplit and returns a post-balance
// ratio) and is wired in separately by balance/lp; Balance dispatches to it
// through the LPSolveFunc hook so this package never imports balance/lp
// (which depends on gonum); a caller that wants AlgILP imports balance/lp.
type Solver func(snap *core.Snapshot, ratio float64) (core.Plan, core.Metrics, error)

// LPSolveFunc is set by balance/lp's init to avoid an import cycle: balance
// is the package callers import for the greedy family, and balance/lp
// imports balance only to register itself here.
var LPSolveFunc func(snap *core.Snapshot, ratio float64, allowSplit bool) (core.Plan, core.Metrics, error)

// Balance dispatches to the solver named by tag. allowSplit only affects
// AlgILP (enables continuous split variables); AlgGreedyGlobalSplit always
// splits, AlgGreedyGlobal never does, and other tags ignore it.
func Balance(tag string, snap *core.Snapshot, ratio float64, allowSplit bool) (core.Plan, core.Metrics, error) {
	alg, ok := ParseAlgorithm(tag)
	if !ok {
		return nil, core.Metrics{}, core.ErrInvariantViolation("unknown algorithm tag %q", tag)
	}
	snap.ResetEphemeral()

	log.Info("balance: dispatch", zap.String("algorithm", string(alg)), zap.Float64("ratio", ratio), zap.Bool("allow-split", allowSplit))

	switch alg {
	case AlgILP:
		if LPSolveFunc == nil {
			return nil, core.Metrics{}, core.ErrInvariantViolation("balance/lp is not imported; AlgILP unavailable")
		}
		return LPSolveFunc(snap, ratio, allowSplit)
	case AlgGreedySingle:
		return GreedySingleBoth(snap, ratio, false)
	case AlgGreedyGlobal:
		return GreedyDominanceSplit(snap, ratio, false)
	case AlgGreedyGlobalSplit:
		return GreedyDominanceSplit(snap, ratio, true)
	case AlgGreedyMulti:
		return GreedyMultiWithoutPinning(snap, ratio)
	case AlgGreedyMultiGreedy:
		return GreedyMultiGreedy(snap, ratio)
	case AlgGreedyMultiGreedyGenl:
		return GreedyMultiGreedyGeneral(snap, ratio)
	}
	return nil, core.Metrics{}, core.ErrInvariantViolation("unhandled algorithm tag %q", tag)
}

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
	"github.com/pingcap/errcode"
	"github.com/pkg/errors"
)

// Error kinds recognized by every solver and by the workload generator.
// InvariantViolation and IOError propagate to the caller unchanged. An
// infeasible LP relaxation, a greedy run that misses the band, and regions
// left unplaced by the dominance-split balancer are handled locally and
// folded into returned metrics instead; ErrInfeasibleProblem is returned
// only for the LP inputs described on it below.
var (
	CodeInvariantViolation = errcode.NewCode("balancer.invariant_violation")
	CodeInfeasibleProblem  = errcode.NewCode("balancer.infeasible_problem")
	CodeNumericalResidual  = errcode.NewCode("balancer.numerical_residual")
	CodeIOError            = errcode.NewCode("balancer.io_error")
)

// CodedError attaches one of the above codes to an underlying error so
// callers can branch on kind with errcode.CodeChain(err) instead of string
// matching.
type CodedError struct {
	code errcode.Code
	err  error
}

func (e *CodedError) Error() string { return e.err.Error() }

// Code implements errcode.ErrorCode.
func (e *CodedError) Code() errcode.Code { return e.code }

// Cause lets github.com/pkg/errors unwrap through the coded wrapper.
func (e *CodedError) Cause() error { return e.err }

func newCodedErrorf(code errcode.Code, format string, args ...interface{}) *CodedError {
	return &CodedError{code: code, err: errors.Errorf(format, args...)}
}

// ErrInvariantViolation reports a programmer error, such as a duplicate
// region id on add, an unknown algorithm tag or an invalid config. The caller
// must abort the current solver call. A negative residual left over after a
// DomRegions split is only logged at error level; it does not produce this
// error.
func ErrInvariantViolation(format string, args ...interface{}) error {
	return newCodedErrorf(CodeInvariantViolation, format, args...)
}

// ErrInfeasibleProblem is returned by the LP adapter (directly, or through
// Balance for AlgILP) when the cluster has zero mean load or the simplex
// solver fails for a reason other than infeasibility. An infeasible
// relaxation is reported as Metrics.Balanced=false with a nil error instead.
func ErrInfeasibleProblem(format string, args ...interface{}) error {
	return newCodedErrorf(CodeInfeasibleProblem, format, args...)
}

// ErrNumericalResidual builds an error for leftover regions after the
// dominance-split algorithm. The solvers in this module do not return it;
// GreedyDominanceSplit reports leftovers through Metrics.ResidualCount.
func ErrNumericalResidual(format string, args ...interface{}) error {
	return newCodedErrorf(CodeNumericalResidual, format, args...)
}

// ErrIOError wraps a snapshot dump/load failure for propagation unchanged.
func ErrIOError(err error, context string) error {
	return &CodedError{code: CodeIOError, err: errors.Wrap(err, context)}
}

// IsInvariantViolation reports whether err (or something it wraps) carries
// CodeInvariantViolation.
func IsInvariantViolation(err error) bool { return hasCode(err, CodeInvariantViolation) }

// IsIOError reports whether err (or something it wraps) carries CodeIOError.
func IsIOError(err error) bool { return hasCode(err, CodeIOError) }

func hasCode(err error, code errcode.Code) bool {
	for err != nil {
		if ce, ok := err.(*CodedError); ok {
			return ce.code == code
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

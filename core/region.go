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

// RegionInfo is an identified shard carrying a fixed-length load vector.
// SrcStoreID is the snapshot-time anchor of the region: it is set once by
// whoever places the region into a Snapshot and is never rewritten by a
// solver. DstStoreID tracks where the region currently sits; it equals
// SrcStoreID until the region is migrated.
type RegionInfo struct {
	ID         string
	Vals       []float64
	SrcStoreID string
	DstStoreID string

	// ParentID is set when this region was produced by splitting another
	// region; empty otherwise.
	ParentID string

	// Ephemeral per-pass flags. Reset at the start of every solver
	// invocation instead of being smuggled in as dynamic attributes (the
	// reference implementation decorates regions with ad-hoc Python
	// attributes; here they are explicit fields).
	HasMoved bool
	Pinned   bool

	// PeerStores lists stores this region may not land on for the current
	// solver pass (the multi-dimensional greedy solvers add the region's
	// SrcStoreID).
	PeerStores map[string]struct{}
}

// NewRegionInfo builds a region anchored at srcStoreID with its own load
// vector. The slice is copied so the caller can't mutate it out from under
// the store that owns the region.
func NewRegionInfo(id string, vals []float64, srcStoreID string) *RegionInfo {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	return &RegionInfo{
		ID:         id,
		Vals:       cp,
		SrcStoreID: srcStoreID,
		DstStoreID: srcStoreID,
	}
}

// Dim returns the number of load dimensions this region carries.
func (r *RegionInfo) Dim() int { return len(r.Vals) }

// Max returns the largest per-dimension load value.
func (r *RegionInfo) Max() float64 {
	m := r.Vals[0]
	for _, v := range r.Vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ResetEphemeral clears the per-pass fields a solver is about to start
// mutating. Snapshot.ResetEphemeral calls it on every region; balance.Balance
// and the LP adapter do that before solving, while the greedy solver
// functions called directly do not.
func (r *RegionInfo) ResetEphemeral() {
	r.HasMoved = false
	r.Pinned = false
	r.PeerStores = nil
}

// AllowsPeer reports whether storeID is not excluded by PeerStores.
func (r *RegionInfo) AllowsPeer(storeID string) bool {
	if r.PeerStores == nil {
		return true
	}
	_, excluded := r.PeerStores[storeID]
	return !excluded
}

// ExcludePeer adds storeID to the set of stores this region may not land on.
func (r *RegionInfo) ExcludePeer(storeID string) {
	if r.PeerStores == nil {
		r.PeerStores = make(map[string]struct{}, 1)
	}
	r.PeerStores[storeID] = struct{}{}
}

// Moved reports whether the region has been reassigned away from its
// snapshot-time anchor.
func (r *RegionInfo) Moved() bool { return r.DstStoreID != r.SrcStoreID }

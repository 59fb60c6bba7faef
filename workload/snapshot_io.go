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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tikv/region-balancer/core"
)

// Dump writes snap to w in the plain-text snapshot format (spec.md §6):
// store count, then for each store its id, region count, and one
// (region_id, bracketed-load-vector) pair per region.
func Dump(w io.Writer, snap *core.Snapshot) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, len(snap.Stores)); err != nil {
		return core.ErrIOError(err, "writing store count")
	}
	for _, s := range snap.Stores {
		if _, err := fmt.Fprintln(bw, s.ID); err != nil {
			return core.ErrIOError(err, "writing store id")
		}
		if _, err := fmt.Fprintln(bw, len(s.Regions)); err != nil {
			return core.ErrIOError(err, "writing region count")
		}
		for _, r := range s.Regions {
			if _, err := fmt.Fprintln(bw, r.ID); err != nil {
				return core.ErrIOError(err, "writing region id")
			}
			if _, err := fmt.Fprintln(bw, formatVals(r.Vals)); err != nil {
				return core.ErrIOError(err, "writing region vals")
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return core.ErrIOError(err, "flushing snapshot dump")
	}
	return nil
}

func formatVals(vals []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// Load reads a snapshot previously written by Dump. dim is the expected
// dimensionality of every load vector.
func Load(r io.Reader, dim int) (*core.Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	readLine := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(sc.Text()), nil
	}

	line, err := readLine()
	if err != nil {
		return nil, core.ErrIOError(err, "reading store count")
	}
	numStores, err := strconv.Atoi(line)
	if err != nil {
		return nil, core.ErrIOError(err, "parsing store count")
	}

	snap := core.NewSnapshot(dim)
	for i := 0; i < numStores; i++ {
		id, err := readLine()
		if err != nil {
			return nil, core.ErrIOError(err, "reading store id")
		}
		store := core.NewStoreInfo(id, dim)
		snap.Stores = append(snap.Stores, store)

		line, err := readLine()
		if err != nil {
			return nil, core.ErrIOError(err, "reading region count")
		}
		numRegions, err := strconv.Atoi(line)
		if err != nil {
			return nil, core.ErrIOError(err, "parsing region count")
		}
		for j := 0; j < numRegions; j++ {
			rid, err := readLine()
			if err != nil {
				return nil, core.ErrIOError(err, "reading region id")
			}
			valsLine, err := readLine()
			if err != nil {
				return nil, core.ErrIOError(err, "reading region vals")
			}
			vals, err := parseVals(valsLine, dim)
			if err != nil {
				return nil, core.ErrIOError(err, "parsing region vals")
			}
			region := core.NewRegionInfo(rid, vals, store.ID)
			store.AddSnapshotOnly(region)
		}
	}
	return snap, nil
}

func parseVals(line string, dim int) ([]float64, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "[")
	line = strings.TrimSuffix(line, "]")
	if line == "" {
		return make([]float64, dim), nil
	}
	parts := strings.Split(line, ",")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if len(vals) != dim {
		return nil, fmt.Errorf("region vals have %d dims, want %d", len(vals), dim)
	}
	return vals, nil
}

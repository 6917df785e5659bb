// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package estimation

import "sort"

// PassPerformanceData pairs one pass's stats with the source-network
// operations the pass covers.
type PassPerformanceData struct {
	OperationIds []uint32
	Stats        PassStats
}

// NetworkPerformanceData is the flat per-pass performance report handed back
// to callers that only want numbers, not the op graph.
type NetworkPerformanceData struct {
	Stream []PassPerformanceData
	Metric float64
}

// ToNetworkPerformanceData flattens the estimate into per-pass records. Each
// pass reports the union of its ops' source operation ids, sorted.
func (e *EstimatedOpGraph) ToNetworkPerformanceData() NetworkPerformanceData {
	result := NetworkPerformanceData{Metric: e.Metric}
	for _, pass := range e.Passes {
		seen := make(map[uint32]bool)
		var ids []uint32
		for _, op := range pass.Ops {
			for _, id := range op.Base().OperationIds {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		result.Stream = append(result.Stream, PassPerformanceData{OperationIds: ids, Stats: pass.Stats})
	}
	return result
}

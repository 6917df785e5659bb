// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package parts models the network-level compilation graph: each Part is one
// (or a few fused) network operations, and can generate multiple candidate
// Plans implementing it. The GraphOfParts connects parts through numbered
// input and output slots and is the structure the combiner searches over.
package parts

import "fmt"

// PartId identifies a part within one GraphOfParts. After SortAndCompact,
// ids are dense from zero in topological order.
type PartId uint32

// PartInputSlot names one input of a part.
type PartInputSlot struct {
	PartId PartId
	Index  uint32
}

func (s PartInputSlot) String() string {
	return fmt.Sprintf("Part %d input %d", s.PartId, s.Index)
}

// PartOutputSlot names one output of a part.
type PartOutputSlot struct {
	PartId PartId
	Index  uint32
}

func (s PartOutputSlot) String() string {
	return fmt.Sprintf("Part %d output %d", s.PartId, s.Index)
}

// Connection is one edge of the graph: an input slot fed by an output slot.
// Each input slot has exactly one source; an output slot may feed many
// inputs.
type Connection struct {
	Destination PartInputSlot
	Source      PartOutputSlot
}

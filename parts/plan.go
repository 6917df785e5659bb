// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
)

// CascadeType is the role a plan takes in a section of cascaded parts.
type CascadeType int

//go:generate go tool enumer -type=CascadeType -trimprefix=CascadeType plan.go

const (
	// CascadeTypeBeginning starts a section: reads DRAM, leaves its output
	// in SRAM for the next part.
	CascadeTypeBeginning CascadeType = iota
	// CascadeTypeMiddle continues a section: both boundaries in SRAM.
	CascadeTypeMiddle
	// CascadeTypeEnd closes a section: reads the predecessor's SRAM buffer,
	// writes DRAM.
	CascadeTypeEnd
	// CascadeTypeLonely is a self-contained plan with DRAM at both ends.
	CascadeTypeLonely
)

// Plan is one candidate implementation of a single part: a small op graph
// plus the mapping from the part's slots to the buffers that realize them.
type Plan struct {
	OpGraph *opgraph.OpGraph

	// InputMappings and OutputMappings say which buffer of the op graph
	// realizes each of the part's slots.
	InputMappings  map[PartInputSlot]opgraph.Buffer
	OutputMappings map[PartOutputSlot]opgraph.Buffer

	// IsPreallocated means the plan manages the lifetime of its own SRAM
	// buffers and the combiner must not include them in its conservative
	// everything-live-at-once SRAM accounting.
	IsPreallocated bool
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{
		OpGraph:        opgraph.NewOpGraph(),
		InputMappings:  make(map[PartInputSlot]opgraph.Buffer),
		OutputMappings: make(map[PartOutputSlot]opgraph.Buffer),
	}
}

// InputBuffer returns the buffer realizing the given input slot, nil if the
// plan has no such slot.
func (p *Plan) InputBuffer(slot PartInputSlot) opgraph.Buffer {
	return p.InputMappings[slot]
}

// OutputBuffer returns the buffer realizing the given output slot, nil if
// the plan has no such slot.
func (p *Plan) OutputBuffer(slot PartOutputSlot) opgraph.Buffer {
	return p.OutputMappings[slot]
}

// InputSlotFor returns the input slot realized by b, if any.
func (p *Plan) InputSlotFor(b opgraph.Buffer) (PartInputSlot, bool) {
	for slot, buf := range p.InputMappings {
		if buf == b {
			return slot, true
		}
	}
	return PartInputSlot{}, false
}

// OutputSlotFor returns the output slot realized by b, if any.
func (p *Plan) OutputSlotFor(b opgraph.Buffer) (PartOutputSlot, bool) {
	for slot, buf := range p.OutputMappings {
		if buf == b {
			return slot, true
		}
	}
	return PartOutputSlot{}, false
}

// BlockConfig returns the processing block size the plan's MCE or PLE ops
// were generated for. Plans with neither kind of op have no block config.
func (p *Plan) BlockConfig() (opgraph.BlockConfig, bool) {
	for _, op := range p.OpGraph.Ops() {
		switch o := op.(type) {
		case *opgraph.MceOp:
			return o.BlockConfig, true
		case *opgraph.PleOp:
			return o.BlockConfig, true
		}
	}
	return opgraph.BlockConfig{}, false
}

// PleOp returns the plan's PLE op, nil if it has none.
func (p *Plan) PleOp() *opgraph.PleOp {
	for _, op := range p.OpGraph.Ops() {
		if ple, ok := op.(*opgraph.PleOp); ok {
			return ple
		}
	}
	return nil
}

// SizeOfSramBuffers sums the tile sizes of all SRAM buffers in the plan.
// PLE input buffers are excluded since they do not occupy allocatable SRAM.
func (p *Plan) SizeOfSramBuffers() uint32 {
	var total uint32
	for _, b := range p.OpGraph.Buffers() {
		if sram := b.Sram(); sram != nil {
			total += sram.SizeInBytes
		}
	}
	return total
}

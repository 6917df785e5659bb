// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// RemoveRedundantCopies collapses chains of DMA copies that exist only
// because neighbouring plans were glued independently. A value that goes
// SRAM -> DRAM -> SRAM -> DRAM can usually be written to its final DRAM
// buffer directly, and likewise for reads. Runs both directions to a
// fixpoint.
func (g *OpGraph) RemoveRedundantCopies() {
	for {
		changed := g.removeRedundantSramToDramCopies() || g.removeRedundantDramToSramCopies()
		if !changed {
			return
		}
	}
}

// copyChain matches src -(d1)-> mid1 -(d2)-> mid2 -(d3)-> dst where all
// three ops are plain DMAs and the two middle buffers exist only to carry
// this one value.
type copyChain struct {
	d1, d2, d3      *DmaOp
	src, mid1, mid2 Buffer
	dst             Buffer
}

func (g *OpGraph) findCopyChains(srcLocation Location) []copyChain {
	var chains []copyChain
	for _, op := range g.ops {
		d1 := op.Dma()
		if d1 == nil || d1.DramOffset != (shapes.TensorShape{}) {
			continue
		}
		inputs := g.GetInputs(d1)
		if len(inputs) != 1 || inputs[0].Base().Location != srcLocation {
			continue
		}
		src := inputs[0]
		mid1 := g.GetOutput(d1)
		if mid1 == nil || !g.isSingleUseIntermediate(mid1) {
			continue
		}
		d2, ok := g.soleDmaConsumer(mid1)
		if !ok || d2.DramOffset != (shapes.TensorShape{}) {
			continue
		}
		mid2 := g.GetOutput(d2)
		if mid2 == nil || !g.isSingleUseIntermediate(mid2) {
			continue
		}
		d3, ok := g.soleDmaConsumer(mid2)
		if !ok {
			continue
		}
		dst := g.GetOutput(d3)
		if dst == nil {
			continue
		}
		chains = append(chains, copyChain{d1, d2, d3, src, mid1, mid2, dst})
	}
	return chains
}

// isSingleUseIntermediate reports whether the buffer carries exactly one
// value from one producer to one consumer and is invisible to the caller.
func (g *OpGraph) isSingleUseIntermediate(b Buffer) bool {
	if len(g.GetProducers(b)) != 1 || len(g.GetConsumers(b)) != 1 {
		return false
	}
	if d := b.Dram(); d != nil && d.BufferType != BufferTypeIntermediate {
		return false
	}
	return true
}

func (g *OpGraph) soleDmaConsumer(b Buffer) (*DmaOp, bool) {
	consumers := g.GetConsumers(b)
	if len(consumers) != 1 {
		return nil, false
	}
	d := consumers[0].Op.Dma()
	return d, d != nil
}

// removeRedundantSramToDramCopies rewrites
// Sram -> Dram -> Sram -> Dram(dst) chains into a single Sram -> Dram(dst)
// DMA. The final DMA is kept since it carries the destination format and
// offset.
func (g *OpGraph) removeRedundantSramToDramCopies() bool {
	for _, c := range g.findCopyChains(LocationSram) {
		srcSram := c.src.Sram()
		dst := c.dst.Dram()
		if srcSram == nil || dst == nil {
			continue
		}
		if !IsSramBufferCompatibleWithDramFormat(srcSram, dst.Format, c.d3.DramOffset) {
			continue
		}
		g.collapseChain(c)
		return true
	}
	return false
}

// removeRedundantDramToSramCopies rewrites
// Dram(src) -> Sram -> Dram -> Sram chains into a single Dram(src) -> Sram
// DMA.
func (g *OpGraph) removeRedundantDramToSramCopies() bool {
	for _, c := range g.findCopyChains(LocationDram) {
		src := c.src.Dram()
		dstSram := c.dst.Sram()
		if src == nil || dstSram == nil || c.d3.DramOffset != (shapes.TensorShape{}) {
			continue
		}
		if !IsSramBufferCompatibleWithDramFormat(dstSram, src.Format, shapes.TensorShape{}) {
			continue
		}
		g.collapseChain(c)
		c.d3.TransferFormat = src.Format
		return true
	}
	return false
}

// collapseChain reroutes the final DMA to read from the chain's source and
// prunes everything in between.
func (g *OpGraph) collapseChain(c copyChain) {
	g.RemoveConsumer(c.mid2, c.d3, 0)
	g.AddConsumer(c.src, c.d3, 0)
	g.RemoveAndPruneOp(c.d1)
}

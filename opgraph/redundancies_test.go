// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// chainGraph builds src -(d1)-> mid1 -(d2)-> mid2 -(d3)-> dst with the given
// buffers and returns the three DMAs.
func chainGraph(g *opgraph.OpGraph, src, mid1, mid2, dst opgraph.Buffer) (d1, d2, d3 *opgraph.DmaOp) {
	d1 = dma("d1")
	d2 = dma("d2")
	d3 = dma("d3")
	for _, b := range []opgraph.Buffer{src, mid1, mid2, dst} {
		g.AddBuffer(b)
	}
	for _, d := range []*opgraph.DmaOp{d1, d2, d3} {
		g.AddOp(d)
	}
	g.AddConsumer(src, d1, 0)
	g.SetProducer(mid1, d1)
	g.AddConsumer(mid1, d2, 0)
	g.SetProducer(mid2, d2)
	g.AddConsumer(mid2, d3, 0)
	g.SetProducer(dst, d3)
	return d1, d2, d3
}

func TestRemoveRedundantSramToDramCopies(t *testing.T) {
	g := opgraph.NewOpGraph()
	src := sram("src")
	mid1 := dram("mid1", opgraph.BufferTypeIntermediate)
	mid2 := sram("mid2")
	dst := dram("dst", opgraph.BufferTypeOutput)
	_, _, d3 := chainGraph(g, src, mid1, mid2, dst)

	g.RemoveRedundantCopies()

	require.Len(t, g.Ops(), 1)
	assert.Equal(t, opgraph.Op(d3), g.Ops()[0])
	require.Len(t, g.Buffers(), 2)
	assert.Equal(t, []opgraph.Buffer{src}, g.GetInputs(d3))
	assert.Equal(t, opgraph.Buffer(dst), g.GetOutput(d3))
}

func TestRemoveRedundantDramToSramCopies(t *testing.T) {
	g := opgraph.NewOpGraph()
	src := dram("src", opgraph.BufferTypeInput)
	src.Format = opgraph.BufferFormatFcafDeep
	mid1 := sram("mid1")
	mid2 := dram("mid2", opgraph.BufferTypeIntermediate)
	dst := sram("dst")
	_, _, d3 := chainGraph(g, src, mid1, mid2, dst)

	g.RemoveRedundantCopies()

	require.Len(t, g.Ops(), 1)
	assert.Equal(t, []opgraph.Buffer{src}, g.GetInputs(d3))
	assert.Equal(t, opgraph.Buffer(dst), g.GetOutput(d3))
	// The surviving DMA now reads the source's DRAM layout directly.
	assert.Equal(t, opgraph.BufferFormatFcafDeep, d3.TransferFormat)
}

func TestRemoveRedundantCopiesKeepsNonIntermediates(t *testing.T) {
	// A DRAM buffer the caller can see (an output) must not be elided.
	g := opgraph.NewOpGraph()
	src := sram("src")
	mid1 := dram("mid1", opgraph.BufferTypeOutput)
	mid2 := sram("mid2")
	dst := dram("dst", opgraph.BufferTypeOutput)
	chainGraph(g, src, mid1, mid2, dst)

	g.RemoveRedundantCopies()

	assert.Len(t, g.Ops(), 3)
	assert.Len(t, g.Buffers(), 4)
}

func TestRemoveRedundantCopiesKeepsSharedMiddles(t *testing.T) {
	// A middle buffer with a second consumer still carries a live value.
	g := opgraph.NewOpGraph()
	src := sram("src")
	mid1 := dram("mid1", opgraph.BufferTypeIntermediate)
	mid2 := sram("mid2")
	dst := dram("dst", opgraph.BufferTypeOutput)
	chainGraph(g, src, mid1, mid2, dst)

	other := dma("other")
	otherOut := sram("otherOut")
	g.AddOp(other)
	g.AddBuffer(otherOut)
	g.AddConsumer(mid1, other, 0)
	g.SetProducer(otherOut, other)

	g.RemoveRedundantCopies()

	assert.Len(t, g.Ops(), 4)
	assert.Len(t, g.Buffers(), 5)
}

func TestRemoveRedundantCopiesRequiresCompatibleFormat(t *testing.T) {
	// The source splits depth, which linear NHWC cannot transfer, so the
	// chain must stay even though it is otherwise collapsible.
	g := opgraph.NewOpGraph()
	src := opgraph.NewSramBuffer(shapes.TensorShape{1, 16, 16, 32},
		shapes.TensorShape{1, 16, 16, 16}, 2, opgraph.TraversalOrderXyz)
	src.DebugTag = "src"
	mid1 := opgraph.NewDramBuffer(shapes.TensorShape{1, 16, 16, 32},
		opgraph.BufferFormatNhwcb, opgraph.BufferTypeIntermediate)
	mid1.DebugTag = "mid1"
	mid2 := opgraph.NewSramBuffer(shapes.TensorShape{1, 16, 16, 32},
		shapes.TensorShape{1, 16, 16, 32}, 1, opgraph.TraversalOrderXyz)
	mid2.DebugTag = "mid2"
	dst := opgraph.NewDramBuffer(shapes.TensorShape{1, 16, 16, 32},
		opgraph.BufferFormatNhwc, opgraph.BufferTypeOutput)
	dst.DebugTag = "dst"
	chainGraph(g, src, mid1, mid2, dst)

	g.RemoveRedundantCopies()

	assert.Len(t, g.Ops(), 3)
	assert.Len(t, g.Buffers(), 4)
}

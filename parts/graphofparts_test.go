// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

func testCapabilities(t *testing.T) *capabilities.Capabilities {
	t.Helper()
	caps, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 0)
	require.NoError(t, err)
	return caps
}

func testOptions() (*options.CompilationOptions, *options.EstimationOptions) {
	compOpt := options.DefaultCompilationOptions()
	estOpt := options.DefaultEstimationOptions()
	return &compOpt, &estOpt
}

func newTestInputPart(t *testing.T, id parts.PartId, shape shapes.TensorShape) *parts.InputPart {
	caps := testCapabilities(t)
	compOpt, estOpt := testOptions()
	return parts.NewInputPart(id, shape, opgraph.BufferFormatNhwc,
		opgraph.QuantizationInfo{Scale: 1}, []uint32{uint32(id)}, caps, compOpt, estOpt)
}

func TestGraphOfPartsConnections(t *testing.T) {
	g := parts.NewGraphOfParts()
	shape := shapes.TensorShape{1, 16, 16, 16}
	a := newTestInputPart(t, g.GeneratePartId(), shape)
	b := newTestInputPart(t, g.GeneratePartId(), shape)
	c := newTestInputPart(t, g.GeneratePartId(), shape)
	g.AddPart(a)
	g.AddPart(b)
	g.AddPart(c)

	// a and b both feed c.
	g.AddConnection(parts.PartInputSlot{c.ID(), 0}, parts.PartOutputSlot{a.ID(), 0})
	g.AddConnection(parts.PartInputSlot{c.ID(), 1}, parts.PartOutputSlot{b.ID(), 0})

	assert.Equal(t, 3, g.NumParts())
	assert.Equal(t, parts.Part(a), g.GetPart(a.ID()))

	src := g.GetConnectedOutputSlot(parts.PartInputSlot{c.ID(), 0})
	require.NotNil(t, src)
	assert.Equal(t, parts.PartOutputSlot{a.ID(), 0}, *src)
	assert.Nil(t, g.GetConnectedOutputSlot(parts.PartInputSlot{a.ID(), 0}))

	dests := g.GetConnectedInputSlots(parts.PartOutputSlot{b.ID(), 0})
	assert.Equal(t, []parts.PartInputSlot{{c.ID(), 1}}, dests)

	assert.Equal(t, []parts.PartInputSlot{{c.ID(), 0}, {c.ID(), 1}}, g.GetPartInputs(c.ID()))
	assert.Empty(t, g.GetPartInputs(a.ID()))
	assert.Equal(t, []parts.PartOutputSlot{{a.ID(), 0}}, g.GetPartOutputs(a.ID()))
}

func TestGraphOfPartsValidate(t *testing.T) {
	g := parts.NewGraphOfParts()
	shape := shapes.TensorShape{1, 16, 16, 16}
	a := newTestInputPart(t, g.GeneratePartId(), shape)
	b := newTestInputPart(t, g.GeneratePartId(), shape)
	g.AddPart(a)
	g.AddPart(b)
	g.AddConnection(parts.PartInputSlot{b.ID(), 0}, parts.PartOutputSlot{a.ID(), 0})
	require.NoError(t, g.Validate())

	t.Run("missing part", func(t *testing.T) {
		g.AddConnection(parts.PartInputSlot{parts.PartId(99), 0}, parts.PartOutputSlot{a.ID(), 0})
		err := g.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing part")
	})

	t.Run("reconnecting an input panics", func(t *testing.T) {
		g := parts.NewGraphOfParts()
		a := newTestInputPart(t, g.GeneratePartId(), shape)
		b := newTestInputPart(t, g.GeneratePartId(), shape)
		c := newTestInputPart(t, g.GeneratePartId(), shape)
		g.AddPart(a)
		g.AddPart(b)
		g.AddPart(c)
		g.AddConnection(parts.PartInputSlot{c.ID(), 0}, parts.PartOutputSlot{a.ID(), 0})
		assert.Panics(t, func() {
			g.AddConnection(parts.PartInputSlot{c.ID(), 0}, parts.PartOutputSlot{b.ID(), 0})
		})
	})
}

func TestSortAndCompact(t *testing.T) {
	shape := shapes.TensorShape{1, 16, 16, 16}

	build := func() (*parts.GraphOfParts, [3]*parts.InputPart) {
		g := parts.NewGraphOfParts()
		// Deliberately sparse, out-of-order ids.
		a := newTestInputPart(t, 7, shape)
		b := newTestInputPart(t, 3, shape)
		c := newTestInputPart(t, 12, shape)
		g.AddPart(a)
		g.AddPart(b)
		g.AddPart(c)
		// b -> a -> c
		g.AddConnection(parts.PartInputSlot{a.ID(), 0}, parts.PartOutputSlot{b.ID(), 0})
		g.AddConnection(parts.PartInputSlot{c.ID(), 0}, parts.PartOutputSlot{a.ID(), 0})
		return g, [3]*parts.InputPart{a, b, c}
	}

	g, ps := build()
	g.SortAndCompact()

	// Topological order b, a, c with ids renumbered densely from zero.
	assert.Equal(t, parts.PartId(0), ps[1].ID())
	assert.Equal(t, parts.PartId(1), ps[0].ID())
	assert.Equal(t, parts.PartId(2), ps[2].ID())
	assert.Equal(t, []parts.Part{ps[1], ps[0], ps[2]}, g.Parts())

	// Connections follow the renumbering.
	src := g.GetConnectedOutputSlot(parts.PartInputSlot{1, 0})
	require.NotNil(t, src)
	assert.Equal(t, parts.PartOutputSlot{0, 0}, *src)
	require.NoError(t, g.Validate())

	// The order is a pure function of the graph.
	g2, _ := build()
	g2.SortAndCompact()
	for i, p := range g.Parts() {
		assert.Equal(t, p.DebugTag(), g2.Parts()[i].DebugTag())
		assert.Equal(t, p.ID(), g2.Parts()[i].ID())
	}
}

// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package compiler_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/compiler"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/estimation"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// buildNetwork builds Input -> 1x1 conv -> Output over the given shape.
func buildNetwork(t *testing.T, caps *capabilities.Capabilities,
	compOpt *options.CompilationOptions, estOpt *options.EstimationOptions,
	shape shapes.TensorShape) *parts.GraphOfParts {
	t.Helper()
	quant := opgraph.QuantizationInfo{Scale: 1}
	g := parts.NewGraphOfParts()

	input := parts.NewInputPart(g.GeneratePartId(), shape, opgraph.BufferFormatNhwc,
		quant, []uint32{0}, caps, compOpt, estOpt)
	conv := parts.NewMcePart(g.GeneratePartId(), parts.McePartParams{
		InputShape:         shape,
		OutputShape:        shape,
		KernelHeight:       1,
		KernelWidth:        1,
		InputQuantization:  quant,
		OutputQuantization: quant,
		WeightQuantization: quant,
		Operation:          opgraph.MceOperationConvolution,
	}, []uint32{1}, caps, compOpt, estOpt)
	output := parts.NewOutputPart(g.GeneratePartId(), shape, opgraph.BufferFormatNhwc,
		quant, []uint32{2}, caps, compOpt, estOpt)

	g.AddPart(input)
	g.AddPart(conv)
	g.AddPart(output)
	g.AddConnection(parts.PartInputSlot{PartId: conv.ID(), Index: 0}, parts.PartOutputSlot{PartId: input.ID(), Index: 0})
	g.AddConnection(parts.PartInputSlot{PartId: output.ID(), Index: 0}, parts.PartOutputSlot{PartId: conv.ID(), Index: 0})
	return g
}

func TestCompile(t *testing.T) {
	caps, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 0)
	require.NoError(t, err)
	compOpt := options.DefaultCompilationOptions()
	estOpt := options.DefaultEstimationOptions()
	g := buildNetwork(t, caps, &compOpt, &estOpt, shapes.TensorShape{1, 16, 16, 16})

	compiled, err := compiler.Compile(g, caps, &compOpt, &estOpt)
	require.NoError(t, err)
	require.NotNil(t, compiled)

	assert.False(t, compiled.Combination.IsEmpty())
	require.NotNil(t, compiled.OpGraph)
	assert.Len(t, compiled.OpGraph.Ops(), 5)

	// A single conv is a single pass, and every op belongs to it.
	require.Len(t, compiled.Estimated.Passes, 1)
	assert.Len(t, compiled.Estimated.Passes[0].Ops, 5)
	assert.Greater(t, compiled.Estimated.Metric, 0.0)
}

func TestCompileSramTooSmall(t *testing.T) {
	// 1 KiB per bank cannot even hold the 4 KiB PLE kernel, so no plan of
	// any part can be placed.
	caps, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 8192)
	require.NoError(t, err)
	compOpt := options.DefaultCompilationOptions()
	estOpt := options.DefaultEstimationOptions()
	g := buildNetwork(t, caps, &compOpt, &estOpt, shapes.TensorShape{1, 16, 16, 16})

	_, err = compiler.Compile(g, caps, &compOpt, &estOpt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find a valid combination")
}

func TestCompileInvalidGraph(t *testing.T) {
	caps, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 0)
	require.NoError(t, err)
	compOpt := options.DefaultCompilationOptions()
	estOpt := options.DefaultEstimationOptions()

	g := buildNetwork(t, caps, &compOpt, &estOpt, shapes.TensorShape{1, 16, 16, 16})
	// Dangle a connection to a part that does not exist.
	g.AddConnection(parts.PartInputSlot{PartId: 99, Index: 0}, parts.PartOutputSlot{PartId: 0, Index: 0})

	_, err = compiler.Compile(g, caps, &compOpt, &estOpt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no part with id 99")
}

func TestEstimatePerformance(t *testing.T) {
	caps, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 0)
	require.NoError(t, err)
	compOpt := options.DefaultCompilationOptions()
	estOpt := options.DefaultEstimationOptions()
	g := buildNetwork(t, caps, &compOpt, &estOpt, shapes.TensorShape{1, 16, 16, 16})

	perf, err := compiler.EstimatePerformance(g, caps, &compOpt, &estOpt)
	require.NoError(t, err)
	require.Len(t, perf.Stream, 1)
	assert.Greater(t, perf.Metric, 0.0)
	assert.Equal(t, []uint32{1}, perf.Stream[0].OperationIds)
}

func TestCompileDeterministic(t *testing.T) {
	caps := must.M1(capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 0))

	run := func() (estimation.NetworkPerformanceData, string) {
		compOpt := options.DefaultCompilationOptions()
		estOpt := options.DefaultEstimationOptions()
		g := buildNetwork(t, caps, &compOpt, &estOpt, shapes.TensorShape{1, 32, 32, 16})
		compiled, err := compiler.Compile(g, caps, &compOpt, &estOpt)
		require.NoError(t, err)
		return compiled.Estimated.ToNetworkPerformanceData(), compiled.OpGraph.String()
	}

	perf1, graph1 := run()
	perf2, graph2 := run()
	assert.Empty(t, cmp.Diff(perf1, perf2))
	assert.Equal(t, graph1, graph2)
}

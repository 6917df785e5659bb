// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

func newTestMcePart(t *testing.T, id parts.PartId, inputShape, outputShape shapes.TensorShape) *parts.McePart {
	caps := testCapabilities(t)
	compOpt, estOpt := testOptions()
	return parts.NewMcePart(id, parts.McePartParams{
		InputShape:         inputShape,
		OutputShape:        outputShape,
		KernelHeight:       1,
		KernelWidth:        1,
		InputQuantization:  opgraph.QuantizationInfo{Scale: 1},
		OutputQuantization: opgraph.QuantizationInfo{Scale: 1},
		WeightQuantization: opgraph.QuantizationInfo{Scale: 1},
		Operation:          opgraph.MceOperationConvolution,
	}, []uint32{uint32(id)}, caps, compOpt, estOpt)
}

func TestMcePartLonelyPlans(t *testing.T) {
	shape := shapes.TensorShape{1, 16, 16, 16}
	part := newTestMcePart(t, 0, shape, shape)

	plans := part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)
	// One whole-tensor plan per block config, plus a height split for the
	// two configs with 8-high blocks. No depth split at 16 channels.
	assert.Len(t, plans, 7)

	for _, plan := range plans {
		in := plan.InputBuffer(parts.PartInputSlot{0, 0})
		out := plan.OutputBuffer(parts.PartOutputSlot{0, 0})
		require.NotNil(t, in)
		require.NotNil(t, out)
		// Boundary buffers stay in SRAM; any DRAM hop is up to the glue.
		assert.NotNil(t, in.Sram())
		assert.NotNil(t, out.Sram())
		assert.False(t, plan.IsPreallocated)

		// Weights always stream from DRAM.
		assert.Equal(t, 3, len(plan.OpGraph.Ops()))
		assert.Equal(t, 5, len(plan.OpGraph.Buffers()))
	}
}

func TestMcePartPinnedBlockConfig(t *testing.T) {
	shape := shapes.TensorShape{1, 16, 16, 16}
	part := newTestMcePart(t, 0, shape, shape)

	bc := opgraph.BlockConfig{Width: 16, Height: 16}
	plans := part.GetPlans(parts.CascadeTypeLonely, bc, nil, 1)
	require.Len(t, plans, 1)
	got, ok := plans[0].BlockConfig()
	require.True(t, ok)
	assert.Equal(t, bc, got)
	require.NotNil(t, plans[0].PleOp())
	assert.Equal(t, opgraph.PleKernelPassthrough, plans[0].PleOp().Kernel)
}

func TestMcePartDepthSplitOnlyWhenLonely(t *testing.T) {
	in := shapes.TensorShape{1, 16, 16, 16}
	out := shapes.TensorShape{1, 16, 16, 32}
	part := newTestMcePart(t, 0, in, out)
	bc := opgraph.BlockConfig{Width: 16, Height: 16}

	lonely := part.GetPlans(parts.CascadeTypeLonely, bc, nil, 1)
	beginning := part.GetPlans(parts.CascadeTypeBeginning, bc, nil, 1)
	// Lonely adds the weight-streaming depth split; a cascade cannot use
	// it since the consumer needs each stripe's full depth.
	assert.Len(t, lonely, 2)
	assert.Len(t, beginning, 1)
}

func TestMcePartContinuation(t *testing.T) {
	shape := shapes.TensorShape{1, 16, 16, 16}
	part := newTestMcePart(t, 1, shape, shape)
	bc := opgraph.BlockConfig{Width: 16, Height: 16}

	sramInput := opgraph.NewSramBuffer(shape, shape, 1, opgraph.TraversalOrderXyz)
	plans := part.GetPlans(parts.CascadeTypeEnd, bc, sramInput, 1)
	require.Len(t, plans, 1)
	// The predecessor's buffer is the plan's own input.
	assert.Equal(t, opgraph.Buffer(sramInput), plans[0].InputBuffer(parts.PartInputSlot{1, 0}))

	t.Run("shape mismatch", func(t *testing.T) {
		other := opgraph.NewSramBuffer(shapes.TensorShape{1, 8, 16, 16},
			shapes.TensorShape{1, 8, 16, 16}, 1, opgraph.TraversalOrderXyz)
		assert.Nil(t, part.GetPlans(parts.CascadeTypeMiddle, bc, other, 1))
	})

	t.Run("no sram input", func(t *testing.T) {
		assert.Nil(t, part.GetPlans(parts.CascadeTypeMiddle, bc, nil, 1))
	})

	t.Run("depth split input", func(t *testing.T) {
		deep := shapes.TensorShape{1, 16, 16, 32}
		deepPart := newTestMcePart(t, 1, deep, deep)
		split := opgraph.NewSramBuffer(deep, shapes.TensorShape{1, 16, 16, 16}, 2, opgraph.TraversalOrderXyz)
		assert.Nil(t, deepPart.GetPlans(parts.CascadeTypeEnd, bc, split, 1))
	})
}

func TestMcePartActivationBounds(t *testing.T) {
	shape := shapes.TensorShape{1, 16, 16, 16}
	part := newTestMcePart(t, 0, shape, shape)

	assert.True(t, part.CanDoubleBufferWeights())
	assert.True(t, part.ApplyActivationBounds(10, 300))
	assert.Equal(t, int16(10), part.Params().LowerBound)
	assert.Equal(t, int16(255), part.Params().UpperBound)

	input := newTestInputPart(t, 1, shape)
	assert.False(t, input.CanDoubleBufferWeights())
	assert.False(t, input.ApplyActivationBounds(10, 300))
}

func TestSimplePartsAreLonelyOnly(t *testing.T) {
	caps := testCapabilities(t)
	compOpt, estOpt := testOptions()
	shape := shapes.TensorShape{1, 16, 16, 16}
	quant := opgraph.QuantizationInfo{Scale: 1}

	input := parts.NewInputPart(0, shape, opgraph.BufferFormatNhwc, quant, []uint32{0}, caps, compOpt, estOpt)
	output := parts.NewOutputPart(1, shape, opgraph.BufferFormatNhwc, quant, []uint32{1}, caps, compOpt, estOpt)
	reshape := parts.NewReshapePart(2, shape, shapes.TensorShape{1, 8, 32, 16}, quant, []uint32{2}, caps, compOpt, estOpt)

	for _, part := range []parts.Part{input, output, reshape} {
		for _, cascadeType := range []parts.CascadeType{
			parts.CascadeTypeBeginning, parts.CascadeTypeMiddle, parts.CascadeTypeEnd,
		} {
			assert.Nil(t, part.GetPlans(cascadeType, opgraph.BlockConfig{}, nil, 1),
				"%s must only offer lonely plans", part.DebugTag())
		}
		assert.Len(t, part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1), 1)
	}

	inPlan := input.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)[0]
	buffer := inPlan.OutputBuffer(parts.PartOutputSlot{0, 0})
	require.NotNil(t, buffer.Dram())
	assert.Equal(t, opgraph.BufferTypeInput, buffer.Dram().BufferType)

	outPlan := output.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)[0]
	buffer = outPlan.InputBuffer(parts.PartInputSlot{1, 0})
	require.NotNil(t, buffer.Dram())
	assert.Equal(t, opgraph.BufferTypeOutput, buffer.Dram().BufferType)

	// A reshape is a single DRAM buffer serving as both slots: the tensor
	// is reinterpreted, not moved.
	rePlan := reshape.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)[0]
	reIn := rePlan.InputBuffer(parts.PartInputSlot{2, 0})
	reOut := rePlan.OutputBuffer(parts.PartOutputSlot{2, 0})
	assert.Equal(t, reIn, reOut)
	require.NotNil(t, reIn.Dram())
	assert.Equal(t, opgraph.BufferTypeIntermediate, reIn.Dram().BufferType)
	assert.Equal(t, shapes.TensorShape{1, 8, 32, 16}, reIn.Base().TensorShape)
}

func TestConcatPartFormats(t *testing.T) {
	caps := testCapabilities(t)
	quant := opgraph.QuantizationInfo{Scale: 1}

	t.Run("channel concat picks nhwcb", func(t *testing.T) {
		compOpt, estOpt := testOptions()
		part := parts.NewConcatPart(0, []shapes.TensorShape{{1, 8, 8, 16}, {1, 8, 8, 16}}, 3,
			quant, []uint32{0}, caps, compOpt, estOpt)
		plans := part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)
		require.Len(t, plans, 1)
		plan := plans[0]
		assert.True(t, plan.IsPreallocated)

		out := plan.OutputBuffer(parts.PartOutputSlot{0, 0})
		require.NotNil(t, out.Dram())
		// The second input's channel offset of 16 is not deep-cell
		// aligned, and the 8-wide stripes make wide cells wasteful.
		assert.Equal(t, opgraph.BufferFormatNhwcb, out.Base().Format)
		assert.Equal(t, shapes.TensorShape{1, 8, 8, 32}, out.Base().TensorShape)

		for i := 0; i < 2; i++ {
			in := plan.InputBuffer(parts.PartInputSlot{0, uint32(i)})
			require.NotNil(t, in.Sram())
			require.NotNil(t, in.Sram().Offset)
			assert.Equal(t, uint32(0), *in.Sram().Offset)
		}
	})

	t.Run("unalignable channel concat has no plans", func(t *testing.T) {
		compOpt, estOpt := testOptions()
		part := parts.NewConcatPart(0, []shapes.TensorShape{{1, 8, 8, 8}, {1, 8, 8, 8}}, 3,
			quant, []uint32{0}, caps, compOpt, estOpt)
		assert.Nil(t, part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1))
	})

	t.Run("width concat compresses", func(t *testing.T) {
		compOpt, estOpt := testOptions()
		part := parts.NewConcatPart(0, []shapes.TensorShape{{1, 8, 8, 16}, {1, 8, 8, 16}}, 2,
			quant, []uint32{0}, caps, compOpt, estOpt)
		plans := part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)
		require.Len(t, plans, 1)
		out := plans[0].OutputBuffer(parts.PartOutputSlot{0, 0})
		assert.Equal(t, opgraph.BufferFormatFcafDeep, out.Base().Format)

		compOpt.EnableIntermediateCompression = false
		plans = part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, 1)
		require.Len(t, plans, 1)
		out = plans[0].OutputBuffer(parts.PartOutputSlot{0, 0})
		assert.Equal(t, opgraph.BufferFormatNhwcb, out.Base().Format)
	})

	t.Run("invalid construction panics", func(t *testing.T) {
		compOpt, estOpt := testOptions()
		assert.Panics(t, func() {
			parts.NewConcatPart(0, []shapes.TensorShape{{1, 8, 8, 16}}, 0,
				quant, []uint32{0}, caps, compOpt, estOpt)
		})
		assert.Panics(t, func() {
			parts.NewConcatPart(0, []shapes.TensorShape{{1, 8, 8, 16}, {1, 16, 8, 16}}, 3,
				quant, []uint32{0}, caps, compOpt, estOpt)
		})
	})
}

func TestCreateStripe(t *testing.T) {
	brick := shapes.BrickGroupShape
	assert.Equal(t, shapes.TensorShape{1, 24, 16, 16},
		parts.CreateStripe(shapes.TensorShape{1, 17, 16, 16}, shapes.TensorShape{1, 17, 16, 16}, brick))
	// The stripe never exceeds the rounded-up tensor.
	assert.Equal(t, shapes.TensorShape{1, 16, 16, 16},
		parts.CreateStripe(shapes.TensorShape{1, 16, 16, 16}, shapes.TensorShape{1, 32, 32, 32}, brick))
	// Zero dimensions are treated as one before rounding.
	assert.Equal(t, shapes.TensorShape{1, 8, 8, 16},
		parts.CreateStripe(shapes.TensorShape{1, 16, 16, 16}, shapes.TensorShape{}, brick))
}

func TestMakeGlueIntermediateSramBuffer(t *testing.T) {
	caps := testCapabilities(t)
	quant := opgraph.QuantizationInfo{Scale: 1}

	t.Run("small tensor stages whole", func(t *testing.T) {
		shape := shapes.TensorShape{1, 16, 16, 16}
		b := parts.MakeGlueIntermediateSramBuffer(shape, quant,
			[]opgraph.BufferFormat{opgraph.BufferFormatNhwcb}, caps)
		assert.Equal(t, shape, b.StripeShape)
		assert.Equal(t, uint32(1), b.NumStripes)
		require.NotNil(t, b.Offset)
		assert.Equal(t, uint32(0), *b.Offset)
	})

	t.Run("linear format keeps full channels", func(t *testing.T) {
		shape := shapes.TensorShape{1, 480, 480, 64}
		b := parts.MakeGlueIntermediateSramBuffer(shape, quant,
			[]opgraph.BufferFormat{opgraph.BufferFormatNhwc}, caps)
		assert.Equal(t, shape.Channels(), b.StripeShape.Channels())
		assert.LessOrEqual(t, shapes.TotalSizeBytesNHWCB(b.StripeShape), caps.TotalSramSize())
	})
}

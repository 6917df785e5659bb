// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

func sramWithStripe(shape, stripe shapes.TensorShape) *opgraph.SramBuffer {
	numStripes := shapes.GetNumStripesTotal(shape, stripe)
	return opgraph.NewSramBuffer(shape, stripe, numStripes, opgraph.TraversalOrderXyz)
}

func TestIsSramBufferCompatibleWithDramFormat(t *testing.T) {
	zero := shapes.TensorShape{0, 0, 0, 0}
	full := sramWithStripe(shapes.TensorShape{1, 16, 16, 16}, shapes.TensorShape{1, 16, 16, 16})

	tests := []struct {
		name   string
		sram   *opgraph.SramBuffer
		format opgraph.BufferFormat
		offset shapes.TensorShape
		want   bool
	}{
		{"full tensor nhwc", full, opgraph.BufferFormatNhwc, zero, true},
		{"full tensor nhwcb", full, opgraph.BufferFormatNhwcb, zero, true},
		{"full tensor fcaf deep", full, opgraph.BufferFormatFcafDeep, zero, true},
		{"full tensor fcaf wide", full, opgraph.BufferFormatFcafWide, zero, true},
		{"weight format never a dma target", full, opgraph.BufferFormatWeight, zero, false},
		{
			"nhwc depth split",
			sramWithStripe(shapes.TensorShape{1, 16, 16, 32}, shapes.TensorShape{1, 16, 16, 16}),
			opgraph.BufferFormatNhwc, zero, false,
		},
		{
			"nhwc depth split on width-1 tensor",
			sramWithStripe(shapes.TensorShape{1, 16, 1, 32}, shapes.TensorShape{1, 16, 1, 16}),
			opgraph.BufferFormatNhwc, zero, true,
		},
		{
			"nhwc channel offset",
			full, opgraph.BufferFormatNhwc, shapes.TensorShape{0, 0, 0, 16}, false,
		},
		{
			"nhwcb brick group offset",
			full, opgraph.BufferFormatNhwcb, shapes.TensorShape{0, 8, 8, 16}, true,
		},
		{
			"nhwcb unaligned offset",
			full, opgraph.BufferFormatNhwcb, shapes.TensorShape{0, 4, 0, 0}, false,
		},
		{
			"fcaf deep split not cell aligned",
			sramWithStripe(shapes.TensorShape{1, 16, 16, 48}, shapes.TensorShape{1, 16, 16, 16}),
			opgraph.BufferFormatFcafDeep, zero, false,
		},
		{
			"fcaf deep cell aligned split",
			sramWithStripe(shapes.TensorShape{1, 16, 16, 64}, shapes.TensorShape{1, 16, 16, 32}),
			opgraph.BufferFormatFcafDeep, zero, true,
		},
		{
			"fcaf wide width split not cell aligned",
			sramWithStripe(shapes.TensorShape{1, 16, 32, 16}, shapes.TensorShape{1, 16, 8, 16}),
			opgraph.BufferFormatFcafWide, zero, false,
		},
		{
			"fcaf wide offset must be cell aligned",
			full, opgraph.BufferFormatFcafWide, shapes.TensorShape{0, 8, 8, 0}, false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := opgraph.IsSramBufferCompatibleWithDramFormat(test.sram, test.format, test.offset)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestIsSramBufferCompatibleWithDramFormatPackedBoundary(t *testing.T) {
	b := sramWithStripe(shapes.TensorShape{1, 32, 16, 16}, shapes.TensorShape{1, 16, 16, 16})
	b.PackedBoundary = opgraph.PackedBoundaryThickness{Top: 8}
	zero := shapes.TensorShape{0, 0, 0, 0}

	assert.False(t, opgraph.IsSramBufferCompatibleWithDramFormat(b, opgraph.BufferFormatNhwc, zero))
	assert.True(t, opgraph.IsSramBufferCompatibleWithDramFormat(b, opgraph.BufferFormatNhwcb, zero))
	assert.True(t, opgraph.IsSramBufferCompatibleWithDramFormat(b, opgraph.BufferFormatFcafDeep, zero))
}

func TestIsSramBufferCompatibleWithDramFormatForbidFcafWide(t *testing.T) {
	b := sramWithStripe(shapes.TensorShape{1, 16, 16, 16}, shapes.TensorShape{1, 16, 16, 16})
	b.ForbidFcafWide = true
	zero := shapes.TensorShape{0, 0, 0, 0}

	assert.False(t, opgraph.IsSramBufferCompatibleWithDramFormat(b, opgraph.BufferFormatFcafWide, zero))
	assert.True(t, opgraph.IsSramBufferCompatibleWithDramFormat(b, opgraph.BufferFormatFcafDeep, zero))
}

func TestGetBestDramBufferFormat(t *testing.T) {
	compressedOpts := options.DefaultCompilationOptions()
	uncompressedOpts := options.DefaultCompilationOptions()
	uncompressedOpts.EnableIntermediateCompression = false
	compressed := &compressedOpts
	uncompressed := &uncompressedOpts

	full := sramWithStripe(shapes.TensorShape{1, 16, 16, 16}, shapes.TensorShape{1, 16, 16, 16})
	zero := shapes.TensorShape{0, 0, 0, 0}

	assert.Equal(t, opgraph.BufferFormatFcafDeep,
		opgraph.GetBestDramBufferFormat([]opgraph.SramBufferWithOffset{{full, zero}}, compressed))
	assert.Equal(t, opgraph.BufferFormatNhwcb,
		opgraph.GetBestDramBufferFormat([]opgraph.SramBufferWithOffset{{full, zero}}, uncompressed))

	// Deep cells don't fit a depth split of 16, wide cells do.
	depthSplit := sramWithStripe(shapes.TensorShape{1, 8, 16, 32}, shapes.TensorShape{1, 8, 16, 16})
	assert.Equal(t, opgraph.BufferFormatFcafWide,
		opgraph.GetBestDramBufferFormat([]opgraph.SramBufferWithOffset{{depthSplit, zero}}, compressed))

	// A brick-group-unaligned offset rules out every block layout.
	assert.Equal(t, opgraph.BufferFormatNhwc,
		opgraph.GetBestDramBufferFormat([]opgraph.SramBufferWithOffset{
			{full, shapes.TensorShape{0, 4, 0, 0}},
		}, compressed))

	// The format must suit every transfer, not just the first. widthSplit
	// rules out wide cells and depthSplit rules out deep ones.
	widthSplit := sramWithStripe(shapes.TensorShape{1, 16, 32, 16}, shapes.TensorShape{1, 16, 8, 16})
	assert.Equal(t, opgraph.BufferFormatNhwcb,
		opgraph.GetBestDramBufferFormat([]opgraph.SramBufferWithOffset{
			{widthSplit, zero},
			{depthSplit, zero},
		}, compressed))
}

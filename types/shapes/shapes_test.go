// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package shapes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

func TestRoundingHelpers(t *testing.T) {
	assert.Equal(t, uint32(1), shapes.DivRoundUp(uint32(1), uint32(8)))
	assert.Equal(t, uint32(1), shapes.DivRoundUp(uint32(8), uint32(8)))
	assert.Equal(t, uint32(2), shapes.DivRoundUp(uint32(9), uint32(8)))

	assert.Equal(t, uint32(8), shapes.RoundUpToMultiple(uint32(1), uint32(8)))
	assert.Equal(t, uint32(8), shapes.RoundUpToMultiple(uint32(8), uint32(8)))
	assert.Equal(t, uint32(16), shapes.RoundUpToMultiple(uint32(9), uint32(8)))

	assert.Equal(t, uint32(1), shapes.RoundDownToPow2(1))
	assert.Equal(t, uint32(4), shapes.RoundDownToPow2(7))
	assert.Equal(t, uint32(8), shapes.RoundDownToPow2(8))
	assert.Equal(t, uint32(64), shapes.RoundDownToPow2(100))
}

func TestTensorShapeAccessors(t *testing.T) {
	s := shapes.TensorShape{1, 2, 3, 4}
	assert.Equal(t, uint32(1), s.Batch())
	assert.Equal(t, uint32(2), s.Height())
	assert.Equal(t, uint32(3), s.Width())
	assert.Equal(t, uint32(4), s.Channels())
	assert.Equal(t, uint32(24), s.NumElements())
	assert.Equal(t, "[1, 2, 3, 4]", s.String())
}

func TestTotalSizeBytes(t *testing.T) {
	tests := []struct {
		name  string
		shape shapes.TensorShape
		nhwc  uint32
		nhwcb uint32
	}{
		{"whole brick groups", shapes.TensorShape{1, 16, 16, 16}, 4096, 4096},
		{"partial height", shapes.TensorShape{1, 9, 8, 16}, 1152, 2048},
		{"partial channels", shapes.TensorShape{1, 8, 8, 3}, 192, 1024},
		{"single element", shapes.TensorShape{1, 1, 1, 1}, 1, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.nhwc, shapes.TotalSizeBytes(tt.shape))
			assert.Equal(t, tt.nhwcb, shapes.TotalSizeBytesNHWCB(tt.shape))
		})
	}
}

func TestTotalSizeBytesFCAF(t *testing.T) {
	// Worst case FCAF never expands beyond whole cells.
	shape := shapes.TensorShape{1, 8, 8, 16}
	assert.Equal(t, uint32(8*8*32), shapes.TotalSizeBytesFCAF(shape, shapes.FcafDeepCellShape))
	assert.Equal(t, uint32(8*16*16), shapes.TotalSizeBytesFCAF(shape, shapes.FcafWideCellShape))
}

func TestGetNumStripes(t *testing.T) {
	tensor := shapes.TensorShape{1, 32, 16, 48}
	stripe := shapes.TensorShape{1, 8, 16, 16}
	require.Equal(t, uint32(12), shapes.GetNumStripesTotal(tensor, stripe))
	assert.Equal(t, uint32(4), shapes.GetNumStripesH(tensor, stripe))
	assert.Equal(t, uint32(1), shapes.GetNumStripesW(tensor, stripe))
	assert.Equal(t, uint32(3), shapes.GetNumStripesC(tensor, stripe))

	assert.True(t, shapes.IsFullTensor(tensor, tensor))
	assert.False(t, shapes.IsFullTensor(tensor, stripe))
}

func TestSplitsTensor(t *testing.T) {
	tensor := shapes.TensorShape{1, 17, 16, 16}
	// Height 17 rounds up to 24, so a 16-high stripe still splits it.
	assert.True(t, shapes.SplitsTensor(tensor, shapes.TensorShape{1, 16, 16, 16}, 1))
	assert.False(t, shapes.SplitsTensor(tensor, shapes.TensorShape{1, 24, 16, 16}, 1))
	assert.False(t, shapes.SplitsTensor(tensor, shapes.TensorShape{1, 24, 16, 8}, 2))
}

func TestRoundUpHeightAndWidthToBrickGroup(t *testing.T) {
	got := shapes.RoundUpHeightAndWidthToBrickGroup(shapes.TensorShape{1, 9, 17, 3})
	assert.Equal(t, shapes.TensorShape{1, 16, 24, 3}, got)
}

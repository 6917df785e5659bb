// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package shapes defines the 4-dimensional NHWC tensor shapes used throughout
// the compiler, along with the integer arithmetic helpers needed to reason
// about them: rounding to hardware block sizes, splitting shapes into stripes
// and computing the storage footprint of the various buffer layouts.
//
// A TensorShape is always batch x height x width x channels. The hardware
// operates on fixed-size blocks of elements, the most important of which are:
//
//   - Patch: 1x4x4x1, the atom of the MCE and PLE datapaths.
//   - BrickGroup: 1x8x8x16, the unit of the NHWCB interleaved layout.
//   - FCAF cells: 1x8x8x32 (deep) and 1x8x16x16 (wide), the units of the
//     two lossless compression schemes.
package shapes

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// TensorShape holds the dimensions of a tensor or of a stripe through a
// tensor, in NHWC order.
type TensorShape [4]uint32

// Hardware block shapes. These are properties of the architecture and are the
// same for every hardware variant.
var (
	BrickGroupShape   = TensorShape{1, 8, 8, 16}
	PatchShape        = TensorShape{1, 4, 4, 1}
	FcafDeepCellShape = TensorShape{1, 8, 8, 32}
	FcafWideCellShape = TensorShape{1, 8, 16, 16}
)

func (s TensorShape) Batch() uint32    { return s[0] }
func (s TensorShape) Height() uint32   { return s[1] }
func (s TensorShape) Width() uint32    { return s[2] }
func (s TensorShape) Channels() uint32 { return s[3] }

// NumElements returns the number of elements in the shape.
func (s TensorShape) NumElements() uint32 {
	return s[0] * s[1] * s[2] * s[3]
}

func (s TensorShape) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", s[0], s[1], s[2], s[3])
}

// DivRoundUp returns numerator/denominator rounded up to the nearest integer.
func DivRoundUp[T constraints.Unsigned](numerator, denominator T) T {
	return (numerator + denominator - 1) / denominator
}

// RoundUpToMultiple rounds value up to the nearest multiple of m.
func RoundUpToMultiple[T constraints.Unsigned](value, m T) T {
	return DivRoundUp(value, m) * m
}

// RoundDownToPow2 returns the largest power of two that is <= value.
// value must be non-zero.
func RoundDownToPow2(value uint32) uint32 {
	result := uint32(1)
	for result*2 <= value {
		result *= 2
	}
	return result
}

// Min and Max are the usual two-argument helpers, kept because they read
// better than the builtins when nested inside shape arithmetic.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// RoundUpHeightAndWidthToBrickGroup rounds the height and width of shape up
// to the brick group size, leaving batch and channels untouched.
func RoundUpHeightAndWidthToBrickGroup(shape TensorShape) TensorShape {
	return TensorShape{
		shape[0],
		RoundUpToMultiple(shape[1], BrickGroupShape[1]),
		RoundUpToMultiple(shape[2], BrickGroupShape[2]),
		shape[3],
	}
}

// TotalSizeBytes returns the storage footprint of shape in the dense NHWC
// layout, assuming one byte per element.
func TotalSizeBytes(shape TensorShape) uint32 {
	return shape.NumElements()
}

// TotalSizeBytesNHWCB returns the storage footprint of shape in the NHWCB
// interleaved layout, where data is stored in full brick groups.
func TotalSizeBytesNHWCB(shape TensorShape) uint32 {
	rounded := TensorShape{
		shape[0],
		RoundUpToMultiple(shape[1], BrickGroupShape[1]),
		RoundUpToMultiple(shape[2], BrickGroupShape[2]),
		RoundUpToMultiple(shape[3], BrickGroupShape[3]),
	}
	return rounded.NumElements()
}

// TotalSizeBytesFCAF returns the worst-case storage footprint of shape when
// compressed with the FCAF scheme using the given cell shape. FCAF never
// expands data beyond whole cells.
func TotalSizeBytesFCAF(shape TensorShape, cellShape TensorShape) uint32 {
	rounded := TensorShape{
		shape[0],
		RoundUpToMultiple(shape[1], cellShape[1]),
		RoundUpToMultiple(shape[2], cellShape[2]),
		RoundUpToMultiple(shape[3], cellShape[3]),
	}
	return rounded.NumElements()
}

// GetNumStripesTotal returns how many stripes of stripeShape are needed to
// cover tensorShape, across all four dimensions.
func GetNumStripesTotal(tensorShape, stripeShape TensorShape) uint32 {
	total := uint32(1)
	for i := range tensorShape {
		total *= DivRoundUp(tensorShape[i], stripeShape[i])
	}
	return total
}

// GetNumStripesH returns the number of stripes along the height dimension.
func GetNumStripesH(tensorShape, stripeShape TensorShape) uint32 {
	return DivRoundUp(tensorShape[1], stripeShape[1])
}

// GetNumStripesW returns the number of stripes along the width dimension.
func GetNumStripesW(tensorShape, stripeShape TensorShape) uint32 {
	return DivRoundUp(tensorShape[2], stripeShape[2])
}

// GetNumStripesC returns the number of stripes along the channel dimension.
func GetNumStripesC(tensorShape, stripeShape TensorShape) uint32 {
	return DivRoundUp(tensorShape[3], stripeShape[3])
}

// IsFullTensor reports whether stripeShape covers tensorShape in a single
// stripe.
func IsFullTensor(tensorShape, stripeShape TensorShape) bool {
	return GetNumStripesTotal(tensorShape, stripeShape) == 1
}

// SplitsTensor reports whether stripeShape splits tensorShape along the given
// dimension index.
func SplitsTensor(tensorShape, stripeShape TensorShape, dim int) bool {
	return stripeShape[dim] < RoundUpToMultiple(tensorShape[dim], BrickGroupShape[dim])
}

// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package opgraph

import (
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// IsSramBufferCompatibleWithDramFormat reports whether the DMA can transfer
// between sram and a DRAM buffer of the given format, with the SRAM data
// positioned at dramOffset within the DRAM tensor.
//
// The rules come from what the DMA engine can address:
//
//   - Packed boundary data interleaves extra rows and columns into each slot,
//     which only the block-based layouts can describe.
//   - The linear layouts cannot gather a channel sub-range of a row in one
//     transfer, so a stripe that splits depth must be a single element wide.
//   - The compressed layouts transfer whole cells, so any split dimension and
//     any offset must be cell-aligned.
func IsSramBufferCompatibleWithDramFormat(sram *SramBuffer, format BufferFormat, dramOffset shapes.TensorShape) bool {
	tensorShape := sram.TensorShape

	// The offset must be aligned to the granularity the format can address.
	var requiredMultiple shapes.TensorShape
	switch format {
	case BufferFormatNhwc, BufferFormatNchw:
		// An offset in channels cannot be addressed in a linear layout,
		// except for width-1 tensors where the firmware handles it.
		channelMultiple := uint32(0xffffffff)
		if tensorShape.Width() == 1 {
			channelMultiple = 1
		}
		requiredMultiple = shapes.TensorShape{1, 1, 1, channelMultiple}
	case BufferFormatNhwcb:
		requiredMultiple = shapes.BrickGroupShape
	case BufferFormatFcafDeep:
		requiredMultiple = shapes.FcafDeepCellShape
	case BufferFormatFcafWide:
		requiredMultiple = shapes.FcafWideCellShape
	default:
		return false
	}
	for dim := 1; dim <= 3; dim++ {
		if dramOffset[dim]%requiredMultiple[dim] != 0 {
			return false
		}
	}

	// NHWC cannot split depth except for width-1 tensors, same reason as the
	// offset rule above.
	if format == BufferFormatNhwc &&
		sram.StripeShape.Channels() < tensorShape.Channels() && tensorShape.Width() > 1 {
		return false
	}

	// FCAF transfers whole cells, so a dimension that is split must be split
	// at a cell boundary.
	if format == BufferFormatFcafDeep || format == BufferFormatFcafWide {
		cell := shapes.FcafDeepCellShape
		if format == BufferFormatFcafWide {
			cell = shapes.FcafWideCellShape
		}
		for dim := 1; dim <= 3; dim++ {
			if sram.StripeShape[dim] < tensorShape[dim] && sram.StripeShape[dim]%cell[dim] != 0 {
				return false
			}
		}
	}

	// Packed boundary data only works with the block-based layouts.
	if sram.PackedBoundary.AnyNonZero() &&
		format != BufferFormatNhwcb && format != BufferFormatFcafDeep && format != BufferFormatFcafWide {
		return false
	}

	if sram.ForbidFcafWide && format == BufferFormatFcafWide {
		return false
	}

	return true
}

// SramBufferWithOffset pairs an SRAM buffer with its position in a larger
// DRAM tensor, for choosing a DRAM format shared by several transfers.
type SramBufferWithOffset struct {
	Buffer *SramBuffer
	Offset shapes.TensorShape
}

// GetBestDramBufferFormat picks the format for a DRAM buffer that all the
// given SRAM buffers will be DMA'd to or from. Preference order is the
// compressed layouts (least bandwidth), then the uncompressed block layout,
// then linear NHWC which is always valid. The choice depends only on the
// buffers' shapes and offsets, so it is deterministic.
func GetBestDramBufferFormat(buffers []SramBufferWithOffset, opts *options.CompilationOptions) BufferFormat {
	candidates := []BufferFormat{BufferFormatNhwcb}
	if opts.EnableIntermediateCompression {
		candidates = []BufferFormat{BufferFormatFcafDeep, BufferFormatFcafWide, BufferFormatNhwcb}
	}
	for _, format := range candidates {
		allCompatible := true
		for _, b := range buffers {
			if !IsSramBufferCompatibleWithDramFormat(b.Buffer, format, b.Offset) {
				allCompatible = false
				break
			}
		}
		if allCompatible {
			return format
		}
	}
	return BufferFormatNhwc
}

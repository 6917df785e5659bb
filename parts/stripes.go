// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package parts

import (
	"github.com/gomlx/exceptions"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// NumStripes is an inclusive range of tile depths (stripes resident at once)
// to consider for one buffer.
type NumStripes struct {
	Min uint32
	Max uint32
}

// CreateStripe rounds stripeShape up to multiples of granule and clamps it
// to the tensor rounded up the same way, so the stripe never describes more
// data than exists.
func CreateStripe(tensorShape, stripeShape, granule shapes.TensorShape) shapes.TensorShape {
	var result shapes.TensorShape
	result[0] = 1
	for dim := 1; dim <= 3; dim++ {
		rounded := shapes.RoundUpToMultiple(shapes.Max(stripeShape[dim], 1), granule[dim])
		maxDim := shapes.RoundUpToMultiple(tensorShape[dim], granule[dim])
		result[dim] = shapes.Min(rounded, maxDim)
	}
	return result
}

// stripeSizeCandidates returns candidate stripe sizes for one dimension:
// power-of-two multiples of base between the two multipliers. When
// includeFull is set the size covering the whole dimension is included as
// the final candidate.
func stripeSizeCandidates(tensorDim, base, minMultiplier, maxMultiplier uint32, includeFull bool) []uint32 {
	full := shapes.RoundUpToMultiple(shapes.Max(tensorDim, 1), base)
	var result []uint32
	for m := shapes.Max(minMultiplier, 1); m <= maxMultiplier; m *= 2 {
		v := m * base
		if v >= full {
			if includeFull {
				result = append(result, full)
			}
			return result
		}
		result = append(result, v)
	}
	return result
}

// MakeGlueIntermediateSramBuffer builds the SRAM staging buffer used when
// copying between two DRAM buffers. The stripe shape is the highest-scoring
// one that fits in SRAM: bigger is better (less per-stripe overhead), and
// full-channel then full-width stripes are preferred since they transfer
// more efficiently. The buffer is pinned at offset zero; nothing else is
// resident while a DRAM to DRAM copy runs.
func MakeGlueIntermediateSramBuffer(shape shapes.TensorShape, quantization opgraph.QuantizationInfo,
	compatibleDramFormats []opgraph.BufferFormat, caps *capabilities.Capabilities) *opgraph.SramBuffer {

	// The minimum stripe shape is the coarsest block any of the DRAM
	// formats needs. The block sizes are all multiples of each other so a
	// plain max works per dimension.
	base := shapes.BrickGroupShape
	for _, format := range compatibleDramFormats {
		minStripe := shapes.BrickGroupShape
		switch format {
		case opgraph.BufferFormatNhwc, opgraph.BufferFormatNchw:
			// Linear layouts cannot split depth (except width-1 tensors),
			// so the stripe must cover all channels.
			if shape.Width() != 1 {
				minStripe[3] = shapes.RoundUpToMultiple(shape.Channels(), shapes.BrickGroupShape[3])
			}
		case opgraph.BufferFormatNhwcb:
		case opgraph.BufferFormatFcafDeep:
			minStripe = shapes.FcafDeepCellShape
		case opgraph.BufferFormatFcafWide:
			minStripe = shapes.FcafWideCellShape
		default:
			exceptions.Panicf("unexpected DRAM format %v for an intermediate buffer", format)
		}
		for dim := 1; dim <= 3; dim++ {
			base[dim] = shapes.Max(base[dim], minStripe[dim])
		}
	}

	var bestStripeShape shapes.TensorShape
	var bestScore uint32
	for _, h := range stripeSizeCandidates(shape.Height(), base[1], 1, 0xffffffff, true) {
		for _, w := range stripeSizeCandidates(shape.Width(), base[2], 1, 0xffffffff, true) {
			for _, c := range stripeSizeCandidates(shape.Channels(), base[3], 1, 0xffffffff, true) {
				candidate := shapes.TensorShape{1, h, w, c}
				score := candidate.NumElements()
				if c >= shape.Channels() {
					score *= 2
					if w >= shape.Width() {
						score *= 2
					}
				}
				if shapes.TotalSizeBytesNHWCB(candidate) <= caps.TotalSramSize() && score > bestScore {
					bestScore = score
					bestStripeShape = candidate
				}
			}
		}
	}
	if bestStripeShape == (shapes.TensorShape{}) {
		exceptions.Panicf("no stripe shape for an intermediate SRAM buffer of %v fits in SRAM", shape)
	}

	buffer := opgraph.NewSramBuffer(shape, bestStripeShape, 1, opgraph.TraversalOrderXyz)
	buffer.Quantization = quantization
	offset := uint32(0)
	buffer.Offset = &offset
	return buffer
}

// forbidFcafWideForStripe decides whether a buffer with the given stripe
// width should rule out the wide compressed format. Using it would require
// rounding the stripe width up to the wide cell; when that costs more than
// 10% extra SRAM it is not worth it.
func forbidFcafWideForStripe(stripeShape shapes.TensorShape) bool {
	width := stripeShape.Width()
	if width%shapes.FcafWideCellShape[2] == 0 {
		return false
	}
	newWidth := shapes.RoundUpToMultiple(width, shapes.FcafWideCellShape[2])
	return float32(newWidth)/float32(width) >= 1.10
}

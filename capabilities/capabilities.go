// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package capabilities decodes the opaque firmware-and-hardware capabilities
// blob that describes the NPU variant being compiled for, and exposes the
// derived quantities the rest of the compiler needs (SRAM banking, engine
// counts, datapath widths).
//
// The blob is a versioned, fixed-layout little-endian struct produced by the
// firmware. Callers normally obtain one from the running device; for
// performance estimation without hardware, GetPerformanceEstimatorCapabilities
// produces a canned blob for a named variant.
package capabilities

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// Version is the capabilities struct version this package understands.
const Version = 5

// header is always the first 8 bytes of every version of the blob, so the
// version can be inspected before decoding the rest.
type header struct {
	Version uint32
	Size    uint32
}

// raw mirrors the wire layout of the version-5 capabilities struct exactly.
// Field order and widths must not change.
type raw struct {
	Header header

	CommandStreamBeginRangeMajor uint32
	CommandStreamBeginRangeMinor uint32
	CommandStreamEndRangeMajor   uint32
	CommandStreamEndRangeMinor   uint32

	TotalSramSize                uint32
	NumberOfEngines              uint32
	OgsPerEngine                 uint32
	IgsPerEngine                 uint32
	EmcPerEngine                 uint32
	MaxPleSize                   uint32
	BoundaryStripeHeight         uint32
	NumBoundarySlots             uint32
	NumCentralSlots              uint32
	BrickGroupShape              [4]uint32
	PatchShape                   [4]uint32
	MacUnitsPerOg                uint32
	AccumulatorsPerMacUnit       uint32
	TotalAccumulatorsPerOg       uint32
	NumPleLanes                  uint32
	WeightCompressionVersion     uint32
	ActivationCompressionVersion uint32
	IsNchwSupported              uint32

	AgentWindowSize                 uint32
	MaxMceStripesPerPleStripe       uint32
	MaxIfmAndWgtStripesPerPleStripe uint32
}

// Capabilities is the decoded, validated view of the blob. It is immutable
// after construction and safe for concurrent use.
type Capabilities struct {
	data raw
}

// Parse decodes and validates a capabilities blob.
func Parse(blob []byte) (*Capabilities, error) {
	var hdr header
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "capabilities blob too short for header")
	}
	var errs error
	if hdr.Version != Version {
		errs = multierr.Append(errs,
			errors.Errorf("unsupported capabilities version %d (want %d)", hdr.Version, Version))
	}
	if int(hdr.Size) != binary.Size(raw{}) {
		errs = multierr.Append(errs,
			errors.Errorf("capabilities size field %d does not match expected struct size %d",
				hdr.Size, binary.Size(raw{})))
	}
	if errs != nil {
		return nil, errs
	}
	var data raw
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &data); err != nil {
		return nil, errors.Wrap(err, "decoding capabilities blob")
	}
	c := &Capabilities{data: data}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Capabilities) validate() error {
	var errs error
	check := func(cond bool, format string, args ...any) {
		if !cond {
			errs = multierr.Append(errs, errors.Errorf(format, args...))
		}
	}
	check(c.data.NumberOfEngines > 0, "NumberOfEngines must be non-zero")
	check(c.data.EmcPerEngine > 0, "EmcPerEngine must be non-zero")
	check(c.data.OgsPerEngine > 0, "OgsPerEngine must be non-zero")
	check(c.data.IgsPerEngine > 0, "IgsPerEngine must be non-zero")
	check(c.data.TotalSramSize > 0, "TotalSramSize must be non-zero")
	check(c.data.BrickGroupShape == [4]uint32(shapes.BrickGroupShape),
		"unexpected brick group shape %v", c.data.BrickGroupShape)
	check(c.data.PatchShape == [4]uint32(shapes.PatchShape),
		"unexpected patch shape %v", c.data.PatchShape)
	if c.data.TotalSramSize > 0 && c.data.NumberOfEngines > 0 && c.data.EmcPerEngine > 0 {
		check(c.data.TotalSramSize%(c.data.NumberOfEngines*c.data.EmcPerEngine) == 0,
			"TotalSramSize %d not divisible by the number of SRAM banks %d",
			c.data.TotalSramSize, c.data.NumberOfEngines*c.data.EmcPerEngine)
	}
	return errs
}

// Serialize encodes the capabilities back into the wire format.
func (c *Capabilities) Serialize() []byte {
	var buf bytes.Buffer
	// Encoding a fixed-size struct of uint32s cannot fail.
	_ = binary.Write(&buf, binary.LittleEndian, &c.data)
	return buf.Bytes()
}

// TotalSramSize returns the total SRAM across all banks, in bytes.
func (c *Capabilities) TotalSramSize() uint32 { return c.data.TotalSramSize }

// NumberOfEngines returns the number of compute engines.
func (c *Capabilities) NumberOfEngines() uint32 { return c.data.NumberOfEngines }

// NumberOfSrams returns the number of SRAM banks. Buffers in SRAM are
// striped across all banks, so per-bank sizes are the total divided by this.
func (c *Capabilities) NumberOfSrams() uint32 {
	return c.data.NumberOfEngines * c.data.EmcPerEngine
}

// SramsPerEngine returns the number of SRAM banks attached to each engine.
func (c *Capabilities) SramsPerEngine() uint32 { return c.data.EmcPerEngine }

// NumberOfOgs returns the total number of output generators across engines.
func (c *Capabilities) NumberOfOgs() uint32 {
	return c.data.NumberOfEngines * c.data.OgsPerEngine
}

// OgsPerEngine returns the output generators per engine.
func (c *Capabilities) OgsPerEngine() uint32 { return c.data.OgsPerEngine }

// IgsPerEngine returns the input generators per engine.
func (c *Capabilities) IgsPerEngine() uint32 { return c.data.IgsPerEngine }

// NumberOfIgs returns the total number of input generators across engines.
func (c *Capabilities) NumberOfIgs() uint32 {
	return c.data.NumberOfEngines * c.data.IgsPerEngine
}

// MaxPleSize returns the size of each PLE's code and scratch memory in words.
func (c *Capabilities) MaxPleSize() uint32 { return c.data.MaxPleSize }

// BoundaryStripeHeight returns the height of boundary data slots in SRAM.
func (c *Capabilities) BoundaryStripeHeight() uint32 { return c.data.BoundaryStripeHeight }

// NumBoundarySlots returns the number of boundary data slots.
func (c *Capabilities) NumBoundarySlots() uint32 { return c.data.NumBoundarySlots }

// NumCentralSlots returns the number of central data slots.
func (c *Capabilities) NumCentralSlots() uint32 { return c.data.NumCentralSlots }

// BrickGroupShape returns the brick group block shape of the NHWCB layout.
func (c *Capabilities) BrickGroupShape() shapes.TensorShape {
	return shapes.TensorShape(c.data.BrickGroupShape)
}

// PatchShape returns the patch block shape of the datapaths.
func (c *Capabilities) PatchShape() shapes.TensorShape {
	return shapes.TensorShape(c.data.PatchShape)
}

// MacUnitsPerOg returns the MAC units feeding each output generator.
func (c *Capabilities) MacUnitsPerOg() uint32 { return c.data.MacUnitsPerOg }

// TotalAccumulatorsPerOg returns the accumulators available per output
// generator, which bounds the output stripe depth the MCE can produce.
func (c *Capabilities) TotalAccumulatorsPerOg() uint32 { return c.data.TotalAccumulatorsPerOg }

// NumPleLanes returns the number of vector lanes in each PLE.
func (c *Capabilities) NumPleLanes() uint32 { return c.data.NumPleLanes }

// Winograd datapath parameters. These are architectural constants rather
// than per-variant capabilities.
func (c *Capabilities) MacsPerWinograd2D() uint32       { return 16 }
func (c *Capabilities) OutputSizePerWinograd2D() uint32 { return 2 }
func (c *Capabilities) MacsPerWinograd1D() uint32       { return 4 }
func (c *Capabilities) OutputSizePerWinograd1D() uint32 { return 1 }
func (c *Capabilities) WideKernelSize() uint32          { return 3 }

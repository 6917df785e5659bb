// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"github.com/pkg/errors"
)

// Variant identifies a canned NPU configuration, used when estimating
// performance without access to real hardware.
type Variant int

//go:generate go tool enumer -type=Variant -trimprefix=Variant variants.go

const (
	VariantEthosN78_1TOPS_2PLE_RATIO Variant = iota
	VariantEthosN78_1TOPS_4PLE_RATIO
	VariantEthosN78_2TOPS_2PLE_RATIO
	VariantEthosN78_2TOPS_4PLE_RATIO
	VariantEthosN78_4TOPS_2PLE_RATIO
	VariantEthosN78_4TOPS_4PLE_RATIO
	VariantEthosN78_8TOPS_2PLE_RATIO
)

// variantConfig is the part of the capabilities that differs per variant.
type variantConfig struct {
	totalSramSize   uint32
	numberOfEngines uint32
	numPleLanes     uint32
}

var variantConfigs = map[Variant]variantConfig{
	VariantEthosN78_1TOPS_2PLE_RATIO: {384 * 1024, 2, 1},
	VariantEthosN78_1TOPS_4PLE_RATIO: {384 * 1024, 2, 2},
	VariantEthosN78_2TOPS_2PLE_RATIO: {448 * 1024, 4, 1},
	VariantEthosN78_2TOPS_4PLE_RATIO: {448 * 1024, 4, 2},
	VariantEthosN78_4TOPS_2PLE_RATIO: {1024 * 1024, 8, 1},
	VariantEthosN78_4TOPS_4PLE_RATIO: {1024 * 1024, 8, 2},
	VariantEthosN78_8TOPS_2PLE_RATIO: {2048 * 1024, 16, 1},
}

// GetPerformanceEstimatorCapabilities returns capabilities describing the
// given variant. sramSizeBytes overrides the variant's default SRAM size when
// non-zero; it must be divisible by the variant's number of SRAM banks.
func GetPerformanceEstimatorCapabilities(variant Variant, sramSizeBytes uint32) (*Capabilities, error) {
	cfg, ok := variantConfigs[variant]
	if !ok {
		return nil, errors.Errorf("unknown variant %v", variant)
	}
	data := raw{
		TotalSramSize:   cfg.totalSramSize,
		NumberOfEngines: cfg.numberOfEngines,
		OgsPerEngine:    4,
		IgsPerEngine:    4,
		EmcPerEngine:    4,
		NumPleLanes:     cfg.numPleLanes,

		MaxPleSize:           4096,
		BoundaryStripeHeight: 8,
		NumBoundarySlots:     8,
		NumCentralSlots:      8,
		BrickGroupShape:      [4]uint32{1, 8, 8, 16},
		PatchShape:           [4]uint32{1, 4, 4, 1},

		MacUnitsPerOg:          2,
		AccumulatorsPerMacUnit: 64,

		WeightCompressionVersion:     1,
		ActivationCompressionVersion: 1,

		AgentWindowSize:                 0xFFFF_FFFF,
		MaxMceStripesPerPleStripe:       2,
		MaxIfmAndWgtStripesPerPleStripe: 2,
	}
	data.TotalAccumulatorsPerOg = data.MacUnitsPerOg * data.AccumulatorsPerMacUnit
	if sramSizeBytes != 0 {
		banks := data.NumberOfEngines * data.EmcPerEngine
		if sramSizeBytes%banks != 0 {
			return nil, errors.Errorf("requested SRAM size %d is not divisible by the %d SRAM banks of %s",
				sramSizeBytes, banks, variant)
		}
		data.TotalSramSize = sramSizeBytes
	}
	data.Header.Version = Version
	data.Header.Size = uint32(rawSize())
	c := &Capabilities{data: data}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func rawSize() int {
	// 33 uint32 fields.
	return 33 * 4
}

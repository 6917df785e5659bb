// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package capabilities_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

func TestVariantCapabilities(t *testing.T) {
	tests := []struct {
		variant  capabilities.Variant
		sramSize uint32
		engines  uint32
		srams    uint32
		pleLanes uint32
	}{
		{capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 384 * 1024, 2, 8, 1},
		{capabilities.VariantEthosN78_1TOPS_4PLE_RATIO, 384 * 1024, 2, 8, 2},
		{capabilities.VariantEthosN78_2TOPS_2PLE_RATIO, 448 * 1024, 4, 16, 1},
		{capabilities.VariantEthosN78_4TOPS_2PLE_RATIO, 1024 * 1024, 8, 32, 1},
		{capabilities.VariantEthosN78_8TOPS_2PLE_RATIO, 2048 * 1024, 16, 64, 1},
	}
	for _, test := range tests {
		t.Run(test.variant.String(), func(t *testing.T) {
			caps, err := capabilities.GetPerformanceEstimatorCapabilities(test.variant, 0)
			require.NoError(t, err)
			assert.Equal(t, test.sramSize, caps.TotalSramSize())
			assert.Equal(t, test.engines, caps.NumberOfEngines())
			assert.Equal(t, test.srams, caps.NumberOfSrams())
			assert.Equal(t, test.pleLanes, caps.NumPleLanes())
			assert.Equal(t, shapes.BrickGroupShape, caps.BrickGroupShape())
			assert.Equal(t, shapes.PatchShape, caps.PatchShape())
			assert.Equal(t, caps.NumberOfEngines()*caps.OgsPerEngine(), caps.NumberOfOgs())
			assert.Equal(t, caps.MacUnitsPerOg()*64, caps.TotalAccumulatorsPerOg())
		})
	}
}

func TestSramSizeOverride(t *testing.T) {
	caps, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 64*1024)
	require.NoError(t, err)
	assert.Equal(t, uint32(64*1024), caps.TotalSramSize())

	// 1TOPS_2PLE has 8 SRAM banks, so the override must divide by 8.
	_, err = capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 1001)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not divisible")
}

func TestSerializeParseRoundTrip(t *testing.T) {
	orig, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_2TOPS_4PLE_RATIO, 0)
	require.NoError(t, err)

	blob := orig.Serialize()
	require.Len(t, blob, 33*4)
	assert.Equal(t, uint32(capabilities.Version), binary.LittleEndian.Uint32(blob[0:4]))
	assert.Equal(t, uint32(len(blob)), binary.LittleEndian.Uint32(blob[4:8]))

	parsed, err := capabilities.Parse(blob)
	require.NoError(t, err)
	assert.Equal(t, orig.TotalSramSize(), parsed.TotalSramSize())
	assert.Equal(t, orig.NumberOfSrams(), parsed.NumberOfSrams())
	assert.Equal(t, orig.NumPleLanes(), parsed.NumPleLanes())
	assert.Equal(t, blob, parsed.Serialize())
}

func TestParseErrors(t *testing.T) {
	valid, err := capabilities.GetPerformanceEstimatorCapabilities(
		capabilities.VariantEthosN78_1TOPS_2PLE_RATIO, 0)
	require.NoError(t, err)
	blob := valid.Serialize()

	t.Run("too short", func(t *testing.T) {
		_, err := capabilities.Parse(blob[:4])
		require.Error(t, err)
	})

	t.Run("wrong version", func(t *testing.T) {
		bad := append([]byte(nil), blob...)
		binary.LittleEndian.PutUint32(bad[0:4], capabilities.Version+1)
		_, err := capabilities.Parse(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported capabilities version")
	})

	t.Run("wrong size field", func(t *testing.T) {
		bad := append([]byte(nil), blob...)
		binary.LittleEndian.PutUint32(bad[4:8], 12)
		_, err := capabilities.Parse(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "size field")
	})

	t.Run("invalid contents", func(t *testing.T) {
		bad := append([]byte(nil), blob...)
		// Zero out NumberOfEngines (field 7: after header and the four
		// command stream range fields).
		binary.LittleEndian.PutUint32(bad[7*4:8*4], 0)
		_, err := capabilities.Parse(bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NumberOfEngines")
	})
}

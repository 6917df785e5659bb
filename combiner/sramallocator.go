// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package combiner searches the graph of parts for the cheapest assignment
// of one plan per part, cascading adjacent parts into sections where their
// buffers fit in SRAM together and inserting glue DMA ops at the section
// boundaries.
package combiner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/types/shapes"
)

// AllocationPreference picks which end of the free space an allocation is
// placed at. Alternating between parts reduces overlap between buffers of
// consecutive parts, which lets later weight loads start earlier.
type AllocationPreference int

const (
	AllocationPreferenceStart AllocationPreference = iota
	AllocationPreferenceEnd
)

type memoryChunk struct {
	begin, end uint32
	debug      string
}

// SramAllocator hands out ranges of a fixed SRAM space. It tracks free and
// used chunks so buffers can be freed in any order as sections progress.
type SramAllocator struct {
	capacity uint32
	free     []memoryChunk
	used     []memoryChunk
}

func NewSramAllocator(capacity uint32) *SramAllocator {
	return &SramAllocator{
		capacity: capacity,
		free:     []memoryChunk{{begin: 0, end: capacity}},
	}
}

// Clone returns an independent copy, so candidate plans can allocate
// speculatively without disturbing the section being extended.
func (a *SramAllocator) Clone() *SramAllocator {
	c := &SramAllocator{capacity: a.capacity}
	c.free = append([]memoryChunk(nil), a.free...)
	c.used = append([]memoryChunk(nil), a.used...)
	return c
}

// Allocate reserves size bytes aligned to the given boundary, at the
// preferred end of the free space. Returns the offset and whether the
// allocation succeeded.
func (a *SramAllocator) Allocate(size uint32, pref AllocationPreference, debug string, alignment uint32) (uint32, bool) {
	if alignment == 0 {
		alignment = 1
	}
	size = shapes.RoundUpToMultiple(size, alignment)

	if pref == AllocationPreferenceStart {
		for i := range a.free {
			r := a.free[i]
			begin := shapes.RoundUpToMultiple(r.begin, alignment)
			if begin+size > r.end || begin+size < begin {
				continue
			}
			a.takeFromFree(i, memoryChunk{begin: begin, end: begin + size, debug: debug})
			return begin, true
		}
	} else {
		for i := len(a.free) - 1; i >= 0; i-- {
			r := a.free[i]
			if r.end < size {
				continue
			}
			begin := ((r.end - size) / alignment) * alignment
			if begin < r.begin {
				continue
			}
			a.takeFromFree(i, memoryChunk{begin: begin, end: begin + size, debug: debug})
			return begin, true
		}
	}
	return 0, false
}

// takeFromFree moves chunk out of the free range at index i onto the used
// list. Leftover space on either side of the chunk, including slivers below
// the alignment, stays on the free list.
func (a *SramAllocator) takeFromFree(i int, chunk memoryChunk) {
	r := a.free[i]
	a.used = append(a.used, chunk)
	var remainder []memoryChunk
	if r.begin < chunk.begin {
		remainder = append(remainder, memoryChunk{begin: r.begin, end: chunk.begin})
	}
	if chunk.end < r.end {
		remainder = append(remainder, memoryChunk{begin: chunk.end, end: r.end})
	}
	a.free = append(a.free[:i], append(remainder, a.free[i+1:]...)...)
}

// Free releases the chunk starting at the given offset. Returns false if no
// used chunk starts there.
func (a *SramAllocator) Free(offset uint32) bool {
	for i, chunk := range a.used {
		if chunk.begin != offset {
			continue
		}
		a.used = append(a.used[:i], a.used[i+1:]...)
		a.free = append(a.free, chunk)
		sort.Slice(a.free, func(i, j int) bool { return a.free[i].begin < a.free[j].begin })
		a.collapseRegions()
		return true
	}
	return false
}

func (a *SramAllocator) collapseRegions() {
	for i := len(a.free) - 1; i >= 1; i-- {
		if a.free[i-1].end == a.free[i].begin {
			a.free[i-1].end = a.free[i].end
			a.free = append(a.free[:i], a.free[i+1:]...)
		}
	}
}

func (a *SramAllocator) Reset() {
	a.free = []memoryChunk{{begin: 0, end: a.capacity}}
	a.used = nil
}

func (a *SramAllocator) IsFull() bool  { return len(a.free) == 0 }
func (a *SramAllocator) IsEmpty() bool { return len(a.used) == 0 }

// DumpUsage renders the current allocation state for debug logs.
func (a *SramAllocator) DumpUsage() string {
	var b strings.Builder
	b.WriteString("Sram used memory:\n")
	for _, c := range a.used {
		fmt.Fprintf(&b, "  range=%d---%d %s\n", c.begin, c.end, c.debug)
	}
	b.WriteString("Sram free memory:\n")
	for _, c := range a.free {
		fmt.Fprintf(&b, "  range=%d---%d\n", c.begin, c.end)
	}
	return b.String()
}

// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

package combiner

import (
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/estimation"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/internal/workerspool"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
)

// Weight tile depths the search considers: single buffered and double
// buffered. Double buffering is decided per section, never per part.
const (
	numWeightStripesMin uint32 = 1
	numWeightStripesMax uint32 = 2
)

const numBytesPerBeat uint32 = 16

// pleKernelKey identifies a loaded PLE kernel variant. The same kernel
// compiled for a different block size is a different program.
type pleKernelKey struct {
	Kernel      opgraph.PleKernel
	BlockConfig opgraph.BlockConfig
}

// pleResidency records a PLE kernel already loaded into SRAM for the current
// section, so later parts using the same kernel skip the load.
type pleResidency struct {
	key    pleKernelKey
	offset uint32
}

// SectionContext is the growing state of one candidate section: the
// combination built so far, the SRAM allocator state, which PLE kernels are
// resident, which buffers are allocated and who still needs them, and the
// section-wide choices (weight striping, block config).
type SectionContext struct {
	comb  Combination
	alloc *SramAllocator
	// pleOps is the kernels resident in SRAM, in load order.
	pleOps []pleResidency
	// allocatedBuffers maps each live SRAM buffer to the parts that still
	// need it. A buffer is freed when the set empties.
	allocatedBuffers         map[*opgraph.SramBuffer]map[parts.PartId]bool
	currNumWeightStripes     uint32
	hasSectionDoubleBuffered bool
	// unresolvedOutputs is the SRAM boundary buffers produced inside the
	// section that no later part of the section has consumed yet. A section
	// cannot end while any remain.
	unresolvedOutputs map[parts.Connection]opgraph.Buffer
	// blockConfig locks the whole section to the block size of its first
	// plan, keeping cascaded parts in lock-step.
	blockConfig opgraph.BlockConfig
}

func (s *SectionContext) clone() SectionContext {
	result := SectionContext{
		comb:                     s.comb.clone(),
		alloc:                    s.alloc.Clone(),
		pleOps:                   append([]pleResidency(nil), s.pleOps...),
		allocatedBuffers:         make(map[*opgraph.SramBuffer]map[parts.PartId]bool, len(s.allocatedBuffers)),
		currNumWeightStripes:     s.currNumWeightStripes,
		hasSectionDoubleBuffered: s.hasSectionDoubleBuffered,
		unresolvedOutputs:        make(map[parts.Connection]opgraph.Buffer, len(s.unresolvedOutputs)),
		blockConfig:              s.blockConfig,
	}
	for b, owners := range s.allocatedBuffers {
		ownersCopy := make(map[parts.PartId]bool, len(owners))
		for id := range owners {
			ownersCopy[id] = true
		}
		result.allocatedBuffers[b] = ownersCopy
	}
	for c, b := range s.unresolvedOutputs {
		result.unresolvedOutputs[c] = b
	}
	return result
}

// Combiner searches the space of per-part plan assignments and section
// groupings for the cheapest way to run the whole graph of parts.
type Combiner struct {
	graph   *parts.GraphOfParts
	caps    *capabilities.Capabilities
	compOpt *options.CompilationOptions
	estOpt  *options.EstimationOptions

	bestCombination Combination
	mergedOpGraph   *opgraph.OpGraph
}

// NewCombiner builds a combiner over the given graph. The graph must already
// be sorted and compacted so part ids are dense and topological.
func NewCombiner(graph *parts.GraphOfParts, caps *capabilities.Capabilities,
	compOpt *options.CompilationOptions, estOpt *options.EstimationOptions) *Combiner {
	return &Combiner{
		graph:   graph,
		caps:    caps,
		compOpt: compOpt,
		estOpt:  estOpt,
	}
}

// BestCombination returns the winning combination. Only valid after Run.
func (c *Combiner) BestCombination() Combination { return c.bestCombination }

// MergedOpGraph returns the op graph of the winning combination, with all
// plans and glue merged and redundant copies removed. Only valid after Run.
func (c *Combiner) MergedOpGraph() *opgraph.OpGraph { return c.mergedOpGraph }

// allocateSram checks that plan fits in the SRAM state of context and makes
// the allocations, assigning offsets to the plan's buffers. On failure the
// allocator state is left untouched and false is returned; offsets already
// written to the (discarded) plan don't matter.
func (c *Combiner) allocateSram(context *SectionContext, partId parts.PartId, plan *parts.Plan,
	outputBuffersOfPrevPlans []opgraph.Buffer) bool {

	// Some plans do their own SRAM allocation, where the strategy here
	// would be suboptimal for them.
	if plan.IsPreallocated {
		return true
	}

	alignment := numBytesPerBeat * c.caps.NumberOfSrams()
	localAlloc := context.alloc.Clone()

	// To let command stream generation preload weights of later layers, new
	// buffers alternate between the start and the end of the free space, to
	// minimise overlap with earlier buffers that are no longer in use.
	allocPref := AllocationPreferenceStart
	if partId%2 != 0 {
		allocPref = AllocationPreferenceEnd
	}

	newPleKernel := false
	var pleKernelOffset uint32
	var pleOp *opgraph.PleOp
	if pleOp = plan.PleOp(); pleOp != nil {
		// A kernel already loaded by a previous part of this section costs
		// nothing; reuse its offset.
		key := pleKernelKey{pleOp.Kernel, pleOp.BlockConfig}
		resident := false
		for _, r := range context.pleOps {
			if r.key == key {
				pleOp.LoadKernel = false
				offset := r.offset
				pleOp.KernelOffset = &offset
				resident = true
				break
			}
		}
		if !resident {
			newPleKernel = true
			pleOp.LoadKernel = true
			offset, ok := localAlloc.Allocate(opgraph.PleKernelSize, allocPref, pleOp.DebugTag, alignment)
			if !ok {
				return false
			}
			pleOp.KernelOffset = &offset
			pleKernelOffset = offset
		}
	}

	for _, b := range plan.OpGraph.Buffers() {
		sram := b.Sram()
		if sram == nil {
			continue
		}
		inputSlot, isInput := plan.InputSlotFor(b)
		if !isInput || len(outputBuffersOfPrevPlans) == 0 ||
			outputBuffersOfPrevPlans[inputSlot.Index] == nil {
			offset, ok := localAlloc.Allocate(sram.SizeInBytes/c.caps.NumberOfSrams(),
				allocPref, sram.DebugTag, alignment)
			if !ok {
				return false
			}
			sram.Offset = &offset
			context.allocatedBuffers[sram] = map[parts.PartId]bool{partId: true}
		} else {
			// The plan's input buffer is the previous plan's output buffer,
			// already allocated. Just copy the address.
			offset := *outputBuffersOfPrevPlans[inputSlot.Index].Sram().Offset
			sram.Offset = &offset
		}
	}

	context.alloc = localAlloc
	if newPleKernel {
		context.pleOps = append(context.pleOps,
			pleResidency{pleKernelKey{pleOp.Kernel, pleOp.BlockConfig}, pleKernelOffset})
	}
	return true
}

// deallocateUnusedBuffers frees the SRAM buffers this part was the last user
// of, and passes ownership of the rest down to the consuming parts. When all
// of the plan's output buffers hold their full tensor, nothing earlier in
// the section can still be needed, so ownership is not propagated and the
// buffers free as soon as their current owners are done.
func (c *Combiner) deallocateUnusedBuffers(partId parts.PartId, plan *parts.Plan,
	consumingPartIds []parts.PartId, context *SectionContext) {

	allOutputBuffersFullTensor := true
	isOutputBuffer := make(map[*opgraph.SramBuffer]bool)
	for _, b := range plan.OutputMappings {
		if !opgraph.IsFullTensor(b) {
			allOutputBuffersFullTensor = false
		}
		if sram := b.Sram(); sram != nil {
			isOutputBuffer[sram] = true
		}
	}

	var buffersToRemove []*opgraph.SramBuffer
	for buffer, owners := range context.allocatedBuffers {
		if !owners[partId] {
			continue
		}
		if !allOutputBuffersFullTensor || isOutputBuffer[buffer] {
			for _, consumingPartId := range consumingPartIds {
				owners[consumingPartId] = true
			}
		}
		delete(owners, partId)
		if len(owners) == 0 {
			buffersToRemove = append(buffersToRemove, buffer)
		}
	}
	for _, b := range buffersToRemove {
		delete(context.allocatedBuffers, b)
		context.alloc.Free(*b.Offset)
	}
}

// estimateCombination computes the metric of a (possibly partial)
// combination by completing its boundaries with temporary glue and running
// the estimator over the merged op graph.
func (c *Combiner) estimateCombination(comb Combination) float64 {
	withTempGlues := c.addTempGlues(comb)
	merged := GetOpGraphForCombination(withTempGlues, c.graph)
	estimated, err := estimation.EstimateOpGraph(merged, c.caps, c.estOpt)
	if err != nil {
		exceptions.Panicf("estimating combination for parts [%d, %d): %v",
			comb.FirstPartId(), comb.EndPartId(), err)
	}
	return estimated.Metric
}

// chooseBestLonelyPlan picks the cheapest single-part plan for part. Lonely
// parts have DRAM at both boundaries, so the local optimum is the global one.
func (c *Combiner) chooseBestLonelyPlan(part parts.Part) Combination {
	currNumWeightStripesMax := numWeightStripesMin
	if part.CanDoubleBufferWeights() {
		currNumWeightStripesMax = numWeightStripesMax
	}

	var candidates []Combination
	for currNumWeightStripes := numWeightStripesMin; currNumWeightStripes <= currNumWeightStripesMax; currNumWeightStripes++ {
		plans := part.GetPlans(parts.CascadeTypeLonely, opgraph.BlockConfig{}, nil, currNumWeightStripes)
		for _, plan := range plans {
			context := SectionContext{
				alloc:            NewSramAllocator(c.caps.TotalSramSize() / c.caps.NumberOfSrams()),
				allocatedBuffers: make(map[*opgraph.SramBuffer]map[parts.PartId]bool),
			}
			if !c.allocateSram(&context, part.ID(), plan, nil) {
				continue
			}
			candidates = append(candidates, NewCombination(part.ID(), plan))
		}
	}

	// Normally at least one lonely plan fits; tolerate none for pathological
	// inputs and let the caller fail with a clearer message.
	var result Combination
	bestMetric := 0.0
	for _, candidate := range candidates {
		metric := c.estimateCombination(candidate)
		if result.IsEmpty() || metric < bestMetric {
			result = candidate
			bestMetric = metric
		}
	}
	if !result.IsEmpty() {
		result.SetMetric(bestMetric)
	}
	return result
}

// startSection generates every way part can begin a section: each beginning
// plan under each weight striping choice that fits in an empty SRAM.
func (c *Combiner) startSection(part parts.Part) []SectionContext {
	var result []SectionContext

	currNumWeightStripesMax := numWeightStripesMin
	hasSectionDoubleBuffered := false
	if part.CanDoubleBufferWeights() {
		currNumWeightStripesMax = numWeightStripesMax
		hasSectionDoubleBuffered = true
	}

	var consumingParts []parts.PartId
	for _, conn := range c.graph.GetDestinationConnections(part.ID()) {
		consumingParts = append(consumingParts, conn.Destination.PartId)
	}

	for currNumWeightStripes := numWeightStripesMin; currNumWeightStripes <= currNumWeightStripesMax; currNumWeightStripes++ {
		plans := part.GetPlans(parts.CascadeTypeBeginning, opgraph.BlockConfig{}, nil, currNumWeightStripes)
		for _, plan := range plans {
			// Plans without a compute op default the section to 16x16,
			// which the rest of the section is then stuck with.
			blockConfig := opgraph.BlockConfig{Width: 16, Height: 16}
			if bc, ok := plan.BlockConfig(); ok {
				blockConfig = bc
			}
			context := SectionContext{
				alloc:                    NewSramAllocator(c.caps.TotalSramSize() / c.caps.NumberOfSrams()),
				allocatedBuffers:         make(map[*opgraph.SramBuffer]map[parts.PartId]bool),
				currNumWeightStripes:     currNumWeightStripes,
				hasSectionDoubleBuffered: hasSectionDoubleBuffered,
				unresolvedOutputs:        make(map[parts.Connection]opgraph.Buffer),
				blockConfig:              blockConfig,
			}
			if !c.allocateSram(&context, part.ID(), plan, nil) {
				continue
			}
			c.deallocateUnusedBuffers(part.ID(), plan, consumingParts, &context)

			for _, conn := range c.graph.GetDestinationConnections(part.ID()) {
				context.unresolvedOutputs[conn] = plan.OutputBuffer(conn.Source)
			}
			context.comb = NewCombination(part.ID(), plan)
			result = append(result, context)
		}
	}
	return result
}

func (c *Combiner) continueSection(part parts.Part, context *SectionContext) []SectionContext {
	return c.continueOrEndSection(false, part, context)
}

func (c *Combiner) endSection(part parts.Part, context *SectionContext) []SectionContext {
	return c.continueOrEndSection(true, part, context)
}

// continueOrEndSection generates every way part can extend the given section
// state, either as a middle part or as the part that closes the section.
func (c *Combiner) continueOrEndSection(isEnd bool, part parts.Part, context *SectionContext) []SectionContext {
	var result []SectionContext

	currNumWeightStripesMax := numWeightStripesMin
	hasSectionDoubleBuffered := false
	if !isEnd {
		if part.CanDoubleBufferWeights() && !context.hasSectionDoubleBuffered {
			currNumWeightStripesMax = numWeightStripesMax
		}
		if part.CanDoubleBufferWeights() || context.hasSectionDoubleBuffered {
			hasSectionDoubleBuffered = true
		}
	} else {
		if part.CanDoubleBufferWeights() && !context.hasSectionDoubleBuffered {
			currNumWeightStripesMax = numWeightStripesMax
		}
	}

	contextCopy := context.clone()

	// Resolve this part's inputs against the SRAM buffers the section has
	// produced so far. Parts are visited in topological order, so anything
	// missing is simply outside this section.
	sourceConnections := c.graph.GetSourceConnections(part.ID())
	sramBufferInputs := make([]opgraph.Buffer, len(sourceConnections))
	anyInputSramBuffers := false
	for _, conn := range sourceConnections {
		if buffer, ok := contextCopy.unresolvedOutputs[conn]; ok {
			sramBufferInputs[conn.Destination.Index] = buffer
			delete(contextCopy.unresolvedOutputs, conn)
			anyInputSramBuffers = true
		}
	}

	// A part not connected to the section at all cannot extend it.
	if !anyInputSramBuffers {
		return result
	}

	// A section cannot end while boundary buffers remain unconsumed; that
	// would not be the end of the section by definition.
	if isEnd && len(contextCopy.unresolvedOutputs) != 0 {
		return result
	}

	planType := parts.CascadeTypeMiddle
	if isEnd {
		planType = parts.CascadeTypeEnd
	}

	var firstSramInput *opgraph.SramBuffer
	for _, b := range sramBufferInputs {
		if b != nil {
			firstSramInput = b.Sram()
			break
		}
	}

	var consumingParts []parts.PartId
	for _, conn := range c.graph.GetDestinationConnections(part.ID()) {
		consumingParts = append(consumingParts, conn.Destination.PartId)
	}

	for currNumWeightStripes := numWeightStripesMin; currNumWeightStripes <= currNumWeightStripesMax; currNumWeightStripes++ {
		// Once a section has committed to double buffering, every later
		// part plans with the same number of weight stripes. Otherwise each
		// striping choice gets its own set of plans.
		numWeightStripes := currNumWeightStripes
		if context.hasSectionDoubleBuffered {
			numWeightStripes = context.currNumWeightStripes
		}
		plans := part.GetPlans(planType, context.blockConfig, firstSramInput, numWeightStripes)

		if planType == parts.CascadeTypeMiddle && len(plans) > 1 {
			exceptions.Panicf("part %q generated %d middle plans; more than one leads to a combinatorial explosion",
				part.DebugTag(), len(plans))
		}

		for _, plan := range plans {
			tempContext := contextCopy.clone()
			tempContext.hasSectionDoubleBuffered = hasSectionDoubleBuffered
			tempContext.currNumWeightStripes = numWeightStripes

			if !c.allocateSram(&tempContext, part.ID(), plan, sramBufferInputs) {
				continue
			}
			c.deallocateUnusedBuffers(part.ID(), plan, consumingParts, &tempContext)

			if !isEnd {
				for _, conn := range c.graph.GetDestinationConnections(part.ID()) {
					tempContext.unresolvedOutputs[conn] = plan.OutputBuffer(conn.Source)
				}
			}

			tempContext.comb = context.comb.Merge(NewCombination(part.ID(), plan))

			// Cascaded inputs get empty glue: the plan's input buffer is
			// simply replaced by the producing plan's output buffer.
			for _, conn := range sourceConnections {
				if sramBufferInputs[conn.Destination.Index] == nil {
					continue
				}
				startingGlue := NewStartingGlue()
				startingGlue.ExternalConnections.ReplacementBuffers = append(
					startingGlue.ExternalConnections.ReplacementBuffers,
					BufferReplacement{plan.InputBuffer(conn.Destination), sramBufferInputs[conn.Destination.Index]})
				tempContext.comb.SetStartingGlue(startingGlue, conn.Destination)
				// Several parts can share the same source (a branch); the
				// empty ending glue is only added once.
				if _, ok := tempContext.comb.Elem(conn.Source.PartId).EndingGlues[conn.Source]; !ok {
					tempContext.comb.SetEndingGlue(NewEndingGlue(), conn.Source)
				}
			}

			// A finished section can be estimated.
			if isEnd {
				tempContext.comb.SetMetric(c.estimateCombination(tempContext.comb))
			}

			result = append(result, tempContext)
		}
	}
	return result
}

// calculateSectionsOfAllLengths finds, for every possible section length,
// the best section starting at startingPart. Index i of the result holds the
// best section covering i parts (empty when none is valid).
//
// The search is a depth-first walk over section states kept on an explicit
// stack, which avoids deep recursion on long networks and was measurably
// faster. Each column of the stack holds the not-yet-explored states for one
// part; taking the last state of the last column and pushing its
// continuations is the "recursion", popping an exhausted column the
// "return".
func (c *Combiner) calculateSectionsOfAllLengths(startingPart parts.Part) []Combination {
	numParts := c.graph.NumParts()
	best := make([]Combination, numParts-int(startingPart.ID())+1)

	startingPlans := c.startSection(startingPart)
	// Reversed so plans are considered in the same order as an older
	// version of this search, which matters when metrics tie.
	for i, j := 0, len(startingPlans)-1; i < j; i, j = i+1, j-1 {
		startingPlans[i], startingPlans[j] = startingPlans[j], startingPlans[i]
	}
	contexts := [][]SectionContext{startingPlans}

	numIterations := 0
	for len(contexts) > 0 {
		numIterations++
		last := len(contexts) - 1
		if len(contexts[last]) == 0 {
			contexts = contexts[:last]
			continue
		}

		// The part under consideration is always the one just past the last
		// column of the stack.
		partIdxOffset := len(contexts)
		partId := startingPart.ID() + parts.PartId(partIdxOffset)

		context := contexts[last][len(contexts[last])-1]
		contexts[last] = contexts[last][:len(contexts[last])-1]

		bestOfThisLength := &best[partIdxOffset+1]
		for _, endPlan := range c.endSection(c.graph.GetPart(partId), &context) {
			if bestOfThisLength.IsEmpty() || endPlan.comb.Metric() < bestOfThisLength.Metric() {
				*bestOfThisLength = endPlan.comb
			}
		}

		if int(partId) < numParts-1 {
			continuePlans := c.continueSection(c.graph.GetPart(partId), &context)
			if len(continuePlans) == 0 {
				// Nothing to push, e.g. the section ran out of SRAM.
				continue
			}
			contexts = append(contexts, continuePlans)
		}
	}
	klog.V(2).Infof("Sections from part %d: %d iterations", startingPart.ID(), numIterations)

	return best
}

// Run searches all valid groupings of the parts into lonely plans and
// sections, picks the grouping with the lowest total metric, and builds its
// merged op graph. Panics when no valid combination exists, which indicates
// a bug in plan generation.
func (c *Combiner) Run(pool *workerspool.Pool) {
	numParts := c.graph.NumParts()
	if numParts == 0 {
		exceptions.Panicf("cannot combine an empty graph of parts")
	}

	// Lonely plans are independent between parts, so pick them all in
	// parallel up front.
	bestLonely := make([]Combination, numParts)
	pool.ParallelFor(numParts, func(i int) {
		bestLonely[i] = c.chooseBestLonelyPlan(c.graph.GetPart(parts.PartId(i)))
	})
	klog.V(1).Info("Combiner: lonely plans chosen")

	// Likewise the best section of every length from every starting part.
	// The last part can never start a section.
	sectionsForStartingPart := make([][]Combination, numParts)
	if numParts > 1 {
		pool.ParallelFor(numParts-1, func(i int) {
			sectionsForStartingPart[i] = c.calculateSectionsOfAllLengths(c.graph.GetPart(parts.PartId(i)))
		})
	}
	klog.V(1).Info("Combiner: sections of all lengths calculated")

	// With those building blocks, find the cheapest cover of the whole part
	// list. best[i] is the cheapest combination for the tail of the graph
	// from part i onwards; filled from the shortest tail up. The extra
	// element at the end saves a bounds check when a section spans the
	// whole remaining graph.
	best := make([]Combination, numParts+1)
	best[numParts-1] = bestLonely[numParts-1]

	for partIdx := numParts - 2; partIdx >= 0; partIdx-- {
		klog.V(2).Infof("Combiner progress: %d/%d", numParts-partIdx, numParts)

		// The tail is either this part lonely plus the best tail after it,
		// or a section of some length plus the best tail after that.
		bestTail := bestLonely[partIdx].Merge(best[partIdx+1])

		sections := sectionsForStartingPart[partIdx]
		if len(sections) >= 2 {
			for sectionLength := 2; sectionLength <= numParts-partIdx; sectionLength++ {
				section := sections[sectionLength]
				if section.IsEmpty() {
					// Longer sections may still be valid, keep looking.
					continue
				}
				sectionAndRest := section.Merge(best[partIdx+sectionLength])
				if sectionAndRest.Metric() < bestTail.Metric() {
					bestTail = sectionAndRest
				}
			}
		}
		best[partIdx] = bestTail
	}

	c.bestCombination = best[0]
	if c.bestCombination.IsEmpty() {
		exceptions.Panicf("failed to find a valid combination")
	}
	klog.V(1).Infof("Combiner: best combination metric %.1f", c.bestCombination.Metric())

	// Section boundary glue is synthesized only now: it never affects the
	// choices above.
	for p := parts.PartId(0); p < parts.PartId(numParts); p++ {
		for _, outputSlot := range c.graph.GetPartOutputs(p) {
			if _, ok := c.bestCombination.Elem(p).EndingGlues[outputSlot]; !ok {
				c.bestCombination = c.gluePartToCombinationSrcToDests(
					c.graph.GetPart(p), c.bestCombination, outputSlot.Index)
			}
		}
	}

	c.mergedOpGraph = GetOpGraphForCombination(c.bestCombination, c.graph)
	c.mergedOpGraph.RemoveRedundantCopies()
}

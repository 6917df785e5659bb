// Copyright 2024-2026 Arm Limited. SPDX-License-Identifier: Apache-2.0

// Package compiler is the public entry point: it takes a graph of parts and
// hardware capabilities, runs the combiner search, and returns the merged op
// graph with its performance estimate. Internal invariant violations panic
// deep in the search; this package catches them and returns them as errors.
package compiler

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ARM-software/ethos-n-driver-stack-sub002/capabilities"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/combiner"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/estimation"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/internal/workerspool"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/opgraph"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/options"
	"github.com/ARM-software/ethos-n-driver-stack-sub002/parts"
)

// CompiledNetwork is the result of one compilation: the chosen combination,
// its merged op graph, and the estimate that drove the choice.
type CompiledNetwork struct {
	OpGraph     *opgraph.OpGraph
	Combination combiner.Combination
	Estimated   estimation.EstimatedOpGraph
}

// Compile lowers the graph of parts onto the hardware described by caps.
// The graph is sorted, validated, searched for the cheapest combination of
// plans and sections, and merged into a single op graph.
//
// The graph of parts is renumbered in place by the topological sort.
func Compile(graph *parts.GraphOfParts, caps *capabilities.Capabilities,
	compOpt *options.CompilationOptions, estOpt *options.EstimationOptions) (*CompiledNetwork, error) {

	compilationId := uuid.NewString()
	klog.V(1).Infof("compilation %s: %d parts, %s SRAM in %d banks",
		compilationId, graph.NumParts(),
		humanize.IBytes(uint64(caps.TotalSramSize())), caps.NumberOfSrams())

	var result *CompiledNetwork
	err := exceptions.TryCatch[error](func() {
		graph.SortAndCompact()
		if err := graph.Validate(); err != nil {
			panic(errors.Wrap(err, "invalid graph of parts"))
		}

		pool := workerspool.New()
		comb := combiner.NewCombiner(graph, caps, compOpt, estOpt)
		comb.Run(pool)

		merged := comb.MergedOpGraph()
		estimated, err := estimation.EstimateOpGraph(merged, caps, estOpt)
		if err != nil {
			panic(errors.Wrap(err, "estimating merged op graph"))
		}
		klog.V(1).Infof("compilation %s: %d passes, metric %.1f",
			compilationId, len(estimated.Passes), estimated.Metric)

		result = &CompiledNetwork{
			OpGraph:     merged,
			Combination: comb.BestCombination(),
			Estimated:   estimated,
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "compilation %s", compilationId)
	}
	return result, nil
}

// EstimatePerformance runs the same search as Compile but reports only the
// per-pass performance numbers.
func EstimatePerformance(graph *parts.GraphOfParts, caps *capabilities.Capabilities,
	compOpt *options.CompilationOptions, estOpt *options.EstimationOptions) (estimation.NetworkPerformanceData, error) {

	compiled, err := Compile(graph, caps, compOpt, estOpt)
	if err != nil {
		return estimation.NetworkPerformanceData{}, err
	}
	return compiled.Estimated.ToNetworkPerformanceData(), nil
}

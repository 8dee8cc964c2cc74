// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTaxonomy() *bizctx.Taxonomy {
	return &bizctx.Taxonomy{
		Keys: []string{"region", "channel"},
		Placeholders: map[string]string{
			"region":  "ANY",
			"channel": "ANY",
		},
		Categories: map[string][]string{
			"region":  {"EU", "EU.DE", "EU.FR", "US"},
			"channel": {"web", "mobile"},
		},
	}
}

func tup(region, channel string) bizctx.Tuple {
	return bizctx.Tuple{"region": region, "channel": channel}
}

// chainBundle is the linear graph A -> B -> C with one assignment on the
// root: every downstream component inherits A's context unchanged.
func chainBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Taxonomy: testTaxonomy(),
		Policy: &bundle.Policy{
			PolicyKeys:  []string{"region"},
			LegalTuples: []bizctx.Tuple{{"region": "EU"}},
		},
		ComponentGraph: &bundle.ComponentGraph{
			RootABIE: "A",
			ABIEs: []bundle.ABIE{
				{ID: "A", ChildrenASBIE: []string{"sAB"}},
				{ID: "B", ChildrenASBIE: []string{"sBC"}},
				{ID: "C"},
			},
			ASBIEs: []bundle.ASBIE{
				{ID: "sAB", SourceABIE: "A", TargetABIE: "B"},
				{ID: "sBC", SourceABIE: "B", TargetABIE: "C"},
			},
		},
		AssignedBusinessContext: []bundle.Assignment{
			{ComponentID: "A", Tuples: []bizctx.Tuple{tup("EU", "web")}},
			{ComponentID: "sAB", Tuples: []bizctx.Tuple{tup("ANY", "ANY")}},
			{ComponentID: "B", Tuples: []bizctx.Tuple{tup("ANY", "ANY")}},
			{ComponentID: "sBC", Tuples: []bizctx.Tuple{tup("ANY", "ANY")}},
			{ComponentID: "C", Tuples: []bizctx.Tuple{tup("ANY", "ANY")}},
		},
	}
}

// branchBundle narrows context at B: the ASBIE into B keeps a strictly more
// specific tuple than the root, so the schema retains more than the root.
func branchBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Taxonomy: testTaxonomy(),
		Policy: &bundle.Policy{
			PolicyKeys:  []string{"region"},
			LegalTuples: []bizctx.Tuple{{"region": "EU"}},
		},
		ComponentGraph: &bundle.ComponentGraph{
			RootABIE: "A",
			ABIEs: []bundle.ABIE{
				{ID: "A", ChildrenASBIE: []string{"sAB"}},
				{ID: "B"},
			},
			ASBIEs: []bundle.ASBIE{
				{ID: "sAB", SourceABIE: "A", TargetABIE: "B"},
			},
		},
		AssignedBusinessContext: []bundle.Assignment{
			{ComponentID: "A", Tuples: []bizctx.Tuple{tup("EU", "ANY")}},
			{ComponentID: "sAB", Tuples: []bizctx.Tuple{tup("ANY", "ANY")}},
			{ComponentID: "B", Tuples: []bizctx.Tuple{tup("EU.DE", "ANY")}},
		},
	}
}

// ringBundle is a cycle r1 -> r2 -> ... -> rN -> r1 where each member is
// assigned its own distinct tuple. Closure tuples travel one hop per round,
// so stabilization needs N rounds.
func ringBundle(n int) *bundle.Bundle {
	regions := []string{"EU", "EU.DE", "EU.FR", "US"}
	channels := []string{"web", "mobile"}

	b := &bundle.Bundle{
		Taxonomy: testTaxonomy(),
		Policy: &bundle.Policy{
			PolicyKeys:  []string{"region"},
			LegalTuples: []bizctx.Tuple{{"region": "ANY"}},
		},
		ComponentGraph: &bundle.ComponentGraph{RootABIE: "r1"},
	}
	for i := 1; i <= n; i++ {
		abieID := fmt.Sprintf("r%d", i)
		asbieID := fmt.Sprintf("s%d", i)
		next := fmt.Sprintf("r%d", i%n+1)
		b.ComponentGraph.ABIEs = append(b.ComponentGraph.ABIEs, bundle.ABIE{
			ID:            abieID,
			ChildrenASBIE: []string{asbieID},
		})
		b.ComponentGraph.ASBIEs = append(b.ComponentGraph.ASBIEs, bundle.ASBIE{
			ID:         asbieID,
			SourceABIE: abieID,
			TargetABIE: next,
		})
		b.AssignedBusinessContext = append(b.AssignedBusinessContext,
			bundle.Assignment{
				ComponentID: abieID,
				Tuples:      []bizctx.Tuple{tup(regions[(i-1)%4], channels[(i-1)/4%2])},
			},
			bundle.Assignment{
				ComponentID: asbieID,
				Tuples:      []bizctx.Tuple{tup("ANY", "ANY")},
			},
		)
	}
	return b
}

func testIUC() bundle.IUC {
	return bundle.IUC{ID: "iuc-1", Tuples: []bizctx.Tuple{tup("EU", "web")}}
}

func mustClosure(b *bundle.Bundle, maxRounds int) *ClosureResult {
	pre := Prefilter(b.AssignedBusinessContext, b.Policy, b.Taxonomy, testLogger())
	closure, err := OverlapClosure(pre, newComponentGraph(b.ComponentGraph), b.Taxonomy, maxRounds, testLogger())
	if err != nil {
		panic(err)
	}
	return closure
}

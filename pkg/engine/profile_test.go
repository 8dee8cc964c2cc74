// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

func TestAssembleProfileBranch(t *testing.T) {
	b := branchBundle()
	cg := newComponentGraph(b.ComponentGraph)
	closure := mustClosure(b, DefaultMaxRounds)
	prop, err := PropagateContext(closure, cg, b.Taxonomy, testIUC(), DefaultMaxRounds, testLogger())
	require.NoError(t, err)

	profile, err := AssembleProfile(prop, cg, testIUC())
	require.NoError(t, err)

	assert.Equal(t, ProfileVersion, profile.Version)
	assert.Equal(t, "iuc-1", profile.ProfileID)
	assert.Equal(t, "A", profile.RootABIE)
	assert.True(t, profile.IsRealizable)

	require.Len(t, profile.Includes.ABIE, 1)
	assert.Equal(t, "A", profile.Includes.ABIE[0].ID)

	// sAB is included even though its target B collapsed to empty: B's
	// tuples were attributed to sAB, which keeps the schema resolvable.
	require.Len(t, profile.Includes.ASBIE, 1)
	include := profile.Includes.ASBIE[0]
	assert.Equal(t, "sAB", include.ID)
	assert.Equal(t, "A", include.SourceABIE)
	assert.Equal(t, "B", include.TargetABIE)
	assert.Equal(t, []bizctx.Tuple{tup("EU.DE", "web")}, include.ECTuples)

	assert.Empty(t, profile.Includes.BBIE)
}

func TestAssembleProfileRootExcludedWhenECEmpty(t *testing.T) {
	b := chainBundle()
	cg := newComponentGraph(b.ComponentGraph)
	closure := mustClosure(b, DefaultMaxRounds)

	iuc := bundle.IUC{ID: "iuc-us", Tuples: []bizctx.Tuple{tup("US", "web")}}
	prop, err := PropagateContext(closure, cg, b.Taxonomy, iuc, DefaultMaxRounds, testLogger())
	require.NoError(t, err)

	profile, err := AssembleProfile(prop, cg, iuc)
	require.NoError(t, err)

	assert.False(t, profile.IsRealizable)
	assert.Empty(t, profile.Includes.ABIE)
	assert.Empty(t, profile.Includes.ASBIE)
	assert.Empty(t, profile.Includes.BBIE)
}

func TestAssembleProfileSchemaClosureViolation(t *testing.T) {
	b := branchBundle()
	cg := newComponentGraph(b.ComponentGraph)

	crafted := &PropagateResult{
		EC: KindSets{
			ABIE: TupleSet{
				"A": {tup("EU", "web")},
				"B": {},
			},
			ASBIE: TupleSet{
				// Non-empty ASBIE whose target has neither EC nor a
				// recorded attribution.
				"sAB": {tup("EU.DE", "web")},
			},
			BBIE: TupleSet{},
		},
	}

	profile, err := AssembleProfile(crafted, cg, testIUC())
	require.Nil(t, profile)
	var sce *SchemaClosureError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, "sAB", sce.Component)
	assert.Equal(t, "B", sce.Missing)
	assert.Equal(t, "SchemaClosureViolation", sce.Envelope().Kind)
}

func TestAssembleProfileRejectsDanglingAttribution(t *testing.T) {
	b := branchBundle()
	cg := newComponentGraph(b.ComponentGraph)

	crafted := &PropagateResult{
		EC: KindSets{
			ABIE: TupleSet{
				"A": {tup("EU", "web")},
				"B": {tup("EU.DE", "web")},
			},
			ASBIE: TupleSet{"sAB": {tup("EU.DE", "web")}},
			BBIE:  TupleSet{},
		},
		// B claims an ancestor that has no EC of its own.
		RequiredAncestors: map[string][]string{"B": {"ghost"}},
	}

	profile, err := AssembleProfile(crafted, cg, testIUC())
	require.Nil(t, profile)
	var sce *SchemaClosureError
	require.ErrorAs(t, err, &sce)
	assert.Equal(t, "B", sce.Component)
	assert.Equal(t, "ghost", sce.Missing)
}

func TestProfileECByComponent(t *testing.T) {
	profile := &Profile{
		Includes: ProfileIncludes{
			ABIE:  []ProfileInclude{{ID: "A", ECTuples: []bizctx.Tuple{tup("EU", "web")}}},
			ASBIE: []ProfileInclude{{ID: "sAB", ECTuples: []bizctx.Tuple{tup("EU.DE", "web")}}},
		},
	}
	byComponent := profile.ECByComponent()
	assert.Len(t, byComponent, 2)
	assert.Equal(t, []string{"A", "sAB"}, profile.ComponentIDs())
}

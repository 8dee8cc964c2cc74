// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
	"github.com/AleutianAI/ecmap/pkg/bundle"
)

func TestRunECArtifactNames(t *testing.T) {
	run, env := RunEC(context.Background(), chainBundle(), []bundle.IUC{testIUC()}, Options{}, testLogger())
	require.Nil(t, env)
	require.NotNil(t, run)

	var names []string
	for _, artifact := range run.Artifacts {
		names = append(names, artifact.Name)
	}
	assert.Equal(t, []string{
		"step1-prefiltered.json",
		"step2-oc.json",
		"step3-ec.iuc-1.json",
		"step4-profile.iuc-1.json",
	}, names)
	assert.Equal(t, []string{"iuc-1"}, run.ProfileIDs)
	assert.NotEmpty(t, run.RunID)
}

func TestRunECIdempotent(t *testing.T) {
	iucs := []bundle.IUC{testIUC(), {ID: "iuc-2", Tuples: []bizctx.Tuple{tup("EU.DE", "web")}}}

	first, env := RunEC(context.Background(), branchBundle(), iucs, Options{}, testLogger())
	require.Nil(t, env)
	second, env := RunEC(context.Background(), branchBundle(), iucs, Options{}, testLogger())
	require.Nil(t, env)

	require.Len(t, second.Artifacts, len(first.Artifacts))
	for i := range first.Artifacts {
		assert.Equal(t, first.Artifacts[i].Name, second.Artifacts[i].Name)
		left, err := json.Marshal(first.Artifacts[i].Payload)
		require.NoError(t, err)
		right, err := json.Marshal(second.Artifacts[i].Payload)
		require.NoError(t, err)
		assert.Equal(t, string(left), string(right), first.Artifacts[i].Name)
	}
}

func TestRunECValidationEnvelope(t *testing.T) {
	b := chainBundle()
	b.Policy = nil

	run, env := RunEC(context.Background(), b, []bundle.IUC{testIUC()}, Options{}, testLogger())
	assert.Nil(t, run)
	require.NotNil(t, env)
	assert.Equal(t, bundle.KindValidation, env.Kind)
}

func TestRunECNonConvergenceEnvelope(t *testing.T) {
	run, env := RunEC(context.Background(), ringBundle(6), []bundle.IUC{testIUC()}, Options{MaxRoundsOC: 5}, testLogger())

	assert.Nil(t, run)
	require.NotNil(t, env)
	assert.Equal(t, bundle.KindOCNonConvergence, env.Kind)
	assert.NotNil(t, env.Details)

	// The envelope serializes to the uniform wire shape.
	data, err := json.Marshal(env)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Len(t, wire, 3)
	assert.Contains(t, wire, "error")
	assert.Contains(t, wire, "reason")
	assert.Contains(t, wire, "details")
}

func TestRunECRejectsNegativeBounds(t *testing.T) {
	run, env := RunEC(context.Background(), chainBundle(), []bundle.IUC{testIUC()}, Options{MaxRoundsOC: -1}, testLogger())
	assert.Nil(t, run)
	require.NotNil(t, env)
	assert.Equal(t, bundle.KindConfig, env.Kind)
}

func TestOptionsResolveFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		rules  *bundle.GraphRules
		wantOC int
		wantEC int
	}{
		{"defaults", Options{}, nil, DefaultMaxRounds, DefaultMaxRounds},
		{"graph rules", Options{}, &bundle.GraphRules{MaxFixpointRounds: 3}, 3, 3},
		{"explicit wins", Options{MaxRoundsOC: 2, MaxRoundsEC: 9}, &bundle.GraphRules{MaxFixpointRounds: 3}, 2, 9},
		{"partial explicit", Options{MaxRoundsEC: 4}, nil, DefaultMaxRounds, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := tt.opts.resolve(&bundle.ComponentGraph{Rules: tt.rules})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOC, resolved.MaxRoundsOC)
			assert.Equal(t, tt.wantEC, resolved.MaxRoundsEC)
		})
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bizctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTaxonomy() *Taxonomy {
	return &Taxonomy{
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

func TestIntersectToken(t *testing.T) {
	tx := testTaxonomy()

	tests := []struct {
		name   string
		left   string
		right  string
		want   string
		wantOK bool
	}{
		{"placeholder left", "ANY", "EU", "EU", true},
		{"placeholder right", "EU", "ANY", "EU", true},
		{"equal", "EU", "EU", "EU", true},
		{"ancestor left narrows to right", "EU", "EU.DE", "EU.DE", true},
		{"ancestor right narrows to left", "EU.DE", "EU", "EU.DE", true},
		{"unrelated", "EU", "US", "", false},
		{"siblings", "EU.DE", "EU.FR", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tx.IntersectToken(tt.left, tt.right, "ANY")
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIntersectTokenCaseInsensitive(t *testing.T) {
	tx := testTaxonomy()
	caseSensitive := false
	tx.Rules = &TaxonomyRules{CaseSensitive: &caseSensitive}

	got, ok := tx.IntersectToken("eu", "EU.DE", "ANY")
	require.True(t, ok)
	assert.Equal(t, "EU.DE", got)
}

func TestIntersectTuple(t *testing.T) {
	tx := testTaxonomy()

	tests := []struct {
		name   string
		left   Tuple
		right  Tuple
		want   Tuple
		wantOK bool
	}{
		{
			name:   "narrows both axes",
			left:   Tuple{"region": "EU", "channel": "ANY"},
			right:  Tuple{"region": "EU.DE", "channel": "web"},
			want:   Tuple{"region": "EU.DE", "channel": "web"},
			wantOK: true,
		},
		{
			name:   "missing right key is unconstrained",
			left:   Tuple{"region": "EU", "channel": "web"},
			right:  Tuple{"region": "EU"},
			want:   Tuple{"region": "EU", "channel": "web"},
			wantOK: true,
		},
		{
			name:   "disjoint axis fails whole tuple",
			left:   Tuple{"region": "EU", "channel": "web"},
			right:  Tuple{"region": "US", "channel": "web"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tx.IntersectTuple(tt.left, tt.right)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIntersectSetsDedupsInFirstSeenOrder(t *testing.T) {
	tx := testTaxonomy()

	left := []Tuple{
		{"region": "EU", "channel": "ANY"},
		{"region": "ANY", "channel": "web"},
	}
	right := []Tuple{
		{"region": "EU", "channel": "web"},
	}

	got := tx.IntersectSets(left, right)
	require.Len(t, got, 1)
	assert.Equal(t, Tuple{"region": "EU", "channel": "web"}, got[0])
}

func TestDedupExactPreservesOrder(t *testing.T) {
	keys := []string{"region", "channel"}
	tuples := []Tuple{
		{"region": "EU", "channel": "web"},
		{"region": "US", "channel": "web"},
		{"region": "EU", "channel": "web"},
	}

	got := DedupExact(tuples, keys)
	require.Len(t, got, 2)
	assert.Equal(t, "EU", got[0]["region"])
	assert.Equal(t, "US", got[1]["region"])
}

func TestCollapseDropsStrictDescendants(t *testing.T) {
	tx := testTaxonomy()

	tuples := []Tuple{
		{"region": "EU", "channel": "web"},
		{"region": "EU.DE", "channel": "web"},
		{"region": "US", "channel": "web"},
	}

	got := tx.Collapse(tuples)
	require.Len(t, got, 2)
	assert.Equal(t, "EU", got[0]["region"])
	assert.Equal(t, "US", got[1]["region"])
}

func TestCollapseKeepsEqualTuplesOnce(t *testing.T) {
	tx := testTaxonomy()

	tuples := []Tuple{
		{"region": "EU", "channel": "web"},
		{"region": "EU", "channel": "web"},
	}

	got := tx.Collapse(tuples)
	require.Len(t, got, 1)
}

func TestProject(t *testing.T) {
	tuples := []Tuple{
		{"region": "EU", "channel": "web"},
		{"region": "US", "channel": "web"},
	}

	t.Run("single axis dedups", func(t *testing.T) {
		got := Project(tuples, []string{"channel"})
		require.Len(t, got, 1)
		assert.Equal(t, Tuple{"channel": "web"}, got[0])
	})

	t.Run("zero axes yields the empty tuple", func(t *testing.T) {
		got := Project(tuples, nil)
		require.Len(t, got, 1)
		assert.Empty(t, got[0])
	})

	t.Run("empty set stays empty", func(t *testing.T) {
		assert.Empty(t, Project(nil, []string{"channel"}))
	})
}

func TestIntersectProjected(t *testing.T) {
	axes := []string{"channel"}

	t.Run("common member survives", func(t *testing.T) {
		left := []Tuple{{"channel": "web"}, {"channel": "mobile"}}
		right := []Tuple{{"channel": "web"}}
		got := IntersectProjected(left, right, axes)
		require.Len(t, got, 1)
		assert.Equal(t, "web", got[0]["channel"])
	})

	t.Run("disjoint sides are empty", func(t *testing.T) {
		left := []Tuple{{"channel": "web"}}
		right := []Tuple{{"channel": "mobile"}}
		assert.Empty(t, IntersectProjected(left, right, axes))
	})
}

func TestCovers(t *testing.T) {
	tx := testTaxonomy()

	ancestor := Tuple{"region": "EU", "channel": "web"}

	assert.True(t, tx.Covers(ancestor, Tuple{"region": "EU.DE", "channel": "web"}))
	assert.True(t, tx.Covers(ancestor, Tuple{"region": "EU", "channel": "web"}), "equal tuples cover")
	assert.False(t, tx.Covers(ancestor, Tuple{"region": "US", "channel": "web"}))
}

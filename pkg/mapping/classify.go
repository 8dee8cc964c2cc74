// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mapping classifies component overlap between two assembled
// profiles and shapes the resulting Mapping Rule Artifacts. Tuple equality,
// projection, and intersection are the bizctx primitives the EC pipeline
// uses; no alternative semantics exist here.
package mapping

import (
	"github.com/AleutianAI/ecmap/pkg/bizctx"
)

// Classification is the per-component mapping decision.
type Classification string

const (
	NoMapping           Classification = "NO_MAPPING"
	Seamless            Classification = "SEAMLESS"
	ContextualTransform Classification = "CONTEXTUAL_TRANSFORM"
)

// Classify projects both effective-context sets onto the component's
// relevant axes and decides the mapping. NO_MAPPING when either projection
// is empty, SEAMLESS when the projected intersection is inhabited,
// CONTEXTUAL_TRANSFORM otherwise. Projecting onto zero axes turns any
// non-empty set into the single unconstrained tuple, so those components
// always classify SEAMLESS.
func Classify(ecSource, ecTarget []bizctx.Tuple, axes []string) (Classification, []bizctx.Tuple, []bizctx.Tuple, []bizctx.Tuple) {
	sourceRel := bizctx.Project(ecSource, axes)
	targetRel := bizctx.Project(ecTarget, axes)
	if len(sourceRel) == 0 || len(targetRel) == 0 {
		return NoMapping, sourceRel, targetRel, []bizctx.Tuple{}
	}
	common := bizctx.IntersectProjected(sourceRel, targetRel, axes)
	if common == nil {
		common = []bizctx.Tuple{}
	}
	if len(common) > 0 {
		return Seamless, sourceRel, targetRel, common
	}
	return ContextualTransform, sourceRel, targetRel, common
}

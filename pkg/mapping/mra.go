// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mapping

import (
	"fmt"

	"github.com/AleutianAI/ecmap/pkg/bizctx"
)

const (
	transformIdentity   = "identity_or_direct"
	transformContextual = "contextual_transform"
	transformNone       = "none"
)

// Rule is the machine-consumable half of an MRA entry.
type Rule struct {
	ComponentID string         `json:"componentId"`
	SourcePath  string         `json:"sourcePath"`
	TargetPath  string         `json:"targetPath"`
	Decision    Classification `json:"decision"`
	Transform   string         `json:"transform"`
}

// Explanation is the human-readable half of an MRA entry. It never affects
// classification.
type Explanation struct {
	ComponentID  string         `json:"componentId"`
	TLDR         string         `json:"tldr"`
	RelevantAxes []string       `json:"relevantAxes"`
	Decision     Classification `json:"decision"`
}

// MRA is one Mapping Rule Artifact entry for a classified component.
type MRA struct {
	ComponentID     string         `json:"componentId"`
	Anchor          string         `json:"anchor,omitempty"`
	RelevantAxes    []string       `json:"relevantAxes"`
	Decision        Classification `json:"decision"`
	ECSource        []bizctx.Tuple `json:"EC_source"`
	ECTarget        []bizctx.Tuple `json:"EC_target"`
	ECCommonOnKCD   []bizctx.Tuple `json:"EC_common_on_KCD"`
	MappingJSON     Rule           `json:"mappingJson"`
	ExplanationJSON Explanation    `json:"explanationJson"`
}

// buildMRA shapes one entry from a classification outcome. ECCommonOnKCD is
// exactly the intersection Classify produced, never recomputed.
func buildMRA(componentID, anchor string, axes []string, decision Classification,
	ecSource, ecTarget, common []bizctx.Tuple, sourcePath, targetPath string) MRA {

	transform := transformNone
	switch decision {
	case Seamless:
		transform = transformIdentity
	case ContextualTransform:
		transform = transformContextual
	}

	if axes == nil {
		axes = []string{}
	}
	return MRA{
		ComponentID:   componentID,
		Anchor:        anchor,
		RelevantAxes:  axes,
		Decision:      decision,
		ECSource:      ecSource,
		ECTarget:      ecTarget,
		ECCommonOnKCD: common,
		MappingJSON: Rule{
			ComponentID: componentID,
			SourcePath:  sourcePath,
			TargetPath:  targetPath,
			Decision:    decision,
			Transform:   transform,
		},
		ExplanationJSON: Explanation{
			ComponentID:  componentID,
			TLDR:         explain(decision, axes, common),
			RelevantAxes: axes,
			Decision:     decision,
		},
	}
}

func explain(decision Classification, axes []string, common []bizctx.Tuple) string {
	switch decision {
	case Seamless:
		return fmt.Sprintf("SEAMLESS: projected contexts share %d tuple(s) on axes %v", len(common), axes)
	case ContextualTransform:
		return fmt.Sprintf("CONTEXTUAL_TRANSFORM: both sides populated on axes %v but their projections are disjoint", axes)
	default:
		return fmt.Sprintf("NO_MAPPING: at least one side projects to nothing on axes %v", axes)
	}
}
